package format

import (
	"errors"

	"oats/internal/codec"
)

// Resolution is the outcome of ResolveAll.
type Resolution struct {
	// Formats holds the usable descriptors in request order, deduplicated by label.
	Formats []codec.Descriptor
	// Unavailable holds formats dropped because no available tool supports them.
	Unavailable []*ParseError
}

// ResolveAll parses every spec string. A syntax or range error in any of them
// is returned immediately. Unsupported formats are collected in Unavailable
// and skipped; when nothing usable remains the joined unsupported errors are
// returned.
func ResolveAll(specs []string, idx Index) (Resolution, error) {
	var res Resolution
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		desc, err := Parse(spec, idx)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) && perr.Kind == KindUnsupported {
				res.Unavailable = append(res.Unavailable, perr)
				continue
			}
			return Resolution{}, err
		}
		label := desc.Label()
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		res.Formats = append(res.Formats, desc)
	}
	if len(res.Formats) == 0 {
		if len(res.Unavailable) == 0 {
			return res, syntaxError("", "no formats requested")
		}
		errs := make([]error, len(res.Unavailable))
		for i, perr := range res.Unavailable {
			errs[i] = perr
		}
		return res, errors.Join(errs...)
	}
	return res, nil
}
