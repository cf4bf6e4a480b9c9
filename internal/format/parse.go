package format

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"oats/internal/codec"
)

// Index is the registry view the parser needs.
type Index interface {
	Codecs() []codec.Codec
	Modes(c codec.Codec) []codec.Mode
	CapabilitiesFor(c codec.Codec, m codec.Mode) []codec.Capability
}

var modeKeywords = append([]codec.Mode{codec.CBR, codec.VBR, codec.ABR, codec.Lossless}, codec.ResampleModes()...)

// Parse converts text into a descriptor validated against the available
// capabilities in idx.
func Parse(text string, idx Index) (codec.Descriptor, error) {
	input := strings.Join(strings.Fields(text), " ")
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return codec.Descriptor{}, syntaxError(input, "empty format string")
	}
	fold := cases.Fold()
	for i := range tokens {
		tokens[i] = fold.String(tokens[i])
	}

	if expanded, ok := expandShorthand(tokens); ok {
		tokens = expanded
	}

	c, rest, err := matchCodec(input, tokens, idx)
	if err != nil {
		return codec.Descriptor{}, err
	}
	declared := idx.Modes(c)

	var mode codec.Mode
	if len(rest) == 0 {
		if !slices.Contains(declared, codec.Lossless) {
			return codec.Descriptor{}, syntaxError(input, "missing mode for %s (one of %s)", c, joinModes(declared))
		}
		mode = codec.Lossless
	} else {
		m, ok := matchMode(rest[0])
		if !ok {
			return codec.Descriptor{}, syntaxError(input, "unknown mode %q", rest[0])
		}
		if !slices.Contains(declared, m) {
			return codec.Descriptor{}, syntaxError(input, "%s does not support %s (one of %s)", c, m, joinModes(declared))
		}
		mode = m
		rest = rest[1:]
	}

	caps := idx.CapabilitiesFor(c, mode)
	if len(caps) == 0 {
		return codec.Descriptor{}, &ParseError{
			Input:  input,
			Kind:   KindUnsupported,
			Codec:  c,
			Mode:   mode,
			Reason: "no available tool supports " + string(c) + " " + string(mode),
		}
	}

	desc := codec.Descriptor{Codec: c, Mode: mode}
	if !mode.TakesParameter() {
		if len(rest) > 0 {
			return codec.Descriptor{}, syntaxError(input, "%s %s takes no parameter", c, mode)
		}
		return desc, nil
	}

	switch len(rest) {
	case 0:
		return codec.Descriptor{}, syntaxError(input, "missing %s for %s %s", paramName(caps), c, mode)
	case 1:
	default:
		return codec.Descriptor{}, syntaxError(input, "unexpected trailing text %q", strings.Join(rest[1:], " "))
	}
	value, err := strconv.ParseFloat(rest[0], 64)
	if err != nil {
		return codec.Descriptor{}, syntaxError(input, "parameter %q is not a number", rest[0])
	}

	for _, capability := range caps {
		if capability.Range.Contains(value) {
			desc.Parameter = value
			desc.HasParameter = true
			desc.ParamName = capability.ParamName
			desc.Unit = capability.Unit
			desc.Range = capability.Range
			return desc, nil
		}
	}
	return codec.Descriptor{}, &ParseError{
		Input:  input,
		Kind:   KindRange,
		Codec:  c,
		Mode:   mode,
		Reason: paramName(caps) + " " + rest[0] + " outside " + renderRanges(caps),
	}
}

// expandShorthand rewrites legacy MP3 shorthands and bare FLAC depth-rate
// pairs such as "16-44" into full token lists.
func expandShorthand(tokens []string) ([]string, bool) {
	mp3 := strings.ToLower(string(codec.MP3))
	switch len(tokens) {
	case 1:
		tok := tokens[0]
		if m, ok := matchMode(tok); ok && strings.Contains(tok, "-") {
			if _, _, resamples := m.Resampling(); resamples {
				return []string{strings.ToLower(string(codec.FLAC)), tok}, true
			}
		}
		if isNumber(tok) {
			return []string{mp3, strings.ToLower(string(codec.CBR)), tok}, true
		}
		if len(tok) > 1 && tok[0] == 'v' && isNumber(tok[1:]) {
			return []string{mp3, strings.ToLower(string(codec.VBR)), tok[1:]}, true
		}
	case 2:
		if isNumber(tokens[0]) {
			if m, ok := matchMode(tokens[1]); ok && m.TakesParameter() {
				return []string{mp3, tokens[1], tokens[0]}, true
			}
		}
	}
	return nil, false
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

type codecMatch struct {
	codec codec.Codec
	words int
	exact bool
}

// matchCodec finds the codec named by the leading tokens. Exact matches win
// over prefixes; among exact matches the one consuming most words wins.
func matchCodec(input string, tokens []string, idx Index) (codec.Codec, []string, error) {
	fold := cases.Fold()
	var matches []codecMatch
	for _, c := range idx.Codecs() {
		for _, name := range codec.Names(c) {
			words := strings.Fields(fold.String(name))
			if len(words) > len(tokens) {
				continue
			}
			exact, prefix := true, true
			for i, w := range words {
				if tokens[i] != w {
					exact = false
				}
				if !strings.HasPrefix(w, tokens[i]) {
					prefix = false
				}
			}
			if exact || prefix {
				matches = append(matches, codecMatch{codec: c, words: len(words), exact: exact})
			}
		}
	}
	if len(matches) == 0 {
		return "", nil, syntaxError(input, "unknown codec %q", tokens[0])
	}

	best := pickMatch(matches, true)
	if best == nil {
		best = pickMatch(matches, false)
	}
	if best == nil {
		var names []string
		for _, m := range matches {
			if !slices.Contains(names, string(m.codec)) {
				names = append(names, string(m.codec))
			}
		}
		return "", nil, syntaxError(input, "ambiguous codec %q (matches %s)", tokens[0], strings.Join(names, ", "))
	}
	return best.codec, tokens[best.words:], nil
}

// pickMatch returns the longest match of the requested exactness, or nil when
// the longest matches disagree on the codec.
func pickMatch(matches []codecMatch, exact bool) *codecMatch {
	var best *codecMatch
	ambiguous := false
	for i := range matches {
		m := &matches[i]
		if m.exact != exact {
			continue
		}
		switch {
		case best == nil || m.words > best.words:
			best = m
			ambiguous = false
		case m.words == best.words && m.codec != best.codec:
			ambiguous = true
		}
	}
	if ambiguous {
		return nil
	}
	return best
}

func matchMode(token string) (codec.Mode, bool) {
	fold := cases.Fold()
	for _, m := range modeKeywords {
		if fold.String(string(m)) == token {
			return m, true
		}
	}
	return "", false
}

func joinModes(modes []codec.Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

func paramName(caps []codec.Capability) string {
	for _, c := range caps {
		if c.ParamName != "" {
			return c.ParamName
		}
	}
	return "parameter"
}
