package format

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"oats/internal/codec"
)

// Entry is one (codec, mode) pair with at least one available tool.
type Entry struct {
	Codec     codec.Codec
	Mode      codec.Mode
	ParamName string
	Unit      string
	Ranges    []codec.Range
	Tools     []string
}

// Notation renders the parameter as {name;unit:min-max} or {name;unit:set}.
// Parameterless modes render as an empty string.
func (e Entry) Notation() string {
	if !e.Mode.TakesParameter() || len(e.Ranges) == 0 {
		return ""
	}
	parts := make([]string, len(e.Ranges))
	for i, r := range e.Ranges {
		parts[i] = r.String()
	}
	return fmt.Sprintf("{%s;%s:%s}", e.ParamName, e.Unit, strings.Join(parts, "|"))
}

// Example returns a format string accepted by Parse for this entry.
func (e Entry) Example() string {
	if !e.Mode.TakesParameter() || len(e.Ranges) == 0 {
		if e.Mode == codec.Lossless {
			return string(e.Codec)
		}
		return fmt.Sprintf("%s %s", e.Codec, e.Mode)
	}
	r := e.Ranges[len(e.Ranges)-1]
	value := r.Max
	if len(r.Set) > 0 {
		value = r.Set[len(r.Set)-1]
	}
	return fmt.Sprintf("%s %s %s", e.Codec, e.Mode, codec.FormatNumber(value))
}

// Catalog lists every format the host can currently produce.
type Catalog []Entry

// String renders one line per entry, e.g. "MP3 CBR {bitrate;kbps:8-320}".
func (c Catalog) String() string {
	var b strings.Builder
	for _, e := range c {
		b.WriteString(string(e.Codec))
		b.WriteByte(' ')
		b.WriteString(string(e.Mode))
		if n := e.Notation(); n != "" {
			b.WriteByte(' ')
			b.WriteString(n)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildCatalog derives the catalog from the live availability in idx. It is
// recomputed on every call.
func BuildCatalog(idx Index) Catalog {
	var out Catalog
	for _, c := range idx.Codecs() {
		for _, m := range idx.Modes(c) {
			caps := idx.CapabilitiesFor(c, m)
			if len(caps) == 0 {
				continue
			}
			entry := Entry{Codec: c, Mode: m, ParamName: paramName(caps), Unit: caps[0].Unit}
			for _, capability := range caps {
				if !slices.Contains(entry.Tools, capability.ToolID) {
					entry.Tools = append(entry.Tools, capability.ToolID)
				}
			}
			if m.TakesParameter() {
				entry.Ranges = mergeRanges(caps)
			}
			out = append(out, entry)
		}
	}
	return out
}

func renderRanges(caps []codec.Capability) string {
	ranges := mergeRanges(caps)
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, " or ")
}

// mergeRanges unions capability ranges: overlapping intervals collapse into
// one, enumerated sets merge into a single set listed after the intervals.
func mergeRanges(caps []codec.Capability) []codec.Range {
	var intervals []codec.Range
	var set []float64
	for _, c := range caps {
		if len(c.Range.Set) > 0 {
			for _, v := range c.Range.Set {
				if !slices.Contains(set, v) {
					set = append(set, v)
				}
			}
			continue
		}
		intervals = append(intervals, c.Range)
	}
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].Min != intervals[j].Min {
			return intervals[i].Min < intervals[j].Min
		}
		return intervals[i].Max < intervals[j].Max
	})

	var merged []codec.Range
	for _, r := range intervals {
		if n := len(merged); n > 0 && r.Min <= merged[n-1].Max {
			last := &merged[n-1]
			if r.Max > last.Max {
				last.Max = r.Max
			}
			last.Integral = last.Integral && r.Integral
			continue
		}
		merged = append(merged, r)
	}
	if len(set) > 0 {
		merged = append(merged, codec.OneOf(set...))
	}
	return merged
}
