package codec

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Codec names an audio compression scheme.
type Codec string

const (
	MP3    Codec = "MP3"
	Opus   Codec = "Opus"
	Vorbis Codec = "Vorbis"
	AAC    Codec = "AAC"
	FLAC   Codec = "FLAC"
	ALAC   Codec = "ALAC"
	WAV    Codec = "WAV"
)

// Mode names a quality-control scheme for a codec.
type Mode string

const (
	CBR      Mode = "CBR"
	VBR      Mode = "VBR"
	ABR      Mode = "ABR"
	Lossless Mode = "LOSSLESS"
)

// Lossless modes that requantize and optionally resample: bit depth, then
// sample rate in kHz.
const (
	Depth16     Mode = "16"
	Depth24     Mode = "24"
	Depth16At44 Mode = "16-44"
	Depth16At48 Mode = "16-48"
	Depth24At44 Mode = "24-44"
	Depth24At48 Mode = "24-48"
)

type resampling struct {
	bits int
	rate int
}

var resampleModes = map[Mode]resampling{
	Depth16:     {bits: 16},
	Depth24:     {bits: 24},
	Depth16At44: {bits: 16, rate: 44100},
	Depth16At48: {bits: 16, rate: 48000},
	Depth24At44: {bits: 24, rate: 44100},
	Depth24At48: {bits: 24, rate: 48000},
}

// ResampleModes lists the bit depth and sample rate modes in declaration order.
func ResampleModes() []Mode {
	return []Mode{Depth16, Depth24, Depth16At44, Depth16At48, Depth24At44, Depth24At48}
}

// Resampling returns the target bit depth and sample rate in Hz. A zero rate
// keeps the source rate. ok is false for modes that do not resample.
func (m Mode) Resampling() (bits, rate int, ok bool) {
	r, ok := resampleModes[m]
	return r.bits, r.rate, ok
}

// TakesParameter reports whether descriptors in this mode carry a numeric value.
func (m Mode) TakesParameter() bool {
	if _, _, ok := m.Resampling(); ok {
		return false
	}
	return m != Lossless
}

var extensions = map[Codec]string{
	MP3:    ".mp3",
	Opus:   ".opus",
	Vorbis: ".ogg",
	AAC:    ".m4a",
	FLAC:   ".flac",
	ALAC:   ".m4a",
	WAV:    ".wav",
}

var aliases = map[Codec][]string{
	Vorbis: {"Ogg Vorbis"},
	Opus:   {"Ogg Opus"},
	ALAC:   {"Apple Lossless"},
}

// Extension returns the output file extension for c, including the dot.
func Extension(c Codec) string {
	return extensions[c]
}

// Names returns the canonical name of c followed by its aliases.
func Names(c Codec) []string {
	return append([]string{string(c)}, aliases[c]...)
}

// Range is the set of accepted parameter values: either the closed interval
// [Min, Max] or, when Set is non-empty, exactly the listed values.
type Range struct {
	Min      float64
	Max      float64
	Set      []float64
	Integral bool
}

// Between returns an interval range.
func Between(minValue, maxValue float64) Range {
	return Range{Min: minValue, Max: maxValue}
}

// WholeBetween returns an interval range accepting only whole numbers.
func WholeBetween(minValue, maxValue float64) Range {
	return Range{Min: minValue, Max: maxValue, Integral: true}
}

// OneOf returns an enumerated range.
func OneOf(values ...float64) Range {
	set := append([]float64(nil), values...)
	slices.Sort(set)
	return Range{Set: set}
}

// IsZero reports whether r is the empty range used by parameterless modes.
func (r Range) IsZero() bool {
	return len(r.Set) == 0 && r.Min == 0 && r.Max == 0 && !r.Integral
}

// Contains reports whether v is an accepted value.
func (r Range) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if len(r.Set) > 0 {
		return slices.Contains(r.Set, v)
	}
	if r.Integral && v != math.Trunc(v) {
		return false
	}
	return v >= r.Min && v <= r.Max
}

// String renders "min-max" or a comma separated set.
func (r Range) String() string {
	if len(r.Set) > 0 {
		parts := make([]string, len(r.Set))
		for i, v := range r.Set {
			parts[i] = FormatNumber(v)
		}
		return strings.Join(parts, ",")
	}
	return FormatNumber(r.Min) + "-" + FormatNumber(r.Max)
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Capability is one (tool, codec, mode) assertion from the registry table.
type Capability struct {
	ToolID    string
	Codec     Codec
	Mode      Mode
	ParamName string
	Unit      string
	Range     Range
	Priority  int
}

// Descriptor is a parsed target format.
type Descriptor struct {
	Codec        Codec
	Mode         Mode
	Parameter    float64
	HasParameter bool
	ParamName    string
	Unit         string
	Range        Range
}

// Label renders the descriptor the way users write it, e.g. "MP3 CBR 320".
// Lossless descriptors render as the bare codec name.
func (d Descriptor) Label() string {
	if d.Mode == Lossless || d.Mode == "" {
		return string(d.Codec)
	}
	if !d.HasParameter {
		return fmt.Sprintf("%s %s", d.Codec, d.Mode)
	}
	return fmt.Sprintf("%s %s %s", d.Codec, d.Mode, FormatNumber(d.Parameter))
}

func (d Descriptor) String() string {
	return d.Label()
}

// Extension returns the output file extension for the descriptor's codec.
func (d Descriptor) Extension() string {
	return Extension(d.Codec)
}

// Int returns the parameter rounded to the nearest integer.
func (d Descriptor) Int() int {
	return int(math.Round(d.Parameter))
}

// Param renders the parameter for command lines.
func (d Descriptor) Param() string {
	return FormatNumber(d.Parameter)
}
