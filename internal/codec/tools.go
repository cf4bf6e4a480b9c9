package codec

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Kind distinguishes dedicated encoders from the baseline multiplexer.
type Kind int

const (
	DedicatedEncoder Kind = iota
	BaselineMultiplexer
)

func (k Kind) String() string {
	switch k {
	case BaselineMultiplexer:
		return "baseline"
	default:
		return "dedicated"
	}
}

// Default priorities; lower is preferred.
const (
	DedicatedPriority = 10
	BaselinePriority  = 100
)

// EncodeArgsFunc builds the argument vector that encodes in to out.
type EncodeArgsFunc func(d Descriptor, in, out string) []string

// DecodeArgsFunc builds the argument vector that decodes in to a WAV file at out.
type DecodeArgsFunc func(in, out string) []string

// Tool is a static registry entry for an external executable.
type Tool struct {
	ID           string
	Executable   string
	Kind         Kind
	Capabilities []Capability
	// Reads lists input extensions (lowercase, with dot) the encoder accepts.
	// A nil list with ReadsAny set accepts everything.
	Reads    []string
	ReadsAny bool
	// Decodes lists extensions the tool can decode to WAV.
	Decodes    []string
	DecodesAny bool
	Encode     EncodeArgsFunc
	Decode     DecodeArgsFunc
}

// CanRead reports whether the encoder accepts a source with the given path.
func (t Tool) CanRead(path string) bool {
	if t.ReadsAny {
		return true
	}
	return slices.Contains(t.Reads, strings.ToLower(filepath.Ext(path)))
}

// CanDecode reports whether the tool can decode the given path to WAV.
func (t Tool) CanDecode(path string) bool {
	if t.Decode == nil {
		return false
	}
	if t.DecodesAny {
		return true
	}
	return slices.Contains(t.Decodes, strings.ToLower(filepath.Ext(path)))
}

func capability(toolID string, priority int, c Codec, m Mode, param, unit string, r Range) Capability {
	return Capability{ToolID: toolID, Codec: c, Mode: m, ParamName: param, Unit: unit, Range: r, Priority: priority}
}

func lossless(toolID string, priority int, c Codec) Capability {
	return Capability{ToolID: toolID, Codec: c, Mode: Lossless, Priority: priority}
}

func resampled(toolID string, priority int, c Codec) []Capability {
	var out []Capability
	for _, m := range ResampleModes() {
		out = append(out, Capability{ToolID: toolID, Codec: c, Mode: m, Priority: priority})
	}
	return out
}

var pcmInputs = []string{".wav", ".aiff", ".aif"}

// DefaultTools returns the built-in registry table in declaration order.
func DefaultTools() []Tool {
	return []Tool{
		lameTool(),
		opusencTool(),
		oggencTool(),
		fdkaacTool(),
		flacTool(),
		ffmpegTool(),
	}
}

func lameTool() Tool {
	const id = "lame"
	common := []string{"-q", "0", "--noreplaygain", "--quiet"}
	return Tool{
		ID:         id,
		Executable: "lame",
		Kind:       DedicatedEncoder,
		Capabilities: []Capability{
			capability(id, DedicatedPriority, MP3, CBR, "bitrate", "kbps", WholeBetween(8, 320)),
			capability(id, DedicatedPriority, MP3, VBR, "quality", "level", Between(0, 9)),
			capability(id, DedicatedPriority, MP3, ABR, "bitrate", "kbps", WholeBetween(8, 320)),
		},
		Reads:   append([]string{}, pcmInputs...),
		Decodes: []string{".mp3"},
		Encode: func(d Descriptor, in, out string) []string {
			var args []string
			switch d.Mode {
			case CBR:
				args = []string{"--cbr", "-b", d.Param()}
			case VBR:
				args = []string{"-V", d.Param()}
			case ABR:
				args = []string{"--abr", d.Param()}
			}
			args = append(args, common...)
			return append(args, in, out)
		},
		Decode: func(in, out string) []string {
			return []string{"--quiet", "--decode", in, out}
		},
	}
}

func opusencTool() Tool {
	const id = "opusenc"
	return Tool{
		ID:         id,
		Executable: "opusenc",
		Kind:       DedicatedEncoder,
		Capabilities: []Capability{
			capability(id, DedicatedPriority, Opus, VBR, "bitrate", "kbps", Between(6, 512)),
			capability(id, DedicatedPriority, Opus, CBR, "bitrate", "kbps", Between(6, 512)),
		},
		Reads: []string{".wav", ".aiff", ".aif", ".flac"},
		Encode: func(d Descriptor, in, out string) []string {
			mode := "--vbr"
			if d.Mode == CBR {
				mode = "--hard-cbr"
			}
			return []string{"--quiet", mode, "--bitrate", d.Param(), in, out}
		},
	}
}

func oggencTool() Tool {
	const id = "oggenc"
	return Tool{
		ID:         id,
		Executable: "oggenc",
		Kind:       DedicatedEncoder,
		Capabilities: []Capability{
			capability(id, DedicatedPriority, Vorbis, VBR, "quality", "level", Between(-1, 10)),
			capability(id, DedicatedPriority, Vorbis, ABR, "bitrate", "kbps", WholeBetween(45, 500)),
		},
		Reads: []string{".wav", ".aiff", ".aif", ".flac"},
		Encode: func(d Descriptor, in, out string) []string {
			args := []string{"--quiet"}
			if d.Mode == ABR {
				args = append(args, "-b", d.Param())
			} else {
				args = append(args, "-q", d.Param())
			}
			return append(args, "-o", out, in)
		},
	}
}

func fdkaacTool() Tool {
	const id = "fdkaac"
	return Tool{
		ID:         id,
		Executable: "fdkaac",
		Kind:       DedicatedEncoder,
		Capabilities: []Capability{
			capability(id, DedicatedPriority, AAC, CBR, "bitrate", "kbps", WholeBetween(8, 320)),
			capability(id, DedicatedPriority, AAC, VBR, "quality", "level", OneOf(1, 2, 3, 4, 5)),
		},
		Reads: []string{".wav"},
		Encode: func(d Descriptor, in, out string) []string {
			args := []string{"--silent"}
			if d.Mode == CBR {
				args = append(args, "-m", "0", "-b", d.Param())
			} else {
				args = append(args, "-m", d.Param())
			}
			return append(args, "-o", out, in)
		},
	}
}

func flacTool() Tool {
	const id = "flac"
	return Tool{
		ID:           id,
		Executable:   "flac",
		Kind:         DedicatedEncoder,
		Capabilities: []Capability{lossless(id, DedicatedPriority, FLAC)},
		Reads:        []string{".wav", ".aiff", ".aif", ".flac"},
		Decodes:      []string{".flac"},
		Encode: func(_ Descriptor, in, out string) []string {
			return []string{"--silent", "-8", "-f", "-o", out, in}
		},
		Decode: func(in, out string) []string {
			return []string{"--silent", "-d", "-f", "-o", out, in}
		},
	}
}

func ffmpegTool() Tool {
	const id = "ffmpeg"
	p := BaselinePriority
	caps := []Capability{
		capability(id, p, MP3, CBR, "bitrate", "kbps", WholeBetween(8, 320)),
		capability(id, p, MP3, VBR, "quality", "level", Between(0, 9)),
		capability(id, p, MP3, ABR, "bitrate", "kbps", WholeBetween(8, 320)),
		capability(id, p, Opus, VBR, "bitrate", "kbps", Between(6, 512)),
		capability(id, p, Opus, CBR, "bitrate", "kbps", Between(6, 512)),
		capability(id, p, Vorbis, VBR, "quality", "level", Between(0, 10)),
		capability(id, p, AAC, CBR, "bitrate", "kbps", WholeBetween(32, 512)),
		capability(id, p, AAC, VBR, "quality", "level", Between(0.1, 2)),
		lossless(id, p, FLAC),
		lossless(id, p, ALAC),
		lossless(id, p, WAV),
	}
	// The flac CLI cannot requantize or resample, so only ffmpeg offers these.
	caps = append(caps, resampled(id, p, FLAC)...)
	return Tool{
		ID:           id,
		Executable:   "ffmpeg",
		Kind:         BaselineMultiplexer,
		Capabilities: caps,
		ReadsAny:     true,
		DecodesAny:   true,
		Encode:       ffmpegEncodeArgs,
		Decode: func(in, out string) []string {
			return append(ffmpegHead(in), "-map", "0:a:0", "-map_metadata", "-1", out)
		},
	}
}

func ffmpegHead(in string) []string {
	return []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-threads", "1", "-i", in}
}

func ffmpegEncodeArgs(d Descriptor, in, out string) []string {
	args := append(ffmpegHead(in), "-map", "0:a:0", "-map_metadata", "-1")
	kbps := d.Param() + "k"
	switch d.Codec {
	case MP3:
		args = append(args, "-c:a", "libmp3lame")
		switch d.Mode {
		case CBR:
			args = append(args, "-b:a", kbps)
		case VBR:
			args = append(args, "-q:a", d.Param())
		case ABR:
			args = append(args, "-b:a", kbps, "-abr", "1")
		}
		args = append(args, "-compression_level", "0")
	case Opus:
		vbr := "on"
		if d.Mode == CBR {
			vbr = "off"
		}
		args = append(args, "-c:a", "libopus", "-b:a", kbps, "-vbr", vbr)
	case Vorbis:
		args = append(args, "-c:a", "libvorbis", "-q:a", d.Param())
	case AAC:
		args = append(args, "-c:a", "aac")
		if d.Mode == CBR {
			args = append(args, "-b:a", kbps)
		} else {
			args = append(args, "-q:a", d.Param())
		}
	case FLAC:
		args = append(args, "-c:a", "flac", "-compression_level", "8")
		args = append(args, resampleArgs(d.Mode)...)
	case ALAC:
		args = append(args, "-c:a", "alac")
	case WAV:
		args = append(args, "-c:a", "pcm_s16le")
	}
	return append(args, out)
}

// resampleArgs maps a bit depth and sample rate mode onto ffmpeg sample
// format and rate options. 24-bit FLAC is carried in s32 samples.
func resampleArgs(m Mode) []string {
	bits, rate, ok := m.Resampling()
	if !ok {
		return nil
	}
	var args []string
	if bits == 16 {
		args = append(args, "-sample_fmt", "s16")
	} else {
		args = append(args, "-sample_fmt", "s32", "-bits_per_raw_sample", "24")
	}
	if rate > 0 {
		args = append(args, "-ar", strconv.Itoa(rate))
	}
	return args
}
