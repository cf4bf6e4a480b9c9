package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"oats/internal/procexec"
)

// Result is the subset of ffprobe's JSON output the probe stage reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one audio stream.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	BitsPerSample string `json:"bits_per_raw_sample"`
	Duration      string `json:"duration"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Tags       map[string]string `json:"tags"`
}

// Inspect runs ffprobe on path and decodes its JSON report. Only audio
// streams are requested. A non-zero exit carries ffprobe's last stderr line.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stdout bytes.Buffer
	runner := procexec.New(procexec.Options{
		OnStdout: func(line string) {
			stdout.WriteString(line)
			stdout.WriteByte('\n')
		},
	})
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-select_streams", "a", "-of", "json", "--", path}
	if _, err := runner.Run(ctx, binary, args); err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(stdout.Bytes())
}

// Parse decodes an ffprobe JSON document.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// PrimaryAudio returns the first audio stream.
func (r Result) PrimaryAudio() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration, falling back to the
// primary stream. It is 0 when neither reports one and NaN when the value
// does not parse.
func (r Result) DurationSeconds() float64 {
	d := parseFloat(r.Format.Duration)
	if d == 0 || math.IsNaN(d) {
		if stream, ok := r.PrimaryAudio(); ok {
			return parseFloat(stream.Duration)
		}
	}
	return d
}

// SampleRateHz returns the stream sample rate, or 0 when unknown.
func (s Stream) SampleRateHz() int {
	hz, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	if err != nil || hz < 0 {
		return 0
	}
	return hz
}

// BitDepth returns the raw sample width in bits, or 0 for formats that do
// not report one.
func (s Stream) BitDepth() int {
	bits, err := strconv.Atoi(strings.TrimSpace(s.BitsPerSample))
	if err != nil || bits < 0 {
		return 0
	}
	return bits
}

// Tags returns container tags with lowercased keys. Blank values are
// dropped.
func (r Result) Tags() map[string]string {
	out := make(map[string]string, len(r.Format.Tags))
	for key, value := range r.Format.Tags {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || strings.TrimSpace(value) == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
