// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// audio sources.
//
// Key types:
//   - Result: parsed ffprobe output containing audio streams and format metadata
//   - Stream: individual audio stream properties
//   - Format: container-level metadata (duration, tags)
//
// Inspect executes ffprobe and returns the parsed Result; Parse decodes an
// already captured document.
package ffprobe
