// Package tags reads text metadata and the embedded cover picture from audio
// sources and writes them onto encoded outputs.
//
// Reading uses github.com/dhowden/tag and normalizes fields into a flat map
// keyed by ffmpeg metadata names. Writing remuxes the output through ffmpeg
// with stream copy into a sibling temporary file that replaces the original
// only on success. Covers are attached only to containers that hold picture
// streams.
package tags
