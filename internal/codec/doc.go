// Package codec describes the external audio tools OATS can drive and picks
// one for a requested output format.
//
// A Registry is built once from a static table of Tool definitions. Each tool
// declares Capabilities, one per (codec, mode) pair, with the parameter unit,
// the accepted range and a priority where lower numbers are preferred.
// Availability is resolved lazily, at most once per tool, by looking up the
// executable on PATH; after that the registry is read-only and safe for
// concurrent use by transcode workers.
//
// Two tool kinds exist: dedicated encoders (lame, opusenc, oggenc, fdkaac,
// flac) and the baseline multiplexer (ffmpeg), which declares broad support at
// a lower priority so it only wins when no dedicated tool is present.
package codec
