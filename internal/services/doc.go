// Package services defines shared utilities consumed by the transcode
// pipeline, the torrent builder, and the CLI.
//
// Key responsibilities:
//   - Context helpers that carry batch IDs, job IDs, stage names and the
//     output format label for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration vs external tool vs missing input) so callers can report
//     them consistently.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across the tool.
package services
