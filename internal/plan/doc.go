// Package plan expands target directories and formats into transcode jobs,
// extra-file copies and per-format destination directories.
//
// For each target and format the destination is
// "<output dir>/<target name> [<FORMAT LABEL>]". A trailing bracketed tag
// that already names a codec, such as "[FLAC]", is replaced instead of
// appended. Lossless sources become jobs, lossy sources are skipped and
// everything else is copied verbatim when extras are enabled.
package plan
