// Package preflight provides readiness checks for the filesystem paths and
// helper binaries OATS depends on.
//
// These checks run in two contexts:
//   - The transcode command calls RunAll before planning a batch. A failing
//     check stops the run before any job is scheduled.
//   - The CLI "oats tools" command renders every result next to the tool
//     availability table.
//
// Torrent directory checks are gated by the torrent toggle.
package preflight
