// Package main hosts the OATS CLI entrypoint and command graph.
//
// The root command transcodes target directories into every requested
// format and, when enabled, builds a .torrent per output tree. Subcommands
// expose torrent creation and verification, the live format catalog, tool
// availability, run history, the log file, ntfy test messages and
// configuration scaffolding.
//
// Keep this package lean: behavior lives in the internal packages and is
// only wired together and rendered here.
package main
