// Package textutil cleans user-visible names before they become output
// directory and .torrent file names.
package textutil
