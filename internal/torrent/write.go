package torrent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"oats/internal/fileutil"
	"oats/internal/textutil"
)

// WriteFile encodes meta and writes it to path. An existing file is left
// alone and ErrExists returned unless overwrite is set.
func WriteFile(path string, meta *Metainfo, overwrite bool) error {
	if !overwrite && fileutil.Exists(path) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	data, err := meta.Encode()
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Result describes a written torrent.
type Result struct {
	Path     string
	Meta     *Metainfo
	InfoHash string
	Magnet   string
}

// FileName returns the .torrent file name used for a content root.
func FileName(root string) string {
	return textutil.SanitizeFileName(filepath.Base(filepath.Clean(root))) + ".torrent"
}

// MakeTorrent builds the metainfo for root and writes it into torrentDir as
// "<root name>.torrent". It runs after the content is final; partial hashes
// never reach disk.
func MakeTorrent(ctx context.Context, root, torrentDir string, opts Options, overwrite bool) (Result, error) {
	if err := os.MkdirAll(torrentDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create torrent directory: %w", err)
	}
	target := filepath.Join(torrentDir, FileName(root))
	if !overwrite && fileutil.Exists(target) {
		return Result{}, fmt.Errorf("%w: %s", ErrExists, target)
	}

	meta, err := Build(ctx, root, opts)
	if err != nil {
		return Result{}, err
	}
	if err := WriteFile(target, meta, overwrite); err != nil {
		return Result{}, err
	}

	hash, err := meta.InfoHash()
	if err != nil {
		return Result{}, err
	}
	magnet, err := meta.Magnet()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Path:     target,
		Meta:     meta,
		InfoHash: fmt.Sprintf("%x", hash),
		Magnet:   magnet,
	}, nil
}
