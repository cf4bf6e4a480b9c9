package torrent

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// MinPieceLength is the smallest entry of the default piece table.
	MinPieceLength int64 = 16 << 10
	// MaxPieceLength is the largest entry of the default piece table.
	MaxPieceLength int64 = 16 << 20
	// DefaultMaxPieces caps the piece count when choosing a length.
	DefaultMaxPieces = 1024
)

// DefaultPieceTable lists the candidate piece lengths, ascending.
var DefaultPieceTable = func() []int64 {
	var table []int64
	for l := MinPieceLength; l <= MaxPieceLength; l <<= 1 {
		table = append(table, l)
	}
	return table
}()

// Options controls how Build lays out the metainfo.
type Options struct {
	// AnnounceURLs lists trackers in order. The first one becomes
	// "announce"; with more than one, each gets its own announce-list tier.
	AnnounceURLs []string
	Source       string
	Private      bool
	CreatedBy    string

	// PieceLength overrides the table lookup when positive.
	PieceLength int64
	// MaxPieces is the piece-count ceiling for the table lookup.
	MaxPieces int
	// PieceTable replaces DefaultPieceTable when set. Must be ascending.
	PieceTable []int64
}

// ChoosePieceLength returns the smallest table entry for which total bytes
// split into at most maxPieces pieces. When no entry fits the largest one is
// used.
func ChoosePieceLength(total int64, maxPieces int, table []int64) int64 {
	if len(table) == 0 {
		table = DefaultPieceTable
	}
	if maxPieces <= 0 {
		maxPieces = DefaultMaxPieces
	}
	for _, length := range table {
		if pieceCount(total, length) <= int64(maxPieces) {
			return length
		}
	}
	return table[len(table)-1]
}

func pieceCount(total, length int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total + length - 1) / length
}

// Build hashes the regular files under root (or root itself when it is a
// file) and returns the resulting metainfo.
func Build(ctx context.Context, root string, opts Options) (*Metainfo, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat torrent root: %w", err)
	}

	meta := &Metainfo{
		Name:      filepath.Base(root),
		Private:   opts.Private || opts.Source != "",
		Source:    opts.Source,
		CreatedBy: opts.CreatedBy,
	}
	if len(opts.AnnounceURLs) > 0 {
		meta.Announce = opts.AnnounceURLs[0]
	}
	if len(opts.AnnounceURLs) > 1 {
		for _, tracker := range opts.AnnounceURLs {
			meta.AnnounceList = append(meta.AnnounceList, []string{tracker})
		}
	}

	if info.Mode().IsRegular() {
		meta.SingleFile = true
		meta.Files = []File{{Length: info.Size(), abs: root}}
	} else if info.IsDir() {
		files, err := collectFiles(root)
		if err != nil {
			return nil, err
		}
		meta.Files = files
	} else {
		return nil, fmt.Errorf("torrent root %q is neither a file nor a directory", root)
	}

	total := meta.TotalLength()
	if len(meta.Files) == 0 || total == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTree, root)
	}

	meta.PieceLength = opts.PieceLength
	if meta.PieceLength <= 0 {
		meta.PieceLength = ChoosePieceLength(total, opts.MaxPieces, opts.PieceTable)
	}

	pieces, err := HashPieces(ctx, meta.Files, meta.PieceLength)
	if err != nil {
		return nil, err
	}
	meta.Pieces = pieces
	return meta, nil
}

func collectFiles(root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrBuildAborted, path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("%w: stat %s: %w", ErrBuildAborted, path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:   strings.Split(filepath.ToSlash(rel), "/"),
			Length: info.Size(),
			abs:    path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, func(a, b File) int {
		return slices.Compare(a.Path, b.Path)
	})
	return files, nil
}

// HashPieces streams files in order as one byte sequence and returns the
// SHA-1 of every pieceLength segment; the last one may be shorter. A file
// that cannot be read or whose size differs from its recorded length aborts
// the whole run.
func HashPieces(ctx context.Context, files []File, pieceLength int64) ([][HashSize]byte, error) {
	if pieceLength <= 0 {
		return nil, fmt.Errorf("invalid piece length %d", pieceLength)
	}
	buf := make([]byte, pieceLength)
	fill := 0
	var pieces [][HashSize]byte

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		read, err := func() (int64, error) {
			fh, err := os.Open(f.abs)
			if err != nil {
				return 0, err
			}
			defer fh.Close()

			var read int64
			for {
				n, err := fh.Read(buf[fill:])
				fill += n
				read += int64(n)
				if fill == len(buf) {
					pieces = append(pieces, sha1.Sum(buf))
					fill = 0
					if err := ctx.Err(); err != nil {
						return read, err
					}
				}
				if errors.Is(err, io.EOF) {
					return read, nil
				}
				if err != nil {
					return read, err
				}
			}
		}()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: read %s: %w", ErrBuildAborted, f.abs, err)
		}
		if read != f.Length {
			return nil, fmt.Errorf("%w: %s changed size: expected %d bytes, read %d", ErrBuildAborted, f.abs, f.Length, read)
		}
	}
	if fill > 0 {
		pieces = append(pieces, sha1.Sum(buf[:fill]))
	}
	return pieces, nil
}
