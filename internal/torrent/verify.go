package torrent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackpal/bencode-go"
)

// Report is the outcome of Verify.
type Report struct {
	Name        string
	Announce    string
	PieceLength int64
	Pieces      int
	TotalLength int64
	Files       int
	Missing     []string
	Mismatched  []string
	BadPieces   []int
}

// OK reports whether the content matched the metainfo exactly.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0 && len(r.BadPieces) == 0
}

// Decode parses a .torrent file with an independent bencode reader.
func Decode(path string) (*Metainfo, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	raw, err := bencode.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	top, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decode %s: top level is not a dictionary", path)
	}
	info, ok := top["info"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decode %s: missing info dictionary", path)
	}

	meta := &Metainfo{
		Announce:    stringValue(top["announce"]),
		CreatedBy:   stringValue(top["created by"]),
		Name:        stringValue(info["name"]),
		PieceLength: intValue(info["piece length"]),
		Private:     intValue(info["private"]) == 1,
		Source:      stringValue(info["source"]),
	}
	if tiers, ok := top["announce-list"].([]interface{}); ok {
		for _, tier := range tiers {
			items, _ := tier.([]interface{})
			var urls []string
			for _, item := range items {
				urls = append(urls, stringValue(item))
			}
			meta.AnnounceList = append(meta.AnnounceList, urls)
		}
	}

	pieces := stringValue(info["pieces"])
	if len(pieces)%HashSize != 0 {
		return nil, fmt.Errorf("decode %s: pieces length %d is not a multiple of %d", path, len(pieces), HashSize)
	}
	for i := 0; i < len(pieces); i += HashSize {
		var p [HashSize]byte
		copy(p[:], pieces[i:i+HashSize])
		meta.Pieces = append(meta.Pieces, p)
	}

	if list, ok := info["files"].([]interface{}); ok {
		for _, entry := range list {
			dict, _ := entry.(map[string]interface{})
			var parts []string
			if segs, ok := dict["path"].([]interface{}); ok {
				for _, seg := range segs {
					parts = append(parts, stringValue(seg))
				}
			}
			meta.Files = append(meta.Files, File{Path: parts, Length: intValue(dict["length"])})
		}
	} else {
		meta.SingleFile = true
		meta.Files = []File{{Length: intValue(info["length"])}}
	}
	if meta.PieceLength <= 0 {
		return nil, fmt.Errorf("decode %s: invalid piece length %d", path, meta.PieceLength)
	}
	return meta, nil
}

// Verify decodes torrentPath and re-hashes the content under contentPath.
// contentPath may be the content root itself or its parent directory.
func Verify(ctx context.Context, torrentPath, contentPath string) (Report, error) {
	meta, err := Decode(torrentPath)
	if err != nil {
		return Report{}, err
	}
	root := resolveContentRoot(contentPath, meta.Name)

	report := Report{
		Name:        meta.Name,
		Announce:    meta.Announce,
		PieceLength: meta.PieceLength,
		Pieces:      len(meta.Pieces),
		TotalLength: meta.TotalLength(),
		Files:       len(meta.Files),
	}

	files := make([]File, len(meta.Files))
	for i, f := range meta.Files {
		f.abs = root
		if !meta.SingleFile {
			f.abs = filepath.Join(append([]string{root}, f.Path...)...)
		}
		files[i] = f
		info, err := os.Stat(f.abs)
		switch {
		case err != nil:
			report.Missing = append(report.Missing, f.abs)
		case info.Size() != f.Length:
			report.Mismatched = append(report.Mismatched, f.abs)
		}
	}
	if len(report.Missing) > 0 || len(report.Mismatched) > 0 {
		return report, nil
	}

	pieces, err := HashPieces(ctx, files, meta.PieceLength)
	if err != nil {
		return report, err
	}
	for i, want := range meta.Pieces {
		if i >= len(pieces) || pieces[i] != want {
			report.BadPieces = append(report.BadPieces, i)
		}
	}
	for i := len(meta.Pieces); i < len(pieces); i++ {
		report.BadPieces = append(report.BadPieces, i)
	}
	return report, nil
}

func resolveContentRoot(contentPath, name string) string {
	contentPath = filepath.Clean(contentPath)
	if name == "" || filepath.Base(contentPath) == name {
		return contentPath
	}
	candidate := filepath.Join(contentPath, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return contentPath
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func intValue(v interface{}) int64 {
	n, _ := v.(int64)
	return n
}
