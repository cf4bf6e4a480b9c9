// Package torrent builds, writes and verifies BitTorrent v1 metainfo files
// for finished output trees. Nothing here talks to a tracker.
package torrent

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackpal/bencode-go"
)

// HashSize is the length of one piece digest.
const HashSize = sha1.Size

var (
	// ErrEmptyTree reports a root with no regular file content to hash.
	ErrEmptyTree = errors.New("torrent: empty tree")
	// ErrBuildAborted reports a file that became unreadable or changed size
	// while hashing. No metainfo is produced.
	ErrBuildAborted = errors.New("torrent: build aborted")
	// ErrExists reports an existing .torrent that overwrite was not allowed
	// to replace.
	ErrExists = errors.New("torrent: file already exists")
)

// File is one entry of the logical byte stream.
type File struct {
	Path   []string
	Length int64

	abs string
}

// Metainfo is the in-memory form of a .torrent file.
type Metainfo struct {
	Announce     string
	AnnounceList [][]string
	CreatedBy    string

	Name        string
	PieceLength int64
	Pieces      [][HashSize]byte
	Private     bool
	Source      string

	// Files holds the stream entries in order. A single-file torrent has
	// exactly one entry with an empty Path.
	Files      []File
	SingleFile bool
}

// TotalLength sums the length of every file.
func (m *Metainfo) TotalLength() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Length
	}
	return total
}

// InfoDict returns the info dictionary in bencodable form. bencode has no
// boolean, so the private flag is the integer 1.
func (m *Metainfo) InfoDict() map[string]any {
	pieces := make([]byte, 0, len(m.Pieces)*HashSize)
	for _, p := range m.Pieces {
		pieces = append(pieces, p[:]...)
	}
	info := map[string]any{
		"name":         m.Name,
		"piece length": m.PieceLength,
		"pieces":       pieces,
	}
	if m.SingleFile && len(m.Files) == 1 {
		info["length"] = m.Files[0].Length
	} else {
		files := make([]any, 0, len(m.Files))
		for _, f := range m.Files {
			files = append(files, map[string]any{
				"length": f.Length,
				"path":   f.Path,
			})
		}
		info["files"] = files
	}
	if m.Private {
		info["private"] = int64(1)
	}
	if m.Source != "" {
		info["source"] = m.Source
	}
	return info
}

// Encode serializes the metainfo with canonical bencoding. The output holds
// no timestamps, so identical content yields identical bytes.
func (m *Metainfo) Encode() ([]byte, error) {
	top := map[string]any{
		"info": m.InfoDict(),
	}
	if m.Announce != "" {
		top["announce"] = m.Announce
	}
	if len(m.AnnounceList) > 0 {
		top["announce-list"] = m.AnnounceList
	}
	if m.CreatedBy != "" {
		top["created by"] = m.CreatedBy
	}
	data, err := marshal(top)
	if err != nil {
		return nil, fmt.Errorf("encode metainfo: %w", err)
	}
	return data, nil
}

// InfoHash returns the SHA-1 of the bencoded info dictionary.
func (m *Metainfo) InfoHash() ([HashSize]byte, error) {
	data, err := marshal(m.InfoDict())
	if err != nil {
		return [HashSize]byte{}, fmt.Errorf("encode info: %w", err)
	}
	return sha1.Sum(data), nil
}

// marshal encodes v with dictionary keys sorted byte-wise, which is the
// canonical form the info hash depends on.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Magnet returns a magnet link carrying the info hash, display name and
// trackers.
func (m *Metainfo) Magnet() (string, error) {
	hash, err := m.InfoHash()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(hex.EncodeToString(hash[:]))
	if m.Name != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(m.Name))
	}
	for _, tracker := range m.trackers() {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tracker))
	}
	return b.String(), nil
}

func (m *Metainfo) trackers() []string {
	if len(m.AnnounceList) == 0 {
		if m.Announce == "" {
			return nil
		}
		return []string{m.Announce}
	}
	var out []string
	for _, tier := range m.AnnounceList {
		out = append(out, tier...)
	}
	return out
}
