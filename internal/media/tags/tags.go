package tags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// Standard keys, named after ffmpeg's generic metadata fields.
const (
	KeyTitle       = "title"
	KeyArtist      = "artist"
	KeyAlbum       = "album"
	KeyAlbumArtist = "album_artist"
	KeyComposer    = "composer"
	KeyGenre       = "genre"
	KeyDate        = "date"
	KeyTrack       = "track"
	KeyDisc        = "disc"
	KeyComment     = "comment"
)

// Tags is a flat set of text metadata.
type Tags map[string]string

// Keys returns the populated keys in sorted order.
func (t Tags) Keys() []string {
	keys := make([]string, 0, len(t))
	for k, v := range t {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether no key carries a value.
func (t Tags) Empty() bool {
	return len(t.Keys()) == 0
}

// Picture is an embedded cover image.
type Picture struct {
	MIMEType string
	// Ext is the file extension without the dot, e.g. "jpg".
	Ext  string
	Data []byte
}

// Metadata is everything copied from a source onto its outputs.
type Metadata struct {
	Tags    Tags
	Picture *Picture
}

// Empty reports whether there is neither a text tag nor a picture.
func (m Metadata) Empty() bool {
	return m.Tags.Empty() && m.Picture == nil
}

// Read opens path and extracts its tags and embedded picture. A file in a
// format without tag support yields empty metadata and no error; an
// unreadable or corrupt file returns an error.
func Read(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer file.Close()
	return ReadFrom(file)
}

// ReadFrom extracts metadata from r.
func ReadFrom(r io.ReadSeeker) (Metadata, error) {
	meta, err := tag.ReadFrom(r)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Metadata{Tags: Tags{}}, nil
		}
		return Metadata{}, fmt.Errorf("read tags: %w", err)
	}
	return FromMetadata(meta), nil
}

// FromMetadata converts a dhowden/tag Metadata value.
func FromMetadata(meta tag.Metadata) Metadata {
	if meta == nil {
		return Metadata{Tags: Tags{}}
	}
	return Metadata{Tags: textTags(meta), Picture: picture(meta.Picture())}
}

func picture(p *tag.Picture) *Picture {
	if p == nil || len(p.Data) == 0 {
		return nil
	}
	ext := strings.TrimPrefix(strings.ToLower(p.Ext), ".")
	if ext == "" {
		switch p.MIMEType {
		case "image/png":
			ext = "png"
		case "image/gif":
			ext = "gif"
		default:
			ext = "jpg"
		}
	}
	return &Picture{MIMEType: p.MIMEType, Ext: ext, Data: p.Data}
}

func textTags(meta tag.Metadata) Tags {
	out := Tags{}
	set := func(key, value string) {
		if cleaned := clean(value); cleaned != "" {
			out[key] = cleaned
		}
	}
	set(KeyTitle, meta.Title())
	set(KeyArtist, meta.Artist())
	set(KeyAlbum, meta.Album())
	set(KeyAlbumArtist, meta.AlbumArtist())
	set(KeyComposer, meta.Composer())
	set(KeyGenre, meta.Genre())
	set(KeyComment, meta.Comment())
	if year := meta.Year(); year > 0 {
		out[KeyDate] = strconv.Itoa(year)
	}
	if n, total := meta.Track(); n > 0 {
		out[KeyTrack] = ordinal(n, total)
	}
	if n, total := meta.Disc(); n > 0 {
		out[KeyDisc] = ordinal(n, total)
	}
	return out
}

func ordinal(n, total int) string {
	if total > 0 {
		return strconv.Itoa(n) + "/" + strconv.Itoa(total)
	}
	return strconv.Itoa(n)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
