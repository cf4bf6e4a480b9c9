package tags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"oats/internal/procexec"
	"oats/internal/staging"
)

// Writer applies tags to an encoded file through ffmpeg.
type Writer struct {
	// FFmpeg is the resolved ffmpeg executable. Empty disables writing.
	FFmpeg string
	Runner procexec.Runner
}

// ErrNoWriter is returned when no ffmpeg binary is configured.
var ErrNoWriter = errors.New("no tag writer available")

// pictureContainers can carry a cover as an attached picture stream under
// stream copy. Ogg and WAV outputs keep their text tags only.
var pictureContainers = []string{".mp3", ".flac", ".m4a"}

// CarriesPicture reports whether an output at path can hold a cover image.
func CarriesPicture(path string) bool {
	return slices.Contains(pictureContainers, strings.ToLower(filepath.Ext(path)))
}

// Write replaces the metadata of path with m. Nothing writable is a no-op.
func (w Writer) Write(ctx context.Context, path string, m Metadata) error {
	pic := m.Picture
	if pic != nil && !CarriesPicture(path) {
		pic = nil
	}
	if m.Tags.Empty() && pic == nil {
		return nil
	}
	if w.FFmpeg == "" {
		return ErrNoWriter
	}
	runner := w.Runner
	if runner == nil {
		runner = procexec.New(procexec.Options{})
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	tmp, err := os.CreateTemp(dir, staging.TempPrefix+"tag-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	var cover string
	if pic != nil {
		cover, err = writeCover(dir, pic)
		if err != nil {
			return err
		}
		defer func() {
			_ = os.Remove(cover)
		}()
	}

	if _, err := runner.Run(ctx, w.FFmpeg, Args(path, tmpPath, m.Tags, cover)); err != nil {
		return fmt.Errorf("ffmpeg tag remux: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace tagged output: %w", err)
	}
	return nil
}

func writeCover(dir string, pic *Picture) (string, error) {
	file, err := os.CreateTemp(dir, staging.TempPrefix+"cover-*."+pic.Ext)
	if err != nil {
		return "", fmt.Errorf("create cover file: %w", err)
	}
	if _, err := file.Write(pic.Data); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write cover file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("close cover file: %w", err)
	}
	return file.Name(), nil
}

// Args builds the ffmpeg remux command that copies in to out with t applied.
// A non-empty cover path is attached as the front cover picture.
func Args(in, out string, t Tags, cover string) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", in}
	if cover != "" {
		args = append(args, "-i", cover, "-map", "0:a", "-map", "1:0", "-c", "copy",
			"-disposition:v:0", "attached_pic", "-metadata:s:v:0", "comment=Cover (front)")
	} else {
		args = append(args, "-map", "0", "-c", "copy")
	}
	args = append(args, "-map_metadata", "-1")
	for _, key := range t.Keys() {
		args = append(args, "-metadata", key+"="+t[key])
	}
	return append(args, out)
}
