package tags_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"oats/internal/media/tags"
	"oats/internal/staging"
	"oats/internal/testsupport"
)

func TestReadFLACComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.flac")
	testsupport.WriteFLAC(t, path, map[string]string{
		"title":       "  Opening   Theme ",
		"artist":      "Example Band",
		"album":       "Example",
		"tracknumber": "3",
	})

	got, err := tags.Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if got.Tags[tags.KeyTitle] != "Opening Theme" {
		t.Fatalf("expected collapsed title, got %q", got.Tags[tags.KeyTitle])
	}
	if got.Tags[tags.KeyArtist] != "Example Band" || got.Tags[tags.KeyAlbum] != "Example" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if got.Tags[tags.KeyTrack] != "3" {
		t.Fatalf("unexpected track: %q", got.Tags[tags.KeyTrack])
	}
	if got.Picture != nil {
		t.Fatalf("expected no picture, got %+v", got.Picture)
	}
}

func TestReadUntaggedFormatIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	testsupport.WriteFile(t, path, 4096)

	got, err := tags.Read(path)
	if err != nil {
		t.Fatalf("expected untagged file to read cleanly, got %v", err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty tags, got %v", got)
	}
}

func TestReadFailures(t *testing.T) {
	if _, err := tags.Read(filepath.Join(t.TempDir(), "missing.flac")); err == nil {
		t.Fatal("expected error for missing file")
	}
	truncated := filepath.Join(t.TempDir(), "short.flac")
	if err := os.WriteFile(truncated, []byte("fLa"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tags.Read(truncated); err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestWriterRemuxesWithMetadata(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	ffmpeg := testsupport.StubScript(t, filepath.Join(dir, "bin"), "ffmpeg",
		`echo "$@" > `+argsFile+"\n"+testsupport.CopyStubBody)

	output := filepath.Join(dir, "a.mp3")
	testsupport.WriteFile(t, output, 512)

	w := tags.Writer{FFmpeg: ffmpeg}
	meta := tags.Metadata{Tags: tags.Tags{tags.KeyTitle: "Song", tags.KeyArtist: "Band"}}
	if err := w.Write(context.Background(), output, meta); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-map 0 -c copy", "-metadata artist=Band", "-metadata title=Song"} {
		if !strings.Contains(string(recorded), want) {
			t.Fatalf("expected %q in ffmpeg args: %s", want, recorded)
		}
	}
	if info, err := os.Stat(output); err != nil || info.Size() != 512 {
		t.Fatalf("expected output to be replaced in place: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), staging.TempPrefix) {
			t.Fatalf("leftover temp file %s", entry.Name())
		}
	}
}

func TestWriterWithoutFFmpeg(t *testing.T) {
	w := tags.Writer{}
	if err := w.Write(context.Background(), "a.mp3", tags.Metadata{}); err != nil {
		t.Fatalf("empty metadata should be a no-op, got %v", err)
	}
	cover := &tags.Picture{MIMEType: "image/png", Ext: "png", Data: []byte("png")}
	if err := w.Write(context.Background(), "a.opus", tags.Metadata{Picture: cover}); err != nil {
		t.Fatalf("a cover alone on an Ogg output should be a no-op, got %v", err)
	}
	if err := w.Write(context.Background(), "a.mp3", tags.Metadata{Tags: tags.Tags{tags.KeyTitle: "x"}}); err != tags.ErrNoWriter {
		t.Fatalf("expected ErrNoWriter, got %v", err)
	}
}

func TestArgsAreSorted(t *testing.T) {
	args := tags.Args("in.ogg", "out.ogg", tags.Tags{"title": "b", "album": "a", "genre": " "}, "")
	if args[len(args)-1] != "out.ogg" {
		t.Fatalf("output must be last: %v", args)
	}
	albumIdx := slices.Index(args, "album=a")
	titleIdx := slices.Index(args, "title=b")
	if albumIdx < 0 || titleIdx < 0 || albumIdx > titleIdx {
		t.Fatalf("expected sorted metadata args: %v", args)
	}
	if slices.Contains(args, "genre= ") {
		t.Fatalf("blank values must be skipped: %v", args)
	}
}

func TestReadFLACPicture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.flac")
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 'c', 'o', 'v', 'e', 'r'}
	testsupport.WriteFLACWithPicture(t, path, map[string]string{"title": "Song"}, "image/jpeg", jpeg)

	got, err := tags.Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if got.Tags[tags.KeyTitle] != "Song" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if got.Picture == nil {
		t.Fatal("expected embedded picture")
	}
	if got.Picture.MIMEType != "image/jpeg" || got.Picture.Ext != "jpg" || string(got.Picture.Data) != string(jpeg) {
		t.Fatalf("unexpected picture: %+v", got.Picture)
	}
}

func TestWriterAttachesCover(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	coverCopy := filepath.Join(dir, "cover-seen")
	// Copies the first input to the output and keeps the second input so the
	// test can check what the writer handed over.
	ffmpeg := testsupport.StubScript(t, filepath.Join(dir, "bin"), "ffmpeg", `echo "$@" > `+argsFile+`
prev=""; first=""; last=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then
    if [ -z "$first" ]; then first="$a"; else cp "$a" `+coverCopy+`; fi
  fi
  prev="$a"; last="$a"
done
cp "$first" "$last"`)

	source := filepath.Join(dir, "src", "a.flac")
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 'a', 'r', 't'}
	testsupport.WriteFLACWithPicture(t, source, map[string]string{"title": "Song"}, "image/jpeg", jpeg)
	meta, err := tags.Read(source)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	output := filepath.Join(outDir, "a.mp3")
	testsupport.WriteFile(t, output, 256)
	w := tags.Writer{FFmpeg: ffmpeg}
	if err := w.Write(context.Background(), output, meta); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-map 0:a -map 1:0 -c copy", "-disposition:v:0 attached_pic", "-metadata title=Song"} {
		if !strings.Contains(string(recorded), want) {
			t.Fatalf("expected %q in ffmpeg args: %s", want, recorded)
		}
	}
	if !strings.Contains(string(recorded), staging.TempPrefix+"cover-") || !strings.Contains(string(recorded), ".jpg") {
		t.Fatalf("expected a staged .jpg cover input: %s", recorded)
	}
	seen, err := os.ReadFile(coverCopy)
	if err != nil || string(seen) != string(jpeg) {
		t.Fatalf("ffmpeg did not receive the embedded picture: %q %v", seen, err)
	}
	if info, err := os.Stat(output); err != nil || info.Size() != 256 {
		t.Fatalf("expected output to be replaced in place: %v", err)
	}
	entries, _ := os.ReadDir(outDir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), staging.TempPrefix) {
			t.Fatalf("leftover temp file %s", entry.Name())
		}
	}
}

func TestCoverOnlyForPictureContainers(t *testing.T) {
	for path, want := range map[string]bool{
		"a.mp3": true, "a.FLAC": true, "a.m4a": true,
		"a.opus": false, "a.ogg": false, "a.wav": false,
	} {
		if got := tags.CarriesPicture(path); got != want {
			t.Fatalf("CarriesPicture(%q) = %v, want %v", path, got, want)
		}
	}
	args := tags.Args("in.flac", "out.flac", tags.Tags{}, "cover.png")
	if !slices.Contains(args, "cover.png") || !slices.Contains(args, "attached_pic") {
		t.Fatalf("expected cover input and disposition: %v", args)
	}
}
