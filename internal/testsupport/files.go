package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// CopyStubBody is a shell body that behaves like an encoder by copying its
// input to its output. It understands "-i <in>", "-o <out>" and trailing
// "<in> <out>" argument conventions.
const CopyStubBody = `src=""; out=""; prev=""; prevlast=""; last=""
for a in "$@"; do
  case "$prev" in
    -o) out="$a" ;;
    -i) src="$a" ;;
  esac
  prevlast="$last"; last="$a"; prev="$a"
done
if [ -z "$out" ]; then
  out="$last"
  [ -z "$src" ] && src="$prevlast"
fi
[ -z "$src" ] && src="$last"
cp "$src" "$out"`

// StubScript writes an executable #!/bin/sh script named name into dir and
// returns its path.
func StubScript(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir stub dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeSized(t, path, size, func(buf []byte, _ int64) {
		for i := range buf {
			buf[i] = 0x42
		}
	})
}

// WritePattern writes size bytes whose values depend on their offset and
// seed, so distinct files and pieces hash differently.
func WritePattern(t testing.TB, path string, size int64, seed byte) {
	t.Helper()
	writeSized(t, path, size, func(buf []byte, offset int64) {
		for i := range buf {
			buf[i] = byte((offset+int64(i))%251) ^ seed
		}
	})
}

func writeSized(t testing.TB, path string, size int64, fill func([]byte, int64)) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)

	var offset int64
	for offset < size {
		n := int64(chunkSize)
		if size-offset < n {
			n = size - offset
		}
		fill(buf[:n], offset)
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		offset += n
	}
}

// WriteFLAC writes a minimal FLAC stream carrying only a Vorbis comment block
// with the given fields. Tag readers accept it; audio decoders do not.
func WriteFLAC(t testing.TB, path string, comments map[string]string) {
	t.Helper()
	writeFLAC(t, path, comments, "", nil)
}

// WriteFLACWithPicture is WriteFLAC plus a front cover PICTURE block.
func WriteFLACWithPicture(t testing.TB, path string, comments map[string]string, mimeType string, picture []byte) {
	t.Helper()
	writeFLAC(t, path, comments, mimeType, picture)
}

func writeFLAC(t testing.TB, path string, comments map[string]string, mimeType string, picture []byte) {
	t.Helper()

	keys := make([]string, 0, len(comments))
	for k := range comments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var block bytes.Buffer
	vendor := "oats test"
	_ = binary.Write(&block, binary.LittleEndian, uint32(len(vendor)))
	block.WriteString(vendor)
	_ = binary.Write(&block, binary.LittleEndian, uint32(len(keys)))
	for _, k := range keys {
		entry := k + "=" + comments[k]
		_ = binary.Write(&block, binary.LittleEndian, uint32(len(entry)))
		block.WriteString(entry)
	}

	var out bytes.Buffer
	out.WriteString("fLaC")
	// Block type 4 (VORBIS_COMMENT), then type 6 (PICTURE) when present.
	writeFLACBlock(&out, 4, block.Bytes(), picture == nil)
	if picture != nil {
		var pic bytes.Buffer
		// Picture type 3 is the front cover.
		_ = binary.Write(&pic, binary.BigEndian, uint32(3))
		_ = binary.Write(&pic, binary.BigEndian, uint32(len(mimeType)))
		pic.WriteString(mimeType)
		_ = binary.Write(&pic, binary.BigEndian, uint32(0))
		// Width, height, colour depth and palette size are left at zero.
		pic.Write(make([]byte, 16))
		_ = binary.Write(&pic, binary.BigEndian, uint32(len(picture)))
		pic.Write(picture)
		writeFLACBlock(&out, 6, pic.Bytes(), true)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeFLACBlock writes a metadata block header with its 24-bit length.
func writeFLACBlock(out *bytes.Buffer, blockType byte, body []byte, last bool) {
	if last {
		blockType |= 0x80
	}
	size := len(body)
	out.Write([]byte{blockType, byte(size >> 16), byte(size >> 8), byte(size)})
	out.Write(body)
}
