package ustar_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"ustar-go/internal/testutil"
	"ustar-go/internal/ustar"
)

func assemble(t *testing.T, fsys ustar.Filesystem, dir string) ([]byte, error) {
	t.Helper()
	entries, err := newCollector(fsys, ustar.CollectorOptions{}).Collect(context.Background(), dir)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var buf bytes.Buffer
	n, err := ustar.NewAssembler(fsys, ustar.NewNopLogger()).Assemble(context.Background(), &buf, entries, nil)
	if err == nil && n != int64(buf.Len()) {
		t.Errorf("Assemble() reported %d bytes, wrote %d", n, buf.Len())
	}
	return buf.Bytes(), err
}

func mustEncode(t *testing.T, m *ustar.Metadata) []byte {
	t.Helper()
	h, err := ustar.Encode(m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return h.Bytes()
}

func TestAssembler_EndToEnd(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/src/a.txt", []byte("hello"))
	fsys.AddDirectory("/src/sub")

	archive, err := assemble(t, fsys, "/src")
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if len(archive) != 5*ustar.BlockSize {
		t.Fatalf("archive is %d bytes, want %d", len(archive), 5*ustar.BlockSize)
	}

	block := func(i int) []byte { return archive[i*ustar.BlockSize : (i+1)*ustar.BlockSize] }

	wantFile := mustEncode(t, &ustar.Metadata{
		Path: "a.txt", Mode: 0644, UID: 1000, GID: 1000, Size: 5, ModTime: 1700000000, Type: ustar.TypeReg,
	})
	if !bytes.Equal(block(0), wantFile) {
		t.Error("block 0 is not the a.txt header")
	}
	if block(0)[156] != '0' {
		t.Errorf("a.txt type byte = %q, want '0'", block(0)[156])
	}

	wantContent := append([]byte("hello"), make([]byte, 507)...)
	if !bytes.Equal(block(1), wantContent) {
		t.Error("block 1 is not the NUL-padded content of a.txt")
	}

	wantDir := mustEncode(t, &ustar.Metadata{
		Path: "sub", Mode: 0755, UID: 1000, GID: 1000, ModTime: 1700000000, Type: ustar.TypeDir,
	})
	if !bytes.Equal(block(2), wantDir) {
		t.Error("block 2 is not the sub header")
	}
	if block(2)[156] != '5' {
		t.Errorf("sub type byte = %q, want '5'", block(2)[156])
	}

	if !bytes.Equal(archive[3*ustar.BlockSize:], make([]byte, 2*ustar.BlockSize)) {
		t.Error("archive does not end with two zero blocks")
	}
}

func TestAssembler_EmptyDirectory(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddDirectory("/src")

	archive, err := assemble(t, fsys, "/src")
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !bytes.Equal(archive, make([]byte, 2*ustar.BlockSize)) {
		t.Errorf("archive of an empty directory = %d bytes, want the 1024-byte trailer only", len(archive))
	}
}

func TestAssembler_ContentPadding(t *testing.T) {
	tests := []struct {
		size   int
		blocks int
	}{
		{size: 0, blocks: 0},
		{size: 1, blocks: 1},
		{size: 511, blocks: 1},
		{size: 512, blocks: 1},
		{size: 513, blocks: 2},
	}

	for _, tt := range tests {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/src/f", bytes.Repeat([]byte{'x'}, tt.size))

		archive, err := assemble(t, fsys, "/src")
		if err != nil {
			t.Fatalf("size %d: Assemble() error = %v", tt.size, err)
		}
		want := (1 + tt.blocks + 2) * ustar.BlockSize
		if len(archive) != want {
			t.Errorf("size %d: archive is %d bytes, want %d", tt.size, len(archive), want)
		}
		if len(archive)%ustar.BlockSize != 0 {
			t.Errorf("size %d: archive length is not a multiple of %d", tt.size, ustar.BlockSize)
		}
	}
}

// The output is readable by the standard library tar reader.
func TestAssembler_ReadableByArchiveTar(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/src/a.txt", []byte("hello"))
	fsys.AddDirectory("/src/sub")
	fsys.AddFile("/src/sub/big.bin", bytes.Repeat([]byte("0123456789"), 100))
	fsys.AddSymlink("/src/sub/link", "big.bin")

	archive, err := assemble(t, fsys, "/src")
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []struct {
		name     string
		typeflag byte
		content  string
		linkname string
	}{
		{name: "a.txt", typeflag: tar.TypeReg, content: "hello"},
		{name: "sub", typeflag: tar.TypeDir},
		{name: "sub/big.bin", typeflag: tar.TypeReg, content: strings.Repeat("0123456789", 100)},
		{name: "sub/link", typeflag: tar.TypeSymlink, linkname: "big.bin"},
	}

	tr := tar.NewReader(bytes.NewReader(archive))
	for _, w := range want {
		hdr, err := tr.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if hdr.Name != w.name || hdr.Typeflag != w.typeflag {
			t.Errorf("header = (%q, %q), want (%q, %q)", hdr.Name, hdr.Typeflag, w.name, w.typeflag)
		}
		if hdr.Linkname != w.linkname {
			t.Errorf("%s: Linkname = %q, want %q", w.name, hdr.Linkname, w.linkname)
		}
		if hdr.Uid != 1000 || hdr.Gid != 1000 {
			t.Errorf("%s: owner = %d/%d, want 1000/1000", w.name, hdr.Uid, hdr.Gid)
		}
		if hdr.ModTime.Unix() != 1700000000 {
			t.Errorf("%s: ModTime = %d, want 1700000000", w.name, hdr.ModTime.Unix())
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading %s: %v", w.name, err)
		}
		if string(data) != w.content {
			t.Errorf("%s: content = %q, want %q", w.name, data, w.content)
		}
	}
	if _, err := tr.Next(); err != io.EOF {
		t.Errorf("Next() after last entry = %v, want io.EOF", err)
	}
}

func TestAssembler_ReadBack(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/src/a.txt", []byte("hello"))
	fsys.AddDirectory("/src/sub")
	fsys.AddFile("/src/sub/b.txt", bytes.Repeat([]byte{'b'}, 700))

	entries, err := newCollector(fsys, ustar.CollectorOptions{}).Collect(context.Background(), "/src")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	type seen struct {
		path   string
		offset int64
		sum    int64
	}
	var observed []seen
	var buf bytes.Buffer
	_, err = ustar.NewAssembler(fsys, ustar.NewNopLogger()).Assemble(context.Background(), &buf, entries,
		func(m *ustar.Metadata, h *ustar.HeaderBlock, offset int64) {
			observed = append(observed, seen{m.Path, offset, h.Checksum()})
		})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	var read []seen
	err = ustar.ReadArchive(bytes.NewReader(buf.Bytes()), func(m *ustar.Metadata, offset int64) error {
		h, err := ustar.Encode(m)
		if err != nil {
			return err
		}
		read = append(read, seen{m.Path, offset, h.Checksum()})
		return nil
	})
	if err != nil {
		t.Fatalf("ReadArchive() error = %v", err)
	}

	if len(read) != len(observed) {
		t.Fatalf("read %d headers, observed %d", len(read), len(observed))
	}
	for i := range read {
		if read[i] != observed[i] {
			t.Errorf("header %d: read %+v, observed %+v", i, read[i], observed[i])
		}
	}
	if observed[1].offset != 1024 || observed[2].offset != 1536 {
		t.Errorf("offsets = %+v, want sub at 1024 and sub/b.txt at 1536", observed)
	}
}

// failingWriter accepts limit bytes and then fails.
type failingWriter struct {
	limit int
	n     int
}

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.limit {
		n := w.limit - w.n
		w.n = w.limit
		return n, errDiskFull
	}
	w.n += len(p)
	return len(p), nil
}

func TestAssembler_WriteError(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/src/a.txt", []byte("hello"))
	fsys.AddDirectory("/src/sub")

	entries, err := newCollector(fsys, ustar.CollectorOptions{}).Collect(context.Background(), "/src")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	// Fail in the first header, the content, the second header and the trailer.
	for _, limit := range []int{100, 600, 1100, 2000} {
		w := &failingWriter{limit: limit}
		n, err := ustar.NewAssembler(fsys, ustar.NewNopLogger()).Assemble(context.Background(), w, entries, nil)

		var we *ustar.WriteError
		if !errors.As(err, &we) {
			t.Fatalf("limit %d: Assemble() error = %v, want *WriteError", limit, err)
		}
		if !errors.Is(err, ustar.ErrWrite) || !errors.Is(err, errDiskFull) {
			t.Errorf("limit %d: error %v does not match ErrWrite and the sink error", limit, err)
		}
		if errors.Is(err, ustar.ErrEntryRead) {
			t.Errorf("limit %d: write failure reported as an entry read error", limit)
		}
		if n != int64(limit) || we.Offset != int64(limit) {
			t.Errorf("limit %d: n = %d, Offset = %d", limit, n, we.Offset)
		}
	}
}

func TestAssembler_SourceChanged(t *testing.T) {
	t.Run("file shrank", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		e := fsys.AddFile("/src/a.txt", []byte("hi"))
		e.StatSize = 10

		_, err := assemble(t, fsys, "/src")
		var ere *ustar.EntryReadError
		if !errors.As(err, &ere) {
			t.Fatalf("Assemble() error = %v, want *EntryReadError", err)
		}
		if ere.Path != "/src/a.txt" {
			t.Errorf("Path = %q, want %q", ere.Path, "/src/a.txt")
		}
	})

	t.Run("file grew", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		e := fsys.AddFile("/src/a.txt", []byte("hello world"))
		e.StatSize = 5

		archive, err := assemble(t, fsys, "/src")
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if got := string(bytes.TrimRight(archive[512:1024], "\x00")); got != "hello" {
			t.Errorf("content = %q, want the collected 5 bytes %q", got, "hello")
		}
		if len(archive) != 4*ustar.BlockSize {
			t.Errorf("archive is %d bytes, want %d", len(archive), 4*ustar.BlockSize)
		}
	})

	t.Run("open fails", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/src/a.txt", []byte("hello"))
		fsys.SetOpenError("/src/a.txt", fs.ErrPermission)

		_, err := assemble(t, fsys, "/src")
		if !errors.Is(err, ustar.ErrEntryRead) || !errors.Is(err, fs.ErrPermission) {
			t.Errorf("Assemble() error = %v, want EntryReadError wrapping fs.ErrPermission", err)
		}
	})
}

func TestAssembler_FieldOverflow(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	e := fsys.AddFile("/src/a.txt", nil)
	e.UID = ustar.MaxID + 1

	_, err := assemble(t, fsys, "/src")
	var foe *ustar.FieldOverflowError
	if !errors.As(err, &foe) {
		t.Fatalf("Assemble() error = %v, want *FieldOverflowError", err)
	}
	if foe.Field != "owner_id" || foe.Path != "a.txt" {
		t.Errorf("FieldOverflowError = %+v", foe)
	}
}

func TestAssembler_Canceled(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/src/a.txt", []byte("hello"))

	entries, err := newCollector(fsys, ustar.CollectorOptions{}).Collect(context.Background(), "/src")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ustar.NewAssembler(fsys, ustar.NewNopLogger()).Assemble(ctx, io.Discard, entries, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Assemble() error = %v, want context.Canceled", err)
	}
}
