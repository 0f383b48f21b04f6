package pbzx

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestIsContainer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   bool
	}{
		{"pbzx", true},
		{"pbzx\x00\x00\x00\x01", true},
		{"pbz", false},
		{"PBZX", false},
		{"", false},
		{"\xfd7zXZ\x00", false},
	}

	for _, tc := range cases {
		if got := IsContainer([]byte(tc.header)); got != tc.want {
			t.Errorf("IsContainer(%q)=%v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestListChunks_ReportsLayout(t *testing.T) {
	t.Parallel()

	chunks := []testChunk{xzChunk(t, "listing test payload"), rawChunk("RAWRAW"), bareMagicChunk()}
	path := writeContainerFile(t, "list.pbzx", encodeContainer(chunks...))

	infos, err := ListChunks(path)
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len(infos)=%d, want 3", len(infos))
	}

	wantKinds := []ChunkKind{ChunkKindCompressed, ChunkKindRaw, ChunkKindCompressed}
	offset := int64(containerMagicSize + headerWordSize)
	for i, info := range infos {
		if info.Kind != wantKinds[i] {
			t.Fatalf("chunk[%d].Kind=%q, want %q", i, info.Kind, wantKinds[i])
		}
		if info.Index != i {
			t.Fatalf("chunk[%d].Index=%d, want %d", i, info.Index, i)
		}
		if info.Offset != offset {
			t.Fatalf("chunk[%d].Offset=%d, want %d", i, info.Offset, offset)
		}
		if info.StoredSize != uint64(len(chunks[i].stored)) {
			t.Fatalf("chunk[%d].StoredSize=%d, want %d", i, info.StoredSize, len(chunks[i].stored))
		}

		offset += 2*headerWordSize + int64(len(chunks[i].stored))
	}
}

func TestListChunks_ValidatesFraming(t *testing.T) {
	t.Parallel()

	chunks := []testChunk{xzChunk(t, "fine"), corruptTail(xzChunk(t, "broken end"))}
	path := writeContainerFile(t, "broken.pbzx", encodeContainer(chunks...))

	_, err := ListChunks(path)
	if !errors.Is(err, ErrTruncatedChunk) {
		t.Fatalf("expected ErrTruncatedChunk, got %v", err)
	}
}

func TestListChunks_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ListChunks(filepath.Join(t.TempDir(), "absent.pbzx"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestListChunksFromReader_EmptyContainer(t *testing.T) {
	t.Parallel()

	infos, err := ListChunksFromReader(bytes.NewReader(encodeContainer()))
	if err != nil {
		t.Fatalf("ListChunksFromReader: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("len(infos)=%d, want 0", len(infos))
	}
}

func TestListChunksFromReader_MatchesUnwrapAccounting(t *testing.T) {
	t.Parallel()

	chunks := mixedChunks(t, 12)
	container := encodeContainer(chunks...)

	infos, err := ListChunksFromReader(bytes.NewReader(container))
	if err != nil {
		t.Fatalf("ListChunksFromReader: %v", err)
	}

	var stored int64
	compressed := 0
	for _, info := range infos {
		stored += int64(info.StoredSize)
		if info.Kind == ChunkKindCompressed {
			compressed++
		}
	}

	var out bytes.Buffer
	res, err := Unwrap(context.Background(), &out, bytes.NewReader(container), UnwrapOptions{})
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}

	if res.Chunks != len(infos) {
		t.Fatalf("Chunks=%d, want %d", res.Chunks, len(infos))
	}
	if res.CompressedChunks != compressed {
		t.Fatalf("CompressedChunks=%d, want %d", res.CompressedChunks, compressed)
	}
	if res.BytesRead != stored {
		t.Fatalf("BytesRead=%d, want %d", res.BytesRead, stored)
	}
}
