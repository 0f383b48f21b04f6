// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPartPrefix names split part files when no prefix is given.
const DefaultPartPrefix = "payload"

// partSink is one open part file behind a buffered writer.
type partSink struct {
	file *os.File
	w    *bufio.Writer
	info PartInfo
}

// partSplitter tracks split state across the chunk scan.
type partSplitter struct {
	// onPartDone is the per-part completion callback.
	onPartDone func(part PartInfo)
	// xzPart is the open xz part collecting the current compressed run.
	xzPart *partSink
	// dstDir is the output directory.
	dstDir string
	// prefix names part files.
	prefix string
	// parts collects finished part metadata in section order.
	parts []PartInfo
	// created tracks every part path for cleanup on failure.
	created []string
	// writerSize is the buffered writer size for part files.
	writerSize int
	// section is the next part sequence number.
	section int
}

// SplitParts reads the container from src and writes its chunks as numbered
// part files into dstDir without decoding. Consecutive xz chunks concatenate
// into one "<prefix>.partNN.cpio.xz" multi-stream part; each raw chunk takes
// the next section as "<prefix>.partNN.cpio" and the following compressed
// run starts a fresh xz part. Parts materialize lazily on first payload
// byte, so no empty part files are created; section numbering is unaffected.
// The prefix must be a bare file name fragment; empty selects
// DefaultPartPrefix. On error every part written so far is removed.
func SplitParts(ctx context.Context, dstDir, prefix string, src io.Reader, opts SplitOptions) ([]PartInfo, error) {
	if src == nil {
		return nil, ErrNilReader
	}
	if ctx == nil {
		ctx = context.Background()
	}

	prefix, err := sanitizePartPrefix(prefix)
	if err != nil {
		return nil, err
	}

	opts.applyDefaults()

	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}

	sp := &partSplitter{
		dstDir:     dstDir,
		prefix:     prefix,
		writerSize: opts.BufferSize,
		onPartDone: opts.OnPartDone,
	}

	parts, err := sp.run(ctx, r)
	if err != nil {
		sp.cleanup()
		return nil, err
	}

	return parts, nil
}

// SplitFile splits the container at srcPath into part files under dstDir,
// using the container file name as the part prefix.
func SplitFile(ctx context.Context, dstDir, srcPath string, opts SplitOptions) ([]PartInfo, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer func() { _ = src.Close() }()

	return SplitParts(ctx, dstDir, filepath.Base(srcPath), src, opts)
}

// run performs the chunk scan and part emission.
func (sp *partSplitter) run(ctx context.Context, r *Reader) ([]PartInfo, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch {
		case info.Kind == ChunkKindRaw:
			if err := sp.emitRawPart(r); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", info.Index, err)
			}
		case info.StoredSize <= xzMagicSize:
			// Bare-magic xz chunk: storing it would corrupt the part stream.
		default:
			if err := sp.appendToXzPart(r); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", info.Index, err)
			}
		}
	}

	if err := sp.closeXzPart(); err != nil {
		return nil, err
	}

	return sp.parts, nil
}

// sanitizePartPrefix validates that prefix is a bare file name fragment, so
// part files cannot land outside the output directory. Empty selects the
// default prefix.
func sanitizePartPrefix(prefix string) (string, error) {
	if prefix == "" {
		return DefaultPartPrefix, nil
	}

	if strings.ContainsRune(prefix, 0) ||
		strings.ContainsAny(prefix, `/\`) ||
		prefix == "." || prefix == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPartPrefix, prefix)
	}

	return prefix, nil
}

// partName builds one part file path for the given section and kind.
func (sp *partSplitter) partName(section int, kind ChunkKind) string {
	name := fmt.Sprintf("%s.part%02d.cpio", sp.prefix, section)
	if kind == ChunkKindCompressed {
		name += ".xz"
	}

	return filepath.Join(sp.dstDir, name)
}

// openPart creates one part file with a buffered writer.
func (sp *partSplitter) openPart(section int, kind ChunkKind) (*partSink, error) {
	path := sp.partName(section, kind)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	sp.created = append(sp.created, path)

	return &partSink{
		file: f,
		w:    bufio.NewWriterSize(f, sp.writerSize),
		info: PartInfo{
			Path:    path,
			Kind:    kind,
			Section: section,
		},
	}, nil
}

// finishPart flushes and closes one part file and records its metadata.
func (sp *partSplitter) finishPart(part *partSink) error {
	flushErr := part.w.Flush()
	closeErr := part.file.Close()

	if flushErr != nil {
		return fmt.Errorf("flush part: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close part: %w", closeErr)
	}

	sp.parts = append(sp.parts, part.info)

	if sp.onPartDone != nil {
		sp.onPartDone(part.info)
	}

	return nil
}

// appendToXzPart streams one compressed chunk into the current xz part,
// opening it on first use.
func (sp *partSplitter) appendToXzPart(payload io.Reader) error {
	if sp.xzPart == nil {
		part, err := sp.openPart(sp.section, ChunkKindCompressed)
		if err != nil {
			return err
		}

		sp.xzPart = part
	}

	written, err := copyChunkPayload(sp.xzPart.w, payload)
	sp.xzPart.info.Size += written
	if err != nil {
		return err
	}

	sp.xzPart.info.Chunks++

	return nil
}

// emitRawPart writes one raw chunk as its own part file. The open xz part is
// finalized first and the section after the raw part is reserved for the
// next compressed run.
func (sp *partSplitter) emitRawPart(payload io.Reader) error {
	if err := sp.closeXzPart(); err != nil {
		return err
	}

	sp.section++
	part, err := sp.openPart(sp.section, ChunkKindRaw)
	if err != nil {
		return err
	}
	sp.section++

	written, err := copyChunkPayload(part.w, payload)
	part.info.Size = written
	part.info.Chunks = 1
	if err != nil {
		_ = part.file.Close()
		return err
	}

	return sp.finishPart(part)
}

// closeXzPart finalizes the open xz part, if any.
func (sp *partSplitter) closeXzPart() error {
	if sp.xzPart == nil {
		return nil
	}

	part := sp.xzPart
	sp.xzPart = nil

	return sp.finishPart(part)
}

// cleanup removes every created part file after a failed split.
func (sp *partSplitter) cleanup() {
	if sp.xzPart != nil {
		_ = sp.xzPart.file.Close()
		sp.xzPart = nil
	}

	for _, path := range sp.created {
		_ = os.Remove(path)
	}
}
