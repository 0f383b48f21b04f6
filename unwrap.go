// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Unwrap decodes the pbzx container from src and writes the reassembled
// payload to dst in exact chunk order. On error the bytes already written to
// dst are not a valid payload prefix and must be discarded by the caller;
// UnwrapFile provides all-or-nothing file output instead.
func Unwrap(ctx context.Context, dst io.Writer, src io.Reader, opts UnwrapOptions) (*UnwrapResult, error) {
	if dst == nil {
		return nil, ErrNilWriter
	}
	if src == nil {
		return nil, ErrNilReader
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	start := time.Now()

	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}

	var res *UnwrapResult
	if opts.MaxWorkers > 1 {
		res, err = unwrapParallel(ctx, dst, r, opts)
	} else {
		res, err = unwrapSequential(ctx, dst, r, opts)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

// UnwrapFile decodes the pbzx container at srcPath into dstPath. Output is
// all-or-nothing: the payload is assembled in a temp file next to dstPath
// and renamed into place only on success; on any error dstPath is left
// untouched.
func UnwrapFile(ctx context.Context, dstPath, srcPath string, opts UnwrapOptions) (*UnwrapResult, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), filepath.Base(dstPath)+".unwrap-*")
	if err != nil {
		return nil, fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	res, err := Unwrap(ctx, tmp, src, opts)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("move output into place: %w", err)
	}

	return res, nil
}

// unwrapSequential decodes chunks one at a time in container order.
func unwrapSequential(ctx context.Context, dst io.Writer, r *Reader, opts UnwrapOptions) (*UnwrapResult, error) {
	res := &UnwrapResult{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := r.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return nil, err
		}

		written, err := decodeChunkTo(ctx, dst, r, info, opts.BufferSize)
		if err != nil {
			// A decoder failure on a badly framed chunk must report the
			// framing violation; draining the remainder runs that check.
			if errors.Is(err, ErrDecoderFailure) {
				if _, drainErr := r.Next(); errors.Is(drainErr, ErrTruncatedChunk) {
					err = drainErr
				}
			}

			return nil, fmt.Errorf("chunk %d: %w", info.Index, err)
		}

		res.accountChunk(info, written)

		if opts.OnChunkDone != nil {
			opts.OnChunkDone(*info, written)
		}
	}
}

// decodeChunkTo writes one chunk's decoded payload to dst and returns the
// number of decoded bytes.
func decodeChunkTo(ctx context.Context, dst io.Writer, payload io.Reader, info *ChunkInfo, bufSize int) (int64, error) {
	if info.Kind == ChunkKindRaw {
		return copyChunkPayload(dst, payload)
	}

	// A bare-magic xz chunk has an empty body and decodes to nothing.
	if info.StoredSize <= xzMagicSize {
		return 0, nil
	}

	session, err := newDecodeSession(ctx, xzCodec{}, payload, bufSize)
	if err != nil {
		return 0, err
	}

	return session.run(dst)
}

// copyChunkPayload copies a raw chunk verbatim through a pooled buffer.
func copyChunkPayload(dst io.Writer, src io.Reader) (int64, error) {
	buf := copyBufferPool.Get().(*[]byte) //nolint:forcetypeassert // pool contains only *[]byte
	defer copyBufferPool.Put(buf)

	var total int64
	for {
		readN, readErr := src.Read(*buf)
		if readN > 0 {
			writeN, writeErr := dst.Write((*buf)[:readN])
			total += int64(writeN)

			if writeErr != nil {
				return total, fmt.Errorf("write raw chunk: %w", writeErr)
			}

			if writeN != readN {
				return total, io.ErrShortWrite
			}
		}

		if readErr == nil {
			continue
		}

		if readErr == io.EOF {
			return total, nil
		}

		return total, readErr
	}
}

// accountChunk folds one finished chunk into the result counters.
func (res *UnwrapResult) accountChunk(info *ChunkInfo, written int64) {
	res.Chunks++

	switch info.Kind {
	case ChunkKindCompressed:
		res.CompressedChunks++
	case ChunkKindRaw:
		res.RawChunks++
	}

	res.BytesRead += int64(info.StoredSize) //nolint:gosec // bounded by MaxInt64 check in Next
	res.BytesWritten += written
}
