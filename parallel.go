// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// chunkBodyPrealloc caps the upfront allocation for one buffered chunk body,
// so a hostile declared length cannot force a huge allocation before the
// source proves it has the bytes.
const chunkBodyPrealloc = 1 << 20

// chunkTask carries one buffered chunk through the parallel decode path.
type chunkTask struct {
	// done delivers the decode result; buffered so the sender never blocks.
	done chan chunkResult
	// body is the stored chunk payload.
	body []byte
	// info is the chunk metadata.
	info ChunkInfo
	// budget is the semaphore weight held until the chunk is emitted.
	budget int64
}

// chunkResult is one decoded chunk ready for ordered emission.
type chunkResult struct {
	data []byte
	err  error
}

// unwrapParallel decodes chunks concurrently while emitting output strictly
// in container order. The scan stays sequential; workers decode buffered
// chunk bodies; the calling goroutine writes results in submission order, so
// parallelism is invisible at the output boundary.
func unwrapParallel(ctx context.Context, dst io.Writer, r *Reader, opts UnwrapOptions) (*UnwrapResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)

	budget := semaphore.NewWeighted(opts.MaxBufferedBytes)
	taskCh := make(chan *chunkTask, opts.MaxWorkers)
	orderCh := make(chan *chunkTask, opts.MaxWorkers)

	// Dispatcher: sequential scan, chunk bodies buffered under the byte budget.
	eg.Go(func() error {
		defer close(taskCh)
		defer close(orderCh)

		for {
			info, err := r.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}

			weight := min(int64(info.StoredSize), opts.MaxBufferedBytes) //nolint:gosec // bounded by MaxInt64 check in Next
			if err := budget.Acquire(egCtx, weight); err != nil {
				return err
			}

			body, err := readChunkBody(r, info)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", info.Index, err)
			}

			task := &chunkTask{
				info:   *info,
				body:   body,
				budget: weight,
				done:   make(chan chunkResult, 1),
			}

			select {
			case orderCh <- task:
			case <-egCtx.Done():
				return egCtx.Err()
			}

			// Raw and empty xz chunks need no decoding; resolve them here.
			if info.Kind == ChunkKindRaw || info.StoredSize <= xzMagicSize {
				data := body
				if info.Kind == ChunkKindCompressed {
					data = nil
				}

				task.done <- chunkResult{data: data}
				continue
			}

			select {
			case taskCh <- task:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
	})

	// Workers decode buffered xz chunks.
	for range opts.MaxWorkers {
		eg.Go(func() error {
			for task := range taskCh {
				data, err := decodeChunkBuffer(egCtx, task.body, opts.BufferSize)
				task.done <- chunkResult{data: data, err: err}

				if err != nil {
					return fmt.Errorf("chunk %d: %w", task.info.Index, err)
				}
			}

			return nil
		})
	}

	// Emit on the calling goroutine, strictly in container order.
	res := &UnwrapResult{}
	var emitErr error

	for task := range orderCh {
		var result chunkResult

		select {
		case result = <-task.done:
		case <-egCtx.Done():
			emitErr = egCtx.Err()
		}
		if emitErr == nil && result.err != nil {
			emitErr = fmt.Errorf("chunk %d: %w", task.info.Index, result.err)
		}
		if emitErr != nil {
			cancel()
			break
		}

		written := int64(len(result.data))
		if written > 0 {
			if _, err := dst.Write(result.data); err != nil {
				emitErr = fmt.Errorf("chunk %d: write decoded bytes: %w", task.info.Index, err)
				cancel()
				break
			}
		}

		budget.Release(task.budget)
		res.accountChunk(&task.info, written)

		if opts.OnChunkDone != nil {
			opts.OnChunkDone(task.info, written)
		}
	}

	waitErr := eg.Wait()

	switch {
	case emitErr != nil && !errors.Is(emitErr, context.Canceled):
		return nil, emitErr
	case waitErr != nil:
		return nil, waitErr
	case emitErr != nil:
		return nil, emitErr
	}

	return res, nil
}

// readChunkBody buffers the current chunk's stored payload. The buffer grows
// incrementally, so truncated declared lengths fail on read, not on alloc.
func readChunkBody(r *Reader, info *ChunkInfo) ([]byte, error) {
	if info.StoredSize == 0 || (info.Kind == ChunkKindCompressed && info.StoredSize <= xzMagicSize) {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Grow(int(min(info.StoredSize, chunkBodyPrealloc))) //nolint:gosec // clamped to chunkBodyPrealloc

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeChunkBuffer decodes one buffered xz chunk body into memory.
func decodeChunkBuffer(ctx context.Context, body []byte, bufSize int) ([]byte, error) {
	session, err := newDecodeSession(ctx, xzCodec{}, bytes.NewReader(body), bufSize)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if _, err := session.run(&out); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
