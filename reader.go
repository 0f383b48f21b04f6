// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
)

// scanBufferSize is the buffered reader size for sequential container scans.
const scanBufferSize = 64 * 1024

// copyBufferPool reuses payload copy buffers across chunk operations.
var copyBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

// Reader scans a pbzx container sequentially, one chunk at a time.
// Call Next to advance to each chunk, then Read to stream its stored
// payload. Next drains any unread remainder of the previous chunk.
type Reader struct {
	// br buffers the underlying source for lookahead classification.
	br *bufio.Reader
	// cur is the in-progress chunk payload stream; nil before the first Next.
	cur *chunkPayloadReader
	// err is the first terminal condition; sticky. io.EOF after the last chunk.
	err error
	// flags is the most recent flags word; bit 24 gates the next chunk.
	flags uint64
	// offset is the absolute container offset of the next header field.
	offset int64
	// index is the zero-based index assigned to the next chunk.
	index int
}

// NewReader starts scanning src as a pbzx container. The leading magic and
// the initial flags word are read and validated eagerly.
func NewReader(src io.Reader) (*Reader, error) {
	if src == nil {
		return nil, ErrNilReader
	}

	br := bufio.NewReaderSize(src, scanBufferSize)

	var magic [containerMagicSize]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrTruncatedInput, err)
	}
	if !bytes.Equal(magic[:], []byte(containerMagic)) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidContainer, magic[:])
	}

	flags, err := readHeaderWord(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read initial flags: %w", ErrTruncatedInput, err)
	}

	return &Reader{
		br:     br,
		flags:  flags,
		offset: containerMagicSize + headerWordSize,
	}, nil
}

// Next advances to the next chunk and returns its metadata. Any unread
// payload of the previous chunk is drained first; terminator validation for
// xz chunks still runs while draining. io.EOF reports the normal end of the
// chunk sequence.
func (r *Reader) Next() (*ChunkInfo, error) {
	if r == nil {
		return nil, ErrNilReader
	}
	if r.err != nil {
		return nil, r.err
	}

	if r.cur != nil {
		if err := r.cur.drain(); err != nil {
			r.err = err
			return nil, err
		}

		r.offset += int64(r.cur.size)
		r.cur = nil
	}

	if r.flags&flagMoreChunks == 0 {
		r.err = io.EOF
		return nil, io.EOF
	}

	headerOffset := r.offset

	flags, err := readHeaderWord(r.br)
	if err != nil {
		r.err = fmt.Errorf("%w: read chunk flags: %w", ErrTruncatedInput, err)
		return nil, r.err
	}

	length, err := readHeaderWord(r.br)
	if err != nil {
		r.err = fmt.Errorf("%w: read chunk length: %w", ErrTruncatedInput, err)
		return nil, r.err
	}
	if length > math.MaxInt64 {
		r.err = fmt.Errorf("%w: declared chunk length %d", ErrTruncatedChunk, length)
		return nil, r.err
	}

	r.flags = flags
	r.offset += 2 * headerWordSize

	// Absence of the xz magic means a raw chunk. The probe is a peek, so the
	// bytes stay in place for the payload stream; chunks shorter than the
	// magic cannot be xz streams and skip the probe.
	kind := ChunkKindRaw
	if length >= xzMagicSize {
		probe, peekErr := r.br.Peek(xzMagicSize)
		if peekErr == nil && bytes.Equal(probe, xzStreamMagic[:]) {
			kind = ChunkKindCompressed
		}
	}

	cur := &chunkPayloadReader{
		src:       r.br,
		size:      length,
		remaining: length,
		checkTail: kind == ChunkKindCompressed,
	}

	// An xz chunk of exactly magic size has an empty body: consume the bare
	// magic here so the chunk streams as empty and nothing tries to decode it.
	if kind == ChunkKindCompressed && length == xzMagicSize {
		if _, err := r.br.Discard(xzMagicSize); err != nil {
			r.err = fmt.Errorf("%w: read chunk payload: %w", ErrTruncatedChunk, err)
			return nil, r.err
		}

		cur.remaining = 0
		cur.checkTail = false
	}

	info := ChunkInfo{
		Kind:       kind,
		Index:      r.index,
		Flags:      flags,
		Offset:     headerOffset,
		StoredSize: length,
	}

	r.cur = cur
	r.index++

	return &info, nil
}

// Read streams the stored payload of the current chunk and returns io.EOF
// when the payload is fully consumed. Before the first Next it reports
// io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r == nil {
		return 0, ErrNilReader
	}
	if r.err != nil {
		return 0, r.err
	}
	if r.cur == nil {
		return 0, io.EOF
	}

	n, err := r.cur.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}

	return n, err
}

// readHeaderWord reads one 8-byte big-endian container header field.
func readHeaderWord(br *bufio.Reader) (uint64, error) {
	var field [headerWordSize]byte
	if _, err := io.ReadFull(br, field[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(field[:]), nil
}

// chunkPayloadReader streams exactly the declared stored payload of one
// chunk. For xz chunks it tracks the trailing bytes and turns a terminator
// mismatch into ErrTruncatedChunk on the final read, before any following
// chunk is touched.
type chunkPayloadReader struct {
	// src is the shared buffered container stream.
	src *bufio.Reader
	// size is the declared payload size.
	size uint64
	// remaining counts undelivered payload bytes.
	remaining uint64
	// tail holds the most recent payload bytes for terminator validation.
	tail [xzFooterSize]byte
	// tailLen is the number of valid bytes in tail.
	tailLen int
	// checkTail enables terminator validation at payload end.
	checkTail bool
	// done marks the terminal state; further reads return io.EOF.
	done bool
}

// Read delivers up to len(p) payload bytes.
func (c *chunkPayloadReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.remaining == 0 {
		return 0, c.finish()
	}
	if len(p) == 0 {
		return 0, nil
	}

	if uint64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}

	n, err := c.src.Read(p)
	if n > 0 {
		c.remaining -= uint64(n)
		if c.checkTail {
			c.trackTail(p[:n])
		}
	}

	if err == io.EOF {
		if c.remaining > 0 {
			c.done = true
			return n, fmt.Errorf("%w: source ended with %d payload bytes missing", ErrTruncatedChunk, c.remaining)
		}

		return n, nil
	}
	if err != nil {
		c.done = true
		return n, fmt.Errorf("read chunk payload: %w", err)
	}

	return n, nil
}

// finish validates the terminator for xz chunks and reports io.EOF.
func (c *chunkPayloadReader) finish() error {
	c.done = true

	if c.checkTail {
		if c.tailLen < xzFooterSize || !bytes.Equal(c.tail[:], xzStreamFooter[:]) {
			return fmt.Errorf("%w: bad xz stream terminator", ErrTruncatedChunk)
		}
	}

	return io.EOF
}

// trackTail keeps the last terminator-size bytes seen in the payload.
func (c *chunkPayloadReader) trackTail(b []byte) {
	if len(b) >= xzFooterSize {
		copy(c.tail[:], b[len(b)-xzFooterSize:])
		c.tailLen = xzFooterSize
		return
	}

	for _, v := range b {
		if c.tailLen < xzFooterSize {
			c.tail[c.tailLen] = v
			c.tailLen++
			continue
		}

		copy(c.tail[:], c.tail[1:])
		c.tail[xzFooterSize-1] = v
	}
}

// drain consumes the remaining payload, including terminator validation.
func (c *chunkPayloadReader) drain() error {
	if c.done {
		return nil
	}

	buf := copyBufferPool.Get().(*[]byte) //nolint:forcetypeassert // pool contains only *[]byte
	defer copyBufferPool.Put(buf)

	for {
		_, err := c.Read(*buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
