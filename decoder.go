// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// sessionState tracks the decode session lifecycle.
type sessionState uint8

const (
	// sessionFeeding means more stored chunk bytes remain to be staged.
	sessionFeeding sessionState = iota + 1
	// sessionFinishing means the source is exhausted and internal codec state is draining.
	sessionFinishing
	// sessionDone means the codec reported a clean end of stream.
	sessionDone
	// sessionFailed means the session ended with an error.
	sessionFailed
)

// streamCodec constructs a decoding stream over stored chunk bytes.
type streamCodec interface {
	newStream(src io.Reader) (io.Reader, error)
}

// xzCodec decodes xz streams, including concatenated multi-stream chunks.
type xzCodec struct{}

// newStream wraps src in a streaming xz decoder.
func (xzCodec) newStream(src io.Reader) (io.Reader, error) {
	return xz.NewReader(src)
}

// decodeSession drives one compressed chunk through the codec with bounded
// staging buffers on both sides.
type decodeSession struct {
	// source stages bounded slices of the stored chunk payload for the codec.
	source *stagedSource
	// stream is the constructed codec stream.
	stream io.Reader
	// out is the bounded output staging buffer.
	out []byte
	// totalOut counts decoded bytes flushed to the sink.
	totalOut int64
	// state is the current lifecycle state.
	state sessionState
}

// newDecodeSession stages src and constructs the codec stream over it.
// Source-side failures during construction keep their original error;
// anything else the codec rejects at construction is ErrDecoderInit.
func newDecodeSession(ctx context.Context, codec streamCodec, src io.Reader, bufSize int) (*decodeSession, error) {
	source := &stagedSource{
		ctx: ctx,
		src: src,
		buf: make([]byte, bufSize),
	}

	stream, err := codec.newStream(source)
	if err != nil {
		if source.err != nil {
			return nil, source.err
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedChunk, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrDecoderInit, err)
	}

	return &decodeSession{
		source: source,
		stream: stream,
		out:    make([]byte, bufSize),
		state:  sessionFeeding,
	}, nil
}

// run decodes the whole chunk, flushing the output staging buffer to dst
// whenever it fills or the stream ends. Returns decoded bytes written.
func (s *decodeSession) run(dst io.Writer) (int64, error) {
	var written int64
	filled := 0

	for {
		n, err := s.stream.Read(s.out[filled:])
		filled += n

		if s.state == sessionFeeding && s.source.eof {
			s.state = sessionFinishing
		}

		endOfStream := errors.Is(err, io.EOF)
		if err != nil && !endOfStream {
			s.state = sessionFailed
			if s.source.err != nil {
				return written, s.source.err
			}

			return written, fmt.Errorf("%w: %w", ErrDecoderFailure, err)
		}

		if filled == len(s.out) || endOfStream {
			if filled > 0 {
				wn, werr := dst.Write(s.out[:filled])
				written += int64(wn)
				s.totalOut += int64(wn)

				if werr != nil {
					s.state = sessionFailed
					return written, fmt.Errorf("write decoded bytes: %w", werr)
				}
				if wn != filled {
					s.state = sessionFailed
					return written, io.ErrShortWrite
				}
			}

			filled = 0
		}

		if endOfStream {
			s.state = sessionDone
			return written, nil
		}
	}
}

// stagedSource feeds the codec bounded slices of the stored chunk payload.
// It records the first source-side failure so a downstream codec error never
// masks the real cause, and reports when the payload is fully staged so the
// session can leave the feeding state.
type stagedSource struct {
	// ctx cancels staging between refills.
	ctx context.Context
	// src is the stored chunk payload stream.
	src io.Reader
	// buf is the bounded input staging buffer.
	buf []byte
	// pos and n delimit unserved staged bytes.
	pos int
	n   int
	// total counts bytes served to the codec.
	total int64
	// eof marks that src is exhausted.
	eof bool
	// err is the first source failure, preserved verbatim.
	err error
}

// Read serves staged bytes, refilling from the payload stream as needed.
func (s *stagedSource) Read(p []byte) (int, error) {
	if s.pos >= s.n {
		if err := s.refill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, s.buf[s.pos:s.n])
	s.pos += n
	s.total += int64(n)

	return n, nil
}

// refill stages the next bounded slice of stored payload.
func (s *stagedSource) refill() error {
	if s.err != nil {
		return s.err
	}
	if s.eof {
		return io.EOF
	}

	if err := s.ctx.Err(); err != nil {
		s.err = err
		return err
	}

	for {
		n, err := s.src.Read(s.buf)
		if n > 0 {
			s.pos, s.n = 0, n

			if err == io.EOF {
				s.eof = true
			} else if err != nil {
				s.err = err
			}

			return nil
		}

		if err == io.EOF {
			s.eof = true
			return io.EOF
		}
		if err != nil {
			s.err = err
			return err
		}
	}
}
