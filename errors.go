// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import "errors"

// Sentinel errors for pbzx operations. Use errors.Is in callers.
var (
	// ErrInvalidContainer means the input does not start with the pbzx magic.
	ErrInvalidContainer = errors.New("invalid pbzx container: missing or bad magic")
	// ErrTruncatedInput means the source ended inside a container header field.
	ErrTruncatedInput = errors.New("container truncated inside header field")
	// ErrTruncatedChunk means a chunk payload ended early or its xz terminator is wrong.
	ErrTruncatedChunk = errors.New("chunk payload truncated or bad xz terminator")
	// ErrDecoderInit means the xz decoder could not be constructed for a chunk.
	ErrDecoderInit = errors.New("decoder initialization failed")
	// ErrDecoderFailure means the xz decoder reported an unrecoverable error mid-stream.
	ErrDecoderFailure = errors.New("decoder failure")
	// ErrNilReader means the source reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the destination writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrInvalidPartPrefix means the split part prefix is not a bare file name.
	ErrInvalidPartPrefix = errors.New("invalid part prefix")
)
