// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import "time"

// Internal binary layout and format limits.
const (
	containerMagic     = "pbzx" // leading container signature
	containerMagicSize = 4      // leading container signature size in bytes
	headerWordSize     = 8      // big-endian flags/length field size in bytes
	xzMagicSize        = 6      // leading xz stream signature size in bytes
	xzFooterSize       = 2      // trailing xz stream terminator size in bytes
)

// flagMoreChunks is the flags word bit meaning at least one more chunk follows.
const flagMoreChunks = uint64(1) << 24

// xzStreamMagic is the fixed leading signature of an xz stream.
var xzStreamMagic = [xzMagicSize]byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// xzStreamFooter is the fixed trailing terminator of an xz stream.
var xzStreamFooter = [xzFooterSize]byte{'Y', 'Z'}

// Default tuning values.
const (
	DefaultBufferSize       = 64 * 1024
	DefaultMaxBufferedBytes = 64 * 1024 * 1024
)

// ChunkKind identifies how a chunk payload is stored in the container.
type ChunkKind string

// Chunk payload kinds.
const (
	// ChunkKindCompressed marks a chunk stored as a complete xz stream.
	ChunkKindCompressed ChunkKind = "xz"
	// ChunkKindRaw marks an already-decoded chunk passed through verbatim.
	ChunkKindRaw ChunkKind = "raw"
)

// ChunkInfo describes a single parsed container chunk.
type ChunkInfo struct {
	// Kind reports how the chunk payload is stored.
	Kind ChunkKind `json:"kind" yaml:"kind"`
	// Index is the zero-based chunk position in container order.
	Index int `json:"index" yaml:"index"`
	// Flags is the raw 64-bit flags word read with this chunk.
	Flags uint64 `json:"flags" yaml:"flags"`
	// Offset is the absolute container offset of this chunk's flags word.
	Offset int64 `json:"offset" yaml:"offset"`
	// StoredSize is the declared payload size in container bytes.
	// For xz chunks this counts the leading stream magic.
	StoredSize uint64 `json:"stored_size" yaml:"stored_size"`
}

// UnwrapOptions configures Unwrap behavior.
type UnwrapOptions struct {
	// OnChunkDone is called after one chunk's output is fully flushed.
	// Calls happen in container chunk order in every mode.
	OnChunkDone func(chunk ChunkInfo, written int64) `json:"-" yaml:"-"`
	// BufferSize is the staging buffer size in bytes for decode loops.
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
	// MaxWorkers is the number of parallel chunk decoders.
	// Zero or one selects the sequential path.
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// MaxBufferedBytes bounds stored chunk bytes held in memory by the
	// parallel path. Single chunks larger than the budget clamp to it.
	MaxBufferedBytes int64 `json:"max_buffered_bytes,omitempty" yaml:"max_buffered_bytes,omitempty"`
}

// UnwrapResult contains unwrap output statistics.
type UnwrapResult struct {
	// Chunks is the total number of chunks processed.
	Chunks int `json:"chunks" yaml:"chunks"`
	// CompressedChunks is the number of xz chunks decoded.
	CompressedChunks int `json:"compressed_chunks,omitempty" yaml:"compressed_chunks,omitempty"`
	// RawChunks is the number of chunks passed through verbatim.
	RawChunks int `json:"raw_chunks,omitempty" yaml:"raw_chunks,omitempty"`
	// BytesRead is total stored chunk payload bytes consumed.
	BytesRead int64 `json:"bytes_read" yaml:"bytes_read"`
	// BytesWritten is total decoded bytes written to the sink.
	BytesWritten int64 `json:"bytes_written" yaml:"bytes_written"`
	// Duration is end-to-end unwrap duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// SplitOptions configures SplitParts behavior.
type SplitOptions struct {
	// OnPartDone is called after one part file is fully written and closed.
	OnPartDone func(part PartInfo) `json:"-" yaml:"-"`
	// BufferSize is the copy buffer size in bytes.
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
}

// PartInfo describes one part file produced by the split flow.
type PartInfo struct {
	// Path is the part file path on disk.
	Path string `json:"path" yaml:"path"`
	// Kind reports the payload kind stored in this part.
	Kind ChunkKind `json:"kind" yaml:"kind"`
	// Section is the part sequence number used in the file name.
	Section int `json:"section" yaml:"section"`
	// Chunks is the number of container chunks stored in this part.
	Chunks int `json:"chunks" yaml:"chunks"`
	// Size is the part file size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// applyDefaults fills zero-valued unwrap options with defaults.
func (opts *UnwrapOptions) applyDefaults() {
	if opts.BufferSize < 4096 {
		opts.BufferSize = DefaultBufferSize
	}

	if opts.MaxWorkers < 0 {
		opts.MaxWorkers = 0
	}

	if opts.MaxBufferedBytes <= 0 {
		opts.MaxBufferedBytes = DefaultMaxBufferedBytes
	}
}

// applyDefaults fills zero-valued split options with defaults.
func (opts *SplitOptions) applyDefaults() {
	if opts.BufferSize < 4096 {
		opts.BufferSize = DefaultBufferSize
	}
}
