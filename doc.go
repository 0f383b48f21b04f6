// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

/*
Package pbzx unwraps pbzx chunked containers, the wrapper format used around
installer payload archives. It is designed for streaming workflows: the
container is scanned sequentially, compressed chunks are decoded through
bounded staging buffers, and the reassembled payload is written out in exact
chunk order without ever holding the whole archive in memory.

A container starts with the ASCII magic "pbzx" and an 8-byte big-endian
flags word, followed by chunks framed as flags + length pairs. Bit 24 of a
flags word signals that another chunk follows. A chunk whose payload starts
with the xz stream magic is an xz stream (validated down to the trailing
"YZ" terminator); anything else is a raw, already-decoded block passed
through verbatim.

# Unwrapping

Decode a container file into the payload it wraps (all-or-nothing output):

	res, err := pbzx.UnwrapFile(ctx, "payload.cpio", "payload.pbzx", pbzx.UnwrapOptions{})
	if err != nil {
	    return err
	}
	_ = res.BytesWritten

Stream between arbitrary endpoints, with progress per chunk:

	res, err := pbzx.Unwrap(ctx, dst, src, pbzx.UnwrapOptions{
	    OnChunkDone: func(chunk pbzx.ChunkInfo, written int64) {
	        // progress callback per reassembled chunk
	    },
	})

Large containers with many chunks can decode in parallel; output order is
unaffected:

	res, err := pbzx.UnwrapFile(ctx, "payload.cpio", "payload.pbzx", pbzx.UnwrapOptions{
	    MaxWorkers: 4,
	})

# Inspecting

Check whether a payload is pbzx-wrapped before deciding to unwrap:

	var header [4]byte
	_, _ = io.ReadFull(f, header[:])
	if pbzx.IsContainer(header[:]) {
	    // unwrap; otherwise hand the payload on as-is
	}

List chunk metadata without decoding:

	chunks, err := pbzx.ListChunks("payload.pbzx")
	for _, c := range chunks {
	    _ = c.Kind // "xz" or "raw"
	}

# Splitting

Write the container out as numbered part files without decoding, one
multi-stream .cpio.xz part per compressed run and one .cpio part per raw
chunk:

	parts, err := pbzx.SplitFile(ctx, "parts/", "payload.pbzx", pbzx.SplitOptions{})

For chunk-level access, drive the scanner directly:

	r, err := pbzx.NewReader(src)
	if err != nil {
	    return err
	}
	for {
	    info, err := r.Next()
	    if err == io.EOF {
	        break
	    }
	    if err != nil {
	        return err
	    }
	    // r streams the stored payload of the current chunk
	    _, _ = io.Copy(io.Discard, r)
	    _ = info
	}
*/
package pbzx
