// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbzx

package pbzx

import (
	"fmt"
	"io"
	"os"
)

// IsContainer reports whether header starts with the pbzx container magic.
func IsContainer(header []byte) bool {
	return len(header) >= containerMagicSize && string(header[:containerMagicSize]) == containerMagic
}

// ListChunks opens a pbzx container and returns chunk metadata without
// decoding. Payloads are drained with full framing validation, including xz
// terminators.
func ListChunks(path string) ([]ChunkInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ListChunksFromReader(f)
}

// ListChunksFromReader scans chunk metadata from a container stream without
// decoding.
func ListChunksFromReader(src io.Reader) ([]ChunkInfo, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}

	var chunks []ChunkInfo
	for {
		info, err := r.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}

		chunks = append(chunks, *info)
	}
}
