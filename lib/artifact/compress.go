// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressionTag identifies how a cache entry's payload is stored.
// Tags appear in entry headers on disk; the values are format
// constants.
type compressionTag uint8

const (
	// compressionNone stores the payload raw. Component binaries that
	// are already dense (packed or encrypted sections) gain nothing
	// from compression.
	compressionNone compressionTag = 0

	// compressionLZ4 stores the payload LZ4 block compressed: modest
	// ratios, near-memcpy decode speed.
	compressionLZ4 compressionTag = 1

	// compressionZstd stores the payload zstd compressed at the
	// default level. Typical for debug-built or text-heavy binaries.
	compressionZstd compressionTag = 2
)

func (tag compressionTag) String() string {
	switch tag {
	case compressionNone:
		return "none"
	case compressionLZ4:
		return "lz4"
	case compressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// zstdEncoder and zstdDecoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("artifact: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("artifact: zstd decoder initialization failed: " + err.Error())
	}
}

// compress picks a storage form for data by probing it with zstd: a
// ratio of 1.5x or better keeps the zstd output, 1.1x or better takes
// LZ4 for its decode speed, anything less is stored raw. Returns the
// payload and the tag describing it.
func compress(data []byte) ([]byte, compressionTag) {
	if len(data) == 0 {
		return data, compressionNone
	}

	zstdOut := zstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(zstdOut))

	switch {
	case ratio >= 1.5:
		return zstdOut, compressionZstd
	case ratio >= 1.1:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil || written == 0 || written >= len(data) {
			// Incompressible for LZ4; the zstd output still beat the
			// threshold, so keep it.
			return zstdOut, compressionZstd
		}
		return destination[:written], compressionLZ4
	default:
		return data, compressionNone
	}
}

// decompress restores a payload to its original bytes. The
// uncompressedSize comes from the entry header and must match the
// decoded length exactly.
func decompress(payload []byte, tag compressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case compressionNone:
		if len(payload) != uncompressedSize {
			return nil, fmt.Errorf("raw payload is %d bytes, header says %d", len(payload), uncompressedSize)
		}
		return payload, nil

	case compressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(payload, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case compressionZstd:
		result, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
}
