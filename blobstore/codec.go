package blobstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec applied to stored artifacts.
type Compression uint8

const (
	// CompressionNone stores artifacts as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Block header: [codec uint8][uncompressed size uint32]. A codec byte
// of CompressionNone means the payload follows raw (also used when
// compression did not shrink the block).
const blockHeaderSize = 5

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func compressBlock(data []byte, codec Compression) ([]byte, error) {
	var compressed []byte
	switch codec {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			compressed = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("blobstore: unsupported compression: %v", codec)
	}

	// Store raw when compression does not pay for itself.
	if compressed == nil || len(compressed) >= len(data) {
		codec = CompressionNone
		compressed = data
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	out[0] = byte(codec)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func decompressBlock(block []byte) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("blobstore: short block (%d bytes)", len(block))
	}
	codec := Compression(block[0])
	rawSize := binary.LittleEndian.Uint32(block[1:])
	payload := block[blockHeaderSize:]

	switch codec {
	case CompressionNone:
		if uint32(len(payload)) != rawSize {
			return nil, fmt.Errorf("blobstore: raw block size %d, header says %d", len(payload), rawSize)
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		return out, err
	default:
		return nil, fmt.Errorf("blobstore: unsupported compression: %v", codec)
	}
}

// CompressingStore wraps a Store, compressing artifacts on Put and
// transparently decompressing on Get. Listing and deletion pass
// through.
type CompressingStore struct {
	inner Store
	codec Compression
}

// NewCompressingStore wraps inner with the given codec.
func NewCompressingStore(inner Store, codec Compression) *CompressingStore {
	return &CompressingStore{inner: inner, codec: codec}
}

// Put compresses and stores an artifact.
func (s *CompressingStore) Put(ctx context.Context, name string, data []byte) error {
	block, err := compressBlock(data, s.codec)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, name, block)
}

// Get fetches and decompresses an artifact.
func (s *CompressingStore) Get(ctx context.Context, name string) ([]byte, error) {
	block, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return decompressBlock(block)
}

// List passes through to the wrapped store.
func (s *CompressingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Delete passes through to the wrapped store.
func (s *CompressingStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}
