package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/internal/conv"
	"github.com/hupe1980/graphbeam/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Frame layout: [tag u8][compression u8][crc32c u32][rawLen u32][payload].
// The checksum covers tag, compression, rawLen and the stored payload.
const (
	headerSize = 10

	// DefaultCompressThreshold is the payload size below which frames are
	// sent uncompressed.
	DefaultCompressThreshold = 4 << 10

	// MaxPayload bounds the decompressed payload of a frame.
	MaxPayload = 1 << 30
)

// ErrCorruptFrame is returned for frames with a bad checksum, an unknown tag
// or compression, or a payload that does not decode.
var ErrCorruptFrame = errors.New("wire: corrupt frame")

// Compression selects how frame payloads are compressed.
type Compression uint8

const (
	// CompressionNone stores payloads as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd.
	CompressionZSTD Compression = 2
)

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return CompressionNone, fmt.Errorf("wire: unknown compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Codec turns messages into frames and back. The zero value sends
// uncompressed frames and canonicalizes output graphs with canon.Refiner.
// A Codec is safe for concurrent use.
type Codec struct {
	Compression   Compression
	Threshold     int
	Canonicalizer canon.Canonicalizer
}

// Encode returns the frame for m.
func (c Codec) Encode(m Message) ([]byte, error) {
	oracle := c.Canonicalizer
	if oracle == nil {
		oracle = canon.Refiner{}
	}
	frame := make([]byte, headerSize, headerSize+64)
	frame, err := appendPayload(frame, m, oracle)
	if err != nil {
		return nil, err
	}
	raw := frame[headerSize:]
	if len(raw) > MaxPayload {
		return nil, fmt.Errorf("wire: payload of %d bytes exceeds limit", len(raw))
	}

	mode := CompressionNone
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	if c.Compression != CompressionNone && len(raw) >= threshold {
		packed, err := compress(raw, c.Compression)
		if err != nil {
			return nil, err
		}
		// Keep the raw payload when compression does not help.
		if packed != nil && len(packed) < len(raw)*9/10 {
			mode = c.Compression
			frame = append(frame[:headerSize], packed...)
		}
	}

	rawLen, err := conv.IntToUint32(len(raw))
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	frame[0] = byte(m.Tag())
	frame[1] = byte(mode)
	binary.LittleEndian.PutUint32(frame[6:], rawLen)
	binary.LittleEndian.PutUint32(frame[2:], checksum(frame))
	return frame, nil
}

// Decode verifies a frame and decodes its message.
func (c Codec) Decode(frame []byte) (Message, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("frame of %d bytes: %w", len(frame), ErrCorruptFrame)
	}
	if binary.LittleEndian.Uint32(frame[2:]) != checksum(frame) {
		return nil, fmt.Errorf("checksum: %w", ErrCorruptFrame)
	}
	tag := Tag(frame[0])
	rawLen, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(frame[6:]))
	if err != nil || rawLen > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes: %w", binary.LittleEndian.Uint32(frame[6:]), ErrCorruptFrame)
	}
	payload, err := decompress(frame[headerSize:], Compression(frame[1]), rawLen)
	if err != nil {
		return nil, err
	}
	m, err := decodePayload(tag, payload)
	if err != nil {
		if errors.Is(err, ErrCorruptFrame) {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", tag, ErrCorruptFrame, err)
	}
	return m, nil
}

// PeekTag returns the tag of a frame without verifying it.
func PeekTag(frame []byte) (Tag, bool) {
	if len(frame) < headerSize {
		return 0, false
	}
	return Tag(frame[0]), true
}

func checksum(frame []byte) uint32 {
	h := hash.NewCRC32C()
	_, _ = h.Write(frame[0:2])
	_, _ = h.Write(frame[6:])
	return h.Sum32()
}

func compress(data []byte, mode Compression) ([]byte, error) {
	switch mode {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		return dst[:n], nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("wire: unknown compression %d", mode)
	}
}

func decompress(data []byte, mode Compression, rawLen int) ([]byte, error) {
	switch mode {
	case CompressionNone:
		if len(data) != rawLen {
			return nil, fmt.Errorf("payload length %d, header %d: %w", len(data), rawLen, ErrCorruptFrame)
		}
		return data, nil
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil || n != rawLen {
			return nil, fmt.Errorf("lz4 payload: %w", ErrCorruptFrame)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil || len(out) != rawLen {
			return nil, fmt.Errorf("zstd payload: %w", ErrCorruptFrame)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compression %d: %w", mode, ErrCorruptFrame)
	}
}
