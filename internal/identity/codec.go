package identity

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

// Record file layout, little-endian:
//
//	magic "FEMB" | version uint16 | reserved uint16 | dim uint32 | dim*float32 | crc32
const (
	recordMagic   = "FEMB"
	recordVersion = 1
	headerSize    = 12
	trailerSize   = 4
)

// EncodeEmbedding serializes vec into the record file format.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	if uint64(len(vec)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d elements exceeds maximum", ErrInvalidEmbedding, len(vec))
	}

	buf := make([]byte, 0, headerSize+4*len(vec)+trailerSize)
	buf = append(buf, recordMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, recordVersion)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vec)))
	for _, v := range vec {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return buf, nil
}

// DecodeEmbedding parses a record file. When expectedDim is positive the
// stored dimensionality must equal it.
func DecodeEmbedding(data []byte, expectedDim int) ([]float32, error) {
	if len(data) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorruptRecord, len(data))
	}
	if string(data[:4]) != recordMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptRecord, data[:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, v)
	}

	dim := binary.LittleEndian.Uint32(data[8:12])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorruptRecord)
	}
	want := uint64(headerSize) + 4*uint64(dim) + trailerSize
	if uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: dimension %d needs %d bytes, have %d", ErrCorruptRecord, dim, want, len(data))
	}

	body := data[:len(data)-trailerSize]
	if sum := binary.LittleEndian.Uint32(data[len(body):]); sum != crc32.ChecksumIEEE(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}
	if expectedDim > 0 && int(dim) != expectedDim {
		return nil, fmt.Errorf("%w: dimension %d, want %d", ErrCorruptRecord, dim, expectedDim)
	}

	vec := make([]float32, dim)
	for i := range vec {
		off := headerSize + 4*i
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
	}
	return vec, nil
}
