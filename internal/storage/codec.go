package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/klauspost/compress/zstd"
)

// EncodeAll and DecodeAll are safe for concurrent use, so one coder of each
// kind serves every connection.
var (
	blobEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	blobDecoder, _ = zstd.NewReader(nil)
)

// encodeRow packs samples as little-endian float64 and compresses them.
func encodeRow(row []float64) []byte {
	raw := make([]byte, 8*len(row))
	for i, v := range row {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return blobEncoder.EncodeAll(raw, nil)
}

// decodeRow fills dst from a blob written by encodeRow.
func decodeRow(blob []byte, dst []float64) error {
	raw, err := blobDecoder.DecodeAll(blob, make([]byte, 0, 8*len(dst)))
	if err != nil {
		return fmt.Errorf("decompressing row: %w", err)
	}
	if len(raw) != 8*len(dst) {
		return fmt.Errorf("row holds %d bytes, want %d", len(raw), 8*len(dst))
	}

	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return nil
}

// encodeMask packs a missing-data row into a compressed bitset. A row without
// missing samples is stored as NULL.
func encodeMask(mask []bool) []byte {
	if !slices.Contains(mask, true) {
		return nil
	}

	bits := make([]byte, (len(mask)+7)/8)
	for i, m := range mask {
		if m {
			bits[i/8] |= 1 << (i % 8)
		}
	}
	return blobEncoder.EncodeAll(bits, nil)
}

// decodeMask fills dst from a blob written by encodeMask.
func decodeMask(blob []byte, dst []bool) error {
	bits, err := blobDecoder.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("decompressing mask: %w", err)
	}
	if len(bits) != (len(dst)+7)/8 {
		return fmt.Errorf("mask holds %d bytes, want %d", len(bits), (len(dst)+7)/8)
	}

	for i := range dst {
		dst[i] = bits[i/8]&(1<<(i%8)) != 0
	}
	return nil
}
