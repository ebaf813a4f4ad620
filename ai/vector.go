package ai

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vectors are stored as a 4-byte little-endian dimension followed by the
// float32 values, little-endian.
const (
	vectorHeaderSize = 4
	vectorValueSize  = 4
)

// EncodeVector serializes a vector for storage.
func EncodeVector(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("encode vector: empty vector")
	}
	blob := make([]byte, vectorHeaderSize+len(vec)*vectorValueSize)
	binary.LittleEndian.PutUint32(blob, uint32(len(vec)))
	for i, v := range vec {
		if !finite(float64(v)) {
			return nil, fmt.Errorf("encode vector: invalid value at index %d", i)
		}
		off := vectorHeaderSize + i*vectorValueSize
		binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(v))
	}
	return blob, nil
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob) < vectorHeaderSize {
		return nil, fmt.Errorf("decode vector: blob too short: %d bytes", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob))
	if dim <= 0 || len(blob) != vectorHeaderSize+dim*vectorValueSize {
		return nil, fmt.Errorf("decode vector: dimension %d does not match %d payload bytes", dim, len(blob)-vectorHeaderSize)
	}
	vec := make([]float32, dim)
	for i := range vec {
		off := vectorHeaderSize + i*vectorValueSize
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
		if !finite(float64(vec[i])) {
			return nil, fmt.Errorf("decode vector: invalid value at index %d", i)
		}
	}
	return vec, nil
}

// CosineSimilarity returns the cosine of the angle between a and b,
// clamped to [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("cosine similarity: empty vector")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity: dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if !finite(x) || !finite(y) {
			return 0, fmt.Errorf("cosine similarity: invalid value at index %d", i)
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cosine similarity: zero vector")
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, score)), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
