package store

import (
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/cqs-dev/cqs/internal/model"
)

// encodeEmbedding packs an L2-normalized float32 vector into a
// little-endian BLOB of exactly len(emb)*4 bytes.
func encodeEmbedding(emb model.Embedding) []byte {
	buf := make([]byte, len(emb)*4)
	for i, f := range emb {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks a BLOB into a float32 vector. A BLOB whose
// length is not a multiple of 4 (or mismatches wantDims when wantDims>0)
// is treated as missing: it logs a warning and returns (nil, false)
// rather than erroring the whole row.
func decodeEmbedding(blob []byte, wantDims int) (model.Embedding, bool) {
	if len(blob) == 0 {
		return nil, false
	}
	if len(blob)%4 != 0 {
		slog.Warn("store_embedding_bad_length", slog.Int("bytes", len(blob)))
		return nil, false
	}
	n := len(blob) / 4
	if wantDims > 0 && n != wantDims {
		slog.Warn("store_embedding_dimension_mismatch", slog.Int("got", n), slog.Int("want", wantDims))
		return nil, false
	}
	out := make(model.Embedding, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, true
}

// CosineSimilarity computes the dot product of two identically-normalized
// vectors, which equals cosine similarity. Mismatched
// lengths return 0.
func CosineSimilarity(a, b model.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// NormalizeL2 scales v in place to unit length. A zero vector is left
// unchanged.
func NormalizeL2(v model.Embedding) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
