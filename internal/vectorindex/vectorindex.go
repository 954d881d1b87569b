// Package vectorindex provides a pluggable approximate-nearest-neighbor
// accelerator over stored chunk embeddings, backed by
// github.com/coder/hnsw, with an ID-mapping and lazy-deletion scheme over
// the library's integer keys.
package vectorindex

import (
	"bufio"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
)

// Candidate is a single approximate result: an id and its relative score.
// Callers MUST re-score exactly using the Store-held embedding before
// trusting it.
type Candidate struct {
	ID    string
	Score float64
}

// VectorIndex is the contract every ANN accelerator implements.
type VectorIndex interface {
	Search(query model.Embedding, k int) ([]Candidate, error)
	Len() int
	GPUAvailable() bool
}

// HNSW wraps github.com/coder/hnsw with a string-id <-> uint64-key
// mapping layer and gob-encoded sidecar persistence.
type HNSW struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// sidecarMeta is the gob-encoded payload saved alongside the graph export.
type sidecarMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
}

// New returns an empty HNSW index with default parameters (M=16,
// EfSearch=20).
func New() *HNSW {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return &HNSW{graph: g, idMap: map[string]uint64{}, keyMap: map[uint64]string{}}
}

var _ VectorIndex = (*HNSW)(nil)

// Add inserts or replaces the vector for id, using lazy deletion on
// replace (coder/hnsw does not support deleting the last node safely).
func (h *HNSW) Add(id string, vec model.Embedding) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(id, vec)
}

func (h *HNSW) addLocked(id string, vec model.Embedding) {
	if existing, ok := h.idMap[id]; ok {
		delete(h.keyMap, existing)
		delete(h.idMap, id)
	}
	key := h.nextKey
	h.nextKey++
	cp := make([]float32, len(vec))
	copy(cp, vec)
	h.graph.Add(hnsw.MakeNode(key, cp))
	h.idMap[id] = key
	h.keyMap[key] = id
}

// BuildBatched adds every (id, embedding) pair from items, streamed so the
// caller need not hold the whole batch at once.
// expectedTotal is advisory and only used for a progress estimate by
// callers; the index itself grows dynamically.
func (h *HNSW) BuildBatched(items func(yield func(id string, emb model.Embedding) bool), expectedTotal int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	items(func(id string, emb model.Embedding) bool {
		h.addLocked(id, emb)
		return true
	})
}

// Search returns up to k approximate nearest neighbors of query. The
// caller must re-score exactly using the Store before trusting results.
func (h *HNSW) Search(query model.Embedding, k int) ([]Candidate, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph.Len() == 0 {
		return nil, nil
	}
	q := make([]float32, len(query))
	copy(q, query)
	nodes := h.graph.Search(q, k)
	out := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		id, ok := h.keyMap[n.Key]
		if !ok {
			continue
		}
		dist := h.graph.Distance(q, n.Value)
		out = append(out, Candidate{ID: id, Score: 1 - float64(dist)})
	}
	return out, nil
}

// Len returns the number of live (non-orphaned) vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idMap)
}

// GPUAvailable reports whether a GPU backend is in use; coder/hnsw is
// CPU-only, so this is always false.
func (h *HNSW) GPUAvailable() bool { return false }

// Save persists the graph and id-mapping sidecar under dir as
// {dir}/hnsw.graph and {dir}/hnsw.meta.
func (h *HNSW) Save(dir string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cqserrors.StoreError("create vector index directory", err)
	}

	graphPath := filepath.Join(dir, "hnsw.graph")
	tmp := graphPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return cqserrors.StoreError("create vector index file", err)
	}
	if err := h.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return cqserrors.StoreError("export vector graph", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return cqserrors.StoreError("close vector index file", err)
	}
	if err := os.Rename(tmp, graphPath); err != nil {
		os.Remove(tmp)
		return cqserrors.StoreError("rename vector index file", err)
	}

	metaPath := filepath.Join(dir, "hnsw.meta")
	metaTmp := metaPath + ".tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return cqserrors.StoreError("create vector index sidecar", err)
	}
	if err := gob.NewEncoder(mf).Encode(sidecarMeta{IDMap: h.idMap, NextKey: h.nextKey}); err != nil {
		mf.Close()
		os.Remove(metaTmp)
		return cqserrors.StoreError("encode vector index sidecar", err)
	}
	if err := mf.Close(); err != nil {
		os.Remove(metaTmp)
		return cqserrors.StoreError("close vector index sidecar", err)
	}
	return os.Rename(metaTmp, metaPath)
}

// TryLoad attempts to load a previously saved index from dir, returning
// (nil, false) when no sidecar exists so callers fall back to a fresh
// index or brute-force search.
func TryLoad(dir string) (*HNSW, bool, error) {
	graphPath := filepath.Join(dir, "hnsw.graph")
	metaPath := filepath.Join(dir, "hnsw.meta")
	if _, err := os.Stat(graphPath); os.IsNotExist(err) {
		return nil, false, nil
	}
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return nil, false, nil
	}

	mf, err := os.Open(metaPath)
	if err != nil {
		return nil, false, cqserrors.StoreError("open vector index sidecar", err)
	}
	defer mf.Close()
	var meta sidecarMeta
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return nil, false, cqserrors.StoreError("decode vector index sidecar", err)
	}

	h := New()
	h.idMap = meta.IDMap
	h.nextKey = meta.NextKey
	h.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		h.keyMap[key] = id
	}

	gf, err := os.Open(graphPath)
	if err != nil {
		return nil, false, cqserrors.StoreError("open vector index file", err)
	}
	defer gf.Close()
	if err := h.graph.Import(bufio.NewReader(gf)); err != nil {
		return nil, false, cqserrors.StoreError("import vector graph", err)
	}
	return h, true, nil
}
