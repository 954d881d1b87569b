package analysis

import (
	"context"
	"sort"

	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/store"
)

// DriftEntry is a single chunk whose embedding moved between two
// snapshots.
type DriftEntry struct {
	Origin     string
	Name       string
	ChunkType  model.ChunkType
	Similarity float64
	Drift      float64
}

// DefaultDriftThreshold is the similarity below which a paired chunk
// counts as drifted.
const DefaultDriftThreshold = 0.95

// chunkIdentity pairs chunks across snapshots, ignoring non-primary
// windows.
type chunkIdentity struct {
	Origin    string
	Name      string
	ChunkType model.ChunkType
	LineStart int
}

// CompareDrift pairs chunks from before and after by (origin, name,
// chunk_type, line_start), computes cosine similarity of their
// embeddings, classifies pairs below threshold as drifted, and returns
// them sorted by drift (1-similarity) descending.
func CompareDrift(ctx context.Context, before, after *store.Store, threshold float64) ([]DriftEntry, error) {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	beforeCands, err := before.ScanCandidates(ctx, store.CandidateFilter{})
	if err != nil {
		return nil, err
	}
	afterCands, err := after.ScanCandidates(ctx, store.CandidateFilter{})
	if err != nil {
		return nil, err
	}

	beforeByIdentity := map[chunkIdentity]store.Candidate{}
	for _, c := range beforeCands {
		if c.Chunk.ParentID != "" {
			continue
		}
		beforeByIdentity[identityOf(c.Chunk)] = c
	}

	var out []DriftEntry
	for _, c := range afterCands {
		if c.Chunk.ParentID != "" {
			continue
		}
		prev, ok := beforeByIdentity[identityOf(c.Chunk)]
		if !ok {
			continue
		}
		sim := store.CosineSimilarity(prev.Embedding, c.Embedding)
		drift := 1 - sim
		if sim < threshold {
			out = append(out, DriftEntry{
				Origin: c.Chunk.Origin, Name: c.Chunk.Name, ChunkType: c.Chunk.ChunkType,
				Similarity: sim, Drift: drift,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Drift > out[j].Drift })
	return out, nil
}

func identityOf(c *model.Chunk) chunkIdentity {
	return chunkIdentity{Origin: c.Origin, Name: c.Name, ChunkType: c.ChunkType, LineStart: c.LineStart}
}
