// Package analysis implements the query-driven analysis layer: gather,
// impact, scout, related, placement, onboard, drift, and health. Each
// operation composes internal/store, internal/search, and internal/graph
// rather than owning persistence or scoring itself: a coordinator wiring
// store+search+graph, degrading per sub-step instead of aborting the
// whole call.
package analysis

import (
	"context"

	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

// Direction restricts BFS expansion to callers, callees, or both.
type Direction string

const (
	DirectionBoth     Direction = "both"
	DirectionCallers  Direction = "callers"
	DirectionCallees  Direction = "callees"
)

// Analyzer wires a Store and a search Engine together; every analysis
// operation is a method on it.
type Analyzer struct {
	Store  *store.Store
	Engine *search.Engine
}

// New returns an Analyzer over s and its associated search engine.
func New(s *store.Store, e *search.Engine) *Analyzer {
	return &Analyzer{Store: s, Engine: e}
}

// embedFunc is supplied by the caller (an Embedder implementation) since
// analysis has no opinion on how text becomes a vector.
type embedFunc func(ctx context.Context, text string) (model.Embedding, error)
