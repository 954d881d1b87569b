// Package search implements the hybrid scoring pipeline:
// embedding similarity fused with an optional name-match boost, an
// optional path glob filter, and optional Reciprocal Rank Fusion against
// full-text search.
package search

import (
	"github.com/cqs-dev/cqs/internal/model"
)

// Filter describes a single search call's parameters.
type Filter struct {
	Languages   []string
	ChunkTypes  []model.ChunkType
	PathPattern string
	NameBoost   float64
	QueryText   string
	EnableRRF   bool
	NoteWeight  float64
	NoteOnly    bool
	Threshold   float64
}

// Default threshold and candidate sizing constants for the scoring
// pipeline.
const (
	DefaultThreshold  = 0.0
	rrfConstant       = 60
	minIndexCandidate = 100
)
