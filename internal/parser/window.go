package parser

import (
	"strings"

	"github.com/cqs-dev/cqs/internal/model"
)

// Windowing thresholds: a chunk whose line span
// exceeds thresholdLines is split into overlapping windows of windowLines
// with overlapLines of shared content, so no single embedding input grows
// unbounded. A 2000-line function windows into exactly 3 parts.
const (
	thresholdLines = 800
	windowLines    = 800
	overlapLines   = 50
)

// applyWindowing returns the window chunks for primary, or nil if primary
// fits within a single embedding unit. primary.ID must already be set;
// windows are returned with ParentID=primary.ID and increasing WindowIdx.
func applyWindowing(primary *model.Chunk) []*model.Chunk {
	span := primary.LineEnd - primary.LineStart + 1
	if span <= thresholdLines {
		return nil
	}

	lines := strings.Split(primary.Content, "\n")
	var windows []*model.Chunk
	idx := 0
	start := 0 // 0-based offset into lines, relative to primary.LineStart
	for start < len(lines) {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		windowIdx := idx
		w := &model.Chunk{
			Origin:         primary.Origin,
			Language:       primary.Language,
			ChunkType:      primary.ChunkType,
			Name:           primary.Name,
			Signature:      primary.Signature,
			Content:        content,
			Doc:            primary.Doc,
			LineStart:      primary.LineStart + start,
			LineEnd:        primary.LineStart + end - 1,
			ParentID:       primary.ID,
			WindowIdx:      &windowIdx,
			ParentTypeName: primary.ParentTypeName,
			SourceMtime:    primary.SourceMtime,
		}
		h := contentHash(content)
		w.ContentHash = h
		w.ID = chunkID(w.Origin, w.LineStart, h)
		windows = append(windows, w)

		if end == len(lines) {
			break
		}
		start = end - overlapLines
		if start < 0 {
			start = 0
		}
		idx++
	}
	return windows
}
