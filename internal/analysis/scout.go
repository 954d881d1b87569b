package analysis

import (
	"context"
	"sort"
	"strings"

	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

// Role classifies a chunk's place in a planned change.
type Role string

const (
	RoleModifyTarget Role = "modify_target"
	RoleTestToUpdate Role = "test_to_update"
	RoleDependency   Role = "dependency"
)

// ScoutHints carries the raw signals behind a chunk's role assignment.
type ScoutHints struct {
	CallerCount int
	TestCount   int
	SearchScore float64
}

// ScoutChunk is a single chunk entry of a Scout dashboard.
type ScoutChunk struct {
	Chunk *model.Chunk
	Role  Role
	Hints ScoutHints
}

// ScoutFile groups ScoutChunks by file with an aggregate relevance score.
// Stale is always false: Scout does not check files for staleness.
type ScoutFile struct {
	Origin    string
	Relevance float64
	Chunks    []ScoutChunk
	Stale     bool
}

// ScoutResult is Scout's full output.
type ScoutResult struct {
	Files []ScoutFile
	Notes []*model.Note
}

// minGapRatio is the default gap-detection threshold for the dynamic
// ModifyTarget/Dependency split.
const minGapRatio = 0.10

// Scout returns a planning dashboard for query: files grouped by
// relevance, chunks tagged by role via gap-detection on the score
// distribution, and notes whose mentions match a result file path. Files
// are not checked for staleness; every ScoutFile has Stale false.
func (a *Analyzer) Scout(ctx context.Context, queryEmb model.Embedding, queryText string, limit int) (*ScoutResult, error) {
	results, err := a.Engine.SearchFiltered(ctx, queryEmb, search.Filter{
		QueryText: queryText, EnableRRF: true,
	}, limit)
	if err != nil {
		return nil, err
	}

	g, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	testChunks, err := a.Store.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}
	testNames := make(map[string]struct{}, len(testChunks))
	for _, t := range testChunks {
		testNames[t.Name] = struct{}{}
	}

	type scoredChunk struct {
		res      model.SearchResult
		isTest   bool
		callers  int
		testHits int
	}
	var all []scoredChunk
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		isTest := store.IsTestChunk(r.Chunk)
		callers := len(dedupeStrings(g.Reverse[r.Chunk.Name]))
		testHits := 0
		for ancestor := range graph.ReverseBFS(g, r.Chunk.Name, defaultTestDepth) {
			if _, ok := testNames[ancestor]; ok {
				testHits++
			}
		}
		all = append(all, scoredChunk{res: r, isTest: isTest, callers: callers, testHits: testHits})
	}

	nonTestScores := make([]float64, 0, len(all))
	for _, c := range all {
		if !c.isTest {
			nonTestScores = append(nonTestScores, c.res.Score)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(nonTestScores)))
	splitScore := gapSplit(nonTestScores)

	byOrigin := map[string]*ScoutFile{}
	var order []string
	for _, c := range all {
		origin := c.res.Chunk.Origin
		f, ok := byOrigin[origin]
		if !ok {
			f = &ScoutFile{Origin: origin}
			byOrigin[origin] = f
			order = append(order, origin)
		}
		f.Relevance += c.res.Score

		var role Role
		switch {
		case c.isTest:
			role = RoleTestToUpdate
		case splitScore >= 0 && c.res.Score >= splitScore:
			role = RoleModifyTarget
		default:
			role = RoleDependency
		}

		f.Chunks = append(f.Chunks, ScoutChunk{
			Chunk: c.res.Chunk,
			Role:  role,
			Hints: ScoutHints{CallerCount: c.callers, TestCount: c.testHits, SearchScore: c.res.Score},
		})
	}

	files := make([]ScoutFile, 0, len(byOrigin))
	for _, origin := range order {
		files = append(files, *byOrigin[origin])
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Relevance > files[j].Relevance })

	allNotes, err := a.Store.GetAllNotes(ctx)
	if err != nil {
		allNotes = nil
	}
	var matchedNotes []*model.Note
	for _, n := range allNotes {
		for _, mention := range n.Mentions {
			if mentionMatchesAnyFile(mention, files) {
				matchedNotes = append(matchedNotes, n)
				break
			}
		}
	}

	return &ScoutResult{Files: files, Notes: matchedNotes}, nil
}

// gapSplit finds the largest relative gap (s[i]-s[i+1])/s[i] in the top
// half of descending-sorted scores; if it is >= minGapRatio, returns the
// score at the split point. Otherwise only the top result qualifies.
func gapSplit(sorted []float64) float64 {
	if len(sorted) == 0 {
		return -1
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	half := len(sorted) / 2
	if half < 1 {
		half = 1
	}
	bestGap := -1.0
	bestIdx := -1
	for i := 0; i < half && i < len(sorted)-1; i++ {
		if sorted[i] == 0 {
			continue
		}
		gap := (sorted[i] - sorted[i+1]) / sorted[i]
		if gap > bestGap {
			bestGap = gap
			bestIdx = i
		}
	}
	if bestIdx >= 0 && bestGap >= minGapRatio {
		return sorted[bestIdx]
	}
	return sorted[0]
}

func mentionMatchesAnyFile(mention string, files []ScoutFile) bool {
	for _, f := range files {
		if pathMentionMatches(mention, f.Origin) {
			return true
		}
	}
	return false
}

// pathMentionMatches reports whether mention is a path-component-boundary
// suffix of origin: either equal, or origin ends with mention preceded by
// '/' or '\'.
func pathMentionMatches(mention, origin string) bool {
	if mention == "" {
		return false
	}
	if mention == origin {
		return true
	}
	if !strings.HasSuffix(origin, mention) {
		return false
	}
	idx := len(origin) - len(mention)
	if idx <= 0 {
		return false
	}
	boundary := origin[idx-1]
	return boundary == '/' || boundary == '\\'
}

func dedupeStrings(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
