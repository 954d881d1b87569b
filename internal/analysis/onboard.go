package analysis

import (
	"context"
	"sort"

	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/model"
)

// OnboardChainEntry is a single hop of the call chain BFS, sorted by
// depth then reading order.
type OnboardChainEntry struct {
	Chunk *model.Chunk
	Depth int
}

// OnboardCaller is a direct caller of the entry point, ranked by score.
type OnboardCaller struct {
	Chunk *model.Chunk
	Score float64
}

// OnboardSummary aggregates the reading list's shape.
type OnboardSummary struct {
	TotalItems   int
	FilesCovered int
	CalleeDepth  int
	TestsFound   int
}

// OnboardResult is Onboard's full output.
type OnboardResult struct {
	EntryPoint *model.Chunk
	CallChain  []OnboardChainEntry
	Callers    []OnboardCaller
	KeyTypes   []string
	Tests      []TestHit
	Summary    OnboardSummary
}

const (
	onboardCalleeDepth = 3
	onboardCalleeDecay = 0.7
	onboardCalleeCap   = 100
	onboardCallerDepth = 1
	onboardCallerDecay = 0.8
	onboardCallerCap   = 50
)

// Onboard produces an ordered reading list for a concept: run Scout to
// find an entry point, BFS out along callees and callers, fetch the entry
// point's type dependencies, and find tests that reach it.
func (a *Analyzer) Onboard(ctx context.Context, queryEmb model.Embedding, queryText string, limit int) (*OnboardResult, error) {
	scout, err := a.Scout(ctx, queryEmb, queryText, limit)
	if err != nil {
		return nil, err
	}

	entry := pickEntryPoint(scout)
	if entry == nil {
		return &OnboardResult{}, nil
	}

	g, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	calleeDepths := bfsExpand(g.Forward, entry.Name, onboardCalleeDepth, onboardCalleeCap)
	callerDepths := bfsExpand(g.Reverse, entry.Name, onboardCallerDepth, onboardCallerCap)

	chainNames := make([]string, 0, len(calleeDepths))
	for n := range calleeDepths {
		if n != entry.Name {
			chainNames = append(chainNames, n)
		}
	}
	callerNames := make([]string, 0, len(callerDepths))
	for n := range callerDepths {
		if n != entry.Name {
			callerNames = append(callerNames, n)
		}
	}

	allNames := append(append([]string{}, chainNames...), callerNames...)
	byName, err := a.Store.SearchByNamesBatch(ctx, allNames, 1)
	if err != nil {
		return nil, err
	}

	var chain []OnboardChainEntry
	filesCovered := map[string]struct{}{entry.Origin: {}}
	for _, name := range chainNames {
		if results := byName[name]; len(results) > 0 {
			c := results[0].Chunk
			chain = append(chain, OnboardChainEntry{Chunk: c, Depth: calleeDepths[name]})
			filesCovered[c.Origin] = struct{}{}
		}
	}
	sort.Slice(chain, func(i, j int) bool {
		if chain[i].Depth != chain[j].Depth {
			return chain[i].Depth < chain[j].Depth
		}
		if chain[i].Chunk.Origin != chain[j].Chunk.Origin {
			return chain[i].Chunk.Origin < chain[j].Chunk.Origin
		}
		return chain[i].Chunk.LineStart < chain[j].Chunk.LineStart
	})

	var callers []OnboardCaller
	for _, name := range callerNames {
		if results := byName[name]; len(results) > 0 {
			c := results[0].Chunk
			// decayed score proportional to depth, matching gather's decay model.
			score := onboardCallerDecay
			for d := 1; d < callerDepths[name]; d++ {
				score *= onboardCallerDecay
			}
			callers = append(callers, OnboardCaller{Chunk: c, Score: score})
			filesCovered[c.Origin] = struct{}{}
		}
	}
	sort.Slice(callers, func(i, j int) bool { return callers[i].Score > callers[j].Score })

	typeNames, err := a.Store.GetTypeDependencies(ctx, entry.Name)
	if err != nil {
		return nil, err
	}
	var keyTypes []string
	for _, t := range typeNames {
		if !isCommonType(t) {
			keyTypes = append(keyTypes, t)
		}
	}
	sort.Strings(keyTypes)

	testChunks, err := a.Store.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}
	testNames := make(map[string]struct{}, len(testChunks))
	for _, t := range testChunks {
		testNames[t.Name] = struct{}{}
	}
	ancestors := graph.ReverseBFS(g, entry.Name, defaultTestDepth)
	var tests []TestHit
	for name, depth := range ancestors {
		if _, isTest := testNames[name]; isTest {
			tests = append(tests, TestHit{TestName: name, Depth: depth})
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].Depth < tests[j].Depth })

	return &OnboardResult{
		EntryPoint: entry,
		CallChain:  chain,
		Callers:    callers,
		KeyTypes:   keyTypes,
		Tests:      tests,
		Summary: OnboardSummary{
			TotalItems:   1 + len(chain) + len(callers),
			FilesCovered: len(filesCovered),
			CalleeDepth:  onboardCalleeDepth,
			TestsFound:   len(tests),
		},
	}, nil
}

// pickEntryPoint chooses the Scout entry point preferring ModifyTarget
// callable chunks, then any ModifyTarget, then the highest-scored
// callable, then the highest-scored non-test.
func pickEntryPoint(scout *ScoutResult) *model.Chunk {
	var modifyCallable, anyModify, bestCallable, bestNonTest *ScoutChunk
	bestCallableScore, bestNonTestScore := -1.0, -1.0

	for i := range scout.Files {
		for j := range scout.Files[i].Chunks {
			c := &scout.Files[i].Chunks[j]
			isCallable := c.Chunk.ChunkType == model.ChunkFunction || c.Chunk.ChunkType == model.ChunkMethod

			if c.Role == RoleModifyTarget && isCallable && modifyCallable == nil {
				modifyCallable = c
			}
			if c.Role == RoleModifyTarget && anyModify == nil {
				anyModify = c
			}
			if isCallable && c.Hints.SearchScore > bestCallableScore {
				bestCallableScore = c.Hints.SearchScore
				bestCallable = c
			}
			if c.Role != RoleTestToUpdate && c.Hints.SearchScore > bestNonTestScore {
				bestNonTestScore = c.Hints.SearchScore
				bestNonTest = c
			}
		}
	}

	switch {
	case modifyCallable != nil:
		return modifyCallable.Chunk
	case anyModify != nil:
		return anyModify.Chunk
	case bestCallable != nil:
		return bestCallable.Chunk
	case bestNonTest != nil:
		return bestNonTest.Chunk
	}
	return nil
}

// bfsExpand walks adjacency from start up to maxDepth hops, capped at
// maxNodes, recording the first (minimum) depth at which each name is
// reached.
func bfsExpand(adjacency map[string][]string, start string, maxDepth, maxNodes int) map[string]int {
	depths := map[string]int{start: 0}
	type item struct {
		name  string
		depth int
	}
	queue := []item{{start, 0}}
	count := 1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, n := range adjacency[cur.name] {
			if _, seen := depths[n]; seen {
				continue
			}
			if count >= maxNodes {
				return depths
			}
			depths[n] = cur.depth + 1
			count++
			queue = append(queue, item{n, cur.depth + 1})
		}
	}
	return depths
}
