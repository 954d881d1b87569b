package analysis

import (
	"context"
	"sort"

	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

// GatherOptions configures Gather.
type GatherOptions struct {
	SeedLimit        int
	SeedThreshold    float64
	ExpandDepth      int
	Direction        Direction
	DecayFactor      float64
	MaxExpandedNodes int
	Limit            int
}

// DefaultGatherOptions returns the standard expansion parameters.
func DefaultGatherOptions() GatherOptions {
	return GatherOptions{
		SeedLimit: 10, SeedThreshold: 0.3, ExpandDepth: 1,
		Direction: DirectionBoth, DecayFactor: 0.8, MaxExpandedNodes: 200, Limit: 20,
	}
}

// GatheredChunk is a single result of Gather, with its BFS-derived score
// and hop depth from the nearest seed.
type GatheredChunk struct {
	Chunk *model.Chunk
	Score float64
	Depth int
}

// GatherResult is Gather's full output.
type GatherResult struct {
	Chunks          []GatheredChunk
	ExpansionCapped bool
	SearchDegraded  bool
}

// Gather returns the smallest set of chunks that answers query, combining
// a hybrid-search seed with call-graph BFS expansion.
func (a *Analyzer) Gather(ctx context.Context, queryEmb model.Embedding, queryText string, opts GatherOptions) (*GatherResult, error) {
	if opts.DecayFactor < 0 {
		opts.DecayFactor = 0
	}
	if opts.DecayFactor > 1 {
		opts.DecayFactor = 1
	}

	seeds, err := a.Engine.SearchFiltered(ctx, queryEmb, search.Filter{
		QueryText: queryText, EnableRRF: true, Threshold: opts.SeedThreshold,
	}, opts.SeedLimit)
	if err != nil {
		return nil, err
	}

	nameScores := make(map[string]float64, len(seeds))
	depths := make(map[string]int, len(seeds))
	type queued struct {
		name  string
		depth int
	}
	queue := make([]queued, 0, len(seeds))
	for _, s := range seeds {
		if s.Chunk == nil {
			continue
		}
		if existing, ok := nameScores[s.Chunk.Name]; !ok || s.Score > existing {
			nameScores[s.Chunk.Name] = s.Score
		}
		depths[s.Chunk.Name] = 0
		queue = append(queue, queued{s.Chunk.Name, 0})
	}

	graph, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	expansionCapped := false
	expandedCount := len(nameScores)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= opts.ExpandDepth {
			continue
		}
		if expandedCount >= opts.MaxExpandedNodes {
			expansionCapped = true
			break
		}

		var neighbors []string
		if opts.Direction == DirectionBoth || opts.Direction == DirectionCallees {
			neighbors = append(neighbors, graph.Forward[cur.name]...)
		}
		if opts.Direction == DirectionBoth || opts.Direction == DirectionCallers {
			neighbors = append(neighbors, graph.Reverse[cur.name]...)
		}

		parentScore := nameScores[cur.name]
		childScore := parentScore * opts.DecayFactor
		for _, n := range neighbors {
			if expandedCount >= opts.MaxExpandedNodes {
				expansionCapped = true
				break
			}
			existing, seen := nameScores[n]
			if seen && existing >= childScore {
				continue
			}
			isNew := !seen
			nameScores[n] = childScore
			depths[n] = cur.depth + 1
			if isNew {
				expandedCount++
				queue = append(queue, queued{n, cur.depth + 1})
			}
		}
	}

	names := make([]string, 0, len(nameScores))
	for n := range nameScores {
		names = append(names, n)
	}

	searchDegraded := false
	byName, err := a.Store.SearchByNamesBatch(ctx, names, 1)
	if err != nil {
		searchDegraded = true
		byName = map[string][]model.SearchResult{}
	}

	var out []GatheredChunk
	seenIDs := map[string]struct{}{}
	for name, score := range nameScores {
		results := byName[name]
		if len(results) == 0 {
			continue
		}
		c := results[0].Chunk
		if _, dup := seenIDs[c.ID]; dup {
			continue
		}
		seenIDs[c.ID] = struct{}{}
		out = append(out, GatheredChunk{Chunk: c, Score: score, Depth: depths[name]})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.Name < out[j].Chunk.Name
	})
	if opts.Limit >= 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chunk.Origin != out[j].Chunk.Origin {
			return out[i].Chunk.Origin < out[j].Chunk.Origin
		}
		if out[i].Chunk.LineStart != out[j].Chunk.LineStart {
			return out[i].Chunk.LineStart < out[j].Chunk.LineStart
		}
		return out[i].Chunk.Name < out[j].Chunk.Name
	})

	return &GatherResult{Chunks: out, ExpansionCapped: expansionCapped, SearchDegraded: searchDegraded}, nil
}

// CrossIndexGatheredChunk augments GatheredChunk with the reference name it
// bridged from, when applicable.
type CrossIndexGatheredChunk struct {
	GatheredChunk
	SourceRef string // "" for project-native chunks
}

// GatherCrossIndex seeds from a reference index, bridges into the project
// store by embedding lookup, and BFS-expands the bridged names in the
// project's own call graph.
func (a *Analyzer) GatherCrossIndex(ctx context.Context, refName string, refEngine *search.Engine, refStore *store.Store, queryEmb model.Embedding, queryText string, opts GatherOptions) ([]CrossIndexGatheredChunk, error) {
	refSeeds, err := refEngine.SearchFiltered(ctx, queryEmb, search.Filter{
		QueryText: queryText, EnableRRF: true, Threshold: opts.SeedThreshold,
	}, opts.SeedLimit)
	if err != nil {
		return nil, err
	}

	bridgeScores := map[string]float64{}
	for _, seed := range refSeeds {
		if seed.Chunk == nil {
			continue
		}
		cands, err := refStore.ScanCandidatesByIDs(ctx, []string{seed.Chunk.ID})
		if err != nil || len(cands) == 0 {
			continue
		}
		bridgeHits, err := a.Engine.SearchFiltered(ctx, cands[0].Embedding, search.Filter{}, 3)
		if err != nil {
			continue
		}
		for _, b := range bridgeHits {
			if b.Chunk == nil {
				continue
			}
			score := b.Score * seed.Score
			if existing, ok := bridgeScores[b.Chunk.Name]; !ok || score > existing {
				bridgeScores[b.Chunk.Name] = score
			}
		}
	}

	names := make([]string, 0, len(bridgeScores))
	for n := range bridgeScores {
		names = append(names, n)
	}
	graph, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	depths := map[string]int{}
	for n := range bridgeScores {
		depths[n] = 0
	}
	frontier := append([]string{}, names...)
	for hop := 0; hop < opts.ExpandDepth && len(frontier) > 0; hop++ {
		var next []string
		for _, name := range frontier {
			parentScore := bridgeScores[name]
			childScore := parentScore * opts.DecayFactor
			var neighbors []string
			neighbors = append(neighbors, graph.Forward[name]...)
			neighbors = append(neighbors, graph.Reverse[name]...)
			for _, n := range neighbors {
				if existing, ok := bridgeScores[n]; ok && existing >= childScore {
					continue
				}
				if _, seen := depths[n]; !seen {
					next = append(next, n)
				}
				bridgeScores[n] = childScore
				depths[n] = hop + 1
			}
		}
		frontier = next
	}

	allNames := make([]string, 0, len(bridgeScores))
	for n := range bridgeScores {
		allNames = append(allNames, n)
	}
	byName, err := a.Store.SearchByNamesBatch(ctx, allNames, 1)
	if err != nil {
		return nil, err
	}

	refNameSet := map[string]struct{}{}
	for _, seed := range refSeeds {
		if seed.Chunk != nil {
			refNameSet[seed.Chunk.Name] = struct{}{}
		}
	}

	var refOut, projectOut []CrossIndexGatheredChunk
	for name, score := range bridgeScores {
		results := byName[name]
		if len(results) == 0 {
			continue
		}
		c := results[0].Chunk
		item := CrossIndexGatheredChunk{GatheredChunk: GatheredChunk{Chunk: c, Score: score, Depth: depths[name]}}
		if _, isRef := refNameSet[name]; isRef {
			item.SourceRef = refName
			refOut = append(refOut, item)
		} else {
			projectOut = append(projectOut, item)
		}
	}

	sortByReadingOrder := func(items []CrossIndexGatheredChunk) {
		sort.Slice(items, func(i, j int) bool {
			if items[i].Chunk.Origin != items[j].Chunk.Origin {
				return items[i].Chunk.Origin < items[j].Chunk.Origin
			}
			return items[i].Chunk.LineStart < items[j].Chunk.LineStart
		})
	}
	sortByReadingOrder(refOut)
	sortByReadingOrder(projectOut)

	return append(refOut, projectOut...), nil
}
