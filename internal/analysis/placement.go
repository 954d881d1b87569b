package analysis

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

// LocalPatterns summarizes the conventions already present in a file, so a
// placement suggestion can match its neighbors.
type LocalPatterns struct {
	DominantImports    []string
	ErrorHandlingStyle string
	NamingConvention   string
	DominantVisibility string
	HasInlineTests     bool
}

// PlacementSuggestion is a single entry of SuggestPlacement's output.
type PlacementSuggestion struct {
	Origin         string
	Score          float64
	InsertionLine  int
	LocalPatterns  LocalPatterns
}

// maxDominantImports caps the imports reported per file.
const maxDominantImports = 10

// SuggestPlacement hybrid-searches for description using its precomputed
// embedding descriptionEmb, groups
// hits by file ranked by the sum of their chunk scores, and for each top
// file derives an insertion point and the file's local conventions.
func (a *Analyzer) SuggestPlacement(ctx context.Context, descriptionEmb model.Embedding, description string, limit int) ([]PlacementSuggestion, error) {
	hits, err := a.Engine.SearchFiltered(ctx, descriptionEmb, search.Filter{
		QueryText: description, EnableRRF: true,
	}, limit*5)
	if err != nil {
		return nil, err
	}

	type fileAgg struct {
		origin    string
		sumScore  float64
		bestChunk *model.Chunk
		chunks    []*model.Chunk
	}
	byOrigin := map[string]*fileAgg{}
	var order []string
	for _, h := range hits {
		if h.Chunk == nil {
			continue
		}
		f, ok := byOrigin[h.Chunk.Origin]
		if !ok {
			f = &fileAgg{origin: h.Chunk.Origin}
			byOrigin[h.Chunk.Origin] = f
			order = append(order, h.Chunk.Origin)
		}
		f.sumScore += h.Score
		f.chunks = append(f.chunks, h.Chunk)
	}
	bestScore := map[string]float64{}
	for _, h := range hits {
		if h.Chunk == nil {
			continue
		}
		f := byOrigin[h.Chunk.Origin]
		if h.Score >= bestScore[h.Chunk.Origin] {
			bestScore[h.Chunk.Origin] = h.Score
			f.bestChunk = h.Chunk
		}
	}

	sort.Slice(order, func(i, j int) bool { return byOrigin[order[i]].sumScore > byOrigin[order[j]].sumScore })
	if len(order) > limit {
		order = order[:limit]
	}

	var out []PlacementSuggestion
	for _, origin := range order {
		f := byOrigin[origin]
		insertionLine := 1
		if f.bestChunk != nil {
			insertionLine = f.bestChunk.LineEnd + 1
		}

		allFileChunks, err := a.Store.GetChunksByOrigin(ctx, origin)
		if err != nil {
			allFileChunks = f.chunks
		}
		out = append(out, PlacementSuggestion{
			Origin:        origin,
			Score:         f.sumScore,
			InsertionLine: insertionLine,
			LocalPatterns: extractLocalPatterns(allFileChunks),
		})
	}
	return out, nil
}

var importLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*import\s+.+`),
	regexp.MustCompile(`^\s*use\s+[\w:]+.*;?\s*$`),
	regexp.MustCompile(`^\s*#include\s+[<"].+[>"]`),
	regexp.MustCompile(`^\s*from\s+\S+\s+import\s+.+`),
	regexp.MustCompile(`^\s*require\(['"].+['"]\)`),
}

var errorStyleMarkers = map[string]*regexp.Regexp{
	"anyhow":      regexp.MustCompile(`\banyhow::`),
	"thiserror":   regexp.MustCompile(`#\[derive\([^)]*thiserror`),
	"raise":       regexp.MustCompile(`\braise\s+\w`),
	"try/catch":   regexp.MustCompile(`\btry\s*\{|\bcatch\s*\(`),
	"errno":       regexp.MustCompile(`\berrno\b`),
	"errors.New":  regexp.MustCompile(`\berrors\.(New|Is|As)\b`),
	"fmt.Errorf":  regexp.MustCompile(`\bfmt\.Errorf\b`),
}

// extractLocalPatterns scans a file's chunks for its dominant import,
// error-handling, naming, and visibility conventions.
func extractLocalPatterns(chunks []*model.Chunk) LocalPatterns {
	var lp LocalPatterns
	importSeen := map[string]struct{}{}
	var imports []string
	errorStyleCount := map[string]int{}
	namingCount := map[string]int{}
	exportedCount, unexportedCount := 0, 0

	for _, c := range chunks {
		for _, line := range strings.Split(c.Content, "\n") {
			for _, pat := range importLinePatterns {
				if pat.MatchString(line) {
					trimmed := strings.TrimSpace(line)
					if _, ok := importSeen[trimmed]; !ok && len(imports) < maxDominantImports {
						importSeen[trimmed] = struct{}{}
						imports = append(imports, trimmed)
					}
				}
			}
			for style, pat := range errorStyleMarkers {
				if pat.MatchString(line) {
					errorStyleCount[style]++
				}
			}
		}

		if store.IsTestChunk(c) {
			lp.HasInlineTests = true
			continue
		}

		namingCount[namingStyleOf(c.Name)]++
		if isExportedName(c.Name) {
			exportedCount++
		} else {
			unexportedCount++
		}
	}

	lp.DominantImports = imports
	lp.ErrorHandlingStyle = topKey(errorStyleCount)
	lp.NamingConvention = topKey(namingCount)
	if exportedCount >= unexportedCount {
		lp.DominantVisibility = "exported"
	} else {
		lp.DominantVisibility = "unexported"
	}
	return lp
}

func namingStyleOf(name string) string {
	switch {
	case strings.Contains(name, "_"):
		return "snake_case"
	case strings.Contains(name, "-"):
		return "kebab-case"
	case len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z':
		return "PascalCase"
	default:
		return "camelCase"
	}
}

func isExportedName(name string) bool {
	if name == "" {
		return false
	}
	r := name[0]
	return r >= 'A' && r <= 'Z'
}

func topKey(counts map[string]int) string {
	best := ""
	bestN := 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestN {
			bestN = counts[k]
			best = k
		}
	}
	return best
}
