package analysis

import (
	"context"
	"sort"
	"strconv"
	"strings"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/store"
)

const defaultTestDepth = 5

// TestHit pairs a test chunk's name with its minimum BFS depth from the
// target.
type TestHit struct {
	TestName string
	Depth    int
}

// ImpactResult is AnalyzeImpact's output.
type ImpactResult struct {
	FunctionName      string
	Callers           []store.CallerWithContext
	Tests             []TestHit
	TransitiveCallers map[string]int // name -> min depth
}

// AnalyzeImpact reports who calls targetName, which tests reach it, and
// (when depth > 1) its full transitive caller set.
func (a *Analyzer) AnalyzeImpact(ctx context.Context, targetName string, depth int) (*ImpactResult, error) {
	callers, err := a.Store.GetCallersWithContext(ctx, targetName)
	if err != nil {
		return nil, err
	}

	g, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	// Resolving the target is the one primary result impact requires:
	// a name absent from both the chunk index and the call graph is an
	// error, not an empty report.
	if len(callers) == 0 {
		_, inFwd := g.Forward[targetName]
		_, inRev := g.Reverse[targetName]
		if !inFwd && !inRev {
			hits, herr := a.Store.SearchByName(ctx, targetName, 1)
			if herr != nil {
				return nil, herr
			}
			if len(hits) == 0 {
				return nil, cqserrors.NotFoundError(targetName)
			}
		}
	}

	testChunks, err := a.Store.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}
	testNames := make(map[string]struct{}, len(testChunks))
	for _, t := range testChunks {
		testNames[t.Name] = struct{}{}
	}

	frontier := graph.ReverseBFS(g, targetName, defaultTestDepth)
	var tests []TestHit
	for name, d := range frontier {
		if _, isTest := testNames[name]; isTest {
			tests = append(tests, TestHit{TestName: name, Depth: d})
		}
	}
	sort.Slice(tests, func(i, j int) bool {
		if tests[i].Depth != tests[j].Depth {
			return tests[i].Depth < tests[j].Depth
		}
		return tests[i].TestName < tests[j].TestName
	})

	var transitive map[string]int
	if depth > 1 {
		transitive = graph.ReverseBFS(g, targetName, depth)
		delete(transitive, targetName)
	}

	return &ImpactResult{
		FunctionName:      targetName,
		Callers:           callers,
		Tests:             tests,
		TransitiveCallers: transitive,
	}, nil
}

// DiffHunk is a single unified-diff hunk: origin is forward-slash
// normalized, [start, start+count) is the changed line range.
type DiffHunk struct {
	Origin string
	Start  int
	Count  int
}

// MapHunksToFunctions finds every chunk whose [LineStart, LineEnd] range
// overlaps any hunk for the same origin. Zero-count hunks are skipped.
func MapHunksToFunctions(hunks []DiffHunk, chunksByOrigin map[string][]*model.Chunk) map[string][]*model.Chunk {
	out := map[string][]*model.Chunk{}
	for _, h := range hunks {
		if h.Count <= 0 {
			continue
		}
		origin := strings.ReplaceAll(h.Origin, "\\", "/")
		hunkEnd := h.Start + h.Count
		for _, c := range chunksByOrigin[origin] {
			if c.LineStart < hunkEnd && h.Start < c.LineEnd+1 {
				out[origin] = append(out[origin], c)
			}
		}
	}
	return out
}

// DiffImpactResult is AnalyzeDiffImpact's output: a union of per-function
// impacts with deduplicated callers and tests.
type DiffImpactResult struct {
	Targets []string
	Callers []store.CallerWithContext
	Tests   []TestHit
}

// AnalyzeDiffImpact unions the impact of every function touched by hunks,
// deduplicating callers and tests. Each test keeps the minimum depth at
// which any changed function reaches it; the result does not record which
// changed function that was.
func (a *Analyzer) AnalyzeDiffImpact(ctx context.Context, hunks []DiffHunk, chunksByOrigin map[string][]*model.Chunk) (*DiffImpactResult, error) {
	mapped := MapHunksToFunctions(hunks, chunksByOrigin)

	targetSet := map[string]struct{}{}
	for _, chunks := range mapped {
		for _, c := range chunks {
			targetSet[c.Name] = struct{}{}
		}
	}
	targets := make([]string, 0, len(targetSet))
	for t := range targetSet {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	callerSeen := map[string]struct{}{}
	var callers []store.CallerWithContext
	testMinDepth := map[string]int{}

	for _, target := range targets {
		impact, err := a.AnalyzeImpact(ctx, target, 1)
		if err != nil {
			return nil, err
		}
		for _, c := range impact.Callers {
			key := c.CallerName + "|" + c.Origin + "|" + strconv.Itoa(c.CallLine)
			if _, dup := callerSeen[key]; dup {
				continue
			}
			callerSeen[key] = struct{}{}
			callers = append(callers, c)
		}
		for _, t := range impact.Tests {
			if existing, ok := testMinDepth[t.TestName]; !ok || t.Depth < existing {
				testMinDepth[t.TestName] = t.Depth
			}
		}
	}

	tests := make([]TestHit, 0, len(testMinDepth))
	for name, d := range testMinDepth {
		tests = append(tests, TestHit{TestName: name, Depth: d})
	}
	sort.Slice(tests, func(i, j int) bool {
		if tests[i].Depth != tests[j].Depth {
			return tests[i].Depth < tests[j].Depth
		}
		return tests[i].TestName < tests[j].TestName
	})

	return &DiffImpactResult{Targets: targets, Callers: callers, Tests: tests}, nil
}

// TestSuggestion proposes a test for an untested caller.
type TestSuggestion struct {
	TestName      string
	SuggestedFile string
	ForFunction   string
	PatternSource string
	Inline        bool
}

// testNameTemplate and suggestedFileTemplate follow each language's
// conventions for naming and placing new tests.
func testNameTemplate(language, funcName string) string {
	switch language {
	case "java":
		return "test" + strings.ToUpper(funcName[:1]) + funcName[1:]
	case "javascript", "typescript":
		return "test('" + funcName + "', …)"
	default:
		return "test_" + toSnake(funcName)
	}
}

func suggestedFileTemplate(language, origin string) string {
	switch language {
	case "rust":
		if strings.HasSuffix(origin, ".rs") {
			return strings.TrimSuffix(origin, ".rs") + "_test.rs"
		}
	case "python":
		if idx := strings.LastIndex(origin, "/"); idx >= 0 {
			return origin[:idx+1] + "test_" + origin[idx+1:]
		}
		return "test_" + origin
	case "typescript", "javascript":
		ext := ".ts"
		if language == "javascript" {
			ext = ".js"
		}
		if strings.HasSuffix(origin, ext) {
			return strings.TrimSuffix(origin, ext) + ".test" + ext
		}
	}
	return origin
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SuggestTests proposes a test for every caller in impact that has no
// reverse-BFS path to an existing test chunk.
func (a *Analyzer) SuggestTests(ctx context.Context, impact *ImpactResult) ([]TestSuggestion, error) {
	g, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	testChunks, err := a.Store.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}
	testNames := make(map[string]struct{}, len(testChunks))
	testOrigins := make(map[string]struct{}, len(testChunks))
	for _, t := range testChunks {
		testNames[t.Name] = struct{}{}
		testOrigins[t.Origin] = struct{}{}
	}

	var out []TestSuggestion
	seen := map[string]struct{}{}
	for _, c := range impact.Callers {
		if _, dup := seen[c.CallerName]; dup {
			continue
		}
		seen[c.CallerName] = struct{}{}

		reached := graph.ReverseBFS(g, c.CallerName, defaultTestDepth)
		covered := false
		for name := range reached {
			if _, isTest := testNames[name]; isTest {
				covered = true
				break
			}
		}
		if covered {
			continue
		}

		language := "go"
		if strings.HasSuffix(c.Origin, ".py") {
			language = "python"
		} else if strings.HasSuffix(c.Origin, ".rs") {
			language = "rust"
		} else if strings.HasSuffix(c.Origin, ".java") {
			language = "java"
		} else if strings.HasSuffix(c.Origin, ".ts") {
			language = "typescript"
		} else if strings.HasSuffix(c.Origin, ".js") {
			language = "javascript"
		}

		_, inline := testOrigins[c.Origin]
		out = append(out, TestSuggestion{
			TestName:      testNameTemplate(language, c.CallerName),
			SuggestedFile: suggestedFileTemplate(language, c.Origin),
			ForFunction:   c.CallerName,
			PatternSource: language,
			Inline:        inline,
		})
	}
	return out, nil
}
