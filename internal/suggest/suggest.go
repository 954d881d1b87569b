// Package suggest scans the index for note-worthy patterns (dead code
// clusters, untested hotspots, high-risk functions, stale note mentions)
// and proposes notes an operator could add.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/store"
)

// deadClusterMinSize is the minimum dead-function count for flagging a
// file as a dead code cluster.
const deadClusterMinSize = 5

// hotspotMinCallers is shared with the health report's untested-hotspot
// threshold.
const hotspotMinCallers = 5

// suggestHotspotPool bounds how many top hotspots are evaluated for risk
// patterns.
const suggestHotspotPool = 20

// Suggestion is a candidate note produced by a detector.
type Suggestion struct {
	Text      string
	Sentiment float64
	Mentions  []string
	Reason    string
}

// detector scans the store for a specific anti-pattern. Errors are
// non-fatal: other detectors still run.
type detector func(ctx context.Context, s *store.Store, projectRoot string) ([]Suggestion, error)

// detectors is the registry run in order by Suggest. To add one, define a
// detector and append it here.
var detectors = []struct {
	name string
	fn   detector
}{
	{"dead_code_cluster", detectDeadClusters},
	{"risk_patterns", detectRiskPatterns},
	{"stale_mention", detectStaleMentions},
}

// Suggest runs every registered detector and deduplicates the results
// against existing notes by bidirectional substring match.
func Suggest(ctx context.Context, s *store.Store, projectRoot string) ([]Suggestion, error) {
	var suggestions []Suggestion
	for _, d := range detectors {
		found, err := d.fn(ctx, s, projectRoot)
		if err != nil {
			slog.Warn("detector_failed", slog.String("detector", d.name), slog.Any("err", err))
			continue
		}
		suggestions = append(suggestions, found...)
	}

	existing, err := s.GetAllNotes(ctx)
	if err != nil {
		slog.Warn("dedup_load_failed", slog.Any("err", err))
		existing = nil
	}

	out := suggestions[:0]
	for _, sg := range suggestions {
		if !dupeOfExisting(sg.Text, existing) {
			out = append(out, sg)
		}
	}
	return out, nil
}

func dupeOfExisting(text string, existing []*model.Note) bool {
	for _, n := range existing {
		if strings.Contains(n.Text, text) || strings.Contains(text, n.Text) {
			return true
		}
	}
	return false
}

// detectDeadClusters flags files with deadClusterMinSize or more
// confident-dead functions.
func detectDeadClusters(ctx context.Context, s *store.Store, _ string) ([]Suggestion, error) {
	confident, _, err := s.FindDeadCode(ctx, true)
	if err != nil {
		return nil, err
	}

	byFile := map[string]int{}
	for _, c := range confident {
		byFile[c.Origin]++
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var out []Suggestion
	for _, f := range files {
		count := byFile[f]
		if count < deadClusterMinSize {
			continue
		}
		out = append(out, Suggestion{
			Text:      fmt.Sprintf("%s has %d dead functions — consider cleanup", f, count),
			Sentiment: -0.5,
			Mentions:  []string{f},
			Reason:    "dead_code_cluster",
		})
	}
	return out, nil
}

// detectRiskPatterns flags untested hotspots and high-risk functions
// among the top suggestHotspotPool hotspots by caller count.
func detectRiskPatterns(ctx context.Context, s *store.Store, _ string) ([]Suggestion, error) {
	g, err := s.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	testChunks, err := s.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}
	hotspots := graph.FindHotspots(g, suggestHotspotPool)
	if len(hotspots) == 0 {
		return nil, nil
	}

	testNames := make(map[string]struct{}, len(testChunks))
	for _, t := range testChunks {
		testNames[t.Name] = struct{}{}
	}

	names := make([]string, len(hotspots))
	for i, h := range hotspots {
		names[i] = h.Name
	}
	risks := graph.ComputeRiskBatch(names, g, testNames)
	riskByName := make(map[string]graph.RiskScore, len(risks))
	for _, r := range risks {
		riskByName[r.Name] = r
	}

	var out []Suggestion
	for _, h := range hotspots {
		r, ok := riskByName[h.Name]
		if !ok {
			continue
		}
		switch {
		case r.CallerCount >= hotspotMinCallers && r.TestCount == 0:
			out = append(out, Suggestion{
				Text:      fmt.Sprintf("%s has %d callers but no tests", h.Name, h.CallerCount),
				Sentiment: -0.5,
				Mentions:  []string{h.Name},
				Reason:    "untested_hotspot",
			})
		case r.Level == graph.RiskHigh:
			out = append(out, Suggestion{
				Text:      fmt.Sprintf("%s is high-risk: %d callers, %d tests", h.Name, h.CallerCount, r.TestCount),
				Sentiment: -1.0,
				Mentions:  []string{h.Name},
				Reason:    "high_risk",
			})
		}
	}
	return out, nil
}

// mentionKind classifies how a note mention should be verified.
type mentionKind int

const (
	mentionFile mentionKind = iota
	mentionSymbol
	mentionConcept
)

// classifyMention classifies a note mention: a
// File mention contains '.', '/', or '\\'; a Symbol mention contains
// '_' or "::" or is PascalCase; everything else is a Concept and is not
// verifiable.
func classifyMention(mention string) mentionKind {
	if strings.ContainsAny(mention, "./\\") {
		return mentionFile
	}
	if strings.Contains(mention, "_") || strings.Contains(mention, "::") || isPascalCase(mention) {
		return mentionSymbol
	}
	return mentionConcept
}

// isPascalCase reports whether s starts with an uppercase letter, has at
// least one lowercase letter, and is longer than one character.
func isPascalCase(s string) bool {
	runes := []rune(s)
	if len(runes) <= 1 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

type stalePair struct {
	text  string
	stale []string
}

// findStaleMentions checks every note's mentions: File mentions against
// the filesystem (joined with projectRoot), Symbol mentions against the
// index via a single batched lookup. Concept mentions are skipped.
func findStaleMentions(ctx context.Context, s *store.Store, projectRoot string) ([]stalePair, error) {
	notes, err := s.GetAllNotes(ctx)
	if err != nil {
		return nil, err
	}

	symbolSet := map[string]struct{}{}
	for _, n := range notes {
		for _, m := range n.Mentions {
			if classifyMention(m) == mentionSymbol {
				symbolSet[m] = struct{}{}
			}
		}
	}
	symbolMentions := make([]string, 0, len(symbolSet))
	for m := range symbolSet {
		symbolMentions = append(symbolMentions, m)
	}
	sort.Strings(symbolMentions)

	var symbolResults map[string][]model.SearchResult
	if len(symbolMentions) > 0 {
		symbolResults, err = s.SearchByNamesBatch(ctx, symbolMentions, 1)
		if err != nil {
			return nil, err
		}
	}

	var out []stalePair
	for _, n := range notes {
		var stale []string
		for _, m := range n.Mentions {
			switch classifyMention(m) {
			case mentionFile:
				if _, err := os.Stat(filepath.Join(projectRoot, m)); err != nil {
					stale = append(stale, m)
				}
			case mentionSymbol:
				if len(symbolResults[m]) == 0 {
					stale = append(stale, m)
				}
			case mentionConcept:
			}
		}
		if len(stale) > 0 {
			out = append(out, stalePair{text: n.Text, stale: stale})
		}
	}
	return out, nil
}

// detectStaleMentions flags notes referencing files or symbols that no
// longer exist.
func detectStaleMentions(ctx context.Context, s *store.Store, projectRoot string) ([]Suggestion, error) {
	pairs, err := findStaleMentions(ctx, s, projectRoot)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(pairs))
	for _, p := range pairs {
		preview := p.text
		if len(preview) > 80 {
			preview = preview[:77] + "..."
		}
		out = append(out, Suggestion{
			Text:      fmt.Sprintf("Note has stale mentions [%s]: %q", strings.Join(p.stale, ", "), preview),
			Sentiment: -0.5,
			Mentions:  p.stale,
			Reason:    "stale_mention",
		})
	}
	return out, nil
}

// CheckNoteStaleness exposes the stale-mention scan directly, reusable by
// a notes-list staleness check outside the suggest flow.
func CheckNoteStaleness(ctx context.Context, s *store.Store, projectRoot string) (map[string][]string, error) {
	pairs, err := findStaleMentions(ctx, s, projectRoot)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		out[p.text] = p.stale
	}
	return out, nil
}
