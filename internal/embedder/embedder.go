// Package embedder declares the external Embedder/Reranker contracts the
// engine depends on, plus one concrete deterministic implementation
// (hash-projected pseudo-embeddings) so the engine is runnable end to end
// without a real model wired in.
package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/cqs-dev/cqs/internal/model"
)

// Dimensions is the engine's configured embedding width: the
// sentiment-free code path uses 768; the notes path appends one
// sentiment scalar to reach 769.
const Dimensions = 768

// Embedder is the external capability the core calls into to turn text
// into vectors. Concrete model inference is out of scope.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) (model.Embedding, error)
	EmbedDocuments(ctx context.Context, texts []string) ([]model.Embedding, error)
	ModelName() string
	Dimensions() int
}

// Reranker optionally reorders a candidate list in place, truncating to
// limit. Concrete cross-encoder inference is out of scope.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []model.SearchResult, limit int) []model.SearchResult
}

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopWords = map[string]struct{}{
	"func": {}, "function": {}, "def": {}, "class": {}, "return": {},
	"import": {}, "const": {}, "var": {}, "let": {}, "int": {},
	"string": {}, "bool": {}, "void": {}, "true": {}, "false": {},
	"nil": {}, "null": {}, "this": {}, "self": {}, "new": {},
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// Static is a deterministic, hash-projected embedder: no network, no
// model download, reduced semantic quality. It exists purely so the
// engine can index and search without a real model wired in.
type Static struct {
	mu     sync.RWMutex
	closed bool
}

// NewStatic returns a ready Static embedder.
func NewStatic() *Static { return &Static{} }

// ModelName identifies this embedder for the store's compatibility check.
func (s *Static) ModelName() string { return "static-768" }

// Dimensions reports the fixed vector width this embedder produces.
func (s *Static) Dimensions() int { return Dimensions }

// EmbedQuery embeds a single query string.
func (s *Static) EmbedQuery(ctx context.Context, text string) (model.Embedding, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make(model.Embedding, Dimensions), nil
	}
	vec := generateVector(trimmed)
	normalizeL2(vec)
	return vec, nil
}

// EmbedDocuments embeds a batch of documents; batch-friendly by contract
// but the static implementation simply loops.
func (s *Static) EmbedDocuments(ctx context.Context, texts []string) ([]model.Embedding, error) {
	out := make([]model.Embedding, len(texts))
	for i, t := range texts {
		emb, err := s.EmbedQuery(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed document %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

// Close marks the embedder unusable; idempotent.
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func generateVector(text string) model.Embedding {
	vec := make(model.Embedding, Dimensions)

	for _, tok := range filterStopWords(tokenize(text)) {
		vec[hashToIndex(tok, Dimensions)] += tokenWeight
	}
	for _, gram := range extractNgrams(normalizeForNgrams(text), ngramSize) {
		vec[hashToIndex(gram, Dimensions)] += ngramWeight
	}
	return vec
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func filterStopWords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeL2(v model.Embedding) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	mag := math.Sqrt(sumSquares)
	for i, x := range v {
		v[i] = float32(float64(x) / mag)
	}
}

// NoteVector extends a base text embedding with the note's sentiment
// scalar
// and re-normalizes so cosine scoring stays a dot product.
func NoteVector(base model.Embedding, sentiment float64) model.Embedding {
	out := make(model.Embedding, len(base)+1)
	copy(out, base)
	out[len(base)] = float32(sentiment)
	normalizeL2(out)
	return out
}
