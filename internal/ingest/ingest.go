// Package ingest implements the primary indexing data flow: source file
// -> Parser -> chunks+calls+type-refs -> NL synth -> Embedder -> Store +
// vector index.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cqs-dev/cqs/internal/config"
	"github.com/cqs-dev/cqs/internal/embedder"
	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/nl"
	"github.com/cqs-dev/cqs/internal/parser"
	"github.com/cqs-dev/cqs/internal/store"
	"github.com/cqs-dev/cqs/internal/vectorindex"
)

// defaultExcludeDirs are always skipped regardless of config.
var defaultExcludeDirs = map[string]struct{}{
	".git": {}, ".cqs": {}, "node_modules": {}, "vendor": {},
	"dist": {}, "build": {}, "target": {}, ".venv": {},
}

const embedBatchSize = 32

// Options configures a single IndexProject run.
type Options struct {
	// Force reindexes every matched file even if its mtime has not
	// advanced.
	Force bool
	// Progress, if set, is called after each file is processed.
	Progress func(done, total int, path string)
}

// Result summarizes one indexing run.
type Result struct {
	FilesScanned  int
	FilesIndexed  int
	FilesSkipped  int
	ChunksIndexed int
	EmbeddedCount int
	ReusedCount   int
	Warnings      []string
	Duration      time.Duration
}

// Pipeline wires a Store, an Embedder, an optional VectorIndex, and the
// project Config together to run IndexProject.
type Pipeline struct {
	Store    *store.Store
	Embedder embedder.Embedder
	Index    vectorindex.VectorIndex
	Config   *config.Config
	Registry *lang.Registry
}

// New returns a Pipeline ready to index against s, embedding with emb and
// (optionally) accelerating with idx.
func New(s *store.Store, emb embedder.Embedder, idx vectorindex.VectorIndex, cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Pipeline{Store: s, Embedder: emb, Index: idx, Config: cfg, Registry: lang.Default()}
}

// IndexProject walks root, parses every matched file, synthesizes NL
// descriptions, embeds (reusing content-hash matches),
// upserts chunks/calls/type-edges, prunes files that no longer exist, and
// rebuilds the vector index.
func (p *Pipeline) IndexProject(ctx context.Context, root string, opts Options) (*Result, error) {
	files, err := p.scanFiles(root)
	if err != nil {
		return nil, err
	}

	result := &Result{FilesScanned: len(files)}
	existing := make(map[string]struct{}, len(files))
	prs := parser.New()
	defer prs.Close()

	for i, f := range files {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		origin := config.NormalizeOrigin(relPath(root, f))
		existing[origin] = struct{}{}

		info, statErr := os.Stat(f)
		if statErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("stat %s: %v", f, statErr))
			continue
		}
		mtime := info.ModTime()

		if !opts.Force {
			needs, nerr := p.Store.NeedsReindex(ctx, origin, mtime)
			if nerr == nil && !needs {
				result.FilesSkipped++
				if opts.Progress != nil {
					opts.Progress(i+1, len(files), f)
				}
				continue
			}
		}

		source, readErr := os.ReadFile(f)
		if readErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("read %s: %v", f, readErr))
			continue
		}

		parsed, perr := prs.ParseFile(ctx, origin, source, mtime)
		if perr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("parse %s: %v", f, perr))
			continue
		}

		if err := p.indexFile(ctx, origin, parsed, result); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("index %s: %v", f, err))
			continue
		}
		result.FilesIndexed++
		if opts.Progress != nil {
			opts.Progress(i+1, len(files), f)
		}
	}

	if n, perr := p.Store.PruneMissing(ctx, existing); perr != nil {
		result.Warnings = append(result.Warnings, "prune missing: "+perr.Error())
	} else if n > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("pruned %d chunks for removed files", n))
	}
	if _, perr := p.Store.PruneStaleTypeEdges(ctx); perr != nil {
		result.Warnings = append(result.Warnings, "prune type edges: "+perr.Error())
	}

	if p.Index != nil {
		if err := p.rebuildIndex(ctx); err != nil {
			result.Warnings = append(result.Warnings, "vector index rebuild: "+err.Error())
		}
	}

	return result, nil
}

func (p *Pipeline) indexFile(ctx context.Context, origin string, parsed *parser.Result, result *Result) error {
	if len(parsed.Chunks) == 0 {
		return p.Store.UpsertCallsForOrigin(ctx, origin, parsed.Calls)
	}

	hashes := make([]string, 0, len(parsed.Chunks))
	for _, c := range parsed.Chunks {
		hashes = append(hashes, c.ContentHash)
	}
	cached, err := p.Store.GetEmbeddingsByHashes(ctx, hashes)
	if err != nil {
		cached = map[string]model.Embedding{}
	}

	pairs := make([]store.ChunkEmbedding, len(parsed.Chunks))
	var toEmbed []*model.Chunk
	var toEmbedIdx []int
	for i, c := range parsed.Chunks {
		if emb, ok := cached[c.ContentHash]; ok {
			pairs[i] = store.ChunkEmbedding{Chunk: c, Embedding: emb}
			result.ReusedCount++
			continue
		}
		toEmbed = append(toEmbed, c)
		toEmbedIdx = append(toEmbedIdx, i)
	}

	if len(toEmbed) > 0 {
		def, _ := p.Registry.ByExtension(filepath.Ext(origin))
		if def == nil {
			def, _ = p.Registry.ByName(detectLanguageName(parsed.Chunks))
		}
		texts := make([]string, len(toEmbed))
		for i, c := range toEmbed {
			breadcrumb := ""
			if c.ChunkType == model.ChunkSection {
				breadcrumb = c.Doc
			}
			texts[i] = nl.GenerateNLDescription(c, def, breadcrumb)
		}
		for start := 0; start < len(texts); start += embedBatchSize {
			end := start + embedBatchSize
			if end > len(texts) {
				end = len(texts)
			}
			embs, err := p.Embedder.EmbedDocuments(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			for j, emb := range embs {
				globalIdx := toEmbedIdx[start+j]
				pairs[globalIdx] = store.ChunkEmbedding{Chunk: toEmbed[start+j], Embedding: emb}
				result.EmbeddedCount++
			}
		}
	}

	if err := p.Store.UpsertChunksBatch(ctx, pairs); err != nil {
		return err
	}
	result.ChunksIndexed += len(pairs)

	if err := p.Store.UpsertCallsForOrigin(ctx, origin, parsed.Calls); err != nil {
		return err
	}
	if err := p.Store.UpsertTypeEdgesForOrigin(ctx, origin, parsed.Types); err != nil {
		return err
	}
	return nil
}

func detectLanguageName(chunks []*model.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0].Language
}

// savableIndex is satisfied by vector indexes that persist to disk
// (e.g. *vectorindex.HNSW); not every VectorIndex implementation must.
type savableIndex interface {
	Save(dir string) error
}

func (p *Pipeline) rebuildIndex(ctx context.Context) error {
	type builder interface {
		BuildBatched(items func(yield func(id string, emb model.Embedding) bool), expectedTotal int)
	}
	b, ok := p.Index.(builder)
	if !ok {
		return nil
	}
	total, _ := p.Store.ChunkCount(ctx)

	var streamErr error
	b.BuildBatched(func(yield func(id string, emb model.Embedding) bool) {
		streamErr = p.Store.EmbeddingBatches(ctx, 1000, func(id string, emb model.Embedding) bool {
			return yield(id, emb)
		})
	}, total)
	if streamErr != nil {
		return streamErr
	}

	if sv, ok := p.Index.(savableIndex); ok {
		return sv.Save(filepath.Dir(p.Store.Path()))
	}
	return nil
}

func (p *Pipeline) scanFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole walk
		}
		rel := relPath(root, path)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if _, excluded := defaultExcludeDirs[base]; excluded || strings.HasPrefix(base, ".") && base != "." {
				return filepath.SkipDir
			}
			if p.matchesExclude(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if p.matchesExclude(rel) {
			return nil
		}
		if len(p.Config.Paths.Include) > 0 && !p.matchesInclude(rel) {
			return nil
		}
		ext := filepath.Ext(path)
		if _, ok := p.Registry.ByExtension(ext); !ok {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) matchesExclude(rel string) bool {
	for _, pattern := range p.Config.Paths.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (p *Pipeline) matchesInclude(rel string) bool {
	for _, pattern := range p.Config.Paths.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
