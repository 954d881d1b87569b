// Package store provides the persistent backing for cqs: chunks,
// embeddings, calls, type edges, and notes, with schema versioning and a
// content-hash dedup path. It wraps a single
// modernc.org/sqlite connection in WAL mode.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
)

// embCacheSize bounds the in-process content-hash -> embedding cache that
// backs the ingest dedup path. Sized for a large
// incremental reindex without holding a whole monorepo's vectors.
const embCacheSize = 8192

// Store owns the on-disk SQLite database: chunks, embeddings, calls, type
// edges, notes, and metadata. All public methods are synchronous; callers
// may use ordinary parallelism since *Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	readOnly bool
	dims     int
	modelName string
	lock     *flock.Flock
	embCache *lru.Cache[string, model.Embedding]
}

// Options configure Open.
type Options struct {
	// Dimensions is the embedding width this engine build produces.
	Dimensions int
	// ModelName identifies the embedding model; checked against the
	// metadata recorded at init.
	ModelName string
	// EngineVersion is recorded informationally at init and compared on
	// open (mismatch is a log only, never an error).
	EngineVersion string
}

// Open opens (or initializes) the primary store at path, applying the
// writer-side pragmas and schema-version/model-name compatibility checks.
func Open(path string, opts Options) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cqserrors.StoreError("create store directory", err)
		}
	}

	var lock *flock.Flock
	if path != ":memory:" {
		lock = flock.New(path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, cqserrors.StoreError("acquire writer lock", err)
		}
		if !locked {
			return nil, cqserrors.New(cqserrors.ErrCodeDatabase, "store is locked by another writer", nil)
		}
	}

	db, err := openDB(path, false)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}

	cache, _ := lru.New[string, model.Embedding](embCacheSize)
	s := &Store{db: db, path: path, dims: opts.Dimensions, modelName: opts.ModelName, lock: lock, embCache: cache}
	if err := s.init(opts); err != nil {
		_ = db.Close()
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing store without writer-side pragmas or the
// write lock, exposing only query methods. Used by
// reference indexes (C9).
func OpenReadOnly(path string) (*Store, error) {
	db, err := openDB(path, true)
	if err != nil {
		return nil, err
	}
	cache, _ := lru.New[string, model.Embedding](embCacheSize)
	s := &Store{db: db, path: path, readOnly: true, embCache: cache}
	if err := s.loadMetadataDims(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(path string, readOnly bool) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if readOnly {
			dsn = path + "?mode=ro&_pragma=busy_timeout(5000)"
		} else {
			dsn = path
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cqserrors.StoreError("open database", err)
	}
	if readOnly {
		db.SetMaxOpenConns(4)
	} else {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if !readOnly {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA cache_size = -65536",
			"PRAGMA temp_store = MEMORY",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				_ = db.Close()
				return nil, cqserrors.StoreError("set pragma: "+p, err)
			}
		}
	}
	return db, nil
}

func (s *Store) init(opts Options) error {
	row := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='metadata'`)
	var name string
	exists := row.Scan(&name) == nil

	if exists {
		return s.checkCompat(opts)
	}

	statements := strings.Split(schemaDDL, ";")
	tx, err := s.db.Begin()
	if err != nil {
		return cqserrors.StoreError("begin schema init", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return cqserrors.StoreError("apply schema DDL", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	meta := map[string]string{
		"schema_version": fmt.Sprintf("%d", CurrentSchemaVersion),
		"model_name":     opts.ModelName,
		"dimensions":     fmt.Sprintf("%d", opts.Dimensions),
		"created_at":     now,
		"engine_version": opts.EngineVersion,
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, k, v); err != nil {
			return cqserrors.StoreError("write init metadata", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return cqserrors.StoreError("commit schema init", err)
	}
	s.dims = opts.Dimensions
	s.modelName = opts.ModelName
	return nil
}

func (s *Store) checkCompat(opts Options) error {
	version, err := s.getMetadataRaw("schema_version")
	if err != nil {
		return cqserrors.StoreError("read schema_version", err)
	}
	var v int
	_, _ = fmt.Sscanf(version, "%d", &v)
	if v < CurrentSchemaVersion {
		return cqserrors.New(cqserrors.ErrCodeSchemaMismatch,
			"store schema is older than this engine; run a rebuild", nil).
			WithSuggestion("delete the index database and re-run the indexer to regenerate the store")
	}
	if v > CurrentSchemaVersion {
		return cqserrors.New(cqserrors.ErrCodeSchemaNewerThanEngine,
			"store schema is newer than this engine build", nil)
	}

	storedModel, _ := s.getMetadataRaw("model_name")
	if opts.ModelName != "" && storedModel != "" && storedModel != opts.ModelName {
		return cqserrors.New(cqserrors.ErrCodeModelMismatch,
			fmt.Sprintf("store was built with model %q, engine is using %q; run a rebuild to re-embed", storedModel, opts.ModelName), nil).
			WithSuggestion("delete the index database and re-run the indexer")
	}

	dimStr, _ := s.getMetadataRaw("dimensions")
	var dims int
	_, _ = fmt.Sscanf(dimStr, "%d", &dims)
	s.dims = dims
	s.modelName = storedModel

	storedEngine, _ := s.getMetadataRaw("engine_version")
	if opts.EngineVersion != "" && storedEngine != "" && storedEngine != opts.EngineVersion {
		slog.Info("store_engine_version_mismatch", slog.String("stored", storedEngine), slog.String("current", opts.EngineVersion))
	}
	return nil
}

func (s *Store) loadMetadataDims() error {
	dimStr, err := s.getMetadataRaw("dimensions")
	if err != nil {
		return err
	}
	var dims int
	_, _ = fmt.Sscanf(dimStr, "%d", &dims)
	s.dims = dims
	s.modelName, _ = s.getMetadataRaw("model_name")
	return nil
}

func (s *Store) getMetadataRaw(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetMetadata returns a metadata value, or ("", false) if unset.
func (s *Store) GetMetadata(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.getMetadataRaw(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// SetMetadata writes a metadata key/value pair.
func (s *Store) SetMetadata(key, value string) error {
	if s.readOnly {
		return cqserrors.New(cqserrors.ErrCodeDatabase, "store opened read-only", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return cqserrors.StoreError("write metadata", err)
	}
	return nil
}

// Dimensions returns the embedding width recorded in this store.
func (s *Store) Dimensions() int { return s.dims }

// ModelName returns the embedding model name recorded in this store.
func (s *Store) ModelName() string { return s.modelName }

// Path returns the filesystem path this store was opened from.
func (s *Store) Path() string { return s.path }

// ReadOnly reports whether this store was opened via OpenReadOnly.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Close releases the database connection and writer lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling
// back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cqserrors.StoreError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return cqserrors.StoreError("commit transaction", err)
	}
	return nil
}

// maxSQLiteVars bounds batch IN-clause / bind-parameter sizes so a single
// statement never exceeds SQLite's default bind-parameter limit.
const maxSQLiteVars = 900

// batchSize returns how many rows of bindsPerRow parameters each fit in
// one statement, bounded by maxSQLiteVars.
func batchSize(bindsPerRow int) int {
	if bindsPerRow <= 0 {
		bindsPerRow = 1
	}
	n := maxSQLiteVars / bindsPerRow
	if n < 1 {
		n = 1
	}
	return n
}
