package store

// CurrentSchemaVersion is the schema version this engine build writes and
// requires on open.
const CurrentSchemaVersion = 1

// schemaDDL is applied as a set of statements split on ';' on init.
// chunks_fts and notes_fts are contentless FTS5 tables (content='') whose
// rowid matches the rowid of the owning chunks/notes row;
// content is populated pre-normalized by the caller.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	source_type TEXT NOT NULL DEFAULT 'file',
	language TEXT NOT NULL,
	chunk_type TEXT NOT NULL,
	name TEXT NOT NULL,
	signature TEXT,
	content TEXT,
	content_hash TEXT,
	doc TEXT,
	line_start INTEGER,
	line_end INTEGER,
	embedding BLOB,
	source_mtime INTEGER,
	parent_id TEXT,
	window_idx INTEGER,
	parent_type_name TEXT,
	created_at INTEGER,
	updated_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_chunks_origin ON chunks(origin);
CREATE INDEX IF NOT EXISTS idx_chunks_name ON chunks(name);
CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(parent_id);
CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks(language);
CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(content_hash);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	name, signature, content, doc,
	content='',
	tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS calls (
	caller_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	callee_name TEXT NOT NULL,
	line_number INTEGER
);

CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls(caller_id);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(callee_name);

CREATE TABLE IF NOT EXISTS function_calls (
	origin TEXT NOT NULL,
	caller_name TEXT NOT NULL,
	caller_line INTEGER,
	callee_name TEXT NOT NULL,
	call_line INTEGER
);

CREATE INDEX IF NOT EXISTS idx_function_calls_caller ON function_calls(caller_name);
CREATE INDEX IF NOT EXISTS idx_function_calls_callee ON function_calls(callee_name);
CREATE INDEX IF NOT EXISTS idx_function_calls_origin ON function_calls(origin);

CREATE TABLE IF NOT EXISTS type_edges (
	source_chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	target_type_name TEXT NOT NULL,
	edge_kind TEXT,
	line_number INTEGER
);

CREATE INDEX IF NOT EXISTS idx_type_edges_source ON type_edges(source_chunk_id);
CREATE INDEX IF NOT EXISTS idx_type_edges_target ON type_edges(target_type_name);

CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	text TEXT,
	sentiment REAL,
	mentions TEXT,
	embedding BLOB,
	source_file TEXT,
	file_mtime INTEGER,
	created_at INTEGER,
	updated_at INTEGER
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	text,
	content='',
	tokenize='unicode61'
);
`
