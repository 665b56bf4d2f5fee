package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const (
	// DBFileName is the only artifact the store creates inside the storage directory
	DBFileName = "memory.db"

	// SQLite caps bound parameters per statement; id lists are processed in batches below it
	idBatchSize = 500
)

const schema = `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN ('session_memory', 'long_term_memory', 'project_memory')),
		timestamp INTEGER NOT NULL,
		file_refs TEXT NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		raw TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
	CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		summary,
		raw,
		tags,
		content='memories',
		content_rowid='rowid',
		tokenize='porter unicode61'
	);
`

const recordColumns = "id, type, timestamp, file_refs, summary, raw, tags, embedding"

// StoreOptions configures OpenStore
type StoreOptions struct {
	StoragePath string
	Logger      zerolog.Logger
}

// Store is the durable record table plus its lexical and vector indexes.
// Every write touches the record table and the lexical index inside one transaction.
type Store struct {
	db      *sql.DB
	path    string
	logger  zerolog.Logger
	writeMu sync.Mutex
}

// DBPath returns the database file location for a storage directory
func DBPath(storagePath string) string {
	return filepath.Join(storagePath, DBFileName)
}

// OpenStore creates the storage directory if needed and opens the record store inside it
func OpenStore(opts StoreOptions) (*Store, error) {
	if opts.StoragePath == "" {
		return nil, errors.New("storage path is required")
	}

	if err := os.MkdirAll(opts.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := DBPath(opts.StoragePath)
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode so readers do not block the single writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: opts.Logger,
	}

	s.logger.Debug().Str("path", path).Msg("Memory store opened")
	return s, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a record and its lexical index entry atomically
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return &ValidationError{Field: "id", Msg: "must not be empty"}
	}
	if !rec.Type.Valid() {
		return &ValidationError{Field: "type", Msg: fmt.Sprintf("unknown memory type %q", rec.Type)}
	}
	if utf8.RuneCountInString(rec.Summary) > SummaryMaxLen {
		return &ValidationError{Field: "summary", Msg: fmt.Sprintf("longer than %d characters", SummaryMaxLen)}
	}

	fileRefs, err := marshalStrings(rec.FileRefs)
	if err != nil {
		return fmt.Errorf("failed to encode file refs: %w", err)
	}
	tags, err := marshalStrings(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	var blob []byte
	if len(rec.Embedding) > 0 {
		blob = encodeEmbedding(rec.Embedding)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO memories ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, string(rec.Type), rec.Timestamp, fileRefs, rec.Summary, rec.Raw, tags, blob,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read rowid: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO memories_fts (rowid, summary, raw, tags) VALUES (?, ?, ?, ?)",
		rowID, rec.Summary, rec.Raw, tags,
	); err != nil {
		return fmt.Errorf("failed to index memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memory: %w", err)
	}

	return nil
}

// GetByID returns the record with the given id, or nil when it does not exist
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM memories WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory %s: %w", id, err)
	}
	return &rec, nil
}

// GetAllByIDs returns the records that exist among ids. The result order is unspecified.
func (s *Store) GetAllByIDs(ctx context.Context, ids []string) ([]Record, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(ids))
	for start := 0; start < len(ids); start += idBatchSize {
		batch := ids[start:min(start+idBatchSize, len(ids))]

		rows, err := s.db.QueryContext(ctx,
			"SELECT "+recordColumns+" FROM memories WHERE id IN ("+placeholders(len(batch))+")",
			toArgs(batch)...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get memories: %w", err)
		}

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan memory: %w", err)
			}
			records = append(records, rec)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate memories: %w", err)
		}
	}

	return records, nil
}

// DeleteByIDs removes the given records and their lexical entries.
// Missing ids are skipped; the number of records actually deleted is returned.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted := 0
	for start := 0; start < len(ids); start += idBatchSize {
		batch := ids[start:min(start+idBatchSize, len(ids))]
		n, err := deleteBatch(ctx, tx, batch)
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	return deleted, nil
}

// deleteBatch removes the lexical rows first, since the external-content FTS table
// needs the old column values to drop its postings.
func deleteBatch(ctx context.Context, tx *sql.Tx, ids []string) (int, error) {
	args := toArgs(ids)
	inClause := "(" + placeholders(len(ids)) + ")"

	rows, err := tx.QueryContext(ctx, "SELECT rowid, summary, raw, tags FROM memories WHERE id IN "+inClause, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to load memories for delete: %w", err)
	}

	type ftsRow struct {
		rowID              int64
		summary, raw, tags string
	}
	var existing []ftsRow
	for rows.Next() {
		var r ftsRow
		if err := rows.Scan(&r.rowID, &r.summary, &r.raw, &r.tags); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan memory for delete: %w", err)
		}
		existing = append(existing, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to iterate memories for delete: %w", err)
	}

	if len(existing) == 0 {
		return 0, nil
	}

	for _, r := range existing {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memories_fts (memories_fts, rowid, summary, raw, tags) VALUES ('delete', ?, ?, ?, ?)",
			r.rowID, r.summary, r.raw, r.tags,
		); err != nil {
			return 0, fmt.Errorf("failed to unindex memory: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id IN "+inClause, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted memories: %w", err)
	}
	return int(n), nil
}

// Stats counts records in total and per type
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByType: make(map[Type]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&stats.Total); err != nil {
		return Stats{}, fmt.Errorf("failed to count memories: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM memories GROUP BY type")
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count memories by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return Stats{}, fmt.Errorf("failed to scan memory counts: %w", err)
		}
		stats.ByType[Type(t)] = c
	}

	return stats, rows.Err()
}

// Optimize merges lexical index segments and truncates the write-ahead log
func (s *Store) Optimize(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, "INSERT INTO memories_fts (memories_fts) VALUES ('optimize')"); err != nil {
		return fmt.Errorf("failed to optimize lexical index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint wal: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec      Record
		typ      string
		fileRefs string
		tags     string
		blob     []byte
	)
	if err := row.Scan(&rec.ID, &typ, &rec.Timestamp, &fileRefs, &rec.Summary, &rec.Raw, &tags, &blob); err != nil {
		return Record{}, err
	}
	rec.Type = Type(typ)

	var err error
	if rec.FileRefs, err = unmarshalStrings(fileRefs); err != nil {
		return Record{}, fmt.Errorf("failed to decode file refs of %s: %w", rec.ID, err)
	}
	if rec.Tags, err = unmarshalStrings(tags); err != nil {
		return Record{}, fmt.Errorf("failed to decode tags of %s: %w", rec.ID, err)
	}
	if len(blob) > 0 {
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return Record{}, fmt.Errorf("failed to decode embedding of %s: %w", rec.ID, err)
		}
		rec.Embedding = emb
	}

	return rec, nil
}

// marshalStrings stores nil and empty lists alike as "[]"; unmarshalStrings reads both back as nil
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs[T ~string](values []T) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	return args
}
