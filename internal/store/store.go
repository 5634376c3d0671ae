// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists converted documents, their pages and sections in
// SQLite and offers full-text search over page markdown.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pagescribe/pkg/types"
)

const defaultSearchLimit = 20

// ErrNotFound is returned when a document is not in the store.
var ErrNotFound = errors.New("document not found")

// ErrFTSUnavailable is returned by Open when the SQLite driver was compiled
// without FTS5. mattn/go-sqlite3 includes it only under the sqlite_fts5 tag.
var ErrFTSUnavailable = errors.New("sqlite driver built without FTS5 (build with -tags sqlite_fts5)")

// Store manages the conversion database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT,
			completion_time_ms REAL,
			input_tokens INTEGER,
			output_tokens INTEGER,
			total_pages INTEGER,
			successful INTEGER,
			failed INTEGER,
			failed_pages TEXT,
			converted_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			page INTEGER NOT NULL,
			content TEXT NOT NULL,
			content_length INTEGER,
			UNIQUE(document_id, page)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_document_id ON pages(document_id)`,
		`CREATE TABLE IF NOT EXISTS sections (
			page_rowid INTEGER NOT NULL REFERENCES pages(rowid) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			box_left REAL,
			box_top REAL,
			box_width REAL,
			box_height REAL,
			PRIMARY KEY (page_rowid, position)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='pages_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE pages_fts USING fts5(content, content=pages, content_rowid=rowid)`,
			`CREATE TRIGGER pages_ai AFTER INSERT ON pages BEGIN
				INSERT INTO pages_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER pages_ad AFTER DELETE ON pages BEGIN
				INSERT INTO pages_fts(pages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER pages_au AFTER UPDATE ON pages BEGIN
				INSERT INTO pages_fts(pages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO pages_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return ftsError(err)
			}
		}
	}

	return nil
}

func ftsError(err error) error {
	if strings.Contains(err.Error(), "no such module: fts5") {
		return fmt.Errorf("%w: %v", ErrFTSUnavailable, err)
	}
	return fmt.Errorf("creating FTS infrastructure: %w", err)
}

// Save writes doc under doc.FileName, replacing any earlier conversion of the
// same document.
func (s *Store) Save(ctx context.Context, doc *types.DocumentOutput, source string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE document_id = ?`, doc.FileName); err != nil {
		return fmt.Errorf("deleting old pages: %w", err)
	}

	failedJSON, _ := json.Marshal(doc.Summary.FailedPages)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, source, completion_time_ms, input_tokens, output_tokens,
			total_pages, successful, failed, failed_pages, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source=excluded.source, completion_time_ms=excluded.completion_time_ms,
			input_tokens=excluded.input_tokens, output_tokens=excluded.output_tokens,
			total_pages=excluded.total_pages, successful=excluded.successful,
			failed=excluded.failed, failed_pages=excluded.failed_pages,
			converted_at=excluded.converted_at`,
		doc.FileName, source, doc.CompletionTimeMs, doc.InputTokens, doc.OutputTokens,
		doc.Summary.TotalPages, doc.Summary.Successful, doc.Summary.Failed,
		string(failedJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (document_id, page, content, content_length) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing page insert: %w", err)
	}
	defer pageStmt.Close()

	sectionStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections (page_rowid, position, content, box_left, box_top, box_width, box_height)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing section insert: %w", err)
	}
	defer sectionStmt.Close()

	for _, p := range doc.Pages {
		res, err := pageStmt.ExecContext(ctx, doc.FileName, p.Page, p.Content, p.ContentLength)
		if err != nil {
			return fmt.Errorf("inserting page %d: %w", p.Page, err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading page rowid: %w", err)
		}

		for i, sec := range p.Sections {
			var l, t, w, h sql.NullFloat64
			if b := sec.BoundingBox; b != nil {
				l = sql.NullFloat64{Float64: b.Left, Valid: true}
				t = sql.NullFloat64{Float64: b.Top, Valid: true}
				w = sql.NullFloat64{Float64: b.Width, Valid: true}
				h = sql.NullFloat64{Float64: b.Height, Valid: true}
			}
			if _, err := sectionStmt.ExecContext(ctx, rowid, i, sec.Content, l, t, w, h); err != nil {
				return fmt.Errorf("inserting section %d of page %d: %w", i, p.Page, err)
			}
		}
	}

	return tx.Commit()
}

// Document loads a stored document with its pages in page order.
func (s *Store) Document(ctx context.Context, id string) (*types.DocumentOutput, error) {
	doc := &types.DocumentOutput{FileName: id}
	var failedJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT completion_time_ms, input_tokens, output_tokens, total_pages, successful, failed, failed_pages
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.CompletionTimeMs, &doc.InputTokens, &doc.OutputTokens,
		&doc.Summary.TotalPages, &doc.Summary.Successful, &doc.Summary.Failed, &failedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	if failedJSON.Valid {
		_ = json.Unmarshal([]byte(failedJSON.String), &doc.Summary.FailedPages)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, page, content, content_length FROM pages WHERE document_id = ? ORDER BY page`, id)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	var rowids []int64
	for rows.Next() {
		var (
			rowid int64
			p     types.Page
		)
		if err := rows.Scan(&rowid, &p.Page, &p.Content, &p.ContentLength); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		rowids = append(rowids, rowid)
		doc.Pages = append(doc.Pages, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}

	for i, rowid := range rowids {
		secs, err := s.sections(ctx, rowid)
		if err != nil {
			return nil, err
		}
		doc.Pages[i].Sections = secs
	}
	return doc, nil
}

func (s *Store) sections(ctx context.Context, pageRowid int64) ([]types.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, box_left, box_top, box_width, box_height
		 FROM sections WHERE page_rowid = ? ORDER BY position`, pageRowid)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var out []types.Section
	for rows.Next() {
		var (
			sec        types.Section
			l, t, w, h sql.NullFloat64
		)
		if err := rows.Scan(&sec.Content, &l, &t, &w, &h); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		if l.Valid {
			sec.BoundingBox = &types.BoundingBox{Left: l.Float64, Top: t.Float64, Width: w.Float64, Height: h.Float64}
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// PageHit is one full-text search result.
type PageHit struct {
	DocumentID string  `json:"document_id" yaml:"document_id"`
	Page       int     `json:"page" yaml:"page"`
	Snippet    string  `json:"snippet" yaml:"snippet"`
	Rank       float64 `json:"rank" yaml:"rank"`
}

// Search runs an FTS5 query over page markdown, best matches first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]PageHit, error) {
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.document_id, p.page, snippet(pages_fts, 0, '[', ']', '...', 12), pages_fts.rank
		 FROM pages_fts
		 JOIN pages p ON p.rowid = pages_fts.rowid
		 WHERE pages_fts MATCH ?
		 ORDER BY pages_fts.rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching pages: %w", err)
	}
	defer rows.Close()

	var hits []PageHit
	for rows.Next() {
		var h PageHit
		if err := rows.Scan(&h.DocumentID, &h.Page, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
