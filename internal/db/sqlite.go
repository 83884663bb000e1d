package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB is the object inventory written at the end of every build. It mirrors
// the merged tables together with the rendered descriptions, so tools can
// query a project without re-reading its sources.
type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Builds write from a single goroutine.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	d := &DB{conn: conn}
	if err := d.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return d, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			docname TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			format TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			built_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS objects (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			docname TEXT NOT NULL REFERENCES documents(docname) ON DELETE CASCADE,
			anchor TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			index_text TEXT NOT NULL DEFAULT '',
			line INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_objects_doc ON objects (docname)`,
		`CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects (kind)`,

		`CREATE TABLE IF NOT EXISTS namespaces (
			name TEXT PRIMARY KEY,
			docname TEXT NOT NULL REFERENCES documents(docname) ON DELETE CASCADE,
			synopsis TEXT NOT NULL DEFAULT '',
			deprecated INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS refs (
			id INTEGER PRIMARY KEY,
			docname TEXT NOT NULL REFERENCES documents(docname) ON DELETE CASCADE,
			line INTEGER NOT NULL,
			role TEXT NOT NULL,
			target TEXT NOT NULL,
			resolved TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_doc ON refs (docname)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

func (db *DB) withTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rolling back inventory transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// --- Records ---

type Document struct {
	DocName     string `json:"docname"`
	Path        string `json:"path"`
	Format      string `json:"format"`
	Title       string `json:"title,omitempty"`
	ContentHash string `json:"content_hash"`
}

type Object struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	DocName   string `json:"docname"`
	Anchor    string `json:"anchor"`
	Signature string `json:"signature,omitempty"`
	IndexText string `json:"index_text,omitempty"`
	Line      int    `json:"line"`
}

type Namespace struct {
	Name       string `json:"name"`
	DocName    string `json:"docname"`
	Synopsis   string `json:"synopsis,omitempty"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

type Ref struct {
	DocName string `json:"docname"`
	Line    int    `json:"line"`
	Role    string `json:"role"`
	Target  string `json:"target"`
	// Resolved is the canonical name the reference points at, empty when
	// it did not resolve.
	Resolved string `json:"resolved,omitempty"`
}

// DocumentData is everything the inventory holds for one document.
type DocumentData struct {
	Document   Document
	Objects    []Object
	Namespaces []Namespace
	Refs       []Ref
}

// --- Sync ---

// Sync clears the rows of every removed or rebuilt document and inserts the
// rebuilt documents in one transaction. Names owned by another document are
// taken over, matching the last-registration-wins rule of the tables.
func (db *DB) Sync(removed []string, docs []DocumentData) error {
	return db.withTx(func(tx *sql.Tx) error {
		for _, name := range removed {
			if err := deleteDocument(tx, name); err != nil {
				return err
			}
		}
		for _, d := range docs {
			if err := deleteDocument(tx, d.Document.DocName); err != nil {
				return err
			}
			if err := insertDocument(tx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRefs replaces the recorded references of docname. References are
// resolved against the whole project, so they change even for documents
// that were not re-read.
func (db *DB) SetRefs(docname string, refs []Ref) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM refs WHERE docname = ?`, docname); err != nil {
			return fmt.Errorf("clearing refs of %s: %w", docname, err)
		}
		return insertRefs(tx, docname, refs)
	})
}

func deleteDocument(tx *sql.Tx, docname string) error {
	for _, table := range []string{"refs", "objects", "namespaces", "documents"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE docname = ?`, docname); err != nil {
			return fmt.Errorf("clearing %s of %s: %w", table, docname, err)
		}
	}
	return nil
}

func insertDocument(tx *sql.Tx, d DocumentData) error {
	doc := d.Document
	if _, err := tx.Exec(
		`INSERT INTO documents (docname, path, format, title, content_hash) VALUES (?, ?, ?, ?, ?)`,
		doc.DocName, doc.Path, doc.Format, doc.Title, doc.ContentHash,
	); err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.DocName, err)
	}

	for _, o := range d.Objects {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO objects (name, kind, docname, anchor, signature, index_text, line)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.Name, o.Kind, doc.DocName, o.Anchor, o.Signature, o.IndexText, o.Line,
		); err != nil {
			return fmt.Errorf("inserting object %s: %w", o.Name, err)
		}
	}

	for _, n := range d.Namespaces {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO namespaces (name, docname, synopsis, deprecated) VALUES (?, ?, ?, ?)`,
			n.Name, doc.DocName, n.Synopsis, n.Deprecated,
		); err != nil {
			return fmt.Errorf("inserting namespace %s: %w", n.Name, err)
		}
	}

	return insertRefs(tx, doc.DocName, d.Refs)
}

func insertRefs(tx *sql.Tx, docname string, refs []Ref) error {
	for _, r := range refs {
		var resolved any
		if r.Resolved != "" {
			resolved = r.Resolved
		}
		if _, err := tx.Exec(
			`INSERT INTO refs (docname, line, role, target, resolved) VALUES (?, ?, ?, ?, ?)`,
			docname, r.Line, r.Role, r.Target, resolved,
		); err != nil {
			return fmt.Errorf("inserting ref: %w", err)
		}
	}
	return nil
}

// --- Queries ---

const objectColumns = `name, kind, docname, anchor, signature, index_text, line`

func scanObjects(rows *sql.Rows) ([]Object, error) {
	defer rows.Close()
	var objs []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Name, &o.Kind, &o.DocName, &o.Anchor, &o.Signature, &o.IndexText, &o.Line); err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

// GetObject returns the object with the canonical name, or nil.
func (db *DB) GetObject(name string) (*Object, error) {
	rows, err := db.conn.Query(`SELECT `+objectColumns+` FROM objects WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	objs, err := scanObjects(rows)
	if err != nil || len(objs) == 0 {
		return nil, err
	}
	return &objs[0], nil
}

// ListObjects returns objects ordered by name, optionally restricted to
// kinds and documents.
func (db *DB) ListObjects(kinds, docnames []string) ([]Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects`
	var where []string
	var params []any
	if len(kinds) > 0 {
		where = append(where, `kind IN (`+placeholders(len(kinds))+`)`)
		for _, k := range kinds {
			params = append(params, k)
		}
	}
	if len(docnames) > 0 {
		where = append(where, `docname IN (`+placeholders(len(docnames))+`)`)
		for _, d := range docnames {
			params = append(params, d)
		}
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY name`

	rows, err := db.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	return scanObjects(rows)
}

// MatchObjects returns objects whose name contains term, case-insensitively.
func (db *DB) MatchObjects(term string, kinds []string) ([]Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects WHERE name LIKE ? ESCAPE '!'`
	params := []any{"%" + escapeLike(term) + "%"}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			params = append(params, k)
		}
	}
	query += ` ORDER BY name`

	rows, err := db.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("matching objects: %w", err)
	}
	return scanObjects(rows)
}

func (db *DB) ListNamespaces() ([]Namespace, error) {
	rows, err := db.conn.Query(`SELECT name, docname, synopsis, deprecated FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		var n Namespace
		if err := rows.Scan(&n.Name, &n.DocName, &n.Synopsis, &n.Deprecated); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) ListDocuments() ([]Document, error) {
	rows, err := db.conn.Query(`SELECT docname, path, format, title, content_hash FROM documents ORDER BY docname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.DocName, &d.Path, &d.Format, &d.Title, &d.ContentHash); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UnresolvedRefs lists references that did not resolve, in document order.
func (db *DB) UnresolvedRefs() ([]Ref, error) {
	rows, err := db.conn.Query(
		`SELECT docname, line, role, target FROM refs WHERE resolved IS NULL ORDER BY docname, line`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ref
	for rows.Next() {
		var r Ref
		if err := rows.Scan(&r.DocName, &r.Line, &r.Role, &r.Target); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RefsTo lists the references that resolved to name.
func (db *DB) RefsTo(name string) ([]Ref, error) {
	rows, err := db.conn.Query(
		`SELECT docname, line, role, target, resolved FROM refs WHERE resolved = ? ORDER BY docname, line`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ref
	for rows.Next() {
		var r Ref
		if err := rows.Scan(&r.DocName, &r.Line, &r.Role, &r.Target, &r.Resolved); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type Stats struct {
	Documents  int `json:"documents"`
	Objects    int `json:"objects"`
	Namespaces int `json:"namespaces"`
	Refs       int `json:"refs"`
	Unresolved int `json:"unresolved"`
}

func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`SELECT
		(SELECT COUNT(*) FROM documents),
		(SELECT COUNT(*) FROM objects),
		(SELECT COUNT(*) FROM namespaces),
		(SELECT COUNT(*) FROM refs),
		(SELECT COUNT(*) FROM refs WHERE resolved IS NULL)`,
	).Scan(&s.Documents, &s.Objects, &s.Namespaces, &s.Refs, &s.Unresolved)
	if err != nil {
		return Stats{}, fmt.Errorf("counting inventory: %w", err)
	}
	return s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
