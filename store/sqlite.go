package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vieiralucas/remail"
)

// schema mirrors the two-table layout the listing API expects: one row per
// email, headers in a child table keyed by email id and position.
const schema = `
CREATE TABLE IF NOT EXISTS emails (
	id         TEXT PRIMARY KEY,
	sender     TEXT NOT NULL,
	recipients TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS email_headers (
	email_id TEXT    NOT NULL REFERENCES emails(id),
	position INTEGER NOT NULL,
	name     TEXT    NOT NULL,
	value    TEXT    NOT NULL,
	PRIMARY KEY (email_id, position)
);
`

// recipientSep joins the recipient list into one column. Addresses with
// commas require a quoted local-part, which the engine's validator accepts
// but inbound tooling never produces; the listing API is best-effort there.
const recipientSep = ","

// SQLite is a Store backed by an SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer at a time; serialize through one connection
	// instead of surfacing SQLITE_BUSY to sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Save inserts the message and its headers in one transaction.
func (s *SQLite) Save(ctx context.Context, msg *remail.Message) (Stored, error) {
	stored := newStored(msg)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Stored{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO emails (id, sender, recipients, subject, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stored.ID,
		stored.From,
		strings.Join(stored.To, recipientSep),
		stored.Subject,
		stored.Body,
		stored.CreatedAt.Format(time.RFC3339Nano),
		stored.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Stored{}, fmt.Errorf("insert email: %w", err)
	}

	for i, h := range stored.Headers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO email_headers (email_id, position, name, value) VALUES (?, ?, ?, ?)`,
			stored.ID, i, h.Name, h.Value,
		)
		if err != nil {
			return Stored{}, fmt.Errorf("insert header: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Stored{}, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// List returns all messages newest first, headers attached.
func (s *SQLite) List(ctx context.Context) ([]Stored, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, recipients, subject, body, created_at, updated_at
		 FROM emails ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	defer rows.Close()

	var msgs []Stored
	index := make(map[string]int)

	for rows.Next() {
		var (
			stored               Stored
			recipients           string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&stored.ID, &stored.From, &recipients,
			&stored.Subject, &stored.Body, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		if recipients != "" {
			stored.To = strings.Split(recipients, recipientSep)
		}
		if stored.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if stored.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		index[stored.ID] = len(msgs)
		msgs = append(msgs, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emails: %w", err)
	}

	if err := s.attachHeaders(ctx, msgs, index); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *SQLite) attachHeaders(ctx context.Context, msgs []Stored, index map[string]int) error {
	if len(msgs) == 0 {
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT email_id, name, value FROM email_headers ORDER BY email_id, position`)
	if err != nil {
		return fmt.Errorf("query headers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			emailID string
			h       remail.Header
		)
		if err := rows.Scan(&emailID, &h.Name, &h.Value); err != nil {
			return fmt.Errorf("scan header: %w", err)
		}
		if i, ok := index[emailID]; ok {
			msgs[i].Headers = append(msgs[i].Headers, h)
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
