package deploy

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yolodolo42/deployfi/internal/logging"
)

// Journal records deployment attempts for the lifetime of the process.
// It holds one row per flow, keyed by flow id.
type Journal struct {
	db *sql.DB
}

// Entry is one recorded attempt.
type Entry struct {
	FlowID    string
	ChainID   uint64
	Version   string
	TxHash    string
	Outcome   string
	Address   string
	Message   string
	CreatedAt time.Time
}

// OpenJournal opens an in-memory journal.
func OpenJournal() (*Journal, error) {
	return OpenJournalDSN(":memory:")
}

// OpenJournalDSN opens a journal using the given sqlite DSN/path.
func OpenJournalDSN(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS attempts (
	flow_id TEXT PRIMARY KEY,
	chain_id INTEGER NOT NULL,
	version TEXT NOT NULL,
	tx_hash TEXT,
	outcome TEXT NOT NULL,
	address TEXT,
	message TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`)
	if err != nil {
		return fmt.Errorf("create attempts table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts or replaces the entry for e.FlowID. RPC credentials in the
// message are redacted before it is stored.
func (j *Journal) Record(e Entry) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	if e.FlowID == "" {
		return fmt.Errorf("flow id is required")
	}

	_, err := j.db.Exec(`
INSERT INTO attempts (flow_id, chain_id, version, tx_hash, outcome, address, message)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(flow_id) DO UPDATE SET
	tx_hash=excluded.tx_hash,
	outcome=excluded.outcome,
	address=excluded.address,
	message=excluded.message
`, e.FlowID, int64(e.ChainID), e.Version, e.TxHash, e.Outcome, e.Address, logging.RedactText(e.Message))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Get returns the entry for flowID.
func (j *Journal) Get(flowID string) (*Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	row := j.db.QueryRow(`
SELECT flow_id, chain_id, version, COALESCE(tx_hash, ''), outcome, COALESCE(address, ''), COALESCE(message, ''), created_at
FROM attempts WHERE flow_id = ?`, flowID)
	return scanEntry(row)
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	rows, err := j.db.Query(`
SELECT flow_id, chain_id, version, COALESCE(tx_hash, ''), outcome, COALESCE(address, ''), COALESCE(message, ''), created_at
FROM attempts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		chainID int64
		created string
	)
	if err := s.Scan(&e.FlowID, &chainID, &e.Version, &e.TxHash, &e.Outcome, &e.Address, &e.Message, &created); err != nil {
		return nil, err
	}
	e.ChainID = uint64(chainID)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, created); err == nil {
			e.CreatedAt = ts
			break
		}
	}
	return &e, nil
}
