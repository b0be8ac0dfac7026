// Package orderledger persists the set of order ids already counted by
// the statistics aggregator, so overlapping fetch windows do not double
// count across restarts.
package orderledger

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_orders (
	order_id   TEXT PRIMARY KEY,
	first_seen INTEGER NOT NULL
);
`

type Ledger struct {
	db *sql.DB
}

// Open creates or opens a ledger at path; ":memory:" works for tests.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Seen(ctx context.Context, orderID string) (bool, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT 1 FROM seen_orders WHERE order_id = ?", orderID)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) MarkSeen(ctx context.Context, orderID string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO seen_orders (order_id, first_seen) VALUES (?, ?)",
		orderID, time.Now().Unix())
	return err
}

// Prune drops entries older than the retention window; the ledger only
// needs to cover the overlap between consecutive fetch windows.
func (l *Ledger) Prune(ctx context.Context, keep time.Duration) error {
	cutoff := time.Now().Add(-keep).Unix()
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM seen_orders WHERE first_seen < ?", cutoff)
	return err
}
