package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/albionradar/sniffer/internal/contracts"
)

var journalMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_contracts",
		SQL: `CREATE TABLE contracts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			topic TEXT NOT NULL,
			contract TEXT NOT NULL,
			observed_at INTEGER NOT NULL,
			stored_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
	},
	{
		Version: 2,
		Name:    "index_contracts_topic_stored",
		SQL:     `CREATE INDEX idx_contracts_topic_stored ON contracts (topic, stored_at)`,
	},
}

// Entry is one journaled contract.
type Entry struct {
	ID         int64           `json:"id"`
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	Contract   string          `json:"contract"`
	ObservedAt time.Time       `json:"observedAt"`
	StoredAt   time.Time       `json:"storedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Journal records every published contract in sqlite. It implements the
// publisher interface so it can sit next to MQTT and Redis.
type Journal struct {
	db  *Database
	now func() time.Time
}

// OpenJournal migrates db and wraps it.
func OpenJournal(ctx context.Context, db *Database) (*Journal, error) {
	if err := db.Migrate(ctx, journalMigrations); err != nil {
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Name() string { return "journal" }

// Publish stores c. A repeated event id is ignored.
func (j *Journal) Publish(ctx context.Context, topic string, c contracts.Contract) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal contract: %w", err)
	}
	meta := c.Meta()
	_, err = j.db.Exec(ctx,
		`INSERT OR IGNORE INTO contracts (event_id, topic, contract, observed_at, stored_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		meta.EventID, topic, c.ContractName(),
		meta.ObservedAt.UnixMilli(), j.now().UnixMilli(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to journal contract: %w", err)
	}
	return nil
}

// Prune deletes entries stored more than olderThan ago and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := j.now().Add(-olderThan).UnixMilli()
	res, err := j.db.Exec(ctx, "DELETE FROM contracts WHERE stored_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Recent returns up to limit entries, newest first. An empty topic matches
// every topic.
func (j *Journal) Recent(ctx context.Context, topic string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, event_id, topic, contract, observed_at, stored_at, payload FROM contracts`
	args := []interface{}{}
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			observed, stored int64
			payload          string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.Topic, &e.Contract, &observed, &stored, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.ObservedAt = time.UnixMilli(observed).UTC()
		e.StoredAt = time.UnixMilli(stored).UTC()
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRow(ctx, "SELECT COUNT(*) FROM contracts").Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
