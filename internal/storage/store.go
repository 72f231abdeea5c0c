package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"maker_go/internal/domain"
)

// OrderStore persists in-flight order tracking states in SQLite so that a
// restart can restore them before the first tick.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore opens (or creates) the SQLite store with WAL mode enabled.
func NewOrderStore(dbPath string) (*OrderStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			client_id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &OrderStore{db: db}, nil
}

// SaveTrackingState upserts one in-flight order's tracking state.
func (s *OrderStore) SaveTrackingState(ctx context.Context, o domain.InFlightOrder, tsUnixMs int64) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", o.ClientID, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO orders (client_id, pair, payload, updated_at) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(client_id) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at",
		o.ClientID, o.Pair, payload, tsUnixMs,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", o.ClientID, err)
	}
	return nil
}

// DeleteTrackingState removes a terminal order from the store.
func (s *OrderStore) DeleteTrackingState(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE client_id = ?", clientID)
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", clientID, err)
	}
	return nil
}

// LoadTrackingStates returns all persisted in-flight orders keyed by
// client order id. Used at startup, before the first tick.
func (s *OrderStore) LoadTrackingStates(ctx context.Context) (map[string]domain.InFlightOrder, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT client_id, payload FROM orders")
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	states := make(map[string]domain.InFlightOrder)
	for rows.Next() {
		var clientID string
		var payload []byte
		if err := rows.Scan(&clientID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		var o domain.InFlightOrder
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order %s: %w", clientID, err)
		}
		states[clientID] = o
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return states, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *OrderStore) UpsertMetadata(ctx context.Context, key, value string, tsUnixMs int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, tsUnixMs,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table.
// Returns "" if the key does not exist.
func (s *OrderStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *OrderStore) Close() error {
	return s.db.Close()
}
