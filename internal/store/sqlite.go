package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arakichanxd/Agent-Connect/internal/models"
)

// SQLiteStore persists peer and group records as JSON documents in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/agentconnect.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/agentconnect.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS peers (
		name TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS groups (
		name TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadPeer loads a peer record by name. Returns (nil, nil) if absent.
func (s *SQLiteStore) LoadPeer(ctx context.Context, name string) (*models.Peer, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM peers WHERE name = ?`, name).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var peer models.Peer
	if err := json.Unmarshal([]byte(doc), &peer); err != nil {
		return nil, err
	}
	return &peer, nil
}

// SavePeer upserts a peer record.
func (s *SQLiteStore) SavePeer(ctx context.Context, peer *models.Peer) error {
	doc, err := json.Marshal(peer)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO peers (name, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		peer.Name, string(doc), time.Now().UTC())
	return err
}

// DeletePeer removes a peer record. Deleting a missing record is not an error.
func (s *SQLiteStore) DeletePeer(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM peers WHERE name = ?`, name)
	return err
}

// ListPeers returns all peer records.
func (s *SQLiteStore) ListPeers(ctx context.Context) ([]*models.Peer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM peers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []*models.Peer
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var peer models.Peer
		if err := json.Unmarshal([]byte(doc), &peer); err != nil {
			return nil, err
		}
		peers = append(peers, &peer)
	}
	return peers, rows.Err()
}

// LoadGroup loads a group record by name. Returns (nil, nil) if absent.
func (s *SQLiteStore) LoadGroup(ctx context.Context, name string) (*models.Group, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM groups WHERE name = ?`, name).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var group models.Group
	if err := json.Unmarshal([]byte(doc), &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// SaveGroup upserts a group record.
func (s *SQLiteStore) SaveGroup(ctx context.Context, group *models.Group) error {
	doc, err := json.Marshal(group)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO groups (name, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		group.Name, string(doc), time.Now().UTC())
	return err
}

// DeleteGroup removes a group record.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE name = ?`, name)
	return err
}

// ListGroups returns all group records.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var group models.Group
		if err := json.Unmarshal([]byte(doc), &group); err != nil {
			return nil, err
		}
		groups = append(groups, &group)
	}
	return groups, rows.Err()
}
