package store

import (
	"context"

	"github.com/arakichanxd/Agent-Connect/internal/models"
)

// Store defines the interface for persistent storage of peer and group
// records. Records are persisted as opaque JSON documents keyed by name;
// Load returns (nil, nil) when no record exists. Both SQLiteStore and
// MemoryStore implement this interface.
type Store interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	// Peer operations
	LoadPeer(ctx context.Context, name string) (*models.Peer, error)
	SavePeer(ctx context.Context, peer *models.Peer) error
	DeletePeer(ctx context.Context, name string) error
	ListPeers(ctx context.Context) ([]*models.Peer, error)

	// Group operations
	LoadGroup(ctx context.Context, name string) (*models.Group, error)
	SaveGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, name string) error
	ListGroups(ctx context.Context) ([]*models.Group, error)
}
