package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/arakichanxd/Agent-Connect/internal/models"
)

// MemoryStore is an in-memory Store used in tests and ephemeral setups.
// Records are kept as marshaled JSON so callers get the same copy semantics
// as the SQLite backend.
type MemoryStore struct {
	mu     sync.RWMutex
	peers  map[string][]byte
	groups map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		peers:  make(map[string][]byte),
		groups: make(map[string][]byte),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) LoadPeer(_ context.Context, name string) (*models.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.peers[name]
	if !ok {
		return nil, nil
	}
	var peer models.Peer
	if err := json.Unmarshal(doc, &peer); err != nil {
		return nil, err
	}
	return &peer, nil
}

func (s *MemoryStore) SavePeer(_ context.Context, peer *models.Peer) error {
	doc, err := json.Marshal(peer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[peer.Name] = doc
	return nil
}

func (s *MemoryStore) DeletePeer(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, name)
	return nil
}

func (s *MemoryStore) ListPeers(_ context.Context) ([]*models.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.peers))
	for name := range s.peers {
		names = append(names, name)
	}
	sort.Strings(names)

	peers := make([]*models.Peer, 0, len(names))
	for _, name := range names {
		var peer models.Peer
		if err := json.Unmarshal(s.peers[name], &peer); err != nil {
			return nil, err
		}
		peers = append(peers, &peer)
	}
	return peers, nil
}

func (s *MemoryStore) LoadGroup(_ context.Context, name string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	var group models.Group
	if err := json.Unmarshal(doc, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *MemoryStore) SaveGroup(_ context.Context, group *models.Group) error {
	doc, err := json.Marshal(group)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.Name] = doc
	return nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, name)
	return nil
}

func (s *MemoryStore) ListGroups(_ context.Context) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]*models.Group, 0, len(names))
	for _, name := range names {
		var group models.Group
		if err := json.Unmarshal(s.groups[name], &group); err != nil {
			return nil, err
		}
		groups = append(groups, &group)
	}
	return groups, nil
}
