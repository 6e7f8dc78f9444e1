// Package groups manages named sets of peers used for broadcast fan-out.
package groups

import (
	"context"
	"errors"
	"time"

	"github.com/arakichanxd/Agent-Connect/internal/models"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
	"github.com/arakichanxd/Agent-Connect/internal/store"
)

var (
	ErrNotFound      = errors.New("group not found")
	ErrExists        = errors.New("group already exists")
	ErrMemberExists  = errors.New("peer is already a member")
	ErrMemberMissing = errors.New("peer is not a member")
	ErrNotPaired     = errors.New("peer is not paired")
)

// Service manages group records.
type Service struct {
	store store.Store
}

// NewService creates a group service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Create creates an empty group.
func (s *Service) Create(ctx context.Context, name, createdBy string) (*models.Group, error) {
	if !peers.ValidName(name) {
		return nil, peers.ErrInvalidName
	}
	existing, err := s.store.LoadGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrExists
	}

	group := &models.Group{
		Name:      name,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}
	if err := s.store.SaveGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// Delete removes a group.
func (s *Service) Delete(ctx context.Context, name string) error {
	group, err := s.store.LoadGroup(ctx, name)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrNotFound
	}
	return s.store.DeleteGroup(ctx, name)
}

// Get loads a group. Returns ErrNotFound if absent.
func (s *Service) Get(ctx context.Context, name string) (*models.Group, error) {
	group, err := s.store.LoadGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrNotFound
	}
	return group, nil
}

// List returns all groups.
func (s *Service) List(ctx context.Context) ([]*models.Group, error) {
	return s.store.ListGroups(ctx)
}

// AddMember adds a paired peer to a group. Pairing status is validated only
// here, at add-time; membership may later drift to reference a removed peer
// and broadcast then fails for that member alone.
func (s *Service) AddMember(ctx context.Context, groupName, peerName string) error {
	group, err := s.store.LoadGroup(ctx, groupName)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrNotFound
	}
	if group.HasMember(peerName) {
		return ErrMemberExists
	}

	peer, err := s.store.LoadPeer(ctx, peerName)
	if err != nil {
		return err
	}
	if peer == nil || peer.Status != models.StatusPaired {
		return ErrNotPaired
	}

	group.Members = append(group.Members, peerName)
	return s.store.SaveGroup(ctx, group)
}

// RemoveMember removes a peer from a group.
func (s *Service) RemoveMember(ctx context.Context, groupName, peerName string) error {
	group, err := s.store.LoadGroup(ctx, groupName)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrNotFound
	}

	for i, m := range group.Members {
		if m == peerName {
			group.Members = append(group.Members[:i], group.Members[i+1:]...)
			return s.store.SaveGroup(ctx, group)
		}
	}
	return ErrMemberMissing
}
