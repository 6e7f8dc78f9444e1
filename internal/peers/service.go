// Package peers implements the pairing state machine and the message
// lifecycle for peer relationships.
//
// Pairing is optimistic and local-first: accepting a pairing commits the
// paired state locally before the remote side has confirmed. A lost accept
// notification leaves the two sides temporarily asymmetric until any future
// authenticated call reconciles them.
package peers

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/crypto"
	"github.com/arakichanxd/Agent-Connect/internal/metrics"
	"github.com/arakichanxd/Agent-Connect/internal/models"
	"github.com/arakichanxd/Agent-Connect/internal/notify"
	"github.com/arakichanxd/Agent-Connect/internal/outbound"
	"github.com/arakichanxd/Agent-Connect/internal/reply"
	"github.com/arakichanxd/Agent-Connect/internal/store"
)

var (
	ErrNotFound    = errors.New("peer not found")
	ErrConflict    = errors.New("peer already paired")
	ErrNotPending  = errors.New("peer is not pending")
	ErrNotPaired   = errors.New("peer is not paired")
	ErrAuth        = errors.New("invalid credentials")
	ErrInvalidName = errors.New("peer name must be 1-64 alphanumeric, dash or underscore characters")
)

// MinSecretLen is the minimum accepted length for a pairing secret.
const MinSecretLen = 20

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidName reports whether name is a legal peer name.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Reachability supplies the public URL this agent advertises to peers.
// The core treats it as an opaque string.
type Reachability interface {
	PublicURL() string
}

// StaticURL is a fixed-string Reachability.
type StaticURL string

func (u StaticURL) PublicURL() string { return string(u) }

// Options configures a Service.
type Options struct {
	Store     store.Store
	Client    *outbound.Client
	Sink      notify.Sink      // optional
	Generator reply.Generator  // optional; nil disables automatic replies
	Logger    zerolog.Logger
	Clock     clock.Clock // optional; defaults to the real clock
	AgentName string
	Reach     Reachability
	Cooldown  Cooldown
}

// Service owns peer records and drives the pairing state machine.
type Service struct {
	store     store.Store
	client    *outbound.Client
	sink      notify.Sink
	generator reply.Generator
	logger    zerolog.Logger
	clock     clock.Clock
	locks     *nameLocks
	agentName string
	reach     Reachability
	cooldown  Cooldown
}

// NewService creates a peer service.
func NewService(opts Options) *Service {
	if opts.Sink == nil {
		opts.Sink = notify.NopSink{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Reach == nil {
		opts.Reach = StaticURL("")
	}
	return &Service{
		store:     opts.Store,
		client:    opts.Client,
		sink:      opts.Sink,
		generator: opts.Generator,
		logger:    opts.Logger,
		clock:     opts.Clock,
		locks:     newNameLocks(),
		agentName: opts.AgentName,
		reach:     opts.Reach,
		cooldown:  opts.Cooldown,
	}
}

// Get loads a peer record. Returns (nil, nil) if absent.
func (s *Service) Get(ctx context.Context, name string) (*models.Peer, error) {
	return s.store.LoadPeer(ctx, name)
}

// List returns all peer records.
func (s *Service) List(ctx context.Context) ([]*models.Peer, error) {
	return s.store.ListPeers(ctx)
}

// Authenticate loads the named peer and verifies the bearer token against
// its shared secret in constant time. Returns ErrAuth if the peer is
// unknown or the token mismatches: an unknown name must look the same as a
// bad secret to the caller.
func (s *Service) Authenticate(ctx context.Context, name, token string) (*models.Peer, error) {
	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return nil, err
	}
	if peer == nil || !crypto.SecretsEqual(token, peer.Secret) {
		metrics.AuthFailures.Inc()
		return nil, ErrAuth
	}
	return peer, nil
}

// Initiate starts a pairing with a remote agent: generates a fresh secret,
// records the peer as pending, then sends the unauthenticated pairing
// request carrying the secret. The pending record is kept even when
// delivery fails so the operator can retry.
func (s *Service) Initiate(ctx context.Context, name, url string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}

	secret, err := crypto.NewSecret()
	if err != nil {
		return err
	}

	unlock := s.locks.acquire(name)
	existing, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		unlock()
		return err
	}
	if existing != nil && existing.Status == models.StatusPaired {
		unlock()
		return ErrConflict
	}

	peer := &models.Peer{
		Name:      name,
		URL:       url,
		Secret:    secret,
		Status:    models.StatusPending,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.SavePeer(ctx, peer); err != nil {
		unlock()
		return err
	}
	unlock()

	return s.client.PairRequest(ctx, url, s.agentName, secret, s.reach.PublicURL())
}

// ReceiveRequest handles an inbound pairing request. The remote side
// supplies the secret; an existing paired record is a conflict, an existing
// pending record is overwritten.
func (s *Service) ReceiveRequest(ctx context.Context, name, token, url string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}

	unlock := s.locks.acquire(name)
	defer unlock()

	existing, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == models.StatusPaired {
		return ErrConflict
	}

	peer := &models.Peer{
		Name:      name,
		URL:       url,
		Secret:    token,
		Status:    models.StatusPending,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.SavePeer(ctx, peer); err != nil {
		return err
	}

	metrics.PairRequestsReceived.Inc()
	s.sink.Notify(notify.NewEvent(notify.EventPairRequested, name, "pairing requested by remote"))
	return nil
}

// Accept flips a pending peer to paired and asynchronously notifies the
// remote endpoint using the shared secret as bearer credential. Accepting
// an already-paired peer is a no-op success; PairedAt is not touched.
func (s *Service) Accept(ctx context.Context, name string) error {
	unlock := s.locks.acquire(name)

	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		unlock()
		return err
	}
	if peer == nil {
		unlock()
		return ErrNotFound
	}
	if peer.Status == models.StatusPaired {
		unlock()
		return nil
	}
	if peer.Status != models.StatusPending {
		unlock()
		return ErrNotPending
	}

	now := s.clock.Now().UTC()
	peer.Status = models.StatusPaired
	peer.PairedAt = &now
	if err := s.store.SavePeer(ctx, peer); err != nil {
		unlock()
		return err
	}
	unlock()

	metrics.PairingsCompleted.Inc()
	s.sink.Notify(notify.NewEvent(notify.EventPairAccepted, name, "pairing accepted locally"))

	// Local commit happens before remote confirmation. A lost notification
	// leaves the two sides asymmetric until any future authenticated call.
	go func() {
		if err := s.client.PairAccept(context.WithoutCancel(ctx), peer.URL, peer.Secret, s.agentName, s.reach.PublicURL()); err != nil {
			s.logger.Warn().Err(err).Str("peer", name).Msg("pair accept notification failed")
		}
	}()
	return nil
}

// ReceiveAccept handles the remote side's accept notification. The bearer
// must equal the stored secret; on success the pending record flips to
// paired. An optional webhook URL update is applied.
func (s *Service) ReceiveAccept(ctx context.Context, name, bearer, url string) error {
	unlock := s.locks.acquire(name)
	defer unlock()

	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if peer == nil {
		return ErrNotFound
	}
	if !crypto.SecretsEqual(bearer, peer.Secret) {
		metrics.AuthFailures.Inc()
		return ErrAuth
	}
	if peer.Status == models.StatusPaired {
		return nil
	}

	now := s.clock.Now().UTC()
	peer.Status = models.StatusPaired
	peer.PairedAt = &now
	if url != "" {
		peer.URL = url
	}
	if err := s.store.SavePeer(ctx, peer); err != nil {
		return err
	}

	metrics.PairingsCompleted.Inc()
	s.sink.Notify(notify.NewEvent(notify.EventPairAccepted, name, "pairing accepted by remote"))
	return nil
}

// Cancel deletes a pending pairing. Only legal from the pending state.
func (s *Service) Cancel(ctx context.Context, name string) error {
	unlock := s.locks.acquire(name)
	defer unlock()

	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if peer == nil {
		return ErrNotFound
	}
	if peer.Status != models.StatusPending {
		return ErrNotPending
	}
	return s.store.DeletePeer(ctx, name)
}

// Remove deletes a paired peer. Deletion is local-only: no network
// notification is sent to the removed peer.
func (s *Service) Remove(ctx context.Context, name string) error {
	unlock := s.locks.acquire(name)
	defer unlock()

	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if peer == nil {
		return ErrNotFound
	}
	if peer.Status != models.StatusPaired {
		return ErrNotPaired
	}
	if err := s.store.DeletePeer(ctx, name); err != nil {
		return err
	}

	s.sink.Notify(notify.NewEvent(notify.EventPairRemoved, name, "peer removed"))
	return nil
}

// ReceiveMessage records an inbound plaintext message, then decides whether
// to trigger an automatic reply. The cooldown gate is recomputed from
// history on every call; over the threshold the message is only recorded
// for manual handling. Returns whether a reply was triggered.
func (s *Service) ReceiveMessage(ctx context.Context, name, content string, isFile bool) (bool, error) {
	unlock := s.locks.acquire(name)

	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		unlock()
		return false, err
	}
	if peer == nil {
		unlock()
		return false, ErrNotFound
	}

	// The gate counts exchanges already in the window, not the message
	// being recorded right now.
	now := s.clock.Now().UTC()
	overCooldown := s.cooldown.Over(peer, now)

	peer.AppendHistory(models.Message{
		ID:        ulid.Make().String(),
		Peer:      name,
		Content:   content,
		Timestamp: now,
		Direction: models.DirectionIncoming,
	})
	peer.LastMessageAt = &now

	if err := s.store.SavePeer(ctx, peer); err != nil {
		unlock()
		return false, err
	}
	history := append([]models.Message(nil), peer.History...)
	unlock()

	if isFile {
		s.sink.Notify(notify.NewEvent(notify.EventFileReceived, name, "file received"))
	} else {
		s.sink.Notify(notify.NewEvent(notify.EventMessageIn, name, content))
	}

	if s.generator == nil || overCooldown {
		return false, nil
	}

	go s.autoReply(context.WithoutCancel(ctx), name, content, history)
	return true, nil
}

func (s *Service) autoReply(ctx context.Context, name, incoming string, history []models.Message) {
	text, err := s.generator.GenerateReply(ctx, reply.Context{
		Peer:     name,
		Incoming: incoming,
		History:  history,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("peer", name).Msg("reply generation failed")
		return
	}
	if text == "" {
		return
	}
	if err := s.Send(ctx, name, text); err != nil {
		s.logger.Warn().Err(err).Str("peer", name).Msg("automatic reply delivery failed")
	}
}

// Send encrypts content with the peer's secret, delivers it, and records an
// outgoing history entry. Delivery failures are returned to the caller and
// never retried here.
func (s *Service) Send(ctx context.Context, name, content string) error {
	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if peer == nil {
		return ErrNotFound
	}
	if peer.Status != models.StatusPaired {
		return ErrNotPaired
	}

	blob, err := crypto.Encrypt(content, peer.Secret)
	if err != nil {
		return err
	}
	if err := s.client.Message(ctx, peer.URL, peer.Secret, s.agentName, blob); err != nil {
		return err
	}

	unlock := s.locks.acquire(name)
	defer unlock()

	// Re-load under the lock; delivery happened outside it.
	peer, err = s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if peer == nil {
		return ErrNotFound
	}

	now := s.clock.Now().UTC()
	peer.AppendHistory(models.Message{
		ID:        ulid.Make().String(),
		Peer:      name,
		Content:   content,
		Timestamp: now,
		Direction: models.DirectionOutgoing,
	})
	peer.LastMessageAt = &now
	if err := s.store.SavePeer(ctx, peer); err != nil {
		return err
	}

	metrics.MessagesSent.Inc()
	s.sink.Notify(notify.NewEvent(notify.EventMessageOut, name, content))
	return nil
}

// RecordHeartbeat stamps the peer's last heartbeat time.
func (s *Service) RecordHeartbeat(ctx context.Context, name string) error {
	unlock := s.locks.acquire(name)
	defer unlock()

	peer, err := s.store.LoadPeer(ctx, name)
	if err != nil {
		return err
	}
	if peer == nil {
		return ErrNotFound
	}

	now := s.clock.Now().UTC()
	peer.LastHeartbeatAt = &now
	if err := s.store.SavePeer(ctx, peer); err != nil {
		return err
	}

	metrics.HeartbeatsReceived.Inc()
	return nil
}

// OverCooldown reports whether the peer's recent exchange count has reached
// the configured threshold.
func (s *Service) OverCooldown(peer *models.Peer) bool {
	return s.cooldown.Over(peer, s.clock.Now().UTC())
}

// Now exposes the service clock, used by handlers for timestamps.
func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}
