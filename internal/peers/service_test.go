package peers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/crypto"
	"github.com/arakichanxd/Agent-Connect/internal/models"
	"github.com/arakichanxd/Agent-Connect/internal/outbound"
	"github.com/arakichanxd/Agent-Connect/internal/reply"
	"github.com/arakichanxd/Agent-Connect/internal/store"
)

func testService(t *testing.T, opts Options) (*Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	opts.Store = mem
	if opts.Client == nil {
		opts.Client = outbound.NewClient(zerolog.Nop())
	}
	opts.Logger = zerolog.Nop()
	if opts.AgentName == "" {
		opts.AgentName = "local"
	}
	return NewService(opts), mem
}

func savePeer(t *testing.T, s store.Store, peer *models.Peer) {
	t.Helper()
	if err := s.SavePeer(context.Background(), peer); err != nil {
		t.Fatal(err)
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"alice", "agent-7", "under_score", "A1"} {
		if !ValidName(name) {
			t.Fatalf("%q should be valid", name)
		}
	}
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	for _, name := range []string{"", "has space", "dots.bad", "slash/bad", string(long)} {
		if ValidName(name) {
			t.Fatalf("%q should be invalid", name)
		}
	}
}

func TestInitiateCreatesPendingAndSendsSecret(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pair-request" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	svc, mem := testService(t, Options{Reach: StaticURL("https://local.example.com")})
	if err := svc.Initiate(context.Background(), "bob", srv.URL); err != nil {
		t.Fatal(err)
	}

	peer, err := mem.LoadPeer(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if peer == nil || peer.Status != models.StatusPending {
		t.Fatalf("expected pending record, got %+v", peer)
	}
	if len(peer.Secret) < MinSecretLen {
		t.Fatalf("secret too short: %d", len(peer.Secret))
	}
	if got["token"] != peer.Secret {
		t.Fatal("wire token must match the stored secret")
	}
	if got["from"] != "local" || got["webhook_url"] != "https://local.example.com" {
		t.Fatalf("unexpected pair request body: %v", got)
	}
}

func TestInitiateConflictWhenAlreadyPaired(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "bob", Status: models.StatusPaired, Secret: "s"})

	err := svc.Initiate(context.Background(), "bob", "http://unused.invalid")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInitiateKeepsPendingOnDeliveryFailure(t *testing.T) {
	svc, mem := testService(t, Options{})

	err := svc.Initiate(context.Background(), "bob", "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected delivery failure")
	}
	peer, _ := mem.LoadPeer(context.Background(), "bob")
	if peer == nil || peer.Status != models.StatusPending {
		t.Fatal("pending record must survive a failed pairing request delivery")
	}
}

func TestInitiateRejectsBadName(t *testing.T) {
	svc, _ := testService(t, Options{})
	if err := svc.Initiate(context.Background(), "no spaces", "http://x.invalid"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestReceiveRequestStoresRemoteSecret(t *testing.T) {
	svc, mem := testService(t, Options{})

	if err := svc.ReceiveRequest(context.Background(), "alice", "remote-supplied-secret-token", "https://alice.example.com"); err != nil {
		t.Fatal(err)
	}
	peer, _ := mem.LoadPeer(context.Background(), "alice")
	if peer == nil || peer.Status != models.StatusPending || peer.Secret != "remote-supplied-secret-token" {
		t.Fatalf("unexpected record: %+v", peer)
	}

	// A second request overwrites the pending record
	if err := svc.ReceiveRequest(context.Background(), "alice", "second-secret-token-value", "https://alice2.example.com"); err != nil {
		t.Fatal(err)
	}
	peer, _ = mem.LoadPeer(context.Background(), "alice")
	if peer.Secret != "second-secret-token-value" {
		t.Fatal("pending record should be overwritten")
	}
}

func TestReceiveRequestConflictWhenPaired(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "alice", Status: models.StatusPaired, Secret: "s"})

	err := svc.ReceiveRequest(context.Background(), "alice", "another-secret-token-1234", "https://alice.example.com")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAcceptFlipsToPairedAndNotifiesRemote(t *testing.T) {
	notified := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pair-accept" {
			notified <- r.Header.Get("Authorization")
		}
		w.Write([]byte(`{"status":"paired"}`))
	}))
	defer srv.Close()

	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "alice", URL: srv.URL, Status: models.StatusPending, Secret: "shared-secret-token-1234"})

	if err := svc.Accept(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}

	peer, _ := mem.LoadPeer(context.Background(), "alice")
	if peer.Status != models.StatusPaired || peer.PairedAt == nil {
		t.Fatalf("expected paired with timestamp, got %+v", peer)
	}

	select {
	case auth := <-notified:
		if auth != "Bearer shared-secret-token-1234" {
			t.Fatalf("accept notification must carry the shared secret, got %q", auth)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote accept notification never sent")
	}
}

func TestAcceptIdempotentWhenAlreadyPaired(t *testing.T) {
	svc, mem := testService(t, Options{})
	pairedAt := time.Now().UTC().Add(-time.Hour)
	savePeer(t, mem, &models.Peer{Name: "alice", Status: models.StatusPaired, Secret: "s", PairedAt: &pairedAt})

	if err := svc.Accept(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	peer, _ := mem.LoadPeer(context.Background(), "alice")
	if !peer.PairedAt.Equal(pairedAt) {
		t.Fatal("accept on an already-paired peer must not touch PairedAt")
	}
}

func TestAcceptMissingPeer(t *testing.T) {
	svc, _ := testService(t, Options{})
	if err := svc.Accept(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReceiveAcceptVerifiesBearer(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "bob", Status: models.StatusPending, Secret: "the-real-secret-token-42"})

	if err := svc.ReceiveAccept(context.Background(), "bob", "the-wrong-secret-token-42", ""); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	peer, _ := mem.LoadPeer(context.Background(), "bob")
	if peer.Status != models.StatusPending {
		t.Fatal("bearer mismatch must not flip the record")
	}

	if err := svc.ReceiveAccept(context.Background(), "bob", "the-real-secret-token-42", "https://bob.example.com"); err != nil {
		t.Fatal(err)
	}
	peer, _ = mem.LoadPeer(context.Background(), "bob")
	if peer.Status != models.StatusPaired || peer.URL != "https://bob.example.com" {
		t.Fatalf("expected paired with updated URL, got %+v", peer)
	}
}

func TestReceiveAcceptMissingPeer(t *testing.T) {
	svc, _ := testService(t, Options{})
	if err := svc.ReceiveAccept(context.Background(), "ghost", "whatever-secret-token-99", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelOnlyFromPending(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "pending", Status: models.StatusPending, Secret: "s"})
	savePeer(t, mem, &models.Peer{Name: "paired", Status: models.StatusPaired, Secret: "s"})

	if err := svc.Cancel(context.Background(), "pending"); err != nil {
		t.Fatal(err)
	}
	if peer, _ := mem.LoadPeer(context.Background(), "pending"); peer != nil {
		t.Fatal("cancel must delete the record")
	}

	if err := svc.Cancel(context.Background(), "paired"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if err := svc.Cancel(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveOnlyFromPaired(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "pending", Status: models.StatusPending, Secret: "s"})
	savePeer(t, mem, &models.Peer{Name: "paired", Status: models.StatusPaired, Secret: "s"})

	if err := svc.Remove(context.Background(), "paired"); err != nil {
		t.Fatal(err)
	}
	if peer, _ := mem.LoadPeer(context.Background(), "paired"); peer != nil {
		t.Fatal("remove must delete the record")
	}

	if err := svc.Remove(context.Background(), "pending"); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "alice", Status: models.StatusPaired, Secret: "correct-horse-battery-staple"})

	peer, err := svc.Authenticate(context.Background(), "alice", "correct-horse-battery-staple")
	if err != nil || peer == nil {
		t.Fatalf("expected success, got %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "alice", "incorrect-horse-battery-stap"); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	// Unknown peer must be indistinguishable from a bad secret
	if _, err := svc.Authenticate(context.Background(), "ghost", "correct-horse-battery-staple"); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth for unknown peer, got %v", err)
	}
}

func TestReceiveMessageRecordsIncomingAndTriggersReply(t *testing.T) {
	delivered := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		delivered <- body.Message
		w.Write([]byte(`{"status":"delivered"}`))
	}))
	defer srv.Close()

	svc, mem := testService(t, Options{
		Generator: reply.Static{Text: "ack"},
		Cooldown:  Cooldown{MaxExchanges: 5, Window: 30 * time.Minute},
	})
	savePeer(t, mem, &models.Peer{Name: "alice", URL: srv.URL, Status: models.StatusPaired, Secret: "shared-secret-token-1234"})

	queued, err := svc.ReceiveMessage(context.Background(), "alice", "hello", false)
	if err != nil {
		t.Fatal(err)
	}
	if !queued {
		t.Fatal("expected an automatic reply to be triggered")
	}

	select {
	case blob := <-delivered:
		pt, err := crypto.Decrypt(blob, "shared-secret-token-1234")
		if err != nil {
			t.Fatal(err)
		}
		if pt != "ack" {
			t.Fatalf("expected reply 'ack', got %q", pt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("automatic reply never delivered")
	}

	waitFor(t, func() bool {
		peer, _ := mem.LoadPeer(context.Background(), "alice")
		return len(peer.History) == 2
	}, "incoming + outgoing history entries")

	peer, _ := mem.LoadPeer(context.Background(), "alice")
	if peer.History[0].Direction != models.DirectionIncoming || peer.History[0].Content != "hello" {
		t.Fatalf("unexpected first history entry: %+v", peer.History[0])
	}
	if peer.History[1].Direction != models.DirectionOutgoing || peer.History[1].Content != "ack" {
		t.Fatalf("unexpected second history entry: %+v", peer.History[1])
	}
	if peer.LastMessageAt == nil {
		t.Fatal("LastMessageAt not stamped")
	}
}

func TestReceiveMessageOverCooldownOnlyRecords(t *testing.T) {
	svc, mem := testService(t, Options{
		Generator: reply.Static{Text: "ack"},
		Cooldown:  Cooldown{MaxExchanges: 3, Window: 30 * time.Minute},
	})
	peer := &models.Peer{Name: "alice", URL: "http://127.0.0.1:1", Status: models.StatusPaired, Secret: "s"}
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		peer.AppendHistory(models.Message{Timestamp: now.Add(-time.Minute), Direction: models.DirectionIncoming})
	}
	savePeer(t, mem, peer)

	queued, err := svc.ReceiveMessage(context.Background(), "alice", "still there?", false)
	if err != nil {
		t.Fatal(err)
	}
	if queued {
		t.Fatal("over cooldown must suppress the automatic reply")
	}
	loaded, _ := mem.LoadPeer(context.Background(), "alice")
	if len(loaded.History) != 4 {
		t.Fatal("message must still be recorded for manual handling")
	}
}

func TestSendRequiresPairedPeer(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "pending", Status: models.StatusPending, Secret: "s", URL: "http://127.0.0.1:1"})

	if err := svc.Send(context.Background(), "pending", "hi"); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
	if err := svc.Send(context.Background(), "ghost", "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendDeliveryFailureRecordsNothing(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "alice", Status: models.StatusPaired, Secret: "s", URL: "http://127.0.0.1:1"})

	if err := svc.Send(context.Background(), "alice", "hi"); err == nil {
		t.Fatal("expected delivery failure")
	}
	peer, _ := mem.LoadPeer(context.Background(), "alice")
	if len(peer.History) != 0 {
		t.Fatal("failed delivery must not append an outgoing entry")
	}
}

func TestRecordHeartbeatStampsTime(t *testing.T) {
	svc, mem := testService(t, Options{})
	savePeer(t, mem, &models.Peer{Name: "alice", Status: models.StatusPaired, Secret: "s"})

	if err := svc.RecordHeartbeat(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	peer, _ := mem.LoadPeer(context.Background(), "alice")
	if peer.LastHeartbeatAt == nil {
		t.Fatal("LastHeartbeatAt not stamped")
	}

	if err := svc.RecordHeartbeat(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
