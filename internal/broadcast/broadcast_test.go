package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/crypto"
	"github.com/arakichanxd/Agent-Connect/internal/models"
	"github.com/arakichanxd/Agent-Connect/internal/outbound"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
	"github.com/arakichanxd/Agent-Connect/internal/store"
)

func TestSendCollectsPerMemberOutcomes(t *testing.T) {
	ctx := context.Background()

	// One reachable member, one member whose endpoint is down, one member
	// that was removed after being added to the group.
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		received <- body.Message
		w.Write([]byte(`{"status":"delivered"}`))
	}))
	defer srv.Close()

	mem := store.NewMemoryStore()
	mem.SavePeer(ctx, &models.Peer{Name: "alive", URL: srv.URL, Secret: "secret-for-alive-peer-01", Status: models.StatusPaired})
	mem.SavePeer(ctx, &models.Peer{Name: "down", URL: "http://127.0.0.1:1", Secret: "secret-for-down-peer-001", Status: models.StatusPaired})

	svc := peers.NewService(peers.Options{
		Store:     mem,
		Client:    outbound.NewClient(zerolog.Nop()),
		Logger:    zerolog.Nop(),
		AgentName: "local",
	})
	c := NewCoordinator(svc, zerolog.Nop())

	group := &models.Group{Name: "ops", Members: []string{"alive", "down", "removed"}}
	report := c.Send(ctx, group, "all hands")

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	byMember := map[string]Result{}
	for _, res := range report.Results {
		byMember[res.Member] = res
	}

	if byMember["alive"].Outcome != OutcomeDelivered {
		t.Fatalf("alive: expected delivered, got %+v", byMember["alive"])
	}
	if byMember["down"].Outcome != OutcomeFailed {
		t.Fatalf("down: expected failed, got %+v", byMember["down"])
	}
	if byMember["removed"].Outcome != OutcomeNotPaired {
		t.Fatalf("removed: expected not_paired, got %+v", byMember["removed"])
	}
	if report.Delivered() != 1 {
		t.Fatalf("expected 1 delivery, got %d", report.Delivered())
	}

	// Pairwise encryption: the delivered blob opens with that member's
	// own secret.
	blob := <-received
	pt, err := crypto.Decrypt(blob, "secret-for-alive-peer-01")
	if err != nil {
		t.Fatal(err)
	}
	if pt != "all hands" {
		t.Fatalf("expected 'all hands', got %q", pt)
	}
}

func TestSendEmptyGroup(t *testing.T) {
	svc := peers.NewService(peers.Options{
		Store:     store.NewMemoryStore(),
		Client:    outbound.NewClient(zerolog.Nop()),
		Logger:    zerolog.Nop(),
		AgentName: "local",
	})
	c := NewCoordinator(svc, zerolog.Nop())

	report := c.Send(context.Background(), &models.Group{Name: "empty"}, "anyone?")
	if len(report.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(report.Results))
	}
}
