package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestMessageSetsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"status":"delivered"}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	if err := c.Message(context.Background(), srv.URL, "supersecrettoken1234", "alice", "blob"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer supersecrettoken1234" {
		t.Fatalf("unexpected Authorization header: %q", gotAuth)
	}
	if gotBody["from"] != "alice" || gotBody["message"] != "blob" || gotBody["encrypted"] != true {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestPairRequestUnauthenticated(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	if err := c.PairRequest(context.Background(), srv.URL, "alice", "token", "https://alice.example.com"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Fatalf("pair request must not carry credentials, got %q", gotAuth)
	}
}

func TestNonSuccessStatusIsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	if err := c.Heartbeat(context.Background(), srv.URL, "secret", "alice"); err == nil {
		t.Fatal("expected delivery failure for 429 response")
	}
}

func TestUnreachablePeerIsDeliveryFailure(t *testing.T) {
	c := NewClient(zerolog.Nop())
	err := c.Heartbeat(context.Background(), "http://127.0.0.1:1", "secret", "alice")
	if err == nil {
		t.Fatal("expected connection error")
	}
}
