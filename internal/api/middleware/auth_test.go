package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer 0123456789abcdef0123456789abcdef", "0123456789abcdef0123456789abcdef", nil},
		{"missing header", "", "", ErrNoAuth},
		{"no scheme", "0123456789abcdef0123456789abcdef", "", ErrNoAuth},
		{"wrong scheme", "Basic 0123456789abcdef0123456789abcdef", "", ErrNoAuth},
		{"lowercase scheme", "bearer 0123456789abcdef0123456789abcdef", "", ErrNoAuth},
		{"empty token", "Bearer ", "", ErrNoAuth},
		{"short token", "Bearer tooshort", "", ErrBadToken},
		{"nineteen chars", "Bearer 0123456789012345678", "", ErrBadToken},
		{"exactly twenty chars", "Bearer 01234567890123456789", "01234567890123456789", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/message", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected token %q, got %q", tt.want, got)
			}
		})
	}
}
