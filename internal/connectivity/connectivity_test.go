package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name      string
		url       string
		requireOK bool
		offline   bool
	}{
		{"healthy", healthy.URL, true, false},
		{"503 with RequireOK", broken.URL, true, true},
		{"503 without RequireOK", broken.URL, false, false},
		{"connection refused", closedURL, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &HTTPProbe{URL: tt.url, RequireOK: tt.requireOK}
			err := p.Check(context.Background())
			if tt.offline && !errors.Is(err, ErrOffline) {
				t.Errorf("expected ErrOffline, got %v", err)
			}
			if !tt.offline && err != nil {
				t.Errorf("expected online, got %v", err)
			}
		})
	}
}

func TestAlways(t *testing.T) {
	var c Checker = Always{}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
