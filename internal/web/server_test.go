package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/me-in-moments/internal/config"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

type noFaces struct{}

func (noFaces) Embed(ctx context.Context, imagePath string) (facematch.EmbeddingSet, error) {
	return facematch.EmbeddingSet{}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	cfg.Workspace.Dir = t.TempDir()
	return NewServer(cfg, noFaces{}, nil)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)
	defer s.jobManager.Shutdown()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/config", http.StatusOK},
		{"GET", "/api/v1/runs", http.StatusOK},
		{"GET", "/api/v1/runs/unknown", http.StatusNotFound},
		{"GET", "/api/v1/runs/unknown/matches", http.StatusNotFound},
		{"GET", "/api/v1/runs/unknown/archive", http.StatusNotFound},
		{"DELETE", "/api/v1/runs/unknown", http.StatusNotFound},
		{"POST", "/api/v1/runs", http.StatusBadRequest},
		{"GET", "/", http.StatusNotFound},
		{"PUT", "/api/v1/runs", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(tt.method, tt.path, nil))

			if recorder.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, recorder.Code)
			}
		})
	}
}

func TestServer_Address(t *testing.T) {
	s := newTestServer(t)
	if s.httpServer.Addr != "0.0.0.0:8085" {
		t.Errorf("expected address 0.0.0.0:8085, got %s", s.httpServer.Addr)
	}
}

func TestServer_Shutdown(t *testing.T) {
	s := newTestServer(t)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}
