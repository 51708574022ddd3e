package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/me-in-moments/internal/config"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// testConfig returns the embedded defaults with workspaces under a temp dir
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	cfg.Workspace.Dir = t.TempDir()
	return cfg
}

// contentSource is a fake EmbeddingSource that reads faces from the file
// content. Faces are separated by ';' and vector values by ','. "none" means
// no face, "fail" fails and "block" waits for cancellation.
type contentSource struct{}

func (contentSource) Embed(ctx context.Context, imagePath string) (facematch.EmbeddingSet, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, facematch.ErrInputNotFound
	}
	switch content := strings.TrimSpace(string(data)); content {
	case "none":
		return facematch.EmbeddingSet{}, nil
	case "fail":
		return nil, fmt.Errorf("%w: server unavailable", facematch.ErrEmbeddingFailure)
	case "block":
		<-ctx.Done()
		return nil, ctx.Err()
	default:
		var set facematch.EmbeddingSet
		for face := range strings.SplitSeq(content, ";") {
			var vec []float32
			for v := range strings.SplitSeq(face, ",") {
				f, err := strconv.ParseFloat(v, 32)
				if err != nil {
					return nil, facematch.ErrEmbeddingFailure
				}
				vec = append(vec, float32(f))
			}
			set = append(set, facematch.Embedding{Vector: vec, Source: imagePath})
		}
		return set, nil
	}
}

// uploadFile is one part of a multipart test request
type uploadFile struct {
	field   string
	name    string
	content string
}

// multipartRequest builds a POST request carrying files
func multipartRequest(t *testing.T, path string, files []uploadFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// waitForStatus polls the job until it reaches status or the test times out
func waitForStatus(t *testing.T, job *MatchJob, status JobStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job.GetStatus() == status {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s, last status %s", job.ID, status, job.GetStatus())
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

