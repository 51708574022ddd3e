// Package embedding talks to the face embedding server and adapts its
// responses to facematch embeddings.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/kozaktomas/me-in-moments/internal/imageproc"
)

const (
	defaultURL   = "http://localhost:8000"
	defaultModel = "buffalo_l" // model name for reference only
)

// Options configures a Client.
type Options struct {
	URL          string
	Model        string
	Timeout      time.Duration
	MaxImageSize int            // images are downscaled to fit, 0 disables
	Preprocess   imageproc.Mode // applied before upload
	MinDetScore  float64        // faces below this detection score are dropped
	Dim          int            // expected vector length, 0 accepts any
}

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL string
	opts    Options
	client  *http.Client
}

// NewClient creates a new embedding client.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = defaultURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Preprocess == "" {
		opts.Preprocess = imageproc.ModeNone
	}
	return &Client{
		baseURL: strings.TrimSuffix(opts.URL, "/"),
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// FaceDetection represents a single detected face.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as the "file" part of a multipart form
// and returns the response body.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}

// ComputeFaceEmbeddings detects faces and computes their embeddings.
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// Embed reads the image at imagePath and returns the faces found in it.
// A missing file is facematch.ErrInputNotFound; any other failure is
// facematch.ErrEmbeddingFailure. No face yields an empty set.
func (c *Client) Embed(ctx context.Context, imagePath string) (facematch.EmbeddingSet, error) {
	data, err := os.ReadFile(imagePath) //nolint:gosec // caller-provided image path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", facematch.ErrInputNotFound, imagePath)
		}
		return nil, fmt.Errorf("%w: read %s: %v", facematch.ErrEmbeddingFailure, imagePath, err)
	}
	return c.EmbedBytes(ctx, data, imagePath)
}

// EmbedBytes embeds an in-memory image. source is recorded on every embedding.
func (c *Client) EmbedBytes(ctx context.Context, data []byte, source string) (facematch.EmbeddingSet, error) {
	prepared, scale, err := imageproc.Prepare(data, c.opts.Preprocess, c.opts.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", facematch.ErrEmbeddingFailure, err)
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, prepared)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", facematch.ErrEmbeddingFailure, err)
	}

	set := make(facematch.EmbeddingSet, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if face.DetScore < c.opts.MinDetScore {
			continue
		}
		if len(face.Embedding) == 0 {
			return nil, fmt.Errorf("%w: face %d has an empty embedding", facematch.ErrEmbeddingFailure, face.FaceIndex)
		}
		if c.opts.Dim > 0 && len(face.Embedding) != c.opts.Dim {
			return nil, fmt.Errorf("%w: face %d has %d values, expected %d",
				facematch.ErrDimensionMismatch, face.FaceIndex, len(face.Embedding), c.opts.Dim)
		}
		set = append(set, facematch.Embedding{
			Vector:   face.Embedding,
			Source:   source,
			BBox:     scaleBox(facematch.CornersToBox(face.BBox), scale),
			DetScore: face.DetScore,
		})
	}
	return set, nil
}

// scaleBox maps a box measured on a downscaled upload back to original pixels.
func scaleBox(box []float64, scale float64) []float64 {
	if len(box) == 0 || scale == 1 {
		return box
	}
	out := make([]float64, len(box))
	for i, v := range box {
		out[i] = v * scale
	}
	return out
}

// Model returns the model name being used.
func (c *Client) Model() string {
	return c.opts.Model
}

// CacheTag identifies every setting that changes the embeddings produced for
// the same image bytes. Cached results are only reused under an equal tag.
func (c *Client) CacheTag() string {
	return strings.Join([]string{
		c.opts.Model,
		string(c.opts.Preprocess),
		strconv.Itoa(c.opts.MaxImageSize),
		strconv.FormatFloat(c.opts.MinDetScore, 'f', -1, 64),
	}, ":")
}

// Health checks that the embedding server responds.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", facematch.ErrEmbeddingFailure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned status %d", facematch.ErrEmbeddingFailure, resp.StatusCode)
	}
	return nil
}
