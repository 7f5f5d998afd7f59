// Package classifier identifies the entity shown in a spawn image.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pokeball/internal/domain"
)

// Classifier maps image bytes to a best-guess label and confidence in [0, 1].
type Classifier interface {
	Classify(ctx context.Context, image []byte) (domain.Classification, error)
}

// HTTPClassifier calls an external inference service over HTTP.
type HTTPClassifier struct {
	endpoint string
	httpc    *http.Client
}

// NewHTTPClassifier creates a classifier client for the given endpoint.
// A zero timeout defaults to 10 seconds.
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// classifyResponse is the inference service reply shape.
type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify posts the image and decodes the verdict.
func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) (domain.Classification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Classification{}, fmt.Errorf("classify status %d: %s", resp.StatusCode, data)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classify response: %w", err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return domain.Classification{}, fmt.Errorf("classifier returned confidence %v out of range", out.Confidence)
	}

	return domain.Classification{Label: out.Label, Confidence: out.Confidence}, nil
}

// Verify interface compliance at compile time.
var _ Classifier = (*HTTPClassifier)(nil)
