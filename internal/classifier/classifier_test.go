package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClassifier_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "image-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"label":      "Pikachu",
			"confidence": 0.92,
		})
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 0)
	got, err := c.Classify(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Label != "Pikachu" || got.Confidence != 0.92 {
		t.Errorf("unexpected classification: %+v", got)
	}
}

func TestHTTPClassifier_BadConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"label": "x", "confidence": 1.7})
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 0)
	if _, err := c.Classify(context.Background(), []byte("img")); err == nil {
		t.Error("expected error for out-of-range confidence")
	}
}

func TestHTTPClassifier_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 0)
	if _, err := c.Classify(context.Background(), []byte("img")); err == nil {
		t.Error("expected error for 503 response")
	}
}
