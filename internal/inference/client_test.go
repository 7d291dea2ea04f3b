package inference

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrovista/agrigate/internal/config"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()

	return NewClient(zap.NewNop(), config.Config{
		Inference: config.InferenceConfig{
			BaseURL:     baseURL,
			AnalyzePath: "/analyze-csv",
			Timeout:     timeout,
		},
	})
}

func TestForwardStripsConnectionHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, 2*time.Second)

	header := http.Header{}
	header.Set("Connection", "keep-alive")
	header.Set("Accept-Encoding", "gzip")
	header.Set("Content-Length", "42")
	header.Set("X-Custom-Trace", "abc123")

	resp, err := client.Forward(context.Background(), http.MethodGet, "/status", header, nil, nil)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	for _, dropped := range []string{"Connection", "Accept-Encoding", "Content-Length"} {
		if got.Get(dropped) != "" {
			t.Fatalf("expected %s header to be stripped, got %q", dropped, got.Get(dropped))
		}
	}
	if got.Get("X-Custom-Trace") != "abc123" {
		t.Fatal("expected custom header to pass through")
	}
}

func TestForwardDefaultsJSONContentType(t *testing.T) {
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, 2*time.Second)

	if _, err := client.Forward(context.Background(), http.MethodPost, "/train", nil, []byte(`{"x":1}`), nil); err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("expected default json content type, got %q", contentType)
	}
}

func TestForwardRelaysUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":"bad rows"}`)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, 2*time.Second)

	resp, err := client.Forward(context.Background(), http.MethodPost, "/analyze-csv", nil, nil, nil)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if raw, ok := resp.JSON(); !ok || !bytes.Contains(raw, []byte("bad rows")) {
		t.Fatalf("expected json body relayed, got %q", resp.Body)
	}
}

func TestAnalyzeCSVSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-csv" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "field.csv" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		payload, _ := io.ReadAll(file)
		if !strings.Contains(string(payload), "ph,rainfall") {
			t.Errorf("unexpected payload %q", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"predictions": [{"rice": 0.91, "maize": 0.09}],
			"metadata": {"samples_processed": 1, "features_used": 7, "model_type": "random_forest"}
		}`)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, 2*time.Second)

	analysis, err := client.AnalyzeCSV(context.Background(), "field.csv", strings.NewReader("ph,rainfall\n6.5,202\n"))
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(analysis.Predictions) != 1 || analysis.Predictions[0]["rice"] != 0.91 {
		t.Fatalf("unexpected predictions: %+v", analysis.Predictions)
	}
	if analysis.Metadata.SamplesProcessed != 1 || analysis.Metadata.ModelType != "random_forest" {
		t.Fatalf("unexpected metadata: %+v", analysis.Metadata)
	}
}

func TestAnalyzeCSVUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":"CSV is missing required columns"}`)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, 2*time.Second)

	_, err := client.AnalyzeCSV(context.Background(), "field.csv", strings.NewReader("a,b\n1,2\n"))
	var upstream *HTTPError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if upstream.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", upstream.StatusCode)
	}
	if !upstream.IsJSON {
		t.Fatal("expected json error body")
	}
}

func TestTransportErrorsAreClassified(t *testing.T) {
	// Closed port.
	client := newTestClient(t, "http://127.0.0.1:1", time.Second)
	_, err := client.AnalyzeCSV(context.Background(), "field.csv", strings.NewReader("a\n1\n"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for refused connection, got %v", err)
	}

	// Upstream slower than the client timeout.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	client = newTestClient(t, slow.URL, 50*time.Millisecond)
	_, err = client.AnalyzeCSV(context.Background(), "field.csv", strings.NewReader("a\n1\n"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for slow upstream, got %v", err)
	}
}
