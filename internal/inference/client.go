package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agrovista/agrigate/internal/config"
	"go.uber.org/zap"
)

// droppedHeaders are connection-management headers never forwarded upstream.
var droppedHeaders = map[string]struct{}{
	"host":            {},
	"connection":      {},
	"accept-encoding": {},
	"content-length":  {},
}

// UpstreamResponse is a relayed inference service response.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// JSON reports whether the body parses as a JSON document.
func (r *UpstreamResponse) JSON() (json.RawMessage, bool) {
	var raw json.RawMessage
	if err := json.Unmarshal(r.Body, &raw); err != nil {
		return nil, false
	}
	return raw, true
}

// Analysis is the inference service's answer to a CSV upload.
type Analysis struct {
	Predictions []map[string]float64 `json:"predictions"`
	Metadata    struct {
		SamplesProcessed int    `json:"samples_processed"`
		FeaturesUsed     int    `json:"features_used"`
		ModelType        string `json:"model_type"`
	} `json:"metadata"`
}

// Client forwards authenticated requests to the crop inference microservice.
type Client struct {
	log         *zap.Logger
	baseURL     string
	analyzePath string
	httpClient  *http.Client
}

func NewClient(log *zap.Logger, cfg config.Config) *Client {
	return &Client{
		log:         log.Named("inference.client"),
		baseURL:     cfg.Inference.BaseURL,
		analyzePath: cfg.Inference.AnalyzePath,
		httpClient: &http.Client{
			Timeout: cfg.Inference.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Forward relays method/path/body to the inference service, stripping
// connection-management headers and defaulting the content type to JSON when a
// body is present. Transport failures are classified; any upstream status,
// success or not, is relayed as an UpstreamResponse.
func (c *Client) Forward(ctx context.Context, method, path string, header http.Header, body []byte, query url.Values) (*UpstreamResponse, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, reader)
	if err != nil {
		return nil, err
	}

	for key, values := range header {
		if _, drop := droppedHeaders[strings.ToLower(key)]; drop {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Content-Type") == "" && len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

// AnalyzeCSV uploads a CSV file to the analyze endpoint and decodes the result.
func (c *Client) AnalyzeCSV(ctx context.Context, filename string, file io.Reader) (*Analysis, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.analyzePath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, isJSON := (&UpstreamResponse{Body: resp.Body}).JSON()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body, IsJSON: isJSON}
	}

	var analysis Analysis
	if err := json.Unmarshal(resp.Body, &analysis); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return &analysis, nil
}

func (c *Client) do(req *http.Request) (*UpstreamResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.log.Debug("inference call",
		zap.String("url", req.URL.Path),
		zap.Int("status", resp.StatusCode),
	)

	return &UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
