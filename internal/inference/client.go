// Package inference wraps the external recognition model behind a small
// client interface. The model itself is a remote collaborator; this package
// only knows how to call it and how to estimate what a call costs.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
)

// Request pairs one prompt with one image for batch inference.
type Request struct {
	Prompt string
	Image  domain.ImageRef
}

// Client defines the inference adapter consumed by the engine.
type Client interface {
	// Infer runs a single prompt+image call and returns the decoded text.
	Infer(ctx context.Context, prompt string, image domain.ImageRef) (string, error)

	// InferBatch runs a batch call. The returned slice is positional: the
	// i-th output corresponds to the i-th request.
	InferBatch(ctx context.Context, reqs []Request) ([]string, error)

	// EstimateCost returns the estimated accelerator memory cost in bytes
	// for an image of the given pixel dimensions. Monotonic in area.
	EstimateCost(width, height int) int64
}

// Cost model constants. The decoder activations dominate, and scale with
// the processed pixel count.
const (
	bytesPerPixel = 48
	baseCostBytes = 4 << 20
)

// HTTPConfig holds model server connection settings.
type HTTPConfig struct {
	Endpoint       string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPClient calls the model server over HTTP.
type HTTPClient struct {
	cfg    HTTPConfig
	http   *http.Client
	logger *observability.Logger
}

// NewHTTPClient creates a model server client.
func NewHTTPClient(cfg HTTPConfig, logger *observability.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithComponent("inference"),
	}
}

// generateRequest is the wire format for the model server's generate endpoint.
type generateRequest struct {
	Prompts []string `json:"prompts"`
	Images  []string `json:"images"` // base64-encoded
}

type generateResponse struct {
	Outputs []string `json:"outputs"`
	Error   string   `json:"error,omitempty"`
}

// Infer runs a single prompt+image call.
func (c *HTTPClient) Infer(ctx context.Context, prompt string, image domain.ImageRef) (string, error) {
	outputs, err := c.InferBatch(ctx, []Request{{Prompt: prompt, Image: image}})
	if err != nil {
		return "", err
	}
	return outputs[0], nil
}

// InferBatch runs a batch call against the model server.
func (c *HTTPClient) InferBatch(ctx context.Context, reqs []Request) ([]string, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	body := generateRequest{
		Prompts: make([]string, len(reqs)),
		Images:  make([]string, len(reqs)),
	}
	for i, r := range reqs {
		body.Prompts[i] = r.Prompt
		body.Images[i] = base64.StdEncoding.EncodeToString(r.Image.Data)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.ModelError("marshal generate request", err)
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.Endpoint+"/v1/generate", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.http.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.ModelError(
			fmt.Sprintf("model server returned HTTP %d: %s", resp.StatusCode, string(data)), nil)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.ModelError("decode generate response", err)
	}
	if out.Error != "" {
		return nil, domain.ModelError(out.Error, nil)
	}
	if len(out.Outputs) != len(reqs) {
		return nil, domain.ModelError(
			fmt.Sprintf("model server returned %d outputs for %d requests", len(out.Outputs), len(reqs)), nil)
	}

	c.logger.Debug().
		Int("batch_size", len(reqs)).
		Dur("latency", time.Since(start)).
		Msg("Batch inference completed")

	return out.Outputs, nil
}

// Ping checks that the model server is reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/health", nil)
	if err != nil {
		return domain.ModelError("build health request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ModelError("model server unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.ModelError(fmt.Sprintf("model server health returned HTTP %d", resp.StatusCode), nil)
	}
	return nil
}

// EstimateCost estimates accelerator memory cost for one request.
func (c *HTTPClient) EstimateCost(width, height int) int64 {
	if width <= 0 || height <= 0 {
		return baseCostBytes
	}
	return baseCostBytes + int64(width)*int64(height)*bytesPerPixel
}
