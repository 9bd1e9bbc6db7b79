// Package openai embeds policy chunks through an OpenAI-compatible
// /embeddings endpoint (OpenAI, Azure OpenAI, vLLM, LiteLLM).
package openai

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*Embedder)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// fallbackDimensions applies to models missing from the domain table.
	fallbackDimensions = 1536

	// maxInputs is the largest input list sent in one request.
	maxInputs = 256

	// maxErrorBody bounds how much of a failed response is quoted.
	maxErrorBody = 4096
)

// Config configures an Embedder. Only APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions shortens text-embedding-3 vectors server side. Other
	// models ignore it and report their native size.
	Dimensions int
}

// Embedder calls the embeddings API.
type Embedder struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	model    string
	dims     int
	sendDims bool
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedItem struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Data  []embedItem `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// New validates cfg and applies defaults.
func New(cfg Config) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai embedder needs an API key", domain.ErrInvalidConfig)
	}
	e := &Embedder{
		baseURL: strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		apiKey:  cfg.APIKey,
		model:   cmp.Or(cfg.Model, DefaultModel),
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e.client = &http.Client{Timeout: timeout}

	e.sendDims = strings.HasPrefix(e.model, "text-embedding-3-") && cfg.Dimensions > 0
	switch {
	case cfg.Dimensions > 0:
		e.dims = cfg.Dimensions
	case domain.EmbeddingDimensions()[e.model] > 0:
		e.dims = domain.EmbeddingDimensions()[e.model]
	default:
		e.dims = fallbackDimensions
	}
	return e, nil
}

// Embed returns the vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text, in input order. Long inputs are
// split across several requests.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxInputs {
		part := texts[start:min(start+maxInputs, len(texts))]
		vecs, err := e.embed(ctx, part)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := embedRequest{Model: e.model, Input: texts, EncodingFormat: "float"}
	if e.sendDims {
		req.Dimensions = e.dims
	}

	var resp embedResponse
	if err := e.do(ctx, http.MethodPost, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: openai: %s", domain.ErrBackendUnavailable, resp.Error.Message)
	}

	// The API may return items out of order; Index is authoritative.
	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai: index %d out of range", domain.ErrBackendUnavailable, item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vecs[item.Index] = vec
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("%w: openai: no vector for input %d", domain.ErrBackendUnavailable, i)
		}
	}
	return vecs, nil
}

// Ping looks up the configured model, which checks the key and the model
// name without spending tokens.
func (e *Embedder) Ping(ctx context.Context) error {
	return e.do(ctx, http.MethodGet, "/models/"+url.PathEscape(e.model), nil, nil)
}

func (e *Embedder) Dimensions() int   { return e.dims }
func (e *Embedder) ModelName() string { return e.model }
func (e *Embedder) Close() error      { return nil }

// do sends payload (when non-nil) as JSON and decodes a 200 body into out
// (when non-nil).
func (e *Embedder) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("openai: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: openai: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: openai: decode response: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// statusError maps throttling and server faults to ErrBackendUnavailable
// and every other rejection (bad key, unknown model) to ErrInvalidConfig.
func statusError(code int, body []byte) error {
	kind := domain.ErrInvalidConfig
	if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		kind = domain.ErrBackendUnavailable
	}
	return fmt.Errorf("%w: openai: status %d: %s", kind, code, bytes.TrimSpace(body))
}

