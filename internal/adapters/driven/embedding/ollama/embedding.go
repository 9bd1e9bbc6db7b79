// Package ollama embeds policy chunks with a local Ollama server.
package ollama

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*Embedder)(nil)

const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "all-minilm"
	DefaultTimeout     = 30 * time.Second
	DefaultDimensions  = 384
	DefaultParallelism = 4

	// batchSize is the number of inputs per /api/embed call.
	batchSize = 32
)

// Config configures an Embedder. The zero value talks to a local server
// running all-minilm.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions is what the model must return. A mismatch is a
	// configuration error, since vectors of another width cannot share
	// a collection.
	Dimensions int

	// Parallelism bounds concurrent /api/embed calls in EmbedBatch.
	Parallelism int
}

// Embedder calls Ollama's /api/embed endpoint.
type Embedder struct {
	client      *http.Client
	baseURL     string
	model       string
	dims        int
	parallelism int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type showRequest struct {
	Model string `json:"model"`
}

// New applies defaults to cfg.
func New(cfg Config) *Embedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Embedder{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		model:       cmp.Or(cfg.Model, DefaultModel),
		dims:        cmp.Or(cfg.Dimensions, DefaultDimensions),
		parallelism: parallelism,
	}
}

// Embed returns the vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into batches and embeds them concurrently,
// preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed inputs %d-%d: %w", start, end-1, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	if err := e.post(ctx, "/api/embed", embedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama: %d vectors for %d inputs", domain.ErrBackendUnavailable, len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, raw := range resp.Embeddings {
		if len(raw) != e.dims {
			return nil, fmt.Errorf("%w: ollama: %s returns %d dimensions, configured %d",
				domain.ErrInvalidConfig, e.model, len(raw), e.dims)
		}
		vec := make([]float32, len(raw))
		for j, v := range raw {
			vec[j] = float32(v)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Ping asks the server to describe the model, so an unpulled model fails
// here rather than on the first ingest.
func (e *Embedder) Ping(ctx context.Context) error {
	return e.post(ctx, "/api/show", showRequest{Model: e.model}, nil)
}

func (e *Embedder) Dimensions() int   { return e.dims }
func (e *Embedder) ModelName() string { return e.model }
func (e *Embedder) Close() error      { return nil }

func (e *Embedder) post(ctx context.Context, path string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ollama: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: ollama: decode response: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// statusError maps throttling and server faults to ErrBackendUnavailable;
// anything else (usually a model that was never pulled) is configuration.
func statusError(code int, body []byte) error {
	kind := domain.ErrInvalidConfig
	if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		kind = domain.ErrBackendUnavailable
	}
	return fmt.Errorf("%w: ollama: status %d: %s", kind, code, bytes.TrimSpace(body))
}
