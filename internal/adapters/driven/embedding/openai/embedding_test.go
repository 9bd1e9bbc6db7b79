package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	svc, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())

	svc, err = New(Config{APIKey: "sk-test", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, svc.Dimensions())
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Dimensions)
		assert.Equal(t, "float", req.EncodingFormat)

		// Respond out of order to exercise index ordering.
		var resp embedResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embedItem{Embedding: []float64{float64(len(req.Input[i])), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc, err := New(Config{APIKey: "sk-test", BaseURL: server.URL, Dimensions: 2})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {3, 1}}, vecs)

	vec, err := svc.Embed(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1}, vec)

	none, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
		want    error
	}{
		{"unauthorised", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, domain.ErrInvalidConfig},
		{"overloaded", http.StatusServiceUnavailable, `{}`, domain.ErrBackendUnavailable},
		{"missing vectors", http.StatusOK, `{"data":[]}`, domain.ErrBackendUnavailable},
		{"garbage", http.StatusOK, `not json`, domain.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			svc, err := New(Config{APIKey: "sk-test", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = svc.Embed(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_DimensionsOnlySentForV3Models(t *testing.T) {
	var got embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(embedResponse{Data: []embedItem{{Embedding: []float64{1}, Index: 0}}})
	}))
	defer server.Close()

	svc, err := New(Config{APIKey: "sk-test", BaseURL: server.URL + "/", Model: "text-embedding-ada-002", Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, svc.Dimensions())

	_, err = svc.Embed(context.Background(), "overdraft fee")
	require.NoError(t, err)
	assert.Zero(t, got.Dimensions)
	assert.Equal(t, "text-embedding-ada-002", got.Model)
}

func TestEmbedder_Ping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"model exists", http.StatusOK, nil},
		{"unknown model", http.StatusNotFound, domain.ErrInvalidConfig},
		{"rate limited", http.StatusTooManyRequests, domain.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/models/"+DefaultModel, r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			svc, err := New(Config{APIKey: "sk-test", BaseURL: server.URL})
			require.NoError(t, err)

			err = svc.Ping(context.Background())
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
