// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package vllm implements the remote embedding backend for services speaking
// the /v1/embeddings protocol (vLLM, TEI, hosted providers). Unlike the
// local backend it surfaces HTTP status codes so transient failures (429,
// 5xx) can be retried while permanent ones (4xx) fail fast.
package vllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/poiesic/libris/ai"
)

// requestTimeout bounds a single embedding HTTP call. Retries are handled a
// layer up.
const requestTimeout = 120 * time.Second

// Embedder implements ai.Embedder against a remote embedding service.
type Embedder struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewEmbedder creates a remote embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{
		baseURL: config.Host,
		model:   config.Model,
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  slog.Default().With("component", "vllm-embedder"),
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple texts in one call.
// Provider failures come back as *ai.ProviderError carrying the HTTP status.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &ai.ProviderError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return nil, &ai.ProviderError{Message: err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(payload)
		var parsed embeddingResponse
		if json.Unmarshal(payload, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		e.logger.Warn("embedding request failed", "status", resp.StatusCode, "count", len(texts))
		return nil, &ai.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &ai.ProviderError{StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
	}

	// The protocol does not promise response order; reassemble by index.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	if len(parsed.Data) != len(texts) {
		return nil, &ai.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)),
		}
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
