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


// Package ai provides the embedding abstractions used by the ingestion
// pipeline.
//
// The package defines the Embedder and SparseEncoder interfaces and the
// retrying Client that pairs them. Callers depend on these abstractions
// rather than concrete backends.
//
// # Implementation Packages
//
//   - ai/openai: local OpenAI-compatible servers (Ollama, LocalAI) via
//     langchaingo
//   - ai/vllm: remote embedding services speaking the /v1/embeddings
//     protocol, with HTTP status classification
//   - ai/sparse: the local lexical encoder for hybrid retrieval
//   - ai/mock: test doubles with call counting and scripted failures
//
// # Error Classification
//
// Remote providers fail in two distinct ways. Transient failures (timeouts,
// connection resets, 429, 5xx) are retried with exponential backoff up to a
// configured budget. Permanent failures (auth errors, malformed requests,
// other 4xx) surface immediately. The Client attributes every outcome to the
// originating batch with its retry count.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434/v1"),
//	    ai.WithModel("embeddinggemma"),
//	)
//	embedder, err := openai.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := ai.NewClient(embedder, sparse.NewEncoder(), cfg)
//	dense, lexical, err := client.EmbedBatch(ctx, texts)
package ai
