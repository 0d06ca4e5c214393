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


// Package ingestion orchestrates the document ingestion pipeline.
//
// One upload moves through a fixed sequence of stages: extraction, content
// hashing with a duplicate short-circuit, chunking, token-bounded batching,
// concurrent embedding, and a transactional bulk write to the vector store.
// Every point id is staged before the first write, so any failure past the
// dedup stage deletes everything staged for that document and a failed
// ingestion never leaves partial points behind.
//
// Zip archives fan out into their extractable entries with per-file failure
// isolation: one entry's failure is recorded in the aggregate result while
// sibling entries continue processing and keep their indexed points.
//
// Embedding batches of one document are dispatched concurrently up to the
// backend's concurrency ceiling, and their vectors are reassembled by chunk
// order before indexing, so chunk order is preserved end to end.
package ingestion
