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


// Package storage defines the persistence interfaces the ingestion pipeline
// depends on, plus the serialization helpers shared by backends.
//
// Three contracts live here:
//
//   - PointStore: the vector store holding chunk points with dense and
//     sparse vectors (implemented by storage/qdrant)
//   - JobStore: durable background-job records (implemented by
//     storage/qdrant, in a separate collection)
//   - DocumentArchive: raw uploaded bytes and metadata (implemented by
//     storage/badger)
//
// Callers depend on these interfaces rather than concrete backends, which
// keeps the pipeline testable against in-memory fakes.
package storage
