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


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrEmptyDocument indicates an upload with no content.
	ErrEmptyDocument = errors.New("empty file uploads are not allowed")

	// ErrFileTooLarge indicates an upload exceeding the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrDisallowedType indicates a file extension outside the allowed set.
	ErrDisallowedType = errors.New("file type not allowed")

	// ErrLibraryRequired indicates a missing library name.
	ErrLibraryRequired = errors.New("library name required")

	// ErrUnsafeArchive indicates a zip archive that failed safety validation.
	ErrUnsafeArchive = errors.New("archive failed validation")
)

// Step identifies the pipeline stage a failure is attributed to.
type Step string

const (
	StepValidation Step = "validation"
	StepExtraction Step = "extraction"
	StepChunking   Step = "chunking"
	StepEmbedding  Step = "embedding"
	StepIndexing   Step = "indexing"
)

// Error kinds carried by StepError. Kinds are machine-readable so job records
// and synchronous responses surface the same taxonomy.
const (
	KindValidation         = "validation"
	KindExtraction         = "extraction"
	KindTransient          = "transient"
	KindTransientExhausted = "transient/exhausted"
	KindPermanent          = "permanent"
	KindIndexing           = "indexing"
	KindTimeout            = "timeout"
)

// StepError wraps a pipeline failure with structured context: the processing
// step, the file being processed, a machine-readable kind, and the retry
// count when retries were involved. Nothing in the pipeline fails without one.
type StepError struct {
	Step    Step
	File    string
	Kind    string
	Retries int
	Err     error
}

func (e *StepError) Error() string {
	if e.Retries > 0 {
		return fmt.Sprintf("%s failed for %s (%s, %d retries): %v", e.Step, e.File, e.Kind, e.Retries, e.Err)
	}
	return fmt.Sprintf("%s failed for %s (%s): %v", e.Step, e.File, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError builds a StepError for the given stage and file.
func NewStepError(step Step, file, kind string, err error) *StepError {
	return &StepError{Step: step, File: file, Kind: kind, Err: err}
}

// StepErrorFrom extracts a StepError from an error chain, or nil.
func StepErrorFrom(err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
