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
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Upload constraints. Validation failures reject an upload before any
// pipeline work runs, so they can never produce partial points.
const (
	MaxFileSize     = 50 * 1024 * 1024  // 50MB
	MaxZipEntries   = 500
	MaxZipTotalSize = 200 * 1024 * 1024 // 200MB uncompressed
	// maxZipRatio is the uncompressed/compressed ratio above which an
	// archive is treated as a zip bomb.
	maxZipRatio = 100
)

// AllowedExtensions is the set of upload file types accepted for ingestion.
var AllowedExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true,
	".html": true, ".htm": true, ".pdf": true,
	".docx": true, ".xlsx": true, ".xls": true,
	".zip": true, ".rst": true, ".asciidoc": true, ".adoc": true,
}

// ValidateUpload validates an uploaded file before ingestion.
//
// Validation rules:
//   - Content must not be empty
//   - Content must not exceed MaxFileSize
//   - Extension must be in AllowedExtensions
//   - Zip archives must pass ValidateZipArchive
func ValidateUpload(content []byte, filename string) error {
	if len(content) == 0 {
		return NewStepError(StepValidation, filename, KindValidation, ErrEmptyDocument)
	}

	if len(content) > MaxFileSize {
		err := fmt.Errorf("%w: %.1fMB exceeds %dMB limit",
			ErrFileTooLarge, float64(len(content))/(1024*1024), MaxFileSize/(1024*1024))
		return NewStepError(StepValidation, filename, KindValidation, err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		err := fmt.Errorf("%w: %q", ErrDisallowedType, ext)
		return NewStepError(StepValidation, filename, KindValidation, err)
	}

	if ext == ".zip" {
		if err := ValidateZipArchive(content); err != nil {
			return NewStepError(StepValidation, filename, KindValidation, err)
		}
	}

	return nil
}

// ValidateZipArchive checks a zip archive for entry count, total uncompressed
// size, path traversal, and suspicious compression ratios.
func ValidateZipArchive(content []byte) error {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("%w: invalid zip format: %w", ErrUnsafeArchive, err)
	}

	if len(reader.File) > MaxZipEntries {
		return fmt.Errorf("%w: %d entries exceeds limit of %d", ErrUnsafeArchive, len(reader.File), MaxZipEntries)
	}

	var total uint64
	for _, f := range reader.File {
		name := f.Name
		if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
			return fmt.Errorf("%w: unsafe path %q", ErrUnsafeArchive, name)
		}
		total += f.UncompressedSize64
	}

	if total > MaxZipTotalSize {
		return fmt.Errorf("%w: uncompressed size %.1fMB exceeds %dMB limit",
			ErrUnsafeArchive, float64(total)/(1024*1024), MaxZipTotalSize/(1024*1024))
	}

	if len(content) > 0 && total/uint64(len(content)) > maxZipRatio {
		return fmt.Errorf("%w: suspicious compression ratio", ErrUnsafeArchive)
	}

	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeFilename strips path components and replaces unsafe characters so a
// client-supplied filename is safe to use as a storage key.
func SanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
