// Package extract turns uploaded bytes into plain text for chunking.
//
// Extraction is format-dispatched on file extension. Markdown and other
// plain-text formats pass through unchanged so chunk offsets map back to the
// source; HTML is reduced to its text content; PDF text is pulled per page.
// Office formats are accepted at upload but have no extractor here.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/libris/core"
)

// ErrUnsupportedFormat indicates an upload type with no registered extractor.
var ErrUnsupportedFormat = errors.New("no extractor for file type")

// Func extracts plain text from raw content.
type Func func(content []byte, filename string) (string, error)

var extractors = map[string]Func{
	".md":       extractPlain,
	".markdown": extractPlain,
	".txt":      extractPlain,
	".rst":      extractPlain,
	".asciidoc": extractPlain,
	".adoc":     extractPlain,
	".html":     extractHTML,
	".htm":      extractHTML,
	".pdf":      extractPDF,
}

// Register installs an extractor for a file extension, replacing any existing
// one. The extension must include the leading dot. Not safe for concurrent
// use with Text; register at startup.
func Register(ext string, fn Func) {
	extractors[strings.ToLower(ext)] = fn
}

// Extractable reports whether a registered extractor exists for the filename.
func Extractable(filename string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Text extracts plain text from an uploaded file. Failures are wrapped as
// extraction step errors so the pipeline can attribute them; an empty
// extraction result is a failure, never silently returned.
func Text(content []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := extractors[ext]
	if !ok {
		return "", core.NewStepError(core.StepExtraction, filename, core.KindExtraction,
			fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext))
	}

	text, err := fn(content, filename)
	if err != nil {
		return "", core.NewStepError(core.StepExtraction, filename, core.KindExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", core.NewStepError(core.StepExtraction, filename, core.KindExtraction,
			fmt.Errorf("extracted no text from %s", filename))
	}
	return text, nil
}

// DocType reports the stored document type for a filename, used in point
// payloads.
func DocType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	case ".pdf":
		return "pdf"
	case ".rst", ".asciidoc", ".adoc":
		return "markup"
	default:
		return "text"
	}
}

func extractPlain(content []byte, _ string) (string, error) {
	return string(content), nil
}
