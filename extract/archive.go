package extract

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/poiesic/libris/core"
)

// Entry is one extractable file pulled out of an uploaded archive.
type Entry struct {
	Name    string
	Content []byte
}

// IsArchive reports whether the filename names a zip upload.
func IsArchive(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".zip"
}

// Expand fans a validated zip archive out into its extractable entries,
// preserving archive order. Directories, hidden files, and entries with no
// registered extractor are skipped; the archive must already have passed
// core.ValidateZipArchive.
func Expand(content []byte, filename string) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, core.NewStepError(core.StepExtraction, filename, core.KindExtraction, err)
	}

	var entries []Entry
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || isHiddenPath(f.Name) {
			continue
		}
		if !Extractable(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, core.NewStepError(core.StepExtraction, f.Name, core.KindExtraction, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, core.NewStepError(core.StepExtraction, f.Name, core.KindExtraction, err)
		}
		entries = append(entries, Entry{Name: f.Name, Content: data})
	}
	return entries, nil
}

// isHiddenPath reports whether any path segment starts with a dot or the
// macOS resource-fork prefix.
func isHiddenPath(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "__MACOSX") {
			return true
		}
	}
	return false
}
