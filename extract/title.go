package extract

import (
	"path/filepath"
	"strings"
)

// titleScanLimit bounds how far into a document Title looks for a heading.
const titleScanLimit = 40

// Title derives a display title: the first top-level markdown heading when
// one appears near the top, otherwise the filename stem with separators
// spaced out.
func Title(text, filename string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > titleScanLimit {
		lines = lines[:titleScanLimit]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "# "); ok {
			if title := strings.TrimSpace(after); title != "" {
				return title
			}
		}
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	return strings.TrimSpace(stem)
}
