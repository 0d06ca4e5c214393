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


// Package chunk splits extracted document text into overlapping,
// code-block-aware segments and groups them into token-bounded embedding
// batches.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/libris/core"
)

// Defaults for markdown-oriented chunking.
const (
	DefaultTargetSize    = 800
	DefaultOverlap       = 80
	DefaultMaxChunkChars = 4000
)

// Splitter divides text into ordered chunks. Fenced code blocks are never
// split across a chunk boundary; oversized code blocks are divided on line
// boundaries instead. Splitting is deterministic: the same input always
// produces the same chunk sequence and the same warnings.
type Splitter struct {
	targetSize    int
	overlap       int
	maxChunkChars int
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter) error

// WithTargetSize sets the character size at which a running chunk is closed.
func WithTargetSize(n int) SplitterOption {
	return func(s *Splitter) error {
		if n <= 0 {
			return fmt.Errorf("target size must be positive, got %d", n)
		}
		s.targetSize = n
		return nil
	}
}

// WithOverlap sets the character count carried from the end of one chunk into
// the start of the next.
func WithOverlap(n int) SplitterOption {
	return func(s *Splitter) error {
		if n < 0 {
			return fmt.Errorf("overlap must be non-negative, got %d", n)
		}
		s.overlap = n
		return nil
	}
}

// WithMaxChunkChars sets the hard character ceiling. Chunks exceeding it are
// truncated and reported.
func WithMaxChunkChars(n int) SplitterOption {
	return func(s *Splitter) error {
		if n <= 0 {
			return fmt.Errorf("chunk ceiling must be positive, got %d", n)
		}
		s.maxChunkChars = n
		return nil
	}
}

// NewSplitter creates a Splitter with the given options.
func NewSplitter(opts ...SplitterOption) (*Splitter, error) {
	s := &Splitter{
		targetSize:    DefaultTargetSize,
		overlap:       DefaultOverlap,
		maxChunkChars: DefaultMaxChunkChars,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.overlap >= s.targetSize {
		return nil, fmt.Errorf("overlap %d must be smaller than target size %d", s.overlap, s.targetSize)
	}
	return s, nil
}

// unit is a non-splittable run of text: a paragraph, a heading with its
// trailing separator, or an entire fenced code block. Units are contiguous
// and cover the input exactly.
type unit struct {
	start   int
	end     int
	code    bool
	heading string
}

func (u unit) size() int { return u.end - u.start }

// Split chunks text and reports any character-ceiling truncations.
// Each chunk's Text spans [Start-Overlap, End) of the input, so concatenating
// Text[Overlap:] over all chunks reproduces the input when nothing was
// truncated.
func (s *Splitter) Split(text string) ([]*core.Chunk, []core.TruncationWarning) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	units := parseUnits(text)

	var (
		chunks   []*core.Chunk
		warnings []core.TruncationWarning
		section  string // heading in effect at the cursor
		open     string // heading in effect at the open chunk's start
		start    = -1   // start offset of the open chunk, -1 when none
		end      int
	)

	closeChunk := func() {
		if start < 0 {
			return
		}
		chunks = append(chunks, s.buildChunk(text, len(chunks), start, end, open))
		start = -1
	}

	for _, u := range units {
		if u.heading != "" {
			section = u.heading
		}

		if u.code && u.size() > s.maxChunkChars {
			closeChunk()
			for _, piece := range s.splitCodeUnit(text, u) {
				chunks = append(chunks, s.buildChunk(text, len(chunks), piece.start, piece.end, section))
			}
			continue
		}

		// Close before a unit that would push past the ceiling, so merges
		// never force a truncation that separate chunks would avoid. The
		// overlap budget is reserved because buildChunk prepends it.
		if start >= 0 && (end-start)+u.size() > s.maxChunkChars-s.overlap {
			closeChunk()
		}
		if start < 0 {
			start, open = u.start, section
		}
		end = u.end
		if end-start >= s.targetSize {
			closeChunk()
		}
	}
	closeChunk()

	for _, c := range chunks {
		if c.Truncated {
			warnings = append(warnings, core.TruncationWarning{
				ChunkIndex:    c.Index,
				OriginalSize:  (c.End - c.Start) + c.Overlap,
				TruncatedSize: len(c.Text),
				Kind:          core.TruncationCharacter,
				SectionTitle:  c.SectionTitle,
			})
		}
	}
	return chunks, warnings
}

// buildChunk materializes a chunk over [start, end), prefixed by up to
// s.overlap bytes carried from the preceding text, and applies the character
// ceiling.
func (s *Splitter) buildChunk(text string, index, start, end int, section string) *core.Chunk {
	ov := s.overlap
	if index == 0 || ov > start {
		ov = 0
	}
	if ov > 0 {
		ov = min(ov, start)
		// Shrink the carried prefix before the ceiling can cut unique bytes:
		// overlap is redundant with the previous chunk, the tail is not.
		if (end-start)+ov > s.maxChunkChars {
			ov = max(0, s.maxChunkChars-(end-start))
		}
		for ov > 0 && !utf8.RuneStart(text[start-ov]) {
			ov--
		}
	}

	c := &core.Chunk{
		Index:        index,
		Text:         text[start-ov : end],
		Start:        start,
		End:          end,
		Overlap:      ov,
		SectionTitle: section,
	}
	if len(c.Text) > s.maxChunkChars {
		cut := s.maxChunkChars
		for cut > 0 && !utf8.RuneStart(c.Text[cut]) {
			cut--
		}
		c.Text = c.Text[:cut]
		c.Truncated = true
	}
	return c
}

// splitCodeUnit divides an oversized fenced block on line boundaries into
// pieces that fit under the ceiling once the overlap prefix is added.
func (s *Splitter) splitCodeUnit(text string, u unit) []unit {
	budget := s.maxChunkChars - s.overlap
	var pieces []unit
	pieceStart := u.start
	cursor := u.start
	for cursor < u.end {
		lineEnd := cursor
		if i := strings.IndexByte(text[cursor:u.end], '\n'); i >= 0 {
			lineEnd = cursor + i + 1
		} else {
			lineEnd = u.end
		}
		if lineEnd-pieceStart > budget && cursor > pieceStart {
			pieces = append(pieces, unit{start: pieceStart, end: cursor, code: true})
			pieceStart = cursor
		}
		cursor = lineEnd
	}
	pieces = append(pieces, unit{start: pieceStart, end: u.end, code: true})
	return pieces
}

// parseUnits scans text line by line into contiguous units. Fenced code
// blocks (``` or ~~~) become single units; headings up to level four start a
// new unit and carry their title; blank lines close the paragraph they
// terminate.
func parseUnits(text string) []unit {
	var (
		units     []unit
		cur       = unit{start: 0, end: 0}
		haveBody  bool // cur contains non-blank text
		inFence   bool
		fenceMark string
	)

	flush := func(end int) {
		if end > cur.start {
			cur.end = end
			units = append(units, cur)
		}
		cur = unit{start: end, end: end}
		haveBody = false
	}

	pos := 0
	for pos < len(text) {
		lineEnd := len(text)
		if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
			lineEnd = pos + i + 1
		}
		line := text[pos:lineEnd]
		trimmed := strings.TrimSpace(line)

		switch {
		case inFence:
			if strings.HasPrefix(trimmed, fenceMark) {
				inFence = false
				cur.end = lineEnd
				flush(lineEnd)
			}

		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			if haveBody {
				flush(pos)
			}
			inFence = true
			fenceMark = trimmed[:3]
			cur.code = true
			haveBody = true

		case trimmed == "":
			if haveBody {
				flush(lineEnd)
			}

		case isHeading(trimmed):
			if haveBody {
				flush(pos)
			}
			cur.heading = headingTitle(trimmed)
			haveBody = true

		default:
			haveBody = true
		}
		pos = lineEnd
	}
	flush(len(text))
	return units
}

// isHeading reports whether a trimmed line is a markdown heading of level
// one through four.
func isHeading(line string) bool {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n >= 1 && n <= 4 && n < len(line) && line[n] == ' '
}

func headingTitle(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}
