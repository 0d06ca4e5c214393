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


// Package token counts and truncates text by model token budget.
//
// The Counter wraps a tiktoken encoding as a conservative proxy for most
// embedding models. When the encoding cannot be loaded (offline environments,
// missing cache), it degrades to a word-count heuristic so the pipeline stays
// functional without a hard tokenizer dependency.
package token

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used for counting.
const DefaultEncoding = "cl100k_base"

// fallbackTokensPerWord approximates tokens from words when no encoding is
// available (tokens ~= words * 1.3).
const fallbackTokensPerWord = 1.3

// fallbackCharsPerToken approximates characters from tokens for heuristic
// truncation.
const fallbackCharsPerToken = 2.5

// Counter counts and truncates text by tokens. It is safe for concurrent use;
// the underlying encoding is initialized once on first use.
type Counter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	logger   *slog.Logger
}

// NewCounter creates a Counter using the given tiktoken encoding name.
// An empty name selects DefaultEncoding.
func NewCounter(encoding string, logger *slog.Logger) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{
		encoding: encoding,
		logger:   logger.With("component", "token-counter"),
	}
}

// init loads the encoding lazily. A load failure is logged once and the
// counter falls back to the word-count heuristic for its lifetime.
func (c *Counter) init() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("could not load tokenizer, using word-count fallback", "encoding", c.encoding, "err", err)
			return
		}
		c.enc = enc
	})
}

// CountTokens returns the token count of text, or a word-count estimate when
// no encoding is available.
func (c *Counter) CountTokens(text string) int {
	c.init()
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return int(float64(len(strings.Fields(text))) * fallbackTokensPerWord)
}

// TruncateToTokens truncates text to at most limit tokens. The second return
// reports whether truncation occurred.
func (c *Counter) TruncateToTokens(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", text != ""
	}

	c.init()
	if c.enc != nil {
		ids := c.enc.Encode(text, nil, nil)
		if len(ids) <= limit {
			return text, false
		}
		return c.enc.Decode(ids[:limit]), true
	}

	// Heuristic truncation on the character boundary closest to the budget,
	// backed up to a rune boundary so the cut never emits invalid UTF-8.
	charLimit := int(float64(limit) * fallbackCharsPerToken)
	if len(text) <= charLimit {
		return text, false
	}
	for charLimit > 0 && !utf8.RuneStart(text[charLimit]) {
		charLimit--
	}
	return text[:charLimit], true
}
