// Package chunker splits extracted document text into ordered, overlapping,
// sentence-aligned chunks sized for embedding.
//
// Sizes and offsets are counted in characters (Unicode code points), not bytes.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strategy names a fixed chunk size / overlap configuration.
type Strategy string

const (
	StrategySmall     Strategy = "small"
	StrategyRecursive Strategy = "recursive"

	// DefaultStrategy is used when the caller does not pick one.
	DefaultStrategy = StrategyRecursive
)

// Config holds the window size and overlap of a strategy, in characters.
// Overlap must be smaller than ChunkSize and ChunkSize must be positive.
type Config struct {
	ChunkSize int
	Overlap   int
}

var configs = map[Strategy]Config{
	StrategySmall:     {ChunkSize: 300, Overlap: 50},
	StrategyRecursive: {ChunkSize: 800, Overlap: 100},
}

// sentenceBoundary matches terminal punctuation, an optional closing quote and
// trailing whitespace, or a run of newlines. The whitespace class is the set
// isSpace accepts.
var sentenceBoundary = regexp.MustCompile(`[.!?]["']?[\s\v\p{Z}\x{85}\x{1c}-\x{1f}]+|\n+`)

// isSpace also counts the ASCII file, group, record and unit separators
// (U+001C to U+001F) as whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func trim(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// ParseStrategy maps any strategy name onto the closed set. Only "small" is
// distinguished; everything else selects the default.
func ParseStrategy(name string) Strategy {
	if Strategy(name) == StrategySmall {
		return StrategySmall
	}
	return DefaultStrategy
}

// ConfigFor returns the configuration for the named strategy.
func ConfigFor(name string) Config {
	return configs[ParseStrategy(name)]
}

// Chunk splits text according to the named strategy. It never fails: empty or
// whitespace-only text yields an empty slice.
func Chunk(text string, strategy string) []string {
	return split(text, ConfigFor(strategy))
}

func split(text string, cfg Config) []string {
	text = trim(text)
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	n := len(runes)
	if n <= cfg.ChunkSize {
		return []string{text}
	}

	minAdvance := max(1, cfg.ChunkSize/10)
	chunks := make([]string, 0, n/max(1, cfg.ChunkSize-cfg.Overlap)+1)

	for start := 0; start < n; {
		end := min(start+cfg.ChunkSize, n)

		if end == n {
			if chunk := trim(string(runes[start:n])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		splitPos, ok := lastBoundary(runes, start, end)
		if !ok || splitPos-start <= cfg.Overlap {
			splitPos = end
		}

		if chunk := trim(string(runes[start:splitPos])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := max(splitPos-cfg.Overlap, start+minAdvance)
		if next <= start {
			next = start + minAdvance
		}
		start = next
	}

	return chunks
}

// lastBoundary returns the end offset (in runes, absolute) of the last sentence
// boundary inside runes[start:end].
func lastBoundary(runes []rune, start, end int) (int, bool) {
	window := string(runes[start:end])
	matches := sentenceBoundary.FindAllStringIndex(window, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1][1]
	return start + utf8.RuneCountInString(window[:last]), true
}
