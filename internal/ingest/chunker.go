package ingest

import (
	"strings"
	"unicode"
)

// DefaultMaxChunks caps runaway inputs. A source that would produce more
// chunks than this is truncated rather than rejected.
const DefaultMaxChunks = 2000

// NormalizeWhitespace collapses every run of whitespace (spaces, tabs,
// newlines) into a single space and trims the ends. Chunk offsets are always
// computed against the normalized text.
func NormalizeWhitespace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// ChunkText splits normalized text into fixed-size character windows that
// overlap by overlapChars. Every chunk except possibly the last is exactly
// maxChars long, the final chunk always ends at the end of the text, and
// concatenating the chunks with overlaps removed reproduces the input.
func ChunkText(text string, maxChars, overlapChars int) []string {
	return ChunkTextN(text, maxChars, overlapChars, DefaultMaxChunks)
}

// ChunkTextN is ChunkText with an explicit chunk-count cap.
func ChunkTextN(text string, maxChars, overlapChars, maxChunks int) []string {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	normalized := NormalizeWhitespace(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= maxChars {
		return []string{normalized}
	}

	step := maxChars - overlapChars
	if step < 1 {
		step = 1
	}

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
		if len(chunks) >= maxChunks {
			break
		}
	}
	return chunks
}
