package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("a\t b\n\n  c"))
	assert.Equal(t, "hello world", NormalizeWhitespace("  hello   world  "))
	assert.Equal(t, "", NormalizeWhitespace(" \t\n "))
	assert.Equal(t, "unchanged", NormalizeWhitespace("unchanged"))
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("short text", 1200, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", 1200, 100))
	assert.Empty(t, ChunkText("   \n\t  ", 1200, 100))
}

func TestChunkTextWindowsAndOverlap(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := ChunkText(text, 1200, 100)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1200)
	assert.Len(t, chunks[1], 1200)
	assert.Len(t, chunks[2], 300)

	// Each chunk starts overlap chars before the previous one ended.
	total := 0
	for i, c := range chunks {
		if i > 0 {
			total -= 100
		}
		total += len(c)
	}
	assert.Equal(t, 2500, total)
}

func TestChunkTextCoversWholeInput(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("word")
		b.WriteByte(' ')
	}
	normalized := NormalizeWhitespace(b.String())
	chunks := ChunkText(b.String(), 300, 40)

	require.NotEmpty(t, chunks)
	// Reconstruct by dropping the overlapping prefix of each later chunk.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		rebuilt.WriteString(c[40:])
	}
	assert.Equal(t, normalized, rebuilt.String())
	assert.True(t, strings.HasSuffix(normalized, chunks[len(chunks)-1]))
}

func TestChunkTextDegenerateOverlap(t *testing.T) {
	// Overlap >= max size must still terminate.
	chunks := ChunkText(strings.Repeat("y", 50), 10, 10)
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0], 10)
}
