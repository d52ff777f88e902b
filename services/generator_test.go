package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"studycards-backend/internal/apperr"
	"studycards-backend/internal/index"
	"studycards-backend/models"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) GenerateJSON(_ context.Context, _, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func seededIndex(t *testing.T, texts ...string) *index.MemoryStore {
	t.Helper()
	store := index.NewMemoryStore()
	src := primitive.NewObjectID()
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			SourceID: src,
			ChunkID:  src.Hex() + ":" + string(rune('0'+i)),
			Order:    i,
			Text:     text,
			Vector:   []float32{1, float32(i) * 0.01},
		}
	}
	require.NoError(t, store.UpsertChunks(context.Background(), chunks))
	return store
}

func newTestGenerator(idx index.Searcher, llm TextGenerator) *Generator {
	return &Generator{
		Embedder:          &stubEmbedder{vector: []float32{1, 0}},
		Searcher:          idx,
		LLM:               llm,
		RetrievalLimit:    12,
		ContextCharBudget: 12000,
		DefaultCardCount:  10,
	}
}

func TestGenerateProducesCards(t *testing.T) {
	llm := &stubLLM{response: `{"cards":[
		{"front":"What is photosynthesis?","back":"Conversion of light to chemical energy","difficulty":"good"},
		{"front":"Where does it occur?","back":"In chloroplasts","hint":"organelle","difficulty":"easy"}
	]}`}
	gen := newTestGenerator(seededIndex(t, "photosynthesis converts light", "chloroplast structure"), llm)

	result, err := gen.Generate(context.Background(), GenerateRequest{CardCount: 5, Query: "photosynthesis"})
	require.NoError(t, err)
	require.Len(t, result.Cards, 2)
	assert.Equal(t, "What is photosynthesis?", result.Cards[0].Front)
	assert.Equal(t, models.DifficultyEasy, result.Cards[1].Difficulty)
	assert.NotEmpty(t, result.Matches)

	// Retrieved material must reach the model.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "photosynthesis converts light")
}

func TestGenerateTruncatesToRequestedCount(t *testing.T) {
	llm := &stubLLM{response: `{"cards":[
		{"front":"q1","back":"a1"},{"front":"q2","back":"a2"},
		{"front":"q3","back":"a3"},{"front":"q4","back":"a4"}
	]}`}
	gen := newTestGenerator(seededIndex(t, "some material to study"), llm)

	result, err := gen.Generate(context.Background(), GenerateRequest{CardCount: 2})
	require.NoError(t, err)
	assert.Len(t, result.Cards, 2)
}

func TestGenerateDefaultsDifficultyToGood(t *testing.T) {
	llm := &stubLLM{response: `{"cards":[{"front":"q","back":"a"}]}`}
	gen := newTestGenerator(seededIndex(t, "material"), llm)

	result, err := gen.Generate(context.Background(), GenerateRequest{})
	require.NoError(t, err)
	require.Len(t, result.Cards, 1)
	assert.Equal(t, models.DifficultyGood, result.Cards[0].Difficulty)
}

func TestGenerateMalformedResponseDegradesToEmpty(t *testing.T) {
	cases := map[string]string{
		"not json":           "I cannot help with that",
		"missing back":       `{"cards":[{"front":"q"}]}`,
		"unknown difficulty": `{"cards":[{"front":"q","back":"a","difficulty":"impossible"}]}`,
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			gen := newTestGenerator(seededIndex(t, "material"), &stubLLM{response: response})

			result, err := gen.Generate(context.Background(), GenerateRequest{})
			require.NoError(t, err)
			assert.Empty(t, result.Cards)
			assert.NotEmpty(t, result.Matches)
		})
	}
}

func TestGenerateAcceptsBareArrayResponse(t *testing.T) {
	llm := &stubLLM{response: `[{"front":"q","back":"a","difficulty":"hard"}]`}
	gen := newTestGenerator(seededIndex(t, "material"), llm)

	result, err := gen.Generate(context.Background(), GenerateRequest{})
	require.NoError(t, err)
	require.Len(t, result.Cards, 1)
	assert.Equal(t, models.DifficultyHard, result.Cards[0].Difficulty)
}

func TestGenerateNoMatchesIsNotFound(t *testing.T) {
	gen := newTestGenerator(index.NewMemoryStore(), &stubLLM{})

	_, err := gen.Generate(context.Background(), GenerateRequest{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGenerateProviderErrorPropagates(t *testing.T) {
	gen := newTestGenerator(seededIndex(t, "material"), &stubLLM{err: apperr.ErrProvider})

	_, err := gen.Generate(context.Background(), GenerateRequest{})
	assert.True(t, errors.Is(err, apperr.ErrProvider))
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	gen := newTestGenerator(index.NewMemoryStore(), &stubLLM{})

	_, err := gen.Search(context.Background(), "   ", "", 5)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestBuildContextRespectsBudget(t *testing.T) {
	matches := []models.RetrievalMatch{
		{Content: strings.Repeat("a", 50)},
		{Content: strings.Repeat("b", 50)},
		{Content: strings.Repeat("c", 50)},
	}
	out := buildContext(matches, 110)
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "b")
	assert.NotContains(t, out, "c")
	assert.LessOrEqual(t, len(out), 110)
}

func TestBuildContextTruncatesOversizedFirstChunk(t *testing.T) {
	matches := []models.RetrievalMatch{{Content: strings.Repeat("x", 500)}}
	out := buildContext(matches, 100)
	assert.Len(t, out, 100)
}

func TestBuildContextTruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes; an odd budget would land mid-rune.
	matches := []models.RetrievalMatch{{Content: strings.Repeat("é", 300)}}
	out := buildContext(matches, 101)

	assert.True(t, utf8.ValidString(out))
	assert.Len(t, out, 100)
}
