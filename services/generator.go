package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"studycards-backend/internal/apperr"
	"studycards-backend/internal/index"
	"studycards-backend/internal/ingest"
	"studycards-backend/internal/logger"
	"studycards-backend/models"
)

// TextGenerator produces a JSON completion from a system instruction and a
// user prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}

// GenerateRequest asks for cards built from indexed material.
type GenerateRequest struct {
	SourceID  string `json:"source_id,omitempty"` // empty searches all sources
	Query     string `json:"query,omitempty"`
	CardCount int    `json:"card_count,omitempty"`
}

// GenerateResult carries the cards plus the retrieval that produced them.
type GenerateResult struct {
	Cards   []models.Card           `json:"cards"`
	Matches []models.RetrievalMatch `json:"matches"`
}

const defaultQuery = "produce high-quality study questions from this material"

const generationSystemPrompt = `You create flashcards from study material.
Respond with a JSON object of the form {"cards": [{"front": "...", "back": "...", "hint": "...", "difficulty": "again|hard|good|easy"}]}.
Each front is a question or prompt, each back is the answer. Hints are optional.
Base every card strictly on the provided material. Never invent facts.`

// Generator runs the two-stage card pipeline: retrieve relevant chunks, then
// prompt the model with them as context. Retrieval failures abort; a
// malformed model response degrades to zero cards rather than an error.
type Generator struct {
	Embedder ingest.Embedder
	Searcher index.Searcher
	LLM      TextGenerator
	Cache    *RetrievalCache

	RetrievalLimit    int
	ContextCharBudget int
	DefaultCardCount  int
}

// Search embeds the query and returns the nearest chunks. Results are cached
// when a cache is configured.
func (g *Generator) Search(ctx context.Context, query, sourceID string, limit int) ([]models.RetrievalMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", apperr.ErrValidation)
	}
	if limit <= 0 {
		limit = g.RetrievalLimit
	}

	if matches, ok := g.Cache.Get(ctx, query, sourceID, limit); ok {
		return matches, nil
	}

	vectors, err := g.Embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	matches, err := g.Searcher.Search(ctx, vectors[0], sourceID, limit)
	if err != nil {
		return nil, err
	}

	g.Cache.Set(ctx, query, sourceID, limit, matches)
	return matches, nil
}

// Generate runs retrieval then generation and returns at most the requested
// number of cards.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	tracer := otel.Tracer("generator")
	ctx, span := tracer.Start(ctx, "cards.generate")
	defer span.End()

	count := req.CardCount
	if count <= 0 {
		count = g.DefaultCardCount
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = defaultQuery
	}
	span.SetAttributes(
		attribute.Int("cards.requested", count),
		attribute.Bool("cards.source_scoped", req.SourceID != ""),
	)

	matches, err := g.Search(ctx, query, req.SourceID, g.RetrievalLimit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no indexed material matches the request", apperr.ErrNotFound)
	}

	contextText := buildContext(matches, g.ContextCharBudget)
	prompt := fmt.Sprintf("Create %d flashcards from the following material.\n\nMATERIAL:\n%s", count, contextText)

	raw, err := g.LLM.GenerateJSON(ctx, generationSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	cards, err := parseCards(raw)
	if err != nil {
		// A malformed response is the model's fault, not the caller's.
		// Degrade to an empty result instead of failing the request.
		logger.Warn("Discarding malformed generation response", "error", err)
		span.SetAttributes(attribute.Bool("cards.bad_shape", true))
		return &GenerateResult{Cards: []models.Card{}, Matches: matches}, nil
	}

	if len(cards) > count {
		cards = cards[:count]
	}
	span.SetAttributes(attribute.Int("cards.produced", len(cards)))
	return &GenerateResult{Cards: cards, Matches: matches}, nil
}

// buildContext concatenates match contents best-first until the character
// budget is spent. At least one chunk is always included, truncated if it
// alone exceeds the budget.
func buildContext(matches []models.RetrievalMatch, budget int) string {
	if budget <= 0 {
		budget = 12000
	}
	var b strings.Builder
	for i, m := range matches {
		if i == 0 && len(m.Content) > budget {
			// Back off to a rune boundary so the model never sees a
			// split multi-byte sequence.
			cut := budget
			for cut > 0 && !utf8.RuneStart(m.Content[cut]) {
				cut--
			}
			b.WriteString(m.Content[:cut])
			break
		}
		if b.Len()+len(m.Content)+2 > budget {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

type cardsEnvelope struct {
	Cards []models.Card `json:"cards"`
}

// parseCards validates the model's JSON. The response may be either the
// documented envelope or a bare array.
func parseCards(raw string) ([]models.Card, error) {
	raw = strings.TrimSpace(raw)

	var envelope cardsEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope.Cards == nil {
		var bare []models.Card
		if err := json.Unmarshal([]byte(raw), &bare); err != nil {
			return nil, fmt.Errorf("%w: response is not valid json", apperr.ErrBadShape)
		}
		envelope.Cards = bare
	}

	for i := range envelope.Cards {
		c := &envelope.Cards[i]
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		if c.Front == "" || c.Back == "" {
			return nil, fmt.Errorf("%w: card %d is missing front or back", apperr.ErrBadShape, i)
		}
		if c.Difficulty == "" {
			c.Difficulty = models.DifficultyGood
		}
		if !c.Difficulty.Valid() {
			return nil, fmt.Errorf("%w: card %d has unknown difficulty %q", apperr.ErrBadShape, i, c.Difficulty)
		}
	}
	return envelope.Cards, nil
}
