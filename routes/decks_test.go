package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"studycards-backend/internal/index"
	"studycards-backend/models"
	"studycards-backend/services"
)

type fakeDeckStore struct {
	deck     models.Deck
	added    []models.Card
	addedSrc string
}

func (f *fakeDeckStore) CreateDeck(_ context.Context, title string) (*models.Deck, error) {
	f.deck = models.Deck{ID: primitive.NewObjectID(), Title: title}
	return &f.deck, nil
}

func (f *fakeDeckStore) AddCards(_ context.Context, _, sourceID string, cards []models.Card) ([]models.ScheduledCard, error) {
	f.added = append(f.added, cards...)
	f.addedSrc = sourceID
	scheduled := make([]models.ScheduledCard, len(cards))
	for i, c := range cards {
		scheduled[i] = models.ScheduledCard{
			ID:         primitive.NewObjectID(),
			Front:      c.Front,
			Back:       c.Back,
			Difficulty: c.Difficulty,
		}
	}
	return scheduled, nil
}

func (f *fakeDeckStore) ListDecks(context.Context) ([]models.Deck, error) { return nil, nil }

func (f *fakeDeckStore) ListCards(context.Context, string) ([]models.ScheduledCard, error) {
	return nil, nil
}

func (f *fakeDeckStore) DueCards(context.Context, string, time.Time, int64) ([]models.ScheduledCard, error) {
	return nil, nil
}

type routeEmbedder struct{}

func (routeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

type routeLLM struct{ response string }

func (l routeLLM) GenerateJSON(context.Context, string, string) (string, error) {
	return l.response, nil
}

func newDeckGenerator(t *testing.T, sourceID primitive.ObjectID, response string) *services.Generator {
	t.Helper()
	store := index.NewMemoryStore()
	err := store.UpsertChunks(context.Background(), []models.Chunk{
		{SourceID: sourceID, ChunkID: sourceID.Hex() + ":0", Order: 0,
			Text: "Mitochondria produce ATP through cellular respiration.", Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	return &services.Generator{
		Embedder:          routeEmbedder{},
		Searcher:          store,
		LLM:               routeLLM{response: response},
		RetrievalLimit:    12,
		ContextCharBudget: 12000,
		DefaultCardCount:  10,
	}
}

func newDeckRouter(store *fakeDeckStore, generator *services.Generator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/decks", HandleCreateDeck(store, generator))
	router.POST("/api/decks/:id/cards", HandleAddCards(store, generator))
	return router
}

const twoCardResponse = `{"cards": [
	{"front": "What do mitochondria produce?", "back": "ATP", "difficulty": "good"},
	{"front": "Which process makes ATP?", "back": "Cellular respiration", "difficulty": "easy"}
]}`

func TestHandleCreateDeckSeedsCardsFromSource(t *testing.T) {
	sourceID := primitive.NewObjectID()
	store := &fakeDeckStore{}
	router := newDeckRouter(store, newDeckGenerator(t, sourceID, twoCardResponse))

	body, _ := json.Marshal(gin.H{"title": "Cell biology", "source_id": sourceID.Hex(), "count": 2})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/decks", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Cell biology", store.deck.Title)
	require.Len(t, store.added, 2)
	assert.Equal(t, "ATP", store.added[0].Back)
	assert.Equal(t, sourceID.Hex(), store.addedSrc)

	var resp struct {
		Count int                    `json:"count"`
		Cards []models.ScheduledCard `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestHandleCreateDeckWithoutSourceStaysEmpty(t *testing.T) {
	store := &fakeDeckStore{}
	router := newDeckRouter(store, newDeckGenerator(t, primitive.NewObjectID(), twoCardResponse))

	body, _ := json.Marshal(gin.H{"title": "Empty deck"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/decks", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, store.added)
}

func TestHandleAddCardsGeneratesFromSource(t *testing.T) {
	sourceID := primitive.NewObjectID()
	store := &fakeDeckStore{}
	router := newDeckRouter(store, newDeckGenerator(t, sourceID, twoCardResponse))

	body, _ := json.Marshal(gin.H{"source_id": sourceID.Hex(), "count": 2})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/decks/"+primitive.NewObjectID().Hex()+"/cards", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.added, 2)
	assert.Equal(t, "What do mitochondria produce?", store.added[0].Front)
}

func TestHandleAddCardsAcceptsExplicitCards(t *testing.T) {
	store := &fakeDeckStore{}
	router := newDeckRouter(store, newDeckGenerator(t, primitive.NewObjectID(), twoCardResponse))

	body, _ := json.Marshal(gin.H{"cards": []gin.H{{"front": "Q", "back": "A"}}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/decks/"+primitive.NewObjectID().Hex()+"/cards", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.added, 1)
	assert.Equal(t, "Q", store.added[0].Front)
}

func TestHandleAddCardsRejectsEmptyRequest(t *testing.T) {
	store := &fakeDeckStore{}
	router := newDeckRouter(store, newDeckGenerator(t, primitive.NewObjectID(), twoCardResponse))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/decks/"+primitive.NewObjectID().Hex()+"/cards", bytes.NewReader([]byte(`{}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.added)
}
