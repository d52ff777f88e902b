package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"studycards-backend/internal/apperr"
	"studycards-backend/internal/index"
	"studycards-backend/models"
)

type memSourceStore struct {
	mu      sync.Mutex
	sources map[string]*models.Source
}

func newMemSourceStore() *memSourceStore {
	return &memSourceStore{sources: make(map[string]*models.Source)}
}

func (s *memSourceStore) Insert(_ context.Context, src *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src.ID = primitive.NewObjectID()
	cp := *src
	s.sources[src.ID.Hex()] = &cp
	return nil
}

func (s *memSourceStore) Update(_ context.Context, src *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *src
	s.sources[src.ID.Hex()] = &cp
	return nil
}

func (s *memSourceStore) Get(_ context.Context, id string) (*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (s *memSourceStore) List(_ context.Context, _ int64) ([]models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Source
	for _, src := range s.sources {
		out = append(out, *src)
	}
	return out, nil
}

func (s *memSourceStore) ListByMediaType(_ context.Context, mediaType string) ([]models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Source
	for _, src := range s.sources {
		if src.MediaType == mediaType {
			out = append(out, *src)
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, apperr.ErrProvider
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

func newTestIngestor(embedder Embedder) (*Ingestor, *memSourceStore, *index.MemoryStore) {
	sources := newMemSourceStore()
	idx := index.NewMemoryStore()
	return &Ingestor{
		Sources:        sources,
		Index:          idx,
		Embedder:       embedder,
		MaxChunkSize:   100,
		ChunkOverlap:   10,
		MinSourceChars: 20,
	}, sources, idx
}

func TestIngestBytesIndexesSource(t *testing.T) {
	ctx := context.Background()
	ing, sources, idx := newTestIngestor(&fakeEmbedder{})

	text := strings.Repeat("study material here ", 20)
	resp, err := ing.IngestBytes(ctx, "Notes", models.MediaTypeText, []byte(text), "")
	require.NoError(t, err)
	require.NotEmpty(t, resp.SourceID)
	assert.Greater(t, resp.Chunks, 1)

	src, err := sources.Get(ctx, resp.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, src.Status)
	assert.Equal(t, resp.Chunks, src.ChunkCount)
	assert.Empty(t, src.Error)

	n, err := idx.Count(ctx, resp.SourceID)
	require.NoError(t, err)
	assert.Equal(t, int64(resp.Chunks), n)
}

func TestIngestBytesRejectsShortText(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{}
	ing, sources, _ := newTestIngestor(embedder)

	_, err := ing.IngestBytes(ctx, "tiny", models.MediaTypeText, []byte("too short"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	// No source record and no provider call for rejected input.
	assert.Zero(t, embedder.calls)
	list, err := sources.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIngestBytesEmbedFailureMarksSourceFailed(t *testing.T) {
	ctx := context.Background()
	ing, sources, idx := newTestIngestor(&fakeEmbedder{fail: true})

	text := strings.Repeat("material that will fail to embed ", 10)
	_, err := ing.IngestBytes(ctx, "Doomed", models.MediaTypeText, []byte(text), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrProvider))

	list, err := sources.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusFailed, list[0].Status)
	assert.NotEmpty(t, list[0].Error)
	assert.Zero(t, list[0].ChunkCount)

	// No chunks may survive a failed ingestion.
	n, err := idx.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestBytesDefaultsTitle(t *testing.T) {
	ctx := context.Background()
	ing, _, _ := newTestIngestor(&fakeEmbedder{})

	resp, err := ing.IngestBytes(ctx, "  ", models.MediaTypeText,
		[]byte("a perfectly reasonable amount of study text"), "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled source", resp.Title)
}

type fakeFetcher struct {
	html  string
	title string
	err   error
}

func (f *fakeFetcher) Fetch(rawURL string) (*FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{URL: rawURL, Title: f.title, HTML: []byte(f.html)}, nil
}

func TestIngestURLUsesPageTitle(t *testing.T) {
	ctx := context.Background()
	ing, sources, _ := newTestIngestor(&fakeEmbedder{})
	ing.Fetcher = &fakeFetcher{
		title: "Fetched Page",
		html:  "<html><body><p>" + strings.Repeat("web content ", 10) + "</p></body></html>",
	}

	resp, err := ing.IngestURL(ctx, "https://example.com/article", "")
	require.NoError(t, err)
	assert.Equal(t, "Fetched Page", resp.Title)

	src, err := sources.Get(ctx, resp.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/article", src.URL)
	assert.Equal(t, models.MediaTypeHTML, src.MediaType)
}

func TestRefreshRebuildsChunksUnderSameSource(t *testing.T) {
	ctx := context.Background()
	ing, sources, idx := newTestIngestor(&fakeEmbedder{})
	fetcher := &fakeFetcher{
		title: "Page",
		html:  "<html><body>" + strings.Repeat("original content ", 30) + "</body></html>",
	}
	ing.Fetcher = fetcher

	resp, err := ing.IngestURL(ctx, "https://example.com/page", "")
	require.NoError(t, err)
	before, err := idx.Count(ctx, resp.SourceID)
	require.NoError(t, err)
	require.Greater(t, before, int64(0))

	fetcher.html = "<html><body>" + strings.Repeat("updated ", 10) + "</body></html>"
	require.NoError(t, ing.Refresh(ctx, resp.SourceID))

	src, err := sources.Get(ctx, resp.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, src.Status)

	after, err := idx.Count(ctx, resp.SourceID)
	require.NoError(t, err)
	assert.Equal(t, int64(src.ChunkCount), after)
	assert.NotEqual(t, before, after)
}

func TestRefreshRejectsNonURLSource(t *testing.T) {
	ctx := context.Background()
	ing, _, _ := newTestIngestor(&fakeEmbedder{})
	ing.Fetcher = &fakeFetcher{}

	resp, err := ing.IngestBytes(ctx, "Pasted", models.MediaTypeText,
		[]byte("pasted text long enough to pass validation"), "")
	require.NoError(t, err)

	err = ing.Refresh(context.Background(), resp.SourceID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
