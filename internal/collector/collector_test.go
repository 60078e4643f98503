package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/ingestion"
	"github.com/sadiq-codes/genpaper-sub003/internal/queue"
)

type stubSourceRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.SourceDocument
	counts    map[uuid.UUID]int
	countErr  error
	countCall int
}

func newStubSourceRepo() *stubSourceRepo {
	return &stubSourceRepo{
		byID:   make(map[uuid.UUID]*domain.SourceDocument),
		counts: make(map[uuid.UUID]int),
	}
}

func (r *stubSourceRepo) Upsert(_ context.Context, source *domain.SourceDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[source.ID] = source
	return nil
}

func (r *stubSourceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.NewNotFoundError("source", id.String())
	}
	return s, nil
}

func (r *stubSourceRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SourceDocument
	for _, id := range ids {
		if s, ok := r.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSourceRepo) GetByDOI(_ context.Context, _ string) (*domain.SourceDocument, error) {
	return nil, domain.ErrNotFound
}

func (r *stubSourceRepo) Search(_ context.Context, _ string, _ int) ([]*domain.SourceDocument, error) {
	return nil, nil
}

func (r *stubSourceRepo) ChunkCounts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCall++
	if r.countErr != nil {
		return nil, r.countErr
	}
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		out[id] = r.counts[id]
	}
	return out, nil
}

type stubSearch struct {
	results []*domain.SourceDocument
	err     error
	calls   int
}

func (s *stubSearch) Search(_ context.Context, _ string, _ int) ([]*domain.SourceDocument, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubSearch) Name() string { return "stub" }

type stubIngestor struct {
	mu     sync.Mutex
	err    error
	failOn string
	calls  int
}

func (i *stubIngestor) IngestSource(_ context.Context, source *domain.SourceDocument) (*ingestion.IngestResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	if i.err != nil {
		return nil, i.err
	}
	if i.failOn != "" && source.Title == i.failOn {
		return nil, errors.New("ingest rejected")
	}
	id := source.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &ingestion.IngestResult{ID: id}, nil
}

type stubQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	err      error
}

func (q *stubQueue) Enqueue(_ context.Context, sourceID uuid.UUID, _ string, _ queue.Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, sourceID)
	return nil
}

func testCollectorConfig() config.CollectorConfig {
	return config.CollectorConfig{
		ChunkFloor:         10,
		CoverageTarget:     0.8,
		PollInterval:       5 * time.Millisecond,
		PerSourceAllowance: 20 * time.Millisecond,
		MinWait:            10 * time.Millisecond,
		MaxWait:            50 * time.Millisecond,
		MinTermMatchRatio:  0.3,
		MinRelevanceScore:  0.35,
		PermissiveNoScore:  true,
		ProbeConcurrency:   2,
	}
}

func coveredSource(title string) *domain.SourceDocument {
	return &domain.SourceDocument{
		ID:         uuid.New(),
		Title:      title,
		Abstract:   "graph neural network message passing study",
		ChunkCount: 20,
	}
}

func jobConfig(target int, discoveryOn bool) domain.GenerationConfig {
	cfg := domain.DefaultGenerationConfig()
	cfg.TargetSources = target
	cfg.EnableDiscovery = discoveryOn
	return cfg
}

func TestCollectPinnedOnly(t *testing.T) {
	repo := newStubSourceRepo()
	pinned := coveredSource("Graph neural networks for molecules")
	repo.byID[pinned.ID] = pinned
	repo.counts[pinned.ID] = 20

	c := New(repo, &stubSearch{}, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{pinned.ID}, jobConfig(1, false))
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, pinned.ID, res.Sources[0].ID)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1.0, res.CoverageRatio)
}

func TestCollectDiscoveryFillsRemainingSlots(t *testing.T) {
	repo := newStubSourceRepo()
	pinned := coveredSource("Graph neural networks survey")
	repo.byID[pinned.ID] = pinned
	repo.counts[pinned.ID] = 20

	discovered := []*domain.SourceDocument{
		{Title: "Graph neural network pooling", Abstract: "pooling layers for graph neural network models", ChunkCount: 20},
		{Title: "Message passing on graph structures", Abstract: "graph neural network message passing variants", ChunkCount: 20},
		{Title: "Cooking pasta quickly", Abstract: "boiling water and salt for dinner", ChunkCount: 20},
	}
	search := &stubSearch{results: discovered}
	ingest := &stubIngestor{}

	c := New(repo, search, ingest, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{pinned.ID}, jobConfig(3, true))
	require.NoError(t, err)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, 2, ingest.calls, "off-topic candidate must not be ingested")
	for _, s := range res.Sources {
		assert.NotEqual(t, uuid.Nil, s.ID)
		assert.NotEqual(t, "Cooking pasta quickly", s.Title)
	}
}

func TestCollectDiscoveryDropsNearDuplicates(t *testing.T) {
	repo := newStubSourceRepo()
	pinned := coveredSource("Graph neural networks survey")
	repo.byID[pinned.ID] = pinned
	repo.counts[pinned.ID] = 20

	discovered := []*domain.SourceDocument{
		{Title: "Graph Neural Networks Survey", Abstract: "graph neural network survey restated", ChunkCount: 20},
		{Title: "Message passing on graph structures", Abstract: "graph neural network message passing variants", ChunkCount: 20},
	}
	search := &stubSearch{results: discovered}
	ingest := &stubIngestor{}

	c := New(repo, search, ingest, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{pinned.ID}, jobConfig(3, true))
	require.NoError(t, err)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, 1, ingest.calls, "duplicate candidate must not be ingested")
	for _, s := range res.Sources {
		assert.NotEqual(t, "Graph Neural Networks Survey", s.Title)
	}
}

func TestCollectTargetReachedSkipsDiscovery(t *testing.T) {
	repo := newStubSourceRepo()
	pinned := coveredSource("Graph neural networks survey")
	repo.byID[pinned.ID] = pinned
	repo.counts[pinned.ID] = 20

	search := &stubSearch{results: []*domain.SourceDocument{coveredSource("extra")}}
	c := New(repo, search, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{pinned.ID}, jobConfig(1, true))
	require.NoError(t, err)
	assert.Len(t, res.Sources, 1)
	assert.Zero(t, search.calls)
}

func TestCollectSearchFailureDegradesToPinned(t *testing.T) {
	repo := newStubSourceRepo()
	pinned := coveredSource("Graph neural networks survey")
	repo.byID[pinned.ID] = pinned
	repo.counts[pinned.ID] = 20

	search := &stubSearch{err: errors.New("backend down")}
	c := New(repo, search, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{pinned.ID}, jobConfig(5, true))
	require.NoError(t, err)
	assert.Len(t, res.Sources, 1)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "discovery failed")
}

func TestCollectEmptyCorpusIsTerminal(t *testing.T) {
	repo := newStubSourceRepo()
	search := &stubSearch{err: errors.New("backend down")}
	c := New(repo, search, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	_, err := c.Collect(context.Background(), "graph neural networks", nil, jobConfig(5, true))
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestCollectIngestFailureShrinksCorpus(t *testing.T) {
	repo := newStubSourceRepo()
	discovered := []*domain.SourceDocument{
		{Title: "Graph neural network pooling", Abstract: "graph neural network pooling layers", ChunkCount: 20},
		{Title: "Graph neural network attention", Abstract: "attention over graph neural network edges", ChunkCount: 20},
	}
	search := &stubSearch{results: discovered}
	ingest := &stubIngestor{failOn: "Graph neural network attention"}

	c := New(repo, search, ingest, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", nil, jobConfig(5, true))
	require.NoError(t, err)
	assert.Len(t, res.Sources, 1)
	assert.Equal(t, "Graph neural network pooling", res.Sources[0].Title)
}

func TestCollectRelevanceScoreGate(t *testing.T) {
	lowScore := 0.1
	highScore := 0.9
	repo := newStubSourceRepo()
	discovered := []*domain.SourceDocument{
		{Title: "Graph neural network pooling", Abstract: "graph neural network pooling", RelevanceScore: &lowScore, ChunkCount: 20},
		{Title: "Graph neural network attention", Abstract: "graph neural network attention", RelevanceScore: &highScore, ChunkCount: 20},
	}
	c := New(repo, &stubSearch{results: discovered}, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", nil, jobConfig(5, true))
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "Graph neural network attention", res.Sources[0].Title)
}

func TestCollectEnqueuesExtractionForThinSources(t *testing.T) {
	repo := newStubSourceRepo()
	thin := &domain.SourceDocument{
		ID:         uuid.New(),
		Title:      "Graph neural networks survey",
		Abstract:   "graph neural networks",
		ChunkCount: 2,
		ContentURL: "https://arxiv.org/pdf/2101.00001.pdf",
	}
	landing := &domain.SourceDocument{
		ID:         uuid.New(),
		Title:      "Graph neural network attention",
		Abstract:   "graph neural networks",
		ChunkCount: 2,
		ContentURL: "https://publisher.example.com/article/attention",
	}
	repo.byID[thin.ID] = thin
	repo.byID[landing.ID] = landing

	q := &stubQueue{}
	cfg := testCollectorConfig()
	cfg.CoverageTarget = 0 // skip the wait loop, extraction enqueueing is the point
	c := New(repo, &stubSearch{}, &stubIngestor{}, q, cfg, nil, zerolog.Nop())

	_, err := c.Collect(context.Background(), "graph neural networks",
		[]uuid.UUID{thin.ID, landing.ID}, jobConfig(2, false))
	require.NoError(t, err)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, thin.ID, q.enqueued[0])
}

func TestCollectCoverageTimeoutWarnsButSucceeds(t *testing.T) {
	repo := newStubSourceRepo()
	thin := &domain.SourceDocument{
		ID:         uuid.New(),
		Title:      "Graph neural networks survey",
		Abstract:   "graph neural networks",
		ChunkCount: 0,
		ContentURL: "https://arxiv.org/pdf/2101.00001.pdf",
	}
	repo.byID[thin.ID] = thin
	repo.counts[thin.ID] = 0

	c := New(repo, &stubSearch{}, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{thin.ID}, jobConfig(1, false))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "partial coverage")
	assert.Zero(t, res.CoverageRatio)
}

func TestCollectCoverageReachedEarly(t *testing.T) {
	repo := newStubSourceRepo()
	thin := &domain.SourceDocument{
		ID:         uuid.New(),
		Title:      "Graph neural networks survey",
		Abstract:   "graph neural networks",
		ChunkCount: 0,
		ContentURL: "https://arxiv.org/pdf/2101.00001.pdf",
	}
	repo.byID[thin.ID] = thin
	repo.counts[thin.ID] = 15 // extraction already finished by the first poll

	c := New(repo, &stubSearch{}, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	res, err := c.Collect(context.Background(), "graph neural networks", []uuid.UUID{thin.ID}, jobConfig(1, false))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1.0, res.CoverageRatio)
	assert.Equal(t, 15, res.Sources[0].ChunkCount)
}

func TestCollectEmptyTopic(t *testing.T) {
	c := New(newStubSourceRepo(), &stubSearch{}, &stubIngestor{}, &stubQueue{}, testCollectorConfig(), nil, zerolog.Nop())

	_, err := c.Collect(context.Background(), "   ", nil, jobConfig(5, true))
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCoverageWaitClamped(t *testing.T) {
	t.Parallel()

	perSource := 90 * time.Second
	minWait := 120 * time.Second
	maxWait := 600 * time.Second

	assert.Equal(t, 120*time.Second, coverageWait(1, perSource, minWait, maxWait))
	assert.Equal(t, 270*time.Second, coverageWait(3, perSource, minWait, maxWait))
	assert.Equal(t, 600*time.Second, coverageWait(10, perSource, minWait, maxWait))
}

func TestCoverageRatioEmptyCorpus(t *testing.T) {
	t.Parallel()

	c := New(newStubSourceRepo(), nil, nil, nil, testCollectorConfig(), nil, zerolog.Nop())
	ratio, err := c.coverageRatio(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ratio)
}
