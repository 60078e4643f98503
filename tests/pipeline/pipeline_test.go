// Package pipeline provides integration tests for the generation workflow
// running against the real activity implementations. Unlike the workflow
// package tests, which mock every activity, these tests stub only the
// outermost collaborators (corpus collector, language model, chunk
// retriever, job store, event emitter) and let the collection, drafting,
// citation, and persistence code paths run for real.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/sadiq-codes/genpaper-sub003/internal/collector"
	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/llm"
	"github.com/sadiq-codes/genpaper-sub003/internal/quality"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
	"github.com/sadiq-codes/genpaper-sub003/internal/retrieval"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal/activities"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal/workflows"
)

// fakeCorpus satisfies the collection activity's collector dependency.
type fakeCorpus struct {
	sources  []*domain.SourceDocument
	warnings []string
	err      error
}

func (f *fakeCorpus) Collect(_ context.Context, _ string, _ []uuid.UUID, _ domain.GenerationConfig) (*collector.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &collector.Result{
		Sources:       f.sources,
		Warnings:      f.warnings,
		CoverageRatio: 1.0,
	}, nil
}

// uuidPattern matches the source ids embedded in evidence prompts.
var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// fakeLLM drafts every section from a template, citing whichever sources
// appear as evidence in the prompt. Summaries carry no citations, matching
// the summarize prompt's instruction.
type fakeLLM struct {
	mu        sync.Mutex
	callsByOp map[string]int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{callsByOp: make(map[string]int)}
}

func (f *fakeLLM) GenerateText(_ context.Context, req llm.Request) (string, llm.Usage, error) {
	f.mu.Lock()
	f.callsByOp[req.Operation]++
	f.mu.Unlock()

	switch req.Operation {
	case "write", "reflect":
		var b strings.Builder
		b.WriteString("The evidence on this question is converging across recent studies. ")
		seen := make(map[string]bool)
		for _, raw := range uuidPattern.FindAllString(req.Prompt, -1) {
			if seen[raw] {
				continue
			}
			seen[raw] = true
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "One study reports consistent gains under comparable conditions %s. ", domain.CitationToken(id))
		}
		b.WriteString("Open problems remain in evaluation methodology and reporting standards.")
		return b.String(), llm.Usage{InputTokens: 600, OutputTokens: 400}, nil
	case "summarize":
		return "The section argued the evidence is converging.", llm.Usage{InputTokens: 100, OutputTokens: 30}, nil
	}
	return "", llm.Usage{}, fmt.Errorf("unexpected operation %q", req.Operation)
}

func (f *fakeLLM) GenerateStructured(_ context.Context, req llm.Request, _ interface{}) (llm.Usage, error) {
	return llm.Usage{}, fmt.Errorf("structured output not expected for operation %q", req.Operation)
}

func (f *fakeLLM) Provider() string { return "fake" }
func (f *fakeLLM) Model() string    { return "fake-chat" }

func (f *fakeLLM) calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callsByOp[op]
}

// fakeRetriever serves one evidence chunk per corpus source.
type fakeRetriever struct {
	chunks map[uuid.UUID]*domain.Chunk
}

func newFakeRetriever(sources []*domain.SourceDocument) *fakeRetriever {
	chunks := make(map[uuid.UUID]*domain.Chunk, len(sources))
	for _, s := range sources {
		chunks[s.ID] = &domain.Chunk{
			SourceID: s.ID,
			Content:  fmt.Sprintf("Key finding from %s.", s.Title),
			Score:    0.8,
			Tier:     domain.TierPrimary,
		}
	}
	return &fakeRetriever{chunks: chunks}
}

func (r *fakeRetriever) Retrieve(_ context.Context, req retrieval.Request) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	for _, s := range req.Sources {
		if c, ok := r.chunks[s.ID]; ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoRelevantContent
	}
	return out, nil
}

func (r *fakeRetriever) AbstractChunks([]*domain.SourceDocument, int) []*domain.Chunk {
	return nil
}

// memJobRepo records status transitions and stored results in memory.
type memJobRepo struct {
	mu       sync.Mutex
	statuses []domain.JobStatus
	results  map[uuid.UUID]*domain.GenerationResult
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{results: make(map[uuid.UUID]*domain.GenerationResult)}
}

func (r *memJobRepo) Create(context.Context, *domain.GenerationJob) error { return nil }

func (r *memJobRepo) Get(context.Context, uuid.UUID) (*domain.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) GetByWorkflowID(context.Context, string) (*domain.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) UpdateStatus(_ context.Context, _ uuid.UUID, status domain.JobStatus, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *memJobRepo) SetWorkflow(context.Context, uuid.UUID, string, string) error { return nil }

func (r *memJobRepo) SaveResult(_ context.Context, result *domain.GenerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.JobID] = result
	return nil
}

func (r *memJobRepo) GetResult(_ context.Context, jobID uuid.UUID) (*domain.GenerationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if result, ok := r.results[jobID]; ok {
		return result, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) List(context.Context, repository.JobFilter) ([]*domain.GenerationJob, int64, error) {
	return nil, 0, nil
}

func (r *memJobRepo) allStatuses() []domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.JobStatus(nil), r.statuses...)
}

// recordingEmitter captures lifecycle events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) record(kind string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, kind)
}

func (e *recordingEmitter) EmitStarted(_ context.Context, _ uuid.UUID, _ string, _ int) error {
	e.record("started")
	return nil
}

func (e *recordingEmitter) EmitProgress(_ context.Context, _ uuid.UUID, _ string, _, _ int) error {
	e.record("progress")
	return nil
}

func (e *recordingEmitter) EmitCompleted(_ context.Context, _ uuid.UUID, _, _ int) error {
	e.record("completed")
	return nil
}

func (e *recordingEmitter) EmitFailed(_ context.Context, _ uuid.UUID, _, _ string) error {
	e.record("failed")
	return nil
}

func (e *recordingEmitter) kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type evictRecorder struct {
	mu      sync.Mutex
	evicted []uuid.UUID
}

func (e *evictRecorder) EvictJob(jobID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = append(e.evicted, jobID)
}

func testSources(n int) []*domain.SourceDocument {
	sources := make([]*domain.SourceDocument, 0, n)
	for i := 0; i < n; i++ {
		sources = append(sources, &domain.SourceDocument{
			ID:         uuid.New(),
			Title:      fmt.Sprintf("Corpus Source %d", i),
			Abstract:   "An abstract with enough words to ground a citation.",
			ChunkCount: 6,
		})
	}
	return sources
}

// pipelineConfig keeps every profile section below the planning threshold so
// the fake language model only ever sees write, reflect, and summarize calls.
func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PlanningThresholdWords:  100000,
		DefaultReflectionCycles: 1,
		PlateauEpsilon:          1.5,
		MinOutlinePoints:        2,
		MinCitationSlots:        1,
	}
}

func citationsConfig() config.CitationsConfig {
	return config.CitationsConfig{
		MaxSnippetChars:   280,
		PerSourceCap:      2,
		SynthesisHeadings: []string{"discussion", "synthesis"},
	}
}

type pipelineHarness struct {
	env     *testsuite.TestWorkflowEnvironment
	service *fakeLLM
	repo    *memJobRepo
	emitter *recordingEmitter
	evictor *evictRecorder
}

// newPipelineHarness wires the real activities to in-memory fakes and
// registers them with a fresh test workflow environment.
func newPipelineHarness(t *testing.T, corpus *fakeCorpus) *pipelineHarness {
	t.Helper()

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.GenerationWorkflow)

	service := newFakeLLM()
	retriever := newFakeRetriever(corpus.sources)
	repo := newMemJobRepo()
	emitter := &recordingEmitter{}
	evictor := &evictRecorder{}

	collectAct := activities.NewCollectionActivities(corpus)
	sectionAct := activities.NewSectionActivities(
		service, retriever, quality.NewEngine(), pipelineConfig(), nil, zerolog.Nop())
	citationAct := activities.NewCitationActivities(
		retriever, nil, citationsConfig(), nil, zerolog.Nop())
	jobAct := activities.NewJobActivities(repo, evictor, nil)
	eventAct := activities.NewEventActivities(emitter)

	env.RegisterActivity(collectAct.CollectCorpus)
	env.RegisterActivity(sectionAct.GenerateSection)
	env.RegisterActivity(sectionAct.SummarizeSection)
	env.RegisterActivity(citationAct.FinalizeCitations)
	env.RegisterActivity(jobAct.UpdateStatus)
	env.RegisterActivity(jobAct.CompleteJob)
	env.RegisterActivity(eventAct.PublishStarted)
	env.RegisterActivity(eventAct.PublishProgress)
	env.RegisterActivity(eventAct.PublishCompleted)
	env.RegisterActivity(eventAct.PublishFailed)

	return &pipelineHarness{
		env:     env,
		service: service,
		repo:    repo,
		emitter: emitter,
		evictor: evictor,
	}
}

func newPipelineInput() workflows.GenerationWorkflowInput {
	return workflows.GenerationWorkflowInput{
		JobID: uuid.New(),
		Topic: "sparse attention mechanisms for long documents",
		Config: domain.GenerationConfig{
			DocumentType:    "empirical_article",
			TargetSources:   8,
			EnableDiscovery: true,
			ChunkLimit:      10,
		},
	}
}

func TestPipelineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Run("full pipeline drafts, cites, and persists through all stages", func(t *testing.T) {
		sources := testSources(4)
		h := newPipelineHarness(t, &fakeCorpus{sources: sources})
		input := newPipelineInput()

		h.env.ExecuteWorkflow(workflows.GenerationWorkflow, input)

		require.True(t, h.env.IsWorkflowCompleted())
		require.NoError(t, h.env.GetWorkflowError())

		var result workflows.GenerationWorkflowResult
		require.NoError(t, h.env.GetWorkflowResult(&result))

		assert.Equal(t, input.JobID, result.JobID)
		assert.Equal(t, string(domain.JobStatusCompleted), result.Status)
		assert.Equal(t, 5, result.SectionsGenerated, "empirical articles carry five sections")
		assert.Positive(t, result.WordCount)
		assert.Positive(t, result.CitationCount)

		// Status transitions through every lifecycle phase. Completed is set
		// by CompleteJob rather than UpdateStatus.
		statuses := h.repo.allStatuses()
		assert.Equal(t, []domain.JobStatus{
			domain.JobStatusCollecting,
			domain.JobStatusGenerating,
			domain.JobStatusCiting,
			domain.JobStatusCompleted,
		}, statuses)

		// The stored result resolves every citation token into the corpus.
		stored, err := h.repo.GetResult(context.Background(), input.JobID)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.Content)
		assert.Positive(t, stored.WordCount)
		require.NotEmpty(t, stored.CitationMap)
		valid := make(map[uuid.UUID]bool, len(sources))
		for _, s := range sources {
			valid[s.ID] = true
		}
		for token, sourceID := range stored.CitationMap {
			assert.True(t, valid[sourceID], "token %s resolves outside the corpus", token)
		}

		// The retrieval cache is evicted exactly once, after completion.
		assert.Equal(t, []uuid.UUID{input.JobID}, h.evictor.evicted)

		// Lifecycle events fire in order: started, per-section progress,
		// completed.
		kinds := h.emitter.kinds()
		require.NotEmpty(t, kinds)
		assert.Equal(t, "started", kinds[0])
		assert.Equal(t, "completed", kinds[len(kinds)-1])

		// Every section wrote once and all but the last summarized.
		assert.Equal(t, 5, h.service.calls("write"))
		assert.Equal(t, 4, h.service.calls("summarize"))
	})

	t.Run("collection warnings surface in the stored result", func(t *testing.T) {
		sources := testSources(2)
		h := newPipelineHarness(t, &fakeCorpus{
			sources:  sources,
			warnings: []string{"search returned fewer sources than requested"},
		})
		input := newPipelineInput()

		h.env.ExecuteWorkflow(workflows.GenerationWorkflow, input)

		require.True(t, h.env.IsWorkflowCompleted())
		require.NoError(t, h.env.GetWorkflowError())

		var result workflows.GenerationWorkflowResult
		require.NoError(t, h.env.GetWorkflowResult(&result))
		assert.Contains(t, result.Warnings, "search returned fewer sources than requested")

		stored, err := h.repo.GetResult(context.Background(), input.JobID)
		require.NoError(t, err)
		assert.Contains(t, stored.Warnings, "search returned fewer sources than requested")
	})

	t.Run("empty corpus fails the job and publishes a failed event", func(t *testing.T) {
		h := newPipelineHarness(t, &fakeCorpus{
			err: fmt.Errorf("coverage gate: %w", domain.ErrEmptyCorpus),
		})
		input := newPipelineInput()

		h.env.ExecuteWorkflow(workflows.GenerationWorkflow, input)

		require.True(t, h.env.IsWorkflowCompleted())
		require.Error(t, h.env.GetWorkflowError())

		statuses := h.repo.allStatuses()
		require.NotEmpty(t, statuses)
		assert.Equal(t, domain.JobStatusFailed, statuses[len(statuses)-1])

		assert.Contains(t, h.emitter.kinds(), "failed")
		assert.Zero(t, h.service.calls("write"), "no drafting happens without a corpus")

		_, err := h.repo.GetResult(context.Background(), input.JobID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("progress query reports completion after the run", func(t *testing.T) {
		h := newPipelineHarness(t, &fakeCorpus{sources: testSources(3)})
		input := newPipelineInput()

		h.env.ExecuteWorkflow(workflows.GenerationWorkflow, input)
		require.True(t, h.env.IsWorkflowCompleted())
		require.NoError(t, h.env.GetWorkflowError())

		value, err := h.env.QueryWorkflow(workflows.QueryProgress)
		require.NoError(t, err)

		var progress domain.Progress
		require.NoError(t, value.Get(&progress))
		assert.Equal(t, domain.StageComplete, progress.Stage)
		assert.Equal(t, 100, progress.Percent)
	})
}
