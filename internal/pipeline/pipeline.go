// Package pipeline drives one section of a generation job through its
// state machine: PLANNING, WRITING, optional REFLECTING, SCORING, DONE.
// Sections run sequentially within a job so later sections can build on
// a rolling summary of earlier ones.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/llm"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/profile"
	"github.com/sadiq-codes/genpaper-sub003/internal/quality"
	"github.com/sadiq-codes/genpaper-sub003/internal/retrieval"
)

// degradedScore stands in for a stage score when the stage was skipped
// or produced an invalid artifact, so the overall score degrades rather
// than being withheld.
const degradedScore = 60.0

// validPlanScore is credited to the planning stage when the model plan
// passes validation.
const validPlanScore = 85.0

// ChunkRetriever is the retrieval collaborator. Satisfied by
// retrieval.Retriever.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]*domain.Chunk, error)
	AbstractChunks(sources []*domain.SourceDocument, limit int) []*domain.Chunk
}

// Request carries everything one section generation needs.
type Request struct {
	JobID   uuid.UUID
	Topic   string
	Spec    domain.SectionSpec
	Sources []*domain.SourceDocument

	// DocumentType selects the structural profile whose forbidden-section
	// list plan validation enforces. Empty or unknown skips the check.
	DocumentType string

	// ChunkLimit caps passages retrieved for the section.
	ChunkLimit int

	// PriorSummary is the rolling summary of earlier sections.
	PriorSummary string
}

// Pipeline generates section drafts.
type Pipeline struct {
	llm       llm.Service
	retriever ChunkRetriever
	engine    *quality.Engine
	cfg       config.PipelineConfig
	metrics   *observability.Metrics
	analytics *llm.Analytics
	logger    zerolog.Logger
}

// New creates a section pipeline. analytics may be nil when usage
// accounting is not wanted.
func New(
	service llm.Service,
	retriever ChunkRetriever,
	engine *quality.Engine,
	cfg config.PipelineConfig,
	metrics *observability.Metrics,
	analytics *llm.Analytics,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		llm:       service,
		retriever: retriever,
		engine:    engine,
		cfg:       cfg,
		metrics:   metrics,
		analytics: analytics,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// GenerateSection drives one section through the full state machine and
// returns the frozen draft.
func (p *Pipeline) GenerateSection(ctx context.Context, req Request) (*domain.SectionDraft, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, domain.NewValidationError("topic", "must not be empty")
	}
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("section %s: %w", req.Spec.Key, domain.ErrEmptyCorpus)
	}

	logger := p.logger.With().Str("section", req.Spec.Key).Logger()

	plan, planningScore := p.plan(ctx, req, logger)

	chunks, err := p.retrieveChunks(ctx, req, logger)
	if err != nil {
		return nil, err
	}

	draft, err := p.write(ctx, req, plan, chunks)
	if err != nil {
		return nil, err
	}
	draft.PlanningScore = planningScore

	p.reflect(ctx, req, draft, logger)

	p.score(draft)

	if p.metrics != nil {
		p.metrics.SectionsGenerated.WithLabelValues(req.Spec.Key).Inc()
		p.metrics.SectionScore.Observe(draft.OverallScore)
		p.metrics.ReflectionCycles.Observe(float64(draft.RevisionCount))
		p.metrics.CitationsEmitted.Add(float64(domain.CountCitationTokens(draft.Content)))
	}
	logger.Info().
		Int("words", draft.WordCount).
		Float64("score", draft.OverallScore).
		Int("revisions", draft.RevisionCount).
		Msg("section complete")
	return draft, nil
}

// Summarize condenses a finished section for the rolling summary handed
// to later sections.
func (p *Pipeline) Summarize(ctx context.Context, draft *domain.SectionDraft) (string, error) {
	summary, _, err := p.generateText(ctx, llm.Request{
		Operation: "summarize",
		System:    systemPrompt,
		Prompt:    summaryPrompt(draft.Title, draft.Content),
		MaxTokens: 200,
	})
	if err != nil {
		return "", fmt.Errorf("summarize section %s: %w", draft.Key, err)
	}
	return strings.TrimSpace(summary), nil
}

// plan runs PLANNING. Short sections skip it; invalid or unparsable
// plans fall back to a mechanical skeleton. Planning never fails the
// section.
func (p *Pipeline) plan(ctx context.Context, req Request, logger zerolog.Logger) (*SectionPlan, float64) {
	candidates := candidateIDs(req)
	if req.Spec.ExpectedWords < p.cfg.PlanningThresholdWords {
		logger.Debug().Msg("planning skipped for short section")
		return fallbackPlan(req.Spec.Key, req.Topic, req.Spec.ExpectedWords, candidates, p.cfg), degradedScore
	}

	var plan SectionPlan
	usage, err := p.llm.GenerateStructured(ctx, llm.Request{
		Operation: "plan",
		System:    systemPrompt,
		Prompt:    planPrompt(req.Topic, req.Spec, req.Sources),
	}, &plan)
	p.record("plan", usage, err)

	if err == nil {
		available := make(map[uuid.UUID]struct{}, len(req.Sources))
		for _, s := range req.Sources {
			available[s.ID] = struct{}{}
		}
		var forbidden func(string) bool
		if prof, perr := profile.Get(req.DocumentType); perr == nil {
			forbidden = prof.IsForbidden
		}
		err = validatePlan(&plan, available, forbidden, p.cfg)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("plan rejected, using fallback")
		if p.metrics != nil {
			p.metrics.PlanFallbacks.Inc()
		}
		return fallbackPlan(req.Spec.Key, req.Topic, req.Spec.ExpectedWords, candidates, p.cfg), degradedScore
	}
	return &plan, validPlanScore
}

// retrieveChunks fetches evidence passages, topping up with abstract
// pseudo-chunks when retrieval signals low quality.
func (p *Pipeline) retrieveChunks(ctx context.Context, req Request, logger zerolog.Logger) ([]*domain.Chunk, error) {
	limit := req.ChunkLimit
	if limit <= 0 {
		limit = domain.DefaultGenerationConfig().ChunkLimit
	}

	sources := req.Sources
	if len(req.Spec.CandidateSourceIDs) > 0 {
		allowed := make(map[uuid.UUID]struct{}, len(req.Spec.CandidateSourceIDs))
		for _, id := range req.Spec.CandidateSourceIDs {
			allowed[id] = struct{}{}
		}
		var subset []*domain.SourceDocument
		for _, s := range req.Sources {
			if _, ok := allowed[s.ID]; ok {
				subset = append(subset, s)
			}
		}
		if len(subset) > 0 {
			sources = subset
		}
	}

	query := req.Topic + " " + req.Spec.Title
	chunks, err := p.retriever.Retrieve(ctx, retrieval.Request{
		JobID:   req.JobID,
		Query:   query,
		Sources: sources,
		Limit:   limit,
	})
	switch {
	case errors.Is(err, domain.ErrLowRetrievalQuality):
		logger.Debug().Int("chunks", len(chunks)).Msg("low retrieval quality, topping up with abstracts")
		extra := p.retriever.AbstractChunks(sources, limit-len(chunks))
		chunks = append(chunks, extra...)
	case err != nil:
		return nil, fmt.Errorf("retrieve passages for section %s: %w", req.Spec.Key, err)
	}
	return chunks, nil
}

// write runs WRITING and creates the draft.
func (p *Pipeline) write(ctx context.Context, req Request, plan *SectionPlan, chunks []*domain.Chunk) (*domain.SectionDraft, error) {
	content, _, err := p.generateText(ctx, llm.Request{
		Operation: "write",
		System:    systemPrompt,
		Prompt:    writePrompt(req.Topic, req.Spec, plan, chunks, req.PriorSummary),
	})
	if err != nil {
		return nil, fmt.Errorf("write section %s: %w", req.Spec.Key, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("write section %s: %w", req.Spec.Key, domain.ErrNoRelevantContent)
	}

	draft := &domain.SectionDraft{
		Key:     req.Spec.Key,
		Title:   req.Spec.Title,
		Content: content,
		Stage:   domain.SectionStageWriting,
	}
	p.rescore(draft, req)
	draft.WritingScore = draft.Metrics.Composite()
	return draft, nil
}

// reflect runs the bounded critique-and-revise loop when the policy
// calls for it. The kept draft never regresses: a cycle's result
// replaces it only when not worse, and the loop stops once improvement
// falls under the plateau epsilon.
func (p *Pipeline) reflect(ctx context.Context, req Request, draft *domain.SectionDraft, logger zerolog.Logger) {
	metrics := draft.Metrics
	decision := DecideReflection(req.Spec.Key, req.Spec.ExpectedWords, &metrics, p.cfg.DefaultReflectionCycles)
	if !decision.Use {
		logger.Debug().Str("reason", decision.Reason).Msg("reflection skipped")
		draft.ReflectionScore = degradedScore
		return
	}
	draft.Stage = domain.SectionStageReflecting

	bestScore := draft.Metrics.Composite()
	for cycle := 0; cycle < decision.MaxCycles; cycle++ {
		revised, _, err := p.generateText(ctx, llm.Request{
			Operation: "reflect",
			System:    systemPrompt,
			Prompt:    reflectPrompt(req.Topic, req.Spec, draft.Content, draft.Metrics),
		})
		if err != nil {
			logger.Warn().Err(err).Int("cycle", cycle).Msg("reflection cycle failed, keeping best draft")
			break
		}
		revised = strings.TrimSpace(revised)
		if revised == "" {
			break
		}

		candidate := &domain.SectionDraft{Key: draft.Key, Title: draft.Title, Content: revised}
		p.rescore(candidate, req)
		score := candidate.Metrics.Composite()

		if score >= bestScore {
			draft.Content = candidate.Content
			draft.Metrics = candidate.Metrics
			draft.WordCount = candidate.WordCount
			draft.CitedSourceIDs = candidate.CitedSourceIDs
		}
		draft.RevisionCount++

		if score-bestScore < p.cfg.PlateauEpsilon {
			break
		}
		bestScore = score
	}
	draft.ReflectionScore = draft.Metrics.Composite()
}

// score runs SCORING and freezes the draft.
func (p *Pipeline) score(draft *domain.SectionDraft) {
	draft.Stage = domain.SectionStageScoring
	metricsScore := draft.Metrics.Composite()
	draft.OverallScore = (draft.PlanningScore + draft.WritingScore + draft.ReflectionScore + metricsScore) / 4
	draft.Stage = domain.SectionStageDone
}

// rescore recomputes the metric bundle and derived fields for content.
func (p *Pipeline) rescore(draft *domain.SectionDraft, req Request) {
	draft.Metrics = p.engine.Score(draft.Content, req.Topic, draft.Title)
	draft.WordCount = len(strings.Fields(domain.StripCitationTokens(draft.Content)))
	draft.CitedSourceIDs = uniqueIDs(domain.ExtractCitationIDs(draft.Content))
}

func (p *Pipeline) generateText(ctx context.Context, req llm.Request) (string, llm.Usage, error) {
	start := time.Now()
	text, usage, err := p.llm.GenerateText(ctx, req)
	if p.analytics != nil && err == nil {
		p.analytics.Record(req.Operation, usage, time.Since(start))
	}
	return text, usage, err
}

func (p *Pipeline) record(operation string, usage llm.Usage, err error) {
	if p.analytics != nil && err == nil {
		p.analytics.Record(operation, usage, 0)
	}
}

func candidateIDs(req Request) []uuid.UUID {
	if len(req.Spec.CandidateSourceIDs) > 0 {
		return req.Spec.CandidateSourceIDs
	}
	ids := make([]uuid.UUID, len(req.Sources))
	for i, s := range req.Sources {
		ids[i] = s.ID
	}
	return ids
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
