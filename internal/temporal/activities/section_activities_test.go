package activities

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/llm"
	"github.com/sadiq-codes/genpaper-sub003/internal/quality"
	"github.com/sadiq-codes/genpaper-sub003/internal/retrieval"
)

type stubSectionLLM struct {
	mu        sync.Mutex
	callsByOp map[string]int

	writeText string
	writeErr  error
	summary   string
}

func newStubSectionLLM() *stubSectionLLM {
	return &stubSectionLLM{callsByOp: make(map[string]int)}
}

func (s *stubSectionLLM) GenerateText(_ context.Context, req llm.Request) (string, llm.Usage, error) {
	s.mu.Lock()
	s.callsByOp[req.Operation]++
	s.mu.Unlock()

	switch req.Operation {
	case "write", "reflect":
		if s.writeErr != nil {
			return "", llm.Usage{}, s.writeErr
		}
		return s.writeText, llm.Usage{InputTokens: 500, OutputTokens: 350}, nil
	case "summarize":
		return s.summary, llm.Usage{InputTokens: 120, OutputTokens: 40}, nil
	}
	return "", llm.Usage{}, fmt.Errorf("unexpected operation %q", req.Operation)
}

func (s *stubSectionLLM) GenerateStructured(_ context.Context, req llm.Request, _ interface{}) (llm.Usage, error) {
	s.mu.Lock()
	s.callsByOp[req.Operation]++
	s.mu.Unlock()
	return llm.Usage{}, fmt.Errorf("structured output not stubbed")
}

func (s *stubSectionLLM) Provider() string { return "stub" }
func (s *stubSectionLLM) Model() string    { return "stub-chat" }

func (s *stubSectionLLM) calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsByOp[op]
}

type stubSectionRetriever struct {
	chunks []*domain.Chunk
}

func (r *stubSectionRetriever) Retrieve(context.Context, retrieval.Request) ([]*domain.Chunk, error) {
	return r.chunks, nil
}

func (r *stubSectionRetriever) AbstractChunks([]*domain.SourceDocument, int) []*domain.Chunk {
	return nil
}

func pipelineTestConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PlanningThresholdWords:  400,
		DefaultReflectionCycles: 1,
		PlateauEpsilon:          1.5,
		MinOutlinePoints:        2,
		MinCitationSlots:        1,
	}
}

func TestGenerateSection(t *testing.T) {
	source := &domain.SourceDocument{
		ID:    uuid.New(),
		Title: "Sparse Attention Mechanisms",
	}
	// ExpectedWords below the planning threshold keeps the pipeline to a
	// single write call, so analytics are easy to pin down.
	spec := domain.SectionSpec{Key: "conclusion", Title: "Conclusion", ExpectedWords: 250}

	newEnv := func(service *stubSectionLLM) (*testsuite.TestActivityEnvironment, *SectionActivities) {
		act := NewSectionActivities(
			service,
			&stubSectionRetriever{chunks: []*domain.Chunk{
				{SourceID: source.ID, Content: "Sparse attention scales to long inputs.", Score: 0.8, Tier: domain.TierPrimary},
			}},
			quality.NewEngine(),
			pipelineTestConfig(),
			nil,
			zerolog.Nop(),
		)
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(act.GenerateSection)
		env.RegisterActivity(act.SummarizeSection)
		return env, act
	}

	t.Run("returns frozen draft with per-call analytics", func(t *testing.T) {
		service := newStubSectionLLM()
		service.writeText = "Sparse attention mechanisms reduce cost while keeping accuracy " +
			domain.CitationToken(source.ID) + ". Further work should quantify the recall tradeoff."
		env, act := newEnv(service)

		val, err := env.ExecuteActivity(act.GenerateSection, GenerateSectionInput{
			JobID:   uuid.New(),
			Topic:   "sparse attention mechanisms",
			Spec:    spec,
			Sources: []*domain.SourceDocument{source},
		})
		require.NoError(t, err)

		var output GenerateSectionOutput
		require.NoError(t, val.Get(&output))

		require.NotNil(t, output.Draft)
		assert.Equal(t, "conclusion", output.Draft.Key)
		assert.Equal(t, domain.SectionStageDone, output.Draft.Stage)
		assert.Positive(t, output.Draft.WordCount)
		assert.Equal(t, []uuid.UUID{source.ID}, output.Draft.CitedSourceIDs)

		assert.Equal(t, 1, output.Analytics.TotalCalls)
		assert.Equal(t, 850, output.Analytics.TotalTokens)
		assert.Equal(t, 1, output.Analytics.CallsByKind["write"])

		assert.Zero(t, service.calls("plan"), "short sections skip planning")
		assert.Zero(t, service.calls("reflect"), "short sections skip reflection")
	})

	t.Run("empty corpus fails without retry", func(t *testing.T) {
		service := newStubSectionLLM()
		env, act := newEnv(service)

		_, err := env.ExecuteActivity(act.GenerateSection, GenerateSectionInput{
			JobID: uuid.New(),
			Topic: "sparse attention mechanisms",
			Spec:  spec,
		})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "user_action", appErr.Type())
		assert.True(t, appErr.NonRetryable())
		assert.Zero(t, service.calls("write"))
	})

	t.Run("rate limited write stays retryable", func(t *testing.T) {
		service := newStubSectionLLM()
		service.writeErr = &domain.RateLimitError{Source: "openai"}
		env, act := newEnv(service)

		_, err := env.ExecuteActivity(act.GenerateSection, GenerateSectionInput{
			JobID:   uuid.New(),
			Topic:   "sparse attention mechanisms",
			Spec:    spec,
			Sources: []*domain.SourceDocument{source},
		})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "transient", appErr.Type())
		assert.False(t, appErr.NonRetryable())
	})

	t.Run("summarize trims and records usage", func(t *testing.T) {
		service := newStubSectionLLM()
		service.summary = "  The conclusion restates the efficiency gains. \n"
		env, act := newEnv(service)

		val, err := env.ExecuteActivity(act.SummarizeSection, SummarizeSectionInput{
			JobID: uuid.New(),
			Draft: &domain.SectionDraft{Key: "conclusion", Title: "Conclusion", Content: "Closing text."},
		})
		require.NoError(t, err)

		var output SummarizeSectionOutput
		require.NoError(t, val.Get(&output))
		assert.Equal(t, "The conclusion restates the efficiency gains.", output.Summary)
		assert.Equal(t, 1, output.Analytics.CallsByKind["summarize"])
		assert.Equal(t, 160, output.Analytics.TotalTokens)
	})
}
