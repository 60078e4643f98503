package httpserver

import (
	"time"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Generation job response types for JSON serialization.

type createGenerationResponse struct {
	JobID      string    `json:"job_id"`
	WorkflowID string    `json:"workflow_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	Message    string    `json:"message"`
}

type jobStatusResponse struct {
	JobID        string          `json:"job_id"`
	Topic        string          `json:"topic"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Config       *configResponse `json:"config,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Duration     string          `json:"duration,omitempty"`
}

type configResponse struct {
	DocumentType    string `json:"document_type"`
	TargetSources   int    `json:"target_sources"`
	EnableDiscovery bool   `json:"enable_discovery"`
	ChunkLimit      int    `json:"chunk_limit,omitempty"`
	LLMModel        string `json:"llm_model,omitempty"`
}

type jobSummaryResponse struct {
	JobID       string     `json:"job_id"`
	Topic       string     `json:"topic"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
}

type listJobsResponse struct {
	Jobs          []jobSummaryResponse `json:"jobs"`
	NextPageToken string               `json:"next_page_token,omitempty"`
	TotalCount    int                  `json:"total_count"`
}

type cancelGenerationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	CurrentStatus string `json:"current_status"`
}

type sectionStructureResponse struct {
	Key       string  `json:"key"`
	Title     string  `json:"title"`
	WordCount int     `json:"word_count"`
	Score     float64 `json:"score"`
	Revisions int     `json:"revisions"`
}

type qualityMetricsResponse struct {
	CitationCoverage float64 `json:"citation_coverage"`
	Relevance        float64 `json:"relevance"`
	Density          float64 `json:"density"`
	Structure        float64 `json:"structure"`
	Composite        float64 `json:"composite"`
}

type analyticsResponse struct {
	TotalCalls    int            `json:"total_calls"`
	TotalTokens   int            `json:"total_tokens"`
	CallsByKind   map[string]int `json:"calls_by_kind,omitempty"`
	TotalDuration string         `json:"total_duration"`
}

type resultResponse struct {
	JobID            string                     `json:"job_id"`
	Content          string                     `json:"content"`
	CitationMap      map[string]string          `json:"citation_map"`
	WordCount        int                        `json:"word_count"`
	SectionStructure []sectionStructureResponse `json:"section_structure"`
	QualityMetrics   qualityMetricsResponse     `json:"quality_metrics"`
	Analytics        analyticsResponse          `json:"tool_call_analytics"`
	Warnings         []string                   `json:"warnings,omitempty"`
}

// Converter functions

func domainJobToStatusResponse(j *domain.GenerationJob) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:        j.ID.String(),
		Topic:        j.Topic,
		Status:       string(j.Status),
		ErrorMessage: j.ErrorMessage,
		Config:       domainConfigToResponse(j.Config),
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
	if d := j.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func domainConfigToResponse(c domain.GenerationConfig) *configResponse {
	return &configResponse{
		DocumentType:    c.DocumentType,
		TargetSources:   c.TargetSources,
		EnableDiscovery: c.EnableDiscovery,
		ChunkLimit:      c.ChunkLimit,
		LLMModel:        c.LLMModel,
	}
}

func domainJobToSummary(j *domain.GenerationJob) jobSummaryResponse {
	resp := jobSummaryResponse{
		JobID:       j.ID.String(),
		Topic:       j.Topic,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
	if d := j.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func domainResultToResponse(r *domain.GenerationResult) resultResponse {
	citationMap := make(map[string]string, len(r.CitationMap))
	for token, sourceID := range r.CitationMap {
		citationMap[token] = sourceID.String()
	}

	structure := make([]sectionStructureResponse, len(r.SectionStructure))
	for i, s := range r.SectionStructure {
		structure[i] = sectionStructureResponse{
			Key:       s.Key,
			Title:     s.Title,
			WordCount: s.WordCount,
			Score:     s.Score,
			Revisions: s.Revisions,
		}
	}

	return resultResponse{
		JobID:            r.JobID.String(),
		Content:          r.Content,
		CitationMap:      citationMap,
		WordCount:        r.WordCount,
		SectionStructure: structure,
		QualityMetrics: qualityMetricsResponse{
			CitationCoverage: r.QualityMetrics.CitationCoverage,
			Relevance:        r.QualityMetrics.Relevance,
			Density:          r.QualityMetrics.Density,
			Structure:        r.QualityMetrics.Structure,
			Composite:        r.QualityMetrics.Composite(),
		},
		Analytics: analyticsResponse{
			TotalCalls:    r.ToolCallAnalytics.TotalCalls,
			TotalTokens:   r.ToolCallAnalytics.TotalTokens,
			CallsByKind:   r.ToolCallAnalytics.CallsByKind,
			TotalDuration: r.ToolCallAnalytics.TotalDuration.String(),
		},
		Warnings: r.Warnings,
	}
}
