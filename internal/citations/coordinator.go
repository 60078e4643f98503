// Package citations tracks cited sources across a generation job,
// enforces the profile's coverage target, and backfills evidence for
// uncited sources. The cited-source set only grows during a job.
package citations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/retrieval"
)

// ChunkRetriever supplies the best available passages used to rank and
// quote uncited sources. Satisfied by retrieval.Retriever.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]*domain.Chunk, error)
}

// ReferenceLister returns the author-year reference strings a source's
// own bibliography carries. Used by the secondary backfill pass.
type ReferenceLister interface {
	References(ctx context.Context, sourceID uuid.UUID) ([]string, error)
}

// CoverageTargeter supplies the coverage floor and fraction. Satisfied
// by profile.Profile.
type CoverageTargeter interface {
	CitationTarget(sourceCount int) int
}

// Coordinator owns the cited-source set for one job. It is mutated only
// by the single job driver, so no locking is required.
type Coordinator struct {
	jobID     uuid.UUID
	retriever ChunkRetriever
	refs      ReferenceLister
	cfg       config.CitationsConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger

	cited   map[uuid.UUID]struct{}
	records []domain.CitationRecord

	// backfilled counts evidence insertions per source against PerSourceCap.
	backfilled map[uuid.UUID]int
}

// NewCoordinator creates a per-job coordinator. refs may be nil when no
// reference-list collaborator is available; the secondary pass is then
// skipped.
func NewCoordinator(
	jobID uuid.UUID,
	retriever ChunkRetriever,
	refs ReferenceLister,
	cfg config.CitationsConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		jobID:      jobID,
		retriever:  retriever,
		refs:       refs,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With().Str("component", "citations").Str("job_id", jobID.String()).Logger(),
		cited:      make(map[uuid.UUID]struct{}),
		backfilled: make(map[uuid.UUID]int),
	}
}

// ObserveSection extracts citation tokens from a finished draft and
// grows the cited set. Tokens resolving outside the corpus are dropped
// from the draft, never renumbered.
func (c *Coordinator) ObserveSection(draft *domain.SectionDraft, corpus []*domain.SourceDocument) {
	valid := corpusSet(corpus)

	var dropped int
	for _, id := range domain.ExtractCitationIDs(draft.Content) {
		if _, ok := valid[id]; !ok {
			draft.Content = strings.ReplaceAll(draft.Content, domain.CitationToken(id), "")
			dropped++
			continue
		}
		if _, seen := c.cited[id]; !seen {
			c.cited[id] = struct{}{}
			c.records = append(c.records, domain.CitationRecord{
				Token:      domain.CitationToken(id),
				SourceID:   id,
				SectionKey: draft.Key,
			})
		}
	}
	if dropped > 0 {
		draft.Content = tidySpacing(draft.Content)
		draft.CitedSourceIDs = domain.ExtractCitationIDs(draft.Content)
		if c.metrics != nil {
			c.metrics.CitationsDropped.Add(float64(dropped))
		}
		c.logger.Warn().Int("dropped", dropped).Str("section", draft.Key).
			Msg("dropped citation tokens outside the corpus")
	}
}

// CitedCount returns the number of distinct cited sources.
func (c *Coordinator) CitedCount() int {
	return len(c.cited)
}

// CitedIDs returns the cited source ids in first-citation order.
func (c *Coordinator) CitedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.records))
	for _, r := range c.records {
		ids = append(ids, r.SourceID)
	}
	return ids
}

// Records returns the citation records accumulated so far.
func (c *Coordinator) Records() []domain.CitationRecord {
	out := make([]domain.CitationRecord, len(c.records))
	copy(out, c.records)
	return out
}

// EnsureCoverage backfills citations until the coverage target supplied
// by the structural profile is met or no usable material remains. It
// mutates the drafts in place and returns the number of citations added.
func (c *Coordinator) EnsureCoverage(ctx context.Context, drafts []*domain.SectionDraft, corpus []*domain.SourceDocument, targeter CoverageTargeter) (int, error) {
	target := targeter.CitationTarget(len(corpus))
	if c.CitedCount() >= target {
		return 0, nil
	}

	added, err := c.evidenceBackfill(ctx, drafts, corpus, target)
	if err != nil {
		return added, err
	}
	if c.CitedCount() < target && c.refs != nil {
		added += c.referenceBackfill(ctx, drafts, corpus, target)
	}
	if c.CitedCount() < target {
		c.logger.Warn().
			Int("cited", c.CitedCount()).
			Int("target", target).
			Msg("citation coverage below target after backfill")
	}
	return added, nil
}

// evidenceBackfill ranks uncited sources by their best chunk score and
// inserts a synthesized evidence sentence for each until the target is
// reached.
func (c *Coordinator) evidenceBackfill(ctx context.Context, drafts []*domain.SectionDraft, corpus []*domain.SourceDocument, target int) (int, error) {
	uncited := c.uncitedSources(corpus)
	if len(uncited) == 0 {
		return 0, nil
	}

	ranked, err := c.rankByBestChunk(ctx, uncited)
	if err != nil {
		return 0, err
	}

	var added int
	for _, candidate := range ranked {
		if c.CitedCount() >= target {
			break
		}
		if c.backfilled[candidate.source.ID] >= c.cfg.PerSourceCap {
			continue
		}

		sentence := c.evidenceSentence(candidate.source, candidate.bestChunk)
		c.insertEvidence(drafts, sentence)

		c.cited[candidate.source.ID] = struct{}{}
		c.backfilled[candidate.source.ID]++
		c.records = append(c.records, domain.CitationRecord{
			Token:      domain.CitationToken(candidate.source.ID),
			SourceID:   candidate.source.ID,
			SectionKey: c.synthesisKey(drafts),
			Backfilled: true,
		})
		added++
		if c.metrics != nil {
			c.metrics.CitationsBackfilled.WithLabelValues("evidence").Inc()
		}
	}
	return added, nil
}

// referenceBackfill appends plain author-year citations pulled from each
// source's own reference list, skipping strings already present
// verbatim anywhere in the drafts.
func (c *Coordinator) referenceBackfill(ctx context.Context, drafts []*domain.SectionDraft, corpus []*domain.SourceDocument, target int) int {
	var added int
	for _, source := range c.uncitedSources(corpus) {
		if c.CitedCount() >= target {
			break
		}
		refs, err := c.refs.References(ctx, source.ID)
		if err != nil {
			c.logger.Debug().Err(err).Str("source_id", source.ID.String()).Msg("reference list unavailable")
			continue
		}

		for _, ref := range refs {
			ref = strings.TrimSpace(ref)
			if ref == "" || c.presentVerbatim(drafts, ref) {
				continue
			}
			line := fmt.Sprintf("%s %s", ref, domain.CitationToken(source.ID))
			c.insertEvidence(drafts, line)
			c.cited[source.ID] = struct{}{}
			c.records = append(c.records, domain.CitationRecord{
				Token:      domain.CitationToken(source.ID),
				SourceID:   source.ID,
				SectionKey: c.synthesisKey(drafts),
				Backfilled: true,
			})
			added++
			if c.metrics != nil {
				c.metrics.CitationsBackfilled.WithLabelValues("reference_list").Inc()
			}
			break
		}
	}
	return added
}

type rankedSource struct {
	source    *domain.SourceDocument
	bestChunk *domain.Chunk
	bestScore float64
}

// rankByBestChunk orders uncited sources by the score of their best
// available chunk, descending. Sources with no retrievable chunk fall
// back to their abstract.
func (c *Coordinator) rankByBestChunk(ctx context.Context, uncited []*domain.SourceDocument) ([]rankedSource, error) {
	ranked := make([]rankedSource, 0, len(uncited))
	for _, source := range uncited {
		rs := rankedSource{source: source}

		chunks, err := c.retriever.Retrieve(ctx, retrieval.Request{
			JobID:   c.jobID,
			Query:   source.Title,
			Sources: []*domain.SourceDocument{source},
			Limit:   1,
		})
		switch {
		case err == nil || len(chunks) > 0:
			if len(chunks) > 0 {
				rs.bestChunk = chunks[0]
				rs.bestScore = chunks[0].Score
			}
		case isRecoverable(err):
			// abstract fallback below
		default:
			return nil, fmt.Errorf("rank uncited source %s: %w", source.ID, err)
		}

		if rs.bestChunk == nil && source.Abstract != "" {
			rs.bestChunk = &domain.Chunk{
				SourceID: source.ID,
				Content:  source.Abstract,
				Tier:     domain.TierAbstract,
			}
		}
		if rs.bestChunk != nil {
			ranked = append(ranked, rs)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].bestScore > ranked[j].bestScore
	})
	return ranked, nil
}

// evidenceSentence synthesizes a short cited sentence from a source's
// best chunk: cleaned, truncated at a word boundary, with an author-year
// parenthetical and the neutral token appended.
func (c *Coordinator) evidenceSentence(source *domain.SourceDocument, chunk *domain.Chunk) string {
	text := cleanSnippet(chunk.Content)
	text = truncateAtWord(text, c.cfg.MaxSnippetChars)
	text = strings.TrimRight(text, ".,;: ")

	attribution := authorYear(source)
	if attribution != "" {
		return fmt.Sprintf("%s (%s) %s.", text, attribution, domain.CitationToken(source.ID))
	}
	return fmt.Sprintf("%s %s.", text, domain.CitationToken(source.ID))
}

// insertEvidence places a sentence into the synthesis section when one
// exists, else appends a dedicated section draft.
func (c *Coordinator) insertEvidence(drafts []*domain.SectionDraft, sentence string) {
	if target := c.findSynthesisSection(drafts); target != nil {
		target.Content = strings.TrimRight(target.Content, "\n") + "\n\n" + sentence
		target.CitedSourceIDs = domain.ExtractCitationIDs(target.Content)
		return
	}
	// No synthesis section: grow the last draft rather than losing the
	// evidence. Callers always pass at least one draft.
	if len(drafts) > 0 {
		last := drafts[len(drafts)-1]
		last.Content = strings.TrimRight(last.Content, "\n") + "\n\n" + sentence
		last.CitedSourceIDs = domain.ExtractCitationIDs(last.Content)
	}
}

func (c *Coordinator) findSynthesisSection(drafts []*domain.SectionDraft) *domain.SectionDraft {
	for _, heading := range c.cfg.SynthesisHeadings {
		for _, d := range drafts {
			if strings.EqualFold(d.Key, heading) || strings.EqualFold(d.Title, heading) {
				return d
			}
		}
	}
	return nil
}

func (c *Coordinator) synthesisKey(drafts []*domain.SectionDraft) string {
	if target := c.findSynthesisSection(drafts); target != nil {
		return target.Key
	}
	if len(drafts) > 0 {
		return drafts[len(drafts)-1].Key
	}
	return ""
}

func (c *Coordinator) uncitedSources(corpus []*domain.SourceDocument) []*domain.SourceDocument {
	var out []*domain.SourceDocument
	for _, s := range corpus {
		if _, ok := c.cited[s.ID]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *Coordinator) presentVerbatim(drafts []*domain.SectionDraft, ref string) bool {
	for _, d := range drafts {
		if strings.Contains(d.Content, ref) {
			return true
		}
	}
	return false
}

func corpusSet(corpus []*domain.SourceDocument) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(corpus))
	for _, s := range corpus {
		set[s.ID] = struct{}{}
	}
	return set
}

func isRecoverable(err error) bool {
	return errors.Is(err, domain.ErrNoRelevantContent) || errors.Is(err, domain.ErrLowRetrievalQuality)
}

// authorYear formats the attribution parenthetical: first author's last
// name (et al. for multiple authors) plus the publication year.
func authorYear(source *domain.SourceDocument) string {
	var parts []string
	if len(source.Authors) > 0 {
		name := lastName(source.Authors[0].Name)
		if len(source.Authors) > 1 {
			name += " et al."
		}
		if name != "" {
			parts = append(parts, name)
		}
	}
	if source.PublicationYear > 0 {
		parts = append(parts, fmt.Sprintf("%d", source.PublicationYear))
	}
	return strings.Join(parts, ", ")
}

func lastName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// cleanSnippet strips markup remnants and collapses whitespace.
func cleanSnippet(text string) string {
	replacer := strings.NewReplacer("\n", " ", "\t", " ", "#", "", "*", "", "`", "")
	return collapseSpaces(replacer.Replace(text))
}

// truncateAtWord cuts text to at most max characters, never mid-word.
// When the nearest word boundary sits unreasonably early, the hard limit
// wins over the boundary.
func truncateAtWord(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := strings.LastIndex(text[:max], " ")
	if cut < int(math.Floor(float64(max)*0.5)) {
		cut = max
	}
	return strings.TrimSpace(text[:cut])
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// tidySpacing collapses runs of spaces left by token removal while
// preserving line and paragraph breaks.
var spaceRuns = regexp.MustCompile(`[ \t]{2,}`)

func tidySpacing(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.ReplaceAll(text, " .", ".")
}
