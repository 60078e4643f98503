package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

type stubBackend struct {
	name    string
	sources []*domain.SourceDocument
	err     error
}

func (s *stubBackend) Search(ctx context.Context, topic string, maxResults int) ([]*domain.SourceDocument, error) {
	return s.sources, s.err
}

func (s *stubBackend) Name() string { return s.name }

func TestMultiBackendMergesAndDedupes(t *testing.T) {
	t.Parallel()

	primary := &stubBackend{name: "openalex", sources: []*domain.SourceDocument{
		{Title: "Shared paper", DOI: "10.1/shared"},
		{Title: "OpenAlex only", DOI: "10.1/oa"},
	}}
	secondary := &stubBackend{name: "arxiv", sources: []*domain.SourceDocument{
		{Title: "Shared paper preprint", DOI: "10.1/shared"},
		{Title: "No DOI preprint"},
	}}

	m := NewMultiBackend(zerolog.Nop(), primary, secondary)
	assert.Equal(t, "openalex+arxiv", m.Name())

	sources, err := m.Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "Shared paper", sources[0].Title)
	assert.Equal(t, "OpenAlex only", sources[1].Title)
	assert.Equal(t, "No DOI preprint", sources[2].Title)
}

func TestMultiBackendTruncatesToMaxResults(t *testing.T) {
	t.Parallel()

	b := &stubBackend{name: "openalex", sources: []*domain.SourceDocument{
		{Title: "a"}, {Title: "b"}, {Title: "c"},
	}}

	sources, err := NewMultiBackend(zerolog.Nop(), b).Search(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestMultiBackendToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	healthy := &stubBackend{name: "openalex", sources: []*domain.SourceDocument{{Title: "a"}}}
	broken := &stubBackend{name: "arxiv", err: errors.New("upstream down")}

	sources, err := NewMultiBackend(zerolog.Nop(), healthy, broken).Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestMultiBackendAllFailed(t *testing.T) {
	t.Parallel()

	broken := &stubBackend{name: "arxiv", err: errors.New("upstream down")}
	_, err := NewMultiBackend(zerolog.Nop(), broken).Search(context.Background(), "anything", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all search backends failed")
}

func TestMultiBackendNoBackends(t *testing.T) {
	t.Parallel()

	_, err := NewMultiBackend(zerolog.Nop()).Search(context.Background(), "anything", 0)
	require.Error(t, err)
}
