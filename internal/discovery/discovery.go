// Package discovery provides search backends for finding candidate sources
// beyond a job's pinned set.
package discovery

import (
	"context"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// SearchBackend is the external search collaborator consulted by the
// collector when discovery is enabled.
type SearchBackend interface {
	// Search returns up to maxResults candidate sources for the topic,
	// best-ranked first. Sources carry a relevance score when the backend
	// supplies one; the collector applies its own on-topic filtering either
	// way.
	Search(ctx context.Context, topic string, maxResults int) ([]*domain.SourceDocument, error)

	// Name returns a human-readable backend name for logs and warnings.
	Name() string
}
