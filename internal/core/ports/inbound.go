package ports

import (
	"context"

	"github.com/avolkov/grounding/internal/core/domain"
)

// EvidenceSearcher is the inbound contract for the retrieval pipeline.
//
// A fatal collaborator failure (all embedding lanes down, vector store
// unreachable) is reported inside the returned pack via its Err field; the
// error return is reserved for malformed queries.
type EvidenceSearcher interface {
	Search(ctx context.Context, query domain.Query) (*domain.EvidencePack, error)
}
