package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks missing or invalid collaborator settings, surfaced at startup.
	ErrConfig = errors.New("invalid configuration")
	// ErrInvalidInput marks malformed query parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbedding marks a query whose embedding lanes all failed.
	ErrEmbedding = errors.New("embedding failed")
	// ErrSearch marks a vector store that was unreachable or rejected the request.
	ErrSearch = errors.New("search failed")
	// ErrRerank marks an unreachable reranker; recovered locally with fused ordering.
	ErrRerank = errors.New("rerank failed")
	// ErrTemporary marks transient collaborator failures eligible for retry.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
