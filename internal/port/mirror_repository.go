package port

import (
	"context"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

type MirrorRepository interface {
	// Store inserts a new entry and stamps AddedAt; a duplicate identifier yields a second entry
	Store(ctx context.Context, record *domain.ProductRecord) error

	// Fetch returns domain.ErrNotFound when no entry exists for identifier
	Fetch(ctx context.Context, identifier uint64) (*domain.ProductRecord, error)
}
