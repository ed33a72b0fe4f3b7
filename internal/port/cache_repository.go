package port

import (
	"context"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

type CacheRepository interface {
	// GetRecord returns nil, nil on a miss
	GetRecord(ctx context.Context, identifier uint64) (*domain.ProductRecord, error)

	// SetRecord caches a mirrored record; records are immutable so no invalidation exists
	SetRecord(ctx context.Context, record domain.ProductRecord) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes a key so the guarded work can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
