package port

import (
	"context"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

type EventPublisher interface {
	PublishRegistered(ctx context.Context, record domain.ProductRecord, confirmation domain.Confirmation) error
}
