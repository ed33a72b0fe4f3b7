package service

import (
	"context"
	"log/slog"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/platform/logger"
	"github.com/rl1809/med-provenance/internal/port"
)

// MirrorService backs the raw mirror write endpoint used by operators to
// backfill records that are already on the ledger.
type MirrorService struct {
	mirror port.MirrorRepository
	logger *slog.Logger
}

func NewMirrorService(mirror port.MirrorRepository, l *slog.Logger) *MirrorService {
	if l == nil {
		l = logger.Discard()
	}
	return &MirrorService{mirror: mirror, logger: l}
}

// Store validates and appends record. Repeated identifiers are not rejected.
func (s *MirrorService) Store(ctx context.Context, record domain.ProductRecord) error {
	if err := record.ProductFields.Validate(); err != nil {
		return err
	}
	if err := s.mirror.Store(ctx, &record); err != nil {
		s.logger.ErrorContext(ctx, "mirror write failed", "identifier", record.Identifier, "error", err)
		return ensureKind(domain.ErrMirrorWriteFailure, err)
	}
	s.logger.InfoContext(ctx, "mirror record stored", "identifier", record.Identifier)
	return nil
}
