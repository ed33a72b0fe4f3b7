package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/platform/logger"
	"github.com/rl1809/med-provenance/internal/platform/metrics"
	"github.com/rl1809/med-provenance/internal/port"
)

// QueryService answers verification lookups from the mirror only.
type QueryService struct {
	mirror  port.MirrorRepository
	cache   port.CacheRepository
	codec   port.TokenCodec
	baseURL string
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type QueryOption func(*QueryService)

// WithCache puts a read-through cache in front of the mirror.
func WithCache(c port.CacheRepository) QueryOption {
	return func(s *QueryService) {
		s.cache = c
	}
}

func WithQueryLogger(l *slog.Logger) QueryOption {
	return func(s *QueryService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithQueryMetrics(m *metrics.Metrics) QueryOption {
	return func(s *QueryService) {
		s.metrics = m
	}
}

func NewQueryService(mirror port.MirrorRepository, codec port.TokenCodec, baseURL string, opts ...QueryOption) *QueryService {
	s := &QueryService{
		mirror:  mirror,
		codec:   codec,
		baseURL: baseURL,
		logger:  logger.Discard(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup fetches the mirrored record and regenerates its token.
// Returns domain.ErrNotFound without side effects for unknown identifiers.
func (s *QueryService) Lookup(ctx context.Context, identifier uint64) (*domain.VerifiedRecord, error) {
	ctx, span := s.tracer.Start(ctx, "verification.lookup",
		trace.WithAttributes(attribute.Int64("product.identifier", int64(identifier))))
	defer span.End()

	record, err := s.fetch(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.ObserveLookup("not_found")
			return nil, err
		}
		s.metrics.ObserveLookup("error")
		span.RecordError(err)
		return nil, err
	}

	verifyURL, token, err := renderToken(s.codec, s.baseURL, record.Identifier)
	if err != nil {
		s.metrics.ObserveLookup("error")
		return nil, err
	}
	s.metrics.ObserveLookup("found")
	return &domain.VerifiedRecord{Record: *record, VerifyURL: verifyURL, Token: token}, nil
}

// LookupURL resolves a scanned verification URL.
func (s *QueryService) LookupURL(ctx context.Context, rawURL string) (*domain.VerifiedRecord, error) {
	identifier, err := s.codec.ParseIdentifier(rawURL)
	if err != nil {
		return nil, err
	}
	return s.Lookup(ctx, identifier)
}

func (s *QueryService) fetch(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	if s.cache != nil {
		record, err := s.cache.GetRecord(ctx, identifier)
		if err != nil {
			s.logger.WarnContext(ctx, "cache read failed", "identifier", identifier, "error", err)
		} else if record != nil {
			return record, nil
		}
	}

	record, err := s.mirror.Fetch(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRecord(ctx, *record); err != nil {
			s.logger.WarnContext(ctx, "cache write failed", "identifier", identifier, "error", err)
		}
	}
	return record, nil
}
