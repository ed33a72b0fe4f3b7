package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/platform/logger"
	"github.com/rl1809/med-provenance/internal/platform/metrics"
	"github.com/rl1809/med-provenance/internal/port"
)

const tracerName = "github.com/rl1809/med-provenance/internal/core/service"

type RegistrationService struct {
	wallet    port.Wallet
	ledger    port.Ledger
	mirror    port.MirrorRepository
	codec     port.TokenCodec
	baseURL   string
	publisher port.EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*RegistrationService)

func WithLogger(l *slog.Logger) Option {
	return func(s *RegistrationService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RegistrationService) {
		s.metrics = m
	}
}

// WithPublisher announces completed registrations. Publication is best effort.
func WithPublisher(p port.EventPublisher) Option {
	return func(s *RegistrationService) {
		s.publisher = p
	}
}

func NewRegistrationService(
	wallet port.Wallet,
	ledger port.Ledger,
	mirror port.MirrorRepository,
	codec port.TokenCodec,
	baseURL string,
	opts ...Option,
) *RegistrationService {
	s := &RegistrationService{
		wallet:  wallet,
		ledger:  ledger,
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

// Connect moves an idle session to WalletConnected by asking the wallet for
// an authorized account.
func (s *RegistrationService) Connect(ctx context.Context, sess *Session) error {
	if sess.State != domain.StateIdle {
		return fmt.Errorf("%w: connect from %s", domain.ErrInvalidState, sess.State)
	}

	sess.transition(domain.StateWalletConnecting)
	signer, err := s.wallet.Connect(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "wallet connect failed", "session", sess.ID, "error", err)
		s.metrics.ObserveRegistration(outcome(domain.ErrWalletUnavailable))
		return sess.fail(ensureKind(domain.ErrWalletUnavailable, err))
	}

	sess.Signer = signer
	sess.transition(domain.StateWalletConnected)
	s.logger.InfoContext(ctx, "wallet connected", "session", sess.ID, "account", signer.Account())
	return nil
}

// Register runs a connected session from submission to a generated token.
// Missing fields are rejected before any ledger or mirror call and leave the
// session connected. Any later failure moves the session to Error; nothing
// is retried or rolled back.
func (s *RegistrationService) Register(ctx context.Context, sess *Session, fields domain.ProductFields) (*domain.VerifiedRecord, error) {
	if sess.State != domain.StateWalletConnected {
		return nil, fmt.Errorf("%w: register from %s", domain.ErrInvalidState, sess.State)
	}
	if err := fields.Validate(); err != nil {
		s.metrics.ObserveRegistration(outcome(err))
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "registration.register",
		trace.WithAttributes(attribute.String("session.id", sess.ID.String())))
	defer span.End()

	result, err := s.register(ctx, sess, fields)
	s.metrics.ObserveRegistration(outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("product.identifier", int64(result.Record.Identifier)))
	return result, nil
}

func (s *RegistrationService) register(ctx context.Context, sess *Session, fields domain.ProductFields) (*domain.VerifiedRecord, error) {
	log := s.logger.With("session", sess.ID)

	sess.transition(domain.StateSubmitting)
	sub, err := s.ledger.Submit(ctx, sess.Signer, fields)
	if err != nil {
		log.ErrorContext(ctx, "ledger submission failed", "error", err)
		return nil, sess.fail(ensureKind(domain.ErrSubmissionRejected, err))
	}
	log.InfoContext(ctx, "ledger submission accepted", "tx", sub.TxHash)

	sess.transition(domain.StateConfirming)
	start := time.Now()
	conf, err := s.ledger.Confirm(ctx, sub)
	if err != nil {
		log.ErrorContext(ctx, "ledger confirmation failed", "tx", sub.TxHash, "error", err)
		return nil, sess.fail(err)
	}
	s.metrics.ObserveConfirmation(time.Since(start))
	sess.Confirmation = &conf
	log.InfoContext(ctx, "ledger confirmed",
		"tx", conf.TxHash, "identifier", conf.Identifier, "block", conf.BlockNumber, "contract_id", conf.ContractID)

	sess.transition(domain.StateMirroring)
	record := domain.ProductRecord{
		Identifier:    conf.Identifier,
		ProductFields: fields,
		Owner:         conf.Owner,
	}
	if err := s.mirror.Store(ctx, &record); err != nil {
		// The ledger write stands; only the reconciler can make this record reachable.
		s.metrics.IncOrphaned()
		log.ErrorContext(ctx, "mirror write failed, orphaned ledger record",
			"identifier", conf.Identifier, "tx", conf.TxHash, "error", err)
		return nil, sess.fail(ensureKind(domain.ErrMirrorWriteFailure, err))
	}

	sess.transition(domain.StateTokenGenerating)
	verifyURL, token, err := renderToken(s.codec, s.baseURL, record.Identifier)
	if err != nil {
		log.ErrorContext(ctx, "token generation failed", "identifier", record.Identifier, "error", err)
		return nil, sess.fail(err)
	}

	result := &domain.VerifiedRecord{Record: record, VerifyURL: verifyURL, Token: token}
	sess.Result = result
	sess.transition(domain.StateDone)
	log.InfoContext(ctx, "registration complete", "identifier", record.Identifier)

	if s.publisher != nil {
		if err := s.publisher.PublishRegistered(ctx, record, conf); err != nil {
			log.WarnContext(ctx, "publish registration event failed", "identifier", record.Identifier, "error", err)
		}
	}
	return result, nil
}

func renderToken(codec port.TokenCodec, baseURL string, identifier uint64) (string, []byte, error) {
	verifyURL, err := codec.Payload(baseURL, identifier)
	if err != nil {
		return "", nil, err
	}
	token, err := codec.Encode(baseURL, identifier)
	if err != nil {
		return "", nil, err
	}
	return verifyURL, token, nil
}
