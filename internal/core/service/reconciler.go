package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/platform/logger"
	"github.com/rl1809/med-provenance/internal/platform/metrics"
	"github.com/rl1809/med-provenance/internal/port"
)

const maxReconcileRange = 5000

// Reconciler mirrors ledger registrations that never reached the mirror,
// typically because the synchronous workflow failed after confirmation.
// It only scans blocks at least lag behind the head so in-flight
// registrations finish their own mirror write first.
type Reconciler struct {
	scanner port.LedgerScanner
	mirror  port.MirrorRepository
	cache   port.CacheRepository
	scheme  domain.IdentifierScheme
	lag     uint64
	next    uint64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type ReconcilerConfig struct {
	Scheme     domain.IdentifierScheme
	StartBlock uint64
	Lag        uint64
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Cache, when set, guards each event with an idempotency key so several
	// reconciler instances do not mirror the same event twice.
	Cache port.CacheRepository
}

func NewReconciler(scanner port.LedgerScanner, mirror port.MirrorRepository, cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		scanner: scanner,
		mirror:  mirror,
		cache:   cfg.Cache,
		scheme:  cfg.Scheme,
		lag:     cfg.Lag,
		next:    cfg.StartBlock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if r.logger == nil {
		r.logger = logger.Discard()
	}
	if r.scheme == "" {
		r.scheme = domain.IdentifierFromEvent
	}
	return r
}

// Next is the first block the following pass will scan.
func (r *Reconciler) Next() uint64 {
	return r.next
}

// RunOnce scans one block range and returns how many records it mirrored.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	head, err := r.scanner.Head(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger head: %w", err)
	}
	if head < r.lag {
		return 0, nil
	}
	to := head - r.lag
	if to < r.next {
		return 0, nil
	}
	if to-r.next >= maxReconcileRange {
		to = r.next + maxReconcileRange - 1
	}

	events, err := r.scanner.Registrations(ctx, r.next, to)
	if err != nil {
		return 0, fmt.Errorf("scan blocks %d-%d: %w", r.next, to, err)
	}

	mirrored := 0
	for _, ev := range events {
		ok, err := r.reconcile(ctx, ev)
		if err != nil {
			return mirrored, err
		}
		if ok {
			mirrored++
		}
	}

	r.next = to + 1
	return mirrored, nil
}

func (r *Reconciler) reconcile(ctx context.Context, ev domain.RegistrationEvent) (bool, error) {
	identifier := ev.Identifier(r.scheme)

	_, err := r.mirror.Fetch(ctx, identifier)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("mirror fetch %d: %w", identifier, err)
	}

	key := fmt.Sprintf("reconcile:%s:%d", ev.TxHash, ev.ContractID)
	if r.cache != nil {
		ok, err := r.cache.SetIdempotency(ctx, key)
		if err != nil {
			return false, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	fields, owner, err := r.scanner.Product(ctx, ev.ContractID)
	if err != nil {
		r.release(ctx, key)
		return false, fmt.Errorf("read product %d: %w", ev.ContractID, err)
	}

	record := domain.ProductRecord{Identifier: identifier, ProductFields: fields, Owner: owner}
	if err := r.mirror.Store(ctx, &record); err != nil {
		r.release(ctx, key)
		return false, fmt.Errorf("mirror store %d: %w", identifier, err)
	}

	r.metrics.IncReconciled()
	r.logger.InfoContext(ctx, "reconciled ledger record",
		"identifier", identifier, "contract_id", ev.ContractID, "tx", ev.TxHash, "block", ev.BlockNumber)
	return true, nil
}

func (r *Reconciler) release(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.ReleaseIdempotency(ctx, key); err != nil {
		r.logger.WarnContext(ctx, "release idempotency key failed", "key", key, "error", err)
	}
}

// Run calls RunOnce every interval until ctx is cancelled. Pass failures are
// logged and retried on the next tick.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "reconcile pass failed", "next_block", r.next, "error", err)
		} else if n > 0 {
			r.logger.InfoContext(ctx, "reconcile pass mirrored records", "count", n, "next_block", r.next)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
