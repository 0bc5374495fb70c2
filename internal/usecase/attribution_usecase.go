package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// AttributionConfig bounds delivery to the attribution sink.
type AttributionConfig struct {
	MaxAttempts     int
	Backoff         time.Duration
	AttemptTimeout  time.Duration
	DefaultCampaign string
	DefaultPageURL  string
	// Async delivers completion notifications on a detached context
	// instead of before the webhook response.
	Async bool
}

func (c *AttributionConfig) withDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultAttributionAttempts
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttributionAttemptTimeout
	}
	if c.DefaultCampaign == "" {
		c.DefaultCampaign = "default"
	}
}

// AttributionOutcome is the bookkeeping of one delivery.
type AttributionOutcome struct {
	Success  bool
	Skipped  bool
	Attempts int
	Source   domain.AttributionSource
	Err      error
}

// Metadata renders the outcome as entry metadata.
func (o AttributionOutcome) Metadata() domain.Metadata {
	m := domain.Metadata{
		domain.MetaAttributionSuccess:  o.Success,
		domain.MetaAttributionAttempts: o.Attempts,
		domain.MetaAttributionSource:   string(o.Source),
	}
	if o.Err != nil {
		m[domain.MetaAttributionError] = o.Err.Error()
	}
	return m
}

// AttributionUseCase captures tracking params and forwards conversions to
// the attribution sink. Everything here is advisory: errors are recorded
// and logged, never returned into a money path.
type AttributionUseCase struct {
	sink    AttributionSink
	store   AttributionStore
	entries EntryRepository
	users   UserRepository
	clock   Clock
	cfg     AttributionConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewAttributionUseCase creates an AttributionUseCase. sink and store may be nil.
func NewAttributionUseCase(
	sink AttributionSink,
	store AttributionStore,
	entries EntryRepository,
	users UserRepository,
	clock Clock,
	cfg AttributionConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AttributionUseCase {
	cfg.withDefaults()
	if clock == nil {
		clock = SystemClock{}
	}
	return &AttributionUseCase{
		sink:    sink,
		store:   store,
		entries: entries,
		users:   users,
		clock:   clock,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// SaveForIP stores params for ip, replacing any previous record.
func (uc *AttributionUseCase) SaveForIP(ctx context.Context, ip string, params domain.AttributionParams) (*domain.AttributionRecord, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("%w: client ip could not be determined", domain.ErrValidation)
	}
	if uc.store == nil {
		return nil, fmt.Errorf("attribution store not configured")
	}

	now := uc.clock.Now()
	params.IP = ip
	record := &domain.AttributionRecord{
		IP:          ip,
		Params:      params,
		LastUpdated: now,
		ExpiresAt:   now.Add(domain.AttributionRecordTTL),
	}
	if err := uc.store.Save(ctx, record, domain.AttributionRecordTTL); err != nil {
		return nil, fmt.Errorf("save attribution record: %w", err)
	}
	return record, nil
}

// GetForIP returns the live record for ip.
func (uc *AttributionUseCase) GetForIP(ctx context.Context, ip string) (*domain.AttributionRecord, error) {
	if uc.store == nil {
		return nil, domain.ErrNotFound
	}
	return uc.store.Get(ctx, strings.TrimSpace(ip))
}

// Resolve picks the params to send for entry: the entry's own, then the
// record for the address the entry was created from, then the static default.
// The fallback is a heuristic; the result is not guaranteed to be the true source.
func (uc *AttributionUseCase) Resolve(ctx context.Context, entry *domain.LedgerEntry) (domain.AttributionParams, domain.AttributionSource) {
	if !entry.AttributionParams.IsEmpty() {
		return entry.AttributionParams, domain.AttributionSourceEntry
	}

	ip := entry.AttributionParams.IP
	if ip == "" {
		ip = entry.Metadata.String(domain.MetaClientIP)
	}

	if ip != "" && uc.store != nil {
		rec, err := uc.store.Get(ctx, ip)
		switch {
		case err == nil && !rec.Params.IsEmpty():
			p := rec.Params
			p.IP = ip
			return p, domain.AttributionSourceIP
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			uc.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("attribution lookup by ip failed")
		}
	}

	p := domain.DefaultAttribution(uc.cfg.DefaultCampaign, uc.cfg.DefaultPageURL)
	p.IP = ip
	p.UserAgent = entry.AttributionParams.UserAgent
	return p, domain.AttributionSourceDefault
}

// Deliver sends one event with bounded retries: a constant backoff between
// attempts and a timeout on each attempt.
func (uc *AttributionUseCase) Deliver(ctx context.Context, eventType domain.AttributionEventType, entry *domain.LedgerEntry, user *domain.UserAccount) AttributionOutcome {
	params, source := uc.Resolve(ctx, entry)
	out := AttributionOutcome{Source: source}

	if uc.sink == nil {
		out.Skipped = true
		return out
	}

	event := AttributionEvent{
		Type:     eventType,
		Entry:    entry,
		User:     user,
		Params:   params,
		ClientIP: params.IP,
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(uc.cfg.Backoff), uint64(uc.cfg.MaxAttempts-1))
	err := backoff.Retry(func() error {
		out.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, uc.cfg.AttemptTimeout)
		defer cancel()

		if err := uc.sink.SendEvent(attemptCtx, event); err != nil {
			uc.logger.Warn().
				Err(err).
				Str("entry_id", entry.ID).
				Str("event", string(eventType)).
				Int("attempt", out.Attempts).
				Msg("attribution delivery attempt failed")
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		out.Err = fmt.Errorf("%w: %w", domain.ErrAttributionDelivery, err)
	} else {
		out.Success = true
	}

	if uc.metrics != nil {
		outcome := "success"
		if !out.Success {
			outcome = "failure"
		}
		uc.metrics.AttributionDelivery.WithLabelValues(string(eventType), outcome).Inc()
	}

	return out
}

// NotifyCompleted delivers the purchase event for a completed entry and records
// the outcome on the entry. In async mode it returns immediately with a nil outcome.
func (uc *AttributionUseCase) NotifyCompleted(ctx context.Context, entry *domain.LedgerEntry) *AttributionOutcome {
	if uc.cfg.Async {
		go uc.notifyCompleted(context.WithoutCancel(ctx), entry)
		return nil
	}
	out := uc.notifyCompleted(ctx, entry)
	return &out
}

func (uc *AttributionUseCase) notifyCompleted(ctx context.Context, entry *domain.LedgerEntry) AttributionOutcome {
	user, err := uc.users.GetByID(ctx, entry.UserID)
	if err != nil {
		uc.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("attribution skipped: user lookup failed")
		out := AttributionOutcome{Err: fmt.Errorf("%w: %w", domain.ErrAttributionDelivery, err)}
		uc.record(ctx, entry.ID, out)
		return out
	}

	out := uc.Deliver(ctx, domain.AttributionEventPurchase, entry, user)
	if !out.Skipped {
		uc.record(ctx, entry.ID, out)
	}

	if out.Err != nil {
		uc.logger.Error().
			Err(out.Err).
			Str("entry_id", entry.ID).
			Int("attempts", out.Attempts).
			Msg("attribution delivery gave up")
	}
	return out
}

// NotifyPixGenerated announces a freshly generated charge. Failures are only logged.
func (uc *AttributionUseCase) NotifyPixGenerated(ctx context.Context, entry *domain.LedgerEntry, user *domain.UserAccount) {
	out := uc.Deliver(ctx, domain.AttributionEventPixGenerated, entry, user)
	if out.Err != nil {
		uc.logger.Warn().Err(out.Err).Str("entry_id", entry.ID).Msg("pix generated event not delivered")
	}
}

func (uc *AttributionUseCase) record(ctx context.Context, entryID string, out AttributionOutcome) {
	if err := uc.entries.MergeMetadata(ctx, entryID, out.Metadata(), uc.clock.Now()); err != nil {
		uc.logger.Error().Err(err).Str("entry_id", entryID).Msg("failed to record attribution outcome")
	}
}
