package usecase

import (
	"context"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// EntryUseCase creates pending entries and serves entry queries.
type EntryUseCase struct {
	txManager TransactionManager
	entryRepo EntryRepository
	outbox    OutboxRepository
	idGen     IDGenerator
	clock     Clock
	metrics   *metrics.Metrics
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	outbox OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	m *metrics.Metrics,
) *EntryUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &EntryUseCase{
		txManager: txManager,
		entryRepo: entryRepo,
		outbox:    outbox,
		idGen:     idGen,
		clock:     clock,
		metrics:   m,
	}
}

// CreatePending validates entry and persists it as PENDING together with its
// entry.created event. A taken external reference fails with domain.ErrDuplicateReference.
func (uc *EntryUseCase) CreatePending(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if err := domain.ValidateReference(entry.ExternalReference); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	entry.ID = uc.idGen.Generate()
	entry.Status = domain.EntryStatusPending
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.Metadata == nil {
		entry.Metadata = domain.Metadata{}
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.entryRepo.Create(txCtx, tx, entry); err != nil {
		return nil, err
	}

	if err := emitEntryEvent(txCtx, tx, uc.outbox, uc.idGen, entry, domain.EventTypeEntryCreated, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesCreated.WithLabelValues(string(entry.Type)).Inc()
		uc.metrics.EntryAmount.WithLabelValues(string(entry.Type)).Observe(entry.Amount.InexactFloat64())
	}

	return entry, nil
}

// GetEntry returns an entry. A non-empty ownerID hides other users' entries.
func (uc *EntryUseCase) GetEntry(ctx context.Context, id, ownerID string) (*domain.LedgerEntry, error) {
	entry, err := uc.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && entry.UserID != ownerID {
		return nil, domain.ErrEntryNotFound
	}
	return entry, nil
}

// GetByReference returns the entry correlated with an external reference.
func (uc *EntryUseCase) GetByReference(ctx context.Context, ref, ownerID string) (*domain.LedgerEntry, error) {
	entry, err := uc.entryRepo.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && entry.UserID != ownerID {
		return nil, domain.ErrEntryNotFound
	}
	return entry, nil
}

// EntryPage is one page of a user's entries.
type EntryPage struct {
	Entries []*domain.LedgerEntry
	Total   int64
	Limit   int
	Offset  int
}

// ListByUser lists a user's entries, newest first.
func (uc *EntryUseCase) ListByUser(ctx context.Context, filter domain.EntryFilter) (*EntryPage, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, domain.ErrInvalidEntryType
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidEntryStatus
	}

	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	entries, err := uc.entryRepo.ListByUser(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := uc.entryRepo.CountByUser(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &EntryPage{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// RecordMetadata merges advisory data into an entry without touching its status.
func (uc *EntryUseCase) RecordMetadata(ctx context.Context, id string, patch domain.Metadata) error {
	return uc.entryRepo.MergeMetadata(ctx, id, patch, uc.clock.Now())
}

// AttachCharge stores the gateway charge identifiers on a pending deposit.
func (uc *EntryUseCase) AttachCharge(ctx context.Context, id, providerID string, patch domain.Metadata) error {
	return uc.entryRepo.SetProviderTransactionID(ctx, nil, id, providerID, patch, uc.clock.Now())
}
