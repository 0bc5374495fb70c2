package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/postgres/generated"
	"github.com/iho/betledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// Create inserts a PENDING entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	attribution, err := marshalObject(entry.AttributionParams)
	if err != nil {
		return err
	}
	metadata, err := marshalObject(entry.Metadata)
	if err != nil {
		return err
	}

	err = queries.CreateEntry(ctx, generated.CreateEntryParams{
		ID:                    entry.ID,
		UserID:                entry.UserID,
		Type:                  string(entry.Type),
		Amount:                decimalToNumeric(entry.Amount),
		Status:                string(entry.Status),
		PaymentMethod:         string(entry.PaymentMethod),
		ExternalReference:     textOrNull(entry.ExternalReference),
		ProviderTransactionID: textOrNull(entry.ProviderTransactionID),
		Description:           entry.Description,
		AttributionParams:     attribution,
		Metadata:              metadata,
		CreatedAt:             timeToPgTimestamptz(entry.CreatedAt),
		UpdatedAt:             timeToPgTimestamptz(entry.UpdatedAt),
	})
	if isUniqueViolation(err) {
		return domain.ErrDuplicateReference
	}

	return err
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	return scanEntry(r.queries.GetEntryByID(ctx, id))
}

// GetByIDForUpdate retrieves an entry with a FOR UPDATE lock.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return nil, err
	}

	return scanEntry(queries.GetEntryByIDForUpdate(ctx, id))
}

// GetByReference retrieves an entry by its external reference.
func (r *EntryRepository) GetByReference(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	return scanEntry(r.queries.GetEntryByReference(ctx, ref))
}

// GetByProviderTransactionID retrieves the newest entry carrying the gateway id.
func (r *EntryRepository) GetByProviderTransactionID(ctx context.Context, providerID string) (*domain.LedgerEntry, error) {
	return scanEntry(r.queries.GetEntryByProviderTransactionID(ctx, providerID))
}

// GetLatestPending returns the newest PENDING entry of the given type and method.
func (r *EntryRepository) GetLatestPending(ctx context.Context, tx usecase.Transaction, entryType domain.EntryType, method domain.PaymentMethod) (*domain.LedgerEntry, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return nil, err
	}

	return scanEntry(queries.GetLatestPendingEntry(ctx, generated.GetLatestPendingEntryParams{
		Type:          string(entryType),
		PaymentMethod: string(method),
	}))
}

// ListByUser retrieves a page of the user's entries, newest first.
func (r *EntryRepository) ListByUser(ctx context.Context, filter domain.EntryFilter) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesByUser(ctx, generated.ListEntriesByUserParams{
		UserID: filter.UserID,
		Type:   textOrNull(string(filter.Type)),
		Status: textOrNull(string(filter.Status)),
		Limit:  int32(filter.Limit),
		Offset: int32(filter.Offset),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}

	return entries, nil
}

// CountByUser counts the entries ListByUser pages over.
func (r *EntryRepository) CountByUser(ctx context.Context, filter domain.EntryFilter) (int64, error) {
	return r.queries.CountEntriesByUser(ctx, generated.CountEntriesByUserParams{
		UserID: filter.UserID,
		Type:   textOrNull(string(filter.Type)),
		Status: textOrNull(string(filter.Status)),
	})
}

// SumWithdrawalsSince totals the user's withdrawals created at or after since.
func (r *EntryRepository) SumWithdrawalsSince(ctx context.Context, tx usecase.Transaction, userID string, since time.Time) (decimal.Decimal, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := queries.SumWithdrawalsSince(ctx, generated.SumWithdrawalsSinceParams{
		UserID:    userID,
		CreatedAt: timeToPgTimestamptz(since),
	})
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(total), nil
}

// CompareAndSetStatus moves the entry from -> to if it is still in from.
func (r *EntryRepository) CompareAndSetStatus(ctx context.Context, tx usecase.Transaction, id string, from, to domain.EntryStatus, patch domain.Metadata, updatedAt time.Time) (bool, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return false, err
	}

	payload, err := marshalObject(patch)
	if err != nil {
		return false, err
	}

	n, err := queries.CompareAndSetEntryStatus(ctx, generated.CompareAndSetEntryStatusParams{
		ID:        id,
		Status:    string(from),
		Status_2:  string(to),
		Patch:     payload,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// SetProviderTransactionID records the gateway id and merges patch.
func (r *EntryRepository) SetProviderTransactionID(ctx context.Context, tx usecase.Transaction, id, providerID string, patch domain.Metadata, updatedAt time.Time) error {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	payload, err := marshalObject(patch)
	if err != nil {
		return err
	}

	n, err := queries.SetEntryProviderTransactionID(ctx, generated.SetEntryProviderTransactionIDParams{
		ID:                    id,
		ProviderTransactionID: textOrNull(providerID),
		Patch:                 payload,
		UpdatedAt:             timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// MergeMetadata merges patch into the entry's metadata outside any transaction.
func (r *EntryRepository) MergeMetadata(ctx context.Context, id string, patch domain.Metadata, updatedAt time.Time) error {
	payload, err := marshalObject(patch)
	if err != nil {
		return err
	}

	n, err := r.queries.MergeEntryMetadata(ctx, generated.MergeEntryMetadataParams{
		ID:        id,
		Patch:     payload,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// SumBalanceEffects derives the balance from completed entries and open reservations.
func (r *EntryRepository) SumBalanceEffects(ctx context.Context, userID string) (decimal.Decimal, error) {
	total, err := r.queries.SumBalanceEffects(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(total), nil
}

func scanEntry(row generated.LedgerEntry, err error) (*domain.LedgerEntry, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}

		return nil, err
	}

	return rowToEntry(row), nil
}

func rowToEntry(row generated.LedgerEntry) *domain.LedgerEntry {
	var params domain.AttributionParams
	if len(row.AttributionParams) > 0 {
		_ = json.Unmarshal(row.AttributionParams, &params)
	}

	var metadata domain.Metadata
	if len(row.Metadata) > 0 {
		_ = json.Unmarshal(row.Metadata, &metadata)
	}

	return &domain.LedgerEntry{
		ID:                    row.ID,
		UserID:                row.UserID,
		Type:                  domain.EntryType(row.Type),
		Amount:                numericToDecimal(row.Amount),
		Status:                domain.EntryStatus(row.Status),
		PaymentMethod:         domain.PaymentMethod(row.PaymentMethod),
		ExternalReference:     textValue(row.ExternalReference),
		ProviderTransactionID: textValue(row.ProviderTransactionID),
		Description:           row.Description,
		AttributionParams:     params,
		Metadata:              metadata,
		CreatedAt:             row.CreatedAt.Time,
		UpdatedAt:             row.UpdatedAt.Time,
	}
}

func textValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
