package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	store *Store
}

func entryLockKey(id string) string { return "entry:" + id }

func copyEntry(e *domain.LedgerEntry) *domain.LedgerEntry {
	cp := *e
	cp.Metadata = e.Metadata.Merge(nil)
	return &cp
}

// Create stores a new entry, enforcing external reference uniqueness.
func (r *EntryRepository) Create(_ context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	r.store.mu.Lock()
	if entry.ExternalReference != "" {
		if _, taken := r.store.byRef[entry.ExternalReference]; taken {
			r.store.mu.Unlock()
			return domain.ErrDuplicateReference
		}
		r.store.byRef[entry.ExternalReference] = entry.ID
	}
	if entry.ProviderTransactionID != "" {
		r.store.byProvider[entry.ProviderTransactionID] = entry.ID
	}
	r.store.entries[entry.ID] = copyEntry(entry)
	r.store.mu.Unlock()

	if t := asTx(tx); t != nil {
		t.onRollback(func() {
			delete(r.store.entries, entry.ID)
			if entry.ExternalReference != "" {
				delete(r.store.byRef, entry.ExternalReference)
			}
			if entry.ProviderTransactionID != "" {
				delete(r.store.byProvider, entry.ProviderTransactionID)
			}
		})
	}
	return nil
}

// GetByID returns a copy of the entry.
func (r *EntryRepository) GetByID(_ context.Context, id string) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.get(id)
}

func (r *EntryRepository) get(id string) (*domain.LedgerEntry, error) {
	e, ok := r.store.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

// GetByIDForUpdate locks the entry row for the rest of tx.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	if t := asTx(tx); t != nil {
		if err := t.lock(ctx, entryLockKey(id)); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// GetByReference looks an entry up by external reference.
func (r *EntryRepository) GetByReference(_ context.Context, ref string) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.byRef[ref]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return r.get(id)
}

// GetByProviderTransactionID looks an entry up by the gateway's id.
func (r *EntryRepository) GetByProviderTransactionID(_ context.Context, providerID string) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.byProvider[providerID]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return r.get(id)
}

// GetLatestPending returns the newest pending entry of a type and method.
func (r *EntryRepository) GetLatestPending(_ context.Context, _ usecase.Transaction, entryType domain.EntryType, method domain.PaymentMethod) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var latest *domain.LedgerEntry
	for _, e := range r.store.entries {
		if e.Status != domain.EntryStatusPending || e.Type != entryType || e.PaymentMethod != method {
			continue
		}
		if latest == nil || newer(e, latest) {
			latest = e
		}
	}
	if latest == nil {
		return nil, domain.ErrEntryNotFound
	}
	return copyEntry(latest), nil
}

func newer(a, b *domain.LedgerEntry) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func matches(e *domain.LedgerEntry, f domain.EntryFilter) bool {
	if e.UserID != f.UserID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// ListByUser returns a page of a user's entries, newest first.
func (r *EntryRepository) ListByUser(_ context.Context, filter domain.EntryFilter) ([]*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var list []*domain.LedgerEntry
	for _, e := range r.store.entries {
		if matches(e, filter) {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return newer(list[i], list[j]) })

	if filter.Offset >= len(list) {
		return []*domain.LedgerEntry{}, nil
	}
	list = list[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(list) {
		list = list[:filter.Limit]
	}

	out := make([]*domain.LedgerEntry, len(list))
	for i, e := range list {
		out[i] = copyEntry(e)
	}
	return out, nil
}

// CountByUser counts the entries ListByUser would page over.
func (r *EntryRepository) CountByUser(_ context.Context, filter domain.EntryFilter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for _, e := range r.store.entries {
		if matches(e, filter) {
			n++
		}
	}
	return n, nil
}

// SumWithdrawalsSince totals the user's withdrawals created at or after since.
func (r *EntryRepository) SumWithdrawalsSince(_ context.Context, _ usecase.Transaction, userID string, since time.Time) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	total := decimal.Zero
	for _, e := range r.store.entries {
		if e.UserID == userID && e.Type == domain.EntryTypeWithdrawal && !e.CreatedAt.Before(since) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

// CompareAndSetStatus moves the entry from -> to if it is still in from.
func (r *EntryRepository) CompareAndSetStatus(_ context.Context, tx usecase.Transaction, id string, from, to domain.EntryStatus, patch domain.Metadata, updatedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	e, ok := r.store.entries[id]
	if !ok {
		r.store.mu.Unlock()
		return false, domain.ErrEntryNotFound
	}
	if e.Status != from {
		r.store.mu.Unlock()
		return false, nil
	}
	prev := copyEntry(e)
	e.Status = to
	e.Metadata = e.Metadata.Merge(patch)
	e.UpdatedAt = updatedAt
	r.store.mu.Unlock()

	r.restoreOnRollback(tx, prev)
	return true, nil
}

// SetProviderTransactionID records the gateway id and merges patch.
func (r *EntryRepository) SetProviderTransactionID(_ context.Context, tx usecase.Transaction, id, providerID string, patch domain.Metadata, updatedAt time.Time) error {
	r.store.mu.Lock()
	e, ok := r.store.entries[id]
	if !ok {
		r.store.mu.Unlock()
		return domain.ErrEntryNotFound
	}
	prev := copyEntry(e)
	if providerID != "" {
		e.ProviderTransactionID = providerID
		r.store.byProvider[providerID] = id
	}
	e.Metadata = e.Metadata.Merge(patch)
	e.UpdatedAt = updatedAt
	r.store.mu.Unlock()

	if t := asTx(tx); t != nil && providerID != "" {
		t.onRollback(func() {
			if prev.ProviderTransactionID != providerID {
				delete(r.store.byProvider, providerID)
			}
		})
	}
	r.restoreOnRollback(tx, prev)
	return nil
}

// MergeMetadata merges patch into the entry's metadata.
func (r *EntryRepository) MergeMetadata(_ context.Context, id string, patch domain.Metadata, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.Metadata = e.Metadata.Merge(patch)
	e.UpdatedAt = updatedAt
	return nil
}

// SumBalanceEffects derives the balance from completed entries and open reservations.
func (r *EntryRepository) SumBalanceEffects(_ context.Context, userID string) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	total := decimal.Zero
	for _, e := range r.store.entries {
		if e.UserID != userID {
			continue
		}
		switch {
		case e.Status == domain.EntryStatusCompleted && e.IsCredit():
			total = total.Add(e.Amount)
		case e.Status == domain.EntryStatusCompleted && e.IsDebitOnCompletion():
			total = total.Sub(e.Amount)
		case e.Type == domain.EntryTypeWithdrawal &&
			(e.Status == domain.EntryStatusCompleted || e.Status == domain.EntryStatusPending):
			total = total.Sub(e.Amount)
		}
	}
	return total, nil
}

func (r *EntryRepository) restoreOnRollback(tx usecase.Transaction, prev *domain.LedgerEntry) {
	t := asTx(tx)
	if t == nil {
		return
	}
	t.onRollback(func() {
		r.store.entries[prev.ID] = prev
	})
}
