// Package memory provides concurrency-safe in-memory repositories. Row locks
// taken through a transaction are held until commit or rollback, and rollback
// undoes every write made through it.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

var errTxDone = errors.New("transaction already closed")

// Store holds all in-memory state. The repositories returned by its accessors
// share it.
type Store struct {
	mu         sync.Mutex
	users      map[string]*domain.UserAccount
	entries    map[string]*domain.LedgerEntry
	byRef      map[string]string
	byProvider map[string]string
	outbox     []*domain.OutboxEvent
	audit      []*domain.AuditLog

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.UserAccount),
		entries:    make(map[string]*domain.LedgerEntry),
		byRef:      make(map[string]string),
		byProvider: make(map[string]string),
		locks:      make(map[string]chan struct{}),
	}
}

// TxManager returns a usecase.TransactionManager over the store.
func (s *Store) TxManager() *TxManager { return &TxManager{store: s} }

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// Entries returns the entry repository.
func (s *Store) Entries() *EntryRepository { return &EntryRepository{store: s} }

// Outbox returns the outbox repository.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{store: s} }

// Audit returns the audit repository.
func (s *Store) Audit() *AuditRepository { return &AuditRepository{store: s} }

func (s *Store) rowLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[key] = l
	}
	return l
}

// lockRow takes the row lock for key outside a transaction. The returned
// func releases it.
func (s *Store) lockRow(ctx context.Context, key string) (func(), error) {
	l := s.rowLock(key)
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// Begin starts a transaction.
func (m *TxManager) Begin(_ context.Context) (usecase.Transaction, error) {
	return &Tx{store: m.store, held: make(map[string]chan struct{})}, nil
}

// Tx tracks held row locks and the undo log of one transaction.
type Tx struct {
	store *Store
	mu    sync.Mutex
	held  map[string]chan struct{}
	undo  []func()
	done  bool
}

// Commit keeps the writes and releases the row locks.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true
	t.undo = nil
	t.release()
	return nil
}

// Rollback reverts the writes and releases the row locks. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true

	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()

	t.undo = nil
	t.release()
	return nil
}

func (t *Tx) release() {
	for key, l := range t.held {
		<-l
		delete(t.held, key)
	}
}

// lock acquires the row lock for key, waiting until ctx is done.
func (t *Tx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return errTxDone
	}
	if _, ok := t.held[key]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	l := t.store.rowLock(key)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	t.held[key] = l
	t.mu.Unlock()
	return nil
}

// onRollback registers fn to run under the store mutex if the transaction rolls back.
func (t *Tx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func asTx(tx usecase.Transaction) *Tx {
	t, _ := tx.(*Tx)
	return t
}
