package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
)

// UserRepository defines data access for user accounts.
// Credit and Debit are the only paths that change a stored balance.
type UserRepository interface {
	Create(ctx context.Context, user *domain.UserAccount) error
	GetByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.UserAccount, error)
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error
	// Credit adds amount to the balance in a single statement.
	Credit(ctx context.Context, tx Transaction, id string, amount decimal.Decimal, updatedAt time.Time) error
	// Debit subtracts amount only if the balance covers it;
	// returns domain.ErrInsufficientFunds otherwise.
	Debit(ctx context.Context, tx Transaction, id string, amount decimal.Decimal, updatedAt time.Time) error
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	// Create persists a PENDING entry; returns domain.ErrDuplicateReference
	// when the external reference is already taken.
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerEntry, error)
	GetByReference(ctx context.Context, ref string) (*domain.LedgerEntry, error)
	GetByProviderTransactionID(ctx context.Context, providerID string) (*domain.LedgerEntry, error)
	// GetLatestPending returns the newest PENDING entry of the given type and
	// method without locking it. tx may be nil.
	GetLatestPending(ctx context.Context, tx Transaction, entryType domain.EntryType, method domain.PaymentMethod) (*domain.LedgerEntry, error)
	ListByUser(ctx context.Context, filter domain.EntryFilter) ([]*domain.LedgerEntry, error)
	CountByUser(ctx context.Context, filter domain.EntryFilter) (int64, error)
	// SumWithdrawalsSince totals WITHDRAWAL amounts created at or after since.
	SumWithdrawalsSince(ctx context.Context, tx Transaction, userID string, since time.Time) (decimal.Decimal, error)
	// CompareAndSetStatus moves the entry from -> to and merges patch into its
	// metadata. Returns false when the entry was no longer in from.
	CompareAndSetStatus(ctx context.Context, tx Transaction, id string, from, to domain.EntryStatus, patch domain.Metadata, updatedAt time.Time) (bool, error)
	// SetProviderTransactionID records the gateway-side id. tx may be nil.
	SetProviderTransactionID(ctx context.Context, tx Transaction, id, providerID string, patch domain.Metadata, updatedAt time.Time) error
	MergeMetadata(ctx context.Context, id string, patch domain.Metadata, updatedAt time.Time) error
	// SumBalanceEffects returns the balance implied by the user's entries.
	SumBalanceEffects(ctx context.Context, userID string) (decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// AttributionStore keeps tracking params keyed by client network address.
type AttributionStore interface {
	Save(ctx context.Context, record *domain.AttributionRecord, ttl time.Duration) error
	// Get returns domain.ErrNotFound when no live record exists.
	Get(ctx context.Context, ip string) (*domain.AttributionRecord, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs fn when the database reports a transient conflict.
type Retrier interface {
	Retry(ctx context.Context, fn func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock allows deterministic time in tests.
type Clock interface {
	Now() time.Time
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so the request may be retried.
	Release(ctx context.Context, key string) error
}

// IdempotencyPending is stored under a claimed key until the first request
// finishes.
const IdempotencyPending = "processing"

// IsIdempotencyPending reports whether a stored value is the in-flight marker.
func IsIdempotencyPending(value []byte) bool {
	return string(value) == IdempotencyPending
}

// PixChargeRequest is what the gateway needs to mint a PIX charge.
type PixChargeRequest struct {
	Amount      decimal.Decimal
	Description string
	ExternalID  string
	Payer       PixPayer
}

// PixPayer identifies the paying customer towards the gateway.
type PixPayer struct {
	Name     string
	Email    string
	Document string
}

// PixCharge is the gateway's answer to a charge request.
type PixCharge struct {
	ProviderTransactionID string
	QRCode                string
	QRCodeImage           string
	Expiration            time.Time
}

// PaymentGateway creates PIX charges with the payment provider.
type PaymentGateway interface {
	CreatePixCharge(ctx context.Context, req PixChargeRequest) (*PixCharge, error)
}

// AttributionEvent is a best-effort conversion notification.
type AttributionEvent struct {
	Type     domain.AttributionEventType
	Entry    *domain.LedgerEntry
	User     *domain.UserAccount
	Params   domain.AttributionParams
	ClientIP string
}

// AttributionSink receives conversion notifications.
type AttributionSink interface {
	SendEvent(ctx context.Context, event AttributionEvent) error
}
