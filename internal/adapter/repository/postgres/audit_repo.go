package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/postgres/generated"
	"github.com/iho/betledger/internal/usecase"
)

const auditColumns = `id, user_id, action, resource_type, resource_id,
	ip_address, user_agent, request_id,
	before_state, after_state, status, error_message, created_at`

const insertAuditLog = `INSERT INTO audit_logs (` + auditColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const maxAuditPage = 500

// AuditRepository persists operator actions. Audit rows are written in the
// same transaction as the balance change they describe.
type AuditRepository struct {
	db generated.DBTX
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepository(pool)
}

func newAuditRepository(db generated.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts log outside any transaction.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.CreateTx(ctx, nil, log)
}

// CreateTx inserts log as part of tx.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	db := r.db
	if tx != nil {
		t, ok := tx.(*Tx)
		if !ok {
			return errForeignTransaction
		}
		db = t.PgxTx()
	}

	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	before, err := nullableJSON(log.BeforeState)
	if err != nil {
		return fmt.Errorf("audit %s before state: %w", log.Action, err)
	}
	after, err := nullableJSON(log.AfterState)
	if err != nil {
		return fmt.Errorf("audit %s after state: %w", log.Action, err)
	}

	_, err = db.Exec(ctx, insertAuditLog,
		log.ID, log.UserID, log.Action, log.ResourceType, log.ResourceID,
		log.IPAddress, log.UserAgent, log.RequestID,
		before, after, log.Status, log.ErrorMessage, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns logs matching filter, newest first. Pages are capped at
// maxAuditPage rows.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	query, args := auditQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return pgx.CollectRows(rows, scanAuditLog)
}

// GetByResourceID returns the full trail of one entry or user.
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	return r.List(ctx, domain.AuditFilter{ResourceType: resourceType, ResourceID: resourceID})
}

func auditQuery(f domain.AuditFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at < $%d", *f.EndDate)
	}

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM audit_logs")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")

	limit := f.Limit
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func scanAuditLog(row pgx.CollectableRow) (*domain.AuditLog, error) {
	var (
		log           domain.AuditLog
		before, after []byte
	)
	err := row.Scan(
		&log.ID, &log.UserID, &log.Action, &log.ResourceType, &log.ResourceID,
		&log.IPAddress, &log.UserAgent, &log.RequestID,
		&before, &after, &log.Status, &log.ErrorMessage, &log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if log.BeforeState, err = decodeState(before); err != nil {
		return nil, fmt.Errorf("audit %s before state: %w", log.ID, err)
	}
	if log.AfterState, err = decodeState(after); err != nil {
		return nil, fmt.Errorf("audit %s after state: %w", log.ID, err)
	}
	return &log, nil
}

func nullableJSON(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

func decodeState(raw []byte) (domain.JSON, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var state domain.JSON
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return state, nil
}
