package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/infrastructure/postgres/generated"
	"github.com/iho/betledger/internal/usecase"
)

const pgErrUniqueViolation = "23505"

var errForeignTransaction = errors.New("postgres: transaction was not started by this repository")

// queriesFor binds queries to tx when one is given, otherwise to base.
func queriesFor(base *generated.Queries, tx usecase.Transaction) (*generated.Queries, error) {
	if tx == nil {
		return base, nil
	}
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTransaction
	}
	return generated.New(t.PgxTx()), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// marshalObject encodes v as a JSON object; nil maps become {}.
func marshalObject(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	if string(b) == "null" {
		return []byte("{}"), nil
	}
	return b, nil
}
