package store

import (
	"context"
	"errors"
	"time"

	"lv-backoffice/internal/model"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// Tx bundles the capability stores visible inside one atomic unit of work.
// Everything read or written through the same Tx commits or rolls back
// together.
type Tx interface {
	Accounts() AccountStore
	Positions() PositionStore
	Orders() OrderStore
	Ledger() LedgerStore
	Funding() FundingStore
	Audit() AuditStore
}

// Store is the root handle. Calling the capability accessors directly runs
// in autocommit mode; InTx runs fn atomically and rolls back on error.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type AccountStore interface {
	// Ensure returns the account, creating a zero-balance row on first use.
	Ensure(ctx context.Context, userID string, currency types.Currency) (model.Account, error)
	Get(ctx context.Context, userID string, currency types.Currency) (model.Account, error)
	Update(ctx context.Context, a model.Account) error
}

type PositionStore interface {
	Ensure(ctx context.Context, userID, symbol string) (model.Position, error)
	Get(ctx context.Context, userID, symbol string) (model.Position, error)
	Update(ctx context.Context, p model.Position) error
}

type OrderStore interface {
	Create(ctx context.Context, o model.Order) error
	Get(ctx context.Context, id string) (model.Order, error)
	Update(ctx context.Context, o model.Order) error
	ListByStatus(ctx context.Context, status types.OrderStatus, limit int) ([]model.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
	// SumBoardAmountToday totals price*quantity of the user's non-terminal
	// board orders created on day (UTC), feeding the daily quota check.
	SumBoardAmountToday(ctx context.Context, userID string, day time.Time) (decimal.Decimal, error)
}

type LedgerStore interface {
	Append(ctx context.Context, e model.LedgerEntry) error
	// UnsettledTotal sums absolute amounts of the user's unsettled entries.
	UnsettledTotal(ctx context.Context, userID string, currency types.Currency) (decimal.Decimal, error)
	// SettleAll flips every unsettled entry of the user to settled and
	// reports how many rows changed.
	SettleAll(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error)
}

type FundingStore interface {
	Create(ctx context.Context, r model.FundingRequest) error
	Get(ctx context.Context, id string) (model.FundingRequest, error)
	Update(ctx context.Context, r model.FundingRequest) error
	ListByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]model.FundingRequest, error)
}

type AuditStore interface {
	Append(ctx context.Context, rec model.AuditRecord) error
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]model.AuditRecord, error)
}
