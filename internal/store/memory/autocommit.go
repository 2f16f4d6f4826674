package memory

import (
	"context"
	"time"

	"lv-backoffice/internal/model"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

type autoAccounts struct{ s *Store }

func (a autoAccounts) Ensure(ctx context.Context, userID string, ccy types.Currency) (model.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return (*accounts)(&view{st: a.s.st}).Ensure(ctx, userID, ccy)
}

func (a autoAccounts) Get(ctx context.Context, userID string, ccy types.Currency) (model.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return (*accounts)(&view{st: a.s.st}).Get(ctx, userID, ccy)
}

func (a autoAccounts) Update(ctx context.Context, acct model.Account) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return (*accounts)(&view{st: a.s.st}).Update(ctx, acct)
}

type autoPositions struct{ s *Store }

func (p autoPositions) Ensure(ctx context.Context, userID, symbol string) (model.Position, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return (*positions)(&view{st: p.s.st}).Ensure(ctx, userID, symbol)
}

func (p autoPositions) Get(ctx context.Context, userID, symbol string) (model.Position, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return (*positions)(&view{st: p.s.st}).Get(ctx, userID, symbol)
}

func (p autoPositions) Update(ctx context.Context, pos model.Position) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return (*positions)(&view{st: p.s.st}).Update(ctx, pos)
}

type autoOrders struct{ s *Store }

func (o autoOrders) Create(ctx context.Context, ord model.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return (*orders)(&view{st: o.s.st}).Create(ctx, ord)
}

func (o autoOrders) Get(ctx context.Context, id string) (model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return (*orders)(&view{st: o.s.st}).Get(ctx, id)
}

func (o autoOrders) Update(ctx context.Context, ord model.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return (*orders)(&view{st: o.s.st}).Update(ctx, ord)
}

func (o autoOrders) ListByStatus(ctx context.Context, status types.OrderStatus, limit int) ([]model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return (*orders)(&view{st: o.s.st}).ListByStatus(ctx, status, limit)
}

func (o autoOrders) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return (*orders)(&view{st: o.s.st}).ListByUser(ctx, userID, limit)
}

func (o autoOrders) SumBoardAmountToday(ctx context.Context, userID string, day time.Time) (decimal.Decimal, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return (*orders)(&view{st: o.s.st}).SumBoardAmountToday(ctx, userID, day)
}

type autoLedger struct{ s *Store }

func (l autoLedger) Append(ctx context.Context, e model.LedgerEntry) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return (*ledger)(&view{st: l.s.st}).Append(ctx, e)
}

func (l autoLedger) UnsettledTotal(ctx context.Context, userID string, ccy types.Currency) (decimal.Decimal, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return (*ledger)(&view{st: l.s.st}).UnsettledTotal(ctx, userID, ccy)
}

func (l autoLedger) SettleAll(ctx context.Context, userID string) (int64, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return (*ledger)(&view{st: l.s.st}).SettleAll(ctx, userID)
}

func (l autoLedger) ListByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return (*ledger)(&view{st: l.s.st}).ListByUser(ctx, userID, limit)
}

type autoFunding struct{ s *Store }

func (f autoFunding) Create(ctx context.Context, r model.FundingRequest) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return (*funding)(&view{st: f.s.st}).Create(ctx, r)
}

func (f autoFunding) Get(ctx context.Context, id string) (model.FundingRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return (*funding)(&view{st: f.s.st}).Get(ctx, id)
}

func (f autoFunding) Update(ctx context.Context, r model.FundingRequest) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return (*funding)(&view{st: f.s.st}).Update(ctx, r)
}

func (f autoFunding) ListByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]model.FundingRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return (*funding)(&view{st: f.s.st}).ListByStatus(ctx, status, limit)
}

type autoAudit struct{ s *Store }

func (a autoAudit) Append(ctx context.Context, rec model.AuditRecord) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return (*audit)(&view{st: a.s.st}).Append(ctx, rec)
}

func (a autoAudit) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]model.AuditRecord, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return (*audit)(&view{st: a.s.st}).ListByTarget(ctx, targetType, targetID, limit)
}
