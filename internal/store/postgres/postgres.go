package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lv-backoffice/internal/model"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the pgx-backed implementation. InTx uses serializable isolation;
// row reads inside a transaction take FOR UPDATE locks so two concurrent
// freezes on one account cannot both pass their balance check.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type session struct {
	q         querier
	forUpdate bool
}

func (s *session) lock() string {
	if s.forUpdate {
		return " for update"
	}
	return ""
}

func (s *session) Accounts() store.AccountStore   { return (*pgAccounts)(s) }
func (s *session) Positions() store.PositionStore { return (*pgPositions)(s) }
func (s *session) Orders() store.OrderStore       { return (*pgOrders)(s) }
func (s *session) Ledger() store.LedgerStore      { return (*pgLedger)(s) }
func (s *session) Funding() store.FundingStore    { return (*pgFunding)(s) }
func (s *session) Audit() store.AuditStore        { return (*pgAudit)(s) }

func (s *Store) Accounts() store.AccountStore   { return (&session{q: s.pool}).Accounts() }
func (s *Store) Positions() store.PositionStore { return (&session{q: s.pool}).Positions() }
func (s *Store) Orders() store.OrderStore       { return (&session{q: s.pool}).Orders() }
func (s *Store) Ledger() store.LedgerStore      { return (&session{q: s.pool}).Ledger() }
func (s *Store) Funding() store.FundingStore    { return (&session{q: s.pool}).Funding() }
func (s *Store) Audit() store.AuditStore        { return (&session{q: s.pool}).Audit() }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&session{q: tx, forUpdate: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgAccounts session

func (a *pgAccounts) Ensure(ctx context.Context, userID string, ccy types.Currency) (model.Account, error) {
	acct, err := a.Get(ctx, userID, ccy)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Account{}, err
	}
	_, err = a.q.Exec(ctx, "insert into accounts (user_id, currency, available, frozen, updated_at) values ($1, $2, 0, 0, $3) on conflict (user_id, currency) do nothing", userID, string(ccy), time.Now().UTC())
	if err != nil {
		return model.Account{}, err
	}
	return a.Get(ctx, userID, ccy)
}

func (a *pgAccounts) Get(ctx context.Context, userID string, ccy types.Currency) (model.Account, error) {
	var acct model.Account
	var currency string
	err := a.q.QueryRow(ctx, "select user_id, currency, available, frozen, updated_at from accounts where user_id = $1 and currency = $2"+(*session)(a).lock(), userID, string(ccy)).
		Scan(&acct.UserID, &currency, &acct.Available, &acct.Frozen, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, store.ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	acct.Currency = types.Currency(currency)
	return acct, nil
}

func (a *pgAccounts) Update(ctx context.Context, acct model.Account) error {
	tag, err := a.q.Exec(ctx, "update accounts set available = $1, frozen = $2, updated_at = $3 where user_id = $4 and currency = $5", acct.Available, acct.Frozen, time.Now().UTC(), acct.UserID, string(acct.Currency))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type pgPositions session

func (p *pgPositions) Ensure(ctx context.Context, userID, symbol string) (model.Position, error) {
	pos, err := p.Get(ctx, userID, symbol)
	if err == nil {
		return pos, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Position{}, err
	}
	_, err = p.q.Exec(ctx, "insert into positions (user_id, symbol, quantity, available_quantity, avg_cost, updated_at) values ($1, $2, 0, 0, 0, $3) on conflict (user_id, symbol) do nothing", userID, symbol, time.Now().UTC())
	if err != nil {
		return model.Position{}, err
	}
	return p.Get(ctx, userID, symbol)
}

func (p *pgPositions) Get(ctx context.Context, userID, symbol string) (model.Position, error) {
	var pos model.Position
	err := p.q.QueryRow(ctx, "select user_id, symbol, quantity, available_quantity, avg_cost, updated_at from positions where user_id = $1 and symbol = $2"+(*session)(p).lock(), userID, symbol).
		Scan(&pos.UserID, &pos.Symbol, &pos.Quantity, &pos.AvailableQuantity, &pos.AvgCost, &pos.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, store.ErrNotFound
	}
	return pos, err
}

func (p *pgPositions) Update(ctx context.Context, pos model.Position) error {
	tag, err := p.q.Exec(ctx, "update positions set quantity = $1, available_quantity = $2, avg_cost = $3, updated_at = $4 where user_id = $5 and symbol = $6", pos.Quantity, pos.AvailableQuantity, pos.AvgCost, time.Now().UTC(), pos.UserID, pos.Symbol)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type pgOrders session

const orderColumns = "id, user_id, trade_type, symbol, side, price, trigger_price, quantity, currency, status, frozen_amount, exchange_rate, discount_rate, decision, reason, reviewed_by_id, reviewed_by_name, created_at, updated_at"

func (o *pgOrders) Create(ctx context.Context, ord model.Order) error {
	decision, err := marshalDecision(ord.Decision)
	if err != nil {
		return err
	}
	_, err = o.q.Exec(ctx, "insert into orders ("+orderColumns+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)",
		ord.ID, ord.UserID, string(ord.TradeType), ord.Symbol, string(ord.Side), ord.Price, ord.TriggerPrice, ord.Quantity, string(ord.Currency), string(ord.Status), ord.FrozenAmount, ord.ExchangeRate, ord.DiscountRate, decision, ord.Reason, ord.ReviewedByID, ord.ReviewedByName, ord.CreatedAt, ord.UpdatedAt)
	return err
}

func (o *pgOrders) Get(ctx context.Context, id string) (model.Order, error) {
	row := o.q.QueryRow(ctx, "select "+orderColumns+" from orders where id = $1"+(*session)(o).lock(), id)
	ord, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, store.ErrNotFound
	}
	return ord, err
}

func (o *pgOrders) Update(ctx context.Context, ord model.Order) error {
	decision, err := marshalDecision(ord.Decision)
	if err != nil {
		return err
	}
	tag, err := o.q.Exec(ctx, "update orders set status = $1, frozen_amount = $2, decision = $3, reason = $4, reviewed_by_id = $5, reviewed_by_name = $6, price = $7, updated_at = $8 where id = $9",
		string(ord.Status), ord.FrozenAmount, decision, ord.Reason, ord.ReviewedByID, ord.ReviewedByName, ord.Price, time.Now().UTC(), ord.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (o *pgOrders) ListByStatus(ctx context.Context, status types.OrderStatus, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := o.q.Query(ctx, "select "+orderColumns+" from orders where status = $1 order by created_at asc limit $2", string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (o *pgOrders) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := o.q.Query(ctx, "select "+orderColumns+" from orders where user_id = $1 order by created_at desc limit $2", userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (o *pgOrders) SumBoardAmountToday(ctx context.Context, userID string, day time.Time) (decimal.Decimal, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	var sum decimal.Decimal
	err := o.q.QueryRow(ctx, "select coalesce(sum(price * quantity), 0) from orders where user_id = $1 and trade_type = 'board' and status not in ('rejected', 'cancelled') and created_at >= $2 and created_at < $3",
		userID, start, start.Add(24*time.Hour)).Scan(&sum)
	return sum, err
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	var out []model.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ord)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var tradeType, side, currency, status string
	var decision []byte
	err := row.Scan(&o.ID, &o.UserID, &tradeType, &o.Symbol, &side, &o.Price, &o.TriggerPrice, &o.Quantity, &currency, &status, &o.FrozenAmount, &o.ExchangeRate, &o.DiscountRate, &decision, &o.Reason, &o.ReviewedByID, &o.ReviewedByName, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.TradeType = types.TradeType(tradeType)
	o.Side = types.OrderSide(side)
	o.Currency = types.Currency(currency)
	o.Status = types.OrderStatus(status)
	if len(decision) > 0 {
		var d model.EligibilityDecision
		if err := json.Unmarshal(decision, &d); err != nil {
			return o, err
		}
		o.Decision = &d
	}
	return o, nil
}

func marshalDecision(d *model.EligibilityDecision) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

type pgLedger session

func (l *pgLedger) Append(ctx context.Context, e model.LedgerEntry) error {
	_, err := l.q.Exec(ctx, "insert into ledger_entries (id, user_id, currency, entry_type, amount, balance_after, settled, order_id, created_at) values ($1,$2,$3,$4,$5,$6,$7,$8,$9)",
		e.ID, e.UserID, string(e.Currency), string(e.Type), e.Amount, e.BalanceAfter, e.Settled, e.OrderID, e.CreatedAt)
	return err
}

func (l *pgLedger) UnsettledTotal(ctx context.Context, userID string, ccy types.Currency) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := l.q.QueryRow(ctx, "select coalesce(sum(abs(amount)), 0) from ledger_entries where user_id = $1 and settled = false and ($2 = '' or currency = $2)", userID, string(ccy)).Scan(&sum)
	return sum, err
}

func (l *pgLedger) SettleAll(ctx context.Context, userID string) (int64, error) {
	tag, err := l.q.Exec(ctx, "update ledger_entries set settled = true where user_id = $1 and settled = false", userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (l *pgLedger) ListByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.q.Query(ctx, "select id, user_id, currency, entry_type, amount, balance_after, settled, order_id, created_at from ledger_entries where user_id = $1 order by created_at desc limit $2", userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var currency, entryType string
		if err := rows.Scan(&e.ID, &e.UserID, &currency, &entryType, &e.Amount, &e.BalanceAfter, &e.Settled, &e.OrderID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Currency = types.Currency(currency)
		e.Type = types.LedgerEntryType(entryType)
		out = append(out, e)
	}
	return out, rows.Err()
}

type pgFunding session

const fundingColumns = "id, user_id, kind, currency, amount, status, reason, reviewed_by_id, reviewed_by_name, created_at, updated_at"

func (f *pgFunding) Create(ctx context.Context, r model.FundingRequest) error {
	_, err := f.q.Exec(ctx, "insert into funding_requests ("+fundingColumns+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)",
		r.ID, r.UserID, string(r.Kind), string(r.Currency), r.Amount, string(r.Status), r.Reason, r.ReviewedByID, r.ReviewedByName, r.CreatedAt, r.UpdatedAt)
	return err
}

func (f *pgFunding) Get(ctx context.Context, id string) (model.FundingRequest, error) {
	var r model.FundingRequest
	var kind, currency, status string
	err := f.q.QueryRow(ctx, "select "+fundingColumns+" from funding_requests where id = $1"+(*session)(f).lock(), id).
		Scan(&r.ID, &r.UserID, &kind, &currency, &r.Amount, &status, &r.Reason, &r.ReviewedByID, &r.ReviewedByName, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FundingRequest{}, store.ErrNotFound
	}
	if err != nil {
		return model.FundingRequest{}, err
	}
	r.Kind = types.FundingKind(kind)
	r.Currency = types.Currency(currency)
	r.Status = types.RequestStatus(status)
	return r, nil
}

func (f *pgFunding) Update(ctx context.Context, r model.FundingRequest) error {
	tag, err := f.q.Exec(ctx, "update funding_requests set status = $1, reason = $2, reviewed_by_id = $3, reviewed_by_name = $4, updated_at = $5 where id = $6",
		string(r.Status), r.Reason, r.ReviewedByID, r.ReviewedByName, time.Now().UTC(), r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (f *pgFunding) ListByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]model.FundingRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := f.q.Query(ctx, "select "+fundingColumns+" from funding_requests where status = $1 order by created_at asc limit $2", string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FundingRequest
	for rows.Next() {
		var r model.FundingRequest
		var kind, currency, st string
		if err := rows.Scan(&r.ID, &r.UserID, &kind, &currency, &r.Amount, &st, &r.Reason, &r.ReviewedByID, &r.ReviewedByName, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Kind = types.FundingKind(kind)
		r.Currency = types.Currency(currency)
		r.Status = types.RequestStatus(st)
		out = append(out, r)
	}
	return out, rows.Err()
}

type pgAudit session

func (a *pgAudit) Append(ctx context.Context, rec model.AuditRecord) error {
	_, err := a.q.Exec(ctx, "insert into audit_records (id, action, actor_id, actor_name, target_type, target_id, before_snapshot, after_snapshot, reason, created_at) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)",
		rec.ID, rec.Action, rec.ActorID, rec.ActorName, rec.TargetType, rec.TargetID, rec.Before, rec.After, rec.Reason, rec.CreatedAt)
	return err
}

func (a *pgAudit) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.q.Query(ctx, "select id, action, actor_id, actor_name, target_type, target_id, before_snapshot, after_snapshot, reason, created_at from audit_records where target_type = $1 and target_id = $2 order by created_at desc limit $3", targetType, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.ActorID, &rec.ActorName, &rec.TargetType, &rec.TargetID, &rec.Before, &rec.After, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
