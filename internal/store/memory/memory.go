package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lv-backoffice/internal/model"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

// Store keeps everything in process memory behind one mutex: every InTx body
// runs serialized, which gives the same atomic read-modify-write guarantee
// the postgres implementation gets from serializable transactions. Used by
// tests and dev mode.
type Store struct {
	mu sync.Mutex
	st *state
}

type acctKey struct {
	user string
	ccy  types.Currency
}

type posKey struct {
	user   string
	symbol string
}

type state struct {
	accounts  map[acctKey]model.Account
	positions map[posKey]model.Position
	orders    map[string]model.Order
	orderIDs  []string
	entries   []model.LedgerEntry
	funding   map[string]model.FundingRequest
	fundIDs   []string
	audits    []model.AuditRecord
}

func New() *Store {
	return &Store{st: &state{
		accounts:  make(map[acctKey]model.Account),
		positions: make(map[posKey]model.Position),
		orders:    make(map[string]model.Order),
		funding:   make(map[string]model.FundingRequest),
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&view{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := &state{
		accounts:  make(map[acctKey]model.Account, len(s.accounts)),
		positions: make(map[posKey]model.Position, len(s.positions)),
		orders:    make(map[string]model.Order, len(s.orders)),
		orderIDs:  append([]string(nil), s.orderIDs...),
		entries:   append([]model.LedgerEntry(nil), s.entries...),
		funding:   make(map[string]model.FundingRequest, len(s.funding)),
		fundIDs:   append([]string(nil), s.fundIDs...),
		audits:    append([]model.AuditRecord(nil), s.audits...),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.funding {
		c.funding[k] = v
	}
	return c
}

// view implements store.Tx over the live state; callers hold the mutex.
type view struct {
	st *state
}

func (v *view) Accounts() store.AccountStore   { return (*accounts)(v) }
func (v *view) Positions() store.PositionStore { return (*positions)(v) }
func (v *view) Orders() store.OrderStore       { return (*orders)(v) }
func (v *view) Ledger() store.LedgerStore      { return (*ledger)(v) }
func (v *view) Funding() store.FundingStore    { return (*funding)(v) }
func (v *view) Audit() store.AuditStore        { return (*audit)(v) }

// Autocommit accessors: each call takes the lock for its own duration.
func (s *Store) Accounts() store.AccountStore   { return autoAccounts{s} }
func (s *Store) Positions() store.PositionStore { return autoPositions{s} }
func (s *Store) Orders() store.OrderStore       { return autoOrders{s} }
func (s *Store) Ledger() store.LedgerStore      { return autoLedger{s} }
func (s *Store) Funding() store.FundingStore    { return autoFunding{s} }
func (s *Store) Audit() store.AuditStore        { return autoAudit{s} }

type accounts view

func (a *accounts) Ensure(ctx context.Context, userID string, ccy types.Currency) (model.Account, error) {
	k := acctKey{userID, ccy}
	if acct, ok := a.st.accounts[k]; ok {
		return acct, nil
	}
	acct := model.Account{
		UserID:    userID,
		Currency:  ccy,
		Available: decimal.Zero,
		Frozen:    decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
	a.st.accounts[k] = acct
	return acct, nil
}

func (a *accounts) Get(ctx context.Context, userID string, ccy types.Currency) (model.Account, error) {
	acct, ok := a.st.accounts[acctKey{userID, ccy}]
	if !ok {
		return model.Account{}, store.ErrNotFound
	}
	return acct, nil
}

func (a *accounts) Update(ctx context.Context, acct model.Account) error {
	k := acctKey{acct.UserID, acct.Currency}
	if _, ok := a.st.accounts[k]; !ok {
		return store.ErrNotFound
	}
	acct.UpdatedAt = time.Now().UTC()
	a.st.accounts[k] = acct
	return nil
}

type positions view

func (p *positions) Ensure(ctx context.Context, userID, symbol string) (model.Position, error) {
	k := posKey{userID, symbol}
	if pos, ok := p.st.positions[k]; ok {
		return pos, nil
	}
	pos := model.Position{
		UserID:            userID,
		Symbol:            symbol,
		Quantity:          decimal.Zero,
		AvailableQuantity: decimal.Zero,
		AvgCost:           decimal.Zero,
		UpdatedAt:         time.Now().UTC(),
	}
	p.st.positions[k] = pos
	return pos, nil
}

func (p *positions) Get(ctx context.Context, userID, symbol string) (model.Position, error) {
	pos, ok := p.st.positions[posKey{userID, symbol}]
	if !ok {
		return model.Position{}, store.ErrNotFound
	}
	return pos, nil
}

func (p *positions) Update(ctx context.Context, pos model.Position) error {
	k := posKey{pos.UserID, pos.Symbol}
	if _, ok := p.st.positions[k]; !ok {
		return store.ErrNotFound
	}
	pos.UpdatedAt = time.Now().UTC()
	p.st.positions[k] = pos
	return nil
}

type orders view

func (o *orders) Create(ctx context.Context, ord model.Order) error {
	o.st.orders[ord.ID] = ord
	o.st.orderIDs = append(o.st.orderIDs, ord.ID)
	return nil
}

func (o *orders) Get(ctx context.Context, id string) (model.Order, error) {
	ord, ok := o.st.orders[id]
	if !ok {
		return model.Order{}, store.ErrNotFound
	}
	return ord, nil
}

func (o *orders) Update(ctx context.Context, ord model.Order) error {
	if _, ok := o.st.orders[ord.ID]; !ok {
		return store.ErrNotFound
	}
	ord.UpdatedAt = time.Now().UTC()
	o.st.orders[ord.ID] = ord
	return nil
}

func (o *orders) ListByStatus(ctx context.Context, status types.OrderStatus, limit int) ([]model.Order, error) {
	var out []model.Order
	for _, id := range o.st.orderIDs {
		ord := o.st.orders[id]
		if ord.Status != status {
			continue
		}
		out = append(out, ord)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (o *orders) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	var out []model.Order
	for _, id := range o.st.orderIDs {
		ord := o.st.orders[id]
		if ord.UserID != userID {
			continue
		}
		out = append(out, ord)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *orders) SumBoardAmountToday(ctx context.Context, userID string, day time.Time) (decimal.Decimal, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	sum := decimal.Zero
	for _, id := range o.st.orderIDs {
		ord := o.st.orders[id]
		if ord.UserID != userID || ord.TradeType != types.TradeTypeBoard {
			continue
		}
		if ord.Status == types.OrderStatusRejected || ord.Status == types.OrderStatusCancelled {
			continue
		}
		if ord.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(dayStart) {
			sum = sum.Add(ord.Price.Mul(ord.Quantity))
		}
	}
	return sum, nil
}

type ledger view

func (l *ledger) Append(ctx context.Context, e model.LedgerEntry) error {
	l.st.entries = append(l.st.entries, e)
	return nil
}

func (l *ledger) UnsettledTotal(ctx context.Context, userID string, ccy types.Currency) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range l.st.entries {
		if e.UserID != userID || e.Settled {
			continue
		}
		if ccy != "" && e.Currency != ccy {
			continue
		}
		sum = sum.Add(e.Amount.Abs())
	}
	return sum, nil
}

func (l *ledger) SettleAll(ctx context.Context, userID string) (int64, error) {
	var n int64
	for i := range l.st.entries {
		if l.st.entries[i].UserID == userID && !l.st.entries[i].Settled {
			l.st.entries[i].Settled = true
			n++
		}
	}
	return n, nil
}

func (l *ledger) ListByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	for i := len(l.st.entries) - 1; i >= 0; i-- {
		if l.st.entries[i].UserID != userID {
			continue
		}
		out = append(out, l.st.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type funding view

func (f *funding) Create(ctx context.Context, r model.FundingRequest) error {
	f.st.funding[r.ID] = r
	f.st.fundIDs = append(f.st.fundIDs, r.ID)
	return nil
}

func (f *funding) Get(ctx context.Context, id string) (model.FundingRequest, error) {
	r, ok := f.st.funding[id]
	if !ok {
		return model.FundingRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (f *funding) Update(ctx context.Context, r model.FundingRequest) error {
	if _, ok := f.st.funding[r.ID]; !ok {
		return store.ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	f.st.funding[r.ID] = r
	return nil
}

func (f *funding) ListByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]model.FundingRequest, error) {
	var out []model.FundingRequest
	for _, id := range f.st.fundIDs {
		r := f.st.funding[id]
		if r.Status != status {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type audit view

func (a *audit) Append(ctx context.Context, rec model.AuditRecord) error {
	a.st.audits = append(a.st.audits, rec)
	return nil
}

func (a *audit) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]model.AuditRecord, error) {
	var out []model.AuditRecord
	for i := len(a.st.audits) - 1; i >= 0; i-- {
		rec := a.st.audits[i]
		if rec.TargetType != targetType || rec.TargetID != targetID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
