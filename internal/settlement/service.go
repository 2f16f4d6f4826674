package settlement

import (
	"context"

	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

// Service owns the settled flag on ledger entries. Trade flows are written
// unsettled by execution and reconciled here; everything else settles at
// creation time.
type Service struct {
	st store.Store
}

func NewService(st store.Store) *Service {
	return &Service{st: st}
}

// SettleAllUnsettled marks every unsettled entry of the user settled and
// returns the number of entries touched. Safe to call repeatedly.
func (s *Service) SettleAllUnsettled(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.Ledger().SettleAll(ctx, userID)
		return err
	})
	return n, err
}

// SettleAllTx is the in-transaction variant used when settlement must commit
// together with a withdrawal approval.
func (s *Service) SettleAllTx(ctx context.Context, tx store.Tx, userID string) (int64, error) {
	return tx.Ledger().SettleAll(ctx, userID)
}

// UnsettledTotal sums absolute amounts of the user's unsettled flows in the
// given currency (all currencies when empty). Withdrawal policy gates on it.
func (s *Service) UnsettledTotal(ctx context.Context, userID string, ccy types.Currency) (decimal.Decimal, error) {
	return s.st.Ledger().UnsettledTotal(ctx, userID, ccy)
}
