package ledger

import (
	"context"
	"sync"
	"testing"

	"lv-backoffice/internal/store"
	"lv-backoffice/internal/store/memory"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, st *memory.Store, userID string, available int64) {
	t.Helper()
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return NewService().Deposit(context.Background(), tx, userID, types.CurrencyCNY, decimal.NewFromInt(available))
	})
	require.NoError(t, err)
}

func TestFreezeUnfreezeRoundTrip(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 10000)

	amount := decimal.RequireFromString("5005.1")
	err := st.InTx(ctx, func(tx store.Tx) error {
		return svc.Freeze(ctx, tx, "u1", types.CurrencyCNY, amount)
	})
	require.NoError(t, err)

	acct, err := st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, acct.Available.Equal(decimal.RequireFromString("4994.9")))
	require.True(t, acct.Frozen.Equal(amount))

	err = st.InTx(ctx, func(tx store.Tx) error {
		return svc.Unfreeze(ctx, tx, "u1", types.CurrencyCNY, amount)
	})
	require.NoError(t, err)

	acct, err = st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, acct.Available.Equal(decimal.NewFromInt(10000)), "available restored exactly, got %s", acct.Available)
	require.True(t, acct.Frozen.IsZero())
}

func TestFreezeInsufficientBalance(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 100)

	err := st.InTx(ctx, func(tx store.Tx) error {
		return svc.Freeze(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(101))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// denial must leave the account untouched
	acct, _ := st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.True(t, acct.Available.Equal(decimal.NewFromInt(100)))
	require.True(t, acct.Frozen.IsZero())
}

func TestConcurrentFreezesNeverOverdraw(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 1000)

	// 20 workers each try to freeze 100; at most 10 can win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.InTx(ctx, func(tx store.Tx) error {
				return svc.Freeze(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(100))
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, succeeded)
	acct, _ := st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.True(t, acct.Available.IsZero())
	require.True(t, acct.Frozen.Equal(decimal.NewFromInt(1000)))
}

func TestSettleBuyConsumesHoldOnly(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 10000)

	err := st.InTx(ctx, func(tx store.Tx) error {
		if err := svc.Freeze(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(6000)); err != nil {
			return err
		}
		return svc.SettleBuy(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(6000))
	})
	require.NoError(t, err)

	acct, _ := st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.True(t, acct.Available.Equal(decimal.NewFromInt(4000)))
	require.True(t, acct.Frozen.IsZero())
}

func TestSettleSellCreditsAvailable(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 1000)

	err := st.InTx(ctx, func(tx store.Tx) error {
		return svc.SettleSell(ctx, tx, "u1", types.CurrencyCNY, decimal.RequireFromString("1973.6"))
	})
	require.NoError(t, err)

	acct, _ := st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.True(t, acct.Available.Equal(decimal.RequireFromString("2973.6")))
}

func TestUnfreezeBeyondFrozenIsInvariantFault(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 1000)

	err := st.InTx(ctx, func(tx store.Tx) error {
		return svc.Unfreeze(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(1))
	})
	require.ErrorIs(t, err, ErrLedgerInvariant)
}

func TestApplyBuyFillAvgCost(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()

	err := st.InTx(ctx, func(tx store.Tx) error {
		if err := svc.ApplyBuyFill(ctx, tx, "u1", "600000", decimal.NewFromInt(500), decimal.NewFromInt(10)); err != nil {
			return err
		}
		return svc.ApplyBuyFill(ctx, tx, "u1", "600000", decimal.NewFromInt(500), decimal.NewFromInt(20))
	})
	require.NoError(t, err)

	pos, err := st.Positions().Get(ctx, "u1", "600000")
	require.NoError(t, err)
	require.True(t, pos.Quantity.Equal(decimal.NewFromInt(1000)))
	require.True(t, pos.AvailableQuantity.Equal(decimal.NewFromInt(1000)))
	require.True(t, pos.AvgCost.Equal(decimal.NewFromInt(15)), "avg cost %s", pos.AvgCost)
}

func TestSellReservationFlow(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()

	err := st.InTx(ctx, func(tx store.Tx) error {
		return svc.ApplyBuyFill(ctx, tx, "u1", "600000", decimal.NewFromInt(500), decimal.NewFromInt(10))
	})
	require.NoError(t, err)

	// reserve 300 for a pending sell
	err = st.InTx(ctx, func(tx store.Tx) error {
		return svc.ReserveShares(ctx, tx, "u1", "600000", decimal.NewFromInt(300))
	})
	require.NoError(t, err)

	// a second sell for the remaining 200 fits; 201 does not
	err = st.InTx(ctx, func(tx store.Tx) error {
		return svc.ReserveShares(ctx, tx, "u1", "600000", decimal.NewFromInt(201))
	})
	require.ErrorIs(t, err, ErrInsufficientPosition)

	// fill the reserved sell
	err = st.InTx(ctx, func(tx store.Tx) error {
		return svc.ApplySellFill(ctx, tx, "u1", "600000", decimal.NewFromInt(300))
	})
	require.NoError(t, err)

	pos, _ := st.Positions().Get(ctx, "u1", "600000")
	require.True(t, pos.Quantity.Equal(decimal.NewFromInt(200)))
	require.True(t, pos.AvailableQuantity.Equal(decimal.NewFromInt(200)))
}

func TestReleaseSharesRestoresReservation(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()

	err := st.InTx(ctx, func(tx store.Tx) error {
		if err := svc.ApplyBuyFill(ctx, tx, "u1", "600000", decimal.NewFromInt(500), decimal.NewFromInt(10)); err != nil {
			return err
		}
		if err := svc.ReserveShares(ctx, tx, "u1", "600000", decimal.NewFromInt(500)); err != nil {
			return err
		}
		return svc.ReleaseShares(ctx, tx, "u1", "600000", decimal.NewFromInt(500))
	})
	require.NoError(t, err)

	pos, _ := st.Positions().Get(ctx, "u1", "600000")
	require.True(t, pos.AvailableQuantity.Equal(decimal.NewFromInt(500)))
}

func TestDepositWritesSettledEntry(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedAccount(t, st, "u1", 500)

	entries, err := st.Ledger().ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, types.LedgerEntryTypeDeposit, entries[0].Type)
	require.True(t, entries[0].Settled)
	require.True(t, entries[0].Amount.Equal(decimal.NewFromInt(500)))
	require.True(t, entries[0].BalanceAfter.Equal(decimal.NewFromInt(500)))
}

func TestRollbackOnMidTxFailure(t *testing.T) {
	st := memory.New()
	svc := NewService()
	ctx := context.Background()
	seedAccount(t, st, "u1", 1000)

	err := st.InTx(ctx, func(tx store.Tx) error {
		if err := svc.Freeze(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(800)); err != nil {
			return err
		}
		// second freeze fails; the first must roll back with it
		return svc.Freeze(ctx, tx, "u1", types.CurrencyCNY, decimal.NewFromInt(800))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	acct, _ := st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.True(t, acct.Available.Equal(decimal.NewFromInt(1000)))
	require.True(t, acct.Frozen.IsZero())
}
