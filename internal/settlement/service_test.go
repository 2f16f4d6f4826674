package settlement

import (
	"context"
	"testing"
	"time"

	"lv-backoffice/internal/model"
	"lv-backoffice/internal/store/memory"
	"lv-backoffice/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func entry(userID string, amount string, settled bool) model.LedgerEntry {
	return model.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Currency:     types.CurrencyCNY,
		Type:         types.LedgerEntryTypeTrade,
		Amount:       decimal.RequireFromString(amount),
		BalanceAfter: decimal.Zero,
		Settled:      settled,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestSettleAllIdempotent(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()

	require.NoError(t, st.Ledger().Append(ctx, entry("u1", "-5000", false)))
	require.NoError(t, st.Ledger().Append(ctx, entry("u1", "1973.6", false)))
	require.NoError(t, st.Ledger().Append(ctx, entry("u1", "-5.1", true)))

	total, err := svc.UnsettledTotal(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("6973.6")), "unsettled %s", total)

	n, err := svc.SettleAllUnsettled(ctx, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	total, err = svc.UnsettledTotal(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, total.IsZero())

	// second pass touches nothing and stays at zero
	n, err = svc.SettleAllUnsettled(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, n)

	total, err = svc.UnsettledTotal(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, total.IsZero())

	// settlement only flips the flag
	entries, err := st.Ledger().ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.True(t, e.Settled)
		require.Equal(t, types.LedgerEntryTypeTrade, e.Type)
	}
}

func TestUnsettledTotalScopedToUser(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()

	require.NoError(t, st.Ledger().Append(ctx, entry("u1", "-100", false)))
	require.NoError(t, st.Ledger().Append(ctx, entry("u2", "-900", false)))

	total, err := svc.UnsettledTotal(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(100)))
}
