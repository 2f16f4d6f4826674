package funding

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"lv-backoffice/internal/audit"
	"lv-backoffice/internal/events"
	"lv-backoffice/internal/ledger"
	"lv-backoffice/internal/model"
	"lv-backoffice/internal/settlement"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/store/memory"
	"lv-backoffice/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, requireFlowSettled bool) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(
		st,
		ledger.NewService(),
		settlement.NewService(st),
		requireFlowSettled,
		audit.NewRecorder(st, events.NewBus(), log),
		log,
	), st
}

func seedBalance(t *testing.T, st *memory.Store, userID, amount string) {
	t.Helper()
	ctx := context.Background()
	acct, err := st.Accounts().Ensure(ctx, userID, types.CurrencyCNY)
	require.NoError(t, err)
	acct.Available = decimal.RequireFromString(amount)
	require.NoError(t, st.Accounts().Update(ctx, acct))
}

func account(t *testing.T, st *memory.Store, userID string) model.Account {
	t.Helper()
	acct, err := st.Accounts().Get(context.Background(), userID, types.CurrencyCNY)
	require.NoError(t, err)
	return acct
}

func unsettledTrade(userID, amount string) model.LedgerEntry {
	return model.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  types.CurrencyCNY,
		Type:      types.LedgerEntryTypeTrade,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: time.Now().UTC(),
	}
}

func TestDepositApproval(t *testing.T) {
	svc, st := newTestService(t, true)
	ctx := context.Background()

	req, err := svc.SubmitDeposit(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(10000))
	require.NoError(t, err)
	require.Equal(t, types.RequestStatusPending, req.Status)

	// no account row is created while the deposit is pending
	_, err = st.Accounts().Get(ctx, "u1", types.CurrencyCNY)
	require.ErrorIs(t, err, store.ErrNotFound)

	out, err := svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", AdminName: "ops", Approve: true})
	require.NoError(t, err)
	require.Equal(t, types.RequestStatusApproved, out.Status)

	acct := account(t, st, "u1")
	require.True(t, acct.Available.Equal(decimal.NewFromInt(10000)))

	entries, err := st.Ledger().ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, types.LedgerEntryTypeDeposit, entries[0].Type)
	require.True(t, entries[0].Settled)
}

func TestWithdrawFreezesOnSubmit(t *testing.T) {
	svc, st := newTestService(t, true)
	ctx := context.Background()
	seedBalance(t, st, "u1", "1000")

	req, err := svc.SubmitWithdraw(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(400))
	require.NoError(t, err)

	acct := account(t, st, "u1")
	require.True(t, acct.Available.Equal(decimal.NewFromInt(600)))
	require.True(t, acct.Frozen.Equal(decimal.NewFromInt(400)))

	out, err := svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", Approve: true})
	require.NoError(t, err)
	require.Equal(t, types.RequestStatusApproved, out.Status)

	acct = account(t, st, "u1")
	require.True(t, acct.Available.Equal(decimal.NewFromInt(600)))
	require.True(t, acct.Frozen.IsZero())

	entries, err := st.Ledger().ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, types.LedgerEntryTypeWithdraw, entries[0].Type)
	require.True(t, entries[0].Amount.Equal(decimal.NewFromInt(-400)))
}

func TestWithdrawRejectThaws(t *testing.T) {
	svc, st := newTestService(t, true)
	ctx := context.Background()
	seedBalance(t, st, "u1", "1000")

	req, err := svc.SubmitWithdraw(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(400))
	require.NoError(t, err)

	_, err = svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", Approve: false})
	require.Error(t, err, "reject needs a reason")

	out, err := svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", Approve: false, Reason: "bank details mismatch"})
	require.NoError(t, err)
	require.Equal(t, types.RequestStatusRejected, out.Status)
	require.Equal(t, "bank details mismatch", out.Reason)

	acct := account(t, st, "u1")
	require.True(t, acct.Available.Equal(decimal.NewFromInt(1000)))
	require.True(t, acct.Frozen.IsZero())
}

func TestWithdrawBlockedByUnsettledFlows(t *testing.T) {
	svc, st := newTestService(t, true)
	ctx := context.Background()
	seedBalance(t, st, "u1", "1000")
	require.NoError(t, st.Ledger().Append(ctx, unsettledTrade("u1", "-500")))

	_, err := svc.SubmitWithdraw(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrUnsettledFlows)

	check, err := svc.CheckWithdraw(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.False(t, check.Eligible)
	require.True(t, check.UnsettledTotal.Equal(decimal.NewFromInt(500)))
}

func TestWithdrawPolicyOffIgnoresUnsettled(t *testing.T) {
	svc, st := newTestService(t, false)
	ctx := context.Background()
	seedBalance(t, st, "u1", "1000")
	require.NoError(t, st.Ledger().Append(ctx, unsettledTrade("u1", "-500")))

	_, err := svc.SubmitWithdraw(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(100))
	require.NoError(t, err)

	check, err := svc.CheckWithdraw(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, check.Eligible)
}

func TestWithdrawApprovalSettlesFlowsFirst(t *testing.T) {
	svc, st := newTestService(t, true)
	ctx := context.Background()
	seedBalance(t, st, "u1", "1000")

	req, err := svc.SubmitWithdraw(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(100))
	require.NoError(t, err)

	// a trade flow lands between submission and review
	require.NoError(t, st.Ledger().Append(ctx, unsettledTrade("u1", "-200")))

	_, err = svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", Approve: true})
	require.NoError(t, err)

	total, err := st.Ledger().UnsettledTotal(ctx, "u1", types.CurrencyCNY)
	require.NoError(t, err)
	require.True(t, total.IsZero(), "approval settles outstanding flows")
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	svc, st := newTestService(t, true)
	ctx := context.Background()
	seedBalance(t, st, "u1", "50")

	_, err := svc.SubmitWithdraw(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(100))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	pending, err := st.Funding().ListByStatus(ctx, types.RequestStatusPending, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDecideTerminalGuard(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	req, err := svc.SubmitDeposit(ctx, "u1", types.CurrencyCNY, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", Approve: true})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, DecisionRequest{RequestID: req.ID, AdminID: "a1", Approve: true})
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}
