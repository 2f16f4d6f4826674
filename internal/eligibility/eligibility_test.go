package eligibility

import (
	"testing"

	"lv-backoffice/internal/config"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testEngine() Engine {
	return NewEngine(config.Eligibility{
		MaxApplyAmount:          decimal.NewFromInt(1000000),
		QualificationDays:       20,
		MinBlockAmount:          decimal.NewFromInt(2000000),
		MinBlockQuantity:        decimal.NewFromInt(300000),
		MaxDiscountRate:         decimal.RequireFromString("0.3"),
		DailyUserQuota:          decimal.NewFromInt(100000),
		RiskAmountThreshold:     decimal.NewFromInt(50000),
		ManualApprovalThreshold: decimal.NewFromInt(80000),
	})
}

func TestQualifyIPOBoundary(t *testing.T) {
	e := testEngine()
	facts := IPOFacts{
		TradeDaysOnRecord: 19,
		Balance:           decimal.NewFromInt(500000),
		ApplyAmount:       decimal.NewFromInt(100000),
	}
	d := e.QualifyIPO(facts)
	require.False(t, d.Approved)
	require.Equal(t, "insufficient trading history for IPO subscription", d.Reason)

	facts.TradeDaysOnRecord = 20
	d = e.QualifyIPO(facts)
	require.True(t, d.Approved)
}

func TestQualifyIPOReasonOrder(t *testing.T) {
	e := testEngine()
	// balance fails before apply-amount ceiling
	d := e.QualifyIPO(IPOFacts{
		TradeDaysOnRecord: 30,
		Balance:           decimal.NewFromInt(1000),
		ApplyAmount:       decimal.NewFromInt(2000000),
	})
	require.False(t, d.Approved)
	require.Equal(t, "balance below apply amount", d.Reason)

	d = e.QualifyIPO(IPOFacts{
		TradeDaysOnRecord: 30,
		Balance:           decimal.NewFromInt(5000000),
		ApplyAmount:       decimal.NewFromInt(2000000),
	})
	require.False(t, d.Approved)
	require.Equal(t, "apply amount exceeds maximum", d.Reason)
}

func TestMatchBlockFirstFailureWins(t *testing.T) {
	e := testEngine()

	d := e.MatchBlock(BlockFacts{
		Price:        decimal.NewFromInt(5),
		Quantity:     decimal.NewFromInt(100000),
		MinQuantity:  decimal.NewFromInt(300000),
		DiscountRate: decimal.RequireFromString("0.5"),
	})
	// amount 500000 < 2000000 is reported even though lot and discount also fail
	require.False(t, d.Approved)
	require.Equal(t, "amount below block trade minimum", d.Reason)

	d = e.MatchBlock(BlockFacts{
		Price:        decimal.NewFromInt(10),
		Quantity:     decimal.NewFromInt(250000),
		MinQuantity:  decimal.NewFromInt(300000),
		DiscountRate: decimal.RequireFromString("0.1"),
	})
	require.Equal(t, "quantity below block trade minimum lot", d.Reason)

	d = e.MatchBlock(BlockFacts{
		Price:        decimal.NewFromInt(10),
		Quantity:     decimal.NewFromInt(400000),
		MinQuantity:  decimal.NewFromInt(300000),
		DiscountRate: decimal.RequireFromString("0.4"),
	})
	require.Equal(t, "discount rate exceeds maximum", d.Reason)

	d = e.MatchBlock(BlockFacts{
		Price:        decimal.NewFromInt(10),
		Quantity:     decimal.NewFromInt(400000),
		MinQuantity:  decimal.NewFromInt(300000),
		DiscountRate: decimal.RequireFromString("0.2"),
	})
	require.True(t, d.Approved)
}

func TestScoreBoardPriorityOrdering(t *testing.T) {
	e := testEngine()

	// 90000 with an untouched quota must hit the manual-approval threshold,
	// not fall through to medium risk.
	d := e.ScoreBoard(BoardFacts{
		OrderAmount:        decimal.NewFromInt(90000),
		UserUsedQuotaToday: decimal.Zero,
	})
	require.False(t, d.Approved)
	require.True(t, d.ManualRequired)
	require.Equal(t, "exceeds manual-approval threshold", d.Reason)

	// quota dominates the threshold check
	d = e.ScoreBoard(BoardFacts{
		OrderAmount:        decimal.NewFromInt(90000),
		UserUsedQuotaToday: decimal.NewFromInt(50000),
	})
	require.Equal(t, "exceeds daily quota", d.Reason)

	d = e.ScoreBoard(BoardFacts{
		OrderAmount:            decimal.NewFromInt(30000),
		ConsecutiveLimitUpDays: 3,
	})
	require.True(t, d.ManualRequired)
	require.Equal(t, "high risk: 3+ consecutive limit-up days", d.Reason)

	d = e.ScoreBoard(BoardFacts{OrderAmount: decimal.NewFromInt(60000)})
	require.True(t, d.Approved)
	require.False(t, d.ManualRequired)
	require.Equal(t, types.RiskLevelMedium, d.RiskLevel)

	d = e.ScoreBoard(BoardFacts{OrderAmount: decimal.NewFromInt(10000)})
	require.True(t, d.Approved)
	require.Equal(t, types.RiskLevelLow, d.RiskLevel)
}
