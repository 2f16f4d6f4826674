package fees

import (
	"testing"

	"lv-backoffice/internal/config"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Fees {
	return config.Fees{
		CommissionRate:       decimal.RequireFromString("0.0003"),
		StampDutyRate:        decimal.RequireFromString("0.001"),
		TransferFeeRate:      decimal.RequireFromString("0.00002"),
		MinCommission:        decimal.NewFromInt(5),
		MinCommissionForeign: decimal.NewFromInt(100),
	}
}

func TestAShareBuy(t *testing.T) {
	c := NewCalculator(testConfig())
	b := c.AShare(types.OrderSideBuy, decimal.NewFromInt(10), decimal.NewFromInt(500))

	require.True(t, b.Amount.Equal(decimal.NewFromInt(5000)), "amount %s", b.Amount)
	require.True(t, b.Commission.Equal(decimal.NewFromInt(5)), "commission %s", b.Commission)
	require.True(t, b.StampDuty.IsZero(), "no stamp duty on buys")
	require.True(t, b.TransferFee.Equal(decimal.RequireFromString("0.1")), "transfer fee %s", b.TransferFee)
	require.True(t, b.TotalFee.Equal(decimal.RequireFromString("5.1")), "total fee %s", b.TotalFee)
	require.True(t, b.TotalAmount.Equal(decimal.RequireFromString("5005.1")), "total %s", b.TotalAmount)
}

func TestAShareSellChargesStampDuty(t *testing.T) {
	c := NewCalculator(testConfig())
	b := c.AShare(types.OrderSideSell, decimal.NewFromInt(20), decimal.NewFromInt(1000))

	// amount=20000 commission=6 stamp=20 transfer=0.4
	require.True(t, b.Commission.Equal(decimal.NewFromInt(6)))
	require.True(t, b.StampDuty.Equal(decimal.NewFromInt(20)))
	require.True(t, b.TransferFee.Equal(decimal.RequireFromString("0.4")))
	require.True(t, b.TotalFee.Equal(decimal.RequireFromString("26.4")))
	require.True(t, b.TotalAmount.Equal(decimal.RequireFromString("19973.6")))
}

func TestMinimumCommissionFloor(t *testing.T) {
	c := NewCalculator(testConfig())
	b := c.AShare(types.OrderSideBuy, decimal.NewFromInt(1), decimal.NewFromInt(100))

	// amount=100, rate-based commission would be 0.03
	require.True(t, b.Commission.Equal(decimal.NewFromInt(5)))
}

func TestHKShareConvertsAfterForeignMinimum(t *testing.T) {
	c := NewCalculator(testConfig())
	rate := decimal.RequireFromString("0.92")
	b := c.HKShare(types.OrderSideBuy, decimal.NewFromInt(50), decimal.NewFromInt(100), rate)

	// quote amount = 5000, commission floored at 100 HKD before conversion
	require.True(t, b.Commission.Equal(decimal.NewFromInt(100).Mul(rate)), "commission %s", b.Commission)
	require.True(t, b.Amount.Equal(decimal.NewFromInt(5000).Mul(rate)))

	quoteFee := decimal.NewFromInt(100).Add(decimal.RequireFromString("0.1"))
	require.True(t, b.TotalFee.Equal(quoteFee.Mul(rate)))
	require.True(t, b.TotalAmount.Equal(decimal.NewFromInt(5000).Add(quoteFee).Mul(rate)))
}

func TestBuyNeverBelowAmountSellNeverAbove(t *testing.T) {
	c := NewCalculator(testConfig())
	prices := []int64{1, 7, 13, 99, 1000}
	qtys := []int64{100, 500, 10000}
	for _, p := range prices {
		for _, q := range qtys {
			buy := c.AShare(types.OrderSideBuy, decimal.NewFromInt(p), decimal.NewFromInt(q))
			sell := c.AShare(types.OrderSideSell, decimal.NewFromInt(p), decimal.NewFromInt(q))
			require.True(t, buy.TotalAmount.GreaterThanOrEqual(buy.Amount))
			require.True(t, sell.TotalAmount.LessThanOrEqual(sell.Amount))
		}
	}
}

func TestDeterministic(t *testing.T) {
	c := NewCalculator(testConfig())
	a := c.AShare(types.OrderSideSell, decimal.RequireFromString("12.34"), decimal.NewFromInt(700))
	b := c.AShare(types.OrderSideSell, decimal.RequireFromString("12.34"), decimal.NewFromInt(700))
	require.Equal(t, a, b)
}
