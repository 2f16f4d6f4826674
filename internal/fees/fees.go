package fees

import (
	"lv-backoffice/internal/config"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

// Calculator computes trade cost breakdowns. It is pure: callers must reject
// non-positive price/quantity before calling.
type Calculator struct {
	cfg config.Fees
}

func NewCalculator(cfg config.Fees) Calculator {
	return Calculator{cfg: cfg}
}

type Breakdown struct {
	Amount      decimal.Decimal `json:"amount"`
	Commission  decimal.Decimal `json:"commission"`
	StampDuty   decimal.Decimal `json:"stamp_duty"`
	TransferFee decimal.Decimal `json:"transfer_fee"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// AShare prices a domestic order in the settlement currency. Stamp duty is
// charged on the sell side only.
func (c Calculator) AShare(side types.OrderSide, price, quantity decimal.Decimal) Breakdown {
	return c.breakdown(side, price, quantity, c.cfg.MinCommission)
}

// HKShare prices a cross-currency order. The breakdown is computed in the
// quote currency, with the foreign minimum commission applied before
// conversion, then every component is converted via exchangeRate into the
// settlement currency.
func (c Calculator) HKShare(side types.OrderSide, price, quantity, exchangeRate decimal.Decimal) Breakdown {
	b := c.breakdown(side, price, quantity, c.cfg.MinCommissionForeign)
	return Breakdown{
		Amount:      b.Amount.Mul(exchangeRate),
		Commission:  b.Commission.Mul(exchangeRate),
		StampDuty:   b.StampDuty.Mul(exchangeRate),
		TransferFee: b.TransferFee.Mul(exchangeRate),
		TotalFee:    b.TotalFee.Mul(exchangeRate),
		TotalAmount: b.TotalAmount.Mul(exchangeRate),
	}
}

func (c Calculator) breakdown(side types.OrderSide, price, quantity, minCommission decimal.Decimal) Breakdown {
	amount := price.Mul(quantity)
	commission := amount.Mul(c.cfg.CommissionRate)
	if commission.LessThan(minCommission) {
		commission = minCommission
	}
	stampDuty := decimal.Zero
	if side == types.OrderSideSell {
		stampDuty = amount.Mul(c.cfg.StampDutyRate)
	}
	transferFee := amount.Mul(c.cfg.TransferFeeRate)
	totalFee := commission.Add(stampDuty).Add(transferFee)
	total := amount.Add(totalFee)
	if side == types.OrderSideSell {
		total = amount.Sub(totalFee)
	}
	return Breakdown{
		Amount:      amount,
		Commission:  commission,
		StampDuty:   stampDuty,
		TransferFee: transferFee,
		TotalFee:    totalFee,
		TotalAmount: total,
	}
}
