package eligibility

import (
	"lv-backoffice/internal/config"
	"lv-backoffice/internal/model"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

// Engine holds the externally supplied thresholds. All checks are pure
// predicates: business-rule failures come back as decision values, never as
// errors.
type Engine struct {
	cfg config.Eligibility
}

func NewEngine(cfg config.Eligibility) Engine {
	return Engine{cfg: cfg}
}

// IPOFacts are the user/account facts an IPO subscription is judged on.
type IPOFacts struct {
	TradeDaysOnRecord int
	Balance           decimal.Decimal
	ApplyAmount       decimal.Decimal
}

// QualifyIPO checks conditions in order: trading history, balance, apply
// ceiling. The first failing condition determines the reason.
func (e Engine) QualifyIPO(f IPOFacts) model.EligibilityDecision {
	if f.TradeDaysOnRecord < e.cfg.QualificationDays {
		return deny("insufficient trading history for IPO subscription")
	}
	if f.Balance.LessThan(f.ApplyAmount) {
		return deny("balance below apply amount")
	}
	if f.ApplyAmount.GreaterThan(e.cfg.MaxApplyAmount) {
		return deny("apply amount exceeds maximum")
	}
	return model.EligibilityDecision{Approved: true, RiskLevel: types.RiskLevelLow}
}

// BlockFacts describe a negotiated block trade. MinQuantity is the
// market-wide minimum lot and is passed in by the caller.
type BlockFacts struct {
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	MinQuantity  decimal.Decimal
	DiscountRate decimal.Decimal
}

// MatchBlock returns on the first failing threshold: notional, lot size,
// then discount.
func (e Engine) MatchBlock(f BlockFacts) model.EligibilityDecision {
	amount := f.Price.Mul(f.Quantity)
	if amount.LessThan(e.cfg.MinBlockAmount) {
		return deny("amount below block trade minimum")
	}
	if f.Quantity.LessThan(f.MinQuantity) {
		return deny("quantity below block trade minimum lot")
	}
	if f.DiscountRate.GreaterThan(e.cfg.MaxDiscountRate) {
		return deny("discount rate exceeds maximum")
	}
	return model.EligibilityDecision{Approved: true, RiskLevel: types.RiskLevelLow}
}

// BoardFacts describe a limit-up board strategy order.
type BoardFacts struct {
	OrderAmount            decimal.Decimal
	UserUsedQuotaToday     decimal.Decimal
	ConsecutiveLimitUpDays int
}

// ScoreBoard evaluates risk outcomes in strict priority order; the first
// match wins. Quota and absolute-threshold denials must dominate risk-level
// scoring so a large order cannot fall through to auto-approval.
func (e Engine) ScoreBoard(f BoardFacts) model.EligibilityDecision {
	if f.OrderAmount.GreaterThan(e.cfg.DailyUserQuota.Sub(f.UserUsedQuotaToday)) {
		return manual("exceeds daily quota")
	}
	if f.OrderAmount.GreaterThan(e.cfg.ManualApprovalThreshold) {
		return manual("exceeds manual-approval threshold")
	}
	if f.ConsecutiveLimitUpDays >= 3 {
		return manual("high risk: 3+ consecutive limit-up days")
	}
	if f.OrderAmount.GreaterThan(e.cfg.RiskAmountThreshold) {
		return model.EligibilityDecision{Approved: true, RiskLevel: types.RiskLevelMedium}
	}
	return model.EligibilityDecision{Approved: true, RiskLevel: types.RiskLevelLow}
}

func deny(reason string) model.EligibilityDecision {
	return model.EligibilityDecision{Reason: reason, RiskLevel: types.RiskLevelLow}
}

func manual(reason string) model.EligibilityDecision {
	return model.EligibilityDecision{ManualRequired: true, Reason: reason, RiskLevel: types.RiskLevelHigh}
}
