package types

type OrderSide string

type OrderStatus string

type TradeType string

type Currency string

type LedgerEntryType string

type RiskLevel string

type FundingKind string

type RequestStatus string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

const (
	TradeTypeAShare      TradeType = "a_share"
	TradeTypeHKShare     TradeType = "hk_share"
	TradeTypeBlock       TradeType = "block"
	TradeTypeIPO         TradeType = "ipo"
	TradeTypeBoard       TradeType = "board"
	TradeTypeConditional TradeType = "conditional"
)

const (
	CurrencyCNY Currency = "CNY"
	CurrencyHKD Currency = "HKD"
)

const (
	LedgerEntryTypeDeposit  LedgerEntryType = "deposit"
	LedgerEntryTypeWithdraw LedgerEntryType = "withdraw"
	LedgerEntryTypeTrade    LedgerEntryType = "trade"
	LedgerEntryTypeFee      LedgerEntryType = "fee"
	LedgerEntryTypeAdjust   LedgerEntryType = "adjust"
)

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

const (
	FundingKindDeposit  FundingKind = "deposit"
	FundingKindWithdraw FundingKind = "withdraw"
)

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved:
		return false
	default:
		return true
	}
}

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

func ValidSide(s OrderSide) bool {
	return s == OrderSideBuy || s == OrderSideSell
}

func ValidTradeType(t TradeType) bool {
	switch t {
	case TradeTypeAShare, TradeTypeHKShare, TradeTypeBlock, TradeTypeIPO, TradeTypeBoard, TradeTypeConditional:
		return true
	}
	return false
}
