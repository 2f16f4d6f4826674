package model

import (
	"time"

	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

// Account is one user's cash balance in one currency. Available and Frozen
// are both kept >= 0; only the fund ledger mutates them.
type Account struct {
	UserID    string          `json:"user_id"`
	Currency  types.Currency  `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Position struct {
	UserID            string          `json:"user_id"`
	Symbol            string          `json:"symbol"`
	Quantity          decimal.Decimal `json:"quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	AvgCost           decimal.Decimal `json:"avg_cost"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Order struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	TradeType      types.TradeType       `json:"trade_type"`
	Symbol         string                `json:"symbol"`
	Side           types.OrderSide       `json:"side"`
	Price          decimal.Decimal       `json:"price"`
	TriggerPrice   *decimal.Decimal      `json:"trigger_price,omitempty"`
	Quantity       decimal.Decimal       `json:"quantity"`
	Currency       types.Currency        `json:"currency"`
	Status         types.OrderStatus     `json:"status"`
	FrozenAmount   decimal.Decimal       `json:"frozen_amount"`
	ExchangeRate   *decimal.Decimal      `json:"exchange_rate,omitempty"`
	DiscountRate   *decimal.Decimal      `json:"discount_rate,omitempty"`
	Decision       *EligibilityDecision  `json:"decision,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	ReviewedByID   string                `json:"reviewed_by_id,omitempty"`
	ReviewedByName string                `json:"reviewed_by_name,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// LedgerEntry rows are append-only: after creation only the Settled flag may
// flip, and only from false to true.
type LedgerEntry struct {
	ID           string                `json:"id"`
	UserID       string                `json:"user_id"`
	Currency     types.Currency        `json:"currency"`
	Type         types.LedgerEntryType `json:"type"`
	Amount       decimal.Decimal       `json:"amount"`
	BalanceAfter decimal.Decimal       `json:"balance_after"`
	Settled      bool                  `json:"settled"`
	OrderID      string                `json:"order_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// EligibilityDecision is attached to the order at creation time for audit;
// it is not an entity of its own.
type EligibilityDecision struct {
	Approved       bool            `json:"approved"`
	ManualRequired bool            `json:"manual_required"`
	Reason         string          `json:"reason,omitempty"`
	RiskLevel      types.RiskLevel `json:"risk_level"`
}

type FundingRequest struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Kind           types.FundingKind   `json:"kind"`
	Currency       types.Currency      `json:"currency"`
	Amount         decimal.Decimal     `json:"amount"`
	Status         types.RequestStatus `json:"status"`
	Reason         string              `json:"reason,omitempty"`
	ReviewedByID   string              `json:"reviewed_by_id,omitempty"`
	ReviewedByName string              `json:"reviewed_by_name,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type AuditRecord struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Before     string    `json:"before,omitempty"`
	After      string    `json:"after,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
