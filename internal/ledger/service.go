package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lv-backoffice/internal/model"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business-rule denials. Callers translate these into user-facing reasons.
var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position")
)

// ErrLedgerInvariant marks a frozen/available bookkeeping violation. Unlike
// the business errors above this is a programming fault: the caller must
// have unbalanced a freeze with its release.
var ErrLedgerInvariant = errors.New("ledger invariant violated")

// Service is the only code path allowed to mutate Account.available/frozen
// and Position quantities. Every method must be called inside a store
// transaction so the balance check and the write commit as one unit.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Freeze moves amount from available to frozen.
func (s *Service) Freeze(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, amount decimal.Decimal) error {
	acct, err := tx.Accounts().Ensure(ctx, userID, ccy)
	if err != nil {
		return err
	}
	if acct.Available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	acct.Available = acct.Available.Sub(amount)
	acct.Frozen = acct.Frozen.Add(amount)
	return tx.Accounts().Update(ctx, acct)
}

// Unfreeze moves amount from frozen back to available. The caller guarantees
// a matching earlier freeze.
func (s *Service) Unfreeze(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, amount decimal.Decimal) error {
	acct, err := tx.Accounts().Get(ctx, userID, ccy)
	if err != nil {
		return err
	}
	if acct.Frozen.LessThan(amount) {
		return fmt.Errorf("%w: unfreeze %s exceeds frozen %s", ErrLedgerInvariant, amount, acct.Frozen)
	}
	acct.Frozen = acct.Frozen.Sub(amount)
	acct.Available = acct.Available.Add(amount)
	return tx.Accounts().Update(ctx, acct)
}

// SettleBuy releases a frozen hold on buy execution. The cash was committed
// at freeze time; execution only consumes the hold, available is untouched.
func (s *Service) SettleBuy(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, frozenAmount decimal.Decimal) error {
	acct, err := tx.Accounts().Get(ctx, userID, ccy)
	if err != nil {
		return err
	}
	if acct.Frozen.LessThan(frozenAmount) {
		return fmt.Errorf("%w: settle %s exceeds frozen %s", ErrLedgerInvariant, frozenAmount, acct.Frozen)
	}
	acct.Frozen = acct.Frozen.Sub(frozenAmount)
	return tx.Accounts().Update(ctx, acct)
}

// SettleSell credits sale proceeds to available. Sell orders freeze shares,
// not cash, so there is no hold to release here.
func (s *Service) SettleSell(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, proceeds decimal.Decimal) error {
	acct, err := tx.Accounts().Ensure(ctx, userID, ccy)
	if err != nil {
		return err
	}
	acct.Available = acct.Available.Add(proceeds)
	return tx.Accounts().Update(ctx, acct)
}

// DebitAvailable takes amount straight out of available. Used when an
// execution costs more than the frozen estimate.
func (s *Service) DebitAvailable(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, amount decimal.Decimal) error {
	acct, err := tx.Accounts().Get(ctx, userID, ccy)
	if err != nil {
		return err
	}
	if acct.Available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	acct.Available = acct.Available.Sub(amount)
	return tx.Accounts().Update(ctx, acct)
}

// ReserveShares holds quantity of a position for a pending sell order.
func (s *Service) ReserveShares(ctx context.Context, tx store.Tx, userID, symbol string, quantity decimal.Decimal) error {
	pos, err := tx.Positions().Get(ctx, userID, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInsufficientPosition
		}
		return err
	}
	if pos.AvailableQuantity.LessThan(quantity) {
		return ErrInsufficientPosition
	}
	pos.AvailableQuantity = pos.AvailableQuantity.Sub(quantity)
	return tx.Positions().Update(ctx, pos)
}

// ReleaseShares returns a reservation after reject/cancel.
func (s *Service) ReleaseShares(ctx context.Context, tx store.Tx, userID, symbol string, quantity decimal.Decimal) error {
	pos, err := tx.Positions().Get(ctx, userID, symbol)
	if err != nil {
		return err
	}
	pos.AvailableQuantity = pos.AvailableQuantity.Add(quantity)
	if pos.AvailableQuantity.GreaterThan(pos.Quantity) {
		return fmt.Errorf("%w: release drives available quantity above total", ErrLedgerInvariant)
	}
	return tx.Positions().Update(ctx, pos)
}

// ApplyBuyFill adds quantity at price and recomputes the average cost.
func (s *Service) ApplyBuyFill(ctx context.Context, tx store.Tx, userID, symbol string, quantity, price decimal.Decimal) error {
	pos, err := tx.Positions().Ensure(ctx, userID, symbol)
	if err != nil {
		return err
	}
	newQty := pos.Quantity.Add(quantity)
	pos.AvgCost = pos.AvgCost.Mul(pos.Quantity).Add(price.Mul(quantity)).Div(newQty)
	pos.Quantity = newQty
	pos.AvailableQuantity = pos.AvailableQuantity.Add(quantity)
	return tx.Positions().Update(ctx, pos)
}

// ApplySellFill removes quantity from the position total. The available
// quantity was already taken by the reservation at order creation.
func (s *Service) ApplySellFill(ctx context.Context, tx store.Tx, userID, symbol string, quantity decimal.Decimal) error {
	pos, err := tx.Positions().Get(ctx, userID, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInsufficientPosition
		}
		return err
	}
	if pos.Quantity.LessThan(quantity) {
		return ErrInsufficientPosition
	}
	pos.Quantity = pos.Quantity.Sub(quantity)
	return tx.Positions().Update(ctx, pos)
}

// Deposit credits available and writes a settled deposit entry.
func (s *Service) Deposit(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, amount decimal.Decimal) error {
	acct, err := tx.Accounts().Ensure(ctx, userID, ccy)
	if err != nil {
		return err
	}
	acct.Available = acct.Available.Add(amount)
	if err := tx.Accounts().Update(ctx, acct); err != nil {
		return err
	}
	return s.append(ctx, tx, acct, types.LedgerEntryTypeDeposit, amount, true, "")
}

// SettleWithdraw consumes a frozen withdrawal hold and writes a settled
// withdraw entry. The hold was placed when the request was submitted.
func (s *Service) SettleWithdraw(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, amount decimal.Decimal) error {
	if err := s.SettleBuy(ctx, tx, userID, ccy, amount); err != nil {
		return err
	}
	acct, err := tx.Accounts().Get(ctx, userID, ccy)
	if err != nil {
		return err
	}
	return s.append(ctx, tx, acct, types.LedgerEntryTypeWithdraw, amount.Neg(), true, "")
}

// Adjust applies a signed manual correction and writes a settled adjust entry.
func (s *Service) Adjust(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, amount decimal.Decimal) error {
	acct, err := tx.Accounts().Ensure(ctx, userID, ccy)
	if err != nil {
		return err
	}
	next := acct.Available.Add(amount)
	if next.IsNegative() {
		return ErrInsufficientBalance
	}
	acct.Available = next
	if err := tx.Accounts().Update(ctx, acct); err != nil {
		return err
	}
	return s.append(ctx, tx, acct, types.LedgerEntryTypeAdjust, amount, true, "")
}

// RecordTrade writes the unsettled trade flow for an executed order:
// negative for a buy, positive for a sell.
func (s *Service) RecordTrade(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, orderID string, amount decimal.Decimal) error {
	acct, err := tx.Accounts().Get(ctx, userID, ccy)
	if err != nil {
		return err
	}
	return s.append(ctx, tx, acct, types.LedgerEntryTypeTrade, amount, false, orderID)
}

// RecordFee writes the settled fee entry for an executed order.
func (s *Service) RecordFee(ctx context.Context, tx store.Tx, userID string, ccy types.Currency, orderID string, fee decimal.Decimal) error {
	acct, err := tx.Accounts().Get(ctx, userID, ccy)
	if err != nil {
		return err
	}
	return s.append(ctx, tx, acct, types.LedgerEntryTypeFee, fee.Neg(), true, orderID)
}

func (s *Service) append(ctx context.Context, tx store.Tx, acct model.Account, entryType types.LedgerEntryType, amount decimal.Decimal, settled bool, orderID string) error {
	return tx.Ledger().Append(ctx, model.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       acct.UserID,
		Currency:     acct.Currency,
		Type:         entryType,
		Amount:       amount,
		BalanceAfter: acct.Available,
		Settled:      settled,
		OrderID:      orderID,
		CreatedAt:    time.Now().UTC(),
	})
}
