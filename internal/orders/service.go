package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lv-backoffice/internal/audit"
	"lv-backoffice/internal/config"
	"lv-backoffice/internal/eligibility"
	"lv-backoffice/internal/fees"
	"lv-backoffice/internal/ledger"
	"lv-backoffice/internal/model"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidStateTransition is returned for any action on an order that has
// left the pending state. Retried approvals hit this guard instead of
// executing twice.
var ErrInvalidStateTransition = errors.New("invalid state transition")

type Service struct {
	st      store.Store
	funds   *ledger.Service
	calc    fees.Calculator
	elig    eligibility.Engine
	eligCfg config.Eligibility
	auditor *audit.Recorder
	metrics *Metrics
	log     *slog.Logger
}

func NewService(st store.Store, funds *ledger.Service, calc fees.Calculator, elig eligibility.Engine, eligCfg config.Eligibility, auditor *audit.Recorder, metrics *Metrics, log *slog.Logger) *Service {
	return &Service{
		st:      st,
		funds:   funds,
		calc:    calc,
		elig:    elig,
		eligCfg: eligCfg,
		auditor: auditor,
		metrics: metrics,
		log:     log,
	}
}

type SubmitRequest struct {
	UserID       string
	Symbol       string
	Side         types.OrderSide
	TradeType    types.TradeType
	Price        decimal.Decimal
	TriggerPrice *decimal.Decimal
	Quantity     decimal.Decimal
	Currency     types.Currency
	ExchangeRate *decimal.Decimal
	DiscountRate *decimal.Decimal

	// User facts supplied by upstream collaborators.
	TradeDaysOnRecord      int
	ConsecutiveLimitUpDays int
}

type SubmitResult struct {
	OrderID  string
	Status   types.OrderStatus
	Denied   bool
	Decision *model.EligibilityDecision
}

func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.UserID == "" || req.Symbol == "" {
		return SubmitResult{}, errors.New("missing user or symbol")
	}
	if !types.ValidSide(req.Side) {
		return SubmitResult{}, errors.New("invalid side")
	}
	if !types.ValidTradeType(req.TradeType) {
		return SubmitResult{}, errors.New("invalid trade type")
	}
	if !req.Price.GreaterThan(decimal.Zero) {
		return SubmitResult{}, errors.New("invalid price")
	}
	if !req.Quantity.GreaterThan(decimal.Zero) {
		return SubmitResult{}, errors.New("invalid quantity")
	}
	if req.Currency == "" {
		req.Currency = types.CurrencyCNY
	}
	if req.TradeType == types.TradeTypeHKShare && (req.ExchangeRate == nil || !req.ExchangeRate.GreaterThan(decimal.Zero)) {
		return SubmitResult{}, errors.New("exchange rate required for hk share")
	}
	if req.TradeType == types.TradeTypeBlock && req.DiscountRate == nil {
		return SubmitResult{}, errors.New("discount rate required for block trade")
	}
	if req.TradeType == types.TradeTypeConditional && req.TriggerPrice != nil && !req.TriggerPrice.GreaterThan(decimal.Zero) {
		return SubmitResult{}, errors.New("invalid trigger price")
	}

	estimate := s.estimate(req.Side, req.TradeType, req.Price, req.Quantity, req.ExchangeRate)

	order := model.Order{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		TradeType:    req.TradeType,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		Quantity:     req.Quantity,
		Currency:     req.Currency,
		Status:       types.OrderStatusPending,
		ExchangeRate: req.ExchangeRate,
		DiscountRate: req.DiscountRate,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	var denied *model.EligibilityDecision
	err := s.st.InTx(ctx, func(tx store.Tx) error {
		decision, err := s.checkEligibility(ctx, tx, req, estimate)
		if err != nil {
			return err
		}
		if decision != nil {
			order.Decision = decision
			if !decision.Approved && !decision.ManualRequired {
				denied = decision
				return nil
			}
		}
		// Freeze before persisting: a crash between the two must not leave a
		// dangling frozen amount with no order, and the transaction makes
		// both visible together.
		if req.Side == types.OrderSideBuy {
			if err := s.funds.Freeze(ctx, tx, req.UserID, req.Currency, estimate.TotalAmount); err != nil {
				return err
			}
			order.FrozenAmount = estimate.TotalAmount
		} else {
			if err := s.funds.ReserveShares(ctx, tx, req.UserID, req.Symbol, req.Quantity); err != nil {
				return err
			}
		}
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) || errors.Is(err, ledger.ErrInsufficientPosition) {
			s.metrics.FreezeFailures.Inc()
		}
		return SubmitResult{}, err
	}
	if denied != nil {
		return SubmitResult{Denied: true, Decision: denied}, nil
	}

	s.metrics.Submitted.WithLabelValues(string(req.TradeType)).Inc()
	s.auditor.Write(audit.Entry{
		Action:     "order.submit",
		ActorID:    req.UserID,
		TargetType: "order",
		TargetID:   order.ID,
		After:      order,
	})
	return SubmitResult{OrderID: order.ID, Status: order.Status, Decision: order.Decision}, nil
}

func (s *Service) checkEligibility(ctx context.Context, tx store.Tx, req SubmitRequest, estimate fees.Breakdown) (*model.EligibilityDecision, error) {
	switch req.TradeType {
	case types.TradeTypeIPO:
		acct, err := tx.Accounts().Ensure(ctx, req.UserID, req.Currency)
		if err != nil {
			return nil, err
		}
		d := s.elig.QualifyIPO(eligibility.IPOFacts{
			TradeDaysOnRecord: req.TradeDaysOnRecord,
			Balance:           acct.Available,
			ApplyAmount:       req.Price.Mul(req.Quantity),
		})
		return &d, nil
	case types.TradeTypeBlock:
		d := s.elig.MatchBlock(eligibility.BlockFacts{
			Price:        req.Price,
			Quantity:     req.Quantity,
			MinQuantity:  s.eligCfg.MinBlockQuantity,
			DiscountRate: *req.DiscountRate,
		})
		return &d, nil
	case types.TradeTypeBoard:
		used, err := tx.Orders().SumBoardAmountToday(ctx, req.UserID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		d := s.elig.ScoreBoard(eligibility.BoardFacts{
			OrderAmount:            estimate.Amount,
			UserUsedQuotaToday:     used,
			ConsecutiveLimitUpDays: req.ConsecutiveLimitUpDays,
		})
		return &d, nil
	default:
		return nil, nil
	}
}

func (s *Service) estimate(side types.OrderSide, tradeType types.TradeType, price, quantity decimal.Decimal, fx *decimal.Decimal) fees.Breakdown {
	if tradeType == types.TradeTypeHKShare && fx != nil {
		return s.calc.HKShare(side, price, quantity, *fx)
	}
	return s.calc.AShare(side, price, quantity)
}

type DecisionRequest struct {
	OrderID   string
	AdminID   string
	AdminName string
	Reason    string
	// ExecPrice overrides the order price at execution; market-triggered
	// conditional orders fill away from their limit estimate.
	ExecPrice *decimal.Decimal
	// ExchangeRate at execution for cross-currency orders.
	ExchangeRate *decimal.Decimal
}

// Approve executes a pending order: exact fees at the execution price,
// balance settlement, position fill, trade + fee ledger entries and the
// terminal status flip, all in one transaction.
func (s *Service) Approve(ctx context.Context, req DecisionRequest) (model.Order, error) {
	start := time.Now()
	var before, after model.Order
	err := s.st.InTx(ctx, func(tx store.Tx) error {
		order, err := tx.Orders().Get(ctx, req.OrderID)
		if err != nil {
			return err
		}
		before = order
		if order.Status != types.OrderStatusPending {
			return fmt.Errorf("%w: order is %s", ErrInvalidStateTransition, order.Status)
		}
		execPrice := order.Price
		if req.ExecPrice != nil {
			if !req.ExecPrice.GreaterThan(decimal.Zero) {
				return errors.New("invalid execution price")
			}
			execPrice = *req.ExecPrice
		}
		// Cross-currency orders settle at the decision's rate when given,
		// else at the rate captured at submission.
		fx := req.ExchangeRate
		if fx == nil {
			fx = order.ExchangeRate
		}
		if order.TradeType == types.TradeTypeHKShare && (fx == nil || !fx.GreaterThan(decimal.Zero)) {
			return errors.New("exchange rate required for hk share")
		}
		exact := s.estimate(order.Side, order.TradeType, execPrice, order.Quantity, fx)

		if order.Side == types.OrderSideBuy {
			if err := s.settleBuyExecution(ctx, tx, order, exact.TotalAmount); err != nil {
				return err
			}
			if err := s.funds.ApplyBuyFill(ctx, tx, order.UserID, order.Symbol, order.Quantity, execPrice); err != nil {
				return err
			}
			if err := s.funds.RecordTrade(ctx, tx, order.UserID, order.Currency, order.ID, exact.Amount.Neg()); err != nil {
				return err
			}
		} else {
			if err := s.funds.ApplySellFill(ctx, tx, order.UserID, order.Symbol, order.Quantity); err != nil {
				return err
			}
			if err := s.funds.SettleSell(ctx, tx, order.UserID, order.Currency, exact.TotalAmount); err != nil {
				return err
			}
			if err := s.funds.RecordTrade(ctx, tx, order.UserID, order.Currency, order.ID, exact.Amount); err != nil {
				return err
			}
		}
		if err := s.funds.RecordFee(ctx, tx, order.UserID, order.Currency, order.ID, exact.TotalFee); err != nil {
			return err
		}

		order.Status = types.OrderStatusCompleted
		order.Price = execPrice
		order.FrozenAmount = decimal.Zero
		order.ReviewedByID = req.AdminID
		order.ReviewedByName = req.AdminName
		order.UpdatedAt = time.Now().UTC()
		after = order
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return model.Order{}, err
	}

	s.metrics.Decisions.WithLabelValues("approve").Inc()
	s.metrics.ApprovalDuration.Observe(time.Since(start).Seconds())
	s.auditor.Write(audit.Entry{
		Action:     "order.approve",
		ActorID:    req.AdminID,
		ActorName:  req.AdminName,
		TargetType: "order",
		TargetID:   after.ID,
		Before:     before,
		After:      after,
	})
	return after, nil
}

// settleBuyExecution consumes the freeze placed at submission. When the
// exact cost undercuts the estimate the remainder thaws back to available;
// when it overruns, the shortfall is debited from available.
func (s *Service) settleBuyExecution(ctx context.Context, tx store.Tx, order model.Order, cost decimal.Decimal) error {
	frozen := order.FrozenAmount
	if cost.LessThanOrEqual(frozen) {
		if err := s.funds.SettleBuy(ctx, tx, order.UserID, order.Currency, cost); err != nil {
			return err
		}
		if remainder := frozen.Sub(cost); remainder.GreaterThan(decimal.Zero) {
			return s.funds.Unfreeze(ctx, tx, order.UserID, order.Currency, remainder)
		}
		return nil
	}
	if err := s.funds.SettleBuy(ctx, tx, order.UserID, order.Currency, frozen); err != nil {
		return err
	}
	return s.funds.DebitAvailable(ctx, tx, order.UserID, order.Currency, cost.Sub(frozen))
}

// Reject releases the freeze or share reservation and records the mandatory
// reason.
func (s *Service) Reject(ctx context.Context, req DecisionRequest) (model.Order, error) {
	if req.Reason == "" {
		return model.Order{}, errors.New("reason is required to reject")
	}
	return s.release(ctx, req, types.OrderStatusRejected, "order.reject")
}

// Cancel is the user-initiated counterpart of Reject.
func (s *Service) Cancel(ctx context.Context, orderID, userID, reason string) (model.Order, error) {
	if reason == "" {
		reason = "cancelled by user"
	}
	order, err := s.st.Orders().Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if order.UserID != userID {
		return model.Order{}, errors.New("not your order")
	}
	return s.release(ctx, DecisionRequest{OrderID: orderID, AdminID: userID, Reason: reason}, types.OrderStatusCancelled, "order.cancel")
}

func (s *Service) release(ctx context.Context, req DecisionRequest, terminal types.OrderStatus, action string) (model.Order, error) {
	var before, after model.Order
	err := s.st.InTx(ctx, func(tx store.Tx) error {
		order, err := tx.Orders().Get(ctx, req.OrderID)
		if err != nil {
			return err
		}
		before = order
		if order.Status != types.OrderStatusPending {
			return fmt.Errorf("%w: order is %s", ErrInvalidStateTransition, order.Status)
		}
		if order.Side == types.OrderSideBuy {
			if order.FrozenAmount.GreaterThan(decimal.Zero) {
				if err := s.funds.Unfreeze(ctx, tx, order.UserID, order.Currency, order.FrozenAmount); err != nil {
					return err
				}
			}
		} else {
			if err := s.funds.ReleaseShares(ctx, tx, order.UserID, order.Symbol, order.Quantity); err != nil {
				return err
			}
		}
		order.Status = terminal
		order.FrozenAmount = decimal.Zero
		order.Reason = req.Reason
		order.ReviewedByID = req.AdminID
		order.ReviewedByName = req.AdminName
		order.UpdatedAt = time.Now().UTC()
		after = order
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return model.Order{}, err
	}

	if terminal == types.OrderStatusRejected {
		s.metrics.Decisions.WithLabelValues("reject").Inc()
	} else {
		s.metrics.Decisions.WithLabelValues("cancel").Inc()
	}
	s.auditor.Write(audit.Entry{
		Action:     action,
		ActorID:    req.AdminID,
		ActorName:  req.AdminName,
		TargetType: "order",
		TargetID:   after.ID,
		Before:     before,
		After:      after,
		Reason:     req.Reason,
	})
	return after, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Order, error) {
	return s.st.Orders().Get(ctx, id)
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]model.Order, error) {
	return s.st.Orders().ListByStatus(ctx, types.OrderStatusPending, limit)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return s.st.Orders().ListByUser(ctx, userID, limit)
}
