package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lv-backoffice/internal/audit"
	"lv-backoffice/internal/ledger"
	"lv-backoffice/internal/model"
	"lv-backoffice/internal/settlement"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrUnsettledFlows refuses a withdrawal while trade flows are still
// unreconciled, when that policy is on.
var ErrUnsettledFlows = errors.New("unsettled trade flows pending settlement")

// Service runs the deposit/withdrawal review queue. Deposits touch no
// balance until approved; withdrawals freeze the amount at submission so the
// user cannot spend it away while the request is in review.
type Service struct {
	st                 store.Store
	funds              *ledger.Service
	settle             *settlement.Service
	requireFlowSettled bool
	auditor            *audit.Recorder
	log                *slog.Logger
}

func NewService(st store.Store, funds *ledger.Service, settle *settlement.Service, requireFlowSettled bool, auditor *audit.Recorder, log *slog.Logger) *Service {
	return &Service{
		st:                 st,
		funds:              funds,
		settle:             settle,
		requireFlowSettled: requireFlowSettled,
		auditor:            auditor,
		log:                log,
	}
}

func (s *Service) SubmitDeposit(ctx context.Context, userID string, ccy types.Currency, amount decimal.Decimal) (model.FundingRequest, error) {
	return s.submit(ctx, userID, types.FundingKindDeposit, ccy, amount)
}

func (s *Service) SubmitWithdraw(ctx context.Context, userID string, ccy types.Currency, amount decimal.Decimal) (model.FundingRequest, error) {
	if s.requireFlowSettled {
		total, err := s.settle.UnsettledTotal(ctx, userID, ccy)
		if err != nil {
			return model.FundingRequest{}, err
		}
		if total.GreaterThan(decimal.Zero) {
			return model.FundingRequest{}, fmt.Errorf("%w: %s unsettled", ErrUnsettledFlows, total)
		}
	}
	return s.submit(ctx, userID, types.FundingKindWithdraw, ccy, amount)
}

func (s *Service) submit(ctx context.Context, userID string, kind types.FundingKind, ccy types.Currency, amount decimal.Decimal) (model.FundingRequest, error) {
	if userID == "" {
		return model.FundingRequest{}, errors.New("missing user")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return model.FundingRequest{}, errors.New("invalid amount")
	}
	if ccy == "" {
		ccy = types.CurrencyCNY
	}
	req := model.FundingRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Currency:  ccy,
		Amount:    amount,
		Status:    types.RequestStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	err := s.st.InTx(ctx, func(tx store.Tx) error {
		if kind == types.FundingKindWithdraw {
			if err := s.funds.Freeze(ctx, tx, userID, ccy, amount); err != nil {
				return err
			}
		}
		return tx.Funding().Create(ctx, req)
	})
	if err != nil {
		return model.FundingRequest{}, err
	}
	s.auditor.Write(audit.Entry{
		Action:     "funding.submit",
		ActorID:    userID,
		TargetType: "funding_request",
		TargetID:   req.ID,
		After:      req,
	})
	return req, nil
}

// WithdrawEligibility reports whether the user could withdraw right now and
// why not otherwise.
type WithdrawEligibility struct {
	Eligible       bool            `json:"eligible"`
	Available      decimal.Decimal `json:"available"`
	UnsettledTotal decimal.Decimal `json:"unsettled_amount"`
	Reason         string          `json:"reason,omitempty"`
}

func (s *Service) CheckWithdraw(ctx context.Context, userID string, ccy types.Currency) (WithdrawEligibility, error) {
	if ccy == "" {
		ccy = types.CurrencyCNY
	}
	acct, err := s.st.Accounts().Ensure(ctx, userID, ccy)
	if err != nil {
		return WithdrawEligibility{}, err
	}
	total, err := s.settle.UnsettledTotal(ctx, userID, ccy)
	if err != nil {
		return WithdrawEligibility{}, err
	}
	out := WithdrawEligibility{
		Available:      acct.Available,
		UnsettledTotal: total,
	}
	switch {
	case s.requireFlowSettled && total.GreaterThan(decimal.Zero):
		out.Reason = "unsettled trade flows pending settlement"
	case !acct.Available.GreaterThan(decimal.Zero):
		out.Reason = "no available balance"
	default:
		out.Eligible = true
	}
	return out, nil
}

type DecisionRequest struct {
	RequestID string
	AdminID   string
	AdminName string
	Approve   bool
	Reason    string
}

// Decide settles or releases the request. Withdrawal approval settles any
// outstanding trade flows in the same transaction before paying out, so the
// books the payout was judged on cannot shift under it.
func (s *Service) Decide(ctx context.Context, dr DecisionRequest) (model.FundingRequest, error) {
	if !dr.Approve && dr.Reason == "" {
		return model.FundingRequest{}, errors.New("reason is required to reject")
	}
	var before, after model.FundingRequest
	err := s.st.InTx(ctx, func(tx store.Tx) error {
		req, err := tx.Funding().Get(ctx, dr.RequestID)
		if err != nil {
			return err
		}
		before = req
		if req.Status != types.RequestStatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, req.Status)
		}
		if dr.Approve {
			if err := s.approveTx(ctx, tx, req); err != nil {
				return err
			}
			req.Status = types.RequestStatusApproved
		} else {
			if req.Kind == types.FundingKindWithdraw {
				if err := s.funds.Unfreeze(ctx, tx, req.UserID, req.Currency, req.Amount); err != nil {
					return err
				}
			}
			req.Status = types.RequestStatusRejected
		}
		req.Reason = dr.Reason
		req.ReviewedByID = dr.AdminID
		req.ReviewedByName = dr.AdminName
		req.UpdatedAt = time.Now().UTC()
		after = req
		return tx.Funding().Update(ctx, req)
	})
	if err != nil {
		return model.FundingRequest{}, err
	}

	action := "funding.reject"
	if dr.Approve {
		action = "funding.approve"
	}
	s.auditor.Write(audit.Entry{
		Action:     action,
		ActorID:    dr.AdminID,
		ActorName:  dr.AdminName,
		TargetType: "funding_request",
		TargetID:   after.ID,
		Before:     before,
		After:      after,
		Reason:     dr.Reason,
	})
	return after, nil
}

func (s *Service) approveTx(ctx context.Context, tx store.Tx, req model.FundingRequest) error {
	switch req.Kind {
	case types.FundingKindDeposit:
		return s.funds.Deposit(ctx, tx, req.UserID, req.Currency, req.Amount)
	case types.FundingKindWithdraw:
		if s.requireFlowSettled {
			if _, err := s.settle.SettleAllTx(ctx, tx, req.UserID); err != nil {
				return err
			}
		}
		return s.funds.SettleWithdraw(ctx, tx, req.UserID, req.Currency, req.Amount)
	default:
		return fmt.Errorf("unknown funding kind %q", req.Kind)
	}
}

func (s *Service) Get(ctx context.Context, id string) (model.FundingRequest, error) {
	return s.st.Funding().Get(ctx, id)
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]model.FundingRequest, error) {
	return s.st.Funding().ListByStatus(ctx, types.RequestStatusPending, limit)
}
