package funding

import (
	"errors"
	"net/http"

	"lv-backoffice/internal/httputil"
	"lv-backoffice/internal/ledger"
	"lv-backoffice/internal/store"
	"lv-backoffice/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type fundingRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request, userID string) {
	h.submit(w, r, userID, types.FundingKindDeposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request, userID string) {
	h.submit(w, r, userID, types.FundingKindWithdraw)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, userID string, kind types.FundingKind) {
	var req fundingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	var out any
	if kind == types.FundingKindDeposit {
		out, err = h.svc.SubmitDeposit(r.Context(), userID, types.Currency(req.Currency), amount)
	} else {
		out, err = h.svc.SubmitWithdraw(r.Context(), userID, types.Currency(req.Currency), amount)
	}
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) WithdrawEligibility(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.svc.CheckWithdraw(r.Context(), userID, types.Currency(r.URL.Query().Get("currency")))
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context(), 100)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": list})
}

type decisionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request, adminID, adminName, requestID string) {
	var req decisionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Action != "approve" && req.Action != "reject" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "action must be approve or reject"})
		return
	}
	out, err := h.svc.Decide(r.Context(), DecisionRequest{
		RequestID: requestID,
		AdminID:   adminID,
		AdminName: adminName,
		Approve:   req.Action == "approve",
		Reason:    req.Reason,
	})
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"target_id": out.ID,
		"action":    req.Action,
		"request":   out,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ErrUnsettledFlows), errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
