package orders

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lv-backoffice/internal/httputil"
	"lv-backoffice/internal/ledger"
	"lv-backoffice/internal/model"
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

type submitOrderRequest struct {
	Symbol                 string `json:"symbol"`
	Side                   string `json:"side"`
	TradeType              string `json:"trade_type"`
	Price                  string `json:"price"`
	TriggerPrice           string `json:"trigger_price"`
	Quantity               string `json:"quantity"`
	Currency               string `json:"currency"`
	ExchangeRate           string `json:"exchange_rate"`
	DiscountRate           string `json:"discount_rate"`
	TradeDaysOnRecord      int    `json:"trade_days_on_record"`
	ConsecutiveLimitUpDays int    `json:"consecutive_limit_up_days"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request, userID string) {
	var req submitOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid quantity"})
		return
	}
	trigger, err := optionalDecimal(req.TriggerPrice)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid trigger_price"})
		return
	}
	fx, err := optionalDecimal(req.ExchangeRate)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid exchange_rate"})
		return
	}
	discount, err := optionalDecimal(req.DiscountRate)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid discount_rate"})
		return
	}

	res, err := h.svc.Submit(r.Context(), SubmitRequest{
		UserID:                 userID,
		Symbol:                 symbol,
		Side:                   types.OrderSide(req.Side),
		TradeType:              types.TradeType(req.TradeType),
		Price:                  price,
		TriggerPrice:           trigger,
		Quantity:               qty,
		Currency:               types.Currency(req.Currency),
		ExchangeRate:           fx,
		DiscountRate:           discount,
		TradeDaysOnRecord:      req.TradeDaysOnRecord,
		ConsecutiveLimitUpDays: req.ConsecutiveLimitUpDays,
	})
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if res.Denied {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"denied":   true,
			"decision": res.Decision,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"order_id": res.OrderID,
		"status":   string(res.Status),
		"decision": res.Decision,
	})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, userID, orderID string) {
	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
			return
		}
	}
	order, err := h.svc.Cancel(r.Context(), orderID, userID, req.Reason)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request, userID string) {
	limit := queryLimit(r, 50)
	list, err := h.svc.ListByUser(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)
	list, err := h.svc.ListPending(r.Context(), limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"orders": list})
}

type decisionRequest struct {
	Action       string `json:"action"`
	Reason       string `json:"reason"`
	ExecPrice    string `json:"exec_price"`
	ExchangeRate string `json:"exchange_rate"`
}

// Decide handles staff approve/reject of a pending order.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request, adminID, adminName, orderID string) {
	var req decisionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	execPrice, err := optionalDecimal(req.ExecPrice)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid exec_price"})
		return
	}
	fx, err := optionalDecimal(req.ExchangeRate)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid exchange_rate"})
		return
	}
	dr := DecisionRequest{
		OrderID:      orderID,
		AdminID:      adminID,
		AdminName:    adminName,
		Reason:       req.Reason,
		ExecPrice:    execPrice,
		ExchangeRate: fx,
	}
	var order model.Order
	switch req.Action {
	case "approve":
		order, err = h.svc.Approve(r.Context(), dr)
	case "reject":
		order, err = h.svc.Reject(r.Context(), dr)
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "action must be approve or reject"})
		return
	}
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"target_id": order.ID,
		"action":    req.Action,
		"order":     order,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInsufficientPosition):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func queryLimit(r *http.Request, def int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return def
}
