package httpserver

import (
	"net/http"

	"lv-backoffice/internal/admin"
	"lv-backoffice/internal/funding"
	"lv-backoffice/internal/health"
	"lv-backoffice/internal/httputil"
	"lv-backoffice/internal/orders"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	OrderHandler   *orders.Handler
	FundingHandler *funding.Handler
	AdminHandler   *admin.Handler
	HealthHandler  *health.Handler
	ReviewWS       http.Handler
	Registry       *prometheus.Registry
	InternalToken  string
	JWTSecret      string
	JWTIssuer      string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS middleware for the review dashboard
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Internal-Token, X-User-ID")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", d.HealthHandler.ServeHTTP)
	r.Get("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}).ServeHTTP)

	// asUser resolves the acting end user named by the upstream caller.
	asUser := func(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserID(r)
			if !ok {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing X-User-ID"})
				return
			}
			fn(w, r, userID)
		}
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/orders", asUser(d.OrderHandler.Submit))
			r.Get("/orders", asUser(d.OrderHandler.ListMine))
			r.Post("/orders/{id}/cancel", asUser(func(w http.ResponseWriter, r *http.Request, userID string) {
				d.OrderHandler.Cancel(w, r, userID, chi.URLParam(r, "id"))
			}))
			r.Get("/withdrawals/eligibility", asUser(d.FundingHandler.WithdrawEligibility))
			r.Post("/funding/deposit", asUser(d.FundingHandler.Deposit))
			r.Post("/funding/withdraw", asUser(d.FundingHandler.Withdraw))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", d.AdminHandler.Login)
			r.Get("/reviews/ws", d.ReviewWS.ServeHTTP)
			r.Group(func(r chi.Router) {
				r.Use(admin.AuthMiddleware(d.JWTSecret, d.JWTIssuer))
				r.Get("/me", d.AdminHandler.Me)
				r.Get("/orders/pending", d.OrderHandler.ListPending)
				r.Post("/orders/{id}/decision", func(w http.ResponseWriter, r *http.Request) {
					d.OrderHandler.Decide(w, r,
						admin.IDFromContext(r.Context()),
						admin.NameFromContext(r.Context()),
						chi.URLParam(r, "id"))
				})
				r.Get("/funding/pending", d.FundingHandler.ListPending)
				r.Post("/funding/{id}/decision", func(w http.ResponseWriter, r *http.Request) {
					d.FundingHandler.Decide(w, r,
						admin.IDFromContext(r.Context()),
						admin.NameFromContext(r.Context()),
						chi.URLParam(r, "id"))
				})
			})
		})
	})

	return r
}
