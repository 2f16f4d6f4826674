package httpserver

import (
	"net/http"
	"strings"

	"lv-backoffice/internal/admin"
	"lv-backoffice/internal/events"

	"github.com/gorilla/websocket"
)

// ReviewWSHandler streams audit events to staff review dashboards so the
// pending queue updates without polling.
type ReviewWSHandler struct {
	bus       *events.Bus
	jwtSecret string
	issuer    string
	origin    string
	upgrader  websocket.Upgrader
}

func NewReviewWSHandler(bus *events.Bus, jwtSecret, issuer, origin string) *ReviewWSHandler {
	return &ReviewWSHandler{
		bus:       bus,
		jwtSecret: jwtSecret,
		issuer:    issuer,
		origin:    origin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	// Allow both localhost and 127.0.0.1 variants for development
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *ReviewWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browser WS clients cannot set headers, so the token rides a query param.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, _, err := admin.VerifyToken(token, h.jwtSecret, h.issuer); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	// Drain client frames so pings/pongs and close frames get processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
