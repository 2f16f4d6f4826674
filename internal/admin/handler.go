package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"lv-backoffice/internal/httputil"
)

// Handler authenticates review staff against the admin_users table and
// issues short-lived JWTs for the review endpoints.
type Handler struct {
	pool   *pgxpool.Pool
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewHandler(pool *pgxpool.Pool, jwtSecret, issuer string, ttl time.Duration) *Handler {
	return &Handler{
		pool:   pool,
		secret: []byte(jwtSecret),
		issuer: issuer,
		ttl:    ttl,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}

	var id int
	var passwordHash, role string
	err := h.pool.QueryRow(r.Context(),
		"select id, password_hash, role from admin_users where username = $1", req.Username,
	).Scan(&id, &passwordHash, &role)
	if err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.Itoa(id),
		"username": req.Username,
		"role":     role,
		"iss":      h.issuer,
		"exp":      time.Now().Add(h.ttl).Unix(),
	})
	tokenStr, err := token.SignedString(h.secret)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "token generation failed"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"token":    tokenStr,
		"username": req.Username,
		"role":     role,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"id":       IDFromContext(r.Context()),
		"username": NameFromContext(r.Context()),
		"role":     roleFromContext(r.Context()),
	})
}

// AuthMiddleware validates the staff bearer token and stows the staff
// identity in the request context.
func AuthMiddleware(jwtSecret, issuer string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(w, r, secret, issuer)
			if !ok {
				return
			}
			role, _ := claims["role"].(string)
			if role != "admin" && role != "owner" {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "staff access required"})
				return
			}
			id, _ := claims["sub"].(string)
			username, _ := claims["username"].(string)
			ctx := context.WithValue(r.Context(), adminIDKey, id)
			ctx = context.WithValue(ctx, adminUsernameKey, username)
			ctx = context.WithValue(ctx, adminRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VerifyToken checks a raw token string and returns the staff identity.
// The review websocket authenticates with a query parameter instead of a
// header and goes through here.
func VerifyToken(raw, jwtSecret, issuer string) (id, username string, err error) {
	claims, err := parseToken(raw, []byte(jwtSecret), issuer)
	if err != nil {
		return "", "", err
	}
	id, _ = claims["sub"].(string)
	username, _ = claims["username"].(string)
	return id, username, nil
}

func parseBearer(w http.ResponseWriter, r *http.Request, secret []byte, issuer string) (jwt.MapClaims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing authorization"})
		return nil, false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid authorization format"})
		return nil, false
	}
	claims, err := parseToken(parts[1], secret, issuer)
	if err != nil {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "invalid token"})
		return nil, false
	}
	return claims, true
}

func parseToken(raw string, secret []byte, issuer string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

type contextKey string

const adminIDKey contextKey = "admin_id"
const adminUsernameKey contextKey = "admin_username"
const adminRoleKey contextKey = "admin_role"

func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(adminIDKey).(string)
	return id
}

func NameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(adminUsernameKey).(string)
	return name
}

func roleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(adminRoleKey).(string)
	return role
}
