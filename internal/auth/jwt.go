package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Vovarama1992/ebeef-copilot/internal/httputil"
)

type ctxKey struct{}

// Operator is the authenticated caller of the operator API.
type Operator struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// DemoOperator is attached to every request when auth is disabled.
var DemoOperator = Operator{ID: "1", Name: "Operador Demo", Email: "demo@ebeef.com.br", Role: "operator"}

type claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. With enabled=false every
// request runs as DemoOperator.
type Authenticator struct {
	secret  []byte
	enabled bool
}

func NewAuthenticator(secret string, enabled bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), enabled: enabled}
}

// GenerateToken signs a token for op.
func (a *Authenticator) GenerateToken(op Operator, expiresIn time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret is required")
	}
	if strings.TrimSpace(op.ID) == "" {
		return "", errors.New("operator id is required")
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  op.Name,
		Email: op.Email,
		Role:  op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	})
	return token.SignedString(a.secret)
}

// Verify parses raw and returns the operator it identifies.
func (a *Authenticator) Verify(raw string) (Operator, error) {
	if !a.enabled {
		return DemoOperator, nil
	}
	if raw == "" {
		return Operator{}, errors.New("token missing")
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Operator{}, fmt.Errorf("invalid token: %w", err)
	}
	return Operator{ID: c.Subject, Name: c.Name, Email: c.Email, Role: c.Role}, nil
}

// Middleware requires `Authorization: Bearer <token>`.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), DemoOperator)))
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.Error(w, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Token de autenticação não fornecido")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.Error(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID_FORMAT", "Formato de token inválido. Use: Bearer <token>")
			return
		}

		op, err := a.Verify(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				httputil.Error(w, http.StatusUnauthorized, "AUTH_TOKEN_EXPIRED", "Token expirado. Faça login novamente.")
				return
			}
			httputil.Error(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Token inválido")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
	})
}

func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, ctxKey{}, op)
}

func OperatorFromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(ctxKey{}).(Operator)
	return op, ok
}
