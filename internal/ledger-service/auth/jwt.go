package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radieske/beton-ledger/internal/ledger"
)

const Issuer = "beton-ledger"

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator transforma a credencial bruta em uma conta verificada
type Authenticator interface {
	Authenticate(token string) (ledger.AccountID, error)
}

// JWT autentica tokens HS256; o subject é o id da conta
type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

// WithClock troca o relógio usado na validação de expiração
func (a *JWT) WithClock(now func() time.Time) *JWT {
	a.now = now
	return a
}

func (a *JWT) Authenticate(token string) (ledger.AccountID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrUnauthenticated)
	}
	return ledger.AccountID(claims.Subject), nil
}

// Issue assina um token para a conta (ferramentas locais e testes)
func (a *JWT) Issue(who ledger.AccountID, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   string(who),
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type ctxKey struct{}

// WithCaller guarda a conta autenticada no contexto
func WithCaller(ctx context.Context, who ledger.AccountID) context.Context {
	return context.WithValue(ctx, ctxKey{}, who)
}

// CallerFrom retorna a conta autenticada do contexto
func CallerFrom(ctx context.Context) (ledger.AccountID, bool) {
	who, ok := ctx.Value(ctxKey{}).(ledger.AccountID)
	return who, ok
}

// Middleware exige "Authorization: Bearer <jwt>" e injeta a conta no contexto
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok {
				http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			who, err := a.Authenticate(token)
			if err != nil {
				http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), who)))
		})
	}
}
