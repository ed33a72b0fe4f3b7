// Package auth verifies the single operator allowed to register products and
// issues the bearer tokens that guard operator endpoints.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleOperator = "operator"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

type Operator struct {
	Username string
	Role     string
}

// CredentialVerifier checks operator credentials. Implementations backed by an
// external identity provider can replace StaticVerifier.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (Operator, error)
}

// StaticVerifier accepts one configured operator with a bcrypt password hash.
type StaticVerifier struct {
	username string
	hash     []byte
}

func NewStaticVerifier(username, bcryptHash string) *StaticVerifier {
	return &StaticVerifier{username: username, hash: []byte(bcryptHash)}
}

func (v *StaticVerifier) Verify(ctx context.Context, username, password string) (Operator, error) {
	if len(v.hash) == 0 || v.username == "" {
		return Operator{}, ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(v.hash, []byte(password))
	if !userOK || passErr != nil {
		return Operator{}, ErrInvalidCredentials
	}
	return Operator{Username: v.username, Role: RoleOperator}, nil
}

// HashPassword is used by operators to produce OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: time.Now}
}

func (i *TokenIssuer) Issue(op Operator) (string, time.Time, error) {
	now := i.clock()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		Role: op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (i *TokenIssuer) Parse(tokenStr string) (Operator, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.clock))
	if err != nil || !token.Valid {
		return Operator{}, ErrUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Role != RoleOperator {
		return Operator{}, ErrUnauthorized
	}
	return Operator{Username: claims.Subject, Role: claims.Role}, nil
}

type ctxKey struct{}

func OperatorFromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(ctxKey{}).(Operator)
	return op, ok
}

// RequireOperator rejects requests without a valid operator bearer token.
func (i *TokenIssuer) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(w)
			return
		}
		op, err := i.Parse(parts[1])
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, op)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"message":"unauthorized"}`))
}
