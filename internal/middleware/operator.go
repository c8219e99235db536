// Package middleware содержит HTTP middleware сервиса LodgeEase.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const operatorKey contextKey = "operatorID"

const (
	sessionCookieName = "lodge_session"
	bearerPrefix      = "Bearer "
)

// OperatorAuth проверяет токен оператора, выданный внешним сервисом аутентификации.
// Токен имеет вид "<operatorID>.<hex(hmac-sha256(operatorID))>".
type OperatorAuth struct {
	secretKey []byte
}

// NewOperatorAuth создаёт проверку токенов с общим секретом сервиса аутентификации.
func NewOperatorAuth(secret string) *OperatorAuth {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &OperatorAuth{secretKey: key}
}

// Middleware проверяет токен оператора и добавляет его идентификатор в контекст запроса.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		operatorID, ok := a.Verify(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Sign подписывает идентификатор оператора тем же способом, что и сервис аутентификации.
func (a *OperatorAuth) Sign(operatorID string) string {
	return operatorID + "." + a.signature(operatorID)
}

// Verify проверяет подпись токена и возвращает идентификатор оператора.
func (a *OperatorAuth) Verify(token string) (string, bool) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", false
	}

	operatorID, signature := token[:i], token[i+1:]
	if !hmac.Equal([]byte(signature), []byte(a.signature(operatorID))) {
		return "", false
	}
	return operatorID, true
}

func (a *OperatorAuth) signature(operatorID string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(operatorID))
	return hex.EncodeToString(mac.Sum(nil))
}

// OperatorFromContext извлекает идентификатор оператора из контекста запроса.
func OperatorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorKey).(string)
	return id, ok
}
