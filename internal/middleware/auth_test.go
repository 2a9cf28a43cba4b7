package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	InitAuthMiddleware("test-secret")
	t.Cleanup(func() { InitAuthMiddleware("") })

	var seen string
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(header string) *httptest.ResponseRecorder {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1/time-tracking", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("user_id claim", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.MapClaims{
			"user_id": "cust1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		rec := serve("Bearer " + token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "cust1", seen)
	})

	t.Run("sub claim", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.MapClaims{"sub": "prov1"})
		rec := serve("Bearer " + token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "prov1", seen)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Basic abc").Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": "cust1"})
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token).Code)
		assert.Empty(t, seen)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.MapClaims{
			"user_id": "cust1",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token).Code)
	})

	t.Run("other algorithm", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS512, []byte("test-secret"), jwt.MapClaims{"user_id": "cust1"})
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token).Code)
	})

	t.Run("no user claim", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.MapClaims{"role": "admin"})
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token).Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
