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

func operatorToken(t *testing.T, secret, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/v1/trigger-rules/rule-1", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminJWTAcceptsOperator(t *testing.T) {
	mw := AdminJWT("secret")

	var claims OperatorClaims
	var present bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, present = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(operatorToken(t, "secret", RoleOperator)))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, present)
	assert.Equal(t, "ops-user", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestAdminJWTRejectsWrongRole(t *testing.T) {
	mw := AdminJWT("secret")
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(operatorToken(t, "secret", "viewer")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminJWTRejectsBadSignature(t *testing.T) {
	mw := AdminJWT("secret")
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(operatorToken(t, "other-secret", RoleOperator)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRejectsExpiredToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	AdminJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, adminRequest(signed))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, adminRequest(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminJWT("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, adminRequest(operatorToken(t, "secret", RoleOperator)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
