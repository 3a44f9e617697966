package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch-backend/internal/models"
)

var admin = &models.User{ID: "u1", Email: "admin@fleetwatch.local", Role: models.RoleAdmin}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	token, err := a.IssueToken(admin)
	require.NoError(t, err)

	claims, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, UserClaims{UserID: "u1", Email: "admin@fleetwatch.local", Role: "admin"}, claims)

	_, err = NewAuthenticator("other", time.Hour).ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	s, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.ParseToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u1", "role": "admin"})
	s, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.ParseToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthAndRequireRole(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, found := GetUserFromContext(r)
		assert.True(t, found)
		w.Write([]byte(claims.Role))
	})
	h := a.Auth(RequireRole(models.RoleAdmin)(ok))

	adminToken, _ := a.IssueToken(admin)
	operatorToken, _ := a.IssueToken(&models.User{ID: "u2", Role: models.RoleOperator})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"operator", "Bearer " + operatorToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/settings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
