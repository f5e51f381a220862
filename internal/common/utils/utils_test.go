package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccessToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token, err := GenerateJWT(&JWTClaims{UserID: 42, Username: "ada", Type: "access", ExpiresAt: exp}, "secret")
	require.NoError(t, err)

	claims, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, "access", claims.Type)
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(time.Unix(exp, 0)))
}

func TestParseAccessTokenNumericUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString([]byte("x"))
	require.NoError(t, err)

	claims, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestParseAccessTokenErrors(t *testing.T) {
	_, err := ParseAccessToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = ParseAccessToken("not.a.token")
	assert.Error(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "abc"}).SignedString([]byte("x"))
	require.NoError(t, err)
	_, err = ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(&sample{Name: "a", Count: 1}))

	err := ValidateStruct(&sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name is required")
	assert.Contains(t, err.Error(), "Count must be greater than 0")
}

func TestDetailedErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	DetailedErrorResponse(rec, "Limit reached", "No calls left", map[string]int{"used": 1, "limit": 1}, http.StatusPaymentRequired)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Limit reached", body.Message)
	assert.Equal(t, "No calls left", body.Error)
}
