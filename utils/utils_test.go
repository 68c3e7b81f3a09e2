package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACRoundTrip(t *testing.T) {
	body := []byte(`{"ip_communication":"10.0.0.4","request_id":"r-1"}`)
	toSign := BuildStringToSign(http.MethodPost, "/api/v1/vm/internal/kyubo/communication", 1700000000, HashBodySHA256(body))

	sig := ComputeHMACSHA256("secret", toSign)
	assert.Len(t, sig, 64)
	assert.True(t, SecureCompare(sig, ComputeHMACSHA256("secret", toSign)))
	assert.False(t, SecureCompare(sig, ComputeHMACSHA256("other", toSign)))
	assert.Equal(t, EmptyBodyHash, HashBodySHA256(nil))
	assert.Equal(t, int64(5), Abs(-5))
}

func TestParseToken(t *testing.T) {
	userID := uuid.NewString()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"permission": "admin",
		"exp":        time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	token, err := ParseToken(signed, "secret")
	require.NoError(t, err)
	require.True(t, token.Valid)

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.NoError(t, InjectClaimsToContext(c, token.Claims.(jwt.MapClaims)))
	assert.Equal(t, userID, GetUserIDFromContext(c).String())
	assert.Equal(t, "admin", c.GetString("permission"))

	_, err = ParseToken(signed, "wrong")
	assert.Error(t, err)
}

func TestInjectClaimsRejectsBadUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Error(t, InjectClaimsToContext(c, jwt.MapClaims{"user_id": "not-a-uuid"}))
	assert.Equal(t, uuid.Nil, GetUserIDFromContext(c))
}

func TestExtractToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(c))
}

func TestGenerateSSHKeyPair(t *testing.T) {
	for _, keyType := range []string{"rsa", "ed25519"} {
		private, public, err := GenerateSSHKeyPair(keyType, 2048, "svcadmin@vm-1")
		require.NoError(t, err, keyType)
		assert.Contains(t, private, "OPENSSH PRIVATE KEY")
		assert.Contains(t, public, "svcadmin@vm-1")
		assert.NoError(t, ValidateSSHKeyPair(private, public), keyType)
	}

	_, _, err := GenerateSSHKeyPair("dsa", 1024, "")
	assert.Error(t, err)
}

func TestValidateSSHKeyPairDetectsMismatch(t *testing.T) {
	private, _, err := GenerateSSHKeyPair("ed25519", 0, "")
	require.NoError(t, err)
	_, otherPublic, err := GenerateSSHKeyPair("ed25519", 0, "")
	require.NoError(t, err)

	assert.Error(t, ValidateSSHKeyPair(private, otherPublic))
}
