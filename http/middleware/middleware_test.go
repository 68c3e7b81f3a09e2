package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

const (
	callbackSecret = "callback-secret"
	jwtSecret      = "jwt-secret"
	testUserID     = "6f1c2a4e-0d4b-4e1a-9a61-0b3c2d1e4f50"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(middleware gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.POST("/internal/callback", middleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"worker_id": c.GetString("worker_id"), "user_id": c.GetString("user_id")})
	})
	r.GET("/vms", middleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	return r
}

func signedRequest(t *testing.T, body string, timestamp int64, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/callback", strings.NewReader(body))
	stringToSign := utils.BuildStringToSign(http.MethodPost, "/internal/callback", timestamp, utils.HashBodySHA256([]byte(body)))
	req.Header.Set("Authorization", "HMAC worker-1:"+utils.ComputeHMACSHA256(secret, stringToSign))
	req.Header.Set("X-Timestamp", strconv.FormatInt(timestamp, 10))
	return req
}

func callbackConfig(secret string) *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.CallbackSecret = secret
	return cfg
}

func TestCallbackAuthAcceptsValidSignature(t *testing.T) {
	r := newRouter(CallbackAuthMiddleware(callbackConfig(callbackSecret)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, `{"request_id":"r-1"}`, time.Now().Unix(), callbackSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"worker_id":"worker-1"`)
}

func TestCallbackAuthRejects(t *testing.T) {
	r := newRouter(CallbackAuthMiddleware(callbackConfig(callbackSecret)))
	now := time.Now().Unix()

	tests := []struct {
		name    string
		request func() *http.Request
		message string
	}{
		{
			name:    "wrong secret",
			request: func() *http.Request { return signedRequest(t, `{}`, now, "other") },
			message: "Invalid signature",
		},
		{
			name:    "expired timestamp",
			request: func() *http.Request { return signedRequest(t, `{}`, now-TimestampTolerance-60, callbackSecret) },
			message: "Request timestamp expired",
		},
		{
			name: "tampered body",
			request: func() *http.Request {
				req := signedRequest(t, `{"a":1}`, now, callbackSecret)
				req.Body = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":2}`)).Body
				return req
			},
			message: "Invalid signature",
		},
		{
			name: "bearer scheme",
			request: func() *http.Request {
				req := signedRequest(t, `{}`, now, callbackSecret)
				req.Header.Set("Authorization", "Bearer token")
				return req
			},
			message: "Invalid authorization type. Use 'HMAC'",
		},
		{
			name: "missing timestamp",
			request: func() *http.Request {
				req := signedRequest(t, `{}`, now, callbackSecret)
				req.Header.Del("X-Timestamp")
				return req
			},
			message: "Invalid or missing X-Timestamp header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.request())
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestCallbackAuthWithoutSecret(t *testing.T) {
	r := newRouter(CallbackAuthMiddleware(callbackConfig("")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, `{}`, time.Now().Unix(), callbackSecret))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.EnvConfig{}
	cfg.JWT.SecretKey = jwtSecret
	r := newRouter(AuthMiddleware(cfg))

	valid := signToken(t, jwt.MapClaims{"user_id": testUserID, "exp": time.Now().Add(time.Hour).Unix()}, jwtSecret)
	expired := signToken(t, jwt.MapClaims{"user_id": testUserID, "exp": time.Now().Add(-time.Hour).Unix()}, jwtSecret)
	forged := signToken(t, jwt.MapClaims{"user_id": testUserID}, "other")
	noUser := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, jwtSecret)

	tests := []struct {
		name   string
		header string
		target string
		status int
	}{
		{name: "bearer header", header: "Bearer " + valid, target: "/vms", status: http.StatusOK},
		{name: "query token", target: "/vms?access_token=" + valid, status: http.StatusOK},
		{name: "missing token", target: "/vms", status: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, target: "/vms", status: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + forged, target: "/vms", status: http.StatusUnauthorized},
		{name: "no user id", header: "Bearer " + noUser, target: "/vms", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), testUserID)
			}
		})
	}
}

type fakeCounter struct {
	hits map[string]int64
	err  error
}

func (f *fakeCounter) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.hits[key]++
	return f.hits[key], nil
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) WarningWithContextf(_ context.Context, format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func TestRateLimitMiddleware(t *testing.T) {
	store := registry.NewStore(nil)
	limit := store.Snapshot().Settings().RateLimit
	counter := &fakeCounter{hits: map[string]int64{}}
	logger := &recordingLogger{}
	r := newRouter(RateLimitMiddleware(counter, store, logger))

	for i := 1; i <= limit.Requests; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vms", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, strconv.Itoa(limit.Requests-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vms", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, w.Body.String(), `"limit":`+strconv.Itoa(limit.Requests))
	assert.NotEmpty(t, logger.warnings)
}

func TestRateLimitFailsOpen(t *testing.T) {
	counter := &fakeCounter{err: errors.New("redis down")}
	logger := &recordingLogger{}
	r := newRouter(RateLimitMiddleware(counter, registry.NewStore(nil), logger))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vms", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], "redis down")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := &config.EnvConfig{}
	cfg.CORS.AllowDomains = "https://console.example.com, https://ops.example.com"
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/vms", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/vms", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestMetricsMiddlewareWithoutTelemetry(t *testing.T) {
	r := newRouter(RequestMetricsMiddleware(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vms", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
