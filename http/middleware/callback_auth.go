package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

const (
	// TimestampTolerance is the maximum allowed time difference in seconds
	TimestampTolerance = 300
)

// CallbackAuthMiddleware authenticates workers calling back into internal
// endpoints.
// Header format: Authorization: HMAC <workerID>:<signature>
// Required headers: X-Timestamp
func CallbackAuthMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret, err := cfg.CallbackKey()
		if err != nil {
			utils.AbortJSON(c, http.StatusServiceUnavailable, "Callback authentication is not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "HMAC ") {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid authorization type. Use 'HMAC'")
			return
		}

		parts := strings.SplitN(strings.TrimPrefix(authHeader, "HMAC "), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid HMAC authorization format. Expected: HMAC <workerID>:<signature>")
			return
		}
		workerID, clientSignature := parts[0], parts[1]

		timestamp, err := strconv.ParseInt(c.GetHeader("X-Timestamp"), 10, 64)
		if err != nil {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid or missing X-Timestamp header")
			return
		}

		// Anti-replay protection
		if utils.Abs(time.Now().Unix()-timestamp) > TimestampTolerance {
			utils.AbortJSON(c, http.StatusUnauthorized, "Request timestamp expired")
			return
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, err = io.ReadAll(c.Request.Body)
			if err != nil {
				utils.AbortJSON(c, http.StatusBadRequest, "Failed to read request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		stringToSign := utils.BuildStringToSign(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			utils.HashBodySHA256(bodyBytes),
		)

		if !utils.SecureCompare(utils.ComputeHMACSHA256(secret, stringToSign), clientSignature) {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid signature")
			return
		}

		c.Set("worker_id", workerID)
		c.Set("auth_method", "hmac")

		c.Next()
	}
}
