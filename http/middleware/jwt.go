package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

func AuthMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := utils.ExtractToken(c)

		if tokenStr == "" {
			tokenStr = c.Query("access_token")
		}

		if tokenStr == "" {
			utils.AbortJSON(c, http.StatusUnauthorized, "Authorization token is required")
			return
		}

		parsedToken, err := utils.ParseToken(tokenStr, cfg.JWT.SecretKey)
		if err != nil || !parsedToken.Valid {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		claims, ok := parsedToken.Claims.(jwt.MapClaims)
		if !ok {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		if err := utils.InjectClaimsToContext(c, claims); err != nil {
			utils.AbortJSON(c, http.StatusUnauthorized, "Invalid claims")
			return
		}

		c.Next()
	}
}
