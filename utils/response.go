package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/validation"
)

func JSON200(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func JSON202(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

func JSON400(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(message, nil))
}

func JSON404(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponse(message, nil))
}

func JSON409(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, dto.NewErrorResponse(message, nil))
}

// JSON422 reports a request that parsed but failed validation.
func JSON422(c *gin.Context, v *validation.Violation) {
	c.JSON(http.StatusUnprocessableEntity, dto.ViolationResponse(v))
}

func JSON429(c *gin.Context, message string, details map[string]any) {
	c.JSON(http.StatusTooManyRequests, dto.NewErrorResponse(message, details))
}

func JSON500(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(message, nil))
}

func JSON503(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(message, nil))
}

func AbortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, nil))
}
