package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/http/controller"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
)

type Middlewares struct {
	CORSMiddleware         gin.HandlerFunc
	AuthMiddleware         gin.HandlerFunc
	RateLimitMiddleware    gin.HandlerFunc
	CallbackAuthMiddleware gin.HandlerFunc
	MetricsMiddleware      gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cors := CORSMiddleware(ctrl.Config.EnvConfig)
	auth := AuthMiddleware(ctrl.Config.EnvConfig)
	rateLimit := RateLimitMiddleware(ctrl.Infra.Redis, ctrl.Config.Registry, ctrl.Infra.Logger)
	callbackAuth := CallbackAuthMiddleware(ctrl.Config.EnvConfig)

	var metrics *infra.Metrics
	if ctrl.Infra.Telemetry != nil {
		metrics = ctrl.Infra.Telemetry.Metrics
	}

	return &Middlewares{
		CORSMiddleware:         cors,
		AuthMiddleware:         auth,
		RateLimitMiddleware:    rateLimit,
		CallbackAuthMiddleware: callbackAuth,
		MetricsMiddleware:      RequestMetricsMiddleware(metrics),
	}, nil
}
