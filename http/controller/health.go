package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
)

func (ctrl *Controller) Health(c *gin.Context) {
	ctx := c.Request.Context()
	endpoints := ctrl.Config.Registry.Snapshot().Settings().HealthCheckEndpoints

	checks, healthy := infra.CheckHealth(ctx, endpoints, ctrl.Infra.HealthProbes(ctrl.Config.EnvConfig))

	status := http.StatusOK
	overall := infra.HealthStatusHealthy
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = infra.HealthStatusUnhealthy
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Health] Unhealthy dependencies: %v", checks)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"version": registry.APIVersion,
		"checks":  checks,
	})
}
