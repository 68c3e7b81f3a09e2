package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

func (ctrl *Controller) GetRegions(c *gin.Context) {
	reg := ctrl.Config.Registry.Snapshot()
	utils.JSON200(c, gin.H{
		"regions": reg.RegionTable(),
		"order":   reg.Regions(),
	})
}

func (ctrl *Controller) GetSizes(c *gin.Context) {
	reg := ctrl.Config.Registry.Snapshot()
	utils.JSON200(c, gin.H{
		"sizes":     reg.SizeTable(),
		"aliases":   reg.Sizes(),
		"canonical": reg.CanonicalSizes(),
	})
}

// GetInfo describes the API and the deployment choices it accepts.
func (ctrl *Controller) GetInfo(c *gin.Context) {
	reg := ctrl.Config.Registry.Snapshot()
	settings := reg.Settings()

	tiers := make([]gin.H, 0, len(reg.KyuboTiers()))
	for _, tier := range reg.KyuboTiers() {
		tiers = append(tiers, gin.H{"max_sessions": tier.MaxSessions, "size": tier.Size})
	}

	utils.JSON200(c, gin.H{
		"title":        registry.APITitle,
		"description":  registry.APIDescription,
		"version":      registry.APIVersion,
		"environments": reg.Environments(),
		"criticality":  reg.CriticalityLevels(),
		"kyubo_tiers":  tiers,
		"features": gin.H{
			"ssh_key_management":   settings.Features.SSHKeyManagement,
			"data_disk_auto_mount": settings.Features.DataDiskAutoMount,
			"monitoring":           settings.Features.Monitoring,
			"backup":               settings.Features.Backup,
		},
	})
}
