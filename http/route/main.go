package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/http/controller"
	middlewares "github.com/tnqbao/gau-vm-orchestrator/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware, middles.MetricsMiddleware)

	apiRoutes := r.Group("/api/v1/vm")
	{
		apiRoutes.GET("/health", ctrl.Health)

		internalRoutes := apiRoutes.Group("/internal")
		{
			internalRoutes.Use(middles.CallbackAuthMiddleware)
			internalRoutes.POST("/kyubo/communication", ctrl.KyuboCommunication)
		}

		authRoutes := apiRoutes.Group("")
		authRoutes.Use(middles.AuthMiddleware, middles.RateLimitMiddleware)
		{
			authRoutes.GET("/info", ctrl.GetInfo)

			configRoutes := authRoutes.Group("/config")
			{
				configRoutes.GET("/regions", ctrl.GetRegions)
				configRoutes.GET("/sizes", ctrl.GetSizes)
			}

			vmRoutes := authRoutes.Group("/vms")
			{
				vmRoutes.POST("", ctrl.CreateVM)
				vmRoutes.GET("", ctrl.ListVMs)
				vmRoutes.GET("/:name", ctrl.GetVM)
				vmRoutes.PATCH("/:name", ctrl.UpdateVM)
				vmRoutes.DELETE("/:name", ctrl.DeleteVM)
				vmRoutes.POST("/:name/resize", ctrl.ResizeVM)
				vmRoutes.GET("/:name/status", ctrl.GetVMStatus)
				vmRoutes.GET("/:name/ssh-key", ctrl.GetSSHKey)
				vmRoutes.POST("/:name/command", ctrl.RunCommand)
				vmRoutes.POST("/:name/playbook", ctrl.RunPlaybook)
				vmRoutes.GET("/:name/operations", ctrl.ListVMOperations)
			}

			authRoutes.POST("/kyubo", ctrl.CreateKyuboVM)
			authRoutes.POST("/solo", ctrl.CreateSoloVM)
			authRoutes.GET("/operations/:id", ctrl.GetOperation)
		}
	}
	return r
}
