package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/agisfl/agisfl-server/internal/api/handlers"
)

func registerFederatedLearningRoutes(router *gin.RouterGroup, flHandler *handlers.FederatedLearningHandler, wsHandler *handlers.WebSocketHandler) {
	fl := router.Group("/fl")
	{
		fl.POST("/start", flHandler.StartTraining)
		fl.POST("/stop", flHandler.StopTraining)
		fl.POST("/pause", flHandler.PauseTraining)
		fl.POST("/resume", flHandler.ResumeTraining)
		fl.GET("/status", flHandler.GetStatus)
		fl.GET("/history", flHandler.GetHistory)
		fl.POST("/evaluate", flHandler.Evaluate)
		fl.GET("/ws", wsHandler.StreamEvents)

		strategies := fl.Group("/strategies")
		{
			strategies.GET("", flHandler.ListStrategies)
			strategies.POST("/:name", flHandler.SetStrategy)
		}

		checkpoints := fl.Group("/checkpoints")
		{
			checkpoints.POST("", flHandler.SaveCheckpoint)
			checkpoints.GET("", flHandler.ListCheckpoints)
			checkpoints.POST("/restore", flHandler.RestoreCheckpoint)
		}
	}
}

func RegisterRoutes(api *gin.RouterGroup, flHandler *handlers.FederatedLearningHandler, wsHandler *handlers.WebSocketHandler) {
	registerFederatedLearningRoutes(api, flHandler, wsHandler)
}
