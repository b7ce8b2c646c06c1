package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		api.POST("/game/command", h.GameCommand)

		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
		}

		payment := api.Group("/payment")
		{
			payment.POST("/confirm", h.ConfirmPayment)
			payment.GET("/list", h.ListPayments)
		}
	}

	r.POST("/webhooks/telegram", h.TelegramWebhook)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
