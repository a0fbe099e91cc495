package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/passport-notifier/pkg/utils"
)

// RegisterNotificationRoutes registra las rutas HTTP de notificaciones. Todas exigen autenticación.
func RegisterNotificationRoutes(r *gin.Engine, handler *NotificationHandler, authMiddleware gin.HandlerFunc) {
	notifications := r.Group("/api/notifications", authMiddleware)
	{
		notifications.POST("", handler.CreateNotification)           // Crear una notificación
		notifications.GET("", handler.ListNotifications)             // Listar las visibles
		notifications.GET("/stats", handler.GetStats)                // Estadísticas por estado
		notifications.GET("/analytics/trend", handler.DeliveryTrend) // Tendencia diaria (admin)
		notifications.GET("/:id", handler.GetNotification)           // Obtener por ID
		notifications.PATCH("/:id/read", handler.MarkAsRead)         // Marcar como leída
		notifications.DELETE("/:id", handler.DeleteNotification)     // Borrado lógico
		notifications.POST("/:id/retry", handler.RetryDelivery)      // Reintento manual (admin)
	}
}

// RegisterOpsRoutes registra /health y /metrics, sin autenticación.
func RegisterOpsRoutes(r *gin.Engine, emailEnabled bool, metrics http.Handler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":      "Notification Service is running",
			"status":       "OK",
			"emailEnabled": emailEnabled,
		})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	r.NoRoute(func(c *gin.Context) {
		utils.SendNotFound(c, "Route not found")
	})
}
