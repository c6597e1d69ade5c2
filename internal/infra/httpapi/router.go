package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine. metrics may be nil.
func NewRouter(h *Handler, metrics http.Handler, logger *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api/pnr", RequireUser())
	api.POST("/subscribe", h.Subscribe)
	api.GET("/subscriptions", h.List)
	api.GET("/subscriptions/:id", h.Get)
	api.PUT("/subscriptions/:id", h.Update)
	api.DELETE("/subscriptions/:id", h.Delete)
	api.POST("/subscriptions/:id/refresh", h.Refresh)
	api.GET("/subscriptions/:id/notifications", h.Notifications)
	api.GET("/status/:pnr", h.StatusByPNR)

	return r
}
