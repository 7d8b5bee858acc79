package feed

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg gin.IRoutes, h Handler) {
	rg.GET("/feed/stats", h.Stats)
	rg.GET("/feed/messages/:key", h.GetMessage)
	rg.POST("/feed/older", h.LoadOlder)
	rg.POST("/feed/read", h.MarkRead)
}
