package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (g *Gateway) dashboardStats(c *gin.Context) {
	stats, err := g.services.Dashboard.Stats(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"stats": stats})
}
