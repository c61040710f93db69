package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"
)

var reportIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// GetPowerBIToken 报表嵌入模式
// GET /api/powerbi-token
func (h *Handler) GetPowerBIToken(c *gin.Context) {
	if h.opts.PowerBIMode == "offline" {
		c.JSON(http.StatusOK, gin.H{
			"mode":    "offline",
			"message": "Using offline demo mode",
		})
		return
	}
	// 在线模式的令牌交换未接入，前端据此回退
	c.JSON(http.StatusOK, gin.H{
		"mode":    "online",
		"token":   nil,
		"message": "Power BI token exchange is not configured",
	})
}

// GetReport 离线报表预计算数据
// GET /api/reports/:id
func (h *Handler) GetReport(c *gin.Context) {
	id := c.Param("id")
	notFound := gin.H{
		"status":    "not_found",
		"report_id": id,
		"message":   "Report data not available",
	}

	if !reportIDPattern.MatchString(id) || h.opts.ReportsDir == "" {
		c.JSON(http.StatusOK, notFound)
		return
	}

	data, err := os.ReadFile(filepath.Join(h.opts.ReportsDir, id+".json"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, notFound)
		return
	}

	if !json.Valid(data) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report file is not valid JSON"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
