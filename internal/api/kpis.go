package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/auth"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/exporter"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/kpi"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
)

// GetKPIs 角色看板指标
// GET /api/kpis?role=&start=&end=&plant=
func (h *Handler) GetKPIs(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		if user, ok := auth.UserFrom(c); ok {
			role = user.Role
		}
	}

	res, err := h.kpis.Compute(c.Request.Context(), kpi.Query{
		Role:  role,
		Start: c.Query("start"),
		End:   c.Query("end"),
		Plant: c.DefaultQuery("plant", kpi.PlantAll),
	})
	if err != nil {
		if errors.Is(err, kpi.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Error().Err(err).Str("role", role).Msg("kpi query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}

// ExportKPIs 导出指标工作簿；role 为空时包含全部角色
// GET /api/kpis/export?role=&start=&end=&plant=
func (h *Handler) ExportKPIs(c *gin.Context) {
	opts := exporter.ExportOptions{
		Start: c.Query("start"),
		End:   c.Query("end"),
		Plant: c.DefaultQuery("plant", kpi.PlantAll),
	}
	if role := c.Query("role"); role != "" {
		opts.Roles = []kpi.Role{kpi.NormalizeRole(role)}
	}

	f, err := h.exporter.Export(c.Request.Context(), opts, nil)
	if err != nil {
		if errors.Is(err, kpi.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Error().Err(err).Msg("kpi export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exporter.Filename(opts)))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if _, err := f.WriteTo(c.Writer); err != nil {
		logging.Warn().Err(err).Msg("kpi export write interrupted")
	}
}

type insightRequest struct {
	Question       string          `json:"question" binding:"required"`
	ContextFilters insight.Filters `json:"contextFilters"`
}

// PostInsight 分析问答；失败以结构化结果返回
// POST /api/insights
func (h *Handler) PostInsight(c *gin.Context) {
	var req insightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	res := h.insights.Answer(c.Request.Context(), insight.Request{
		Question:       req.Question,
		ContextFilters: req.ContextFilters,
	})
	c.JSON(http.StatusOK, res)
}

// GetPrompts 示例问题
// GET /api/insights/prompts
func (h *Handler) GetPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": insight.SamplePrompts()})
}
