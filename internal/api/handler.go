// Package api HTTP 接口
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/auth"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/exporter"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/importer"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/kpi"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

// Options 接口参数
type Options struct {
	MaxUploadBytes int64
	PreviewRows    int
	ReportsDir     string // 离线报表 JSON 目录
	PowerBIMode    string
}

// Handler API 处理器
type Handler struct {
	store    *store.Store
	importer *importer.Coordinator
	kpis     *kpi.Aggregator
	exporter *exporter.Exporter
	insights *insight.Service
	auth     *auth.Service
	opts     Options
}

// NewHandler 创建 API 处理器
func NewHandler(st *store.Store, authSvc *auth.Service, aggregator *kpi.Aggregator, insights *insight.Service, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 * 1024 * 1024
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 5
	}
	if opts.PowerBIMode == "" {
		opts.PowerBIMode = "offline"
	}
	return &Handler{
		store:    st,
		importer: importer.NewCoordinator(st),
		kpis:     aggregator,
		exporter: exporter.NewExporter(aggregator),
		insights: insights,
		auth:     authSvc,
		opts:     opts,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 认证
	router.POST("/auth/login", h.Login)
	router.GET("/auth/me", h.auth.Required(), h.Me)

	// 数据上传
	router.POST("/upload", h.Upload)
	router.POST("/upload/stream", h.UploadStream)

	// 数仓
	router.GET("/schema", h.GetSchema)
	router.GET("/status", h.GetStatus)

	// 指标
	router.GET("/kpis", h.auth.Optional(), h.GetKPIs)
	router.GET("/kpis/export", h.ExportKPIs)

	// 分析问答
	router.POST("/insights", h.PostInsight)
	router.GET("/insights/prompts", h.GetPrompts)

	// 报表嵌入
	router.GET("/powerbi-token", h.GetPowerBIToken)
	router.GET("/reports/:id", h.GetReport)
}
