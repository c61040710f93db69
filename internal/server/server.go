package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/api"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/auth"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/config"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight/llm"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/kpi"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
}

// NewServer 打开数仓（重建表结构）并创建服务器
func NewServer(cfg *config.AppConfig) (*Server, error) {
	dbPath, err := config.DBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gen, err := llm.New(llm.Config{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLMTimeout(),
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			_ = st.Close()
			return nil, fmt.Errorf("failed to initialize text generation: %w", err)
		}
		logging.Warn().Str("provider", cfg.LLM.Provider).Msg("no LLM API key configured, insights will report AI service unavailable")
	}

	s, err := NewWithStore(cfg, st, gen)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore 使用已打开的数仓创建服务器；gen 可为 nil
func NewWithStore(cfg *config.AppConfig, st *store.Store, gen llm.Generator) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	authSvc, err := auth.NewService(auth.Config{
		Secret:            cfg.Auth.JWTSecret,
		TTL:               cfg.TokenTTL(),
		DemoAdminPassword: cfg.Auth.DemoAdminPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	aggregator := kpi.NewAggregator(st,
		kpi.WithPowerTariff(cfg.KPI.PowerTariffRsKWh),
		kpi.WithDefaultRange(cfg.KPI.DefaultStart, cfg.KPI.DefaultEnd),
	)
	insights := insight.NewService(st, gen, insight.WithDefaultFilters(insight.Filters{
		Start: cfg.KPI.DefaultStart,
		End:   cfg.KPI.DefaultEnd,
		Plant: kpi.PlantAll,
	}))

	opts := api.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		PreviewRows:    cfg.Upload.PreviewRows,
		PowerBIMode:    cfg.Server.PowerBIMode,
	}
	if dataDir, err := config.EnsureDataDir(cfg); err == nil {
		opts.ReportsDir = filepath.Join(dataDir, "reports")
	}

	s := &Server{
		router: gin.New(),
		store:  st,
		api:    api.NewHandler(st, authSvc, aggregator, insights, opts),
	}
	s.setupRoutes(cfg)
	return s, nil
}

// setupRoutes 设置中间件与路由
func (s *Server) setupRoutes(cfg *config.AppConfig) {
	s.router.Use(gin.Recovery())
	s.router.Use(RequestID())
	s.router.Use(AccessLog())
	s.router.Use(CORS(cfg.CORSOriginList()))

	s.router.GET("/api/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Star Cement KPI API", "status": "running"})
	})

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}
}

// Handler 返回 http.Handler（测试与自定义 http.Server 使用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close 关闭数仓
func (s *Server) Close() error {
	return s.store.Close()
}

