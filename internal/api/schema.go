package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/importer"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

const sampleRows = 5

// GetSchema 数仓表结构、样例行与 Sheet 到事实表的列映射
// GET /api/schema
func (h *Handler) GetSchema(c *gin.Context) {
	ctx := c.Request.Context()

	samples := make(map[string][]map[string]any)
	for _, t := range store.Tables() {
		rows, err := h.store.Sample(ctx, t.Name, sampleRows)
		if err != nil {
			logging.Warn().Err(err).Str("table", t.Name).Msg("schema sample failed")
			rows = []map[string]any{}
		}
		samples[t.Name] = rows
	}

	sources := make(map[string]gin.H)
	for sheet, columns := range importer.ColumnMappings() {
		table, _ := importer.TargetTable(sheet)
		sources[sheet] = gin.H{"table": table, "columns": columns}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"schema":  store.SchemaColumns(),
		"samples": samples,
		"sources": sources,
	})
}

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized    bool             `json:"initialized"`    // 是否已有事实数据
	LastImportTime string           `json:"lastImportTime"` // 最后一次成功上传时间
	LastImportFile string           `json:"lastImportFile"`
	Tables         map[string]int64 `json:"tables"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.store.TableCounts(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := StatusResponse{Tables: counts}
	for _, t := range store.Tables() {
		if t.Name != store.TableDimDate && t.Name != store.TableDimPlant && counts[t.Name] > 0 {
			resp.Initialized = true
			break
		}
	}

	last, err := h.store.LastImport(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("last import lookup failed")
	}
	if last != nil {
		ts := last.CreatedAt
		if last.CompletedAt != nil {
			ts = *last.CompletedAt
		}
		resp.LastImportTime = ts.Format(time.RFC3339)
		resp.LastImportFile = last.Filename
	}

	c.JSON(http.StatusOK, resp)
}
