package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/importer"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
)

// 允许的工作簿扩展名
var workbookExts = []string{".xlsx", ".xls"}

// Upload 上传工作簿并全量装载
// POST /api/upload
func (h *Handler) Upload(c *gin.Context) {
	fh, status, msg := h.acceptUpload(c)
	if fh == nil {
		c.JSON(status, gin.H{"detail": msg})
		return
	}

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error processing file: " + err.Error()})
		return
	}
	defer src.Close()

	result, err := h.importer.Run(c.Request.Context(), importer.ImportOptions{
		Source:      src,
		Filename:    fh.Filename,
		PreviewRows: h.opts.PreviewRows,
	})
	if err != nil {
		logging.Error().Err(err).Str("file", fh.Filename).Msg("upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error processing file: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// UploadStream 上传工作簿并以 SSE 推送导入进度
// POST /api/upload/stream
func (h *Handler) UploadStream(c *gin.Context) {
	fh, status, msg := h.acceptUpload(c)
	if fh == nil {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer src.Close()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	progressChan := h.importer.Import(c.Request.Context(), importer.ImportOptions{
		Source:      src,
		Filename:    fh.Filename,
		PreviewRows: h.opts.PreviewRows,
	})

	for event := range progressChan {
		// error 值无法直接序列化
		if err, ok := event.Data.(error); ok {
			event.Data = gin.H{"error": err.Error()}
		}
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}

		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// acceptUpload 取出上传文件并校验扩展名与大小；失败时返回状态码与消息
func (h *Handler) acceptUpload(c *gin.Context) (*multipart.FileHeader, int, string) {
	// 请求体上限：文件上限外留 1MB 给表单字段
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusBadRequest, h.sizeMessage()
		}
		return nil, http.StatusBadRequest, "No file uploaded"
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	allowed := false
	for _, e := range workbookExts {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, http.StatusBadRequest, "File must be Excel format"
	}

	if fh.Size > h.opts.MaxUploadBytes {
		return nil, http.StatusBadRequest, h.sizeMessage()
	}

	return fh, http.StatusOK, ""
}

func (h *Handler) sizeMessage() string {
	return fmt.Sprintf("File size exceeds %dMB limit", h.opts.MaxUploadBytes/(1024*1024))
}
