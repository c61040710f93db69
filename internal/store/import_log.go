package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// 导入状态
const (
	ImportStatusProcessing = "processing"
	ImportStatusSuccess    = "success"
	ImportStatusFailed     = "failed"
)

// ImportLog 上传记录
type ImportLog struct {
	ID           int64
	Filename     string
	FileSize     int64
	FileHash     string
	Status       string
	SheetsLoaded int
	RowsLoaded   int
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// CreateImportLog 创建导入日志，返回 import_log_id
func (s *Store) CreateImportLog(ctx context.Context, filename string, fileSize int64, fileHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (filename, file_size, file_hash, status)
		VALUES (?, ?, ?, ?)
	`, filename, fileSize, fileHash, ImportStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import log id: %w", err)
	}
	return id, nil
}

// CompleteImportLog 完成导入日志更新
func (s *Store) CompleteImportLog(ctx context.Context, id int64, sheetsLoaded, rowsLoaded int, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_logs SET
			sheets_loaded = ?,
			rows_loaded = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, sheetsLoaded, rowsLoaded, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

// LastImport 最近一次成功导入；无记录时返回 nil
func (s *Store) LastImport(ctx context.Context) (*ImportLog, error) {
	var (
		log         ImportLog
		hash        sql.NullString
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, file_size, file_hash, status, sheets_loaded, rows_loaded,
		       error_message, created_at, completed_at
		FROM import_logs
		WHERE status = ?
		ORDER BY id DESC
		LIMIT 1
	`, ImportStatusSuccess).Scan(
		&log.ID, &log.Filename, &log.FileSize, &hash, &log.Status,
		&log.SheetsLoaded, &log.RowsLoaded, &errMsg, &log.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last import: %w", err)
	}

	log.FileHash = hash.String
	log.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		log.CompletedAt = &t
	}
	return &log, nil
}
