package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reel/internal/model/media"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// LegacyFilename 旧数据占位图片的 original_filename
const LegacyFilename = "legacy_unknown"

const imageColumns = `id, timestamp, original_filename, original_path, file_size_bytes,
	upload_url, uploaded_filename, uploaded_path, downloaded_size_bytes,
	processing_time_seconds, status, error_message, descriptive_name,
	processed_path, origin_image_id, created_at, updated_at`

// OriginalWithPrompt 原始图片及其视频提示词（供衍生图生成使用）
type OriginalWithPrompt struct {
	ImageID     int64
	PromptID    int64
	Name        string
	VideoPrompt string
}

// ImageRepository 图片记录仓储接口（供 service 层依赖）
type ImageRepository interface {
	Create(ctx context.Context, img *media.Image) error
	FindByID(ctx context.Context, id int64) (*media.Image, error)
	FindByOriginalFilename(ctx context.Context, filename string) (*media.Image, error)
	FindByUploadedFilename(ctx context.Context, filename string) (*media.Image, error)
	FindByDescriptiveName(ctx context.Context, name string) (*media.Image, error)
	ListByStatus(ctx context.Context, status media.UploadStatus, limit int) ([]*media.Image, error)
	ListRecent(ctx context.Context, limit int) ([]*media.Image, error)
	ListUploaded(ctx context.Context, limit int) ([]*media.Image, error)
	ListOriginalsWithVideoPrompt(ctx context.Context, limit int) ([]*OriginalWithPrompt, error)
	UpdateStatus(ctx context.Context, id int64, status media.UploadStatus, errMsg string) error
	UpdateUpload(ctx context.Context, img *media.Image) error
	UpdateDescriptiveName(ctx context.Context, id int64, name string) error
	UpdateProcessedPath(ctx context.Context, id int64, path string) error
	UpdateDownloadedSize(ctx context.Context, id int64, size int64) error
	EnsureLegacyPlaceholder(ctx context.Context) (int64, error)
	MarkStale(ctx context.Context) (int64, error)
}

// ImageRepo 图片记录仓储实现
type ImageRepo struct {
	db *DB
}

// NewImageRepo 创建图片仓储
func NewImageRepo(db *DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// Create 创建图片记录，回填自增 ID
func (r *ImageRepo) Create(ctx context.Context, img *media.Image) error {
	if img.Status == "" {
		img.Status = media.UploadStatusPending
	}
	res, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO images (timestamp, original_filename, original_path, file_size_bytes,
			upload_url, uploaded_filename, uploaded_path, downloaded_size_bytes,
			processing_time_seconds, status, error_message, descriptive_name,
			processed_path, origin_image_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullStr(img.Timestamp), img.OriginalFilename, nullStr(img.OriginalPath),
		nullInt(img.FileSizeBytes), nullStr(img.UploadURL), nullStr(img.UploadedFilename),
		nullStr(img.UploadedPath), nullInt(img.DownloadedSizeBytes),
		nullFloat(img.ProcessingTimeSeconds), img.Status.String(), nullStr(img.ErrorMessage),
		nullStr(img.DescriptiveName), nullStr(img.ProcessedPath), img.OriginImageID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get image id: %w", err)
	}
	img.ID = id
	return nil
}

// FindByID 按主键查询
func (r *ImageRepo) FindByID(ctx context.Context, id int64) (*media.Image, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	return scanImage(row)
}

// FindByOriginalFilename 按原始文件名查询（取最新一条）
func (r *ImageRepo) FindByOriginalFilename(ctx context.Context, filename string) (*media.Image, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE original_filename = ? ORDER BY id DESC LIMIT 1`, filename)
	return scanImage(row)
}

// FindByUploadedFilename 按上传后文件名查询
func (r *ImageRepo) FindByUploadedFilename(ctx context.Context, filename string) (*media.Image, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE uploaded_filename = ? ORDER BY id DESC LIMIT 1`, filename)
	return scanImage(row)
}

// FindByDescriptiveName 按描述性名称查询
func (r *ImageRepo) FindByDescriptiveName(ctx context.Context, name string) (*media.Image, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE descriptive_name = ? ORDER BY id DESC LIMIT 1`, name)
	return scanImage(row)
}

// ListByStatus 按状态列出，limit <= 0 不限制
func (r *ImageRepo) ListByStatus(ctx context.Context, status media.UploadStatus, limit int) ([]*media.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE status = ? ORDER BY id`
	args := []any{status.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryImages(ctx, query, args...)
}

// ListRecent 按 ID 倒序列出最近的记录，limit <= 0 不限制
func (r *ImageRepo) ListRecent(ctx context.Context, limit int) ([]*media.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryImages(ctx, query, args...)
}

// ListUploaded 列出有上传 URL 的成功记录（校验/修复用）
func (r *ImageRepo) ListUploaded(ctx context.Context, limit int) ([]*media.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images
		WHERE status = 'success' AND upload_url IS NOT NULL AND upload_url != ''
		ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryImages(ctx, query, args...)
}

// ListOriginalsWithVideoPrompt 列出带视频提示词的原始图片（origin_image_id 为空）
func (r *ImageRepo) ListOriginalsWithVideoPrompt(ctx context.Context, limit int) ([]*OriginalWithPrompt, error) {
	query := `SELECT i.id, p.id, COALESCE(NULLIF(i.descriptive_name, ''), i.original_filename), p.video_prompt
		FROM images i
		JOIN prompts p ON p.image_id = i.id
		WHERE i.origin_image_id IS NULL
		  AND p.video_prompt IS NOT NULL AND p.video_prompt != ''
		ORDER BY i.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query originals: %w", err)
	}
	defer rows.Close()

	var out []*OriginalWithPrompt
	for rows.Next() {
		o := &OriginalWithPrompt{}
		if err := rows.Scan(&o.ImageID, &o.PromptID, &o.Name, &o.VideoPrompt); err != nil {
			return nil, fmt.Errorf("failed to scan original: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus 更新状态与错误信息
func (r *ImageRepo) UpdateStatus(ctx context.Context, id int64, status media.UploadStatus, errMsg string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE images SET status = ?, error_message = ? WHERE id = ?`,
		status.String(), nullStr(errMsg), id)
	if err != nil {
		return fmt.Errorf("failed to update image status: %w", err)
	}
	return nil
}

// UpdateUpload 上传成功后回写 URL、重命名结果与耗时
func (r *ImageRepo) UpdateUpload(ctx context.Context, img *media.Image) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE images SET
			timestamp = COALESCE(?, timestamp),
			upload_url = ?,
			uploaded_filename = ?,
			uploaded_path = ?,
			downloaded_size_bytes = COALESCE(?, downloaded_size_bytes),
			processing_time_seconds = COALESCE(?, processing_time_seconds),
			status = ?,
			error_message = ?
		WHERE id = ?`,
		nullStr(img.Timestamp), img.UploadURL, img.UploadedFilename, img.UploadedPath,
		nullInt(img.DownloadedSizeBytes), nullFloat(img.ProcessingTimeSeconds),
		img.Status.String(), nullStr(img.ErrorMessage), img.ID)
	if err != nil {
		return fmt.Errorf("failed to update image upload: %w", err)
	}
	return nil
}

// UpdateDescriptiveName 更新描述性名称
func (r *ImageRepo) UpdateDescriptiveName(ctx context.Context, id int64, name string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE images SET descriptive_name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to update descriptive name: %w", err)
	}
	return nil
}

// UpdateProcessedPath 图片流转到新目录后更新落盘路径
func (r *ImageRepo) UpdateProcessedPath(ctx context.Context, id int64, path string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE images SET processed_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("failed to update processed path: %w", err)
	}
	return nil
}

// UpdateDownloadedSize 回写下载校验得到的远端文件大小
func (r *ImageRepo) UpdateDownloadedSize(ctx context.Context, id int64, size int64) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE images SET downloaded_size_bytes = ? WHERE id = ?`, size, id)
	if err != nil {
		return fmt.Errorf("failed to update downloaded size: %w", err)
	}
	return nil
}

// EnsureLegacyPlaceholder 为缺失图片来源的旧提示词数据准备占位记录
func (r *ImageRepo) EnsureLegacyPlaceholder(ctx context.Context) (int64, error) {
	existing, err := r.FindByOriginalFilename(ctx, LegacyFilename)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	img := &media.Image{
		OriginalFilename: LegacyFilename,
		Status:           media.UploadStatusLegacy,
	}
	if err := r.Create(ctx, img); err != nil {
		return 0, err
	}
	return img.ID, nil
}

// MarkStale 将中断残留的 uploading 记录置为失败
func (r *ImageRepo) MarkStale(ctx context.Context) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE images SET status = 'failed', error_message = 'interrupted' WHERE status = 'uploading'`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale images: %w", err)
	}
	return res.RowsAffected()
}

func (r *ImageRepo) queryImages(ctx context.Context, query string, args ...any) ([]*media.Image, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var out []*media.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*media.Image, error) {
	var (
		img                          media.Image
		ts, origPath, url            sql.NullString
		upName, upPath, errMsg       sql.NullString
		descName, procPath, status   sql.NullString
		size, dlSize                 sql.NullInt64
		procSeconds                  sql.NullFloat64
		originID                     sql.NullInt64
		createdAt, updatedAt         sql.NullString
	)
	err := row.Scan(&img.ID, &ts, &img.OriginalFilename, &origPath, &size,
		&url, &upName, &upPath, &dlSize,
		&procSeconds, &status, &errMsg, &descName,
		&procPath, &originID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	img.Timestamp = ts.String
	img.OriginalPath = origPath.String
	img.FileSizeBytes = size.Int64
	img.UploadURL = url.String
	img.UploadedFilename = upName.String
	img.UploadedPath = upPath.String
	img.DownloadedSizeBytes = dlSize.Int64
	img.ProcessingTimeSeconds = procSeconds.Float64
	img.Status = media.UploadStatus(status.String)
	img.ErrorMessage = errMsg.String
	img.DescriptiveName = descName.String
	img.ProcessedPath = procPath.String
	if originID.Valid {
		img.OriginImageID = &originID.Int64
	}
	img.CreatedAt = parseTime(createdAt)
	img.UpdatedAt = parseTime(updatedAt)
	return &img, nil
}
