package media

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reel/internal/model/media"
)

const videoColumns = `id, image_id, prompt_id, video_filename, video_path, prompt_used,
	prompt_type, generation_service, generation_time_seconds, file_size_bytes,
	status, error_message, created_at, metadata`

// VideoRepository 视频记录仓储接口（供 service 层依赖）
type VideoRepository interface {
	Create(ctx context.Context, v *media.Video) error
	FindByID(ctx context.Context, id int64) (*media.Video, error)
	FindByFilename(ctx context.Context, filename string) (*media.Video, error)
	ListByStatus(ctx context.Context, status media.VideoStatus, limit int) ([]*media.Video, error)
	ListRecent(ctx context.Context, limit int) ([]*media.Video, error)
	ListByImageID(ctx context.Context, imageID int64) ([]*media.Video, error)
	ListPending(ctx context.Context, limit int) ([]*media.PendingVideo, error)
	HasCompleted(ctx context.Context, imageID int64, promptType media.PromptType) (bool, error)
	Update(ctx context.Context, id int64, upd *media.VideoUpdate) error
	SetMetadata(ctx context.Context, id int64, metadata map[string]any) error
	MarkStale(ctx context.Context) (int64, error)
}

// VideoRepo 视频记录仓储实现
type VideoRepo struct {
	db *DB
}

// NewVideoRepo 创建视频仓储
func NewVideoRepo(db *DB) *VideoRepo {
	return &VideoRepo{db: db}
}

// Create 创建视频记录，回填自增 ID
func (r *VideoRepo) Create(ctx context.Context, v *media.Video) error {
	if v.Status == "" {
		v.Status = media.VideoStatusPending
	}
	if v.PromptType == "" {
		v.PromptType = media.PromptTypeBase
	}
	meta, err := marshalMetadata(v.Metadata)
	if err != nil {
		return err
	}
	res, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO videos (image_id, prompt_id, video_filename, video_path, prompt_used,
			prompt_type, generation_service, generation_time_seconds, file_size_bytes,
			status, error_message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ImageID, v.PromptID, nullStr(v.VideoFilename), nullStr(v.VideoPath),
		nullStr(v.PromptUsed), v.PromptType.String(), nullStr(v.GenerationService.String()),
		nullFloat(v.GenerationTimeSeconds), nullInt(v.FileSizeBytes),
		v.Status.String(), nullStr(v.ErrorMessage), meta,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get video id: %w", err)
	}
	v.ID = id
	return nil
}

// FindByID 按主键查询
func (r *VideoRepo) FindByID(ctx context.Context, id int64) (*media.Video, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

// FindByFilename 按视频文件名查询（对账用）
func (r *VideoRepo) FindByFilename(ctx context.Context, filename string) (*media.Video, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE video_filename = ? ORDER BY id DESC LIMIT 1`, filename)
	return scanVideo(row)
}

// ListByStatus 按状态列出，limit <= 0 不限制
func (r *VideoRepo) ListByStatus(ctx context.Context, status media.VideoStatus, limit int) ([]*media.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE status = ? ORDER BY id`
	args := []any{status.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryVideos(ctx, query, args...)
}

// ListRecent 按 ID 倒序列出最近的记录，limit <= 0 不限制
func (r *VideoRepo) ListRecent(ctx context.Context, limit int) ([]*media.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryVideos(ctx, query, args...)
}

// ListByImageID 列出某张图片名下的全部视频
func (r *VideoRepo) ListByImageID(ctx context.Context, imageID int64) ([]*media.Video, error) {
	return r.queryVideos(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE image_id = ? ORDER BY id`, imageID)
}

func (r *VideoRepo) queryVideos(ctx context.Context, query string, args ...any) ([]*media.Video, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var out []*media.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListPending 列出待生成视频及图片/提示词上下文（断点续跑用）
func (r *VideoRepo) ListPending(ctx context.Context, limit int) ([]*media.PendingVideo, error) {
	query := `SELECT v.id, v.image_id, v.prompt_id, v.video_filename, v.video_path,
			v.prompt_used, v.prompt_type, v.generation_service, v.generation_time_seconds,
			v.file_size_bytes, v.status, v.error_message, v.created_at, v.metadata,
			i.original_filename, COALESCE(i.upload_url, ''), COALESCE(i.uploaded_path, ''),
			COALESCE(p.video_prompt, ''), COALESCE(p.refined_video_prompt, '')
		FROM videos v
		JOIN images i ON i.id = v.image_id
		LEFT JOIN prompts p ON p.id = v.prompt_id
		WHERE v.status = 'pending'
		ORDER BY v.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending videos: %w", err)
	}
	defer rows.Close()

	var out []*media.PendingVideo
	for rows.Next() {
		pv := &media.PendingVideo{}
		var (
			promptID                 sql.NullInt64
			filename, path, used     sql.NullString
			ptype, service           sql.NullString
			genSeconds               sql.NullFloat64
			size                     sql.NullInt64
			status, errMsg           sql.NullString
			createdAt, meta          sql.NullString
		)
		err := rows.Scan(&pv.ID, &pv.ImageID, &promptID, &filename, &path,
			&used, &ptype, &service, &genSeconds,
			&size, &status, &errMsg, &createdAt, &meta,
			&pv.OriginalFilename, &pv.UploadURL, &pv.UploadedPath,
			&pv.VideoPrompt, &pv.RefinedPrompt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending video: %w", err)
		}
		if promptID.Valid {
			pv.PromptID = &promptID.Int64
		}
		pv.VideoFilename = filename.String
		pv.VideoPath = path.String
		pv.PromptUsed = used.String
		pv.PromptType = media.PromptType(ptype.String)
		pv.GenerationService = media.Service(service.String)
		pv.GenerationTimeSeconds = genSeconds.Float64
		pv.FileSizeBytes = size.Int64
		pv.Status = media.VideoStatus(status.String)
		pv.ErrorMessage = errMsg.String
		pv.CreatedAt = parseTime(createdAt)
		pv.Metadata = unmarshalMetadata(meta)
		out = append(out, pv)
	}
	return out, rows.Err()
}

// HasCompleted 判断图片在指定提示词类型下是否已有完成视频（幂等跳过）
func (r *VideoRepo) HasCompleted(ctx context.Context, imageID int64, promptType media.PromptType) (bool, error) {
	var n int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM videos WHERE image_id = ? AND prompt_type = ? AND status = 'completed'`,
		imageID, promptType.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count completed videos: %w", err)
	}
	return n > 0, nil
}

// Update 更新视频终态，nil 字段保留原值
func (r *VideoRepo) Update(ctx context.Context, id int64, upd *media.VideoUpdate) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE videos SET
			status = ?,
			video_filename = COALESCE(?, video_filename),
			video_path = COALESCE(?, video_path),
			generation_time_seconds = COALESCE(?, generation_time_seconds),
			file_size_bytes = COALESCE(?, file_size_bytes),
			error_message = COALESCE(?, error_message)
		WHERE id = ?`,
		upd.Status.String(), upd.VideoFilename, upd.VideoPath,
		upd.GenerationTimeSeconds, upd.FileSizeBytes, upd.ErrorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return nil
}

// SetMetadata 整体覆盖 metadata JSON
func (r *VideoRepo) SetMetadata(ctx context.Context, id int64, metadata map[string]any) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = r.db.conn.ExecContext(ctx,
		`UPDATE videos SET metadata = ? WHERE id = ?`, meta, id)
	if err != nil {
		return fmt.Errorf("failed to set video metadata: %w", err)
	}
	return nil
}

// MarkStale 将中断残留的 generating 记录置为失败
func (r *VideoRepo) MarkStale(ctx context.Context) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE videos SET status = 'failed', error_message = 'interrupted' WHERE status = 'generating'`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale videos: %w", err)
	}
	return res.RowsAffected()
}

func scanVideo(row rowScanner) (*media.Video, error) {
	var (
		v                        media.Video
		promptID                 sql.NullInt64
		filename, path, used     sql.NullString
		ptype, service           sql.NullString
		genSeconds               sql.NullFloat64
		size                     sql.NullInt64
		status, errMsg           sql.NullString
		createdAt, meta          sql.NullString
	)
	err := row.Scan(&v.ID, &v.ImageID, &promptID, &filename, &path,
		&used, &ptype, &service, &genSeconds,
		&size, &status, &errMsg, &createdAt, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}
	if promptID.Valid {
		v.PromptID = &promptID.Int64
	}
	v.VideoFilename = filename.String
	v.VideoPath = path.String
	v.PromptUsed = used.String
	v.PromptType = media.PromptType(ptype.String)
	v.GenerationService = media.Service(service.String)
	v.GenerationTimeSeconds = genSeconds.Float64
	v.FileSizeBytes = size.Int64
	v.Status = media.VideoStatus(status.String)
	v.ErrorMessage = errMsg.String
	v.CreatedAt = parseTime(createdAt)
	v.Metadata = unmarshalMetadata(meta)
	return &v, nil
}

func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}
