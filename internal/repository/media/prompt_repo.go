package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reel/internal/model/media"
)

const promptColumns = `id, image_id, image_prompt, video_prompt, refined_video_prompt,
	creative_video_prompt_1, creative_video_prompt_2, creative_video_prompt_3,
	created_at, updated_at`

// PromptRepository 提示词仓储接口（供 service 层依赖）
type PromptRepository interface {
	Create(ctx context.Context, p *media.Prompt) error
	FindByID(ctx context.Context, id int64) (*media.Prompt, error)
	FindByImageID(ctx context.Context, imageID int64) (*media.Prompt, error)
	Upsert(ctx context.Context, p *media.Prompt) error
	UpdateRefined(ctx context.Context, imageID int64, refined string) error
	UpdateCreative(ctx context.Context, imageID int64, index int, text string) error
	ListAll(ctx context.Context) ([]*media.Prompt, error)
}

// PromptRepo 提示词仓储实现
type PromptRepo struct {
	db *DB
}

// NewPromptRepo 创建提示词仓储
func NewPromptRepo(db *DB) *PromptRepo {
	return &PromptRepo{db: db}
}

// Create 创建提示词记录，回填自增 ID
func (r *PromptRepo) Create(ctx context.Context, p *media.Prompt) error {
	res, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO prompts (image_id, image_prompt, video_prompt, refined_video_prompt,
			creative_video_prompt_1, creative_video_prompt_2, creative_video_prompt_3)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ImageID, nullStr(p.ImagePrompt), nullStr(p.VideoPrompt), nullStr(p.RefinedVideoPrompt),
		nullStr(p.CreativeVideoPrompt1), nullStr(p.CreativeVideoPrompt2), nullStr(p.CreativeVideoPrompt3),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get prompt id: %w", err)
	}
	p.ID = id
	return nil
}

// FindByID 按主键查询
func (r *PromptRepo) FindByID(ctx context.Context, id int64) (*media.Prompt, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM prompts WHERE id = ?`, id)
	return scanPrompt(row)
}

// FindByImageID 按图片 ID 查询（取最新一条）
func (r *PromptRepo) FindByImageID(ctx context.Context, imageID int64) (*media.Prompt, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM prompts WHERE image_id = ? ORDER BY id DESC LIMIT 1`, imageID)
	return scanPrompt(row)
}

// Upsert 按 image_id 插入或补齐非空字段
func (r *PromptRepo) Upsert(ctx context.Context, p *media.Prompt) error {
	existing, err := r.FindByImageID(ctx, p.ImageID)
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, p)
	}
	if err != nil {
		return err
	}
	_, err = r.db.conn.ExecContext(ctx, `
		UPDATE prompts SET
			image_prompt = COALESCE(NULLIF(?, ''), image_prompt),
			video_prompt = COALESCE(NULLIF(?, ''), video_prompt),
			refined_video_prompt = COALESCE(NULLIF(?, ''), refined_video_prompt),
			creative_video_prompt_1 = COALESCE(NULLIF(?, ''), creative_video_prompt_1),
			creative_video_prompt_2 = COALESCE(NULLIF(?, ''), creative_video_prompt_2),
			creative_video_prompt_3 = COALESCE(NULLIF(?, ''), creative_video_prompt_3)
		WHERE id = ?`,
		p.ImagePrompt, p.VideoPrompt, p.RefinedVideoPrompt,
		p.CreativeVideoPrompt1, p.CreativeVideoPrompt2, p.CreativeVideoPrompt3,
		existing.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert prompt: %w", err)
	}
	p.ID = existing.ID
	return nil
}

// UpdateRefined 回写润色后的视频提示词
func (r *PromptRepo) UpdateRefined(ctx context.Context, imageID int64, refined string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE prompts SET refined_video_prompt = ? WHERE image_id = ?`, refined, imageID)
	if err != nil {
		return fmt.Errorf("failed to update refined prompt: %w", err)
	}
	return nil
}

// UpdateCreative 回写第 index 条创意提示词（1-3）
func (r *PromptRepo) UpdateCreative(ctx context.Context, imageID int64, index int, text string) error {
	var column string
	switch index {
	case 1:
		column = "creative_video_prompt_1"
	case 2:
		column = "creative_video_prompt_2"
	case 3:
		column = "creative_video_prompt_3"
	default:
		return fmt.Errorf("creative prompt index out of range: %d", index)
	}
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE prompts SET `+column+` = ? WHERE image_id = ?`, text, imageID)
	if err != nil {
		return fmt.Errorf("failed to update creative prompt: %w", err)
	}
	return nil
}

// ListAll 列出全部提示词，按图片 ID 升序（导出用）
func (r *PromptRepo) ListAll(ctx context.Context) ([]*media.Prompt, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+promptColumns+` FROM prompts ORDER BY image_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var out []*media.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPrompt(row rowScanner) (*media.Prompt, error) {
	var (
		p                    media.Prompt
		imgPrompt, vidPrompt sql.NullString
		refined, c1, c2, c3  sql.NullString
		createdAt, updatedAt sql.NullString
	)
	err := row.Scan(&p.ID, &p.ImageID, &imgPrompt, &vidPrompt, &refined,
		&c1, &c2, &c3, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	p.ImagePrompt = imgPrompt.String
	p.VideoPrompt = vidPrompt.String
	p.RefinedVideoPrompt = refined.String
	p.CreativeVideoPrompt1 = c1.String
	p.CreativeVideoPrompt2 = c2.String
	p.CreativeVideoPrompt3 = c3.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
