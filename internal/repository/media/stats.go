package media

import (
	"context"
	"database/sql"
	"fmt"
)

// Statistics 流水线汇总统计
type Statistics struct {
	TotalImages     int            `json:"total_images"`
	TotalPrompts    int            `json:"total_prompts"`
	TotalVideos     int            `json:"total_videos"`
	ImagesByStatus  map[string]int `json:"images_by_status"`
	VideosByStatus  map[string]int `json:"videos_by_status"`
	VideosByService map[string]int `json:"videos_by_service"`
	RefinedPrompts  int            `json:"refined_prompts"`
	CreativePrompts int            `json:"creative_prompts"`

	AvgUploadSeconds     float64 `json:"avg_upload_seconds"`
	AvgGenerationSeconds float64 `json:"avg_generation_seconds"`
	TotalImageBytes      int64   `json:"total_image_bytes"`
	TotalVideoBytes      int64   `json:"total_video_bytes"`
	LastImageAt          string  `json:"last_image_at,omitempty"`
	LastVideoAt          string  `json:"last_video_at,omitempty"`
}

// StatsRepo 统计查询
type StatsRepo struct {
	db *DB
}

// NewStatsRepo 创建统计仓储
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Collect 汇总三张表的状态分布
func (r *StatsRepo) Collect(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ImagesByStatus:  map[string]int{},
		VideosByStatus:  map[string]int{},
		VideosByService: map[string]int{},
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM images`, &stats.TotalImages},
		{`SELECT COUNT(*) FROM prompts`, &stats.TotalPrompts},
		{`SELECT COUNT(*) FROM videos`, &stats.TotalVideos},
		{`SELECT COUNT(*) FROM prompts WHERE refined_video_prompt IS NOT NULL AND refined_video_prompt != ''`, &stats.RefinedPrompts},
		{`SELECT COUNT(*) FROM prompts WHERE COALESCE(creative_video_prompt_1, '') != ''
			OR COALESCE(creative_video_prompt_2, '') != ''
			OR COALESCE(creative_video_prompt_3, '') != ''`, &stats.CreativePrompts},
	}
	for _, c := range counts {
		if err := r.db.conn.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to collect statistics: %w", err)
		}
	}

	groups := []struct {
		query string
		dest  map[string]int
	}{
		{`SELECT status, COUNT(*) FROM images GROUP BY status`, stats.ImagesByStatus},
		{`SELECT status, COUNT(*) FROM videos GROUP BY status`, stats.VideosByStatus},
		{`SELECT COALESCE(generation_service, 'unknown'), COUNT(*) FROM videos GROUP BY generation_service`, stats.VideosByService},
	}
	for _, g := range groups {
		rows, err := r.db.conn.QueryContext(ctx, g.query)
		if err != nil {
			return nil, fmt.Errorf("failed to collect statistics: %w", err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan statistics: %w", err)
			}
			g.dest[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	// 空表时聚合函数返回 NULL，按零值处理
	var (
		avgUpload, avgGen    sql.NullFloat64
		imgBytes, vidBytes   sql.NullInt64
		lastImage, lastVideo sql.NullString
	)
	aggregates := []struct {
		query string
		dest  any
	}{
		{`SELECT AVG(processing_time_seconds) FROM images WHERE processing_time_seconds > 0`, &avgUpload},
		{`SELECT AVG(generation_time_seconds) FROM videos WHERE generation_time_seconds > 0`, &avgGen},
		{`SELECT SUM(file_size_bytes) FROM images`, &imgBytes},
		{`SELECT SUM(file_size_bytes) FROM videos`, &vidBytes},
		{`SELECT MAX(updated_at) FROM images`, &lastImage},
		{`SELECT MAX(created_at) FROM videos`, &lastVideo},
	}
	for _, a := range aggregates {
		if err := r.db.conn.QueryRowContext(ctx, a.query).Scan(a.dest); err != nil {
			return nil, fmt.Errorf("failed to collect statistics: %w", err)
		}
	}
	stats.AvgUploadSeconds = avgUpload.Float64
	stats.AvgGenerationSeconds = avgGen.Float64
	stats.TotalImageBytes = imgBytes.Int64
	stats.TotalVideoBytes = vidBytes.Int64
	stats.LastImageAt = lastImage.String
	stats.LastVideoAt = lastVideo.String

	return stats, nil
}
