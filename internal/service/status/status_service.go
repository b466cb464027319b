package status

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/cache"
	mediarepo "reel/internal/repository/media"
)

// ErrInvalidStatus 查询参数里的状态不在枚举内
var ErrInvalidStatus = errors.New("invalid status filter")

// ImageDetail 图片详情（附带提示词与名下视频）
type ImageDetail struct {
	Image  *media.Image   `json:"image"`
	Prompt *media.Prompt  `json:"prompt,omitempty"`
	Videos []*media.Video `json:"videos"`
}

// StatusService 只读状态查询接口
// 状态接口不做任何写操作，流水线的写入全部走 CLI
type StatusService interface {
	// Stats 汇总统计
	Stats(ctx context.Context) (*mediarepo.Statistics, error)

	// ListImages 按状态列出图片，status 为空时按 ID 倒序取最近的
	ListImages(ctx context.Context, status string, limit int) ([]*media.Image, error)

	// ListVideos 按状态列出视频，status 为空时按 ID 倒序取最近的
	ListVideos(ctx context.Context, status string, limit int) ([]*media.Video, error)

	// ImageDetail 单张图片的完整视图
	ImageDetail(ctx context.Context, id int64) (*ImageDetail, error)
}

// statusService 只读状态查询实现
type statusService struct {
	images  mediarepo.ImageRepository
	videos  mediarepo.VideoRepository
	prompts mediarepo.PromptRepository
	stats   *mediarepo.StatsRepo
	cache   *cache.RedisCache
}

// NewStatusService 创建状态查询服务，cache 可以为 nil（不启用缓存）
func NewStatusService(db *mediarepo.DB, redisCache *cache.RedisCache) StatusService {
	return &statusService{
		images:  mediarepo.NewImageRepo(db),
		videos:  mediarepo.NewVideoRepo(db),
		prompts: mediarepo.NewPromptRepo(db),
		stats:   mediarepo.NewStatsRepo(db),
		cache:   redisCache,
	}
}

// Stats 汇总统计，命中缓存时跳过三表聚合
func (s *statusService) Stats(ctx context.Context) (*mediarepo.Statistics, error) {
	if s.cache != nil {
		var cached mediarepo.Statistics
		if err := s.cache.Get(ctx, cache.StatsCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.stats.Collect(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.StatsCacheKey, stats, cache.StatsCacheTTL); err != nil {
			log.Warn().Err(err).Msg("统计缓存写入失败")
		}
	}
	return stats, nil
}

// ListImages 按状态列出图片
func (s *statusService) ListImages(ctx context.Context, status string, limit int) ([]*media.Image, error) {
	if status == "" {
		return s.images.ListRecent(ctx, limit)
	}
	st := media.UploadStatus(status)
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.images.ListByStatus(ctx, st, limit)
}

// ListVideos 按状态列出视频
func (s *statusService) ListVideos(ctx context.Context, status string, limit int) ([]*media.Video, error) {
	if status == "" {
		return s.videos.ListRecent(ctx, limit)
	}
	st := media.VideoStatus(status)
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.videos.ListByStatus(ctx, st, limit)
}

// ImageDetail 单张图片 + 提示词 + 名下视频
func (s *statusService) ImageDetail(ctx context.Context, id int64) (*ImageDetail, error) {
	img, err := s.images.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ImageDetail{Image: img}

	prompt, err := s.prompts.FindByImageID(ctx, id)
	if err == nil {
		detail.Prompt = prompt
	} else if !errors.Is(err, mediarepo.ErrNotFound) {
		return nil, err
	}

	videos, err := s.videos.ListByImageID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Videos = videos
	return detail, nil
}
