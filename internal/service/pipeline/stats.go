package pipeline

import (
	"context"

	mediarepo "reel/internal/repository/media"
)

// Stats 汇总数据库里的流水线状态，供 CLI 和状态接口共用
func (s *Service) Stats(ctx context.Context) (*mediarepo.Statistics, error) {
	return s.stats.Collect(ctx)
}
