package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ExportOptions 提示词导出参数
type ExportOptions struct {
	OutputPath string // 默认 docs/video_prompts_extract.csv
}

// ExportResult 导出结果
type ExportResult struct {
	Rows int
	Path string
}

// Export 把 prompts 表里的视频提示词导出为 CSV（image_id, video_prompt 两列）
func (s *Service) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	prompts, err := s.prompts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	outPath := opts.OutputPath
	if outPath == "" {
		outPath = filepath.Join(s.wd.Docs(), exportCSVName)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"image_id", "video_prompt"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	result := &ExportResult{Path: outPath}
	for _, p := range prompts {
		if p.VideoPrompt == "" {
			continue
		}
		if err := w.Write([]string{strconv.FormatInt(p.ImageID, 10), p.VideoPrompt}); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
		result.Rows++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	log.Info().Int("rows", result.Rows).Str("path", outPath).Msg("视频提示词导出完成")
	return result, nil
}
