package pipeline

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"reel/internal/pkg/mediatools"
)

// WatermarkOptions 去水印参数
type WatermarkOptions struct {
	InputDir  string // 默认 img/ready/watermark
	OutputDir string // 默认 img/ready/no-watermark
}

// WatermarkResult 去水印结果
type WatermarkResult struct {
	Found     int
	Succeeded int
	Failed    int
}

// Watermark 用图片编辑模型抹掉水印，产物按原名落到无水印目录
func (s *Service) Watermark(ctx context.Context, opts WatermarkOptions) (*WatermarkResult, error) {
	if err := s.requireGemini(); err != nil {
		return nil, err
	}

	inputDir := opts.InputDir
	if inputDir == "" {
		inputDir = s.wd.Watermark()
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = s.wd.NoWatermark()
	}

	files, err := s.wd.ListImages(inputDir)
	if err != nil {
		return nil, err
	}

	result := &WatermarkResult{Found: len(files)}
	if len(files) == 0 {
		log.Info().Str("dir", inputDir).Msg("没有待去水印的图片")
		return result, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := filepath.Base(path)
		log.Info().Int("index", i+1).Int("total", len(files)).Str("file", name).Msg("开始去水印")

		if err := s.removeWatermark(ctx, path, filepath.Join(outputDir, name)); err != nil {
			result.Failed++
			log.Error().Str("file", name).Err(err).Msg("去水印失败")
		} else {
			result.Succeeded++
			log.Info().Str("file", name).Msg("去水印完成")
		}

		if i < len(files)-1 {
			if err := s.pace(ctx); err != nil {
				return result, err
			}
		}
	}

	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Str("dir", outputDir).
		Msg("去水印批处理完成")
	return result, nil
}

// removeWatermark 单张图片的编辑与落盘
func (s *Service) removeWatermark(ctx context.Context, srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	edited, err := s.gemini.EditImage(ctx, mediatools.WatermarkRemovalInstruction, data, http.DetectContentType(data))
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, edited, 0o644)
}
