package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/workdir"
)

// 文生图提示词来源
const (
	ImagegenSourceDB     = "db"     // 数据库里带视频提示词的原始图片
	ImagegenSourceJSON   = "json"   // used/ 下提示词 JSON 的 video_prompt
	ImagegenSourcePrompt = "prompt" // 命令行单条提示词
)

// ImagegenOptions 文生图参数
type ImagegenOptions struct {
	Source string // db|json|prompt
	Prompt string // Source 为 prompt 时的提示词
	Limit  int    // 最多生成数，0 不限
	Ready  bool   // 产物进 img/ready 并建立 origin 关联档，否则进 out/generated_images
}

// ImagegenResult 文生图结果
type ImagegenResult struct {
	Requested int
	Succeeded int
	Failed    int
	LogPath   string // 运行结果 JSON 日志
}

// imagegenItem 一次生成任务
type imagegenItem struct {
	label  string // 文件名前缀来源（描述名或 JSON 词干）
	prompt string
	origin *int64 // 来源图片 ID，仅 db 来源有
}

// imagegenOutcome 运行结果日志条目
type imagegenOutcome struct {
	Label         string `json:"label,omitempty"`
	Prompt        string `json:"prompt"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Path          string `json:"path,omitempty"`
	OriginImageID *int64 `json:"origin_image_id,omitempty"`
	NewImageID    int64  `json:"new_image_id,omitempty"`
}

// Imagegen 按提示词批量文生图：Duomi 生成 → 下载落盘 → 可选建档关联来源图片
func (s *Service) Imagegen(ctx context.Context, opts ImagegenOptions) (*ImagegenResult, error) {
	if err := s.requireDuomiImage(); err != nil {
		return nil, err
	}

	items, err := s.collectImagegenItems(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &ImagegenResult{Requested: len(items)}
	if len(items) == 0 {
		log.Info().Str("source", opts.Source).Msg("没有可用的生成提示词")
		return result, nil
	}

	destDir := s.wd.GeneratedImages()
	if opts.Ready {
		destDir = s.wd.Ready()
	}

	outcomes := make([]imagegenOutcome, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		log.Info().
			Int("index", i+1).
			Int("total", len(items)).
			Str("label", item.label).
			Msg("开始生成图片")

		outcome := s.generateImage(ctx, item, destDir, opts.Ready)
		outcomes = append(outcomes, outcome)
		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}

		if i < len(items)-1 {
			if err := s.pace(ctx); err != nil {
				s.writeImagegenLog(outcomes, result)
				return result, err
			}
		}
	}

	s.writeImagegenLog(outcomes, result)
	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Str("dir", destDir).
		Msg("图片生成完成")
	return result, nil
}

// collectImagegenItems 按来源汇集生成任务
func (s *Service) collectImagegenItems(ctx context.Context, opts ImagegenOptions) ([]imagegenItem, error) {
	switch opts.Source {
	case ImagegenSourceDB:
		originals, err := s.images.ListOriginalsWithVideoPrompt(ctx, opts.Limit)
		if err != nil {
			return nil, err
		}
		items := make([]imagegenItem, 0, len(originals))
		for _, o := range originals {
			origin := o.ImageID
			items = append(items, imagegenItem{label: o.Name, prompt: o.VideoPrompt, origin: &origin})
		}
		return items, nil

	case ImagegenSourceJSON:
		files, err := s.wd.ListUsedPromptFiles()
		if err != nil {
			return nil, err
		}
		var items []imagegenItem
		for _, path := range files {
			if opts.Limit > 0 && len(items) >= opts.Limit {
				break
			}
			pf, err := workdir.ReadPromptFile(path)
			if err != nil {
				log.Warn().Str("json", filepath.Base(path)).Err(err).Msg("提示词 JSON 解析失败，跳过")
				continue
			}
			if pf.VideoPrompt == "" {
				continue
			}
			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			items = append(items, imagegenItem{label: stem, prompt: pf.VideoPrompt})
		}
		return items, nil

	case ImagegenSourcePrompt:
		if strings.TrimSpace(opts.Prompt) == "" {
			return nil, errors.New("prompt is required for prompt source")
		}
		return []imagegenItem{{prompt: opts.Prompt}}, nil

	default:
		return nil, fmt.Errorf("unsupported imagegen source: %s", opts.Source)
	}
}

// generateImage 单条提示词的生成、下载与建档
func (s *Service) generateImage(ctx context.Context, item imagegenItem, destDir string, ready bool) imagegenOutcome {
	outcome := imagegenOutcome{
		Label:         item.label,
		Prompt:        item.prompt,
		OriginImageID: item.origin,
	}

	url, err := s.duomiImage.GenerateImage(ctx, item.prompt)
	if err != nil {
		outcome.Error = err.Error()
		log.Error().Str("label", item.label).Err(err).Msg("图片生成失败")
		return outcome
	}

	destPath := filepath.Join(destDir, generatedFilename(item.label))
	size, err := s.dl.ToFile(ctx, url, destPath)
	if err != nil {
		outcome.Error = fmt.Sprintf("failed to download generated image: %v", err)
		log.Error().Str("url", url).Err(err).Msg("生成图片下载失败")
		return outcome
	}

	outcome.Success = true
	outcome.Path = destPath
	log.Info().Str("path", destPath).Int64("size", size).Msg("图片已保存")

	// --ready 时建档并关联来源，等待 parse --generated 接手
	if ready && item.origin != nil {
		img := &media.Image{
			Timestamp:        time.Now().Format(time.RFC3339),
			OriginalFilename: filepath.Base(destPath),
			OriginalPath:     destPath,
			FileSizeBytes:    size,
			DescriptiveName:  "Generated from prompt: " + truncateRunes(item.prompt, 50) + "...",
			ProcessedPath:    destPath,
			Status:           media.UploadStatusPending,
			OriginImageID:    item.origin,
		}
		if err := s.images.Create(ctx, img); err != nil {
			log.Warn().Str("file", img.OriginalFilename).Err(err).Msg("派生图片建档失败")
		} else {
			outcome.NewImageID = img.ID
		}
	}
	return outcome
}

// writeImagegenLog 把运行结果写成 logs/ 下的 JSON 日志
func (s *Service) writeImagegenLog(outcomes []imagegenOutcome, result *ImagegenResult) {
	if len(outcomes) == 0 {
		return
	}
	path := filepath.Join(s.wd.Logs(), "imagegen_results_"+time.Now().Format("20060102_150405")+".json")
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("序列化生成结果失败")
		return
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("写入生成结果日志失败")
		return
	}
	result.LogPath = path
}

// generatedFilename 生成图片的落盘文件名
func generatedFilename(label string) string {
	ts := mediatools.Timestamp()
	safe := truncateRunes(mediatools.SafeFilename(label), 30)
	if safe == "" {
		return "generated_" + ts + ".png"
	}
	return "generated_" + safe + "_" + ts + ".png"
}

// truncateRunes 按字符数截断
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
