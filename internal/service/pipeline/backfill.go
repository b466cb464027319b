package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/workdir"
	mediarepo "reel/internal/repository/media"
)

// BackfillOptions 历史 JSON 补全参数
type BackfillOptions struct {
	DryRun      bool // 只列出缺失字段，不调用模型也不改文件
	Backup      bool // 改写前先留 .backup_<ts>.json 副本
	IncludeUsed bool // 把 used/ 里已消费的 JSON 一并补全
}

// BackfillResult 补全结果；试运行时 Updated 表示将要更新的文件数
type BackfillResult struct {
	Found   int
	Updated int
	Skipped int
	Failed  int
}

// Backfill 给历史提示词 JSON 补齐润色与创意字段
//
// 早期流程只产出 video_prompt/image_prompt，润色和三条创意提示词是后来才有的。
// 这里把缺字段的 JSON 逐个补全：润色基于原始视频提示词，创意提示词结合图片 URL
// 生成，单条生成失败退回兜底文案。补全后的内容在图片已入库时同步镜像到 prompts 表。
func (s *Service) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillResult, error) {
	if !opts.DryRun {
		if err := s.requireLLM(); err != nil {
			return nil, err
		}
	}

	files, err := s.collectBackfillFiles(opts.IncludeUsed)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{Found: len(files)}
	if len(files) == 0 {
		log.Info().Msg("没有待补全的提示词 JSON")
		return result, nil
	}
	log.Info().Int("total", len(files)).Bool("dry_run", opts.DryRun).Msg("开始补全提示词")

	backupTS := time.Now().Format("20060102_150405")
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := filepath.Base(path)
		pf, err := workdir.ReadPromptFile(path)
		if err != nil {
			result.Failed++
			log.Warn().Str("file", name).Err(err).Msg("提示词 JSON 解析失败，跳过")
			continue
		}
		if !pf.NeedsBackfill() {
			result.Skipped++
			log.Debug().Str("file", name).Msg("提示词已完整，跳过")
			continue
		}
		if pf.VideoPrompt == "" || pf.ImageURL == "" {
			result.Failed++
			log.Error().Str("file", name).Msg("缺少 video_prompt 或 image_url，无法补全")
			continue
		}

		missing := missingPromptFields(pf)
		if opts.DryRun {
			result.Updated++
			log.Info().Str("file", name).Strs("missing", missing).Msg("试运行：该文件待补全")
			continue
		}

		log.Info().
			Int("index", i+1).Int("total", len(files)).
			Str("file", name).Strs("missing", missing).
			Msg("补全该文件缺失字段")

		// 备份失败就不动原文件，宁可留到下一轮
		if opts.Backup {
			backupPath, err := workdir.BackupPromptFile(path, backupTS)
			if err != nil {
				result.Failed++
				log.Error().Str("file", name).Err(err).Msg("备份失败，跳过该文件")
				continue
			}
			log.Debug().Str("backup", backupPath).Msg("已创建备份")
		}

		s.fillPromptFile(ctx, pf)
		if err := workdir.WritePromptFile(path, pf); err != nil {
			result.Failed++
			log.Error().Str("file", name).Err(err).Msg("回写提示词 JSON 失败")
			continue
		}
		result.Updated++
		log.Info().Str("file", name).Msg("提示词补全完成")

		if err := s.mirrorPrompts(ctx, pf); err != nil {
			log.Warn().Str("file", name).Err(err).Msg("提示词入库失败")
		}

		if i < len(files)-1 {
			if err := s.pace(ctx); err != nil {
				return result, err
			}
		}
	}

	log.Info().
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("提示词补全批处理完成")
	return result, nil
}

// collectBackfillFiles 收集补全候选，排除错误占位文件和历史备份
func (s *Service) collectBackfillFiles(includeUsed bool) ([]string, error) {
	files, err := s.wd.ListPromptFiles()
	if err != nil {
		return nil, err
	}
	if includeUsed {
		used, err := s.wd.ListUsedPromptFiles()
		if err != nil {
			return nil, err
		}
		files = append(files, used...)
	}

	out := files[:0]
	for _, path := range files {
		name := filepath.Base(path)
		if strings.HasPrefix(name, "error_message") || strings.Contains(name, ".backup_") {
			continue
		}
		out = append(out, path)
	}
	return out, nil
}

// fillPromptFile 补齐缺失的润色与创意字段，失败时就地降级
func (s *Service) fillPromptFile(ctx context.Context, pf *media.PromptFile) {
	base := pf.VideoPrompt

	if pf.RefinedVideoPrompt == "" {
		refined, err := s.llm.Generate(ctx, mediatools.RefineInstruction(base))
		if err != nil {
			log.Warn().Err(err).Msg("润色提示词生成失败，沿用原始提示词")
			refined = base
		}
		pf.RefinedVideoPrompt = strings.TrimSpace(refined)
	}

	for n := 1; n <= 3; n++ {
		if pf.Creative(n) != "" {
			continue
		}
		kind := mediatools.CreativeKinds[n-1]
		text, err := s.llm.GenerateWithImage(ctx, mediatools.CreativeInstruction(kind, base), pf.ImageURL)
		if err != nil {
			log.Warn().Int("variant", n).Str("kind", string(kind)).Err(err).Msg("创意提示词生成失败，使用兜底文案")
			text = mediatools.CreativeFallback(kind, base)
		}
		pf.SetCreative(n, strings.TrimSpace(text))
	}
}

// mirrorPrompts 把补全后的提示词镜像到数据库，图片不在库里就跳过
func (s *Service) mirrorPrompts(ctx context.Context, pf *media.PromptFile) error {
	img, err := s.images.FindByUploadedFilename(ctx, pf.PicName)
	if errors.Is(err, mediarepo.ErrNotFound) {
		img, err = s.images.FindByOriginalFilename(ctx, pf.PicName)
	}
	if errors.Is(err, mediarepo.ErrNotFound) {
		log.Debug().Str("pic_name", pf.PicName).Msg("数据库未找到对应图片，跳过入库")
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.prompts.Upsert(ctx, &media.Prompt{
		ImageID:     img.ID,
		ImagePrompt: pf.ImagePrompt,
		VideoPrompt: pf.VideoPrompt,
	}); err != nil {
		return err
	}
	if err := s.prompts.UpdateRefined(ctx, img.ID, pf.RefinedVideoPrompt); err != nil {
		return err
	}
	for n := 1; n <= 3; n++ {
		if text := pf.Creative(n); text != "" {
			if err := s.prompts.UpdateCreative(ctx, img.ID, n, text); err != nil {
				return err
			}
		}
	}
	return nil
}

// missingPromptFields 列出尚未填充的派生字段名（JSON 字段名）
func missingPromptFields(pf *media.PromptFile) []string {
	var missing []string
	if pf.RefinedVideoPrompt == "" {
		missing = append(missing, "refined_video_prompt")
	}
	for n := 1; n <= 3; n++ {
		if pf.Creative(n) == "" {
			missing = append(missing, fmt.Sprintf("creative_video_prompt_%d", n))
		}
	}
	return missing
}
