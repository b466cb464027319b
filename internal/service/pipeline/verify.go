package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/pkg/workdir"
)

// VerifyOptions 提示词 JSON 体检参数
type VerifyOptions struct {
	Limit   int  // 最多检查的 JSON 数，0 全量
	Orphans bool // 额外比对 img/uploaded 与 JSON 的双向缺失
}

// VerifyResult 体检结果
type VerifyResult struct {
	Checked        int
	Passed         int
	Failed         int      // 移入 failed_json 的文件数
	MissingImages  []string // pic_name 在 img/uploaded 缺失的 JSON
	OrphanedImages []string // 没有任何 JSON 引用的 img/uploaded 文件
}

// Verify 体检 out/prompt_json 下的提示词 JSON：
// 解析失败、缺 image_url、图床下载失败的文件移入 failed_json 并留错误说明
func (s *Service) Verify(ctx context.Context, opts VerifyOptions) (*VerifyResult, error) {
	files, err := s.wd.ListPromptFiles()
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}

	result := &VerifyResult{Checked: len(files)}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		base := filepath.Base(path)
		log.Info().Int("index", i+1).Int("total", len(files)).Str("json", base).Msg("检查提示词 JSON")

		pf, err := workdir.ReadPromptFile(path)
		if err != nil {
			s.quarantine(path, "Invalid JSON format", result)
			continue
		}
		if pf.ImageURL == "" {
			s.quarantine(path, "Missing image_url field", result)
			continue
		}

		destName := pf.PicName
		if destName == "" {
			destName = fmt.Sprintf("image_%d.png", time.Now().Unix())
		}
		tmpPath := filepath.Join(s.wd.Tmp(), filepath.Base(destName))
		size, err := s.dl.ToFile(ctx, pf.ImageURL, tmpPath)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.quarantine(path, fmt.Sprintf("Download failed: %v", err), result)
			continue
		}
		if err := os.Remove(tmpPath); err != nil {
			log.Warn().Str("path", tmpPath).Err(err).Msg("清理临时文件失败")
		}

		result.Passed++
		log.Info().Str("json", base).Int64("size", size).Msg("图床链接可用")
	}

	if opts.Orphans {
		if err := s.checkOrphans(result); err != nil {
			return result, err
		}
	}

	log.Info().
		Int("checked", result.Checked).
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Msg("提示词 JSON 体检完成")
	return result, nil
}

// quarantine 把有问题的 JSON 移入 failed_json 并计数
func (s *Service) quarantine(jsonPath, reason string, result *VerifyResult) {
	log.Error().Str("json", filepath.Base(jsonPath)).Str("reason", reason).Msg("提示词 JSON 不可用")
	if _, err := s.wd.MoveToFailed(jsonPath, reason); err != nil {
		log.Warn().Str("json", filepath.Base(jsonPath)).Err(err).Msg("移入失败目录失败")
		return
	}
	result.Failed++
}

// checkOrphans 双向比对 out/prompt_json 与 img/uploaded
func (s *Service) checkOrphans(result *VerifyResult) error {
	files, err := s.wd.ListPromptFiles()
	if err != nil {
		return err
	}

	referenced := make(map[string]struct{}, len(files))
	for _, path := range files {
		pf, err := workdir.ReadPromptFile(path)
		if err != nil || pf.PicName == "" {
			continue
		}
		referenced[pf.PicName] = struct{}{}
		if _, err := os.Stat(filepath.Join(s.wd.Uploaded(), pf.PicName)); err != nil {
			result.MissingImages = append(result.MissingImages, filepath.Base(path))
		}
	}

	uploaded, err := s.wd.ListImages(s.wd.Uploaded())
	if err != nil {
		return err
	}
	for _, path := range uploaded {
		name := filepath.Base(path)
		if _, ok := referenced[name]; !ok {
			result.OrphanedImages = append(result.OrphanedImages, name)
		}
	}

	log.Info().
		Int("missing_images", len(result.MissingImages)).
		Int("orphaned_images", len(result.OrphanedImages)).
		Msg("孤儿比对完成")
	return nil
}
