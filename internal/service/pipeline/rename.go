package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"reel/internal/pkg/id"
)

// RenameOptions 图片改名参数
type RenameOptions struct {
	Dir    string // 默认 img/ready
	Length int    // 短 ID 长度，默认 6
	DryRun bool   // 只展示映射，不改名
}

// RenameResult 图片改名结果
type RenameResult struct {
	Found   int
	Renamed int
	Failed  int
	Mapping map[string]string // 旧名 → 新名
}

// Rename 把目录下的图片统一改成短随机 ID 文件名，保留扩展名
func (s *Service) Rename(ctx context.Context, opts RenameOptions) (*RenameResult, error) {
	dir := opts.Dir
	if dir == "" {
		dir = s.wd.Ready()
	}
	length := opts.Length
	if length <= 0 {
		length = 6
	}

	files, err := s.wd.ListImages(dir)
	if err != nil {
		return nil, err
	}

	result := &RenameResult{Found: len(files), Mapping: map[string]string{}}
	if len(files) == 0 {
		log.Info().Str("dir", dir).Msg("没有待改名的图片")
		return result, nil
	}

	// 目录里已有的词干也算占用，避免生成撞名
	used := make(map[string]struct{}, len(files))
	for _, path := range files {
		base := filepath.Base(path)
		used[strings.TrimSuffix(base, filepath.Ext(base))] = struct{}{}
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		oldName := filepath.Base(path)
		var newID string
		for {
			newID = id.Short(length)
			if _, taken := used[newID]; !taken {
				used[newID] = struct{}{}
				break
			}
		}
		newName := newID + strings.ToLower(filepath.Ext(oldName))
		result.Mapping[oldName] = newName

		if opts.DryRun {
			log.Info().Str("from", oldName).Str("to", newName).Msg("将要改名（干跑）")
			continue
		}
		if err := os.Rename(path, filepath.Join(dir, newName)); err != nil {
			result.Failed++
			log.Error().Str("file", oldName).Err(err).Msg("改名失败")
			continue
		}
		result.Renamed++
		log.Info().Str("from", oldName).Str("to", newName).Msg("已改名")
	}

	log.Info().
		Int("renamed", result.Renamed).
		Int("failed", result.Failed).
		Int("total", result.Found).
		Msg("图片改名完成")
	return result, nil
}
