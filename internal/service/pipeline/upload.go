package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/medialog"
	mediarepo "reel/internal/repository/media"
)

// UploadOptions 批量上传参数
type UploadOptions struct {
	Count     int    // 本批最多处理的图片数，0 用配置默认值
	SourceDir string // 源目录，空则用 img/ready
	Move      bool   // 成功后把源图移入 img/generated
	Resume    bool   // 跳过批量日志里已成功的文件
	DryRun    bool   // 只列出将要上传的文件，不做任何写入
}

// UploadResult 批量上传结果
type UploadResult struct {
	Found     int      // 发现的候选文件数（截断后）
	Skipped   int      // 断点续传跳过数
	Attempted int      // 实际尝试数
	Succeeded int      // 成功数
	Failed    int      // 失败数
	Planned   []string // dry-run 时将要上传的文件名
}

// Upload 批量上传 img/ready 下的图片到图床
// 逐张：建档 → uploading → 上传 → success/failed，结果追加进批量 CSV
func (s *Service) Upload(ctx context.Context, opts UploadOptions) (*UploadResult, error) {
	if !opts.DryRun {
		if err := s.requireUploader(); err != nil {
			return nil, err
		}
	}

	count := opts.Count
	if count <= 0 {
		count = s.cfg.Pipeline.BatchCount
	}
	if count <= 0 {
		count = 10
	}
	if max := s.cfg.Pipeline.BatchMax; max > 0 && count > max {
		log.Warn().Int("count", count).Int("max", max).Msg("上传批量超过上限，按上限截断")
		count = max
	}

	sourceDir := opts.SourceDir
	if sourceDir == "" {
		sourceDir = s.wd.Ready()
	}

	files, err := s.wd.ListImagesByModTime(sourceDir)
	if err != nil {
		return nil, err
	}
	if len(files) > count {
		files = files[:count]
	}

	result := &UploadResult{Found: len(files)}
	if len(files) == 0 {
		log.Info().Str("dir", sourceDir).Msg("没有待上传的图片")
		return result, nil
	}

	if opts.Resume {
		done, err := s.batchLog.UploadedFilenames()
		if err != nil {
			return nil, err
		}
		var remaining []string
		for _, f := range files {
			if _, ok := done[filepath.Base(f)]; ok {
				result.Skipped++
				continue
			}
			remaining = append(remaining, f)
		}
		files = remaining
		if result.Skipped > 0 {
			log.Info().Int("skipped", result.Skipped).Msg("跳过已上传的图片")
		}
	}

	if opts.DryRun {
		for _, f := range files {
			result.Planned = append(result.Planned, filepath.Base(f))
		}
		return result, nil
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := filepath.Base(path)
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}

		result.Attempted++
		log.Info().Int("index", i+1).Int("total", len(files)).Str("file", name).Msg("开始上传")

		img, err := s.ensureImageRecord(ctx, name, path, size)
		if err != nil {
			return result, err
		}

		start := time.Now()
		uploadRes, uploadErr := s.uploader.Upload(ctx, path)

		entry := &medialog.BatchEntry{
			Timestamp:     time.Now(),
			LocalFilename: name,
			FileSizeBytes: size,
			Attempt:       result.Attempted,
		}

		if uploadErr != nil {
			result.Failed++
			entry.ErrorMessage = uploadErr.Error()
			if err := s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed, uploadErr.Error()); err != nil {
				log.Warn().Int64("image_id", img.ID).Err(err).Msg("更新失败状态失败")
			}
			log.Error().Str("file", name).Err(uploadErr).Msg("图片上传失败")
		} else {
			result.Succeeded++
			entry.Success = true
			entry.ImageURL = uploadRes.URL
			entry.ImageID = uploadRes.ImageID
			entry.UploadSeconds = time.Since(start).Seconds()

			img.UploadURL = uploadRes.URL
			img.Status = media.UploadStatusSuccess
			img.ErrorMessage = ""
			if err := s.images.UpdateUpload(ctx, img); err != nil {
				log.Warn().Int64("image_id", img.ID).Err(err).Msg("更新上传结果失败")
			}
			log.Info().Str("file", name).Str("url", uploadRes.URL).Msg("图片上传成功")

			if opts.Move {
				if _, err := s.wd.MoveToGenerated(path); err != nil {
					log.Warn().Str("file", name).Err(err).Msg("移动已上传图片失败")
				}
			}
		}

		if err := s.batchLog.Append(entry); err != nil {
			log.Warn().Err(err).Msg("写入批量上传日志失败")
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
		Int("skipped", result.Skipped).
		Msg("批量上传完成")
	return result, nil
}

// ensureImageRecord 按原始文件名找图片记录，不存在则建档，并置为 uploading
func (s *Service) ensureImageRecord(ctx context.Context, name, path string, size int64) (*media.Image, error) {
	img, err := s.images.FindByOriginalFilename(ctx, name)
	if errors.Is(err, mediarepo.ErrNotFound) {
		img = &media.Image{
			Timestamp:        time.Now().Format(time.RFC3339),
			OriginalFilename: name,
			OriginalPath:     path,
			FileSizeBytes:    size,
			Status:           media.UploadStatusUploading,
		}
		if err := s.images.Create(ctx, img); err != nil {
			return nil, err
		}
		return img, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.images.UpdateStatus(ctx, img.ID, media.UploadStatusUploading, ""); err != nil {
		return nil, err
	}
	img.Status = media.UploadStatusUploading
	return img, nil
}
