package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
)

// FixOptions 上传修复参数
type FixOptions struct {
	Limit  int  // 最多校验的记录数，0 全量
	DryRun bool // 只列出待修复项，不下载不写库
}

// FixResult 上传修复结果
type FixResult struct {
	Checked        int // 校验过的成功记录数
	SizeMatches    int
	SizeMismatches int // 置为 failed("size not match") 的记录数
	SizeRecorded   int // 补录缺失下载大小的记录数
	DownloadFailed int
	Reuploadable   int // 有本地副本可重传的失败记录数
	Reuploaded     int
	ReuploadFailed int
}

// Fix 修复上传数据：
// 先校验成功记录的图床副本大小，再把有本地副本的失败记录重新上传
func (s *Service) Fix(ctx context.Context, opts FixOptions) (*FixResult, error) {
	result := &FixResult{}

	images, err := s.images.ListUploaded(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}
	result.Checked = len(images)

	failed, err := s.images.ListByStatus(ctx, media.UploadStatusFailed, 0)
	if err != nil {
		return nil, err
	}
	var candidates []*media.Image
	for _, img := range failed {
		if _, ok := localCopyPath(img); ok {
			candidates = append(candidates, img)
		}
	}
	result.Reuploadable = len(candidates)

	if opts.DryRun {
		log.Info().
			Int("checked", result.Checked).
			Int("reuploadable", result.Reuploadable).
			Msg("待修复清单（干跑）")
		return result, nil
	}

	// 1. 校验图床副本大小
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log.Info().
			Int("index", i+1).
			Int("total", len(images)).
			Str("file", img.OriginalFilename).
			Msg("校验图床副本")
		if err := s.verifyUploadSize(ctx, img, result); err != nil {
			return result, err
		}
	}

	// 2. 重传有本地副本的失败记录
	if len(candidates) > 0 {
		if err := s.requireUploader(); err != nil {
			return result, err
		}
	}
	for i, img := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log.Info().
			Int("index", i+1).
			Int("total", len(candidates)).
			Str("file", img.OriginalFilename).
			Msg("重传失败图片")
		if err := s.reuploadImage(ctx, img, result); err != nil {
			return result, err
		}
	}

	log.Info().
		Int("checked", result.Checked).
		Int("size_matches", result.SizeMatches).
		Int("size_mismatches", result.SizeMismatches).
		Int("size_recorded", result.SizeRecorded).
		Int("download_failed", result.DownloadFailed).
		Int("reuploaded", result.Reuploaded).
		Int("reupload_failed", result.ReuploadFailed).
		Msg("上传修复完成")
	return result, nil
}

// verifyUploadSize 下载图床副本并与库中记录的大小比对
func (s *Service) verifyUploadSize(ctx context.Context, img *media.Image, result *FixResult) error {
	tmpPath := filepath.Join(s.wd.Tmp(), img.OriginalFilename)
	actual, err := s.dl.ToFile(ctx, img.UploadURL, tmpPath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.DownloadFailed++
		msg := fmt.Sprintf("Download failed: %v", err)
		log.Error().Str("url", img.UploadURL).Err(err).Msg("图床副本下载失败")
		return s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed, msg)
	}
	defer func() {
		if rerr := os.Remove(tmpPath); rerr != nil {
			log.Warn().Str("path", tmpPath).Err(rerr).Msg("清理临时文件失败")
		}
	}()

	switch {
	case img.DownloadedSizeBytes == 0:
		// 库里没有记录，用实测值补上
		result.SizeRecorded++
		log.Info().Int64("size", actual).Msg("补录图床副本大小")
		if err := s.images.UpdateDownloadedSize(ctx, img.ID, actual); err != nil {
			return err
		}
		return s.images.UpdateStatus(ctx, img.ID, media.UploadStatusSuccess, "")
	case actual == img.DownloadedSizeBytes:
		result.SizeMatches++
		return nil
	default:
		result.SizeMismatches++
		log.Error().
			Int64("expected", img.DownloadedSizeBytes).
			Int64("actual", actual).
			Str("file", img.OriginalFilename).
			Msg("图床副本大小不一致")
		if err := s.images.UpdateDownloadedSize(ctx, img.ID, actual); err != nil {
			return err
		}
		return s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed, "size not match")
	}
}

// reuploadImage 用本地副本重新上传并回写终态
func (s *Service) reuploadImage(ctx context.Context, img *media.Image, result *FixResult) error {
	localPath, ok := localCopyPath(img)
	if !ok {
		result.ReuploadFailed++
		return s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed,
			fmt.Sprintf("local copy not found: %s", img.ProcessedPath))
	}

	info, err := os.Stat(localPath)
	if err != nil {
		result.ReuploadFailed++
		return s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed,
			fmt.Sprintf("local copy not found: %s", localPath))
	}
	localSize := info.Size()

	uploadRes, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.ReuploadFailed++
		log.Error().Str("file", img.OriginalFilename).Err(err).Msg("重传失败")
		return s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed,
			fmt.Sprintf("Upload failed: %v", err))
	}

	img.UploadURL = uploadRes.URL
	if uploadRes.FileSizeBytes > 0 && uploadRes.FileSizeBytes != localSize {
		result.ReuploadFailed++
		img.DownloadedSizeBytes = uploadRes.FileSizeBytes
		img.Status = media.UploadStatusFailed
		img.ErrorMessage = fmt.Sprintf("Size mismatch: expected %d, got %d", localSize, uploadRes.FileSizeBytes)
		log.Error().
			Int64("expected", localSize).
			Int64("uploaded", uploadRes.FileSizeBytes).
			Msg("重传后大小不一致")
		return s.images.UpdateUpload(ctx, img)
	}

	result.Reuploaded++
	img.DownloadedSizeBytes = localSize
	img.Status = media.UploadStatusSuccess
	img.ErrorMessage = ""
	log.Info().Str("url", uploadRes.URL).Msg("重传成功")
	return s.images.UpdateUpload(ctx, img)
}

// localCopyPath 按 processed → uploaded → original 的顺序找可用本地副本
func localCopyPath(img *media.Image) (string, bool) {
	for _, p := range []string{img.ProcessedPath, img.UploadedPath, img.OriginalPath} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
