package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/medialog"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/workdir"
)

// fallbackName 描述名生成失败时的兜底命名
const fallbackName = "Unknown_Image"

// ParseOptions 解析流程参数
type ParseOptions struct {
	Limit     int  // 最多处理的图片数，0 不限
	Generated bool // 处理文生图产物：沿用 origin 关联并把源图移入 img/processed
}

// ParseResult 解析流程结果
type ParseResult struct {
	Found     int
	Succeeded int
	Failed    int
}

// Parse 把 img/ready 下的图片逐张转成提示词 JSON：
// 上传图床 → 描述名 → 图像/视频提示词 → 落盘 JSON → 回传副本校验
func (s *Service) Parse(ctx context.Context, opts ParseOptions) (*ParseResult, error) {
	if err := s.requireUploader(); err != nil {
		return nil, err
	}
	if err := s.requireLLM(); err != nil {
		return nil, err
	}

	files, err := s.wd.ListImages(s.wd.Ready())
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}

	result := &ParseResult{Found: len(files)}
	if len(files) == 0 {
		log.Info().Str("dir", s.wd.Ready()).Msg("没有待解析的图片")
		return result, nil
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		log.Info().Int("index", i+1).Int("total", len(files)).Str("file", filepath.Base(path)).Msg("开始解析")
		if err := s.parseOne(ctx, path, opts.Generated); err != nil {
			result.Failed++
			log.Error().Str("file", filepath.Base(path)).Err(err).Msg("图片解析失败")
		} else {
			result.Succeeded++
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
		Msg("图片解析完成")
	return result, nil
}

// parseOne 单张图片的完整解析，所有退出路径都会追加上传 CSV 日志
func (s *Service) parseOne(ctx context.Context, path string, generated bool) (retErr error) {
	start := time.Now()
	name := filepath.Base(path)

	entry := &medialog.UploadEntry{OriginalFilename: name}
	if info, err := os.Stat(path); err == nil {
		entry.FileSizeBytes = info.Size()
	}
	defer func() {
		entry.Timestamp = time.Now()
		entry.ProcessingSeconds = time.Since(start).Seconds()
		entry.Success = retErr == nil
		if retErr != nil {
			entry.ErrorMessage = retErr.Error()
		}
		if err := s.uploadLog.Append(entry); err != nil {
			log.Warn().Err(err).Msg("写入上传日志失败")
		}
	}()

	// 1. 建档并置为 uploading
	img, err := s.ensureImageRecord(ctx, name, path, entry.FileSizeBytes)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		if uerr := s.images.UpdateStatus(ctx, img.ID, media.UploadStatusFailed, err.Error()); uerr != nil {
			log.Warn().Int64("image_id", img.ID).Err(uerr).Msg("更新失败状态失败")
		}
		return err
	}

	// 2. 上传图床
	uploadRes, err := s.uploader.Upload(ctx, path)
	if err != nil {
		return fail(fmt.Errorf("failed to upload image: %w", err))
	}
	entry.UploadURL = uploadRes.URL
	log.Info().Str("url", uploadRes.URL).Msg("图片上传成功")

	// 3. 描述名（失败用兜底命名，不中断）
	descriptive := fallbackName
	if brief, err := s.llm.GenerateWithImage(ctx, mediatools.BriefDescriptionInstruction, uploadRes.URL); err != nil {
		log.Warn().Err(err).Msg("描述名生成失败，使用兜底命名")
	} else if safe := mediatools.SafeFilename(strings.TrimSpace(brief)); safe != "" {
		descriptive = safe
	}

	// 4. 图像提示词 + 视频提示词
	imagePrompt, err := s.llm.GenerateWithImage(ctx, mediatools.ImagePromptInstruction, uploadRes.URL)
	if err != nil {
		return fail(fmt.Errorf("failed to generate image prompt: %w", err))
	}
	videoPrompt, err := s.llm.GenerateWithImage(ctx, mediatools.VideoPromptInstruction, uploadRes.URL)
	if err != nil {
		return fail(fmt.Errorf("failed to generate video prompt: %w", err))
	}

	// 5. 派生文件名并落盘提示词 JSON
	names := mediatools.BuildNames(descriptive, filepath.Ext(path))
	promptFile := &media.PromptFile{
		PicName:     names.Image,
		VideoName:   names.Video,
		VideoPrompt: strings.TrimSpace(videoPrompt),
		ImagePrompt: strings.TrimSpace(imagePrompt),
		ImageURL:    uploadRes.URL,
	}
	jsonPath := filepath.Join(s.wd.PromptJSON(), names.JSON)
	if err := workdir.WritePromptFile(jsonPath, promptFile); err != nil {
		return fail(err)
	}
	entry.JSONFilename = names.JSON
	log.Info().Str("json", names.JSON).Msg("提示词 JSON 已生成")

	// 6. 回传图床副本做校验
	uploadedPath := filepath.Join(s.wd.Uploaded(), names.Image)
	downloadedSize, err := s.dl.ToFile(ctx, uploadRes.URL, uploadedPath)
	if err != nil {
		return fail(fmt.Errorf("failed to download hosted copy: %w", err))
	}
	entry.DownloadedSize = downloadedSize
	entry.DownloadedFilename = names.Image

	// 7. 回写提示词与图片终态
	if err := s.prompts.Upsert(ctx, &media.Prompt{
		ImageID:     img.ID,
		ImagePrompt: promptFile.ImagePrompt,
		VideoPrompt: promptFile.VideoPrompt,
	}); err != nil {
		log.Warn().Int64("image_id", img.ID).Err(err).Msg("提示词入库失败")
	}
	if err := s.images.UpdateDescriptiveName(ctx, img.ID, descriptive); err != nil {
		log.Warn().Int64("image_id", img.ID).Err(err).Msg("描述名入库失败")
	}

	img.UploadURL = uploadRes.URL
	img.UploadedFilename = names.Image
	img.UploadedPath = uploadedPath
	img.DownloadedSizeBytes = downloadedSize
	img.ProcessingTimeSeconds = time.Since(start).Seconds()
	img.Status = media.UploadStatusSuccess
	img.ErrorMessage = ""
	if err := s.images.UpdateUpload(ctx, img); err != nil {
		log.Warn().Int64("image_id", img.ID).Err(err).Msg("更新上传结果失败")
	}

	// 8. 文生图产物：源图移入 img/processed 等待复核
	if generated {
		processedPath, err := s.wd.MoveToProcessed(path)
		if err != nil {
			log.Warn().Str("file", name).Err(err).Msg("移动到已处理目录失败")
		} else if err := s.images.UpdateProcessedPath(ctx, img.ID, processedPath); err != nil {
			log.Warn().Int64("image_id", img.ID).Err(err).Msg("更新处理路径失败")
		}
	}

	return nil
}
