package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/medialog"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/workdir"
	mediarepo "reel/internal/repository/media"
)

// ReconcileOptions 对账参数
type ReconcileOptions struct {
	DryRun bool // 只统计差异，不写数据库
	Stale  bool // 把中断残留的 uploading/generating 记录置为失败
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	JSONProcessed  int // 处理的 used/ 提示词 JSON 数
	ImagesMatched  int // 匹配到已有图片记录数
	ImagesCreated  int // 依据上传日志补建的图片记录数
	LegacyAttached int // 挂到旧数据占位记录的 JSON 数
	VideosUpserted int // 创建或更新的视频记录数
	CSVImported    int // 从上传 CSV 补录的图片记录数
	StaleImages    int64
	StaleVideos    int64
	Stats          *mediarepo.Statistics
}

// Reconcile 把 used/ 提示词 JSON、视频 JSONL 与上传 CSV 对账回数据库（幂等）
func (s *Service) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	uploadEntries, err := s.uploadLog.Read()
	if err != nil {
		return nil, err
	}
	entriesByJSONStem := make(map[string]*medialog.UploadEntry, len(uploadEntries))
	for _, e := range uploadEntries {
		if e.JSONFilename != "" {
			stem := strings.TrimSuffix(e.JSONFilename, filepath.Ext(e.JSONFilename))
			entriesByJSONStem[stem] = e
		}
	}

	videoEntries, err := s.videoLog.Read()
	if err != nil {
		return nil, err
	}
	// 同名视频以最后一条日志为准
	videoByStem := make(map[string]*medialog.VideoEntry, len(videoEntries))
	for _, e := range videoEntries {
		if e.VideoName == "" || e.VideoName == "N/A" {
			continue
		}
		videoByStem[strings.TrimSuffix(e.VideoName, ".mp4")] = e
	}
	consumed := make(map[string]bool, len(videoByStem))

	// 1. used/ 下的提示词 JSON：定位图片、补提示词、补视频记录
	usedFiles, err := s.wd.ListUsedPromptFiles()
	if err != nil {
		return nil, err
	}
	for _, jsonPath := range usedFiles {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.reconcileJSON(ctx, jsonPath, entriesByJSONStem, videoByStem, consumed, opts.DryRun, result); err != nil {
			return result, err
		}
	}

	// 2. 没被 used/ JSON 覆盖到的视频日志条目
	for stem, entry := range videoByStem {
		if consumed[stem] {
			continue
		}
		if err := s.reconcileVideoLog(ctx, stem, entry, opts.DryRun, result); err != nil {
			return result, err
		}
	}

	// 3. 上传 CSV 里数据库还没有的图片
	for _, entry := range uploadEntries {
		if entry.OriginalFilename == "" {
			continue
		}
		_, err := s.images.FindByOriginalFilename(ctx, entry.OriginalFilename)
		if err == nil {
			continue
		}
		if !errors.Is(err, mediarepo.ErrNotFound) {
			return result, err
		}
		result.CSVImported++
		if opts.DryRun {
			continue
		}
		if err := s.images.Create(ctx, imageFromUploadEntry(entry)); err != nil {
			return result, err
		}
	}

	// 4. 中断残留的状态
	if opts.Stale && !opts.DryRun {
		if result.StaleImages, err = s.images.MarkStale(ctx); err != nil {
			return result, err
		}
		if result.StaleVideos, err = s.videos.MarkStale(ctx); err != nil {
			return result, err
		}
	}

	stats, err := s.stats.Collect(ctx)
	if err != nil {
		return result, err
	}
	result.Stats = stats

	log.Info().
		Bool("dry_run", opts.DryRun).
		Int("json_processed", result.JSONProcessed).
		Int("images_matched", result.ImagesMatched).
		Int("images_created", result.ImagesCreated).
		Int("legacy_attached", result.LegacyAttached).
		Int("videos_upserted", result.VideosUpserted).
		Int("csv_imported", result.CSVImported).
		Int64("stale_images", result.StaleImages).
		Int64("stale_videos", result.StaleVideos).
		Msg("对账完成")
	return result, nil
}

// reconcileJSON 单个 used/ JSON 的对账
func (s *Service) reconcileJSON(ctx context.Context, jsonPath string, entriesByJSONStem map[string]*medialog.UploadEntry,
	videoByStem map[string]*medialog.VideoEntry, consumed map[string]bool, dryRun bool, result *ReconcileResult) error {

	base := filepath.Base(jsonPath)
	pf, err := workdir.ReadPromptFile(jsonPath)
	if err != nil {
		log.Warn().Str("json", base).Err(err).Msg("提示词 JSON 解析失败，跳过对账")
		return nil
	}
	result.JSONProcessed++

	jsonStem := strings.TrimSuffix(base, filepath.Ext(base))
	descriptive := mediatools.DescriptiveNameFromFilename(base)

	img, err := s.findReconcileImage(ctx, descriptive, pf.PicName)
	switch {
	case err == nil:
		result.ImagesMatched++
		if !dryRun {
			img.UploadURL = pf.ImageURL
			img.UploadedFilename = pf.PicName
			img.Status = media.UploadStatusSuccess
			img.ErrorMessage = ""
			if uerr := s.images.UpdateUpload(ctx, img); uerr != nil {
				return uerr
			}
			if descriptive != "" && img.DescriptiveName != descriptive {
				if uerr := s.images.UpdateDescriptiveName(ctx, img.ID, descriptive); uerr != nil {
					return uerr
				}
			}
		}
	case errors.Is(err, mediarepo.ErrNotFound):
		if entry, ok := entriesByJSONStem[jsonStem]; ok {
			// 没有档案但上传日志认识它，按日志补建
			result.ImagesCreated++
			img = imageFromUploadEntry(entry)
			if img.UploadURL == "" {
				img.UploadURL = pf.ImageURL
			}
			img.UploadedFilename = pf.PicName
			img.DescriptiveName = descriptive
			img.Status = media.UploadStatusSuccess
			img.ErrorMessage = ""
			if !dryRun {
				if cerr := s.images.Create(ctx, img); cerr != nil {
					return cerr
				}
			}
		} else {
			result.LegacyAttached++
			if dryRun {
				return nil
			}
			legacyID, lerr := s.images.EnsureLegacyPlaceholder(ctx)
			if lerr != nil {
				return lerr
			}
			if img, err = s.images.FindByID(ctx, legacyID); err != nil {
				return err
			}
		}
	default:
		return err
	}

	if dryRun {
		// 干跑时视频差异仍要统计
		if pf.VideoName != "" {
			videoName := normalizeVideoName(pf.VideoName)
			if _, ferr := s.videos.FindByFilename(ctx, videoName); errors.Is(ferr, mediarepo.ErrNotFound) {
				result.VideosUpserted++
			}
			consumed[strings.TrimSuffix(videoName, ".mp4")] = true
		}
		return nil
	}

	if err := s.prompts.Upsert(ctx, &media.Prompt{
		ImageID:              img.ID,
		ImagePrompt:          pf.ImagePrompt,
		VideoPrompt:          pf.VideoPrompt,
		RefinedVideoPrompt:   pf.RefinedVideoPrompt,
		CreativeVideoPrompt1: pf.CreativeVideoPrompt1,
		CreativeVideoPrompt2: pf.CreativeVideoPrompt2,
		CreativeVideoPrompt3: pf.CreativeVideoPrompt3,
	}); err != nil {
		return err
	}

	if pf.VideoName == "" {
		return nil
	}
	videoName := normalizeVideoName(pf.VideoName)
	stem := strings.TrimSuffix(videoName, ".mp4")
	consumed[stem] = true
	return s.upsertVideoRecord(ctx, img.ID, videoName, pf.VideoPrompt, videoByStem[stem], result)
}

// reconcileVideoLog 处理 used/ JSON 已不存在的视频日志条目
func (s *Service) reconcileVideoLog(ctx context.Context, stem string, entry *medialog.VideoEntry, dryRun bool, result *ReconcileResult) error {
	videoName := stem + ".mp4"
	_, err := s.videos.FindByFilename(ctx, videoName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, mediarepo.ErrNotFound) {
		return err
	}
	if dryRun {
		result.VideosUpserted++
		return nil
	}

	// 尽量通过 JSON 路径词干找回图片，找不到挂占位记录
	var imageID int64
	descriptive := ""
	if entry.JSONFilePath != "" && entry.JSONFilePath != "N/A" {
		descriptive = mediatools.DescriptiveNameFromFilename(filepath.Base(entry.JSONFilePath))
	}
	if descriptive != "" {
		if img, err := s.images.FindByDescriptiveName(ctx, descriptive); err == nil {
			imageID = img.ID
		} else if !errors.Is(err, mediarepo.ErrNotFound) {
			return err
		}
	}
	if imageID == 0 {
		legacyID, err := s.images.EnsureLegacyPlaceholder(ctx)
		if err != nil {
			return err
		}
		imageID = legacyID
	}
	return s.upsertVideoRecord(ctx, imageID, videoName, "", entry, result)
}

// upsertVideoRecord 按日志条目创建或更新视频记录
func (s *Service) upsertVideoRecord(ctx context.Context, imageID int64, videoName, promptUsed string,
	entry *medialog.VideoEntry, result *ReconcileResult) error {

	status := media.VideoStatusPending
	service := media.Service("")
	var seconds *float64
	var metadata map[string]any
	if entry != nil {
		status = media.NormalizeVideoStatus(entry.Status)
		// 日志本身不带服务信息，按默认链路记 duomi
		service = media.ServiceDuomi
		if entry.ProcessingSecs > 0 {
			v := entry.ProcessingSecs
			seconds = &v
		}
		if entry.JSONFilePath != "" && entry.JSONFilePath != "N/A" {
			metadata = map[string]any{"json_file_path": entry.JSONFilePath}
		}
	}

	videoPath := filepath.Join(s.wd.Out(), videoName)
	var size *int64
	if info, err := os.Stat(videoPath); err == nil {
		v := info.Size()
		size = &v
	}

	existing, err := s.videos.FindByFilename(ctx, videoName)
	if err == nil {
		upd := &media.VideoUpdate{
			Status:                status,
			VideoPath:             &videoPath,
			GenerationTimeSeconds: seconds,
			FileSizeBytes:         size,
		}
		if uerr := s.videos.Update(ctx, existing.ID, upd); uerr != nil {
			return uerr
		}
		if metadata != nil {
			if merr := s.videos.SetMetadata(ctx, existing.ID, metadata); merr != nil {
				return merr
			}
		}
		result.VideosUpserted++
		return nil
	}
	if !errors.Is(err, mediarepo.ErrNotFound) {
		return err
	}

	var promptID *int64
	if p, perr := s.prompts.FindByImageID(ctx, imageID); perr == nil {
		promptID = &p.ID
	}
	video := &media.Video{
		ImageID:           imageID,
		PromptID:          promptID,
		VideoFilename:     videoName,
		VideoPath:         videoPath,
		PromptUsed:        promptUsed,
		PromptType:        media.PromptTypeBase,
		GenerationService: service,
		Status:            status,
		Metadata:          metadata,
	}
	if seconds != nil {
		video.GenerationTimeSeconds = *seconds
	}
	if size != nil {
		video.FileSizeBytes = *size
	}
	if err := s.videos.Create(ctx, video); err != nil {
		return err
	}
	result.VideosUpserted++
	return nil
}

// findReconcileImage 依次按描述名、原始文件名、上传文件名定位图片
func (s *Service) findReconcileImage(ctx context.Context, descriptive, picName string) (*media.Image, error) {
	if descriptive != "" {
		img, err := s.images.FindByDescriptiveName(ctx, descriptive)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, mediarepo.ErrNotFound) {
			return nil, err
		}
	}
	if picName != "" {
		img, err := s.images.FindByOriginalFilename(ctx, picName)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, mediarepo.ErrNotFound) {
			return nil, err
		}
		img, err = s.images.FindByUploadedFilename(ctx, picName)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, mediarepo.ErrNotFound) {
			return nil, err
		}
	}
	return nil, mediarepo.ErrNotFound
}

// imageFromUploadEntry 上传 CSV 行转图片记录
func imageFromUploadEntry(e *medialog.UploadEntry) *media.Image {
	img := &media.Image{
		OriginalFilename:      e.OriginalFilename,
		FileSizeBytes:         e.FileSizeBytes,
		UploadURL:             e.UploadURL,
		UploadedFilename:      e.DownloadedFilename,
		DownloadedSizeBytes:   e.DownloadedSize,
		ProcessingTimeSeconds: e.ProcessingSeconds,
		ErrorMessage:          e.ErrorMessage,
	}
	if !e.Timestamp.IsZero() {
		img.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	if e.Success {
		img.Status = media.UploadStatusSuccess
	} else {
		img.Status = media.UploadStatusFailed
	}
	return img
}
