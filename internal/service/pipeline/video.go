package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/model/media"
	"reel/internal/pkg/medialog"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/storage"
	"reel/internal/pkg/workdir"
	mediarepo "reel/internal/repository/media"
)

// errAlreadyCompleted 同一图片同一提示词类型已有完成视频
var errAlreadyCompleted = errors.New("video already completed for this prompt type")

// VideoOptions 视频生成参数
type VideoOptions struct {
	Service    media.Service    // 生成服务，默认 duomi
	JSONPath   string           // 显式指定提示词 JSON
	ImagePath  string           // 显式指定配对图片（需同时给 JSONPath）
	Limit      int              // 自动发现时最多处理的配对数，0 只处理第一对
	PromptType media.PromptType // 提交的提示词类型，默认 base（提交前会精炼）
}

// VideoResult 视频生成结果
type VideoResult struct {
	Found     int
	Succeeded int
	Failed    int
	Skipped   int // 已有完成视频的配对
}

// videoPair 一次生成任务的 JSON 与图片配对
type videoPair struct {
	jsonPath  string
	imagePath string
	file      *media.PromptFile
}

// Video 把提示词 JSON 与 img/ready 中的图片配对并生成视频：
// 精炼提示词 → 调用生成服务 → 落盘 out/ → 成功后 JSON 入 used/、图片入 img/generated
func (s *Service) Video(ctx context.Context, opts VideoOptions) (*VideoResult, error) {
	service := opts.Service
	if service == "" {
		service = media.ServiceDuomi
	}
	if err := s.requireVideoService(service); err != nil {
		return nil, err
	}

	promptType := opts.PromptType
	if promptType == "" {
		promptType = media.PromptTypeBase
	}

	pairs, err := s.collectPairs(opts)
	if err != nil {
		return nil, err
	}

	result := &VideoResult{Found: len(pairs)}
	if len(pairs) == 0 {
		log.Info().Str("dir", s.wd.PromptJSON()).Msg("没有可配对的提示词 JSON")
		return result, nil
	}

	explicit := opts.JSONPath != ""
	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		log.Info().
			Int("index", i+1).
			Int("total", len(pairs)).
			Str("json", filepath.Base(pair.jsonPath)).
			Str("image", filepath.Base(pair.imagePath)).
			Str("service", service.String()).
			Msg("开始生成视频")

		err := s.generateOne(ctx, pair, service, promptType, explicit)
		switch {
		case errors.Is(err, errAlreadyCompleted):
			result.Skipped++
			log.Info().Str("json", filepath.Base(pair.jsonPath)).Msg("该提示词类型已有完成视频，跳过")
		case err != nil:
			result.Failed++
			log.Error().Str("json", filepath.Base(pair.jsonPath)).Err(err).Msg("视频生成失败")
		default:
			result.Succeeded++
		}

		if i < len(pairs)-1 {
			if err := s.pace(ctx); err != nil {
				return result, err
			}
		}
	}

	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("视频生成完成")
	return result, nil
}

// requireVideoService 按服务校验所需客户端是否配置
func (s *Service) requireVideoService(service media.Service) error {
	switch service {
	case media.ServiceDuomi:
		// duomi 走图床 URL，上传器也必须可用
		if err := s.requireDuomi(); err != nil {
			return err
		}
		return s.requireUploader()
	case media.ServiceKling:
		return s.requireKling()
	case media.ServiceVeo:
		return s.requireGemini()
	default:
		return fmt.Errorf("unsupported video service: %s", service)
	}
}

// collectPairs 汇集待处理的 JSON/图片配对
func (s *Service) collectPairs(opts VideoOptions) ([]videoPair, error) {
	if opts.ImagePath != "" && opts.JSONPath == "" {
		return nil, errors.New("--image requires --json")
	}

	if opts.JSONPath != "" {
		pf, err := workdir.ReadPromptFile(opts.JSONPath)
		if err != nil {
			return nil, err
		}
		imagePath := opts.ImagePath
		if imagePath == "" {
			found, ok := s.wd.FindReadyImage(pf.PicName)
			if !ok {
				return nil, fmt.Errorf("no ready image found for %s", pf.PicName)
			}
			imagePath = found
		} else if _, err := os.Stat(imagePath); err != nil {
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		return []videoPair{{jsonPath: opts.JSONPath, imagePath: imagePath, file: pf}}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	jsonFiles, err := s.wd.ListPromptFiles()
	if err != nil {
		return nil, err
	}

	var pairs []videoPair
	for _, jsonPath := range jsonFiles {
		if len(pairs) >= limit {
			break
		}
		pf, err := workdir.ReadPromptFile(jsonPath)
		if err != nil {
			log.Warn().Str("json", filepath.Base(jsonPath)).Err(err).Msg("提示词 JSON 解析失败，跳过配对")
			continue
		}
		imagePath, ok := s.wd.FindReadyImage(pf.PicName)
		if !ok {
			log.Debug().Str("json", filepath.Base(jsonPath)).Str("pic", pf.PicName).Msg("没有对应的待生成图片，跳过")
			continue
		}
		pairs = append(pairs, videoPair{jsonPath: jsonPath, imagePath: imagePath, file: pf})
	}
	return pairs, nil
}

// generateOne 单个配对的完整生成，结果写入视频 JSONL 日志
func (s *Service) generateOne(ctx context.Context, pair videoPair, service media.Service, promptType media.PromptType, force bool) (retErr error) {
	start := time.Now()
	pf := pair.file

	if pf.VideoPrompt == "" || pf.VideoName == "" {
		return errors.New("prompt json must contain video_prompt and video_name")
	}
	videoName := normalizeVideoName(pf.VideoName)

	defer func() {
		if errors.Is(retErr, errAlreadyCompleted) {
			return
		}
		entry := &medialog.VideoEntry{
			ImageUsed:      pair.imagePath,
			VideoName:      videoName,
			ProcessingSecs: time.Since(start).Seconds(),
			JSONFilePath:   pair.jsonPath,
			Status:         medialog.VideoStatusSuccess,
		}
		if retErr != nil {
			entry.Status = medialog.VideoStatusFailure
		}
		if err := s.videoLog.Append(entry); err != nil {
			log.Warn().Err(err).Msg("写入视频生成日志失败")
		}
	}()

	// 1. 数据库上下文：图片、提示词、视频记录
	img, promptID, err := s.ensureVideoContext(ctx, pf, pair.imagePath)
	if err != nil {
		return err
	}
	if !force {
		done, err := s.videos.HasCompleted(ctx, img.ID, promptType)
		if err != nil {
			return err
		}
		if done {
			return errAlreadyCompleted
		}
	}

	// 2. 选定提交的提示词（base/refined 会先走精炼链路）
	prompt, err := s.selectPrompt(ctx, pair, promptType)
	if err != nil {
		return err
	}

	video := &media.Video{
		ImageID:           img.ID,
		PromptID:          promptID,
		VideoFilename:     videoName,
		PromptUsed:        prompt,
		PromptType:        promptType,
		GenerationService: service,
		Status:            media.VideoStatusPending,
		Metadata:          map[string]any{"json_file_path": pair.jsonPath},
	}
	if err := s.videos.Create(ctx, video); err != nil {
		return err
	}
	if err := s.videos.Update(ctx, video.ID, &media.VideoUpdate{Status: media.VideoStatusGenerating}); err != nil {
		log.Warn().Int64("video_id", video.ID).Err(err).Msg("更新生成中状态失败")
	}

	fail := func(err error) error {
		msg := err.Error()
		upd := &media.VideoUpdate{Status: media.VideoStatusFailed, ErrorMessage: &msg}
		if uerr := s.videos.Update(ctx, video.ID, upd); uerr != nil {
			log.Warn().Int64("video_id", video.ID).Err(uerr).Msg("更新失败状态失败")
		}
		return err
	}

	// 3. 调用生成服务
	data, err := s.invokeVideoService(ctx, service, pair.imagePath, prompt)
	if err != nil {
		return fail(err)
	}

	outPath := filepath.Join(s.wd.Out(), videoName)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fail(fmt.Errorf("failed to save video: %w", err))
	}
	log.Info().Str("path", outPath).Int("size", len(data)).Msg("视频已保存")

	// 4. 终态回写与归档流转
	seconds := time.Since(start).Seconds()
	size := int64(len(data))
	if err := s.videos.Update(ctx, video.ID, &media.VideoUpdate{
		Status:                media.VideoStatusCompleted,
		VideoFilename:         &videoName,
		VideoPath:             &outPath,
		GenerationTimeSeconds: &seconds,
		FileSizeBytes:         &size,
	}); err != nil {
		log.Warn().Int64("video_id", video.ID).Err(err).Msg("更新完成状态失败")
	}

	if _, err := s.wd.MoveToUsed(pair.jsonPath); err != nil {
		log.Warn().Str("json", filepath.Base(pair.jsonPath)).Err(err).Msg("移动提示词 JSON 失败")
	}
	if _, err := s.wd.MoveToGenerated(pair.imagePath); err != nil {
		log.Warn().Str("image", filepath.Base(pair.imagePath)).Err(err).Msg("移动已用图片失败")
	}

	if s.archive != nil {
		key := storage.VideoKey(videoName)
		if _, err := s.archive.Upload(ctx, key, bytes.NewReader(data), "video/mp4"); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("视频归档失败")
		} else {
			log.Info().Str("key", key).Msg("视频已归档")
		}
	}

	// 5. VEO 流程补渲配套静帧（尽力而为）
	if service == media.ServiceVeo {
		s.renderCompanionStill(ctx, pf, videoName)
	}

	return nil
}

// ensureVideoContext 定位或建档图片记录，并确保基础提示词入库
func (s *Service) ensureVideoContext(ctx context.Context, pf *media.PromptFile, imagePath string) (*media.Image, *int64, error) {
	img, err := s.images.FindByUploadedFilename(ctx, pf.PicName)
	if errors.Is(err, mediarepo.ErrNotFound) {
		img, err = s.images.FindByOriginalFilename(ctx, filepath.Base(imagePath))
	}
	if errors.Is(err, mediarepo.ErrNotFound) {
		img = &media.Image{
			Timestamp:        time.Now().Format(time.RFC3339),
			OriginalFilename: filepath.Base(imagePath),
			OriginalPath:     imagePath,
			UploadURL:        pf.ImageURL,
			Status:           media.UploadStatusPending,
		}
		if cerr := s.images.Create(ctx, img); cerr != nil {
			return nil, nil, cerr
		}
	} else if err != nil {
		return nil, nil, err
	}

	if err := s.prompts.Upsert(ctx, &media.Prompt{
		ImageID:     img.ID,
		ImagePrompt: pf.ImagePrompt,
		VideoPrompt: pf.VideoPrompt,
	}); err != nil {
		log.Warn().Int64("image_id", img.ID).Err(err).Msg("提示词入库失败")
	}

	var promptID *int64
	if p, err := s.prompts.FindByImageID(ctx, img.ID); err == nil {
		promptID = &p.ID
	}
	return img, promptID, nil
}

// selectPrompt 按类型取提交的提示词。
// base/refined 先走精炼链路并把结果写回 JSON 与数据库，精炼失败退回原始提示词
func (s *Service) selectPrompt(ctx context.Context, pair videoPair, promptType media.PromptType) (string, error) {
	pf := pair.file
	switch promptType {
	case media.PromptTypeBase:
		return s.refineAndPersist(ctx, pair), nil
	case media.PromptTypeRefined:
		if pf.RefinedVideoPrompt != "" {
			return pf.RefinedVideoPrompt, nil
		}
		return s.refineAndPersist(ctx, pair), nil
	case media.PromptTypeCreative1, media.PromptTypeCreative2, media.PromptTypeCreative3:
		n := int(promptType[len(promptType)-1] - '0')
		text := pf.Creative(n)
		if text == "" {
			return "", fmt.Errorf("prompt json has no %s prompt", promptType)
		}
		return text, nil
	default:
		return "", fmt.Errorf("unsupported prompt type: %s", promptType)
	}
}

// refineAndPersist 精炼基础视频提示词并回写 JSON 文件与 prompts 表
func (s *Service) refineAndPersist(ctx context.Context, pair videoPair) string {
	pf := pair.file
	if s.llm == nil {
		log.Warn().Msg("提示词服务未配置，直接使用原始提示词")
		return pf.VideoPrompt
	}

	refined, err := s.llm.Generate(ctx, mediatools.RefineInstruction(pf.VideoPrompt))
	if err != nil {
		log.Warn().Err(err).Msg("提示词精炼失败，使用原始提示词")
		return pf.VideoPrompt
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return pf.VideoPrompt
	}
	log.Info().Str("refined", refined).Msg("视频提示词已精炼")

	pf.RefinedVideoPrompt = refined
	if err := workdir.WritePromptFile(pair.jsonPath, pf); err != nil {
		log.Warn().Str("json", filepath.Base(pair.jsonPath)).Err(err).Msg("回写精炼提示词失败")
	}
	if img, err := s.images.FindByUploadedFilename(ctx, pf.PicName); err == nil {
		if err := s.prompts.UpdateRefined(ctx, img.ID, refined); err != nil {
			log.Warn().Int64("image_id", img.ID).Err(err).Msg("精炼提示词入库失败")
		}
	}
	return refined
}

// invokeVideoService 按服务生成视频并返回字节流
func (s *Service) invokeVideoService(ctx context.Context, service media.Service, imagePath, prompt string) ([]byte, error) {
	switch service {
	case media.ServiceDuomi:
		// duomi 接口只收 URL，先把图片送上图床
		uploadRes, err := s.uploader.Upload(ctx, imagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image for video generation: %w", err)
		}
		return s.duomi.GenerateVideo(ctx, uploadRes.URL, prompt)
	case media.ServiceKling:
		imgData, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return s.kling.GenerateVideo(ctx, imgData, prompt)
	case media.ServiceVeo:
		imgData, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return s.gemini.GenerateVideo(ctx, prompt, imgData, http.DetectContentType(imgData))
	default:
		return nil, fmt.Errorf("unsupported video service: %s", service)
	}
}

// renderCompanionStill 按 image_prompt 补渲一张静帧到 out/img，失败只记日志
func (s *Service) renderCompanionStill(ctx context.Context, pf *media.PromptFile, videoName string) {
	if s.gemini == nil || pf.ImagePrompt == "" {
		return
	}
	data, _, err := s.gemini.GenerateImage(ctx, pf.ImagePrompt)
	if err != nil {
		log.Warn().Err(err).Msg("配套静帧生成失败")
		return
	}
	stillPath := filepath.Join(s.wd.OutImg(), videoName+"_gen4.png")
	if err := os.WriteFile(stillPath, data, 0o644); err != nil {
		log.Warn().Str("path", stillPath).Err(err).Msg("配套静帧保存失败")
		return
	}
	log.Info().Str("path", stillPath).Msg("配套静帧已保存")
}

// normalizeVideoName 保证视频文件名以单个 .mp4 结尾
func normalizeVideoName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".mp4"
}
