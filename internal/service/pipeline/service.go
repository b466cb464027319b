// Package pipeline 内容流水线编排层
// 把上传、提示词派生、视频生成、对账等工作流串在仓储与各外部服务客户端之上，
// 统一顺序执行、固定节奏、逐项记录的运行方式
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/config"
	"reel/internal/pkg/download"
	"reel/internal/pkg/duomi"
	"reel/internal/pkg/freeimage"
	"reel/internal/pkg/gemini"
	"reel/internal/pkg/kling"
	"reel/internal/pkg/medialog"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/mediatools/providers"
	"reel/internal/pkg/openrouter"
	"reel/internal/pkg/storage"
	"reel/internal/pkg/storagefactory"
	"reel/internal/pkg/workdir"
	mediarepo "reel/internal/repository/media"
)

// 日志与导出文件名（相对工作目录）
const (
	uploadLogName = "image_uploading.csv"
	batchLogName  = "batch_upload.csv"
	videoLogName  = "video_generation_log.jsonl"
	exportCSVName = "video_prompts_extract.csv"
)

// Deps 服务依赖集合
// 可选的客户端允许为 nil，对应的工作流会在执行前检查并报错
type Deps struct {
	Config     *config.Config
	Workdir    *workdir.Workdir
	Images     mediarepo.ImageRepository
	Prompts    mediarepo.PromptRepository
	Videos     mediarepo.VideoRepository
	Stats      *mediarepo.StatsRepo
	Uploader   *freeimage.Client
	LLM        *providers.FallbackProvider
	Gemini     *gemini.Client
	Duomi      *duomi.Client
	DuomiImage *duomi.ImageClient
	Kling      *kling.Client
	Download   *download.Client
	Archive    storage.Storage
}

// Service 流水线服务
type Service struct {
	cfg        *config.Config
	wd         *workdir.Workdir
	images     mediarepo.ImageRepository
	prompts    mediarepo.PromptRepository
	videos     mediarepo.VideoRepository
	stats      *mediarepo.StatsRepo
	uploader   *freeimage.Client
	llm        *providers.FallbackProvider
	gemini     *gemini.Client
	duomi      *duomi.Client
	duomiImage *duomi.ImageClient
	kling      *kling.Client
	dl         *download.Client
	archive    storage.Storage

	uploadLog *medialog.UploadCSV
	batchLog  *medialog.BatchCSV
	videoLog  *medialog.VideoJSONL

	pacing time.Duration
}

// New 以显式依赖创建服务（单测注入用）
func New(deps Deps) *Service {
	pacing := time.Second
	if deps.Config != nil && deps.Config.Pipeline.PacingDelay > 0 {
		pacing = deps.Config.Pipeline.PacingDelay
	}
	logsDir := ""
	if deps.Workdir != nil {
		logsDir = deps.Workdir.Logs()
	}
	return &Service{
		cfg:        deps.Config,
		wd:         deps.Workdir,
		images:     deps.Images,
		prompts:    deps.Prompts,
		videos:     deps.Videos,
		stats:      deps.Stats,
		uploader:   deps.Uploader,
		llm:        deps.LLM,
		gemini:     deps.Gemini,
		duomi:      deps.Duomi,
		duomiImage: deps.DuomiImage,
		kling:      deps.Kling,
		dl:         deps.Download,
		archive:    deps.Archive,
		uploadLog:  medialog.NewUploadCSV(filepath.Join(logsDir, uploadLogName)),
		batchLog:   medialog.NewBatchCSV(filepath.Join(logsDir, batchLogName)),
		videoLog:   medialog.NewVideoJSONL(filepath.Join(logsDir, videoLogName)),
		pacing:     pacing,
	}
}

// Bootstrap 按配置组装整条流水线
// 未配置密钥的客户端留空，由具体工作流在执行前检查；
// 返回的清理函数负责关闭数据库连接
func Bootstrap(ctx context.Context, cfg *config.Config) (*Service, func(), error) {
	wd := workdir.New(cfg.Workdir.Base)
	if err := wd.EnsureAll(); err != nil {
		return nil, nil, fmt.Errorf("failed to prepare workdir: %w", err)
	}

	dbCfg := cfg.Database
	dbCfg.Path = cfg.DatabasePath()
	db, err := mediarepo.Open(&dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭数据库失败")
		}
	}

	deps := Deps{
		Config:  cfg,
		Workdir: wd,
		Images:  mediarepo.NewImageRepo(db),
		Prompts: mediarepo.NewPromptRepo(db),
		Videos:  mediarepo.NewVideoRepo(db),
		Stats:   mediarepo.NewStatsRepo(db),
		Download: download.NewClient(&download.Config{
			MaxSizeMB: cfg.Pipeline.DownloadSizeMB,
		}),
	}

	if cfg.Uploader.APIKey != "" {
		uploader, err := freeimage.NewClient(&freeimage.Config{
			APIKey:     cfg.Uploader.APIKey,
			BaseURL:    cfg.Uploader.BaseURL,
			Timeout:    cfg.Uploader.Timeout,
			MaxRetries: cfg.Uploader.MaxRetries,
			RetryDelay: cfg.Uploader.RetryDelay,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create uploader: %w", err)
		}
		deps.Uploader = uploader
	}

	if cfg.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, &gemini.Config{
			APIKey:       cfg.Gemini.APIKey,
			TextModel:    cfg.Gemini.TextModel,
			ImageModel:   cfg.Gemini.ImageModel,
			VideoModel:   cfg.Gemini.VideoModel,
			EditModel:    cfg.Gemini.EditModel,
			PollInterval: cfg.Gemini.PollInterval,
			MaxWait:      cfg.Gemini.MaxWait,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		deps.Gemini = geminiClient
	}

	llm, err := buildLLMChain(ctx, cfg, deps.Gemini)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.LLM = llm

	if cfg.Duomi.APIKey != "" {
		duomiClient, err := duomi.NewClient(&duomi.Config{
			APIKey:         cfg.Duomi.APIKey,
			BaseURL:        cfg.Duomi.BaseURL,
			Model:          cfg.Duomi.Model,
			Mode:           cfg.Duomi.Mode,
			Duration:       cfg.Duomi.Duration,
			AspectRatio:    cfg.Duomi.AspectRatio,
			CFGScale:       cfg.Duomi.CFGScale,
			NegativePrompt: cfg.Duomi.NegativePrompt,
			PollInterval:   cfg.Duomi.PollInterval,
			MaxWait:        cfg.Duomi.MaxWait,
			Timeout:        cfg.Duomi.Timeout,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create duomi client: %w", err)
		}
		deps.Duomi = duomiClient

		imageClient, err := duomi.NewImageClient(&duomi.ImageConfig{
			APIKey:         cfg.Duomi.APIKey,
			Model:          cfg.Duomi.ImageModel,
			ImageSize:      cfg.Duomi.ImageSize,
			Seed:           cfg.Duomi.Seed,
			InferenceSteps: cfg.Duomi.InferenceSteps,
			GuidanceScale:  cfg.Duomi.GuidanceScale,
			Timeout:        cfg.Duomi.Timeout,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create duomi image client: %w", err)
		}
		deps.DuomiImage = imageClient
	}

	if cfg.Kling.AccessKey != "" && cfg.Kling.SecretKey != "" {
		klingClient, err := kling.NewClient(&kling.Config{
			AccessKey:      cfg.Kling.AccessKey,
			SecretKey:      cfg.Kling.SecretKey,
			BaseURL:        cfg.Kling.BaseURL,
			Model:          cfg.Kling.Model,
			Mode:           cfg.Kling.Mode,
			Duration:       cfg.Kling.Duration,
			CFGScale:       cfg.Kling.CFGScale,
			NegativePrompt: cfg.Kling.NegativePrompt,
			PollInterval:   cfg.Kling.PollInterval,
			MaxWait:        cfg.Kling.MaxWait,
			Timeout:        cfg.Kling.Timeout,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create kling client: %w", err)
		}
		deps.Kling = klingClient
	}

	if cfg.Storage.Archive {
		store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create archive storage: %w", err)
		}
		deps.Archive = store
	}

	return New(deps), cleanup, nil
}

// buildLLMChain 组装提示词派生链路（主 + 可选备用）
// 主链路的密钥缺失而另一家可用时，自动换用另一家并告警
func buildLLMChain(ctx context.Context, cfg *config.Config, geminiClient *gemini.Client) (*providers.FallbackProvider, error) {
	var openRouter *providers.OpenRouterProvider
	if cfg.LLM.APIKey != "" {
		client, err := openrouter.NewClient(ctx, &openrouter.Config{
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			BaseURL:    cfg.LLM.BaseURL,
			MaxRetries: cfg.LLM.MaxRetries,
			RetryDelay: cfg.LLM.RetryDelay,
			Timeout:    cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openrouter client: %w", err)
		}
		openRouter = providers.NewOpenRouterProvider(client)
	}

	var geminiProvider *providers.GeminiProvider
	if geminiClient != nil {
		geminiProvider = providers.NewGeminiProvider(geminiClient)
	}

	var primary, secondary mediatools.LLMProvider
	switch cfg.LLM.Provider {
	case mediatools.SourceGemini:
		if geminiProvider != nil {
			primary = geminiProvider
		}
		if openRouter != nil {
			secondary = openRouter
		}
	default: // openrouter
		if openRouter != nil {
			primary = openRouter
		}
		if geminiProvider != nil {
			secondary = geminiProvider
		}
	}

	if primary == nil {
		if secondary == nil {
			return nil, nil
		}
		log.Warn().
			Str("provider", cfg.LLM.Provider).
			Msg("主提示词服务未配置密钥，改用备用服务")
		primary, secondary = secondary, nil
	}
	if !cfg.LLM.UseFallback {
		secondary = nil
	}
	return providers.NewFallbackProvider(primary, secondary), nil
}

// Workdir 工作目录树（状态接口与测试用）
func (s *Service) Workdir() *workdir.Workdir {
	return s.wd
}

// pace 条目之间的固定间隔，context 取消时立即返回
func (s *Service) pace(ctx context.Context) error {
	if s.pacing <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.pacing):
		return nil
	}
}

func (s *Service) requireUploader() error {
	if s.uploader == nil {
		return fmt.Errorf("image host uploader is not configured (set FREEIMAGE_API_KEY)")
	}
	return nil
}

func (s *Service) requireLLM() error {
	if s.llm == nil {
		return fmt.Errorf("prompt provider is not configured (set OPENROUTER_API_KEY or GEMINI_API_KEY)")
	}
	return nil
}

func (s *Service) requireGemini() error {
	if s.gemini == nil {
		return fmt.Errorf("gemini client is not configured (set GEMINI_API_KEY)")
	}
	return nil
}

func (s *Service) requireDuomi() error {
	if s.duomi == nil {
		return fmt.Errorf("duomi client is not configured (set DUOMI_API_KEY)")
	}
	return nil
}

func (s *Service) requireDuomiImage() error {
	if s.duomiImage == nil {
		return fmt.Errorf("duomi image client is not configured (set DUOMI_API_KEY)")
	}
	return nil
}

func (s *Service) requireKling() error {
	if s.kling == nil {
		return fmt.Errorf("kling client is not configured (set KLING_ACCESS_KEY / KLING_SECRET_KEY)")
	}
	return nil
}
