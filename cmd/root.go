package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reel/internal/config"
	"reel/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reel",
	Short: "Reel - image-to-video content pipeline",
	Long: `Reel runs a batch content pipeline: upload source images to an image
host, derive prompts with LLMs, generate videos through Duomi / Kling / VEO,
and keep every step tracked in a local SQLite database plus CSV/JSONL logs.
A read-only status API is available via "reel serve".`,
	SilenceUsage: true,
}

// errPartial 标记部分条目失败的运行，进程据此退出码 1
var errPartial = errors.New("completed with failures")

// Execute 运行根命令并折算进程退出码：
// 0 全部成功，1 部分失败，2 致命错误或没有任何条目成功，130 被信号中断
func Execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, errPartial):
		return 1
	default:
		return 2
	}
}

// finish 把工作流的成功/失败计数折算成命令返回值
func finish(succeeded, failed int) error {
	if failed == 0 {
		return nil
	}
	if succeeded == 0 {
		return fmt.Errorf("all %d items failed", failed)
	}
	return fmt.Errorf("%w: %d succeeded, %d failed", errPartial, succeeded, failed)
}

// signalContext 返回在 SIGINT/SIGTERM 时取消的上下文
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.reel")
	}

	// 环境变量设置
	viper.SetEnvPrefix("REEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindLegacyEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

// bindLegacyEnv 兼容脚本时代的环境变量名，旧部署不改环境也能跑
func bindLegacyEnv() {
	_ = viper.BindEnv("uploader.api_key", "REEL_UPLOADER_API_KEY", "FREEIMAGE_API_KEY")
	_ = viper.BindEnv("llm.api_key", "REEL_LLM_API_KEY", "OPENROUTER_API_KEY")
	_ = viper.BindEnv("llm.model", "REEL_LLM_MODEL", "OPENROUTER_MODEL_NAME")
	_ = viper.BindEnv("llm.use_fallback", "REEL_LLM_USE_FALLBACK", "USE_OPENROUTER_FALLBACK")
	_ = viper.BindEnv("gemini.api_key", "REEL_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = viper.BindEnv("duomi.api_key", "REEL_DUOMI_API_KEY", "DUOMI_API_KEY")
	_ = viper.BindEnv("kling.access_key", "REEL_KLING_ACCESS_KEY", "KLING_ACCESS_KEY")
	_ = viper.BindEnv("kling.secret_key", "REEL_KLING_SECRET_KEY", "KLING_SECRET_KEY")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// Database（path 为空时落在 <workdir>/data/ 下）
	viper.SetDefault("database.path", "")
	viper.SetDefault("database.busy_timeout", 5000)

	// Redis（addr 为空表示不启用缓存）
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)

	// Workdir
	viper.SetDefault("workdir.base", ".")

	// Uploader (freeimage.host)
	viper.SetDefault("uploader.base_url", "https://freeimage.host/api/1/upload")
	viper.SetDefault("uploader.timeout", "30s")
	viper.SetDefault("uploader.max_retries", 3)
	viper.SetDefault("uploader.retry_delay", "1s")

	// LLM (OpenRouter)
	viper.SetDefault("llm.provider", "openrouter")
	viper.SetDefault("llm.model", "google/gemini-2.5-flash")
	viper.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("llm.use_fallback", true)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", "5s")
	viper.SetDefault("llm.timeout", "60s")

	// Gemini (Google GenAI)
	viper.SetDefault("gemini.text_model", "gemini-2.5-flash")
	viper.SetDefault("gemini.image_model", "imagen-4.0-generate-001")
	viper.SetDefault("gemini.video_model", "veo-3.0-generate-preview")
	viper.SetDefault("gemini.edit_model", "gemini-2.5-flash-image-preview")
	viper.SetDefault("gemini.poll_interval", "10s")
	viper.SetDefault("gemini.max_wait", "30m")

	// Duomi
	viper.SetDefault("duomi.base_url", "http://duomiapi.com")
	viper.SetDefault("duomi.model", "kling-v2-1")
	viper.SetDefault("duomi.mode", "std")
	viper.SetDefault("duomi.duration", 5)
	viper.SetDefault("duomi.aspect_ratio", "16:9")
	viper.SetDefault("duomi.cfg_scale", 0.5)
	viper.SetDefault("duomi.image_model", "stabilityai/stable-diffusion-xl-base-1.0")
	viper.SetDefault("duomi.image_size", "1080x1920")
	viper.SetDefault("duomi.inference_steps", 20)
	viper.SetDefault("duomi.guidance_scale", 7.5)
	viper.SetDefault("duomi.seed", 51515151)
	viper.SetDefault("duomi.poll_interval", "10s")
	viper.SetDefault("duomi.max_wait", "30m")
	viper.SetDefault("duomi.timeout", "60s")

	// Kling
	viper.SetDefault("kling.base_url", "https://api-beijing.klingai.com")
	viper.SetDefault("kling.model", "kling-v2-1")
	viper.SetDefault("kling.mode", "std")
	viper.SetDefault("kling.duration", "5")
	viper.SetDefault("kling.cfg_scale", 0.5)
	viper.SetDefault("kling.poll_interval", "10s")
	viper.SetDefault("kling.max_wait", "30m")
	viper.SetDefault("kling.timeout", "60s")

	// Storage（成品归档，默认关闭）
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.archive", false)
	viper.SetDefault("storage.local.base_path", "archive")
	viper.SetDefault("storage.local.base_url", "")
	viper.SetDefault("storage.local.presign_expiry", 3600)

	// Pipeline
	viper.SetDefault("pipeline.pacing_delay", "1s")
	viper.SetDefault("pipeline.batch_count", 10)
	viper.SetDefault("pipeline.batch_max", 20)
	viper.SetDefault("pipeline.download_size_mb", 50)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
