package config

import (
	"errors"
	"path/filepath"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Workdir  WorkdirConfig  `mapstructure:"workdir"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Uploader UploaderConfig `mapstructure:"uploader"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Duomi    DuomiConfig    `mapstructure:"duomi"`
	Kling    KlingConfig    `mapstructure:"kling"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig HTTP 服务器配置（只读状态接口）
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// DatabaseConfig SQLite 数据库配置
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`         // 数据库文件路径
	BusyTimeout int    `mapstructure:"busy_timeout"` // busy_timeout（毫秒）
}

// RedisConfig 状态接口缓存配置（可选，Addr 为空则不启用）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkdirConfig 流水线工作目录配置
type WorkdirConfig struct {
	Base string `mapstructure:"base"` // 工作树根目录（img/、out/、logs/ 等在其下）
}

// UploaderConfig 图床上传配置 (freeimage.host)
type UploaderConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LLMConfig 提示词派生配置（OpenRouter 主 + Gemini 回退）
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`     // openrouter, gemini
	APIKey      string        `mapstructure:"api_key"`      // OpenRouter API Key
	Model       string        `mapstructure:"model"`        // OpenRouter 模型名
	BaseURL     string        `mapstructure:"base_url"`     // OpenAI 兼容端点
	UseFallback bool          `mapstructure:"use_fallback"` // 主备双向回退开关
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DuomiConfig Duomi 生成服务配置（图生视频 + 文生图）
type DuomiConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`           // 图生视频模型
	Mode           string        `mapstructure:"mode"`            // std, pro
	Duration       int           `mapstructure:"duration"`        // 视频时长（秒）
	AspectRatio    string        `mapstructure:"aspect_ratio"`    // 宽高比
	CFGScale       float64       `mapstructure:"cfg_scale"`       // 提示词相关性
	NegativePrompt string        `mapstructure:"negative_prompt"` // 负向提示词（空则用默认）
	ImageModel     string        `mapstructure:"image_model"`     // 文生图模型
	ImageSize      string        `mapstructure:"image_size"`
	InferenceSteps int           `mapstructure:"inference_steps"`
	GuidanceScale  float64       `mapstructure:"guidance_scale"`
	Seed           int64         `mapstructure:"seed"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// KlingConfig 可灵直连配置（JWT 鉴权）
type KlingConfig struct {
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Mode           string        `mapstructure:"mode"`
	Duration       string        `mapstructure:"duration"` // 可灵要求字符串
	CFGScale       float64       `mapstructure:"cfg_scale"`
	NegativePrompt string        `mapstructure:"negative_prompt"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// GeminiConfig Google GenAI 配置（文本/视觉/Imagen/VEO/图像编辑）
type GeminiConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	TextModel    string        `mapstructure:"text_model"`
	ImageModel   string        `mapstructure:"image_model"`
	VideoModel   string        `mapstructure:"video_model"`
	EditModel    string        `mapstructure:"edit_model"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

// StorageConfig 成品归档存储配置
type StorageConfig struct {
	Type    string       `mapstructure:"type"`    // local, oss
	Archive bool         `mapstructure:"archive"` // 是否归档生成的视频/图片
	Local   *LocalConfig `mapstructure:"local,omitempty"`
	OSS     *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath      string `mapstructure:"base_path"`      // 基础路径
	BaseURL       string `mapstructure:"base_url"`       // 基础URL（用于生成访问URL）
	PresignExpiry int    `mapstructure:"presign_expiry"` // 预签名URL过期时间（秒）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// PipelineConfig 流水线节奏与批量配置
type PipelineConfig struct {
	PacingDelay    time.Duration `mapstructure:"pacing_delay"`     // 相邻条目间隔
	BatchCount     int           `mapstructure:"batch_count"`      // 批量上传默认条数
	BatchMax       int           `mapstructure:"batch_max"`        // 批量上传上限
	DownloadSizeMB int           `mapstructure:"download_size_mb"` // 下载校验大小上限
}

// DatabasePath 返回生效的数据库文件路径，未配置时落在工作目录 data/ 下
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Workdir.Base, "data", "image_processing.db")
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Workdir.Base == "" {
		return errors.New("workdir base is required")
	}

	if c.Pipeline.BatchMax > 0 && c.Pipeline.BatchCount > c.Pipeline.BatchMax {
		return errors.New("pipeline batch_count exceeds batch_max")
	}

	return nil
}
