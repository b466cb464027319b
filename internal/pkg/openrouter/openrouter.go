// Package openrouter 基于 eino 的 OpenRouter 多模态生成客户端（OpenAI 兼容协议）
package openrouter

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL OpenRouter 的 OpenAI 兼容入口
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel 默认多模态模型
	DefaultModel = "google/gemini-2.5-flash"
)

// Config OpenRouter 客户端配置
type Config struct {
	APIKey     string        // API Key（必需）
	Model      string        // 模型名称（可选，默认: google/gemini-2.5-flash）
	BaseURL    string        // API 基础 URL（可选，默认: https://openrouter.ai/api/v1）
	MaxRetries int           // 最大尝试次数（可选，默认: 3）
	RetryDelay time.Duration // 重试间隔（可选，默认: 5s）
	Timeout    time.Duration // 单次请求超时（可选，默认: 60s）
}

// ConfigFromEnv 从环境变量创建 OpenRouter 配置
// 支持的环境变量：
//   - OPENROUTER_API_KEY: API Key（必需）
//   - OPENROUTER_MODEL_NAME: 模型名称（可选，默认: google/gemini-2.5-flash）
func ConfigFromEnv() *Config {
	return &Config{
		APIKey: os.Getenv("OPENROUTER_API_KEY"),
		Model:  os.Getenv("OPENROUTER_MODEL_NAME"),
	}
}

// Client OpenRouter 客户端
type Client struct {
	chatModel  model.ChatModel
	model      string
	maxRetries int
	retryDelay time.Duration
}

// NewClient 创建 OpenRouter 客户端
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	modelName := config.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  config.APIKey,
		BaseURL: baseURL,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &Client{
		chatModel:  chatModel,
		model:      modelName,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// Model 当前使用的模型名称
func (c *Client) Model() string {
	return c.model
}

// Generate 纯文本生成，带重试
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
}

// GenerateWithImage 图文生成，图片以 URL 传入；图片在前、指令在后
func (c *Client) GenerateWithImage(ctx context.Context, prompt, imageURL string) (string, error) {
	msg := &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: imageURL},
			},
			{
				Type: schema.ChatMessagePartTypeText,
				Text: prompt,
			},
		},
	}
	return c.generate(ctx, []*schema.Message{msg})
}

// GenerateWithImageData 图文生成，图片字节内联为 data URL
func (c *Client) GenerateWithImageData(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))
	return c.GenerateWithImage(ctx, prompt, dataURL)
}

func (c *Client) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		log.Debug().
			Str("model", c.model).
			Int("attempt", attempt).
			Msg("调用 OpenRouter 生成内容")

		resp, err := c.chatModel.Generate(ctx, messages)
		if err == nil {
			content := strings.TrimSpace(resp.Content)
			if content != "" {
				return content, nil
			}
			lastErr = fmt.Errorf("empty response content")
		} else {
			lastErr = err
		}

		if attempt < c.maxRetries {
			log.Warn().
				Int("attempt", attempt).
				Err(lastErr).
				Msg("OpenRouter 调用失败，即将重试")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return "", fmt.Errorf("openrouter generate failed after %d attempts: %w", c.maxRetries, lastErr)
}
