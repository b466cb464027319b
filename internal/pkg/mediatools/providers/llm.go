// Package providers 提示词派生提供者的适配层
// 把 pkg/openrouter、pkg/gemini 客户端适配成 mediatools.LLMProvider 接口
package providers

import (
	"context"
	"fmt"
	"net/http"

	"reel/internal/pkg/download"
	"reel/internal/pkg/gemini"
	"reel/internal/pkg/mediatools"
	"reel/internal/pkg/openrouter"
)

// OpenRouterProvider OpenRouter 提供者（eino ChatModel 封装）
// 实现了 mediatools.LLMProvider 接口
type OpenRouterProvider struct {
	client *openrouter.Client
}

// NewOpenRouterProvider 创建 OpenRouter 提供者
//
// Args:
//   - client: OpenRouter 客户端实例（通过 openrouter.NewClient 创建）
//
// Returns:
//   - *OpenRouterProvider: 提供者实例
func NewOpenRouterProvider(client *openrouter.Client) *OpenRouterProvider {
	return &OpenRouterProvider{
		client: client,
	}
}

// Name 提供者标识
func (p *OpenRouterProvider) Name() string {
	return mediatools.SourceOpenRouter
}

// Model 当前使用的模型名
func (p *OpenRouterProvider) Model() string {
	if p.client == nil {
		return ""
	}
	return p.client.Model()
}

// Generate 纯文本生成
func (p *OpenRouterProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("openrouter client is required")
	}
	return p.client.Generate(ctx, prompt)
}

// GenerateWithImage 结合图片 URL 生成文本
func (p *OpenRouterProvider) GenerateWithImage(ctx context.Context, prompt, imageURL string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("openrouter client is required")
	}
	return p.client.GenerateWithImage(ctx, prompt, imageURL)
}

// GenerateWithImageData 结合图片二进制生成文本
func (p *OpenRouterProvider) GenerateWithImageData(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("openrouter client is required")
	}
	return p.client.GenerateWithImageData(ctx, prompt, imageData, mimeType)
}

// GeminiProvider Google GenAI 提供者
// 实现了 mediatools.LLMProvider 接口
type GeminiProvider struct {
	client *gemini.Client
	dl     *download.Client
}

// NewGeminiProvider 创建 Gemini 提供者
//
// Args:
//   - client: Gemini 客户端实例（通过 gemini.NewClient 创建）
//
// Returns:
//   - *GeminiProvider: 提供者实例
func NewGeminiProvider(client *gemini.Client) *GeminiProvider {
	return &GeminiProvider{
		client: client,
		dl:     download.NewClient(&download.Config{}),
	}
}

// Name 提供者标识
func (p *GeminiProvider) Name() string {
	return mediatools.SourceGemini
}

// Model 当前使用的模型名
func (p *GeminiProvider) Model() string {
	if p.client == nil {
		return ""
	}
	return p.client.TextModel()
}

// Generate 纯文本生成
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("gemini client is required")
	}
	return p.client.GenerateText(ctx, prompt)
}

// GenerateWithImage 结合图片 URL 生成文本
// GenAI 接口不接受外链图片，先下载为二进制再走视觉接口
func (p *GeminiProvider) GenerateWithImage(ctx context.Context, prompt, imageURL string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("gemini client is required")
	}
	data, err := p.dl.Fetch(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("fetch image for vision: %w", err)
	}
	return p.client.DescribeImage(ctx, prompt, data, http.DetectContentType(data))
}

// GenerateWithImageData 结合图片二进制生成文本
func (p *GeminiProvider) GenerateWithImageData(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("gemini client is required")
	}
	return p.client.DescribeImage(ctx, prompt, imageData, mimeType)
}
