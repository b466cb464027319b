package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"reel/internal/pkg/mediatools"
)

// FallbackProvider 主备双向回退的提示词派生链路
// 主链路失败（重试耗尽）后切换备用服务，实际命中的服务记录在结果的 APISource 里
// 实现了 mediatools.LLMProvider 接口，可直接替换单一提供者
type FallbackProvider struct {
	primary   mediatools.LLMProvider
	secondary mediatools.LLMProvider // 可为 nil，表示未启用回退
}

// NewFallbackProvider 创建回退链路
//
// Args:
//   - primary: 主链路提供者
//   - secondary: 备用提供者，传 nil 则只走主链路
//
// Returns:
//   - *FallbackProvider: 链路实例
func NewFallbackProvider(primary, secondary mediatools.LLMProvider) *FallbackProvider {
	return &FallbackProvider{
		primary:   primary,
		secondary: secondary,
	}
}

// Name 主链路的提供者标识
func (f *FallbackProvider) Name() string {
	return f.primary.Name()
}

// Model 主链路使用的模型名
func (f *FallbackProvider) Model() string {
	return f.primary.Model()
}

// HasFallback 是否配置了备用服务
func (f *FallbackProvider) HasFallback() bool {
	return f.secondary != nil
}

// Generate 纯文本生成，主链路失败后自动回退
func (f *FallbackProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return unwrap(f.GenerateResult(ctx, prompt))
}

// GenerateWithImage 结合图片 URL 生成文本，主链路失败后自动回退
func (f *FallbackProvider) GenerateWithImage(ctx context.Context, prompt, imageURL string) (string, error) {
	return unwrap(f.GenerateWithImageResult(ctx, prompt, imageURL))
}

// GenerateWithImageData 结合图片二进制生成文本，主链路失败后自动回退
func (f *FallbackProvider) GenerateWithImageData(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	return unwrap(f.GenerateWithImageDataResult(ctx, prompt, imageData, mimeType))
}

// GenerateResult 纯文本生成，返回带来源与耗时的完整结果
func (f *FallbackProvider) GenerateResult(ctx context.Context, prompt string) *mediatools.GenerationResult {
	return f.do(ctx, func(ctx context.Context, p mediatools.LLMProvider) (string, error) {
		return p.Generate(ctx, prompt)
	})
}

// GenerateWithImageResult 结合图片 URL 生成，返回完整结果
func (f *FallbackProvider) GenerateWithImageResult(ctx context.Context, prompt, imageURL string) *mediatools.GenerationResult {
	return f.do(ctx, func(ctx context.Context, p mediatools.LLMProvider) (string, error) {
		return p.GenerateWithImage(ctx, prompt, imageURL)
	})
}

// GenerateWithImageDataResult 结合图片二进制生成，返回完整结果
func (f *FallbackProvider) GenerateWithImageDataResult(ctx context.Context, prompt string, imageData []byte, mimeType string) *mediatools.GenerationResult {
	return f.do(ctx, func(ctx context.Context, p mediatools.LLMProvider) (string, error) {
		return p.GenerateWithImageData(ctx, prompt, imageData, mimeType)
	})
}

func (f *FallbackProvider) do(ctx context.Context, call func(context.Context, mediatools.LLMProvider) (string, error)) *mediatools.GenerationResult {
	start := time.Now()

	content, err := call(ctx, f.primary)
	if err == nil {
		return &mediatools.GenerationResult{
			Success:      true,
			Content:      content,
			APISource:    f.primary.Name(),
			ModelUsed:    f.primary.Model(),
			ResponseTime: time.Since(start).Seconds(),
		}
	}

	if f.secondary != nil && ctx.Err() == nil {
		log.Warn().
			Str("primary", f.primary.Name()).
			Str("fallback", f.secondary.Name()).
			Err(err).
			Msg("主链路生成失败，切换备用服务")

		content, fbErr := call(ctx, f.secondary)
		if fbErr == nil {
			return &mediatools.GenerationResult{
				Success:      true,
				Content:      content,
				APISource:    fallbackSource(f.secondary),
				ModelUsed:    f.secondary.Model(),
				ResponseTime: time.Since(start).Seconds(),
			}
		}
		log.Error().
			Str("fallback", f.secondary.Name()).
			Err(fbErr).
			Msg("备用服务同样失败")
		err = fmt.Errorf("%v; fallback %s: %w", err, f.secondary.Name(), fbErr)
	}

	return &mediatools.GenerationResult{
		Success:      false,
		Error:        err.Error(),
		APISource:    f.primary.Name(),
		ResponseTime: time.Since(start).Seconds(),
	}
}

// fallbackSource 备用链路命中时的来源标识
// Gemini 作为备用记为 gemini_fallback，与生成日志的历史口径保持一致
func fallbackSource(p mediatools.LLMProvider) string {
	if p.Name() == mediatools.SourceGemini {
		return mediatools.SourceGeminiFallback
	}
	return p.Name()
}

func unwrap(result *mediatools.GenerationResult) (string, error) {
	if !result.Success {
		return "", errors.New(result.Error)
	}
	return result.Content, nil
}
