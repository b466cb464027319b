package mediatools

import "context"

// API 来源标识，记录在生成结果里
const (
	SourceOpenRouter     = "openrouter"
	SourceGemini         = "gemini"
	SourceGeminiFallback = "gemini_fallback"
)

// LLMProvider 定义了调用大模型派生提示词的接口
// 具体的「如何调用大模型」由调用方通过实现此接口注入，方便单测和替换实现
type LLMProvider interface {
	// Name 提供者标识（openrouter / gemini）
	Name() string

	// Model 当前使用的模型名
	Model() string

	// Generate 根据提示词生成文本
	//
	// Args:
	//   - ctx: 上下文
	//   - prompt: 提示词
	//
	// Returns:
	//   - text: 生成的文本
	//   - err: 错误信息
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithImage 结合图片 URL 生成文本（视觉理解）
	GenerateWithImage(ctx context.Context, prompt, imageURL string) (string, error)

	// GenerateWithImageData 结合图片二进制生成文本（视觉理解）
	GenerateWithImageData(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error)
}

// GenerationResult 一次提示词派生调用的结果
// APISource 记录实际命中的服务，回退链路生效时与主链路不同
type GenerationResult struct {
	Success      bool    `json:"success"`
	Content      string  `json:"content"`
	Error        string  `json:"error,omitempty"`
	APISource    string  `json:"api_source"`
	ModelUsed    string  `json:"model_used,omitempty"`
	ResponseTime float64 `json:"response_time"` // 耗时（秒）
}
