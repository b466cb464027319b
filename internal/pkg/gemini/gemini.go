// Package gemini 封装 Google GenAI 的文本、图像与视频生成客户端
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	// DefaultTextModel 文本与多模态理解模型
	DefaultTextModel = "gemini-2.5-flash"
	// DefaultImageModel Imagen 文生图模型
	DefaultImageModel = "imagen-4.0-generate-001"
	// DefaultVideoModel VEO 图生视频模型
	DefaultVideoModel = "veo-3.0-generate-preview"
	// DefaultEditModel 图像编辑模型（去水印等）
	DefaultEditModel = "gemini-2.5-flash-image-preview"
)

// Config Gemini 客户端配置
type Config struct {
	APIKey       string        // API Key（必需）
	TextModel    string        // 文本模型（可选，默认: gemini-2.5-flash）
	ImageModel   string        // 文生图模型（可选，默认: imagen-4.0-generate-001）
	VideoModel   string        // 视频模型（可选，默认: veo-3.0-generate-preview）
	EditModel    string        // 图像编辑模型（可选，默认: gemini-2.5-flash-image-preview）
	PollInterval time.Duration // 视频任务轮询间隔（可选，默认: 10s）
	MaxWait      time.Duration // 视频任务最长等待（可选，默认: 30m）
}

// ConfigFromEnv 从环境变量创建 Gemini 配置
// 支持的环境变量：
//   - GEMINI_API_KEY: API Key（必需）
func ConfigFromEnv() *Config {
	return &Config{
		APIKey: os.Getenv("GEMINI_API_KEY"),
	}
}

// Client Gemini 客户端
type Client struct {
	client       *genai.Client
	textModel    string
	imageModel   string
	videoModel   string
	editModel    string
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewClient 创建 Gemini 客户端
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := &Client{
		client:       client,
		textModel:    config.TextModel,
		imageModel:   config.ImageModel,
		videoModel:   config.VideoModel,
		editModel:    config.EditModel,
		pollInterval: config.PollInterval,
		maxWait:      config.MaxWait,
	}
	if c.textModel == "" {
		c.textModel = DefaultTextModel
	}
	if c.imageModel == "" {
		c.imageModel = DefaultImageModel
	}
	if c.videoModel == "" {
		c.videoModel = DefaultVideoModel
	}
	if c.editModel == "" {
		c.editModel = DefaultEditModel
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 10 * time.Second
	}
	if c.maxWait <= 0 {
		c.maxWait = 30 * time.Minute
	}
	return c, nil
}

// TextModel 当前文本模型名称
func (c *Client) TextModel() string {
	return c.textModel
}

// GenerateText 纯文本生成
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	return c.generateText(ctx, c.textModel, contents)
}

// DescribeImage 图文生成，图片字节内联；图片在前、指令在后
func (c *Client) DescribeImage(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			{Text: prompt},
		},
	}}
	return c.generateText(ctx, c.textModel, contents)
}

func (c *Client) generateText(ctx context.Context, model string, contents []*genai.Content) (string, error) {
	log.Debug().Str("model", model).Msg("调用 Gemini 生成内容")
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response text")
	}
	return text, nil
}

// GenerateImage 用 Imagen 文生图，返回首张图片字节与 MIME 类型
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	log.Debug().Str("model", c.imageModel).Msg("调用 Imagen 生成图片")
	resp, err := c.client.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("imagen generate images: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, "", fmt.Errorf("imagen returned no generated images")
	}
	img := resp.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return img.ImageBytes, mimeType, nil
}

// EditImage 用图像编辑模型按指令处理图片，返回编辑后的图片字节
func (c *Client) EditImage(ctx context.Context, instruction string, imageData []byte, mimeType string) ([]byte, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: instruction},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
		},
	}}
	log.Debug().Str("model", c.editModel).Msg("调用 Gemini 编辑图片")
	resp, err := c.client.Models.GenerateContent(ctx, c.editModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini edit image: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("no image data found in response")
}

// GenerateVideo 用 VEO 生成视频并下载，imageData 为空时纯文生视频。
// 提交后在函数内部轮询直至完成或超时。
func (c *Client) GenerateVideo(ctx context.Context, prompt string, imageData []byte, mimeType string) ([]byte, error) {
	var image *genai.Image
	if len(imageData) > 0 {
		image = &genai.Image{
			ImageBytes: imageData,
			MIMEType:   mimeType,
		}
	}

	operation, err := c.client.Models.GenerateVideos(ctx, c.videoModel, prompt, image, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}
	log.Info().Str("operation", operation.Name).Msg("VEO 视频生成任务提交成功")

	deadline := time.Now().Add(c.maxWait)
	for !operation.Done {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video generation timeout after %v", c.maxWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		operation, err = c.client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation: %w", err)
		}
		log.Debug().Str("operation", operation.Name).Bool("done", operation.Done).Msg("视频生成中，继续等待...")
	}

	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}
	if operation.Response == nil {
		return nil, fmt.Errorf("operation completed without response")
	}
	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %s", reasons)
	}
	if len(operation.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("no videos in response")
	}
	video := operation.Response.GeneratedVideos[0].Video
	if video == nil {
		return nil, fmt.Errorf("generated video object is nil")
	}

	data, err := c.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded video is empty")
	}
	log.Info().Int("size", len(data)).Msg("视频生成成功并下载完成")
	return data, nil
}
