package duomi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ImageConfig 多米文生图配置
type ImageConfig struct {
	APIKey         string        // API Key（必需）
	BaseURL        string        // API 基础 URL（可选，默认: https://duomiapi.com）
	Model          string        // 模型名称（可选，默认: stabilityai/stable-diffusion-xl-base-1.0）
	ImageSize      string        // 输出尺寸（可选，默认: 1080x1920）
	BatchSize      int           // 单次生成张数（可选，默认: 1）
	Seed           int64         // 随机种子（可选，默认: 51515151）
	InferenceSteps int           // 推理步数（可选，默认: 20）
	GuidanceScale  float64       // 引导强度（可选，默认: 7.5）
	Timeout        time.Duration // 单次请求超时（可选，默认: 60s）
}

// ImageConfigFromEnv 从环境变量创建文生图配置
// 支持的环境变量：
//   - DUOMI_API_KEY: API Key（必需，与图生视频共用）
func ImageConfigFromEnv() *ImageConfig {
	return &ImageConfig{
		APIKey: os.Getenv("DUOMI_API_KEY"),
	}
}

// ImageClient 多米文生图客户端
type ImageClient struct {
	apiKey         string
	baseURL        string
	model          string
	imageSize      string
	batchSize      int
	seed           int64
	inferenceSteps int
	guidanceScale  float64
	httpClient     *http.Client
}

// NewImageClient 创建多米文生图客户端
func NewImageClient(config *ImageConfig) (*ImageClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("DUOMI_API_KEY is required")
	}
	c := &ImageClient{
		apiKey:         config.APIKey,
		baseURL:        strings.TrimSuffix(config.BaseURL, "/"),
		model:          config.Model,
		imageSize:      config.ImageSize,
		batchSize:      config.BatchSize,
		seed:           config.Seed,
		inferenceSteps: config.InferenceSteps,
		guidanceScale:  config.GuidanceScale,
	}
	if c.baseURL == "" {
		c.baseURL = "https://duomiapi.com"
	}
	if c.model == "" {
		c.model = "stabilityai/stable-diffusion-xl-base-1.0"
	}
	if c.imageSize == "" {
		c.imageSize = "1080x1920"
	}
	if c.batchSize <= 0 {
		c.batchSize = 1
	}
	if c.seed == 0 {
		c.seed = 51515151
	}
	if c.inferenceSteps <= 0 {
		c.inferenceSteps = 20
	}
	if c.guidanceScale <= 0 {
		c.guidanceScale = 7.5
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c, nil
}

// GenerateImage 文生图，返回首张图片的下载 URL
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":               c.model,
		"prompt":              prompt,
		"negative_prompt":     "",
		"image_size":          c.imageSize,
		"batch_size":          c.batchSize,
		"seed":                c.seed,
		"num_inference_steps": c.inferenceSteps,
		"guidance_scale":      c.guidanceScale,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	apiURL := c.baseURL + "/v1/images/generations"
	log.Debug().
		Str("api_url", apiURL).
		Str("model", c.model).
		Str("image_size", c.imageSize).
		Msg("调用多米文生图")

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("url", apiURL).
			Str("response_body", string(body)).
			Msg("多米文生图请求失败")
		return "", fmt.Errorf("API request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 || apiResp.Data[0].URL == "" {
		return "", fmt.Errorf("no image URL in generation result")
	}
	return apiResp.Data[0].URL, nil
}
