// Package duomi 封装多米 API 的图生视频与文生图客户端
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

// DefaultNegativePrompt 默认负向提示词
const DefaultNegativePrompt = "Over-saturated tones, overexposed, static, blurred details, subtitles, " +
	"style, artwork, painting, frame, motionless, overall grayish, worst quality, low quality, " +
	"JPEG compression artifacts, ugly, incomplete, extra fingers, poorly drawn hands, " +
	"poorly drawn faces, deformed, disfigured, limbs in distorted shapes, fused fingers, " +
	"motionless frames, chaotic backgrounds, three legs, crowded background with many people, " +
	"walking backward."

// 任务状态
const (
	TaskStatusSubmitted  = "submitted"
	TaskStatusProcessing = "processing"
	TaskStatusSucceed    = "succeed"
	TaskStatusFailed     = "failed"
	TaskStatusCanceled   = "canceled"
)

// Config 多米图生视频配置
type Config struct {
	APIKey         string        // API Key（必需）
	BaseURL        string        // API 基础 URL（可选，默认: http://duomiapi.com）
	Model          string        // 模型名称（可选，默认: kling-v2-1）
	Mode           string        // 生成模式（可选，默认: std）
	Duration       int           // 视频时长秒数（可选，默认: 5）
	AspectRatio    string        // 画面比例（可选，默认: 16:9）
	CFGScale       float64       // 提示词相关性（可选，默认: 0.5）
	NegativePrompt string        // 负向提示词（可选，默认见 DefaultNegativePrompt）
	PollInterval   time.Duration // 轮询间隔（可选，默认: 10s）
	MaxWait        time.Duration // 最长等待（可选，默认: 30m）
	Timeout        time.Duration // 单次请求超时（可选，默认: 60s）
}

// ConfigFromEnv 从环境变量创建多米配置
// 支持的环境变量：
//   - DUOMI_API_KEY: API Key（必需）
func ConfigFromEnv() *Config {
	return &Config{
		APIKey: os.Getenv("DUOMI_API_KEY"),
	}
}

// TaskState 任务轮询结果
type TaskState struct {
	Status   string // submitted/processing/succeed/failed/canceled
	VideoURL string // succeed 时的视频下载地址
}

// Client 多米图生视频客户端
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	mode           string
	duration       int
	aspectRatio    string
	cfgScale       float64
	negativePrompt string
	pollInterval   time.Duration
	maxWait        time.Duration
	httpClient     *http.Client
}

// NewClient 创建多米图生视频客户端
func NewClient(config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("DUOMI_API_KEY is required")
	}
	c := &Client{
		apiKey:         config.APIKey,
		baseURL:        strings.TrimSuffix(config.BaseURL, "/"),
		model:          config.Model,
		mode:           config.Mode,
		duration:       config.Duration,
		aspectRatio:    config.AspectRatio,
		cfgScale:       config.CFGScale,
		negativePrompt: config.NegativePrompt,
		pollInterval:   config.PollInterval,
		maxWait:        config.MaxWait,
	}
	if c.baseURL == "" {
		c.baseURL = "http://duomiapi.com"
	}
	if c.model == "" {
		c.model = "kling-v2-1"
	}
	if c.mode == "" {
		c.mode = "std"
	}
	if c.duration <= 0 {
		c.duration = 5
	}
	if c.aspectRatio == "" {
		c.aspectRatio = "16:9"
	}
	if c.cfgScale <= 0 {
		c.cfgScale = 0.5
	}
	if c.negativePrompt == "" {
		c.negativePrompt = DefaultNegativePrompt
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 10 * time.Second
	}
	if c.maxWait <= 0 {
		c.maxWait = 30 * time.Minute
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c, nil
}

// CreateTask 提交图生视频任务，返回任务 ID
func (c *Client) CreateTask(ctx context.Context, imageURL, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model_name":      c.model,
		"mode":            c.mode,
		"duration":        c.duration,
		"image":           imageURL,
		"image_tail":      "",
		"image_list":      []string{},
		"aspect_ratio":    c.aspectRatio,
		"prompt":          prompt,
		"negative_prompt": c.negativePrompt,
		"cfg_scale":       c.cfgScale,
		"callback_url":    "",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	apiURL := c.baseURL + "/api/video/kling/v1/videos/image2video"
	log.Debug().
		Str("api_url", apiURL).
		Str("model", c.model).
		Str("image", imageURL).
		Msg("创建多米视频生成任务")

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	// 多米使用裸 API Key，无 Bearer 前缀
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
			Msg("多米 API 请求失败")
		return "", fmt.Errorf("API request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Code != 0 {
		return "", fmt.Errorf("duomi API error: %s (code %d)", apiResp.Message, apiResp.Code)
	}
	if apiResp.Data.TaskID == "" {
		return "", fmt.Errorf("task ID is empty in response")
	}
	return apiResp.Data.TaskID, nil
}

// GetTask 查询任务状态
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskState, error) {
	apiURL := fmt.Sprintf("%s/api/video/kling/v1/videos/image2video/%s", c.baseURL, taskID)

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TaskStatus string `json:"task_status"`
			TaskResult struct {
				Videos []struct {
					URL string `json:"url"`
				} `json:"videos"`
			} `json:"task_result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("duomi API error: %s (code %d)", apiResp.Message, apiResp.Code)
	}

	state := &TaskState{Status: apiResp.Data.TaskStatus}
	if len(apiResp.Data.TaskResult.Videos) > 0 {
		state.VideoURL = apiResp.Data.TaskResult.Videos[0].URL
	}
	return state, nil
}

// GenerateVideo 提交任务并轮询至终态，成功时下载视频数据
func (c *Client) GenerateVideo(ctx context.Context, imageURL, prompt string) ([]byte, error) {
	taskID, err := c.CreateTask(ctx, imageURL, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to create video task: %w", err)
	}
	log.Info().Str("task_id", taskID).Msg("多米视频生成任务提交成功")

	start := time.Now()
	for {
		if time.Since(start) > c.maxWait {
			return nil, fmt.Errorf("video generation timeout after %v", c.maxWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		state, err := c.GetTask(ctx, taskID)
		if err != nil {
			// 查询失败不立即终止，下一轮重试
			log.Warn().Str("task_id", taskID).Err(err).Msg("查询任务状态失败，继续等待")
			continue
		}

		log.Debug().
			Str("task_id", taskID).
			Str("status", state.Status).
			Float64("elapsed_seconds", time.Since(start).Seconds()).
			Msg("视频生成中，继续等待...")

		switch state.Status {
		case TaskStatusSucceed:
			if state.VideoURL == "" {
				return nil, fmt.Errorf("task succeeded but video URL is empty")
			}
			data, err := c.downloadVideo(ctx, state.VideoURL)
			if err != nil {
				return nil, fmt.Errorf("failed to download video: %w", err)
			}
			log.Info().Str("task_id", taskID).Int("size", len(data)).Msg("视频生成成功并下载完成")
			return data, nil
		case TaskStatusFailed, TaskStatusCanceled:
			return nil, fmt.Errorf("video generation task %s: task_id=%s", state.Status, taskID)
		}
	}
}

// downloadVideo 下载生成的视频
func (c *Client) downloadVideo(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download video: status code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
