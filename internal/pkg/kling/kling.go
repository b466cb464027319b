// Package kling 封装可灵官方 API 的图生视频客户端（JWT 鉴权）
package kling

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"reel/internal/pkg/duomi"
)

// DefaultBaseURL 北京区 API 入口
const DefaultBaseURL = "https://api-beijing.klingai.com"

// tokenTTL 签发的 JWT 有效期
const tokenTTL = 30 * time.Minute

// Config 可灵客户端配置
type Config struct {
	AccessKey      string        // Access Key（必需）
	SecretKey      string        // Secret Key（必需，用于签名 JWT）
	BaseURL        string        // API 基础 URL（可选，默认: https://api-beijing.klingai.com）
	Model          string        // 模型名称（可选，默认: kling-v2-1）
	Mode           string        // 生成模式（可选，默认: std）
	Duration       string        // 视频时长秒数，API 要求字符串（可选，默认: "5"）
	CFGScale       float64       // 提示词相关性（可选，默认: 0.5）
	NegativePrompt string        // 负向提示词（可选，默认同多米）
	PollInterval   time.Duration // 轮询间隔（可选，默认: 10s）
	MaxWait        time.Duration // 最长等待（可选，默认: 30m）
	Timeout        time.Duration // 单次请求超时（可选，默认: 60s）
}

// ConfigFromEnv 从环境变量创建可灵配置
// 支持的环境变量：
//   - KLING_ACCESS_KEY: Access Key（必需）
//   - KLING_SECRET_KEY: Secret Key（必需）
func ConfigFromEnv() *Config {
	return &Config{
		AccessKey: os.Getenv("KLING_ACCESS_KEY"),
		SecretKey: os.Getenv("KLING_SECRET_KEY"),
	}
}

// Client 可灵图生视频客户端
type Client struct {
	accessKey      string
	secretKey      string
	baseURL        string
	model          string
	mode           string
	duration       string
	cfgScale       float64
	negativePrompt string
	pollInterval   time.Duration
	maxWait        time.Duration
	httpClient     *http.Client
}

// NewClient 创建可灵客户端
func NewClient(config *Config) (*Client, error) {
	if config.AccessKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("KLING_ACCESS_KEY and KLING_SECRET_KEY are required")
	}
	c := &Client{
		accessKey:      config.AccessKey,
		secretKey:      config.SecretKey,
		baseURL:        strings.TrimSuffix(config.BaseURL, "/"),
		model:          config.Model,
		mode:           config.Mode,
		duration:       config.Duration,
		cfgScale:       config.CFGScale,
		negativePrompt: config.NegativePrompt,
		pollInterval:   config.PollInterval,
		maxWait:        config.MaxWait,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = "kling-v2-1"
	}
	if c.mode == "" {
		c.mode = "std"
	}
	if c.duration == "" {
		c.duration = "5"
	}
	if c.cfgScale <= 0 {
		c.cfgScale = 0.5
	}
	if c.negativePrompt == "" {
		c.negativePrompt = duomi.DefaultNegativePrompt
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

// signToken 按可灵规范签发短期 JWT：iss 为 AK，HS256 用 SK 签名
func (c *Client) signToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.accessKey,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign kling token: %w", err)
	}
	return signed, nil
}

// CreateTask 提交图生视频任务，图片以 base64 传入，返回任务 ID
func (c *Client) CreateTask(ctx context.Context, imageData []byte, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model_name":      c.model,
		"mode":            c.mode,
		"duration":        c.duration,
		"image":           base64.StdEncoding.EncodeToString(imageData),
		"prompt":          prompt,
		"negative_prompt": c.negativePrompt,
		"cfg_scale":       c.cfgScale,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	apiURL := c.baseURL + "/v1/videos/image2video"
	log.Debug().
		Str("api_url", apiURL).
		Str("model", c.model).
		Int("image_bytes", len(imageData)).
		Msg("创建可灵视频生成任务")

	body, err := c.doRequest(ctx, "POST", apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}

	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Code != 0 {
		return "", fmt.Errorf("kling API error: %s (code %d)", apiResp.Message, apiResp.Code)
	}
	if apiResp.Data.TaskID == "" {
		return "", fmt.Errorf("task ID is empty in response")
	}
	return apiResp.Data.TaskID, nil
}

// GetTask 查询任务状态
func (c *Client) GetTask(ctx context.Context, taskID string) (*duomi.TaskState, error) {
	apiURL := fmt.Sprintf("%s/v1/videos/image2video/%s", c.baseURL, taskID)

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
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
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("kling API error: %s (code %d)", apiResp.Message, apiResp.Code)
	}

	state := &duomi.TaskState{Status: apiResp.Data.TaskStatus}
	if len(apiResp.Data.TaskResult.Videos) > 0 {
		state.VideoURL = apiResp.Data.TaskResult.Videos[0].URL
	}
	return state, nil
}

// GenerateVideo 提交任务并轮询至终态，成功时下载视频数据
func (c *Client) GenerateVideo(ctx context.Context, imageData []byte, prompt string) ([]byte, error) {
	taskID, err := c.CreateTask(ctx, imageData, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to create video task: %w", err)
	}
	log.Info().Str("task_id", taskID).Msg("可灵视频生成任务提交成功")

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
			log.Warn().Str("task_id", taskID).Err(err).Msg("查询任务状态失败，继续等待")
			continue
		}

		log.Debug().
			Str("task_id", taskID).
			Str("status", state.Status).
			Float64("elapsed_seconds", time.Since(start).Seconds()).
			Msg("视频生成中，继续等待...")

		switch state.Status {
		case duomi.TaskStatusSucceed:
			if state.VideoURL == "" {
				return nil, fmt.Errorf("task succeeded but video URL is empty")
			}
			data, err := c.downloadVideo(ctx, state.VideoURL)
			if err != nil {
				return nil, fmt.Errorf("failed to download video: %w", err)
			}
			log.Info().Str("task_id", taskID).Int("size", len(data)).Msg("视频生成成功并下载完成")
			return data, nil
		case duomi.TaskStatusFailed, duomi.TaskStatusCanceled:
			return nil, fmt.Errorf("video generation task %s: task_id=%s", state.Status, taskID)
		}
	}
}

// doRequest 发送带 JWT 鉴权的请求并读取响应体
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body io.Reader) ([]byte, error) {
	token, err := c.signToken()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("url", apiURL).
			Str("response_body", string(respBody)).
			Msg("可灵 API 请求失败")
		return nil, fmt.Errorf("API request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
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
