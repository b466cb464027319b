// Package freeimage 封装 freeimage.host 图床上传客户端
package freeimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL freeimage.host 上传接口
const DefaultBaseURL = "https://freeimage.host/api/1/upload"

// mimeTypes 按扩展名推断 MIME 类型，未知时回退 image/jpeg
var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// Config 图床上传配置
type Config struct {
	APIKey     string        // API Key（必需）
	BaseURL    string        // 上传接口 URL（可选，默认: https://freeimage.host/api/1/upload）
	Timeout    time.Duration // 单次请求超时（可选，默认: 30s）
	MaxRetries int           // 最大尝试次数（可选，默认: 3）
	RetryDelay time.Duration // 重试间隔（可选，默认: 1s）
}

// ConfigFromEnv 从环境变量创建图床上传配置
// 支持的环境变量：
//   - FREEIMAGE_API_KEY: API Key（必需）
func ConfigFromEnv() *Config {
	return &Config{
		APIKey: os.Getenv("FREEIMAGE_API_KEY"),
	}
}

// Result 单次上传结果
type Result struct {
	URL           string  // 图床访问 URL
	ImageID       string  // 图床侧图片 ID
	FileSizeBytes int64   // 本地文件大小
	UploadSeconds float64 // 上传耗时（秒）
}

// Client freeimage.host 上传客户端
type Client struct {
	apiKey     string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewClient 创建图床上传客户端
func NewClient(config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("FREEIMAGE_API_KEY is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// IsSupportedImage 判断扩展名是否在支持列表内
func IsSupportedImage(filename string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// MIMEType 按扩展名推断 MIME 类型
func MIMEType(filename string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "image/jpeg"
}

// Upload 上传本地图片文件，带重试
func (c *Client) Upload(ctx context.Context, imagePath string) (*Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	if !IsSupportedImage(imagePath) {
		return nil, fmt.Errorf("invalid image file type: %s", imagePath)
	}
	return c.UploadData(ctx, filepath.Base(imagePath), data)
}

// UploadData 上传内存中的图片数据，带重试
func (c *Client) UploadData(ctx context.Context, filename string, data []byte) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.uploadOnce(ctx, filename, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < c.maxRetries {
			log.Warn().
				Int("attempt", attempt).
				Str("filename", filename).
				Err(err).
				Msg("图片上传失败，即将重试")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("upload failed after %d attempts: %w", c.maxRetries, lastErr)
}

// uploadOnce 单次 multipart 上传
func (c *Client) uploadOnce(ctx context.Context, filename string, data []byte) (*Result, error) {
	start := time.Now()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("source", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.WriteField("key", c.apiKey); err != nil {
		return nil, fmt.Errorf("failed to write key field: %w", err)
	}
	if err := writer.WriteField("format", "json"); err != nil {
		return nil, fmt.Errorf("failed to write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiResp struct {
		StatusCode int             `json:"status_code"`
		Success    json.RawMessage `json:"success"`
		Image      struct {
			URL string `json:"url"`
			ID  string `json:"id"`
		} `json:"image"`
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %s", string(body))
	}

	if apiResp.StatusCode != http.StatusOK || len(apiResp.Success) == 0 || string(apiResp.Success) == "null" {
		msg := apiResp.Error.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("upload failed: %s (Code: %v)", msg, apiResp.Error.Code)
	}
	if apiResp.Image.URL == "" {
		return nil, fmt.Errorf("upload succeeded but image URL is empty")
	}

	elapsed := time.Since(start).Seconds()
	log.Debug().
		Str("filename", filename).
		Str("url", apiResp.Image.URL).
		Float64("seconds", elapsed).
		Msg("图片上传成功")

	return &Result{
		URL:           apiResp.Image.URL,
		ImageID:       apiResp.Image.ID,
		FileSizeBytes: int64(len(data)),
		UploadSeconds: elapsed,
	}, nil
}
