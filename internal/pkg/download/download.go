// Package download HTTP 文件下载器，带重试与大小上限
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Config 下载器配置
type Config struct {
	Timeout    time.Duration // 单次请求超时（可选，默认: 30s）
	MaxRetries int           // 最大尝试次数（可选，默认: 3）
	RetryDelay time.Duration // 重试间隔（可选，默认: 1s）
	MaxSizeMB  int           // 单文件大小上限 MB，0 表示不限制
}

// Client 下载客户端
type Client struct {
	maxRetries int
	retryDelay time.Duration
	maxBytes   int64
	httpClient *http.Client
}

// NewClient 创建下载客户端
func NewClient(config *Config) *Client {
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
	var maxBytes int64
	if config.MaxSizeMB > 0 {
		maxBytes = int64(config.MaxSizeMB) << 20
	}
	return &Client{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch 下载到内存，带重试
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		data, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt < c.maxRetries {
			log.Warn().
				Int("attempt", attempt).
				Str("url", url).
				Err(err).
				Msg("下载失败，即将重试")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("download failed after %d attempts: %w", c.maxRetries, lastErr)
}

// ToFile 下载到指定路径，返回写入字节数
func (c *Client) ToFile(ctx context.Context, url, destPath string) (int64, error) {
	data, err := c.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return int64(len(data)), nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status code %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("download exceeds size limit: %d bytes", c.maxBytes)
	}
	return data, nil
}
