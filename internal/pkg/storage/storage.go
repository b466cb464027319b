package storage

import (
	"context"
	"io"
	"time"
)

// Storage 成品归档存储接口
// 流水线在视频/配图生成完成后按需把成品写入归档，状态接口用它签发下载链接
type Storage interface {
	// Upload 上传归档文件（服务端上传）
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 读取归档文件
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetPresignedDownloadURL 获取限时下载URL
	GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete 删除归档文件
	Delete(ctx context.Context, key string) error

	// Exists 检查归档文件是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetFileInfo 获取归档文件信息
	GetFileInfo(ctx context.Context, key string) (*FileInfo, error)

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// FileInfo 文件信息
type FileInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// VideoKey 视频成品的归档键
func VideoKey(filename string) string {
	return "videos/" + filename
}

// ImageKey 图片成品的归档键
func ImageKey(filename string) string {
	return "images/" + filename
}
