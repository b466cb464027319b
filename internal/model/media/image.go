package media

import "time"

// Image 图片实体
// 说明：跟踪一张图片的完整生命周期（本地原图 → 图床URL → 回传校验副本）
type Image struct {
	ID                    int64        `json:"id"`
	Timestamp             string       `json:"timestamp,omitempty"`               // 流水线处理时刻（ISO8601）
	OriginalFilename      string       `json:"original_filename"`                 // 原始文件名
	OriginalPath          string       `json:"original_path,omitempty"`           // 原始文件路径
	FileSizeBytes         int64        `json:"file_size_bytes,omitempty"`         // 原图大小
	UploadURL             string       `json:"upload_url,omitempty"`              // 图床URL
	UploadedFilename      string       `json:"uploaded_filename,omitempty"`       // 回传副本文件名（描述名+时间戳）
	UploadedPath          string       `json:"uploaded_path,omitempty"`           // 回传副本路径
	DownloadedSizeBytes   int64        `json:"downloaded_size_bytes,omitempty"`   // 回传副本大小（校验用）
	ProcessingTimeSeconds float64      `json:"processing_time_seconds,omitempty"` // 单图处理耗时
	Status                UploadStatus `json:"status"`
	ErrorMessage          string       `json:"error_message,omitempty"`
	DescriptiveName       string       `json:"descriptive_name,omitempty"` // LLM 给出的简短描述名
	ProcessedPath         string       `json:"processed_path,omitempty"`   // 处理后留存路径（重传修复用）
	OriginImageID         *int64       `json:"origin_image_id,omitempty"`  // 派生图的来源图ID（原图为 NULL）
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// IsOriginal 是否为原始图片（非文生图派生）
func (i *Image) IsOriginal() bool {
	return i.OriginImageID == nil
}
