package status

import (
	"time"

	"reel/internal/model/media"
	httputil "reel/internal/pkg/http"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// ImageInfo 图片信息（用于响应）
type ImageInfo struct {
	ID                  int64   `json:"id"`                              // 图片ID
	OriginalFilename    string  `json:"original_filename"`               // 原始文件名
	FileSizeBytes       int64   `json:"file_size_bytes,omitempty"`       // 原图大小
	UploadURL           string  `json:"upload_url,omitempty"`            // 图床URL
	UploadedFilename    string  `json:"uploaded_filename,omitempty"`     // 回传副本文件名
	DownloadedSizeBytes int64   `json:"downloaded_size_bytes,omitempty"` // 回传副本大小
	ProcessingSeconds   float64 `json:"processing_seconds,omitempty"`    // 单图处理耗时
	Status              string  `json:"status"`                          // 状态：pending, uploading, success, failed, legacy
	ErrorMessage        string  `json:"error_message,omitempty"`         // 失败原因
	DescriptiveName     string  `json:"descriptive_name,omitempty"`      // 描述性名称
	OriginImageID       *int64  `json:"origin_image_id,omitempty"`       // 派生图的来源图ID
	CreatedAt           string  `json:"created_at"`                      // 创建时间
	UpdatedAt           string  `json:"updated_at"`                      // 更新时间
}

// toImageInfo 将 Image 实体转换为 ImageInfo
func toImageInfo(img *media.Image) ImageInfo {
	return ImageInfo{
		ID:                  img.ID,
		OriginalFilename:    img.OriginalFilename,
		FileSizeBytes:       img.FileSizeBytes,
		UploadURL:           img.UploadURL,
		UploadedFilename:    img.UploadedFilename,
		DownloadedSizeBytes: img.DownloadedSizeBytes,
		ProcessingSeconds:   img.ProcessingTimeSeconds,
		Status:              string(img.Status),
		ErrorMessage:        img.ErrorMessage,
		DescriptiveName:     img.DescriptiveName,
		OriginImageID:       img.OriginImageID,
		CreatedAt:           img.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           img.UpdatedAt.Format(time.RFC3339),
	}
}

// toImageInfoList 将 Image 列表转换为 ImageInfo 列表
func toImageInfoList(images []*media.Image) []ImageInfo {
	result := make([]ImageInfo, len(images))
	for i, img := range images {
		result[i] = toImageInfo(img)
	}
	return result
}

// VideoInfo 视频信息（用于响应）
type VideoInfo struct {
	ID                int64   `json:"id"`                           // 视频ID
	ImageID           int64   `json:"image_id"`                     // 来源图片ID
	VideoFilename     string  `json:"video_filename,omitempty"`     // 视频文件名
	PromptType        string  `json:"prompt_type"`                  // 提示词类型：base, refined, creative_1..3
	GenerationService string  `json:"generation_service,omitempty"` // 生成服务：duomi, kling, veo
	GenerationSeconds float64 `json:"generation_seconds,omitempty"` // 生成耗时
	FileSizeBytes     int64   `json:"file_size_bytes,omitempty"`    // 视频大小
	Status            string  `json:"status"`                       // 状态：pending, generating, completed, failed
	ErrorMessage      string  `json:"error_message,omitempty"`      // 失败原因
	CreatedAt         string  `json:"created_at"`                   // 创建时间
}

// toVideoInfo 将 Video 实体转换为 VideoInfo
func toVideoInfo(v *media.Video) VideoInfo {
	return VideoInfo{
		ID:                v.ID,
		ImageID:           v.ImageID,
		VideoFilename:     v.VideoFilename,
		PromptType:        string(v.PromptType),
		GenerationService: string(v.GenerationService),
		GenerationSeconds: v.GenerationTimeSeconds,
		FileSizeBytes:     v.FileSizeBytes,
		Status:            string(v.Status),
		ErrorMessage:      v.ErrorMessage,
		CreatedAt:         v.CreatedAt.Format(time.RFC3339),
	}
}

// toVideoInfoList 将 Video 列表转换为 VideoInfo 列表
func toVideoInfoList(videos []*media.Video) []VideoInfo {
	result := make([]VideoInfo, len(videos))
	for i, v := range videos {
		result[i] = toVideoInfo(v)
	}
	return result
}

// PromptInfo 提示词信息（用于响应）
type PromptInfo struct {
	ID                   int64  `json:"id"`                               // 提示词ID
	ImagePrompt          string `json:"image_prompt,omitempty"`           // 图片提示词
	VideoPrompt          string `json:"video_prompt,omitempty"`           // 视频提示词
	RefinedVideoPrompt   string `json:"refined_video_prompt,omitempty"`   // 润色后的视频提示词
	CreativeVideoPrompt1 string `json:"creative_video_prompt_1,omitempty"` // 创意变体1（激进动态）
	CreativeVideoPrompt2 string `json:"creative_video_prompt_2,omitempty"` // 创意变体2（超现实）
	CreativeVideoPrompt3 string `json:"creative_video_prompt_3,omitempty"` // 创意变体3（电影感）
}

// toPromptInfo 将 Prompt 实体转换为 PromptInfo
func toPromptInfo(p *media.Prompt) *PromptInfo {
	if p == nil {
		return nil
	}
	return &PromptInfo{
		ID:                   p.ID,
		ImagePrompt:          p.ImagePrompt,
		VideoPrompt:          p.VideoPrompt,
		RefinedVideoPrompt:   p.RefinedVideoPrompt,
		CreativeVideoPrompt1: p.CreativeVideoPrompt1,
		CreativeVideoPrompt2: p.CreativeVideoPrompt2,
		CreativeVideoPrompt3: p.CreativeVideoPrompt3,
	}
}
