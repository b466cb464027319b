package media

import "time"

// Video 视频实体
// 说明：一次视频生成任务的状态与产物
type Video struct {
	ID                    int64          `json:"id"`
	ImageID               int64          `json:"image_id"`
	PromptID              *int64         `json:"prompt_id,omitempty"`
	VideoFilename         string         `json:"video_filename,omitempty"`
	VideoPath             string         `json:"video_path,omitempty"`
	PromptUsed            string         `json:"prompt_used,omitempty"` // 实际提交给服务的提示词
	PromptType            PromptType     `json:"prompt_type"`
	GenerationService     Service        `json:"generation_service,omitempty"`
	GenerationTimeSeconds float64        `json:"generation_time_seconds,omitempty"`
	FileSizeBytes         int64          `json:"file_size_bytes,omitempty"`
	Status                VideoStatus    `json:"status"`
	ErrorMessage          string         `json:"error_message,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	Metadata              map[string]any `json:"metadata,omitempty"` // 任务ID、日志路径等附加信息
}

// VideoUpdate 终态更新字段（nil 表示保留原值，COALESCE 语义）
type VideoUpdate struct {
	Status                VideoStatus
	VideoFilename         *string
	VideoPath             *string
	GenerationTimeSeconds *float64
	FileSizeBytes         *int64
	ErrorMessage          *string
}

// PendingVideo 待生成视频及其上下文（JOIN images/prompts）
type PendingVideo struct {
	Video
	OriginalFilename string `json:"original_filename"`
	UploadURL        string `json:"upload_url,omitempty"`
	UploadedPath     string `json:"uploaded_path,omitempty"`
	VideoPrompt      string `json:"video_prompt,omitempty"`
	RefinedPrompt    string `json:"refined_video_prompt,omitempty"`
}
