package media

import "time"

// Prompt 提示词实体
// 说明：一张图片对应一条提示词记录，保存 LLM 派生的各个变体
type Prompt struct {
	ID                   int64     `json:"id"`
	ImageID              int64     `json:"image_id"`
	ImagePrompt          string    `json:"image_prompt,omitempty"`           // 图像生成提示词
	VideoPrompt          string    `json:"video_prompt,omitempty"`           // 基础视频提示词
	RefinedVideoPrompt   string    `json:"refined_video_prompt,omitempty"`   // 精炼视频提示词
	CreativeVideoPrompt1 string    `json:"creative_video_prompt_1,omitempty"` // 激进动态变体
	CreativeVideoPrompt2 string    `json:"creative_video_prompt_2,omitempty"` // 超现实变体
	CreativeVideoPrompt3 string    `json:"creative_video_prompt_3,omitempty"` // 电影感变体
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ByType 按类型取提示词文本，base 缺失时返回空串
func (p *Prompt) ByType(t PromptType) string {
	switch t {
	case PromptTypeBase:
		return p.VideoPrompt
	case PromptTypeRefined:
		return p.RefinedVideoPrompt
	case PromptTypeCreative1:
		return p.CreativeVideoPrompt1
	case PromptTypeCreative2:
		return p.CreativeVideoPrompt2
	case PromptTypeCreative3:
		return p.CreativeVideoPrompt3
	}
	return ""
}

// PromptFile 提示词 JSON 文件（out/prompt_json 下的队列条目）
// pic_name 与 video_name 共享同一个 "描述名_时间戳" 词干
type PromptFile struct {
	PicName              string `json:"pic_name"`
	VideoName            string `json:"video_name"`
	VideoPrompt          string `json:"video_prompt"`
	ImagePrompt          string `json:"image_prompt"`
	ImageURL             string `json:"image_url"`
	RefinedVideoPrompt   string `json:"refined_video_prompt,omitempty"`
	CreativeVideoPrompt1 string `json:"creative_video_prompt_1,omitempty"`
	CreativeVideoPrompt2 string `json:"creative_video_prompt_2,omitempty"`
	CreativeVideoPrompt3 string `json:"creative_video_prompt_3,omitempty"`
}

// NeedsBackfill 是否缺少精炼/创意提示词字段
func (f *PromptFile) NeedsBackfill() bool {
	return f.RefinedVideoPrompt == "" ||
		f.CreativeVideoPrompt1 == "" ||
		f.CreativeVideoPrompt2 == "" ||
		f.CreativeVideoPrompt3 == ""
}

// Creative 按序号（1-3）取创意变体，越界返回空串
func (f *PromptFile) Creative(n int) string {
	switch n {
	case 1:
		return f.CreativeVideoPrompt1
	case 2:
		return f.CreativeVideoPrompt2
	case 3:
		return f.CreativeVideoPrompt3
	}
	return ""
}

// SetCreative 按序号（1-3）写创意变体，越界忽略
func (f *PromptFile) SetCreative(n int, text string) {
	switch n {
	case 1:
		f.CreativeVideoPrompt1 = text
	case 2:
		f.CreativeVideoPrompt2 = text
	case 3:
		f.CreativeVideoPrompt3 = text
	}
}
