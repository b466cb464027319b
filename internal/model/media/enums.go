package media

// UploadStatus 图片上传状态（images.status）
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"   // 待处理
	UploadStatusUploading UploadStatus = "uploading" // 上传中
	UploadStatusSuccess   UploadStatus = "success"   // 成功
	UploadStatusFailed    UploadStatus = "failed"    // 失败
	UploadStatusLegacy    UploadStatus = "legacy"    // 历史迁移占位
)

// String 返回状态的字符串表示
func (s UploadStatus) String() string {
	return string(s)
}

// Valid 判断是否为已定义的上传状态
func (s UploadStatus) Valid() bool {
	switch s {
	case UploadStatusPending, UploadStatusUploading, UploadStatusSuccess, UploadStatusFailed, UploadStatusLegacy:
		return true
	}
	return false
}

// VideoStatus 视频生成状态（videos.status）
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"    // 待生成
	VideoStatusGenerating VideoStatus = "generating" // 生成中
	VideoStatusCompleted  VideoStatus = "completed"  // 已完成
	VideoStatusFailed     VideoStatus = "failed"     // 失败
)

// String 返回状态的字符串表示
func (s VideoStatus) String() string {
	return string(s)
}

// Valid 判断是否为已定义的视频状态
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusPending, VideoStatusGenerating, VideoStatusCompleted, VideoStatusFailed:
		return true
	}
	return false
}

// NormalizeVideoStatus 规范化外部来源（日志/历史数据）的视频状态
// success→completed, failure→failed, processing→generating，未知值归为 pending
func NormalizeVideoStatus(raw string) VideoStatus {
	switch raw {
	case "success", "succeed", "completed":
		return VideoStatusCompleted
	case "failure", "failed", "canceled":
		return VideoStatusFailed
	case "processing", "generating", "submitted":
		return VideoStatusGenerating
	case "pending", "":
		return VideoStatusPending
	default:
		return VideoStatusPending
	}
}

// PromptType 视频使用的提示词类型（videos.prompt_type）
type PromptType string

const (
	PromptTypeBase      PromptType = "base"       // 原始视频提示词
	PromptTypeRefined   PromptType = "refined"    // 精炼后的提示词
	PromptTypeCreative1 PromptType = "creative_1" // 激进动态变体
	PromptTypeCreative2 PromptType = "creative_2" // 超现实变体
	PromptTypeCreative3 PromptType = "creative_3" // 电影感变体
)

// String 返回提示词类型的字符串表示
func (t PromptType) String() string {
	return string(t)
}

// ParsePromptType 解析提示词类型
func ParsePromptType(raw string) (PromptType, bool) {
	switch PromptType(raw) {
	case PromptTypeBase, PromptTypeRefined, PromptTypeCreative1, PromptTypeCreative2, PromptTypeCreative3:
		return PromptType(raw), true
	}
	return "", false
}

// Service 视频生成服务（videos.generation_service）
type Service string

const (
	ServiceDuomi Service = "duomi" // Duomi 可灵代理
	ServiceKling Service = "kling" // 可灵直连
	ServiceVeo   Service = "veo"   // Google VEO
)

// String 返回服务的字符串表示
func (s Service) String() string {
	return string(s)
}

// ParseService 解析服务名
func ParseService(raw string) (Service, bool) {
	switch Service(raw) {
	case ServiceDuomi, ServiceKling, ServiceVeo:
		return Service(raw), true
	}
	return "", false
}
