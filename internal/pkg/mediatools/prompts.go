// Package mediatools 提供媒体流水线的提示词模板与文件命名工具
package mediatools

import "fmt"

// ImagePromptInstruction 让多模态模型反推图片生成提示词
const ImagePromptInstruction = "Analyze this image and create a detailed image generation prompt " +
	"that could recreate this image. Focus on visual elements, style, composition, colors, " +
	"lighting, and atmosphere. Be specific and descriptive but concise. " +
	"This will be used for image generation."

// VideoPromptInstruction 让多模态模型产出图生视频的动态描述
const VideoPromptInstruction = "Based on this image, create a video generation prompt that describes " +
	"subtle movements, animations, or changes that could bring this static image to life. " +
	"Focus on natural movements like: breathing, hair/fabric swaying, light flickering, " +
	"particle effects, water movement, eye blinking, subtle camera movements, etc. " +
	"Keep it concise and focused on movement only, not static descriptions. " +
	"This will be used for video generation from the image."

// BriefDescriptionInstruction 提取图片主体的一两个词描述（用于命名）
const BriefDescriptionInstruction = "Provide a very brief, one or two word description of the main object in this image."

// WatermarkRemovalInstruction 图片编辑模型的去水印指令
const WatermarkRemovalInstruction = "Remove imgai.com watermark signature from upper left of the image"

// RefineInstruction 构造视频提示词润色指令
func RefineInstruction(original string) string {
	return "Refine the following video prompt for an image-to-video model. Focus exclusively on movement, " +
		"changes, human expression, or background alterations. Absolutely avoid any static image descriptions. " +
		"Keep it concise (under 100 words): " + original
}

// CreativeKind 创意提示词风格
type CreativeKind string

const (
	CreativeAggressive CreativeKind = "aggressive"
	CreativeSurreal    CreativeKind = "surreal"
	CreativeCinematic  CreativeKind = "cinematic"
)

// CreativeKinds 三种风格的生成顺序，对应 creative_video_prompt_1/2/3
var CreativeKinds = []CreativeKind{CreativeAggressive, CreativeSurreal, CreativeCinematic}

// CreativeInstruction 构造指定风格的创意提示词生成指令
func CreativeInstruction(kind CreativeKind, basePrompt string) string {
	switch kind {
	case CreativeAggressive:
		return fmt.Sprintf("Based on this image and the base prompt '%s', create an AGGRESSIVE and DYNAMIC video prompt "+
			"that focuses on intense, unexpected movements. Think of objects suddenly coming to life, dramatic "+
			"transformations, explosive energy, rapid changes, or supernatural phenomena. Make static objects move "+
			"in ways they shouldn't - buildings swaying, statues walking, water flowing upward, fire dancing wildly. "+
			"Focus purely on dramatic movement and action, not static descriptions. Keep under 100 words.", basePrompt)
	case CreativeSurreal:
		return fmt.Sprintf("Based on this image and the base prompt '%s', create a SURREAL and IMPOSSIBLE video prompt "+
			"that defies physics and reality. Imagine gravity reversing, time flowing backward, objects morphing into "+
			"other forms, colors bleeding and shifting, dimensions warping, or magical transformations. Make everything "+
			"move in dreamlike, impossible ways that challenge perception. Focus on fantastical movement only. "+
			"Keep under 100 words.", basePrompt)
	case CreativeCinematic:
		return fmt.Sprintf("Based on this image and the base prompt '%s', create a CINEMATIC and DRAMATIC video prompt "+
			"with movie-like camera movements and theatrical actions. Think of dramatic zoom-ins, sweeping camera "+
			"movements, characters performing unexpected actions, environmental storytelling through movement, "+
			"lighting changes that create mood, or action sequences. Make it feel like a movie scene with compelling "+
			"movement and visual storytelling. Focus on cinematic motion only. Keep under 100 words.", basePrompt)
	default:
		return basePrompt
	}
}

// CreativeFallback 生成失败时的占位提示词
func CreativeFallback(kind CreativeKind, basePrompt string) string {
	if basePrompt == "" {
		return fmt.Sprintf("Enhanced %s movement", kind)
	}
	return fmt.Sprintf("Enhanced %s movement based on: %s", kind, basePrompt)
}

// VideoActionInstruction VEO 流程的视频提示词润色附加要求
const VideoActionInstruction = "Do not describe the image. Focus on the action and narrative."

// SinglePromptInstruction 从一段文本中提取或润色出单条生成提示词。
// instruction 非空时走润色分支，附加该要求
func SinglePromptInstruction(purpose, instruction, text string) string {
	lead := fmt.Sprintf("Given the following text, extract the single most suitable and accurate prompt for %s generation. ", purpose)
	if instruction != "" {
		lead = fmt.Sprintf("Given the following text, refine the prompt for %s generation. %s ", purpose, instruction)
	}
	return lead +
		"Focus on clarity, conciseness, and effectiveness for a generative AI model. " +
		"Do not include any introductory or concluding remarks, just the prompt itself.\n\n" +
		"Text:\n" + text
}
