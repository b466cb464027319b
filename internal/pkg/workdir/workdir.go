// Package workdir 流水线的工作目录树
//
// 目录布局（相对 base）：
//
//	img/ready            待处理图片（watermark/、no-watermark/ 为去水印中转）
//	img/uploaded         已上传并回验的托管副本
//	img/generated        已产出视频的源图
//	img/processed        文生图流程中处理完的原始图
//	out                  生成的视频
//	out/img              VEO 流程的 Imagen 配图
//	out/generated_images 文生图产物（非 --ready 模式）
//	out/prompt_json      提示词 JSON 队列（used/ 子目录存已消费的）
//	out/failed_json      校验失败的 JSON 与错误说明
//	logs data tmp docs   运行日志、数据库、临时下载、导出
package workdir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// readyExtensions 按词干找图时依次尝试的扩展名
var readyExtensions = []string{".png", ".jpg", ".jpeg"}

// Workdir 工作目录树
type Workdir struct {
	base string
}

// New 创建工作目录树，base 为根目录
func New(base string) *Workdir {
	return &Workdir{base: base}
}

// Base 根目录
func (w *Workdir) Base() string { return w.base }

// Ready 待处理图片目录
func (w *Workdir) Ready() string { return filepath.Join(w.base, "img", "ready") }

// Uploaded 托管副本目录
func (w *Workdir) Uploaded() string { return filepath.Join(w.base, "img", "uploaded") }

// Generated 已产出视频的源图目录
func (w *Workdir) Generated() string { return filepath.Join(w.base, "img", "generated") }

// Processed 文生图已处理的原图目录
func (w *Workdir) Processed() string { return filepath.Join(w.base, "img", "processed") }

// Watermark 待去水印图片目录
func (w *Workdir) Watermark() string { return filepath.Join(w.Ready(), "watermark") }

// NoWatermark 去水印产物目录
func (w *Workdir) NoWatermark() string { return filepath.Join(w.Ready(), "no-watermark") }

// Out 视频产物目录
func (w *Workdir) Out() string { return filepath.Join(w.base, "out") }

// OutImg VEO 配图目录
func (w *Workdir) OutImg() string { return filepath.Join(w.base, "out", "img") }

// GeneratedImages 文生图产物目录
func (w *Workdir) GeneratedImages() string { return filepath.Join(w.base, "out", "generated_images") }

// PromptJSON 提示词 JSON 队列目录
func (w *Workdir) PromptJSON() string { return filepath.Join(w.base, "out", "prompt_json") }

// UsedJSON 已消费 JSON 目录
func (w *Workdir) UsedJSON() string { return filepath.Join(w.PromptJSON(), "used") }

// FailedJSON 校验失败 JSON 目录
func (w *Workdir) FailedJSON() string { return filepath.Join(w.base, "out", "failed_json") }

// Logs 运行日志目录
func (w *Workdir) Logs() string { return filepath.Join(w.base, "logs") }

// Data 数据库目录
func (w *Workdir) Data() string { return filepath.Join(w.base, "data") }

// Tmp 临时下载目录
func (w *Workdir) Tmp() string { return filepath.Join(w.base, "tmp") }

// Docs 导出目录
func (w *Workdir) Docs() string { return filepath.Join(w.base, "docs") }

// EnsureAll 创建整棵目录树
func (w *Workdir) EnsureAll() error {
	dirs := []string{
		w.Ready(), w.Uploaded(), w.Generated(), w.Processed(),
		w.Watermark(), w.NoWatermark(),
		w.Out(), w.OutImg(), w.GeneratedImages(),
		w.PromptJSON(), w.UsedJSON(), w.FailedJSON(),
		w.Logs(), w.Data(), w.Tmp(), w.Docs(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// IsImageFile 扩展名是否是受支持的图片格式
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListImages 列出目录下的图片文件，按文件名升序，返回完整路径
func (w *Workdir) ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ListImagesByModTime 列出目录下的图片文件，按修改时间旧→新
// 跳过 error_message 前缀的残留文件
func (w *Workdir) ListImagesByModTime(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	type fileWithTime struct {
		path    string
		modTime time.Time
	}
	var files []fileWithTime
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(entry.Name()), "error_message") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileWithTime{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, nil
}

// ListPromptFiles 列出队列里的提示词 JSON，按文件名升序，返回完整路径
func (w *Workdir) ListPromptFiles() ([]string, error) {
	return w.listJSON(w.PromptJSON())
}

// ListUsedPromptFiles 列出 used/ 下已消费的 JSON
func (w *Workdir) ListUsedPromptFiles() ([]string, error) {
	return w.listJSON(w.UsedJSON())
}

func (w *Workdir) listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// FindReadyImage 在 img/ready 下按提示词文件名找源图
// 先试 picName 精确命中，再按词干依次试 .png/.jpg/.jpeg
func (w *Workdir) FindReadyImage(picName string) (string, bool) {
	exact := filepath.Join(w.Ready(), picName)
	if fileExists(exact) {
		return exact, true
	}
	stem := strings.TrimSuffix(picName, filepath.Ext(picName))
	for _, ext := range readyExtensions {
		candidate := filepath.Join(w.Ready(), stem+ext)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// MoveToUsed 把消费完的 JSON 移入 used/
func (w *Workdir) MoveToUsed(jsonPath string) (string, error) {
	return Move(jsonPath, w.UsedJSON())
}

// MoveToFailed 把失败的 JSON 移入 failed_json/ 并写错误说明侧文件
func (w *Workdir) MoveToFailed(jsonPath, reason string) (string, error) {
	dst, err := Move(jsonPath, w.FailedJSON())
	if err != nil {
		return "", err
	}

	errPath := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".error.txt"
	content := fmt.Sprintf("Error: %s\nTimestamp: %s\n", reason, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(errPath, []byte(content), 0o644); err != nil {
		log.Warn().Str("path", errPath).Err(err).Msg("写入错误说明文件失败")
	}
	return dst, nil
}

// MoveToGenerated 把出过视频的源图移入 img/generated
func (w *Workdir) MoveToGenerated(imagePath string) (string, error) {
	return Move(imagePath, w.Generated())
}

// MoveToProcessed 把处理完的原图移入 img/processed
func (w *Workdir) MoveToProcessed(imagePath string) (string, error) {
	return Move(imagePath, w.Processed())
}

// MoveToUploaded 把上传完的图片移入 img/uploaded
func (w *Workdir) MoveToUploaded(imagePath string) (string, error) {
	return Move(imagePath, w.Uploaded())
}

// Move 把文件移入目标目录，返回落点路径
// 源不存在而目标已存在时视为已移动过，直接返回；
// 目标重名时加时间戳后缀；跨设备时退化为拷贝加删除
func Move(src, dstDir string) (string, error) {
	name := filepath.Base(src)
	dst := filepath.Join(dstDir, name)

	if !fileExists(src) {
		if fileExists(dst) {
			log.Debug().Str("src", src).Str("dst", dst).Msg("文件已在目标目录，跳过移动")
			return dst, nil
		}
		return "", fmt.Errorf("source file not found: %s", src)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dstDir, err)
	}

	if fileExists(dst) {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		dst = filepath.Join(dstDir, fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), ext))
	}

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// 跨设备 rename 会失败，退化为拷贝
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("failed to remove source %s: %w", src, err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
