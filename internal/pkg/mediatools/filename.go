package mediatools

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const maxFilenameLen = 50

var (
	unsafeChars  = regexp.MustCompile(`[<>:"/\\|?*,.]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// SafeFilename 将标题清洗为跨平台安全的文件名片段
func SafeFilename(title string) string {
	s := unsafeChars.ReplaceAllString(title, "_")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if r := []rune(s); len(r) > maxFilenameLen {
		s = string(r[:maxFilenameLen])
	}
	return s
}

// Timestamp 当前时间的毫秒级文件名时间戳（YYYYMMDD_HHMMSS_mmm）
func Timestamp() string {
	return FormatTimestamp(time.Now())
}

// FormatTimestamp 格式化毫秒级文件名时间戳
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405") + fmt.Sprintf("_%03d", t.Nanosecond()/int(time.Millisecond))
}

// NameSet 同一素材派生出的三个落盘文件名
type NameSet struct {
	JSON  string
	Image string
	Video string
}

// BuildNames 由描述性名称与图片扩展名生成 JSON/图片/视频文件名
func BuildNames(descriptive, ext string) NameSet {
	return BuildNamesAt(descriptive, ext, time.Now())
}

// BuildNamesAt 指定时间版本（测试用）
func BuildNamesAt(descriptive, ext string, now time.Time) NameSet {
	safe := SafeFilename(descriptive)
	if safe == "" {
		safe = "untitled"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	stem := safe + "_" + FormatTimestamp(now)
	return NameSet{
		JSON:  stem + ".json",
		Image: stem + ext,
		Video: stem + ".mp4",
	}
}

// DescriptiveNameFromFilename 从生成的文件名还原描述性名称：
// 去掉扩展名和末尾三段时间戳，下划线转空格并按词首字母大写
func DescriptiveNameFromFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")
	if len(parts) >= 3 {
		parts = parts[:len(parts)-3]
	}
	return titleWords(strings.ReplaceAll(strings.Join(parts, "_"), "_", " "))
}

// titleWords 每个空格分隔词首字母大写，其余小写
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
