package medialog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// 视频生成日志的结果状态
const (
	VideoStatusSuccess = "success"
	VideoStatusFailure = "failure"
)

// VideoEntry 视频生成日志条目，一行一个 JSON 对象
// 缺失的字段写入 "N/A"，与历史日志口径一致
type VideoEntry struct {
	Timestamp      string  `json:"timestamp"`
	ImageUsed      string  `json:"image_used"`
	VideoName      string  `json:"video_name"`
	ProcessingSecs float64 `json:"processing_duration_seconds"`
	JSONFilePath   string  `json:"json_file_path"`
	Status         string  `json:"status"`
}

// VideoJSONL 视频生成日志（logs/video_generation_log.jsonl）
type VideoJSONL struct {
	path string
}

// NewVideoJSONL 创建日志写入器，path 为 JSONL 文件路径
func NewVideoJSONL(path string) *VideoJSONL {
	return &VideoJSONL{path: path}
}

// Path 日志文件路径
func (l *VideoJSONL) Path() string {
	return l.path
}

// Append 追加一条生成记录
func (l *VideoJSONL) Append(entry *VideoEntry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format(time.RFC3339)
	}
	entry.ImageUsed = orNA(entry.ImageUsed)
	entry.VideoName = orNA(entry.VideoName)
	entry.JSONFilePath = orNA(entry.JSONFilePath)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// Read 读取全部条目，无法解析的行跳过并告警
func (l *VideoJSONL) Read() ([]*VideoEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var entries []*VideoEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry VideoEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Warn().Str("file", l.path).Int("line", line).Err(err).Msg("日志行解析失败，跳过")
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return entries, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
