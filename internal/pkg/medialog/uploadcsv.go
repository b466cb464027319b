// Package medialog 流水线的 CSV / JSONL 运行日志
// 日志既是人工排障记录，也是断点续传与对账的数据源
package medialog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

var uploadHeader = []string{
	"timestamp", "original_filename", "file_size_bytes",
	"upload_url", "image_size_after_download", "json_filename",
	"downloaded_filename", "processing_time_seconds", "status", "error_message",
}

// UploadEntry 解析流水线处理一张图片的结果行
type UploadEntry struct {
	Timestamp          time.Time
	OriginalFilename   string
	FileSizeBytes      int64
	UploadURL          string
	DownloadedSize     int64
	JSONFilename       string
	DownloadedFilename string
	ProcessingSeconds  float64
	Success            bool
	ErrorMessage       string
}

// UploadCSV 图片处理日志（logs/image_uploading.csv）
type UploadCSV struct {
	path string
}

// NewUploadCSV 创建日志写入器，path 为 CSV 文件路径
func NewUploadCSV(path string) *UploadCSV {
	return &UploadCSV{path: path}
}

// Path 日志文件路径
func (c *UploadCSV) Path() string {
	return c.path
}

// Append 追加一行处理结果，文件不存在时先写表头
func (c *UploadCSV) Append(entry *UploadEntry) error {
	record := []string{
		entry.Timestamp.Format(time.RFC3339),
		entry.OriginalFilename,
		formatInt(entry.FileSizeBytes),
		entry.UploadURL,
		formatInt(entry.DownloadedSize),
		entry.JSONFilename,
		entry.DownloadedFilename,
		formatSeconds(entry.ProcessingSeconds),
		uploadStatus(entry.Success),
		entry.ErrorMessage,
	}
	return appendCSV(c.path, uploadHeader, record)
}

// Read 读取全部历史行，跳过表头与无法解析的行
func (c *UploadCSV) Read() ([]*UploadEntry, error) {
	records, err := readCSV(c.path, len(uploadHeader))
	if err != nil {
		return nil, err
	}

	entries := make([]*UploadEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, &UploadEntry{
			Timestamp:          parseLogTime(rec[0]),
			OriginalFilename:   rec[1],
			FileSizeBytes:      parseInt(rec[2]),
			UploadURL:          rec[3],
			DownloadedSize:     parseInt(rec[4]),
			JSONFilename:       rec[5],
			DownloadedFilename: rec[6],
			ProcessingSeconds:  parseFloat(rec[7]),
			Success:            rec[8] == "success",
			ErrorMessage:       rec[9],
		})
	}
	return entries, nil
}

// SuccessfulFilenames 已成功处理的原始文件名集合（断点续传用）
func (c *UploadCSV) SuccessfulFilenames() (map[string]struct{}, error) {
	entries, err := c.Read()
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Success && e.OriginalFilename != "" {
			done[e.OriginalFilename] = struct{}{}
		}
	}
	return done, nil
}

func uploadStatus(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// appendCSV 追加一条记录，必要时先补表头
func appendCSV(path string, header, record []string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// readCSV 读取全部数据行（不含表头），列数不足的行跳过
func readCSV(path string, wantFields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var records [][]string
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "timestamp" {
			continue
		}
		if len(row) < wantFields {
			log.Warn().Str("file", path).Int("line", i+1).Msg("日志行列数不足，跳过")
			continue
		}
		records = append(records, row)
	}
	return records, nil
}

func formatInt(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func formatSeconds(v float64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", v)
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseLogTime 容忍历史日志中的几种时间格式
func parseLogTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
