package medialog

import (
	"strconv"
	"time"
)

var batchHeader = []string{
	"timestamp", "local_filename", "file_size_bytes", "upload_status",
	"image_url", "image_id", "upload_time_seconds", "error_message", "attempt_number",
}

// BatchEntry 批量上传的结果行
type BatchEntry struct {
	Timestamp     time.Time
	LocalFilename string
	FileSizeBytes int64
	Success       bool
	ImageURL      string
	ImageID       string
	UploadSeconds float64
	ErrorMessage  string
	Attempt       int
}

// BatchCSV 批量上传日志（logs/batch_upload.csv）
type BatchCSV struct {
	path string
}

// NewBatchCSV 创建日志写入器，path 为 CSV 文件路径
func NewBatchCSV(path string) *BatchCSV {
	return &BatchCSV{path: path}
}

// Path 日志文件路径
func (c *BatchCSV) Path() string {
	return c.path
}

// Append 追加一行上传结果，文件不存在时先写表头
func (c *BatchCSV) Append(entry *BatchEntry) error {
	record := []string{
		entry.Timestamp.Format(time.RFC3339),
		entry.LocalFilename,
		formatInt(entry.FileSizeBytes),
		batchStatus(entry.Success),
		entry.ImageURL,
		entry.ImageID,
		formatSeconds(entry.UploadSeconds),
		entry.ErrorMessage,
		strconv.Itoa(entry.Attempt),
	}
	return appendCSV(c.path, batchHeader, record)
}

// Read 读取全部历史行
func (c *BatchCSV) Read() ([]*BatchEntry, error) {
	records, err := readCSV(c.path, len(batchHeader))
	if err != nil {
		return nil, err
	}

	entries := make([]*BatchEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, &BatchEntry{
			Timestamp:     parseLogTime(rec[0]),
			LocalFilename: rec[1],
			FileSizeBytes: parseInt(rec[2]),
			Success:       rec[3] == "success",
			ImageURL:      rec[4],
			ImageID:       rec[5],
			UploadSeconds: parseFloat(rec[6]),
			ErrorMessage:  rec[7],
			Attempt:       int(parseInt(rec[8])),
		})
	}
	return entries, nil
}

// UploadedFilenames 已成功上传的本地文件名集合（--resume 跳过用）
func (c *BatchCSV) UploadedFilenames() (map[string]struct{}, error) {
	entries, err := c.Read()
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Success && e.LocalFilename != "" {
			done[e.LocalFilename] = struct{}{}
		}
	}
	return done, nil
}

func batchStatus(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
