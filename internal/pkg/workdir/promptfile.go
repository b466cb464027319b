package workdir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reel/internal/model/media"
)

// ReadPromptFile 读取提示词 JSON 文件
func ReadPromptFile(path string) (*media.PromptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	var f media.PromptFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}
	return &f, nil
}

// WritePromptFile 写出提示词 JSON 文件（四空格缩进，保持与历史文件一致）
func WritePromptFile(path string, f *media.PromptFile) error {
	data, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal prompt file: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write prompt file: %w", err)
	}
	return nil
}

// BackupPromptFile 备份 JSON 文件为 <stem>.backup_<ts>.json，返回备份路径
func BackupPromptFile(path, timestamp string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	backupPath := fmt.Sprintf("%s.backup_%s.json", stem, timestamp)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backupPath, nil
}
