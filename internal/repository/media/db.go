package media

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"reel/internal/config"
)

// schemaDDL 三张表 + 索引 + updated_at 触发器，幂等执行
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		original_filename TEXT NOT NULL,
		original_path TEXT,
		file_size_bytes INTEGER,
		upload_url TEXT,
		uploaded_filename TEXT,
		uploaded_path TEXT,
		downloaded_size_bytes INTEGER,
		processing_time_seconds REAL,
		status TEXT DEFAULT 'pending',
		error_message TEXT,
		descriptive_name TEXT,
		processed_path TEXT,
		origin_image_id INTEGER REFERENCES images(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS prompts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL,
		image_prompt TEXT,
		video_prompt TEXT,
		refined_video_prompt TEXT,
		creative_video_prompt_1 TEXT,
		creative_video_prompt_2 TEXT,
		creative_video_prompt_3 TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL,
		prompt_id INTEGER,
		video_filename TEXT,
		video_path TEXT,
		prompt_used TEXT,
		prompt_type TEXT DEFAULT 'base',
		generation_service TEXT,
		generation_time_seconds REAL,
		file_size_bytes INTEGER,
		status TEXT DEFAULT 'pending',
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		metadata TEXT,
		FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE,
		FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_status ON images(status)`,
	`CREATE INDEX IF NOT EXISTS idx_images_filename ON images(original_filename)`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_image_id ON prompts(image_id)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_image_id ON videos(image_id)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status)`,
	`CREATE TRIGGER IF NOT EXISTS update_images_timestamp
		AFTER UPDATE ON images
		BEGIN
			UPDATE images SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END`,
	`CREATE TRIGGER IF NOT EXISTS update_prompts_timestamp
		AFTER UPDATE ON prompts
		BEGIN
			UPDATE prompts SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END`,
}

// DB SQLite 数据库句柄
type DB struct {
	conn *sql.DB
}

// Open 打开（必要时创建）数据库并初始化 schema
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 单写者：本地顺序流水线，避免 SQLITE_BUSY
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.bootstrap(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug().Str("path", cfg.Path).Msg("数据库已打开")
	return db, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping 检查数据库连通性（就绪探针用）
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Conn 返回底层连接（测试用）
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// bootstrap 建表 + 旧库列迁移
func (d *DB) bootstrap() error {
	for _, stmt := range schemaDDL {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	// 旧库没有 origin_image_id 列时补上
	var n int
	err := d.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('images') WHERE name = 'origin_image_id'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect images columns: %w", err)
	}
	if n == 0 {
		if _, err := d.conn.Exec(`ALTER TABLE images ADD COLUMN origin_image_id INTEGER REFERENCES images(id)`); err != nil {
			return fmt.Errorf("failed to add origin_image_id column: %w", err)
		}
		log.Info().Msg("migrated images table: added origin_image_id")
	}

	return nil
}

const sqliteTimeLayout = "2006-01-02 15:04:05"

// parseTime 解析 SQLite CURRENT_TIMESTAMP 文本
func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	if t, err := time.Parse(sqliteTimeLayout, ns.String); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, ns.String); err == nil {
		return t
	}
	return time.Time{}
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}
