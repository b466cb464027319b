package media

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	Convey("打开数据库", t, func() {
		Convey("自动创建父目录并初始化 schema", func() {
			path := filepath.Join(t.TempDir(), "nested", "data", "media.db")
			db, err := Open(&config.DatabaseConfig{Path: path})
			So(err, ShouldBeNil)
			defer db.Close()

			_, err = os.Stat(path)
			So(err, ShouldBeNil)

			// 三张表就位
			for _, table := range []string{"images", "prompts", "videos"} {
				var n int
				err := db.conn.QueryRow(
					`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
				).Scan(&n)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			}
			So(db.Ping(context.Background()), ShouldBeNil)
		})

		Convey("重复打开同一库幂等", func() {
			path := filepath.Join(t.TempDir(), "media.db")
			db1, err := Open(&config.DatabaseConfig{Path: path})
			So(err, ShouldBeNil)
			So(db1.Close(), ShouldBeNil)

			db2, err := Open(&config.DatabaseConfig{Path: path})
			So(err, ShouldBeNil)
			defer db2.Close()
			So(db2.Ping(context.Background()), ShouldBeNil)
		})

		Convey("旧库缺少 origin_image_id 列时自动补齐", func() {
			path := filepath.Join(t.TempDir(), "legacy.db")
			raw, err := sql.Open("sqlite", path)
			So(err, ShouldBeNil)
			_, err = raw.Exec(`CREATE TABLE images (
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
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`)
			So(err, ShouldBeNil)
			_, err = raw.Exec(`INSERT INTO images (original_filename) VALUES ('old.jpg')`)
			So(err, ShouldBeNil)
			So(raw.Close(), ShouldBeNil)

			db, err := Open(&config.DatabaseConfig{Path: path})
			So(err, ShouldBeNil)
			defer db.Close()

			var n int
			err = db.conn.QueryRow(
				`SELECT COUNT(*) FROM pragma_table_info('images') WHERE name = 'origin_image_id'`,
			).Scan(&n)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			// 迁移后旧数据可以按新列集扫描
			img, err := NewImageRepo(db).FindByOriginalFilename(context.Background(), "old.jpg")
			So(err, ShouldBeNil)
			So(img.OriginImageID, ShouldBeNil)
		})
	})
}
