package medialog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestUploadCSV(t *testing.T) {
	Convey("UploadCSV 追加与回读", t, func() {
		path := filepath.Join(t.TempDir(), "logs", "image_uploading.csv")
		csvLog := NewUploadCSV(path)

		Convey("文件不存在时读取返回空", func() {
			entries, err := csvLog.Read()
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)
		})

		Convey("首次追加会补表头，二次追加不会重复", func() {
			at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
			So(csvLog.Append(&UploadEntry{
				Timestamp:          at,
				OriginalFilename:   "cat.png",
				FileSizeBytes:      2048,
				UploadURL:          "https://iili.io/cat.png",
				DownloadedSize:     2048,
				JSONFilename:       "Cat_20250601_100000_000.json",
				DownloadedFilename: "Cat_20250601_100000_000.png",
				ProcessingSeconds:  3.21,
				Success:            true,
			}), ShouldBeNil)
			So(csvLog.Append(&UploadEntry{
				Timestamp:        at.Add(time.Minute),
				OriginalFilename: "dog.png",
				Success:          false,
				ErrorMessage:     "upload failed: status 500",
			}), ShouldBeNil)

			raw, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(strings.Count(string(raw), "timestamp,original_filename"), ShouldEqual, 1)

			entries, err := csvLog.Read()
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 2)

			first := entries[0]
			So(first.OriginalFilename, ShouldEqual, "cat.png")
			So(first.FileSizeBytes, ShouldEqual, 2048)
			So(first.UploadURL, ShouldEqual, "https://iili.io/cat.png")
			So(first.JSONFilename, ShouldEqual, "Cat_20250601_100000_000.json")
			So(first.ProcessingSeconds, ShouldAlmostEqual, 3.21, 0.001)
			So(first.Success, ShouldBeTrue)
			So(first.Timestamp.UTC().Format(time.RFC3339), ShouldEqual, "2025-06-01T10:00:00Z")

			second := entries[1]
			So(second.Success, ShouldBeFalse)
			So(second.ErrorMessage, ShouldContainSubstring, "status 500")
		})

		Convey("SuccessfulFilenames 只收成功行", func() {
			So(csvLog.Append(&UploadEntry{Timestamp: time.Now(), OriginalFilename: "a.png", Success: true}), ShouldBeNil)
			So(csvLog.Append(&UploadEntry{Timestamp: time.Now(), OriginalFilename: "b.png", Success: false}), ShouldBeNil)
			So(csvLog.Append(&UploadEntry{Timestamp: time.Now(), OriginalFilename: "c.png", Success: true}), ShouldBeNil)

			done, err := csvLog.SuccessfulFilenames()
			So(err, ShouldBeNil)
			So(done, ShouldContainKey, "a.png")
			So(done, ShouldContainKey, "c.png")
			So(done, ShouldNotContainKey, "b.png")
		})
	})
}

func TestBatchCSV(t *testing.T) {
	Convey("BatchCSV 追加与断点续传", t, func() {
		path := filepath.Join(t.TempDir(), "batch_upload.csv")
		csvLog := NewBatchCSV(path)

		So(csvLog.Append(&BatchEntry{
			Timestamp:     time.Now(),
			LocalFilename: "x1.png",
			FileSizeBytes: 1000,
			Success:       true,
			ImageURL:      "https://iili.io/x1.png",
			ImageID:       "42",
			UploadSeconds: 1.5,
			Attempt:       1,
		}), ShouldBeNil)
		So(csvLog.Append(&BatchEntry{
			Timestamp:     time.Now(),
			LocalFilename: "x2.png",
			Success:       false,
			ErrorMessage:  "timeout",
			Attempt:       3,
		}), ShouldBeNil)

		entries, err := csvLog.Read()
		So(err, ShouldBeNil)
		So(len(entries), ShouldEqual, 2)
		So(entries[0].ImageURL, ShouldEqual, "https://iili.io/x1.png")
		So(entries[0].ImageID, ShouldEqual, "42")
		So(entries[0].Attempt, ShouldEqual, 1)
		So(entries[1].Success, ShouldBeFalse)
		So(entries[1].Attempt, ShouldEqual, 3)

		Convey("UploadedFilenames 用于 --resume 跳过", func() {
			done, err := csvLog.UploadedFilenames()
			So(err, ShouldBeNil)
			So(done, ShouldContainKey, "x1.png")
			So(done, ShouldNotContainKey, "x2.png")
		})
	})
}

func TestVideoJSONL(t *testing.T) {
	Convey("VideoJSONL 追加与回读", t, func() {
		path := filepath.Join(t.TempDir(), "video_generation_log.jsonl")
		jsonlLog := NewVideoJSONL(path)

		Convey("缺失字段写成 N/A，时间戳自动补", func() {
			So(jsonlLog.Append(&VideoEntry{
				ImageUsed:      "Cat_20250601_100000_000.png",
				VideoName:      "Cat_20250601_100000_000.mp4",
				ProcessingSecs: 88.5,
				Status:         VideoStatusSuccess,
			}), ShouldBeNil)
			So(jsonlLog.Append(&VideoEntry{Status: VideoStatusFailure}), ShouldBeNil)

			entries, err := jsonlLog.Read()
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].VideoName, ShouldEqual, "Cat_20250601_100000_000.mp4")
			So(entries[0].Status, ShouldEqual, VideoStatusSuccess)
			So(entries[0].Timestamp, ShouldNotBeEmpty)
			So(entries[1].ImageUsed, ShouldEqual, "N/A")
			So(entries[1].VideoName, ShouldEqual, "N/A")
			So(entries[1].JSONFilePath, ShouldEqual, "N/A")
		})

		Convey("坏行跳过不影响其余条目", func() {
			So(jsonlLog.Append(&VideoEntry{VideoName: "ok.mp4", Status: VideoStatusSuccess}), ShouldBeNil)

			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			So(err, ShouldBeNil)
			_, err = f.WriteString("{not json}\n")
			So(err, ShouldBeNil)
			So(f.Close(), ShouldBeNil)

			So(jsonlLog.Append(&VideoEntry{VideoName: "after.mp4", Status: VideoStatusFailure}), ShouldBeNil)

			entries, err := jsonlLog.Read()
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].VideoName, ShouldEqual, "ok.mp4")
			So(entries[1].VideoName, ShouldEqual, "after.mp4")
		})

		Convey("文件不存在时读取返回空", func() {
			missing := NewVideoJSONL(filepath.Join(t.TempDir(), "nope.jsonl"))
			entries, err := missing.Read()
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)
		})
	})
}
