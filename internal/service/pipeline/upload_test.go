package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/model/media"
	"reel/internal/pkg/medialog"
)

func TestUpload(t *testing.T) {
	Convey("批量上传待处理图片", t, func() {
		ctx := context.Background()

		Convey("未配置图床时报错", func() {
			svc, wd := newTestService(t)
			seedFile(t, filepath.Join(wd.Ready(), "a.jpg"), "img")

			_, err := svc.Upload(ctx, UploadOptions{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "FREEIMAGE_API_KEY")
		})

		Convey("目录为空时返回零结果", func() {
			svc, _ := newTestService(t)

			result, err := svc.Upload(ctx, UploadOptions{DryRun: true})
			So(err, ShouldBeNil)
			So(result.Found, ShouldEqual, 0)
			So(result.Planned, ShouldBeEmpty)
		})

		Convey("干跑列出候选并按 Count 截断", func() {
			svc, wd := newTestService(t)
			seedFile(t, filepath.Join(wd.Ready(), "a.jpg"), "img-1")
			seedFile(t, filepath.Join(wd.Ready(), "b.jpg"), "img-2")
			seedFile(t, filepath.Join(wd.Ready(), "c.jpg"), "img-3")

			result, err := svc.Upload(ctx, UploadOptions{DryRun: true, Count: 2})
			So(err, ShouldBeNil)
			So(result.Found, ShouldEqual, 2)
			So(result.Planned, ShouldResemble, []string{"a.jpg", "b.jpg"})
		})

		Convey("批量数不超过配置上限", func() {
			svc, wd := newTestService(t, func(d *Deps) {
				d.Config.Pipeline.BatchMax = 2
			})
			seedFile(t, filepath.Join(wd.Ready(), "a.jpg"), "img-1")
			seedFile(t, filepath.Join(wd.Ready(), "b.jpg"), "img-2")
			seedFile(t, filepath.Join(wd.Ready(), "c.jpg"), "img-3")

			result, err := svc.Upload(ctx, UploadOptions{DryRun: true, Count: 99})
			So(err, ShouldBeNil)
			So(result.Found, ShouldEqual, 2)
		})

		Convey("断点续传跳过批量日志里已成功的文件", func() {
			svc, wd := newTestService(t)
			seedFile(t, filepath.Join(wd.Ready(), "a.jpg"), "img-1")
			seedFile(t, filepath.Join(wd.Ready(), "b.jpg"), "img-2")
			seedFile(t, filepath.Join(wd.Ready(), "c.jpg"), "img-3")

			batchLog := medialog.NewBatchCSV(filepath.Join(wd.Logs(), "batch_upload.csv"))
			So(batchLog.Append(&medialog.BatchEntry{
				Timestamp:     time.Now(),
				LocalFilename: "a.jpg",
				Success:       true,
				ImageURL:      "https://i.example.com/a.jpg",
			}), ShouldBeNil)
			// 失败的不算已上传，要重新进队列
			So(batchLog.Append(&medialog.BatchEntry{
				Timestamp:     time.Now(),
				LocalFilename: "b.jpg",
				ErrorMessage:  "boom",
			}), ShouldBeNil)

			result, err := svc.Upload(ctx, UploadOptions{DryRun: true, Resume: true})
			So(err, ShouldBeNil)
			So(result.Skipped, ShouldEqual, 1)
			So(result.Planned, ShouldResemble, []string{"b.jpg", "c.jpg"})
		})

		Convey("逐张上传并回写数据库与批量日志", func() {
			server := newHostServer(t)
			svc, wd := newTestService(t, withUploader(t, server.URL))
			seedFile(t, filepath.Join(wd.Ready(), "a_ok.jpg"), "fake-image-data")
			seedFile(t, filepath.Join(wd.Ready(), "bad_b.jpg"), "fake")

			result, err := svc.Upload(ctx, UploadOptions{Move: true})
			So(err, ShouldBeNil)
			So(result.Attempted, ShouldEqual, 2)
			So(result.Succeeded, ShouldEqual, 1)
			So(result.Failed, ShouldEqual, 1)

			Convey("成功的记录置为 success 并带图床 URL", func() {
				img, ferr := svc.images.FindByOriginalFilename(ctx, "a_ok.jpg")
				So(ferr, ShouldBeNil)
				So(img.Status, ShouldEqual, media.UploadStatusSuccess)
				So(img.UploadURL, ShouldEqual, server.URL+"/hosted/a_ok.jpg")
				So(img.FileSizeBytes, ShouldEqual, int64(len("fake-image-data")))
			})

			Convey("失败的记录置为 failed 并带错误信息", func() {
				img, ferr := svc.images.FindByOriginalFilename(ctx, "bad_b.jpg")
				So(ferr, ShouldBeNil)
				So(img.Status, ShouldEqual, media.UploadStatusFailed)
				So(img.ErrorMessage, ShouldContainSubstring, "Invalid API key")
			})

			Convey("成功的源图移入 generated，失败的留在原地", func() {
				_, statErr := os.Stat(filepath.Join(wd.Generated(), "a_ok.jpg"))
				So(statErr, ShouldBeNil)
				_, statErr = os.Stat(filepath.Join(wd.Ready(), "a_ok.jpg"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
				_, statErr = os.Stat(filepath.Join(wd.Ready(), "bad_b.jpg"))
				So(statErr, ShouldBeNil)
			})

			Convey("批量日志一行一个结果", func() {
				entries, rerr := medialog.NewBatchCSV(filepath.Join(wd.Logs(), "batch_upload.csv")).Read()
				So(rerr, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].LocalFilename, ShouldEqual, "a_ok.jpg")
				So(entries[0].Success, ShouldBeTrue)
				So(entries[0].ImageURL, ShouldEqual, server.URL+"/hosted/a_ok.jpg")
				So(entries[1].LocalFilename, ShouldEqual, "bad_b.jpg")
				So(entries[1].Success, ShouldBeFalse)
				So(entries[1].ErrorMessage, ShouldContainSubstring, "Invalid API key")
			})
		})
	})
}
