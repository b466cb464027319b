package media

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/model/media"
)

func TestImageRepo(t *testing.T) {
	Convey("图片仓储", t, func() {
		ctx := context.Background()
		db := openTestDB(t)
		repo := NewImageRepo(db)

		Convey("创建后按主键读回全部字段", func() {
			img := &media.Image{
				Timestamp:             "20250601_100000",
				OriginalFilename:      "cat.jpg",
				OriginalPath:          "images/cat.jpg",
				FileSizeBytes:         2048,
				UploadURL:             "https://cdn.example.com/cat.jpg",
				UploadedFilename:      "Cat_20250601_100000_000.jpg",
				UploadedPath:          "downloaded_images/Cat_20250601_100000_000.jpg",
				DownloadedSizeBytes:   2040,
				ProcessingTimeSeconds: 1.5,
				Status:                media.UploadStatusSuccess,
				DescriptiveName:       "Cat",
				ProcessedPath:         "images_underused/cat.jpg",
			}
			So(repo.Create(ctx, img), ShouldBeNil)
			So(img.ID, ShouldBeGreaterThan, 0)

			got, err := repo.FindByID(ctx, img.ID)
			So(err, ShouldBeNil)
			So(got.OriginalFilename, ShouldEqual, "cat.jpg")
			So(got.Timestamp, ShouldEqual, "20250601_100000")
			So(got.FileSizeBytes, ShouldEqual, 2048)
			So(got.UploadURL, ShouldEqual, "https://cdn.example.com/cat.jpg")
			So(got.UploadedFilename, ShouldEqual, "Cat_20250601_100000_000.jpg")
			So(got.DownloadedSizeBytes, ShouldEqual, 2040)
			So(got.ProcessingTimeSeconds, ShouldEqual, 1.5)
			So(got.Status, ShouldEqual, media.UploadStatusSuccess)
			So(got.DescriptiveName, ShouldEqual, "Cat")
			So(got.ProcessedPath, ShouldEqual, "images_underused/cat.jpg")
			So(got.OriginImageID, ShouldBeNil)
			So(got.IsOriginal(), ShouldBeTrue)
			So(got.CreatedAt.IsZero(), ShouldBeFalse)
		})

		Convey("状态缺省为 pending", func() {
			img := &media.Image{OriginalFilename: "dog.jpg"}
			So(repo.Create(ctx, img), ShouldBeNil)
			got, err := repo.FindByID(ctx, img.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, media.UploadStatusPending)
		})

		Convey("派生图记录来源图 ID", func() {
			origin := &media.Image{OriginalFilename: "origin.jpg", Status: media.UploadStatusSuccess}
			So(repo.Create(ctx, origin), ShouldBeNil)

			derived := &media.Image{
				OriginalFilename: "origin_gen_1.jpg",
				OriginImageID:    &origin.ID,
			}
			So(repo.Create(ctx, derived), ShouldBeNil)

			got, err := repo.FindByID(ctx, derived.ID)
			So(err, ShouldBeNil)
			So(got.OriginImageID, ShouldNotBeNil)
			So(*got.OriginImageID, ShouldEqual, origin.ID)
			So(got.IsOriginal(), ShouldBeFalse)
		})

		Convey("不存在的记录返回 ErrNotFound", func() {
			_, err := repo.FindByID(ctx, 9999)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = repo.FindByOriginalFilename(ctx, "nope.jpg")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("同名文件取最新一条", func() {
			first := &media.Image{OriginalFilename: "dup.jpg", Status: media.UploadStatusFailed}
			So(repo.Create(ctx, first), ShouldBeNil)
			second := &media.Image{OriginalFilename: "dup.jpg", Status: media.UploadStatusSuccess}
			So(repo.Create(ctx, second), ShouldBeNil)

			got, err := repo.FindByOriginalFilename(ctx, "dup.jpg")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, second.ID)
			So(got.Status, ShouldEqual, media.UploadStatusSuccess)
		})

		Convey("按状态过滤并限制条数", func() {
			for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
				So(repo.Create(ctx, &media.Image{OriginalFilename: name, Status: media.UploadStatusSuccess}), ShouldBeNil)
			}
			So(repo.Create(ctx, &media.Image{OriginalFilename: "d.jpg", Status: media.UploadStatusFailed}), ShouldBeNil)

			list, err := repo.ListByStatus(ctx, media.UploadStatusSuccess, 0)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 3)
			So(list[0].OriginalFilename, ShouldEqual, "a.jpg")

			limited, err := repo.ListByStatus(ctx, media.UploadStatusSuccess, 2)
			So(err, ShouldBeNil)
			So(len(limited), ShouldEqual, 2)
		})

		Convey("ListRecent 按 ID 倒序", func() {
			So(repo.Create(ctx, &media.Image{OriginalFilename: "old.jpg"}), ShouldBeNil)
			newest := &media.Image{OriginalFilename: "new.jpg"}
			So(repo.Create(ctx, newest), ShouldBeNil)

			list, err := repo.ListRecent(ctx, 1)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].ID, ShouldEqual, newest.ID)
		})

		Convey("ListUploaded 只要有 URL 的成功记录", func() {
			So(repo.Create(ctx, &media.Image{
				OriginalFilename: "with-url.jpg",
				Status:           media.UploadStatusSuccess,
				UploadURL:        "https://cdn.example.com/x.jpg",
			}), ShouldBeNil)
			So(repo.Create(ctx, &media.Image{
				OriginalFilename: "no-url.jpg",
				Status:           media.UploadStatusSuccess,
			}), ShouldBeNil)
			So(repo.Create(ctx, &media.Image{
				OriginalFilename: "failed.jpg",
				Status:           media.UploadStatusFailed,
				UploadURL:        "https://cdn.example.com/y.jpg",
			}), ShouldBeNil)

			list, err := repo.ListUploaded(ctx, 0)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].OriginalFilename, ShouldEqual, "with-url.jpg")
		})

		Convey("列出带视频提示词的原始图片", func() {
			prompts := NewPromptRepo(db)

			origin := &media.Image{OriginalFilename: "scene.jpg", DescriptiveName: "Sunset Scene", Status: media.UploadStatusSuccess}
			So(repo.Create(ctx, origin), ShouldBeNil)
			So(prompts.Create(ctx, &media.Prompt{ImageID: origin.ID, VideoPrompt: "waves rolling in"}), ShouldBeNil)

			// 无提示词的原图与派生图都不应出现
			bare := &media.Image{OriginalFilename: "bare.jpg"}
			So(repo.Create(ctx, bare), ShouldBeNil)
			derived := &media.Image{OriginalFilename: "scene_gen.jpg", OriginImageID: &origin.ID}
			So(repo.Create(ctx, derived), ShouldBeNil)
			So(prompts.Create(ctx, &media.Prompt{ImageID: derived.ID, VideoPrompt: "derived prompt"}), ShouldBeNil)

			list, err := repo.ListOriginalsWithVideoPrompt(ctx, 0)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].ImageID, ShouldEqual, origin.ID)
			So(list[0].Name, ShouldEqual, "Sunset Scene")
			So(list[0].VideoPrompt, ShouldEqual, "waves rolling in")
		})

		Convey("描述名为空时回落到原始文件名", func() {
			prompts := NewPromptRepo(db)
			img := &media.Image{OriginalFilename: "noname.jpg"}
			So(repo.Create(ctx, img), ShouldBeNil)
			So(prompts.Create(ctx, &media.Prompt{ImageID: img.ID, VideoPrompt: "p"}), ShouldBeNil)

			list, err := repo.ListOriginalsWithVideoPrompt(ctx, 0)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].Name, ShouldEqual, "noname.jpg")
		})

		Convey("更新状态与错误信息", func() {
			img := &media.Image{OriginalFilename: "e.jpg"}
			So(repo.Create(ctx, img), ShouldBeNil)
			So(repo.UpdateStatus(ctx, img.ID, media.UploadStatusFailed, "upload rejected"), ShouldBeNil)

			got, err := repo.FindByID(ctx, img.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, media.UploadStatusFailed)
			So(got.ErrorMessage, ShouldEqual, "upload rejected")
		})

		Convey("上传回写保留已有 timestamp", func() {
			img := &media.Image{OriginalFilename: "f.jpg", Timestamp: "20250601_090000"}
			So(repo.Create(ctx, img), ShouldBeNil)

			img.Timestamp = ""
			img.UploadURL = "https://cdn.example.com/f.jpg"
			img.UploadedFilename = "F_20250601_090000_000.jpg"
			img.UploadedPath = "downloaded_images/F_20250601_090000_000.jpg"
			img.Status = media.UploadStatusSuccess
			So(repo.UpdateUpload(ctx, img), ShouldBeNil)

			got, err := repo.FindByID(ctx, img.ID)
			So(err, ShouldBeNil)
			So(got.Timestamp, ShouldEqual, "20250601_090000")
			So(got.UploadURL, ShouldEqual, "https://cdn.example.com/f.jpg")
			So(got.Status, ShouldEqual, media.UploadStatusSuccess)
		})

		Convey("单字段更新", func() {
			img := &media.Image{OriginalFilename: "g.jpg"}
			So(repo.Create(ctx, img), ShouldBeNil)

			So(repo.UpdateDescriptiveName(ctx, img.ID, "Green Field"), ShouldBeNil)
			So(repo.UpdateProcessedPath(ctx, img.ID, "images_underused/g.jpg"), ShouldBeNil)
			So(repo.UpdateDownloadedSize(ctx, img.ID, 777), ShouldBeNil)

			got, err := repo.FindByID(ctx, img.ID)
			So(err, ShouldBeNil)
			So(got.DescriptiveName, ShouldEqual, "Green Field")
			So(got.ProcessedPath, ShouldEqual, "images_underused/g.jpg")
			So(got.DownloadedSizeBytes, ShouldEqual, 777)
		})

		Convey("旧数据占位记录只建一次", func() {
			id1, err := repo.EnsureLegacyPlaceholder(ctx)
			So(err, ShouldBeNil)
			id2, err := repo.EnsureLegacyPlaceholder(ctx)
			So(err, ShouldBeNil)
			So(id2, ShouldEqual, id1)

			got, err := repo.FindByID(ctx, id1)
			So(err, ShouldBeNil)
			So(got.OriginalFilename, ShouldEqual, LegacyFilename)
			So(got.Status, ShouldEqual, media.UploadStatusLegacy)
		})

		Convey("MarkStale 只清理 uploading 残留", func() {
			stuck := &media.Image{OriginalFilename: "stuck.jpg", Status: media.UploadStatusUploading}
			So(repo.Create(ctx, stuck), ShouldBeNil)
			fine := &media.Image{OriginalFilename: "fine.jpg", Status: media.UploadStatusPending}
			So(repo.Create(ctx, fine), ShouldBeNil)

			n, err := repo.MarkStale(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			got, err := repo.FindByID(ctx, stuck.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, media.UploadStatusFailed)
			So(got.ErrorMessage, ShouldEqual, "interrupted")

			untouched, err := repo.FindByID(ctx, fine.ID)
			So(err, ShouldBeNil)
			So(untouched.Status, ShouldEqual, media.UploadStatusPending)
		})
	})
}
