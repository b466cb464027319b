package media

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/model/media"
)

func TestPromptRepo(t *testing.T) {
	Convey("提示词仓储", t, func() {
		ctx := context.Background()
		db := openTestDB(t)
		images := NewImageRepo(db)
		repo := NewPromptRepo(db)

		newImage := func(name string) int64 {
			img := &media.Image{OriginalFilename: name}
			So(images.Create(ctx, img), ShouldBeNil)
			return img.ID
		}

		Convey("创建后按图片 ID 读回", func() {
			imageID := newImage("a.jpg")
			p := &media.Prompt{
				ImageID:     imageID,
				ImagePrompt: "a cat on a sofa",
				VideoPrompt: "the cat stretches slowly",
			}
			So(repo.Create(ctx, p), ShouldBeNil)
			So(p.ID, ShouldBeGreaterThan, 0)

			got, err := repo.FindByImageID(ctx, imageID)
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, p.ID)
			So(got.ImagePrompt, ShouldEqual, "a cat on a sofa")
			So(got.VideoPrompt, ShouldEqual, "the cat stretches slowly")
			So(got.RefinedVideoPrompt, ShouldBeEmpty)
		})

		Convey("不存在的记录返回 ErrNotFound", func() {
			_, err := repo.FindByImageID(ctx, 9999)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Upsert 对新图片等同创建", func() {
			imageID := newImage("b.jpg")
			p := &media.Prompt{ImageID: imageID, VideoPrompt: "wind in the trees"}
			So(repo.Upsert(ctx, p), ShouldBeNil)
			So(p.ID, ShouldBeGreaterThan, 0)

			got, err := repo.FindByImageID(ctx, imageID)
			So(err, ShouldBeNil)
			So(got.VideoPrompt, ShouldEqual, "wind in the trees")
		})

		Convey("Upsert 只覆盖非空字段", func() {
			imageID := newImage("c.jpg")
			So(repo.Create(ctx, &media.Prompt{
				ImageID:     imageID,
				ImagePrompt: "original image prompt",
				VideoPrompt: "original video prompt",
			}), ShouldBeNil)

			update := &media.Prompt{
				ImageID:            imageID,
				VideoPrompt:        "", // 空值不应清掉已有内容
				RefinedVideoPrompt: "refined version",
			}
			So(repo.Upsert(ctx, update), ShouldBeNil)

			got, err := repo.FindByImageID(ctx, imageID)
			So(err, ShouldBeNil)
			So(got.ImagePrompt, ShouldEqual, "original image prompt")
			So(got.VideoPrompt, ShouldEqual, "original video prompt")
			So(got.RefinedVideoPrompt, ShouldEqual, "refined version")
			So(update.ID, ShouldEqual, got.ID)
		})

		Convey("回写润色提示词", func() {
			imageID := newImage("d.jpg")
			So(repo.Create(ctx, &media.Prompt{ImageID: imageID, VideoPrompt: "base"}), ShouldBeNil)
			So(repo.UpdateRefined(ctx, imageID, "polished text"), ShouldBeNil)

			got, err := repo.FindByImageID(ctx, imageID)
			So(err, ShouldBeNil)
			So(got.RefinedVideoPrompt, ShouldEqual, "polished text")
		})

		Convey("按序号回写创意提示词", func() {
			imageID := newImage("e.jpg")
			So(repo.Create(ctx, &media.Prompt{ImageID: imageID, VideoPrompt: "base"}), ShouldBeNil)

			So(repo.UpdateCreative(ctx, imageID, 1, "aggressive cut"), ShouldBeNil)
			So(repo.UpdateCreative(ctx, imageID, 2, "surreal drift"), ShouldBeNil)
			So(repo.UpdateCreative(ctx, imageID, 3, "cinematic pan"), ShouldBeNil)

			got, err := repo.FindByImageID(ctx, imageID)
			So(err, ShouldBeNil)
			So(got.CreativeVideoPrompt1, ShouldEqual, "aggressive cut")
			So(got.CreativeVideoPrompt2, ShouldEqual, "surreal drift")
			So(got.CreativeVideoPrompt3, ShouldEqual, "cinematic pan")

			Convey("序号越界直接报错", func() {
				err := repo.UpdateCreative(ctx, imageID, 4, "nope")
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "out of range")
			})
		})

		Convey("ListAll 按图片 ID 升序", func() {
			firstImage := newImage("f1.jpg")
			secondImage := newImage("f2.jpg")
			// 故意先插后面的图片
			So(repo.Create(ctx, &media.Prompt{ImageID: secondImage, VideoPrompt: "second"}), ShouldBeNil)
			So(repo.Create(ctx, &media.Prompt{ImageID: firstImage, VideoPrompt: "first"}), ShouldBeNil)

			list, err := repo.ListAll(ctx)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].ImageID, ShouldEqual, firstImage)
			So(list[1].ImageID, ShouldEqual, secondImage)
		})
	})
}
