package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/model/media"
)

func TestExport(t *testing.T) {
	Convey("导出视频提示词 CSV", t, func() {
		svc, wd := newTestService(t)
		ctx := context.Background()

		readCSV := func(path string) [][]string {
			f, err := os.Open(path)
			So(err, ShouldBeNil)
			defer f.Close()
			records, err := csv.NewReader(f).ReadAll()
			So(err, ShouldBeNil)
			return records
		}

		Convey("空库只写表头", func() {
			result, err := svc.Export(ctx, ExportOptions{})
			So(err, ShouldBeNil)
			So(result.Rows, ShouldEqual, 0)
			So(result.Path, ShouldEqual, filepath.Join(wd.Docs(), "video_prompts_extract.csv"))

			records := readCSV(result.Path)
			So(records, ShouldHaveLength, 1)
			So(records[0], ShouldResemble, []string{"image_id", "video_prompt"})
		})

		Convey("按 image_id 升序导出，跳过空提示词", func() {
			img1 := seedImage(t, svc, &media.Image{OriginalFilename: "a.jpg"})
			img2 := seedImage(t, svc, &media.Image{OriginalFilename: "b.jpg"})
			img3 := seedImage(t, svc, &media.Image{OriginalFilename: "c.jpg"})
			So(svc.prompts.Upsert(ctx, &media.Prompt{ImageID: img1.ID, VideoPrompt: "waves rolling in"}), ShouldBeNil)
			// 只有图像提示词的行不导出
			So(svc.prompts.Upsert(ctx, &media.Prompt{ImageID: img2.ID, ImagePrompt: "a quiet harbor"}), ShouldBeNil)
			So(svc.prompts.Upsert(ctx, &media.Prompt{ImageID: img3.ID, VideoPrompt: "leaves drifting down"}), ShouldBeNil)

			result, err := svc.Export(ctx, ExportOptions{})
			So(err, ShouldBeNil)
			So(result.Rows, ShouldEqual, 2)

			records := readCSV(result.Path)
			So(records, ShouldHaveLength, 3)
			So(records[1], ShouldResemble, []string{strconv.FormatInt(img1.ID, 10), "waves rolling in"})
			So(records[2], ShouldResemble, []string{strconv.FormatInt(img3.ID, 10), "leaves drifting down"})
		})

		Convey("自定义导出路径自动建目录", func() {
			outPath := filepath.Join(wd.Base(), "exports", "nested", "prompts.csv")

			result, err := svc.Export(ctx, ExportOptions{OutputPath: outPath})
			So(err, ShouldBeNil)
			So(result.Path, ShouldEqual, outPath)

			_, statErr := os.Stat(outPath)
			So(statErr, ShouldBeNil)
		})
	})
}
