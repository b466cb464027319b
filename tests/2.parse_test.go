// Package tests 图片解析流程集成测试
//
// 运行测试：
//
//	go test ./tests -run TestPipeline_Parse -v
//
// 说明：
//   - 覆盖 上传图床 → 描述名 → 提示词 JSON → 托管副本回验 的完整链路
//   - 大模型与图床均为桩实现，描述名从托管 URL 推导，产物文件名可预测
package tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/model/media"
	"reel/internal/pkg/workdir"
	"reel/internal/service/pipeline"
)

// TestPipeline_Parse 测试把待处理图片解析成提示词 JSON
func TestPipeline_Parse(t *testing.T) {
	Convey("解析待处理图片", t, func() {
		// 使用 TestMain 中初始化的全局变量
		ctx := testCtx
		services := testServices
		wd := services.Workdir

		seedReadyImage(t, wd, "city_window.jpg")

		Convey("步骤1: 解析产出提示词 JSON", func() {
			result, err := services.Pipeline.Parse(ctx, pipeline.ParseOptions{})
			So(err, ShouldBeNil)
			So(result.Succeeded, ShouldBeGreaterThanOrEqualTo, 1)
			So(result.Failed, ShouldEqual, 0)

			// 找到本场景产出的 JSON（描述名由桩从源文件名推导）
			files, err := wd.ListPromptFiles()
			So(err, ShouldBeNil)
			jsonPath := ""
			for _, f := range files {
				if strings.HasPrefix(filepath.Base(f), "city_window_") {
					jsonPath = f
				}
			}
			So(jsonPath, ShouldNotBeEmpty)

			pf, err := workdir.ReadPromptFile(jsonPath)
			So(err, ShouldBeNil)
			So(pf.PicName, ShouldStartWith, "city_window_")
			So(pf.PicName, ShouldEndWith, ".jpg")
			So(pf.VideoName, ShouldEndWith, ".mp4")
			So(pf.ImageURL, ShouldContainSubstring, "/hosted/")
			So(pf.ImagePrompt, ShouldNotBeEmpty)
			So(pf.VideoPrompt, ShouldNotBeEmpty)

			Convey("步骤2: 托管副本与数据库档案齐备", func() {
				// 回验下载的托管副本就是图床内容
				data, err := os.ReadFile(filepath.Join(wd.Uploaded(), pf.PicName))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, hostedImageBytes)

				// 源图保留在 ready，供后续视频流程配对
				_, err = os.Stat(filepath.Join(wd.Ready(), "city_window.jpg"))
				So(err, ShouldBeNil)

				img, err := services.Images.FindByUploadedFilename(ctx, pf.PicName)
				So(err, ShouldBeNil)
				So(img.Status, ShouldEqual, media.UploadStatusSuccess)
				So(img.DescriptiveName, ShouldEqual, "city window")
				So(img.DownloadedSizeBytes, ShouldEqual, int64(len(hostedImageBytes)))

				// 提示词同步入库
				prompt, err := services.Prompts.FindByImageID(ctx, img.ID)
				So(err, ShouldBeNil)
				So(prompt.VideoPrompt, ShouldEqual, pf.VideoPrompt)
				So(prompt.ImagePrompt, ShouldEqual, pf.ImagePrompt)
			})
		})
	})
}
