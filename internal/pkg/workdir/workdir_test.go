package workdir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureAll(t *testing.T) {
	Convey("EnsureAll 创建整棵目录树", t, func() {
		wd := New(t.TempDir())
		So(wd.EnsureAll(), ShouldBeNil)

		for _, dir := range []string{
			wd.Ready(), wd.Uploaded(), wd.Generated(), wd.Processed(),
			wd.Watermark(), wd.NoWatermark(),
			wd.Out(), wd.OutImg(), wd.GeneratedImages(),
			wd.PromptJSON(), wd.UsedJSON(), wd.FailedJSON(),
			wd.Logs(), wd.Data(), wd.Tmp(), wd.Docs(),
		} {
			info, err := os.Stat(dir)
			So(err, ShouldBeNil)
			So(info.IsDir(), ShouldBeTrue)
		}

		Convey("重复调用幂等", func() {
			So(wd.EnsureAll(), ShouldBeNil)
		})
	})
}

func TestListImages(t *testing.T) {
	Convey("ListImages 只收图片并按名字排序", t, func() {
		wd := New(t.TempDir())
		So(wd.EnsureAll(), ShouldBeNil)

		writeFile(t, filepath.Join(wd.Ready(), "b.png"), "x")
		writeFile(t, filepath.Join(wd.Ready(), "a.JPG"), "x")
		writeFile(t, filepath.Join(wd.Ready(), "notes.txt"), "x")
		writeFile(t, filepath.Join(wd.Ready(), "c.webp"), "x")

		files, err := wd.ListImages(wd.Ready())
		So(err, ShouldBeNil)
		So(len(files), ShouldEqual, 3)
		So(filepath.Base(files[0]), ShouldEqual, "a.JPG")
		So(filepath.Base(files[1]), ShouldEqual, "b.png")
		So(filepath.Base(files[2]), ShouldEqual, "c.webp")

		Convey("子目录里的文件不收", func() {
			// watermark/ 与 no-watermark/ 在 ready 下，但目录本身要跳过
			writeFile(t, filepath.Join(wd.Watermark(), "w.png"), "x")
			files, err := wd.ListImages(wd.Ready())
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 3)
		})

		Convey("目录不存在时返回空", func() {
			files, err := wd.ListImages(filepath.Join(wd.Base(), "missing"))
			So(err, ShouldBeNil)
			So(files, ShouldBeEmpty)
		})
	})
}

func TestListImagesByModTime(t *testing.T) {
	Convey("ListImagesByModTime 按修改时间旧到新排序", t, func() {
		wd := New(t.TempDir())
		So(wd.EnsureAll(), ShouldBeNil)

		older := filepath.Join(wd.Ready(), "zlast.png")
		newer := filepath.Join(wd.Ready(), "afirst.png")
		writeFile(t, older, "x")
		writeFile(t, newer, "x")
		base := time.Now().Add(-time.Hour)
		So(os.Chtimes(older, base, base), ShouldBeNil)
		So(os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)), ShouldBeNil)

		writeFile(t, filepath.Join(wd.Ready(), "error_message_leftover.png"), "x")

		files, err := wd.ListImagesByModTime(wd.Ready())
		So(err, ShouldBeNil)
		So(len(files), ShouldEqual, 2)
		So(filepath.Base(files[0]), ShouldEqual, "zlast.png")
		So(filepath.Base(files[1]), ShouldEqual, "afirst.png")
	})
}

func TestFindReadyImage(t *testing.T) {
	Convey("FindReadyImage 先精确后按词干找图", t, func() {
		wd := New(t.TempDir())
		So(wd.EnsureAll(), ShouldBeNil)

		writeFile(t, filepath.Join(wd.Ready(), "Sunset_Beach_20250101_120000_000.jpg"), "x")

		Convey("精确命中", func() {
			path, ok := wd.FindReadyImage("Sunset_Beach_20250101_120000_000.jpg")
			So(ok, ShouldBeTrue)
			So(filepath.Base(path), ShouldEqual, "Sunset_Beach_20250101_120000_000.jpg")
		})

		Convey("JSON 里记的是 .png，按词干换扩展名找到 .jpg", func() {
			path, ok := wd.FindReadyImage("Sunset_Beach_20250101_120000_000.png")
			So(ok, ShouldBeTrue)
			So(strings.HasSuffix(path, ".jpg"), ShouldBeTrue)
		})

		Convey("找不到返回 false", func() {
			_, ok := wd.FindReadyImage("Nope_20250101_120000_000.png")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestMove(t *testing.T) {
	Convey("Move 移动文件并处理重名与重复移动", t, func() {
		wd := New(t.TempDir())
		So(wd.EnsureAll(), ShouldBeNil)

		src := filepath.Join(wd.PromptJSON(), "a.json")
		writeFile(t, src, `{"pic_name":"a.png"}`)

		Convey("正常移动", func() {
			dst, err := wd.MoveToUsed(src)
			So(err, ShouldBeNil)
			So(dst, ShouldEqual, filepath.Join(wd.UsedJSON(), "a.json"))
			_, statErr := os.Stat(src)
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("目标重名时加时间戳后缀", func() {
			writeFile(t, filepath.Join(wd.UsedJSON(), "a.json"), "occupied")
			dst, err := wd.MoveToUsed(src)
			So(err, ShouldBeNil)
			So(filepath.Base(dst), ShouldNotEqual, "a.json")
			So(filepath.Base(dst), ShouldStartWith, "a_")
			So(filepath.Ext(dst), ShouldEqual, ".json")
		})

		Convey("源不存在但目标已存在时视为已移动", func() {
			dst1, err := wd.MoveToUsed(src)
			So(err, ShouldBeNil)
			dst2, err := wd.MoveToUsed(src)
			So(err, ShouldBeNil)
			So(dst2, ShouldEqual, dst1)
		})

		Convey("源与目标都不存在时报错", func() {
			_, err := wd.MoveToUsed(filepath.Join(wd.PromptJSON(), "ghost.json"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "source file not found")
		})
	})
}

func TestMoveToFailed(t *testing.T) {
	Convey("MoveToFailed 移动并写错误说明侧文件", t, func() {
		wd := New(t.TempDir())
		So(wd.EnsureAll(), ShouldBeNil)

		src := filepath.Join(wd.PromptJSON(), "bad.json")
		writeFile(t, src, "{broken")

		dst, err := wd.MoveToFailed(src, "invalid JSON")
		So(err, ShouldBeNil)
		So(dst, ShouldEqual, filepath.Join(wd.FailedJSON(), "bad.json"))

		note, err := os.ReadFile(filepath.Join(wd.FailedJSON(), "bad.error.txt"))
		So(err, ShouldBeNil)
		So(string(note), ShouldContainSubstring, "invalid JSON")
		So(string(note), ShouldContainSubstring, "Timestamp:")
	})
}
