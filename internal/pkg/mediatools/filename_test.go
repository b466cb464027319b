package mediatools

import (
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSafeFilename(t *testing.T) {
	Convey("SafeFilename 能把标题清洗成安全文件名", t, func() {
		Convey("替换非法字符为下划线", func() {
			So(SafeFilename(`a<b>c:d"e/f\g|h?i*j,k.l`), ShouldEqual, "a_b_c_d_e_f_g_h_i_j_k_l")
		})

		Convey("空白折叠为单个下划线", func() {
			So(SafeFilename("sunset   over\tthe sea"), ShouldEqual, "sunset_over_the_sea")
		})

		Convey("连续下划线折叠并去掉首尾", func() {
			So(SafeFilename("__red  /  panda__"), ShouldEqual, "red_panda")
		})

		Convey("超长标题截断到 50 个字符", func() {
			long := strings.Repeat("a", 80)
			So(len(SafeFilename(long)), ShouldEqual, 50)
		})

		Convey("纯符号标题清洗后为空", func() {
			So(SafeFilename("..//??"), ShouldEqual, "")
		})
	})
}

func TestFormatTimestamp(t *testing.T) {
	Convey("FormatTimestamp 输出毫秒级时间戳", t, func() {
		at := time.Date(2025, 1, 2, 15, 4, 5, 67_000_000, time.UTC)
		So(FormatTimestamp(at), ShouldEqual, "20250102_150405_067")
	})
}

func TestBuildNamesAt(t *testing.T) {
	Convey("BuildNamesAt 派生 JSON/图片/视频三个文件名", t, func() {
		at := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

		Convey("正常描述名加扩展名", func() {
			names := BuildNamesAt("Red Panda", ".png", at)
			So(names.JSON, ShouldEqual, "Red_Panda_20250314_092653_589.json")
			So(names.Image, ShouldEqual, "Red_Panda_20250314_092653_589.png")
			So(names.Video, ShouldEqual, "Red_Panda_20250314_092653_589.mp4")
		})

		Convey("扩展名缺少点号时自动补上", func() {
			names := BuildNamesAt("Cat", "jpg", at)
			So(names.Image, ShouldEndWith, ".jpg")
			So(names.Image, ShouldNotContainSubstring, "..")
		})

		Convey("描述名清洗后为空时退回 untitled", func() {
			names := BuildNamesAt("...", ".png", at)
			So(names.JSON, ShouldStartWith, "untitled_")
		})
	})
}

func TestDescriptiveNameFromFilename(t *testing.T) {
	Convey("DescriptiveNameFromFilename 从文件名还原描述名", t, func() {
		cases := []struct {
			filename string
			want     string
		}{
			{"sunset_beach_20250101_120000_000.json", "Sunset Beach"},
			{"Red_Panda_20250314_092653_589.png", "Red Panda"},
			{"old_stone_bridge_20240315_081530_250.mp4", "Old Stone Bridge"},
			{"untitled_20250101_120000_000.json", "Untitled"},
		}
		for _, c := range cases {
			So(DescriptiveNameFromFilename(c.filename), ShouldEqual, c.want)
		}

		Convey("段数不足时不裁剪，只做大小写转写", func() {
			So(DescriptiveNameFromFilename("cat.png"), ShouldEqual, "Cat")
		})

		Convey("只剩时间戳时还原为空", func() {
			So(DescriptiveNameFromFilename("20250101_120000_000.json"), ShouldEqual, "")
		})
	})
}
