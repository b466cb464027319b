package freeimage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	Convey("NewClient 校验密钥并填默认值", t, func() {
		Convey("缺少 API Key 报错", func() {
			_, err := NewClient(&Config{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "FREEIMAGE_API_KEY")
		})

		Convey("只给密钥时其余走默认", func() {
			client, err := NewClient(&Config{APIKey: "k"})
			So(err, ShouldBeNil)
			So(client.baseURL, ShouldEqual, DefaultBaseURL)
			So(client.maxRetries, ShouldEqual, 3)
			So(client.retryDelay, ShouldEqual, time.Second)
		})
	})
}

func TestIsSupportedImage(t *testing.T) {
	Convey("IsSupportedImage 按扩展名判断", t, func() {
		So(IsSupportedImage("a.png"), ShouldBeTrue)
		So(IsSupportedImage("a.JPG"), ShouldBeTrue)
		So(IsSupportedImage("a.webp"), ShouldBeTrue)
		So(IsSupportedImage("a.txt"), ShouldBeFalse)
		So(IsSupportedImage("a"), ShouldBeFalse)

		So(MIMEType("a.png"), ShouldEqual, "image/png")
		So(MIMEType("a.unknown"), ShouldEqual, "image/jpeg")
	})
}

func TestUploadData(t *testing.T) {
	Convey("UploadData 走 multipart 上传", t, func() {
		Convey("成功响应解析出 URL 和图片 ID", func() {
			var gotKey, gotFormat, gotFilename string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(10 << 20); err == nil {
					gotKey = r.FormValue("key")
					gotFormat = r.FormValue("format")
					if _, header, err := r.FormFile("source"); err == nil {
						gotFilename = header.Filename
					}
				}
				fmt.Fprint(w, `{"status_code":200,"success":{"message":"image uploaded","code":200},"image":{"url":"https://iili.io/abc.png","id":"abc"}}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 1)
			result, err := client.UploadData(context.Background(), "cat.png", []byte("fakepng"))
			So(err, ShouldBeNil)
			So(result.URL, ShouldEqual, "https://iili.io/abc.png")
			So(result.ImageID, ShouldEqual, "abc")
			So(result.FileSizeBytes, ShouldEqual, int64(len("fakepng")))
			So(gotKey, ShouldEqual, "test-key")
			So(gotFormat, ShouldEqual, "json")
			So(gotFilename, ShouldEqual, "cat.png")
		})

		Convey("失败后重试，第二次成功", func() {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) == 1 {
					fmt.Fprint(w, `{"status_code":400,"error":{"message":"flooded","code":130}}`)
					return
				}
				fmt.Fprint(w, `{"status_code":200,"success":{"code":200},"image":{"url":"https://iili.io/ok.png","id":"ok"}}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 3)
			result, err := client.UploadData(context.Background(), "cat.png", []byte("x"))
			So(err, ShouldBeNil)
			So(result.URL, ShouldEqual, "https://iili.io/ok.png")
			So(atomic.LoadInt32(&calls), ShouldEqual, 2)
		})

		Convey("重试耗尽返回带错误信息的失败", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"status_code":400,"error":{"message":"invalid key","code":100}}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 2)
			_, err := client.UploadData(context.Background(), "cat.png", []byte("x"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "after 2 attempts")
			So(err.Error(), ShouldContainSubstring, "invalid key")
		})

		Convey("非 JSON 响应报错", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>gateway error</html>")
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 1)
			_, err := client.UploadData(context.Background(), "cat.png", []byte("x"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "invalid JSON response")
		})

		Convey("上下文取消后不再重试", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"status_code":500,"error":{"message":"boom"}}`)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			client := newTestClient(t, server.URL, 3)
			_, err := client.UploadData(ctx, "cat.png", []byte("x"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestUpload(t *testing.T) {
	Convey("Upload 读取本地文件后上传", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status_code":200,"success":{"code":200},"image":{"url":"https://iili.io/f.png","id":"f"}}`)
		}))
		defer server.Close()
		client := newTestClient(t, server.URL, 1)

		Convey("正常文件", func() {
			path := filepath.Join(t.TempDir(), "photo.png")
			So(os.WriteFile(path, []byte("data"), 0o644), ShouldBeNil)

			result, err := client.Upload(context.Background(), path)
			So(err, ShouldBeNil)
			So(result.FileSizeBytes, ShouldEqual, 4)
		})

		Convey("不支持的扩展名", func() {
			path := filepath.Join(t.TempDir(), "doc.txt")
			So(os.WriteFile(path, []byte("data"), 0o644), ShouldBeNil)

			_, err := client.Upload(context.Background(), path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "invalid image file type")
		})

		Convey("文件不存在", func() {
			_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
			So(err, ShouldNotBeNil)
		})
	})
}
