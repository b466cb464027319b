package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFetch(t *testing.T) {
	Convey("Fetch 下载到内存", t, func() {
		Convey("正常下载", func() {
			payload := bytes.Repeat([]byte("img"), 100)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(payload)
			}))
			defer server.Close()

			client := NewClient(&Config{RetryDelay: time.Millisecond})
			data, err := client.Fetch(context.Background(), server.URL)
			So(err, ShouldBeNil)
			So(data, ShouldResemble, payload)
		})

		Convey("非 200 状态先重试后报错", func() {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.NotFound(w, r)
			}))
			defer server.Close()

			client := NewClient(&Config{MaxRetries: 2, RetryDelay: time.Millisecond})
			_, err := client.Fetch(context.Background(), server.URL)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "status code 404")
			So(atomic.LoadInt32(&calls), ShouldEqual, 2)
		})

		Convey("超过大小上限报错", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(bytes.Repeat([]byte("a"), 2<<20))
			}))
			defer server.Close()

			client := NewClient(&Config{MaxSizeMB: 1, MaxRetries: 1, RetryDelay: time.Millisecond})
			_, err := client.Fetch(context.Background(), server.URL)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "exceeds size limit")
		})

		Convey("恰好等于上限放行", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(bytes.Repeat([]byte("a"), 1<<20))
			}))
			defer server.Close()

			client := NewClient(&Config{MaxSizeMB: 1, MaxRetries: 1})
			data, err := client.Fetch(context.Background(), server.URL)
			So(err, ShouldBeNil)
			So(len(data), ShouldEqual, 1<<20)
		})
	})
}

func TestToFile(t *testing.T) {
	Convey("ToFile 落盘并返回写入字节数", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("downloaded-bytes"))
		}))
		defer server.Close()

		client := NewClient(&Config{MaxRetries: 1})
		dest := filepath.Join(t.TempDir(), "sub", "dir", "file.png")
		n, err := client.ToFile(context.Background(), server.URL, dest)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, int64(len("downloaded-bytes")))

		raw, err := os.ReadFile(dest)
		So(err, ShouldBeNil)
		So(string(raw), ShouldEqual, "downloaded-bytes")
	})
}
