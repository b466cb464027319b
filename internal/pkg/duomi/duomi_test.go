package duomi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: time.Millisecond,
		MaxWait:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new duomi client: %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	Convey("创建多米图生视频客户端", t, func() {
		Convey("缺少 API Key 时报错", func() {
			c, err := NewClient(&Config{})
			So(c, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "DUOMI_API_KEY")
		})

		Convey("未配置项落到默认值", func() {
			c, err := NewClient(&Config{APIKey: "k"})
			So(err, ShouldBeNil)
			So(c.baseURL, ShouldEqual, "http://duomiapi.com")
			So(c.model, ShouldEqual, "kling-v2-1")
			So(c.mode, ShouldEqual, "std")
			So(c.duration, ShouldEqual, 5)
			So(c.aspectRatio, ShouldEqual, "16:9")
			So(c.cfgScale, ShouldEqual, 0.5)
			So(c.negativePrompt, ShouldEqual, DefaultNegativePrompt)
			So(c.pollInterval, ShouldEqual, 10*time.Second)
			So(c.maxWait, ShouldEqual, 30*time.Minute)
		})

		Convey("BaseURL 末尾斜杠被去掉", func() {
			c, err := NewClient(&Config{APIKey: "k", BaseURL: "http://example.com/"})
			So(err, ShouldBeNil)
			So(c.baseURL, ShouldEqual, "http://example.com")
		})
	})
}

func TestCreateTask(t *testing.T) {
	Convey("提交图生视频任务", t, func() {
		ctx := context.Background()

		Convey("提交成功返回任务 ID", func() {
			var gotAuth, gotPath string
			var gotPayload map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotPayload)
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"code":0,"message":"ok","data":{"task_id":"task-123"}}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			taskID, err := client.CreateTask(ctx, "https://img.example.com/cat.jpg", "a cat running")
			So(err, ShouldBeNil)
			So(taskID, ShouldEqual, "task-123")
			// 多米鉴权是裸 Key，没有 Bearer 前缀
			So(gotAuth, ShouldEqual, "test-key")
			So(gotPath, ShouldEqual, "/api/video/kling/v1/videos/image2video")
			So(gotPayload["model_name"], ShouldEqual, "kling-v2-1")
			So(gotPayload["mode"], ShouldEqual, "std")
			So(gotPayload["duration"], ShouldEqual, float64(5))
			So(gotPayload["image"], ShouldEqual, "https://img.example.com/cat.jpg")
			So(gotPayload["prompt"], ShouldEqual, "a cat running")
			So(gotPayload["negative_prompt"], ShouldEqual, DefaultNegativePrompt)
			So(gotPayload["cfg_scale"], ShouldEqual, 0.5)
		})

		Convey("业务错误码透出 message", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":1001,"message":"quota exceeded"}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.CreateTask(ctx, "https://img.example.com/cat.jpg", "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "quota exceeded")
			So(err.Error(), ShouldContainSubstring, "code 1001")
		})

		Convey("响应缺少任务 ID 时报错", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":0,"message":"ok","data":{}}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.CreateTask(ctx, "https://img.example.com/cat.jpg", "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "task ID is empty")
		})

		Convey("HTTP 状态码非 200 时带响应体报错", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("upstream exploded"))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.CreateTask(ctx, "https://img.example.com/cat.jpg", "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "status 500")
			So(err.Error(), ShouldContainSubstring, "upstream exploded")
		})
	})
}

func TestGetTask(t *testing.T) {
	Convey("查询任务状态", t, func() {
		ctx := context.Background()

		Convey("成功态带视频地址", func() {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Write([]byte(`{"code":0,"data":{"task_status":"succeed","task_result":{"videos":[{"url":"https://cdn.example.com/out.mp4"}]}}}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			state, err := client.GetTask(ctx, "task-9")
			So(err, ShouldBeNil)
			So(gotPath, ShouldEqual, "/api/video/kling/v1/videos/image2video/task-9")
			So(state.Status, ShouldEqual, TaskStatusSucceed)
			So(state.VideoURL, ShouldEqual, "https://cdn.example.com/out.mp4")
		})

		Convey("处理中没有视频地址", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":0,"data":{"task_status":"processing"}}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			state, err := client.GetTask(ctx, "task-9")
			So(err, ShouldBeNil)
			So(state.Status, ShouldEqual, TaskStatusProcessing)
			So(state.VideoURL, ShouldBeEmpty)
		})
	})
}

func TestGenerateVideo(t *testing.T) {
	Convey("提交并轮询图生视频任务", t, func() {
		ctx := context.Background()

		Convey("轮询到成功后下载视频数据", func() {
			var polls atomic.Int32
			var server *httptest.Server
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodPost:
					w.Write([]byte(`{"code":0,"data":{"task_id":"task-42"}}`))
				case r.URL.Path == "/files/out.mp4":
					w.Write([]byte("fake-video-bytes"))
				default:
					if polls.Add(1) < 2 {
						w.Write([]byte(`{"code":0,"data":{"task_status":"processing"}}`))
						return
					}
					w.Write([]byte(`{"code":0,"data":{"task_status":"succeed","task_result":{"videos":[{"url":"` + server.URL + `/files/out.mp4"}]}}}`))
				}
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			data, err := client.GenerateVideo(ctx, "https://img.example.com/cat.jpg", "a cat running")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "fake-video-bytes")
			So(polls.Load(), ShouldEqual, 2)
		})

		Convey("任务失败时报错并带任务 ID", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Write([]byte(`{"code":0,"data":{"task_id":"task-bad"}}`))
					return
				}
				w.Write([]byte(`{"code":0,"data":{"task_status":"failed"}}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.GenerateVideo(ctx, "https://img.example.com/cat.jpg", "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "video generation task failed")
			So(err.Error(), ShouldContainSubstring, "task-bad")
		})

		Convey("超过最长等待时间后放弃", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Write([]byte(`{"code":0,"data":{"task_id":"task-slow"}}`))
					return
				}
				w.Write([]byte(`{"code":0,"data":{"task_status":"processing"}}`))
			}))
			defer server.Close()

			client, err := NewClient(&Config{
				APIKey:       "test-key",
				BaseURL:      server.URL,
				PollInterval: 5 * time.Millisecond,
				MaxWait:      20 * time.Millisecond,
			})
			So(err, ShouldBeNil)
			_, err = client.GenerateVideo(ctx, "https://img.example.com/cat.jpg", "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "video generation timeout")
		})

		Convey("轮询期间取消 context 立即返回", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Write([]byte(`{"code":0,"data":{"task_id":"task-cancel"}}`))
					return
				}
				w.Write([]byte(`{"code":0,"data":{"task_status":"processing"}}`))
			}))
			defer server.Close()

			client, err := NewClient(&Config{
				APIKey:       "test-key",
				BaseURL:      server.URL,
				PollInterval: 200 * time.Millisecond,
				MaxWait:      time.Minute,
			})
			So(err, ShouldBeNil)

			cctx, cancel := context.WithCancel(ctx)
			time.AfterFunc(5*time.Millisecond, cancel)
			_, err = client.GenerateVideo(cctx, "https://img.example.com/cat.jpg", "prompt")
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestNewImageClient(t *testing.T) {
	Convey("创建多米文生图客户端", t, func() {
		Convey("缺少 API Key 时报错", func() {
			c, err := NewImageClient(&ImageConfig{})
			So(c, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "DUOMI_API_KEY")
		})

		Convey("未配置项落到默认值", func() {
			c, err := NewImageClient(&ImageConfig{APIKey: "k"})
			So(err, ShouldBeNil)
			So(c.baseURL, ShouldEqual, "https://duomiapi.com")
			So(c.model, ShouldEqual, "stabilityai/stable-diffusion-xl-base-1.0")
			So(c.imageSize, ShouldEqual, "1080x1920")
			So(c.batchSize, ShouldEqual, 1)
			So(c.seed, ShouldEqual, int64(51515151))
			So(c.inferenceSteps, ShouldEqual, 20)
			So(c.guidanceScale, ShouldEqual, 7.5)
		})
	})
}

func TestGenerateImage(t *testing.T) {
	Convey("多米文生图", t, func() {
		ctx := context.Background()

		Convey("生成成功返回首张图片 URL", func() {
			var gotAuth, gotPath string
			var gotPayload map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotPayload)
				w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/gen.png"}]}`))
			}))
			defer server.Close()

			client, err := NewImageClient(&ImageConfig{APIKey: "img-key", BaseURL: server.URL})
			So(err, ShouldBeNil)
			url, err := client.GenerateImage(ctx, "sunset over mountains")
			So(err, ShouldBeNil)
			So(url, ShouldEqual, "https://cdn.example.com/gen.png")
			So(gotAuth, ShouldEqual, "img-key")
			So(gotPath, ShouldEqual, "/v1/images/generations")
			So(gotPayload["model"], ShouldEqual, "stabilityai/stable-diffusion-xl-base-1.0")
			So(gotPayload["prompt"], ShouldEqual, "sunset over mountains")
			So(gotPayload["image_size"], ShouldEqual, "1080x1920")
			So(gotPayload["seed"], ShouldEqual, float64(51515151))
			So(gotPayload["num_inference_steps"], ShouldEqual, float64(20))
			So(gotPayload["guidance_scale"], ShouldEqual, 7.5)
		})

		Convey("结果为空时报错", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[]}`))
			}))
			defer server.Close()

			client, err := NewImageClient(&ImageConfig{APIKey: "img-key", BaseURL: server.URL})
			So(err, ShouldBeNil)
			_, err = client.GenerateImage(ctx, "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no image URL")
		})

		Convey("HTTP 错误透出状态码", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("bad key"))
			}))
			defer server.Close()

			client, err := NewImageClient(&ImageConfig{APIKey: "img-key", BaseURL: server.URL})
			So(err, ShouldBeNil)
			_, err = client.GenerateImage(ctx, "prompt")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "status 401")
		})
	})
}
