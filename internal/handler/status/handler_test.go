package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"reel/internal/model/media"
	mediarepo "reel/internal/repository/media"
	"reel/internal/service/status"
)

// stubStatusService 可编程的只读服务桩
type stubStatusService struct {
	stats     *mediarepo.Statistics
	statsErr  error
	images    []*media.Image
	imagesErr error
	videos    []*media.Video
	videosErr error
	detail    *status.ImageDetail
	detailErr error

	gotStatus string
	gotLimit  int
	gotID     int64
}

func (s *stubStatusService) Stats(ctx context.Context) (*mediarepo.Statistics, error) {
	return s.stats, s.statsErr
}

func (s *stubStatusService) ListImages(ctx context.Context, st string, limit int) ([]*media.Image, error) {
	s.gotStatus, s.gotLimit = st, limit
	return s.images, s.imagesErr
}

func (s *stubStatusService) ListVideos(ctx context.Context, st string, limit int) ([]*media.Video, error) {
	s.gotStatus, s.gotLimit = st, limit
	return s.videos, s.videosErr
}

func (s *stubStatusService) ImageDetail(ctx context.Context, id int64) (*status.ImageDetail, error) {
	s.gotID = id
	return s.detail, s.detailErr
}

func newTestRouter(svc status.StatusService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	v1 := r.Group("/api/v1")
	{
		v1.GET("/stats", h.GetStats)
		v1.GET("/images", h.ListImages)
		v1.GET("/images/:id", h.GetImage)
		v1.GET("/videos", h.ListVideos)
	}
	return r
}

func doGet(r *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestGetStats(t *testing.T) {
	Convey("统计接口", t, func() {
		Convey("返回统计数据", func() {
			svc := &stubStatusService{stats: &mediarepo.Statistics{
				TotalImages: 3,
				TotalVideos: 1,
				ImagesByStatus: map[string]int{
					"success": 2,
					"failed":  1,
				},
			}}
			w, body := doGet(newTestRouter(svc), "/api/v1/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["code"], ShouldEqual, float64(0))

			data := body["data"].(map[string]interface{})
			stats := data["stats"].(map[string]interface{})
			So(stats["total_images"], ShouldEqual, float64(3))
			So(stats["total_videos"], ShouldEqual, float64(1))
			byStatus := stats["images_by_status"].(map[string]interface{})
			So(byStatus["success"], ShouldEqual, float64(2))
		})

		Convey("统计失败时返回 500", func() {
			svc := &stubStatusService{statsErr: errors.New("db unavailable")}
			w, body := doGet(newTestRouter(svc), "/api/v1/stats")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(body["code"], ShouldEqual, float64(50001))
			So(body["message"], ShouldEqual, "db unavailable")
		})
	})
}

func TestListImages(t *testing.T) {
	Convey("图片列表接口", t, func() {
		now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		Convey("默认按最近 50 条查询", func() {
			svc := &stubStatusService{images: []*media.Image{{
				ID:               1,
				OriginalFilename: "cat.jpg",
				Status:           media.UploadStatusSuccess,
				UploadURL:        "https://cdn.example.com/cat.jpg",
				CreatedAt:        now,
				UpdatedAt:        now,
			}}}
			w, body := doGet(newTestRouter(svc), "/api/v1/images")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(svc.gotStatus, ShouldBeEmpty)
			So(svc.gotLimit, ShouldEqual, 50)

			data := body["data"].(map[string]interface{})
			So(data["count"], ShouldEqual, float64(1))
			images := data["images"].([]interface{})
			first := images[0].(map[string]interface{})
			So(first["original_filename"], ShouldEqual, "cat.jpg")
			So(first["status"], ShouldEqual, "success")
			So(first["created_at"], ShouldEqual, "2025-06-01T10:00:00Z")
		})

		Convey("状态与条数透传给服务", func() {
			svc := &stubStatusService{}
			w, _ := doGet(newTestRouter(svc), "/api/v1/images?status=failed&limit=10")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(svc.gotStatus, ShouldEqual, "failed")
			So(svc.gotLimit, ShouldEqual, 10)
		})

		Convey("枚举外的状态被参数校验拦下", func() {
			svc := &stubStatusService{}
			w, body := doGet(newTestRouter(svc), "/api/v1/images?status=bogus")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, float64(40001))
		})

		Convey("服务判定状态非法时返回 400", func() {
			svc := &stubStatusService{imagesErr: status.ErrInvalidStatus}
			w, body := doGet(newTestRouter(svc), "/api/v1/images?status=legacy")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["message"], ShouldEqual, "Invalid status parameter")
		})

		Convey("limit 超出上限返回 400", func() {
			svc := &stubStatusService{}
			w, _ := doGet(newTestRouter(svc), "/api/v1/images?limit=501")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetImage(t *testing.T) {
	Convey("图片详情接口", t, func() {
		now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		Convey("返回图片、提示词与名下视频", func() {
			svc := &stubStatusService{detail: &status.ImageDetail{
				Image: &media.Image{
					ID:               7,
					OriginalFilename: "cat.jpg",
					Status:           media.UploadStatusSuccess,
					CreatedAt:        now,
					UpdatedAt:        now,
				},
				Prompt: &media.Prompt{ID: 3, VideoPrompt: "the cat stretches"},
				Videos: []*media.Video{{
					ID:                11,
					ImageID:           7,
					PromptType:        media.PromptTypeBase,
					GenerationService: media.ServiceDuomi,
					Status:            media.VideoStatusCompleted,
					CreatedAt:         now,
				}},
			}}
			w, body := doGet(newTestRouter(svc), "/api/v1/images/7")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(svc.gotID, ShouldEqual, 7)

			data := body["data"].(map[string]interface{})
			image := data["image"].(map[string]interface{})
			So(image["id"], ShouldEqual, float64(7))
			prompt := data["prompt"].(map[string]interface{})
			So(prompt["video_prompt"], ShouldEqual, "the cat stretches")
			videos := data["videos"].([]interface{})
			So(len(videos), ShouldEqual, 1)
			So(videos[0].(map[string]interface{})["generation_service"], ShouldEqual, "duomi")
		})

		Convey("不存在的图片返回 404", func() {
			svc := &stubStatusService{detailErr: mediarepo.ErrNotFound}
			w, body := doGet(newTestRouter(svc), "/api/v1/images/999")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(body["code"], ShouldEqual, float64(40401))
		})

		Convey("非数字 ID 返回 400", func() {
			svc := &stubStatusService{}
			w, _ := doGet(newTestRouter(svc), "/api/v1/images/abc")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestListVideos(t *testing.T) {
	Convey("视频列表接口", t, func() {
		now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		Convey("按状态过滤", func() {
			svc := &stubStatusService{videos: []*media.Video{{
				ID:            5,
				ImageID:       2,
				VideoFilename: "cat.mp4",
				PromptType:    media.PromptTypeRefined,
				Status:        media.VideoStatusCompleted,
				CreatedAt:     now,
			}}}
			w, body := doGet(newTestRouter(svc), "/api/v1/videos?status=completed")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(svc.gotStatus, ShouldEqual, "completed")

			data := body["data"].(map[string]interface{})
			So(data["count"], ShouldEqual, float64(1))
			videos := data["videos"].([]interface{})
			first := videos[0].(map[string]interface{})
			So(first["video_filename"], ShouldEqual, "cat.mp4")
			So(first["prompt_type"], ShouldEqual, "refined")
		})

		Convey("服务出错返回 500", func() {
			svc := &stubStatusService{videosErr: errors.New("query timeout")}
			w, body := doGet(newTestRouter(svc), "/api/v1/videos")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(body["code"], ShouldEqual, float64(50001))
		})
	})
}
