package status

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reel/internal/service/status"
)

// ListVideosRequest 视频列表请求
type ListVideosRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending generating completed failed"` // 状态过滤（可选）
	Limit  int    `form:"limit,default=50" binding:"omitempty,min=1,max=500"`                   // 返回条数（默认50）
}

// ListVideosResponseData 视频列表响应数据
type ListVideosResponseData struct {
	Videos []VideoInfo `json:"videos"` // 视频列表
	Count  int         `json:"count"`  // 视频数量
	Status string      `json:"status,omitempty"` // 查询的状态
}

// ListVideos 查询视频列表
// @Summary      查询视频列表
// @Description  按状态过滤视频记录；不传 status 时按 ID 倒序返回最近的记录
// @Tags         状态查询
// @Produce      json
// @Param        status  query     string  false  "视频状态：pending, generating, completed, failed"
// @Param        limit   query     int     false  "返回条数（1-500，默认50）"
// @Success      200     {object}  map[string]interface{}  "成功响应"
// @Failure      400     {object}  ErrorResponse  "请求参数错误"
// @Failure      500     {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/videos [get]
func (h *Handler) ListVideos(c *gin.Context) {
	var req ListVideosRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid query parameters",
			Detail:  err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	videos, err := h.statusService.ListVideos(ctx, req.Status, req.Limit)
	if err != nil {
		if errors.Is(err, status.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    40001,
				Message: "Invalid status parameter",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": ListVideosResponseData{
			Videos: toVideoInfoList(videos),
			Count:  len(videos),
			Status: req.Status,
		},
	})
}
