package status

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reel/internal/service/status"
)

// ListImagesRequest 图片列表请求
type ListImagesRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending uploading success failed legacy"` // 状态过滤（可选）
	Limit  int    `form:"limit,default=50" binding:"omitempty,min=1,max=500"`                       // 返回条数（默认50）
}

// ListImagesResponseData 图片列表响应数据
type ListImagesResponseData struct {
	Images []ImageInfo `json:"images"` // 图片列表
	Count  int         `json:"count"`  // 图片数量
	Status string      `json:"status,omitempty"` // 查询的状态
}

// ListImages 查询图片列表
// @Summary      查询图片列表
// @Description  按状态过滤图片记录；不传 status 时按 ID 倒序返回最近的记录
// @Tags         状态查询
// @Produce      json
// @Param        status  query     string  false  "图片状态：pending, uploading, success, failed, legacy"
// @Param        limit   query     int     false  "返回条数（1-500，默认50）"
// @Success      200     {object}  map[string]interface{}  "成功响应"
// @Failure      400     {object}  ErrorResponse  "请求参数错误"
// @Failure      500     {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/images [get]
func (h *Handler) ListImages(c *gin.Context) {
	var req ListImagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid query parameters",
			Detail:  err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	images, err := h.statusService.ListImages(ctx, req.Status, req.Limit)
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
		"data": ListImagesResponseData{
			Images: toImageInfoList(images),
			Count:  len(images),
			Status: req.Status,
		},
	})
}
