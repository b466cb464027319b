package status

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mediarepo "reel/internal/repository/media"
)

// GetImageRequest 获取图片详情请求
type GetImageRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"` // 图片ID（必填）
}

// GetImageResponseData 获取图片详情响应数据
type GetImageResponseData struct {
	Image  ImageInfo   `json:"image"`            // 图片信息
	Prompt *PromptInfo `json:"prompt,omitempty"` // 提示词（可能尚未生成）
	Videos []VideoInfo `json:"videos"`           // 名下视频
}

// GetImage 获取图片详情
// @Summary      获取图片详情
// @Description  根据图片ID返回图片记录及其提示词与所有生成的视频
// @Tags         状态查询
// @Produce      json
// @Param        id   path      int  true  "图片ID"
// @Success      200  {object}  map[string]interface{}  "成功响应"
// @Failure      400  {object}  ErrorResponse  "请求参数错误"
// @Failure      404  {object}  ErrorResponse  "图片不存在"
// @Failure      500  {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/images/{id} [get]
func (h *Handler) GetImage(c *gin.Context) {
	var req GetImageRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid image id",
			Detail:  err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	detail, err := h.statusService.ImageDetail(ctx, req.ID)
	if err != nil {
		if errors.Is(err, mediarepo.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    40401,
				Message: "image not found",
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
		"data": GetImageResponseData{
			Image:  toImageInfo(detail.Image),
			Prompt: toPromptInfo(detail.Prompt),
			Videos: toVideoInfoList(detail.Videos),
		},
	})
}
