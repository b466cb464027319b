package status

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats 获取流水线统计
// @Summary      获取流水线统计
// @Description  汇总图片/提示词/视频三张表的数量、状态分布与最近活动时间
// @Tags         状态查询
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"stats\": {...}}}"
// @Failure      500  {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.statusService.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"stats": stats,
		},
	})
}
