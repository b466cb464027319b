package status

import (
	"reel/internal/service/status"
)

// Handler 状态查询处理器
// 所有状态接口的 Handler 方法都通过这个结构体访问 Service
type Handler struct {
	statusService status.StatusService
}

// NewHandler 创建状态查询处理器
func NewHandler(statusService status.StatusService) *Handler {
	return &Handler{
		statusService: statusService,
	}
}
