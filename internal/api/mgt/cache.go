package mgt

import (
	"context"

	"forum_go/internal/pkg/response"
	"forum_go/internal/service"

	"github.com/gin-gonic/gin"
)

// Reloader 运行时数据重新加载
type Reloader interface {
	Reload(ctx context.Context) error
}

// CacheHandler Cache Management API Handler
type CacheHandler struct {
	svc     *service.ThreadService
	runtime Reloader
}

// NewCacheHandler 创建CacheHandler
func NewCacheHandler(svc *service.ThreadService, runtime Reloader) *CacheHandler {
	return &CacheHandler{svc: svc, runtime: runtime}
}

// Flush POST /api/mgt/cache/flush
func (h *CacheHandler) Flush(c *gin.Context) {
	if err := h.svc.FlushCache(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "cache flushed")
}

// Prewarm POST /api/mgt/cache/prewarm
// 重新加载版块树并预热 zone memo
func (h *CacheHandler) Prewarm(c *gin.Context) {
	if err := h.runtime.Reload(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "cache prewarmed")
}
