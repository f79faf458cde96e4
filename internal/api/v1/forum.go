package v1

import (
	"strconv"

	"forum_go/internal/pkg/response"
	"forum_go/internal/service"

	"github.com/gin-gonic/gin"
)

// ForumHandler Forum API Handler
type ForumHandler struct {
	svc *service.ForumService
}

// NewForumHandler 创建 ForumHandler
func NewForumHandler(svc *service.ForumService) *ForumHandler {
	return &ForumHandler{svc: svc}
}

// Tree GET /api/v1/forums/tree
func (h *ForumHandler) Tree(c *gin.Context) {
	tree, err := h.svc.GetTree(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tree)
}

// Zone GET /api/v1/forum/:fid/zone
func (h *ForumHandler) Zone(c *gin.Context) {
	fid, err := strconv.ParseInt(c.Param("fid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	zone, err := h.svc.ResolveZone(c.Request.Context(), fid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if zone == nil {
		response.NotFound(c, "forum not found")
		return
	}
	response.Success(c, zone)
}

// Descendants GET /api/v1/forum/:fid/descendants
func (h *ForumHandler) Descendants(c *gin.Context) {
	fid, err := strconv.ParseInt(c.Param("fid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	ids, err := h.svc.ExpandDescendants(c.Request.Context(), fid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"forum_id":    fid,
		"descendants": ids,
	})
}
