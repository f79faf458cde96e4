package v1

import (
	"strconv"

	"forum_go/internal/middleware"
	"forum_go/internal/model"
	"forum_go/internal/pkg/response"
	"forum_go/internal/pkg/util"
	"forum_go/internal/service"

	"github.com/gin-gonic/gin"
)

// ThreadHandler Thread API Handler
type ThreadHandler struct {
	svc *service.ThreadService
}

// NewThreadHandler 创建ThreadHandler
func NewThreadHandler(svc *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{svc: svc}
}

// List GET /api/v1/threads?tab=&page=&limit=&forum_id=
func (h *ThreadHandler) List(c *gin.Context) {
	forumID, err := util.OptionalInt64(c.Query("forum_id"))
	if err != nil {
		response.BadRequest(c, "invalid forum_id")
		return
	}

	page, err := h.svc.FetchByTab(c.Request.Context(),
		c.DefaultQuery("tab", model.TabRecent),
		util.IntOr(c.Query("page"), 1),
		util.IntOr(c.Query("limit"), 0),
		forumID,
		middleware.ViewerFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, page)
}

// Search GET /api/v1/threads/search
func (h *ThreadHandler) Search(c *gin.Context) {
	filters := model.ThreadFilters{
		Search:      c.Query("q"),
		Tag:         c.Query("tag"),
		Sort:        model.ThreadSort(c.Query("sort")),
		StickyFirst: c.Query("sticky_first") == "true",
		Page:        util.IntOr(c.Query("page"), 1),
		Limit:       util.IntOr(c.Query("limit"), 0),
	}

	var err error
	if filters.ForumID, err = util.OptionalInt64(c.Query("forum_id")); err != nil {
		response.BadRequest(c, "invalid forum_id")
		return
	}
	if filters.UserID, err = util.OptionalInt64(c.Query("user_id")); err != nil {
		response.BadRequest(c, "invalid user_id")
		return
	}
	if c.Query("following") == "true" {
		viewer := middleware.ViewerFrom(c)
		if viewer == nil {
			response.Unauthorized(c, "login required for following filter")
			return
		}
		filters.FollowerID = &viewer.ID
	}

	result, err := h.svc.Search(c.Request.Context(), filters)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, result)
}

// Get GET /api/v1/thread/:tid
func (h *ThreadHandler) Get(c *gin.Context) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	view, err := h.svc.GetByID(c.Request.Context(), tid, middleware.ViewerFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	if view == nil {
		response.NotFound(c, "thread not found")
		return
	}
	response.Success(c, view)
}

// GetBySlug GET /api/v1/thread/slug/:slug?forum_id=
func (h *ThreadHandler) GetBySlug(c *gin.Context) {
	forumID, err := util.OptionalInt64(c.Query("forum_id"))
	if err != nil {
		response.BadRequest(c, "invalid forum_id")
		return
	}

	view, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"), forumID, middleware.ViewerFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	if view == nil {
		response.NotFound(c, "thread not found")
		return
	}
	response.Success(c, view)
}

// View POST /api/v1/thread/:tid/view
// 计数失败不影响响应
func (h *ThreadHandler) View(c *gin.Context) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}
	h.svc.IncrementViewCount(c.Request.Context(), tid)
	response.Success(c, nil)
}
