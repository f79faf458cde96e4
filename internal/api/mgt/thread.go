package mgt

import (
	"strconv"

	"forum_go/internal/middleware"
	"forum_go/internal/model"
	"forum_go/internal/pkg/apperr"
	"forum_go/internal/pkg/response"
	"forum_go/internal/service"

	"github.com/gin-gonic/gin"
)

// ThreadHandler Thread Management API Handler
type ThreadHandler struct {
	svc *service.ThreadService
}

// NewThreadHandler 创建ThreadHandler
func NewThreadHandler(svc *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{svc: svc}
}

// Create POST /api/mgt/thread
func (h *ThreadHandler) Create(c *gin.Context) {
	var req model.CreateThreadInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	viewer := middleware.ViewerFrom(c)
	if viewer == nil {
		response.Unauthorized(c, "unauthorized")
		return
	}
	req.UserID = viewer.ID

	view, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, apperr.WrapError(err, apperr.CodeThreadCreateErr))
		return
	}
	response.Success(c, view)
}

// Solved PUT /api/mgt/thread/:tid/solved
// 作者本人或版主可操作
func (h *ThreadHandler) Solved(c *gin.Context) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	var req model.SolvedInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.ThreadID = tid

	viewer := middleware.ViewerFrom(c)
	view, err := h.svc.GetByID(c.Request.Context(), tid, viewer)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if view == nil {
		response.Fail(c, apperr.ErrThreadNotFound)
		return
	}
	if view.Permissions == nil || !view.Permissions.CanEdit {
		response.Forbidden(c, "only the author or a moderator can change solved status")
		return
	}

	if err := h.svc.UpdateSolvedStatus(c.Request.Context(), req); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// PostCount POST /api/mgt/thread/:tid/post-count
func (h *ThreadHandler) PostCount(c *gin.Context) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}
	h.svc.UpdatePostCount(c.Request.Context(), tid)
	response.Success(c, nil)
}
