package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/parley/internal/middleware"
	"github.com/mbeoliero/parley/internal/service"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/mbeoliero/parley/pkg/response"
)

// ThreadHandler handles enquiry thread requests and the unread summary
type ThreadHandler struct {
	threadService *service.ThreadService
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(threadService *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{threadService: threadService}
}

// CreateThread opens a new enquiry thread from the caller to a target
func (h *ThreadHandler) CreateThread(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.CreateThreadRequest
	if err := c.Bind(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	req.InitiatorId = userId

	thread, err := h.threadService.Create(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, thread)
}

// GetThreadList handles get thread list request
func (h *ThreadHandler) GetThreadList(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	threads, err := h.threadService.List(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, threads)
}

// GetThread handles get single thread request
func (h *ThreadHandler) GetThread(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	threadId, err := queryId(c, "thread_id")
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	thread, err := h.threadService.Get(ctx, userId, threadId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, thread)
}

// ThreadIdRequest carries a thread id in the body
type ThreadIdRequest struct {
	ThreadId int64 `json:"thread_id"`
}

// MarkRead handles mark thread as read request
func (h *ThreadHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req ThreadIdRequest
	if err := c.Bind(&req); err != nil || req.ThreadId <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.threadService.MarkRead(ctx, req.ThreadId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// GetUnreadSummary totals unread counters over conversations and threads
func (h *ThreadHandler) GetUnreadSummary(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	summary, err := h.threadService.UnreadSummary(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, summary)
}
