package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/middleware"
	"github.com/mbeoliero/parley/internal/service"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/mbeoliero/parley/pkg/response"
)

// MessageHandler handles message requests for both thread kinds
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// SendMessageRequest represents send message request. Conversation routes
// read conversation_id, thread routes read thread_id.
type SendMessageRequest struct {
	ConversationId int64                         `json:"conversation_id"`
	ThreadId       int64                         `json:"thread_id"`
	ClientMsgId    string                        `json:"client_msg_id"`
	Body           string                        `json:"body"`
	Attachments    []entity.AttachmentDescriptor `json:"attachments"`
}

// SendConversationMessage appends to a direct conversation
func (h *MessageHandler) SendConversationMessage(ctx context.Context, c *app.RequestContext) {
	h.send(ctx, c, constant.ThreadKindDirect)
}

// SendThreadMessage appends to an enquiry thread
func (h *MessageHandler) SendThreadMessage(ctx context.Context, c *app.RequestContext) {
	h.send(ctx, c, constant.ThreadKindEnquiry)
}

func (h *MessageHandler) send(ctx context.Context, c *app.RequestContext, kind string) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	threadId := req.ThreadId
	if kind == constant.ThreadKindDirect {
		threadId = req.ConversationId
	}
	if threadId <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.Append(ctx, &service.AppendRequest{
		ThreadId:    threadId,
		SenderId:    userId,
		Kind:        kind,
		ClientMsgId: req.ClientMsgId,
		Body:        req.Body,
		Attachments: req.Attachments,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo(0))
}

// GetConversationHistory pages through a direct conversation. Query
// page/page_size, or the incremental cursors: after_seq is exact, while
// since (created_at, exclusive) can skip a message that shares the last
// seen millisecond, so clients should prefer after_seq.
func (h *MessageHandler) GetConversationHistory(ctx context.Context, c *app.RequestContext) {
	h.history(ctx, c, constant.ThreadKindDirect, "conversation_id")
}

// GetThreadHistory pages through an enquiry thread. Same query as
// GetConversationHistory; prefer after_seq over since.
func (h *MessageHandler) GetThreadHistory(ctx context.Context, c *app.RequestContext) {
	h.history(ctx, c, constant.ThreadKindEnquiry, "thread_id")
}

func (h *MessageHandler) history(ctx context.Context, c *app.RequestContext, kind, idKey string) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	threadId, err := queryId(c, idKey)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	req := &service.HistoryRequest{ThreadId: threadId, ViewerId: userId, Kind: kind}

	var page, pageSize int64
	for key, dst := range map[string]*int64{
		"page":      &page,
		"page_size": &pageSize,
		"since":     &req.SinceCreatedAt,
		"after_seq": &req.AfterSeq,
	} {
		if *dst, err = queryInt(c, key); err != nil {
			response.Error(ctx, c, err)
			return
		}
	}
	req.Page = int(page)
	req.PageSize = int(pageSize)

	result, err := h.msgService.History(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
