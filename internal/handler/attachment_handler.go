package handler

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/middleware"
	"github.com/mbeoliero/parley/internal/service"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/mbeoliero/parley/pkg/response"
)

// AttachmentHandler handles upload batches
type AttachmentHandler struct {
	attachmentService *service.AttachmentService
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(attachmentService *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// Upload stores a multipart batch under the policy named by the "policy"
// form field and returns one descriptor per file, in request order
func (h *AttachmentHandler) Upload(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		log.CtxDebug(ctx, "parse multipart failed: %v", err)
		response.ErrorWithCode(ctx, c, errcode.ErrNoFiles)
		return
	}

	policy, err := h.attachmentService.Policy(c.PostForm("policy"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	headers := append(form.File["files"], form.File["files[]"]...)
	files := make([]service.FileInput, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileInput(fh))
	}

	descriptors, err := h.attachmentService.Ingest(ctx, files, policy)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	log.CtxInfo(ctx, "attachments uploaded: user_id=%d, count=%d", userId, len(descriptors))
	response.Success(ctx, c, descriptors)
}

func fileInput(fh *multipart.FileHeader) service.FileInput {
	return service.FileInput{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
