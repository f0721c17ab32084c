package controller

import (
	"context"
	"errors"
	"io"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/internal/service"
	"ai-docchat-be/pkg/conversation"
	"ai-docchat-be/pkg/document"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	UploadDocument(ctx *fiber.Ctx) error
	ClearDocument(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("/sessions", c.CreateSession)
	h.Get("/sessions/:id", c.GetSession)
	h.Delete("/sessions/:id", c.DeleteSession)
	h.Post("/sessions/:id/messages", c.SendMessage)
	h.Post("/sessions/:id/documents", c.UploadDocument)
	h.Delete("/sessions/:id/documents", c.ClearDocument)
	h.Post("/sessions/:id/clear", c.ClearSession)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	res, err := c.service.CreateSession(ctx.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.service.GetSession(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) UploadDocument(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing file field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	req := dto.UploadDocumentRequest{
		FileName:  fileHeader.Filename,
		MediaType: fileHeader.Header.Get(fiber.HeaderContentType),
		Data:      data,
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UploadDocument(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload document", res))
}

func (c *chatController) ClearDocument(ctx *fiber.Ctx) error {
	res, err := c.service.ClearDocument(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear document", res))
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	res, err := c.service.ClearSession(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear session", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	if err := c.service.DeleteSession(ctx.UserContext(), ctx.Params("id")); err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

// toHTTPError maps domain errors onto status codes. Anything unknown passes
// through and ends up as a 500.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	case errors.Is(err, conversation.ErrEmptyInput):
		return fiber.NewError(fiber.StatusBadRequest, "Message must not be empty")
	case errors.Is(err, conversation.ErrReplyPending):
		return fiber.NewError(fiber.StatusConflict, "A reply is still pending for this session")
	case errors.Is(err, document.ErrUnsupportedFormat):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, service.UnsupportedFormatNotice)
	case errors.Is(err, document.ErrExtractionFailed):
		return fiber.NewError(fiber.StatusUnprocessableEntity, service.ExtractionFailedNotice)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusRequestTimeout, "Request cancelled")
	}
	return err
}
