package controller

import (
	"medichat-be/internal/dto"
	"medichat-be/internal/pkg/apperror"
	"medichat-be/internal/pkg/serverutils"
	"medichat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	StartSession(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
	GetAllSessions(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
	verifier       serverutils.TokenVerifier
}

func NewChatbotController(chatbotService service.IChatbotService, verifier serverutils.TokenVerifier) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		verifier:       verifier,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	r.Use(serverutils.AuthMiddleware(c.verifier))
	r.Post("/start", c.StartSession)
	r.Post("/chat", c.SendChat)
	r.Get("/sessions", c.GetAllSessions)
	r.Get("/history/:session_id", c.GetChatHistory)
	r.Delete("/session/:session_id", c.DeleteSession)
}

func (c *chatbotController) StartSession(ctx *fiber.Ctx) error {
	identity := serverutils.IdentityFromCtx(ctx)

	res, err := c.chatbotService.StartSession(ctx.Context(), identity)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) SendChat(ctx *fiber.Ctx) error {
	identity := serverutils.IdentityFromCtx(ctx)

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatbotService.SendChat(ctx.Context(), identity, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) GetAllSessions(ctx *fiber.Ctx) error {
	identity := serverutils.IdentityFromCtx(ctx)

	res, err := c.chatbotService.GetAllSessions(ctx.Context(), identity)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) GetChatHistory(ctx *fiber.Ctx) error {
	identity := serverutils.IdentityFromCtx(ctx)

	sessionId, err := uuid.Parse(ctx.Params("session_id"))
	if err != nil {
		return apperror.SessionNotFound()
	}

	res, err := c.chatbotService.GetChatHistory(ctx.Context(), identity, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) DeleteSession(ctx *fiber.Ctx) error {
	identity := serverutils.IdentityFromCtx(ctx)

	sessionId, err := uuid.Parse(ctx.Params("session_id"))
	if err != nil {
		return apperror.SessionNotFound()
	}

	res, err := c.chatbotService.DeleteSession(ctx.Context(), identity, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}
