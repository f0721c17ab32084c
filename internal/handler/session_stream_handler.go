package handler

import (
	"encoding/json"
	"errors"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/internal/service"
	internalWS "ai-docchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SessionStreamHandler streams session updates to a watching UI.
type SessionStreamHandler struct {
	service service.IChatService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewSessionStreamHandler(service service.IChatService, hub *internalWS.Hub, log logger.ILogger) *SessionStreamHandler {
	return &SessionStreamHandler{
		service: service,
		hub:     hub,
		logger:  log,
	}
}

func (h *SessionStreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/v1/sessions/:id/ws", h.ServeWs)
}

// ServeWs upgrades the request and pushes the current snapshot first, then
// every update of the session until the peer disconnects.
func (h *SessionStreamHandler) ServeWs(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	snapshot, err := h.service.GetSession(c.UserContext(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "Session not found"))
		}
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	initial, err := json.Marshal(dto.SessionUpdateMessage{
		Type:      dto.PushTypeSession,
		SessionId: sessionID,
		Session:   snapshot,
	})
	if err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("SessionStream", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
		internalWS.ServeWs(h.hub, conn, sessionID, initial)
		h.logger.Info("SessionStream", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
	})(c)
}
