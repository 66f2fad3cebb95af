package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/identity"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/metrics"
)

func NewServer(h *Handlers, jv *identity.JWTVerifier) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/v1")

	api.Use(func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		if hdr == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing auth"})
		}
		const pref = "Bearer "
		if len(hdr) <= len(pref) || hdr[:len(pref)] != pref {
			return c.Status(401).JSON(fiber.Map{"error": "invalid auth"})
		}
		claims, err := jv.Verify(hdr[len(pref):])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		c.Locals("user_id", claims.UID)
		c.Locals("role", claims.Role)
		return c.Next()
	})

	api.Post("/chats", h.createChat)
	api.Get("/chats", h.listChats)
	api.Get("/chats/search", h.searchChats)
	api.Post("/chats/:chat_id/participants", h.addParticipant)
	api.Delete("/chats/:chat_id/participants/:user_id", h.removeParticipant)
	api.Post("/chats/:chat_id/messages", h.sendMessage)
	api.Get("/chats/:chat_id/messages", h.listMessages)
	api.Patch("/chats/:chat_id/messages/:msg_id", h.editMessage)
	api.Delete("/chats/:chat_id/messages/:msg_id", h.deleteMessage)
	api.Post("/chats/:chat_id/messages/:msg_id/read", h.markRead)
	api.Post("/chats/:chat_id/read-all", h.markAllRead)
	api.Post("/media", h.uploadMedia)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(h.stream))

	return app
}

// statusOf maps engine errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrNotGroup):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrPermission):
		return fiber.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrNotMember):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyMember), errors.Is(err, apperr.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
}
