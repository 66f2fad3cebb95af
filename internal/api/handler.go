package api

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/blob"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/events"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/messagelog"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/registry"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/search"
)

type Handlers struct {
	reg   *registry.Registry
	mlog  *messagelog.Log
	idx   *search.Index
	blobs blob.Store
	pub   *events.Publisher
	log   *zap.SugaredLogger
}

func NewHandlers(reg *registry.Registry, mlog *messagelog.Log, idx *search.Index, blobs blob.Store, pub *events.Publisher, log *zap.SugaredLogger) *Handlers {
	return &Handlers{reg: reg, mlog: mlog, idx: idx, blobs: blobs, pub: pub, log: log}
}

func caller(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func (h *Handlers) createChat(c *fiber.Ctx) error {
	var req struct {
		Participants  []string `json:"participants"`
		IsGroup       bool     `json:"is_group"`
		GroupName     string   `json:"group_name"`
		GroupPhotoURL string   `json:"group_photo_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	chat, err := h.reg.CreateChat(ctx, registry.CreateChatInput{
		Participants:  req.Participants,
		CreatedBy:     caller(c),
		IsGroup:       req.IsGroup,
		GroupName:     req.GroupName,
		GroupPhotoURL: req.GroupPhotoURL,
	})
	if err != nil {
		return fail(c, err)
	}
	h.pub.Publish(ctx, events.EventChatCreated, chat.ID, chat)
	return c.Status(201).JSON(fiber.Map{"status": "ok", "data": chat})
}

func (h *Handlers) listChats(c *fiber.Ctx) error {
	chats, err := h.reg.ListChatsFor(c.Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": chats})
}

func (h *Handlers) searchChats(c *fiber.Ctx) error {
	chats, err := h.idx.Search(c.Context(), c.Query("q"), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": chats})
}

func (h *Handlers) addParticipant(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	err := h.reg.AddParticipant(c.Context(), c.Params("chat_id"), req.UserID, caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) removeParticipant(c *fiber.Ctx) error {
	err := h.reg.RemoveParticipant(c.Context(), c.Params("chat_id"), c.Params("user_id"), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
		MsgType string `json:"msg_type"`
		Media   *struct {
			URL  string `json:"url"`
			Name string `json:"name"`
			Size int64  `json:"size"`
		} `json:"media"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	in := messagelog.SendInput{
		ChatID:   c.Params("chat_id"),
		SenderID: caller(c),
		Type:     req.MsgType,
		Content:  req.Content,
	}
	if req.Media != nil {
		in.Media = &messagelog.MediaRef{URL: req.Media.URL, Name: req.Media.Name, Size: req.Media.Size}
	}
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	msg, err := h.mlog.Send(ctx, in)
	if err != nil && !errors.Is(err, apperr.ErrProjection) {
		return fail(c, err)
	}
	h.pub.Publish(ctx, events.EventMessageSent, in.ChatID, msg)
	resp := fiber.Map{"status": "ok", "data": msg}
	if err != nil {
		// the message is persisted; the stale projection is reported,
		// not rolled back
		resp["warning"] = err.Error()
	}
	return c.Status(201).JSON(resp)
}

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	msgs, err := h.mlog.ListMessages(c.Context(), c.Params("chat_id"), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs})
}

func (h *Handlers) editMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	err := h.mlog.Edit(c.Context(), c.Params("chat_id"), c.Params("msg_id"), req.Content, caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) deleteMessage(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")
	err := h.mlog.Delete(c.Context(), chatID, c.Params("msg_id"), caller(c))
	if err != nil {
		return fail(c, err)
	}
	h.pub.Publish(c.Context(), events.EventMessageDeleted, chatID, fiber.Map{"messageId": c.Params("msg_id")})
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	err := h.mlog.MarkRead(c.Context(), c.Params("chat_id"), c.Params("msg_id"), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) markAllRead(c *fiber.Ctx) error {
	err := h.mlog.MarkAllRead(c.Context(), c.Params("chat_id"), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) uploadMedia(c *fiber.Ctx) error {
	if h.blobs == nil {
		return c.Status(503).JSON(fiber.Map{"error": "media storage not configured"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "file required"})
	}
	msgType := c.FormValue("msg_type", "file")
	if err := blob.CheckSize(msgType, fh.Size); err != nil {
		return fail(c, err)
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "unreadable file"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "unreadable file"})
	}

	key := "chats/" + c.Params("chat_id", "shared") + "/" + msgType + "s/" + uuid.NewString() + "_" + fh.Filename
	url, err := h.blobs.Put(c.Context(), key, fh.Header.Get("Content-Type"), data)
	if err != nil {
		h.log.Errorw("media upload failed", "key", key, "err", err)
		return c.Status(502).JSON(fiber.Map{"error": "upload failed"})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   fiber.Map{"url": url, "name": fh.Filename, "size": fh.Size},
	})
}
