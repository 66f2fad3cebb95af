package api

import (
	"context"

	"github.com/gofiber/websocket/v2"
)

// stream pushes live snapshots over the websocket: the caller's chat
// list by default, or one chat's message window when chat_id is given.
// Each frame is the full current snapshot; stale intermediates are
// dropped by the underlying watch.
func (h *Handlers) stream(conn *websocket.Conn) {
	defer conn.Close()

	uid, _ := conn.Locals("user_id").(string)
	if uid == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// drain control frames so peer close is noticed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if chatID := conn.Query("chat_id"); chatID != "" {
		ch, stop, err := h.mlog.WatchMessages(ctx, chatID, 50)
		if err != nil {
			h.log.Warnw("message watch failed", "chat", chatID, "err", err)
			return
		}
		defer stop()
		for {
			select {
			case msgs, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(map[string]interface{}{"type": "messages", "data": msgs}); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}

	ch, stop, err := h.reg.Watch(ctx, uid)
	if err != nil {
		h.log.Warnw("chat watch failed", "user", uid, "err", err)
		return
	}
	defer stop()
	for {
		select {
		case chats, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(map[string]interface{}{"type": "chats", "data": chats}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
