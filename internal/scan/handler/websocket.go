package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"veritas/internal/scan/service"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/requestcontext"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	eventBuffer    = 64
)

type socketConfig struct {
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

func defaultSocketConfig() socketConfig {
	return socketConfig{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// checkOrigin accepts same-host requests, requests without an Origin header
// (non-browser clients) and configured origins.
func (c *socketConfig) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(c.allowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// socketError is sent to the client when an inbound message is rejected.
type socketError struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"error_description,omitempty"`
}

// HandleSocket upgrades to a WebSocket that streams board events and accepts
// presence and monitoring messages. The board outlives the socket; it is
// closed by DELETE /scanner/session or the idle sweep.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	board, userID, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	conn, err := h.socket.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"error", err,
			"request_id", requestID,
		)
		return
	}

	events, cancel := board.Subscribe(eventBuffer)
	defer cancel()

	// The request context is not cancelled when a hijacked connection drops.
	sessionCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	replies := make(chan any, 8)
	done := startWriter(stop, func() { h.writePump(sessionCtx, conn, events, replies) })

	h.readPump(sessionCtx, conn, board, userID, replies)
	stop()
	<-done
	_ = conn.Close()
}

// startWriter runs pump in the background and cancels the session when it
// returns, so a reader blocked on a reply is released after a write failure.
func startWriter(stop context.CancelFunc, pump func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()
		pump()
	}()
	return done
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan service.Event, replies <-chan any) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v) == nil
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				_ = conn.Close()
				return
			}
			if !write(ev) {
				_ = conn.Close()
				return
			}
		case reply := <-replies:
			if !write(reply) {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, board *service.Board, userID id.UserID, replies chan<- any) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.WarnContext(ctx, "websocket read failed",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.applyMessage(ctx, board, userID, data); err != nil {
			select {
			case replies <- toSocketError(err):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Handler) applyMessage(ctx context.Context, board *service.Board, userID id.UserID, data []byte) error {
	var msg SocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid message")
	}
	if err := httputil.PrepareRequest(&msg); err != nil {
		return err
	}

	switch msg.Type {
	case msgPresence:
		itemID, err := id.ParseItemID(msg.ItemID)
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "invalid item id")
		}
		if _, err := board.Presence(itemID, *msg.Present); err != nil {
			return boardError(err)
		}
	case msgMonitoring:
		if _, err := h.service.SetMonitoring(ctx, userID, *msg.Enabled); err != nil {
			return err
		}
	case msgReset:
		board.Reset()
	case msgResetItem:
		itemID, err := id.ParseItemID(msg.ItemID)
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "invalid item id")
		}
		if _, err := board.ResetItem(itemID); err != nil {
			return boardError(err)
		}
	}
	return nil
}

func toSocketError(err error) socketError {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return socketError{Type: "error", Error: httputil.ErrorName(de.Code), Message: de.Message}
	}
	return socketError{Type: "error", Error: "internal_error"}
}
