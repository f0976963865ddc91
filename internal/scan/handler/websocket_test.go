package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"veritas/internal/scan/service"
)

func (s *HandlerSuite) dial() (*websocket.Conn, func()) {
	server := httptest.NewServer(s.router)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/scanner/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	return conn, func() {
		_ = conn.Close()
		server.Close()
	}
}

func (s *HandlerSuite) readEvent(conn *websocket.Conn) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var msg map[string]any
	s.Require().NoError(conn.ReadJSON(&msg))
	return msg
}

// readUntil skips events until one of the wanted type arrives.
func (s *HandlerSuite) readUntil(conn *websocket.Conn, eventType string) map[string]any {
	for range 50 {
		msg := s.readEvent(conn)
		if msg["type"] == eventType {
			return msg
		}
	}
	s.FailNow("event not received", eventType)
	return nil
}

func (s *HandlerSuite) TestSocketStreamsSnapshotAndAppliesMessages() {
	conn, cleanup := s.dial()
	defer cleanup()

	first := s.readEvent(conn)
	s.Equal(string(service.EventSnapshot), first["type"])

	s.Require().NoError(conn.WriteJSON(map[string]any{"type": "monitoring", "enabled": true}))
	mon := s.readUntil(conn, string(service.EventMonitoring))
	s.Equal(true, mon["monitoring"])

	s.Require().NoError(conn.WriteJSON(map[string]any{"type": "presence", "item_id": "item-1", "present": true}))
	item := s.readUntil(conn, string(service.EventItem))
	payload, ok := item["item"].(map[string]any)
	s.Require().True(ok)
	s.Equal(true, payload["present"])
}

func (s *HandlerSuite) TestSocketRejectsInvalidMessages() {
	conn, cleanup := s.dial()
	defer cleanup()
	s.readEvent(conn)

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	reply := s.readUntil(conn, "error")
	s.Equal("validation_error", reply["error"])

	s.Require().NoError(conn.WriteJSON(map[string]any{"type": "presence", "item_id": "ghost", "present": true}))
	reply = s.readUntil(conn, "error")
	s.Equal("not_found", reply["error"])
}

func (s *HandlerSuite) TestSocketClosedWithSession() {
	conn, cleanup := s.dial()
	defer cleanup()
	s.readEvent(conn)

	s.svc.CloseBoard(s.userID)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.True(websocket.IsCloseError(err, websocket.CloseGoingAway) || strings.Contains(err.Error(), "closed"))
			return
		}
	}
}

func (s *HandlerSuite) TestSocketRejectsForeignOrigin() {
	server := httptest.NewServer(s.router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/scanner/ws"

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	s.Error(err)
	if resp != nil {
		s.Equal(http.StatusForbidden, resp.StatusCode)
	}
}

func TestStartWriterReleasesBlockedReader(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	replies := make(chan any) // nobody drains it once the writer is gone

	// The writer fails immediately, as after a broken write.
	done := startWriter(stop, func() {})
	<-done

	sent := make(chan bool, 1)
	go func() {
		select {
		case replies <- "rejected":
			sent <- true
		case <-ctx.Done():
			sent <- false
		}
	}()

	select {
	case ok := <-sent:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("reader stayed blocked after the writer exited")
	}
}
