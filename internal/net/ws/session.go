package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"

	"navbridge/logging"
)

const writeWait = 10 * time.Second

// session is one attached scripting client. Calls answer from their own
// goroutines so every write goes through mu.
type session struct {
	id     string
	remote string
	conn   *websocket.Conn

	mu     deadlock.Mutex
	closed bool
}

func newSession(id string, conn *websocket.Conn) *session {
	return &session{id: id, remote: conn.RemoteAddr().String(), conn: conn}
}

func (s *session) ref() logging.EntityRef {
	return logging.EntityRef{ID: s.id, Kind: logging.EntityKindSession}
}

func (s *session) writeJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	message := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	s.conn.Close()
}
