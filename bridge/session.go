package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type session struct {
	id        string
	server    *Server
	conn      *websocket.Conn
	outbound  chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(server *Server, conn *websocket.Conn) *session {
	return &session{
		id:       newSessionID(),
		server:   server,
		conn:     conn,
		outbound: make(chan Message, sendBuffer),
		done:     make(chan struct{}),
	}
}

// send queues a message without blocking; a full queue means the shim stopped
// reading, so the message is dropped.
func (s *session) send(message Message) {
	select {
	case <-s.done:
	case s.outbound <- message:
	default:
		s.server.logger.Warn("Bridge send queue full, dropping message",
			zap.String("session_id", s.id),
			zap.String("type", message.Type))
		s.server.recordMessage(message.Type, "dropped")
	}
}

func (s *session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(s.server.config.WriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *session) readPump() {
	defer s.close(websocket.CloseNormalClosure, "")

	pongWait := s.server.config.PingInterval * 2
	s.conn.SetReadLimit(s.server.config.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.server.logger.Debug("Bridge read failed", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var message Message
		if err := utils.Unmarshal(data, &message); err != nil || message.Type == "" {
			s.server.recordMessage("unknown", "invalid")
			s.send(errorMessage("", types.ErrBridgeMessageInvalid))
			continue
		}

		reply, err := s.server.dispatch(message)
		if err != nil {
			s.server.recordMessage(message.Type, "error")
			s.server.logger.Debug("Bridge message rejected",
				zap.String("session_id", s.id),
				zap.String("type", message.Type),
				zap.Error(err))
			s.send(errorMessage(message.ID, err))
			continue
		}

		s.server.recordMessage(message.Type, "ok")
		if reply != nil {
			reply.ID = message.ID
			s.send(*reply)
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.server.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case message := <-s.outbound:
			data, err := utils.Marshal(message)
			if err != nil {
				s.server.logger.Error("Failed to marshal bridge message", zap.String("type", message.Type), zap.Error(err))
				continue
			}

			_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.server.logger.Debug("Bridge write failed", zap.String("session_id", s.id), zap.Error(err))
				s.close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.server.config.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func errorMessage(id string, err error) Message {
	return Message{Type: TypeError, ID: id, Data: mustEncode(ResultData{Error: err.Error()})}
}

func mustEncode(v interface{}) []byte {
	data, err := utils.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
