package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// outboundBuffer bounds queued frames per session. A client that stops
// reading loses progress events rather than stalling the pipeline.
const outboundBuffer = 64

// Session is one live WebSocket connection. All writes to the socket go
// through the out channel and a single writer goroutine, since
// gorilla/websocket allows at most one concurrent writer.
type Session struct {
	ID string

	conn   *websocket.Conn
	logger *slog.Logger

	out  chan outbound
	done chan struct{}

	closeOnce sync.Once

	writeTimeout      time.Duration
	heartbeatInterval time.Duration
	readDeadline      time.Duration
}

func newSession(conn *websocket.Conn, logger *slog.Logger, cfg Config) *Session {
	id := uuid.NewString()

	return &Session{
		ID:                id,
		conn:              conn,
		logger:            logger.With("session", id),
		out:               make(chan outbound, outboundBuffer),
		done:              make(chan struct{}),
		writeTimeout:      cfg.WriteTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		readDeadline:      cfg.HeartbeatInterval * time.Duration(cfg.HeartbeatMisses+1),
	}
}

// Emit queues an event for delivery. Emitting to a closed or backed-up
// session drops the frame; delivery is never awaited.
func (s *Session) Emit(event string, data any) {
	frame := outbound{Event: event, Data: data}

	select {
	case <-s.done:
	case s.out <- frame:
	default:
		s.logger.Warn("dropping frame, session backed up", "event", event)
	}
}

// writeLoop is the single socket writer: it drains the outbound queue and
// sends heartbeat pings. Returns when the session closes or a write fails.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			deadline := time.Now().Add(s.writeTimeout)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

			return

		case frame := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))

			err := s.conn.WriteJSON(frame)
			if err != nil {
				s.logger.Debug("write failed, closing session", "error", err)
				s.close()

				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout)

			err := s.conn.WriteControl(websocket.PingMessage, nil, deadline)
			if err != nil {
				s.logger.Debug("ping failed, closing session", "error", err)
				s.close()

				return
			}
		}
	}
}

// close marks the session dead. Safe to call from any goroutine, any number
// of times.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// closed reports whether the session has been closed.
func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
