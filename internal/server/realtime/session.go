package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/pkg/api"
)

// session is one websocket connection. Frames are written by a single
// writer goroutine in enqueue order.
type session struct {
	ws        *websocket.Conn
	clock     clock.Clock
	logger    *slog.Logger
	send      chan api.Message
	done      chan struct{}
	docs      map[string]*doc
	user      models.User
	id        string
	settings  Settings
	mu        sync.Mutex
	closeOnce sync.Once
}

// enqueue never blocks: a session that cannot keep up is disconnected.
func (s *session) enqueue(msg api.Message) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- msg:
	default:
		s.logger.Warn("session send buffer full, disconnecting", "session", s.id)
		s.close()
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.ws.Close()
	})
}

func (s *session) subscribe(d *doc) {
	s.mu.Lock()
	s.docs[d.key] = d
	s.mu.Unlock()
}

func (s *session) unsubscribe(key string) *doc {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[key]
	delete(s.docs, key)
	return d
}

// subscriptions returns and forgets every subscribed document.
func (s *session) subscriptions() []*doc {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*doc, 0, len(s.docs))
	for key, d := range s.docs {
		out = append(out, d)
		delete(s.docs, key)
	}
	return out
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
			if err := s.ws.WriteJSON(msg); err != nil {
				s.logger.Debug("session write failed", "session", s.id, "error", err)
				s.close()
				return
			}
		case <-s.clock.After(s.settings.PingInterval):
			deadline := time.Now().Add(s.settings.WriteTimeout)
			if err := s.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.close()
				return
			}
		}
	}
}

// readLoop returns when the connection fails. Malformed frames are skipped.
func (s *session) readLoop(handle func(api.Message)) error {
	s.ws.SetReadLimit(s.settings.MaxMessageSize)
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
	})

	for {
		_ = s.ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return err
		}

		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed channel frame", "session", s.id, "error", err)
			continue
		}
		handle(msg)
	}
}

func (s *session) apiUser() *api.User {
	return &api.User{ID: s.user.ID, Name: s.user.Name}
}
