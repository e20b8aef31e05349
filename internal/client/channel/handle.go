package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/pkg/api"
)

// EventKind различает события документа.
type EventKind string

const (
	// EventChange is a sequenced change made by another session or by a REST call.
	EventChange EventKind = "change"
	// EventShout is an out-of-band broadcast (presence).
	EventShout EventKind = "shout"
	// EventDisconnect is the last event of a handle whose link died.
	EventDisconnect EventKind = "disconnect"
)

// Event is delivered in channel order on Handle.Events.
type Event struct {
	Err     error
	Sys     *models.Sys
	User    *models.User
	Kind    EventKind
	Src     string
	Data    json.RawMessage
	Ops     []patch.Op
	Version int64
}

// Ack confirms an accepted submission.
type Ack struct {
	Sys     *models.Sys
	Version int64
}

func eventFromMessage(msg api.Message) Event {
	ev := Event{
		Kind:    EventChange,
		Src:     msg.Src,
		Data:    msg.Data,
		Ops:     msg.Ops,
		Version: msg.V,
	}
	if msg.Type == api.MsgShout {
		ev.Kind = EventShout
	}
	if msg.Sys != nil {
		sys := msg.Sys.ToModel()
		ev.Sys = &sys
	}
	if msg.User != nil {
		ev.User = &models.User{ID: msg.User.ID, Name: msg.User.Name}
	}
	return ev
}

// Handle is one open document channel on one link.
type Handle struct {
	conn     *Connection
	link     *link
	events   chan Event
	wake     chan struct{}
	stop     chan struct{}
	key      string
	queue    []Event
	ref      models.Ref
	snapshot models.Entity
	mu       sync.Mutex
	stopOnce sync.Once
	dead     bool
}

func newHandle(c *Connection, l *link, ref models.Ref) *Handle {
	h := &Handle{
		conn:   c,
		link:   l,
		ref:    ref,
		key:    ref.ChannelKey(),
		events: make(chan Event),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go h.pump()
	return h
}

// Ref returns the entity the handle is subscribed to.
func (h *Handle) Ref() models.Ref {
	return h.ref
}

// Snapshot returns the snapshot received on open.
func (h *Handle) Snapshot() models.Entity {
	return h.snapshot.Clone()
}

// SessionID returns the id of the link the handle lives on.
func (h *Handle) SessionID() string {
	return h.link.session
}

// Events delivers change and shout events in channel order. After a
// disconnect one EventDisconnect is delivered and the channel is closed.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Submit sends ops built against version. On conflict the error is a
// *models.VersionConflictError carrying the server snapshot.
func (h *Handle) Submit(ctx context.Context, version int64, ops []patch.Op) (Ack, error) {
	if h.isTerminated() {
		return Ack{}, fmt.Errorf("%w: handle is closed", models.ErrTransport)
	}

	reply, err := h.conn.request(ctx, h.link, api.Message{Type: api.MsgOp, Doc: h.key, V: version, Ops: ops})
	if err != nil {
		return Ack{}, err
	}
	if err := replyError(reply, version); err != nil {
		return Ack{}, err
	}

	ack := Ack{Version: reply.V}
	if reply.Sys != nil {
		sys := reply.Sys.ToModel()
		ack.Sys = &sys
		ack.Version = sys.Version
	}
	return ack, nil
}

// Fetch requests a fresh snapshot.
func (h *Handle) Fetch(ctx context.Context) (models.Entity, error) {
	if h.isTerminated() {
		return models.Entity{}, fmt.Errorf("%w: handle is closed", models.ErrTransport)
	}

	reply, err := h.conn.request(ctx, h.link, api.Message{Type: api.MsgFetch, Doc: h.key})
	if err != nil {
		return models.Entity{}, err
	}
	if err := replyError(reply, 0); err != nil {
		return models.Entity{}, err
	}
	if reply.Snapshot == nil {
		return models.Entity{}, fmt.Errorf("fetch %s: reply without snapshot", h.key)
	}
	return reply.Snapshot.ToModel(), nil
}

// Shout broadcasts data to the other sessions of the document. Best effort.
func (h *Handle) Shout(ctx context.Context, data any) error {
	if h.isTerminated() {
		return fmt.Errorf("%w: handle is closed", models.ErrTransport)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal shout: %w", err)
	}
	return h.conn.enqueue(ctx, h.link, api.Message{Type: api.MsgShout, Doc: h.key, Data: raw})
}

// Close unsubscribes. Safe to call more than once and after a disconnect.
func (h *Handle) Close() {
	h.conn.removeHandle(h)
	if !h.isTerminated() {
		select {
		case h.link.send <- api.Message{Type: api.MsgClose, Doc: h.key}:
		case <-h.link.done:
		default:
			// очередь переполнена: сервер отпишет сессию при разрыве
		}
	}
	h.terminate(nil)
	h.stopPump()
}

func (h *Handle) isTerminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dead
}

func (h *Handle) push(ev Event) {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return
	}
	h.queue = append(h.queue, ev)
	h.mu.Unlock()
	h.signal()
}

// terminate marks the handle dead, optionally queueing a final event.
func (h *Handle) terminate(final *Event) {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return
	}
	h.dead = true
	if final != nil {
		h.queue = append(h.queue, *final)
	}
	h.mu.Unlock()
	h.signal()
}

func (h *Handle) stopPump() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Handle) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events to the unbuffered Events channel so that the
// reader goroutine never blocks on a slow consumer.
func (h *Handle) pump() {
	defer close(h.events)

	for {
		h.mu.Lock()
		if len(h.queue) > 0 {
			ev := h.queue[0]
			h.queue = h.queue[1:]
			h.mu.Unlock()

			select {
			case h.events <- ev:
			case <-h.stop:
				return
			}
			continue
		}
		dead := h.dead
		h.mu.Unlock()

		if dead {
			return
		}
		select {
		case <-h.wake:
		case <-h.stop:
			return
		}
	}
}
