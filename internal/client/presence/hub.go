// Package presence отслеживает, кто еще открыл документ и какое поле
// редактирует. Сообщения передаются через shout канала документа и не
// сохраняются на сервере.
package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/stream"
)

//go:generate moq -out presence_mock.go . Shouter

// Kind is the type of a presence message.
type Kind string

const (
	KindOpen  Kind = "open"
	KindFocus Kind = "focus"
	KindClose Kind = "close"
	KindPing  Kind = "ping"
)

// Message is the payload of a presence shout.
type Message struct {
	Kind   Kind   `json:"type"`
	Field  string `json:"field,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// Shout is a broadcast received from another session.
type Shout struct {
	User *models.User
	Src  string
	Data json.RawMessage
}

// Shouter is the document channel the hub talks through.
type Shouter interface {
	SessionID() string
	Shout(ctx context.Context, data any) error
	OnShout(fn func(Shout)) (cancel func())
}

// Settings tunes timers of the hub.
type Settings struct {
	// FocusThrottle is the minimal interval between two focus messages.
	FocusThrottle time.Duration
	// PingInterval is how often the current focus is re-sent.
	PingInterval time.Duration
	// CleanupInterval is how often silent peers are looked for.
	CleanupInterval time.Duration
	// Timeout evicts a peer that sent nothing for this long.
	Timeout time.Duration
	// SendTimeout bounds a single shout.
	SendTimeout time.Duration
}

// DefaultSettings returns the production timings.
func DefaultSettings() Settings {
	return Settings{
		FocusThrottle:   10 * time.Second,
		PingInterval:    60 * time.Second,
		CleanupInterval: 60 * time.Second,
		Timeout:         5 * time.Minute,
		SendTimeout:     5 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.FocusThrottle <= 0 {
		s.FocusThrottle = d.FocusThrottle
	}
	if s.PingInterval <= 0 {
		s.PingInterval = d.PingInterval
	}
	if s.CleanupInterval <= 0 {
		s.CleanupInterval = d.CleanupInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	if s.SendTimeout <= 0 {
		s.SendTimeout = d.SendTimeout
	}
	return s
}

// Collaborator is one remote session looking at the document.
type Collaborator struct {
	LastSeen time.Time
	User     models.User
	Session  string
	Field    string
	Locale   string
}

type focus struct {
	field  string
	locale string
}

type note struct {
	prop  *stream.Property[[]models.User]
	users []models.User
}

// Hub is the presence state of one document.
type Hub struct {
	shouter       Shouter
	clock         clock.Clock
	logger        *slog.Logger
	peers         map[string]*Collaborator
	focus         *focus
	collaborators *stream.Property[[]models.User]
	derived       map[focus]*stream.Property[[]models.User]
	queue         *stream.Queue
	trailing      *clock.Timer
	heartbeat     *clock.Timer
	cleanup       *clock.Timer
	cancel        func()
	lastFocus     time.Time
	notes         []note
	settings      Settings
	mu            sync.Mutex
	destroyed     bool
}

// NewHub subscribes to shouts, starts the timers and announces the session.
// Zero settings fall back to DefaultSettings.
func NewHub(shouter Shouter, settings Settings, clk clock.Clock, logger *slog.Logger) *Hub {
	if clk == nil {
		clk = clock.Real()
	}
	settings = settings.withDefaults()
	queue := &stream.Queue{}
	h := &Hub{
		shouter:       shouter,
		clock:         clk,
		logger:        logger,
		settings:      settings,
		peers:         make(map[string]*Collaborator),
		derived:       make(map[focus]*stream.Property[[]models.User]),
		queue:         queue,
		collaborators: stream.NewPropertyFunc([]models.User{}, slices.Equal[[]models.User]).WithQueue(queue),
	}
	h.cancel = shouter.OnShout(h.receive)

	h.mu.Lock()
	h.heartbeat = h.clock.AfterFunc(settings.PingInterval, h.beat)
	h.cleanup = h.clock.AfterFunc(settings.CleanupInterval, h.evict)
	h.mu.Unlock()

	h.Announce()
	return h
}

// Collaborators lists the users of other sessions, sorted by id.
func (h *Hub) Collaborators() *stream.Property[[]models.User] {
	return h.collaborators
}

// CollaboratorsFor lists the users focused on field/locale. The property is
// created once per pair and kept up to date until Destroy.
func (h *Hub) CollaboratorsFor(field, locale string) *stream.Property[[]models.User] {
	key := focus{field: field, locale: locale}

	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.derived[key]; ok {
		return p
	}
	p := stream.NewPropertyFunc(h.usersLocked(&key), slices.Equal[[]models.User]).WithQueue(h.queue)
	h.derived[key] = p
	return p
}

// Peers returns a copy of the known sessions, sorted by user id and session.
func (h *Hub) Peers() []Collaborator {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Collaborator, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Collaborator) int {
		if c := strings.Compare(a.User.ID, b.User.ID); c != 0 {
			return c
		}
		return strings.Compare(a.Session, b.Session)
	})
	return out
}

// Announce sends "open". Peers answer with their own focus.
func (h *Hub) Announce() {
	h.send(Message{Kind: KindOpen})
}

// Focus records the field being edited and tells the peers, at most once
// per FocusThrottle. A focus changed inside the window is sent when the
// window closes. An empty field clears the focus.
func (h *Hub) Focus(field, locale string) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	if field == "" {
		h.focus = nil
	} else {
		h.focus = &focus{field: field, locale: locale}
	}

	if h.trailing != nil {
		h.mu.Unlock()
		return
	}
	elapsed := h.clock.Now().Sub(h.lastFocus)
	if !h.lastFocus.IsZero() && elapsed < h.settings.FocusThrottle {
		h.trailing = h.clock.AfterFunc(h.settings.FocusThrottle-elapsed, h.flushFocus)
		h.mu.Unlock()
		return
	}
	h.lastFocus = h.clock.Now()
	msg := h.focusMessageLocked()
	h.mu.Unlock()

	h.send(msg)
}

func (h *Hub) flushFocus() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.trailing = nil
	h.lastFocus = h.clock.Now()
	msg := h.focusMessageLocked()
	h.mu.Unlock()

	h.send(msg)
}

// Leave tells the peers this session is gone.
func (h *Hub) Leave() {
	h.send(Message{Kind: KindClose})
}

// Destroy stops timers and the subscription and clears the peer list.
// It does not send anything, call Leave first.
func (h *Hub) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	h.trailing.Stop()
	h.heartbeat.Stop()
	h.cleanup.Stop()
	h.trailing, h.heartbeat, h.cleanup = nil, nil, nil
	clear(h.peers)
	h.publishLocked()
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	h.queue.Run(h.deliver)
}

func (h *Hub) receive(s Shout) {
	if s.User == nil || s.Src == "" || s.Src == h.shouter.SessionID() {
		return
	}
	var msg Message
	if err := json.Unmarshal(s.Data, &msg); err != nil {
		h.logger.Debug("ignoring malformed presence message", "src", s.Src, "error", err)
		return
	}

	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	var reply *Message
	switch msg.Kind {
	case KindOpen:
		h.upsertLocked(s, Message{Kind: KindPing})
		r := h.focusMessageLocked()
		reply = &r
	case KindFocus, KindPing:
		h.upsertLocked(s, msg)
	case KindClose:
		delete(h.peers, s.Src)
	default:
		h.mu.Unlock()
		h.logger.Debug("ignoring unknown presence message", "src", s.Src, "kind", msg.Kind)
		return
	}
	h.publishLocked()
	h.mu.Unlock()

	h.queue.Run(h.deliver)
	if reply != nil {
		h.send(*reply)
	}
}

// upsertLocked records a message from a peer. A ping or open keeps the
// peer's previous focus.
func (h *Hub) upsertLocked(s Shout, msg Message) {
	p, ok := h.peers[s.Src]
	if !ok {
		p = &Collaborator{Session: s.Src}
		h.peers[s.Src] = p
	}
	p.User = *s.User
	p.LastSeen = h.clock.Now()
	if msg.Kind == KindFocus {
		p.Field = msg.Field
		p.Locale = msg.Locale
	}
}

func (h *Hub) beat() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.heartbeat = h.clock.AfterFunc(h.settings.PingInterval, h.beat)
	msg := h.focusMessageLocked()
	h.mu.Unlock()

	h.send(msg)
}

func (h *Hub) evict() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.cleanup = h.clock.AfterFunc(h.settings.CleanupInterval, h.evict)

	now := h.clock.Now()
	for session, p := range h.peers {
		if now.Sub(p.LastSeen) > h.settings.Timeout {
			h.logger.Debug("presence peer timed out", "session", session, "user", p.User.ID)
			delete(h.peers, session)
		}
	}
	h.publishLocked()
	h.mu.Unlock()

	h.queue.Run(h.deliver)
}

func (h *Hub) focusMessageLocked() Message {
	if h.focus == nil {
		return Message{Kind: KindPing}
	}
	return Message{Kind: KindFocus, Field: h.focus.field, Locale: h.focus.locale}
}

// usersLocked returns distinct users sorted by id, optionally only those
// focused on the given field/locale.
func (h *Hub) usersLocked(on *focus) []models.User {
	seen := make(map[string]bool, len(h.peers))
	users := make([]models.User, 0, len(h.peers))
	for _, p := range h.peers {
		if on != nil && (p.Field != on.field || p.Locale != on.locale) {
			continue
		}
		if seen[p.User.ID] {
			continue
		}
		seen[p.User.ID] = true
		users = append(users, p.User)
	}
	slices.SortFunc(users, func(a, b models.User) int {
		return strings.Compare(a.ID, b.ID)
	})
	return users
}

// publishLocked stores the recomputed lists and queues notifications.
func (h *Hub) publishLocked() {
	all := h.usersLocked(nil)
	if h.collaborators.Store(all) {
		h.notes = append(h.notes, note{prop: h.collaborators, users: all})
	}
	for key, p := range h.derived {
		users := h.usersLocked(&key)
		if p.Store(users) {
			h.notes = append(h.notes, note{prop: p, users: users})
		}
	}
}

func (h *Hub) deliver() {
	h.mu.Lock()
	notes := h.notes
	h.notes = nil
	h.mu.Unlock()

	for _, n := range notes {
		n.prop.Notify(n.users)
	}
}

func (h *Hub) send(msg Message) {
	h.mu.Lock()
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed && msg.Kind != KindClose {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.settings.SendTimeout)
	defer cancel()
	if err := h.shouter.Shout(ctx, msg); err != nil {
		h.logger.Debug("presence shout failed", "kind", msg.Kind, "error", err)
	}
}
