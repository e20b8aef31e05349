// Package realtime реализует серверную сторону realtime канала: подписки
// сессий на документы, упорядочивание операций, ребейз независимых правок
// и ретрансляцию shout сообщений.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/internal/server/jwt"
	"github.com/iudanet/docsync/internal/server/storage"
	"github.com/iudanet/docsync/internal/validation"
	"github.com/iudanet/docsync/pkg/api"
)

// ErrClosed is returned by Mutate after Close.
var ErrClosed = errors.New("hub closed")

// MutateFunc builds the next state of an entity from the current one and
// returns the ops describing the change for subscribers. Version and
// update metadata are set by the hub.
type MutateFunc func(cur models.Entity) (models.Entity, []patch.Op, error)

// logEntry is one applied change. version is the version it produced.
type logEntry struct {
	src     string
	ops     []patch.Op
	version int64
}

// doc is the in-memory state of one entity. mu serializes every change
// and every snapshot reply so that subscribers see one order.
type doc struct {
	subs map[*session]struct{}
	ref  models.Ref
	key  string
	log  []logEntry
	mu   sync.Mutex
}

// Hub is the websocket endpoint of the realtime channel.
type Hub struct {
	store    storage.Storage
	clock    clock.Clock
	logger   *slog.Logger
	docs     map[string]*doc
	sessions map[*session]struct{}
	upgrader websocket.Upgrader
	settings Settings
	mu       sync.Mutex
	closed   bool
}

// NewHub creates a hub serving entities from store.
func NewHub(store storage.Storage, settings Settings, clk clock.Clock, logger *slog.Logger) *Hub {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	settings = settings.withDefaults()
	return &Hub{
		store:    store,
		clock:    clk,
		logger:   logger,
		settings: settings,
		docs:     make(map[string]*doc),
		sessions: make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			// токен проверен AuthMiddleware до апгрейда
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ServeHTTP upgrades an authenticated request to a channel session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := jwt.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &session{
		ws:       ws,
		clock:    h.clock,
		logger:   h.logger,
		send:     make(chan api.Message, h.settings.SendBufferSize),
		done:     make(chan struct{}),
		docs:     make(map[string]*doc),
		user:     user,
		id:       uuid.NewString(),
		settings: h.settings,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("session connected", "session", s.id, "user_id", user.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.enqueue(api.Message{Type: api.MsgHello, Src: s.id})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	err = s.readLoop(func(msg api.Message) { h.handle(ctx, s, msg) })
	s.close()
	<-writerDone
	h.disconnect(s)

	h.logger.Info("session disconnected", "session", s.id, "error", err)
}

func (h *Hub) disconnect(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()

	for _, d := range s.subscriptions() {
		d.mu.Lock()
		delete(d.subs, s)
		d.mu.Unlock()
	}
}

// doc returns the state of ref, creating it on first use.
func (h *Hub) doc(ref models.Ref) *doc {
	k := ref.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.docs[k]
	if !ok {
		d = &doc{
			ref:  ref,
			key:  ref.ChannelKey(),
			subs: make(map[*session]struct{}),
		}
		h.docs[k] = d
	}
	return d
}

func (h *Hub) handle(ctx context.Context, s *session, msg api.Message) {
	ref, err := models.ParseChannelKey(msg.Doc)
	if err != nil {
		if msg.ID != "" {
			s.enqueue(errorReply(msg, api.CodeInvalidOperation, err.Error()))
		}
		return
	}
	ref.Environment = h.settings.Environment

	switch msg.Type {
	case api.MsgOpen:
		h.handleSnapshot(ctx, s, msg, h.doc(ref), true)
	case api.MsgFetch:
		h.handleSnapshot(ctx, s, msg, h.doc(ref), false)
	case api.MsgOp:
		h.handleOp(ctx, s, msg, h.doc(ref))
	case api.MsgShout:
		h.handleShout(s, msg, h.doc(ref))
	case api.MsgClose:
		if d := s.unsubscribe(ref.ChannelKey()); d != nil {
			d.mu.Lock()
			delete(d.subs, s)
			d.mu.Unlock()
		}
	default:
		s.logger.Debug("unexpected channel frame", "session", s.id, "type", msg.Type)
		if msg.ID != "" {
			s.enqueue(errorReply(msg, api.CodeInvalidOperation, fmt.Sprintf("unknown frame type %q", msg.Type)))
		}
	}
}

// handleSnapshot answers open and fetch. The reply is queued under the
// document lock so it is ordered against change broadcasts.
func (h *Hub) handleSnapshot(ctx context.Context, s *session, msg api.Message, d *doc, subscribe bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, err := h.store.GetEntity(ctx, d.ref)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			s.enqueue(errorReply(msg, api.CodeNotFound, fmt.Sprintf("%s not found", d.key)))
			return
		}
		h.logger.Error("failed to load entity", "doc", d.key, "error", err)
		s.enqueue(errorReply(msg, api.CodeInternal, "failed to load entity"))
		return
	}

	if subscribe {
		d.subs[s] = struct{}{}
		s.subscribe(d)
	}

	snapshot := api.EntityFromModel(*cur)
	s.enqueue(api.Message{Type: api.MsgSnapshot, ID: msg.ID, Doc: d.key, V: cur.Sys.Version, Snapshot: &snapshot})
}

func (h *Hub) handleShout(s *session, msg api.Message, d *doc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subs[s]; !ok {
		return
	}
	out := api.Message{Type: api.MsgShout, Doc: d.key, Src: s.id, User: s.apiUser(), Data: msg.Data}
	for sub := range d.subs {
		if sub != s {
			sub.enqueue(out)
		}
	}
}

// handleOp sequences one submission. A submission built against an older
// version is rebased when every intervening change is still in the op log
// and none of them touched an overlapping path.
func (h *Hub) handleOp(ctx context.Context, s *session, msg api.Message, d *doc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(msg.Ops) == 0 {
		s.enqueue(errorReply(msg, api.CodeInvalidOperation, "no operations"))
		return
	}

	cur, err := h.store.GetEntity(ctx, d.ref)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			s.enqueue(errorReply(msg, api.CodeNotFound, fmt.Sprintf("%s not found", d.key)))
			return
		}
		h.logger.Error("failed to load entity", "doc", d.key, "error", err)
		s.enqueue(errorReply(msg, api.CodeInternal, "failed to load entity"))
		return
	}

	if cur.Sys.DeletedVersion != nil {
		s.enqueue(errorReply(msg, api.CodeValidationFailed, "entity is deleted"))
		return
	}

	if msg.V != cur.Sys.Version {
		if !d.canRebase(msg.V, cur.Sys.Version, s.id, msg.Ops) {
			h.logger.Debug("submission conflicts", "doc", d.key, "sent", msg.V, "current", cur.Sys.Version)
			s.enqueue(conflictReply(msg, *cur))
			return
		}
		h.logger.Debug("submission rebased", "doc", d.key, "sent", msg.V, "current", cur.Sys.Version)
	}

	fields, err := h.applyOps(ctx, *cur, msg.Ops)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			reply := errorReply(msg, api.CodeValidationFailed, verr.Message)
			reply.Error.Details = verr.Details
			s.enqueue(reply)
			return
		}
		h.logger.Error("failed to apply ops", "doc", d.key, "error", err)
		s.enqueue(errorReply(msg, api.CodeInternal, "failed to apply ops"))
		return
	}

	next := cur.Clone()
	next.Fields = fields
	next, err = h.commit(ctx, d, *cur, next, s.user, s.id, msg.Ops)
	if err != nil {
		if errors.Is(err, storage.ErrVersionMismatch) {
			if fresh, gerr := h.store.GetEntity(ctx, d.ref); gerr == nil {
				s.enqueue(conflictReply(msg, *fresh))
				return
			}
		}
		h.logger.Error("failed to persist ops", "doc", d.key, "error", err)
		s.enqueue(errorReply(msg, api.CodeInternal, "failed to persist entity"))
		return
	}

	sys := api.SysFromModel(next.Sys)
	s.enqueue(api.Message{Type: api.MsgAck, ID: msg.ID, Doc: d.key, V: next.Sys.Version, Sys: &sys})
}

// applyOps applies ops to the fields of cur and validates the touched
// fields against the content type.
func (h *Hub) applyOps(ctx context.Context, cur models.Entity, ops []patch.Op) (models.Fields, error) {
	fields, err := patch.ApplyToFields(cur.Fields, ops)
	if err != nil {
		return nil, &models.ValidationError{Message: err.Error()}
	}

	touched := make(map[string]bool)
	for _, op := range ops {
		touched[op.Path[1]] = true
	}

	ct, err := h.contentType(ctx, cur.Sys)
	if err != nil {
		return nil, err
	}
	changed := models.Fields{}
	for id := range touched {
		if locales, ok := fields[id]; ok {
			changed[id] = locales
		}
	}
	if details := validation.ValidateFields(ct, changed); len(details) > 0 {
		return nil, &models.ValidationError{Message: "invalid field values", Details: details}
	}
	return fields, nil
}

func (h *Hub) contentType(ctx context.Context, sys models.Sys) (models.ContentType, error) {
	if sys.Type == models.EntityTypeAsset {
		return models.AssetContentType, nil
	}
	ct, err := h.store.GetContentType(ctx, sys.Space, sys.Environment, sys.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrContentTypeNotFound) {
			return models.ContentType{}, &models.ValidationError{Message: fmt.Sprintf("unknown content type %q", sys.ContentType)}
		}
		return models.ContentType{}, fmt.Errorf("failed to load content type: %w", err)
	}
	return *ct, nil
}

// commit persists next as the version after cur, records it in the op log
// and broadcasts it to every subscriber except src. Callers hold d.mu.
func (h *Hub) commit(ctx context.Context, d *doc, cur, next models.Entity, user models.User, src string, ops []patch.Op) (models.Entity, error) {
	next.Sys.Version = cur.Sys.Version + 1
	next.Sys.UpdatedAt = h.clock.Now().UTC()
	next.Sys.UpdatedBy = user.ID

	if err := h.store.UpdateEntity(ctx, &next, cur.Sys.Version); err != nil {
		return models.Entity{}, err
	}

	d.log = append(d.log, logEntry{version: next.Sys.Version, src: src, ops: ops})
	if depth := h.settings.OpLogDepth; depth > 0 && len(d.log) > depth {
		d.log = append([]logEntry(nil), d.log[len(d.log)-depth:]...)
	}

	sys := api.SysFromModel(next.Sys)
	change := api.Message{
		Type: api.MsgChange,
		Doc:  d.key,
		V:    next.Sys.Version,
		Sys:  &sys,
		Ops:  ops,
		Src:  src,
		User: &api.User{ID: user.ID, Name: user.Name},
	}
	for sub := range d.subs {
		if sub.id != src {
			sub.enqueue(change)
		}
	}
	return next, nil
}

// canRebase reports whether ops built against base can be applied on top
// of current.
func (d *doc) canRebase(base, current int64, src string, ops []patch.Op) bool {
	if base <= 0 || base > current {
		return false
	}

	found := int64(0)
	for _, e := range d.log {
		if e.version <= base || e.version > current {
			continue
		}
		found++
		if e.src == src {
			continue
		}
		for _, theirs := range e.ops {
			for _, ours := range ops {
				if patch.Overlaps(theirs.Path, ours.Path) {
					return false
				}
			}
		}
	}
	return found == current-base
}

// Mutate applies fn to the current entity under the document lock.
// expected must equal the current version. The result is persisted as the
// next version and broadcast to every subscribed session.
func (h *Hub) Mutate(ctx context.Context, ref models.Ref, user models.User, expected int64, fn MutateFunc) (models.Entity, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return models.Entity{}, ErrClosed
	}

	d := h.doc(ref)
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, err := h.store.GetEntity(ctx, ref)
	if err != nil {
		return models.Entity{}, err
	}
	if expected != cur.Sys.Version {
		snapshot := cur.Clone()
		return models.Entity{}, &models.VersionConflictError{Expected: expected, Actual: cur.Sys.Version, Snapshot: &snapshot}
	}
	if cur.Sys.DeletedVersion != nil {
		return models.Entity{}, fmt.Errorf("%w: %s", models.ErrEntityDeleted, ref)
	}

	next, ops, err := fn(cur.Clone())
	if err != nil {
		return models.Entity{}, err
	}

	next, err = h.commit(ctx, d, *cur, next, user, "", ops)
	if errors.Is(err, storage.ErrVersionMismatch) {
		fresh, gerr := h.store.GetEntity(ctx, ref)
		if gerr == nil {
			return models.Entity{}, &models.VersionConflictError{Expected: expected, Actual: fresh.Sys.Version, Snapshot: fresh}
		}
	}
	return next, err
}

// ContentType returns the schema entities of sys are validated against.
func (h *Hub) ContentType(ctx context.Context, sys models.Sys) (models.ContentType, error) {
	return h.contentType(ctx, sys)
}

// ApplyOps is the REST counterpart of a channel submission: it applies and
// validates ops against cur without persisting anything.
func (h *Hub) ApplyOps(ctx context.Context, cur models.Entity, ops []patch.Op) (models.Fields, error) {
	return h.applyOps(ctx, cur, ops)
}

func errorReply(req api.Message, code, message string) api.Message {
	return api.Message{
		Type:  api.MsgError,
		ID:    req.ID,
		Doc:   req.Doc,
		Error: &api.ErrorResponse{Code: code, Message: message},
	}
}

func conflictReply(req api.Message, cur models.Entity) api.Message {
	reply := errorReply(req, api.CodeVersionMismatch, fmt.Sprintf("version %d is stale, current is %d", req.V, cur.Sys.Version))
	reply.Error.Version = cur.Sys.Version
	snapshot := api.EntityFromModel(cur)
	reply.Snapshot = &snapshot
	reply.V = cur.Sys.Version
	return reply
}
