// Package document держит живую проекцию одной сущности: снапшот, который
// меняется локальными правками и операциями других сессий, и подписки на
// его изменения. Снапшот всегда обновляется до уведомления подписчиков.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/iudanet/docsync/internal/client/channel"
	"github.com/iudanet/docsync/internal/client/presence"
	"github.com/iudanet/docsync/internal/client/resource"
	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/internal/stream"
)

// Status is the lifecycle of a Document.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
	StatusStale     Status = "stale"
	StatusDestroyed Status = "destroyed"
)

// Origin tells where a change came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
	OriginReload Origin = "reload"
)

// DefaultDestroyTimeout bounds the flush performed by Destroy.
const DefaultDestroyTimeout = 10 * time.Second

// Change describes one atomic update of the snapshot. The trees have the
// shape {"sys": ..., "fields": ...} and must not be modified.
type Change struct {
	Before    map[string]any
	After     map[string]any
	Origin    Origin
	BeforeSys models.Sys
	AfterSys  models.Sys
}

// Config holds the collaborators of a Document.
type Config struct {
	// API performs lifecycle requests for the resource manager.
	API    resource.API
	Clock  clock.Clock
	Logger *slog.Logger
	// User is the local user, announced through presence.
	User     models.User
	Presence presence.Settings
	// DestroyTimeout bounds the flush of pending edits on Destroy.
	DestroyTimeout time.Duration
}

// heldItem is a version that arrived before its predecessors were applied.
type heldItem struct {
	sys    *models.Sys
	ops    []patch.Op
	remote bool
}

type note struct {
	change *Change
	dirty  *bool
	status *Status
}

// Document is the live, synchronized projection of one entity.
type Document struct {
	opener      Opener
	logger      *slog.Logger
	changes     *stream.Bus[Change]
	shouts      *stream.Bus[presence.Shout]
	dirty       *stream.Property[bool]
	status      *stream.Property[Status]
	notify      *stream.Queue
	resource    *resource.Manager
	presence    *presence.Hub
	handle      Handle
	tree        map[string]any
	held        map[int64]heldItem
	wake        chan struct{}
	stop        chan struct{}
	advanced    chan struct{}
	cfg         Config
	contentType models.ContentType
	ref         models.Ref
	jobs        []*job
	notes       []note
	sys         models.Sys
	current     Status
	epoch       uint64
	acked       int64
	pending     int
	mu          sync.Mutex
	reopenMu    sync.Mutex
	destroyOnce sync.Once
	inflight    bool
	needResync  bool
	resyncQueue bool
}

// Open subscribes to ref and returns a ready Document. contentType drives
// value validation, an empty content type accepts any field.
func Open(ctx context.Context, opener Opener, ref models.Ref, contentType models.ContentType, cfg Config) (*Document, error) {
	if cfg.API == nil {
		return nil, errors.New("document: API is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.DestroyTimeout <= 0 {
		cfg.DestroyTimeout = DefaultDestroyTimeout
	}

	h, err := opener.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}

	queue := &stream.Queue{}
	d := &Document{
		opener:      opener,
		cfg:         cfg,
		ref:         ref,
		contentType: contentType,
		logger:      cfg.Logger.With("entity", ref.Key()),
		notify:      queue,
		changes:     stream.NewBus[Change]().WithQueue(queue),
		shouts:      stream.NewBus[presence.Shout](),
		dirty:       stream.NewProperty(false).WithQueue(queue),
		status:      stream.NewProperty(StatusLoading).WithQueue(queue),
		current:     StatusLoading,
		held:        make(map[int64]heldItem),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		advanced:    make(chan struct{}),
		handle:      h,
	}
	snapshot := h.Snapshot()
	d.sys = snapshot.Sys.Clone()
	d.tree = snapshot.Tree()

	go d.work()
	go d.consume(h)

	d.resource = resource.NewManager(d, ref, cfg.API, d.logger)
	d.presence = presence.NewHub(d, cfg.Presence, cfg.Clock, d.logger)

	d.mu.Lock()
	d.setStatusLocked(StatusReady)
	d.mu.Unlock()
	d.deliver()

	d.logger.Debug("document opened", "version", d.sys.Version, "session", h.SessionID())
	return d, nil
}

// Ref returns the entity reference.
func (d *Document) Ref() models.Ref {
	return d.ref
}

// ContentType returns the schema used for validation.
func (d *Document) ContentType() models.ContentType {
	return d.contentType
}

// GetValueAt returns a copy of the value at path, or nil.
func (d *Document) GetValueAt(path patch.Path) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := patch.GetAt(d.tree, path)
	if !ok {
		return nil
	}
	return models.CloneValue(v)
}

// Snapshot returns a copy of the current entity, local edits included.
func (d *Document) Snapshot() models.Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return models.Entity{
		Sys:    d.sys.Clone(),
		Fields: models.FieldsFromTree(d.tree),
	}
}

// Sys returns the current sys.
func (d *Document) Sys() models.Sys {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sys.Clone()
}

// IsDirty reports whether some local edits are not acknowledged yet.
func (d *Document) IsDirty() bool {
	return d.dirty.Get()
}

// Dirty is the dirty flag as a property.
func (d *Document) Dirty() *stream.Property[bool] {
	return d.dirty
}

// Status is the lifecycle of the document.
func (d *Document) Status() *stream.Property[Status] {
	return d.status
}

// Changes emits every update of the snapshot.
func (d *Document) Changes() *stream.Bus[Change] {
	return d.changes
}

// Resource is the lifecycle state machine of the entity.
func (d *Document) Resource() *resource.Manager {
	return d.resource
}

// Presence is the collaborator tracker of the entity.
func (d *Document) Presence() *presence.Hub {
	return d.presence
}

// ValueChanged calls fn with the new value at path whenever it changes,
// whatever the cause.
func (d *Document) ValueChanged(path patch.Path, fn func(value any)) (cancel func()) {
	path = path.Clone()
	return d.changes.Subscribe(func(c Change) {
		before, _ := patch.GetAt(c.Before, path)
		after, _ := patch.GetAt(c.After, path)
		if !reflect.DeepEqual(before, after) {
			fn(models.CloneValue(after))
		}
	})
}

// OnSysChange calls fn with the new sys whenever it changes.
func (d *Document) OnSysChange(fn func(models.Sys)) (cancel func()) {
	return d.changes.Subscribe(func(c Change) {
		if !reflect.DeepEqual(c.BeforeSys, c.AfterSys) {
			fn(c.AfterSys.Clone())
		}
	})
}

// SessionID returns the channel session of the document, "" while stale.
func (d *Document) SessionID() string {
	d.mu.Lock()
	h := d.handle
	d.mu.Unlock()
	if h == nil {
		return ""
	}
	return h.SessionID()
}

// Shout broadcasts data to the other sessions of the document.
func (d *Document) Shout(ctx context.Context, data any) error {
	d.mu.Lock()
	h := d.handle
	d.mu.Unlock()
	if h == nil {
		return fmt.Errorf("%w: %w", models.ErrDocumentStale, models.ErrTransport)
	}
	return h.Shout(ctx, data)
}

// OnShout subscribes to shouts of other sessions.
func (d *Document) OnShout(fn func(presence.Shout)) (cancel func()) {
	return d.shouts.Subscribe(fn)
}

// consume applies the events of h in delivery order until h ends.
func (d *Document) consume(h Handle) {
	for ev := range h.Events() {
		switch ev.Kind {
		case channel.EventChange:
			d.receive(h, ev)
		case channel.EventShout:
			d.shouts.Publish(presence.Shout{Src: ev.Src, User: ev.User, Data: ev.Data})
		case channel.EventDisconnect:
			d.markStale(h, ev.Err)
			return
		}
	}
	d.markStale(h, nil)
}

func (d *Document) receive(h Handle, ev channel.Event) {
	d.mu.Lock()
	if d.handle != h || ev.Version <= d.sys.Version {
		d.mu.Unlock()
		return
	}
	d.held[ev.Version] = heldItem{ops: ev.Ops, sys: ev.Sys, remote: true}
	d.advanceLocked(OriginRemote)
	d.checkGapLocked()
	d.mu.Unlock()

	d.deliverAsync()
}

// markStale drops h after a disconnect. Pending edits fail, Reopen
// acquires a new handle.
func (d *Document) markStale(h Handle, cause error) {
	d.mu.Lock()
	if d.handle != h {
		d.mu.Unlock()
		return
	}
	d.handle = nil
	d.epoch++
	d.setStatusLocked(StatusStale)
	d.mu.Unlock()

	h.Close()
	d.logger.Warn("document is stale", "error", cause)
	d.deliverAsync()
}

// advanceLocked applies held versions while they are contiguous.
func (d *Document) advanceLocked(origin Origin) {
	before, beforeSys := d.tree, d.sys
	changed := false

	for {
		next := d.sys.Version + 1
		item, ok := d.held[next]
		if !ok {
			break
		}
		delete(d.held, next)

		tree := d.tree
		if item.remote && len(item.ops) > 0 {
			applied, err := patch.Apply(tree, item.ops)
			if err != nil {
				d.logger.Warn("remote change does not apply, resynchronizing", "version", next, "error", err)
				d.requestResyncLocked()
			} else {
				tree = applied
			}
		}

		sys := d.sys.Clone()
		if item.sys != nil {
			sys = item.sys.Clone()
		}
		sys.Version = next
		d.sys = sys
		d.tree = withSys(tree, sys)
		changed = true
	}

	if changed {
		d.bumpLocked()
		d.noteChangeLocked(before, beforeSys, origin)
	}
}

// checkGapLocked schedules a resync when a version is missing for good.
// Remote events arrive in order, so a hole below a held remote version can
// only be filled by our own acknowledgement, and there is none in flight.
func (d *Document) checkGapLocked() {
	if d.inflight {
		return
	}
	for _, item := range d.held {
		if item.remote {
			d.logger.Warn("missing versions in change stream", "version", d.sys.Version)
			d.requestResyncLocked()
			return
		}
	}
}

func (d *Document) requestResyncLocked() {
	d.needResync = true
	if d.resyncQueue {
		return
	}
	d.resyncQueue = true
	d.enqueueLocked(&job{kind: jobResync, ctx: context.Background(), done: make(chan error, 1)})
}

// replaceLocked swaps the whole snapshot for entity.
func (d *Document) replaceLocked(entity models.Entity, origin Origin) {
	before, beforeSys := d.tree, d.sys
	d.sys = entity.Sys.Clone()
	d.tree = entity.Tree()
	for v := range d.held {
		if v <= d.sys.Version {
			delete(d.held, v)
		}
	}
	d.needResync = false
	d.bumpLocked()
	d.noteChangeLocked(before, beforeSys, origin)
	d.advanceLocked(origin)
}

// bumpLocked wakes everyone waiting for the version to move.
func (d *Document) bumpLocked() {
	close(d.advanced)
	d.advanced = make(chan struct{})
}

func withSys(tree map[string]any, sys models.Sys) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = v
	}
	out["sys"] = sys.Map()
	return out
}

func (d *Document) noteChangeLocked(before map[string]any, beforeSys models.Sys, origin Origin) {
	d.notes = append(d.notes, note{change: &Change{
		Before:    before,
		After:     d.tree,
		BeforeSys: beforeSys,
		AfterSys:  d.sys.Clone(),
		Origin:    origin,
	}})
}

func (d *Document) setStatusLocked(s Status) {
	d.current = s
	if d.status.Store(s) {
		d.notes = append(d.notes, note{status: &s})
	}
}

func (d *Document) setDirtyLocked() {
	dirty := d.pending > 0
	if d.dirty.Store(dirty) {
		d.notes = append(d.notes, note{dirty: &dirty})
	}
}

// deliver sends the notes collected so far, in order.
func (d *Document) deliver() {
	d.notify.Run(d.drain)
}

// deliverAsync is used by internal goroutines: a subscriber may block on
// an operation that needs those goroutines to make progress.
func (d *Document) deliverAsync() {
	go d.deliver()
}

func (d *Document) drain() {
	d.mu.Lock()
	notes := d.notes
	d.notes = nil
	d.mu.Unlock()

	for _, n := range notes {
		switch {
		case n.change != nil:
			d.changes.Publish(*n.change)
		case n.dirty != nil:
			d.dirty.Notify(*n.dirty)
		case n.status != nil:
			d.status.Notify(*n.status)
		}
	}
}
