// Package pool хранит по одному живому документу на сущность и считает
// ссылки на него. Документ уничтожается, когда завершается последний
// lifeline.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/docsync/internal/client/document"
	"github.com/iudanet/docsync/internal/client/presence"
	"github.com/iudanet/docsync/internal/client/resource"
	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/stream"
)

// ErrClosed is returned by Get after Destroy.
var ErrClosed = errors.New("pool is closed")

// DefaultReopenTimeout bounds one reopen attempt after reconnection.
const DefaultReopenTimeout = 30 * time.Second

// Config holds what every pooled document is opened with.
type Config struct {
	API      resource.API
	Clock    clock.Clock
	Logger   *slog.Logger
	Presence presence.Settings
	// DestroyTimeout bounds the flush done when a document is released.
	DestroyTimeout time.Duration
	// Connectivity, if set, reports the channel state. Stale documents are
	// reopened when it turns true.
	Connectivity  *stream.Property[bool]
	ReopenTimeout time.Duration
}

type key struct {
	typ models.EntityType
	id  string
}

type entry struct {
	doc   *document.Document
	err   error
	ready chan struct{}
	stops []func() bool
	refs  int
}

// Pool is a reference-counted registry of open documents.
type Pool struct {
	opener     document.Opener
	logger     *slog.Logger
	entries    map[key]*entry
	cancelConn func()
	cfg        Config
	mu         sync.Mutex
	closed     bool
}

// New creates an empty pool. Call Destroy to release it.
func New(opener document.Opener, cfg Config) *Pool {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReopenTimeout <= 0 {
		cfg.ReopenTimeout = DefaultReopenTimeout
	}
	p := &Pool{
		opener:  opener,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "pool"),
		entries: make(map[key]*entry),
	}
	if cfg.Connectivity != nil {
		p.cancelConn = cfg.Connectivity.Subscribe(func(connected bool) {
			if connected {
				go p.ReopenStale()
			}
		})
	}
	return p
}

// Get returns the shared document for ref, opening it on first use.
// The returned reference is released when lifeline is done. A stale
// document is reopened before it is returned.
func (p *Pool) Get(ctx context.Context, ref models.Ref, contentType models.ContentType, user models.User, lifeline context.Context) (*document.Document, error) {
	k := key{typ: ref.Type, id: ref.ID}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		e, ok := p.entries[k]
		if !ok {
			e = &entry{ready: make(chan struct{}), refs: 1}
			p.entries[k] = e
			p.mu.Unlock()
			return p.open(ctx, k, e, ref, contentType, user, lifeline)
		}
		p.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}

		p.mu.Lock()
		if p.entries[k] != e {
			// последняя ссылка ушла, пока мы ждали
			p.mu.Unlock()
			continue
		}
		e.refs++
		p.holdLocked(k, e, lifeline)
		p.mu.Unlock()

		return p.reopenIfStale(ctx, k, e)
	}
}

func (p *Pool) open(ctx context.Context, k key, e *entry, ref models.Ref, contentType models.ContentType, user models.User, lifeline context.Context) (*document.Document, error) {
	doc, err := document.Open(ctx, p.opener, ref, contentType, document.Config{
		API:            p.cfg.API,
		Clock:          p.cfg.Clock,
		Logger:         p.cfg.Logger,
		User:           user,
		Presence:       p.cfg.Presence,
		DestroyTimeout: p.cfg.DestroyTimeout,
	})

	p.mu.Lock()
	if err == nil && p.entries[k] != e {
		err = ErrClosed
		defer func() { _ = doc.Destroy(context.Background()) }()
	}
	if err != nil {
		if p.entries[k] == e {
			delete(p.entries, k)
		}
		e.err = err
		close(e.ready)
		p.mu.Unlock()
		return nil, err
	}
	e.doc = doc
	close(e.ready)
	p.holdLocked(k, e, lifeline)
	p.mu.Unlock()

	p.logger.Debug("document added", "type", k.typ, "id", k.id)
	return doc, nil
}

// holdLocked ties one reference of e to lifeline.
func (p *Pool) holdLocked(k key, e *entry, lifeline context.Context) {
	var once sync.Once
	stop := context.AfterFunc(lifeline, func() {
		once.Do(func() { p.release(k, e) })
	})
	e.stops = append(e.stops, stop)
}

func (p *Pool) release(k key, e *entry) {
	p.mu.Lock()
	if p.entries[k] != e {
		p.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.entries, k)
	p.mu.Unlock()

	if err := e.doc.Destroy(context.Background()); err != nil {
		p.logger.Warn("document destroyed with unflushed edits", "type", k.typ, "id", k.id, "error", err)
		return
	}
	p.logger.Debug("document released", "type", k.typ, "id", k.id)
}

func (p *Pool) reopenIfStale(ctx context.Context, k key, e *entry) (*document.Document, error) {
	if !e.doc.IsStale() {
		return e.doc, nil
	}
	if err := e.doc.Reopen(ctx); err != nil {
		return nil, fmt.Errorf("reopen %s %s: %w", k.typ, k.id, err)
	}
	return e.doc, nil
}

// GetByID returns the pooled document without opening one. The returned
// reference is released when lifeline is done.
func (p *Pool) GetByID(id string, typ models.EntityType, lifeline context.Context) (*document.Document, bool) {
	k := key{typ: typ, id: id}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[k]
	if !ok || e.doc == nil {
		return nil, false
	}
	e.refs++
	p.holdLocked(k, e, lifeline)
	return e.doc, true
}

// Len returns the number of live documents.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if e.doc != nil {
			n++
		}
	}
	return n
}

// ReopenStale reopens every stale document. Failures are logged, the
// documents stay stale until the next attempt.
func (p *Pool) ReopenStale() {
	p.mu.Lock()
	var docs []*document.Document
	for _, e := range p.entries {
		if e.doc != nil && e.doc.IsStale() {
			docs = append(docs, e.doc)
		}
	}
	p.mu.Unlock()

	for _, doc := range docs {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ReopenTimeout)
		err := doc.Reopen(ctx)
		cancel()
		if err != nil && !errors.Is(err, models.ErrDocumentDestroyed) {
			p.logger.Warn("reopen failed", "entity", doc.Ref().Key(), "error", err)
		}
	}
}

// Destroy tears down every pooled document. Lifelines that end later
// have no effect.
func (p *Pool) Destroy(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	entries := p.entries
	p.entries = make(map[key]*entry)
	p.mu.Unlock()

	if p.cancelConn != nil {
		p.cancelConn()
	}

	var errs []error
	for _, e := range entries {
		for _, stop := range e.stops {
			stop()
		}
		if e.doc == nil {
			continue
		}
		if err := e.doc.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.logger.Debug("pool destroyed", "documents", len(entries))
	return errors.Join(errs...)
}
