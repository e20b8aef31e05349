package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
)

type jobKind int

const (
	jobEdit jobKind = iota
	jobFlush
	jobExclusive
	jobResync
)

// job is one unit of work of the document worker. Jobs run one at a time
// in the order they were queued.
type job struct {
	ctx   context.Context
	fn    func(ctx context.Context, sys models.Sys) (models.Sys, error)
	done  chan error
	ops   []patch.Op
	base  int64
	epoch uint64
	kind  jobKind
}

func (j *job) wait(ctx context.Context) error {
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		// уже отправленный запрос все равно завершится, результат отбросим
		return ctx.Err()
	}
}

var errRolledBack = fmt.Errorf("%w: edit was built on a state that has been rolled back", models.ErrVersionConflict)

func (d *Document) enqueueLocked(j *job) {
	d.jobs = append(d.jobs, j)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Document) work() {
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		d.mu.Lock()
		if len(d.jobs) == 0 {
			d.mu.Unlock()
			select {
			case <-d.wake:
				continue
			case <-d.stop:
				return
			}
		}
		j := d.jobs[0]
		d.jobs[0] = nil
		d.jobs = d.jobs[1:]
		d.mu.Unlock()

		j.done <- d.run(j)
	}
}

func (d *Document) run(j *job) error {
	switch j.kind {
	case jobEdit:
		return d.submit(j)
	case jobFlush:
		_, err := d.settle(j.ctx)
		return err
	case jobExclusive:
		sys, err := d.settle(j.ctx)
		if err != nil {
			return err
		}
		updated, err := j.fn(j.ctx, sys)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.applySysLocked(updated)
		d.mu.Unlock()
		d.deliverAsync()
		return nil
	case jobResync:
		d.mu.Lock()
		d.resyncQueue = false
		need := d.needResync
		d.mu.Unlock()
		if !need {
			return nil
		}
		return d.resync(j.ctx)
	}
	return fmt.Errorf("unknown job kind %d", j.kind)
}

// submit sends one local edit and reconciles the snapshot with the outcome.
func (d *Document) submit(j *job) error {
	d.mu.Lock()
	err := d.mutableLocked()
	if err == nil && j.epoch != d.epoch {
		err = errRolledBack
	}
	if err != nil {
		d.pending--
		d.setDirtyLocked()
		d.mu.Unlock()
		d.deliverAsync()
		return err
	}
	h := d.handle
	d.inflight = true
	d.mu.Unlock()

	ack, err := h.Submit(context.Background(), j.base, j.ops)

	d.mu.Lock()
	d.inflight = false
	d.pending--
	d.setDirtyLocked()

	var conflict *models.VersionConflictError
	var stale Handle
	switch {
	case err == nil:
		d.acked = max(d.acked, ack.Version)
		if d.handle == h && ack.Version > d.sys.Version {
			if _, ok := d.held[ack.Version]; !ok {
				d.held[ack.Version] = heldItem{sys: ack.Sys}
			}
			d.advanceLocked(OriginLocal)
		}
		d.checkGapLocked()
	case errors.As(err, &conflict):
		d.epoch++
		if d.handle == h && conflict.Snapshot != nil {
			d.replaceLocked(*conflict.Snapshot, OriginReload)
		} else if d.handle == h {
			d.requestResyncLocked()
		}
		d.logger.Info("edit rejected by version conflict", "sent", j.base, "current", conflict.Actual)
	case errors.Is(err, models.ErrValidationFailed):
		d.epoch++
		if d.handle == h {
			d.requestResyncLocked()
		}
		d.logger.Info("edit rejected by validation", "error", err)
	default:
		if !errors.Is(err, models.ErrTransport) {
			err = fmt.Errorf("%w: %w", models.ErrTransport, err)
		}
		if d.handle == h {
			d.handle = nil
			d.epoch++
			d.setStatusLocked(StatusStale)
			stale = h
		}
	}
	d.mu.Unlock()

	if stale != nil {
		stale.Close()
		d.logger.Warn("document is stale", "error", err)
	}
	d.deliverAsync()
	return err
}

// settle waits until every acknowledged edit is folded into the snapshot
// and returns the resulting sys.
func (d *Document) settle(ctx context.Context) (models.Sys, error) {
	for {
		d.mu.Lock()
		if err := d.usableLocked(); err != nil {
			d.mu.Unlock()
			return models.Sys{}, err
		}
		if d.needResync {
			d.mu.Unlock()
			if err := d.resync(ctx); err != nil {
				return models.Sys{}, err
			}
			continue
		}
		if d.sys.Version >= d.acked {
			sys := d.sys.Clone()
			d.mu.Unlock()
			return sys, nil
		}
		advanced := d.advanced
		d.mu.Unlock()

		select {
		case <-advanced:
		case <-ctx.Done():
			return models.Sys{}, ctx.Err()
		case <-d.stop:
			return models.Sys{}, models.ErrDocumentDestroyed
		}
	}
}

func (d *Document) usableLocked() error {
	switch {
	case d.current == StatusDestroyed:
		return models.ErrDocumentDestroyed
	case d.handle == nil:
		return fmt.Errorf("%w: %w", models.ErrDocumentStale, models.ErrTransport)
	}
	return nil
}

// resync replaces the snapshot with a fresh one from the backend. Queued
// edits built on the old snapshot are rejected.
func (d *Document) resync(ctx context.Context) error {
	d.mu.Lock()
	h := d.handle
	d.mu.Unlock()
	if h == nil {
		return fmt.Errorf("%w: %w", models.ErrDocumentStale, models.ErrTransport)
	}

	snapshot, err := h.Fetch(ctx)
	if err != nil {
		d.logger.Warn("resync failed", "error", err)
		return fmt.Errorf("resync %s: %w", d.ref, err)
	}

	d.mu.Lock()
	if d.handle == h {
		d.epoch++
		d.replaceLocked(snapshot, OriginReload)
		d.logger.Info("document resynchronized", "version", d.sys.Version)
	}
	d.mu.Unlock()
	d.deliverAsync()
	return nil
}

// applySysLocked folds a sys returned by a REST call. It is applied as soon
// as every earlier version is.
func (d *Document) applySysLocked(sys models.Sys) {
	if sys.Version <= d.sys.Version {
		return
	}
	if _, ok := d.held[sys.Version]; !ok {
		s := sys.Clone()
		d.held[sys.Version] = heldItem{sys: &s}
	}
	d.advanceLocked(OriginLocal)
}

// ApplySys folds sys into the snapshot. Older sys is ignored.
func (d *Document) ApplySys(sys models.Sys) {
	d.mu.Lock()
	d.applySysLocked(sys)
	d.mu.Unlock()
	d.deliver()
}

// Flush waits until every edit issued before the call has been
// acknowledged or rejected and folded into the snapshot.
func (d *Document) Flush(ctx context.Context) error {
	return d.schedule(ctx, &job{kind: jobFlush, ctx: ctx, done: make(chan error, 1)})
}

// Exclusive runs fn once every earlier edit has settled and before any
// later edit is sent. A sys returned with a nil error is folded into the
// snapshot.
func (d *Document) Exclusive(ctx context.Context, fn func(ctx context.Context, sys models.Sys) (models.Sys, error)) error {
	return d.schedule(ctx, &job{kind: jobExclusive, ctx: ctx, fn: fn, done: make(chan error, 1)})
}

func (d *Document) schedule(ctx context.Context, j *job) error {
	d.mu.Lock()
	if d.current == StatusDestroyed {
		d.mu.Unlock()
		return models.ErrDocumentDestroyed
	}
	d.enqueueLocked(j)
	d.mu.Unlock()
	return j.wait(ctx)
}
