package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/docsync/internal/models"
)

// IsStale reports whether the document lost its channel.
func (d *Document) IsStale() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current == StatusStale
}

// Reopen acquires a fresh handle and snapshot for a stale document. It does
// nothing if the document is live.
func (d *Document) Reopen(ctx context.Context) error {
	d.reopenMu.Lock()
	defer d.reopenMu.Unlock()

	d.mu.Lock()
	if d.current == StatusDestroyed {
		d.mu.Unlock()
		return models.ErrDocumentDestroyed
	}
	if d.handle != nil {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	h, err := d.opener.Open(ctx, d.ref)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", d.ref, err)
	}

	d.mu.Lock()
	if d.current == StatusDestroyed {
		d.mu.Unlock()
		h.Close()
		return models.ErrDocumentDestroyed
	}
	d.handle = h
	d.epoch++
	clear(d.held)
	d.replaceLocked(h.Snapshot(), OriginReload)
	d.setStatusLocked(StatusReady)
	version := d.sys.Version
	d.mu.Unlock()

	go d.consume(h)
	d.deliver()
	d.presence.Announce()

	d.logger.Info("document reopened", "version", version, "session", h.SessionID())
	return nil
}

// Destroy flushes pending edits (bounded by the destroy timeout), leaves
// presence and releases the channel subscription. Edits still queued fail
// with models.ErrDocumentDestroyed. Calling Destroy again does nothing.
func (d *Document) Destroy(ctx context.Context) error {
	var err error
	d.destroyOnce.Do(func() {
		err = d.destroy(ctx)
	})
	return err
}

func (d *Document) destroy(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(ctx, d.cfg.DestroyTimeout)
	defer cancel()

	var flushErr error
	if err := d.Flush(flushCtx); err != nil && !errors.Is(err, models.ErrDocumentStale) {
		flushErr = fmt.Errorf("flush %s: %w", d.ref, err)
		d.logger.Warn("pending edits were not flushed", "error", err)
	}

	d.presence.Leave()
	d.presence.Destroy()
	d.resource.Close()

	d.mu.Lock()
	h := d.handle
	d.handle = nil
	jobs := d.jobs
	d.jobs = nil
	for _, j := range jobs {
		if j.kind == jobEdit {
			d.pending--
		}
	}
	d.setDirtyLocked()
	d.setStatusLocked(StatusDestroyed)
	close(d.stop)
	d.mu.Unlock()

	if h != nil {
		h.Close()
	}
	for _, j := range jobs {
		j.done <- models.ErrDocumentDestroyed
	}
	d.deliver()

	d.logger.Debug("document destroyed")
	return flushErr
}
