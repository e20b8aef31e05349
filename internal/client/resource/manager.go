// Package resource управляет жизненным циклом сущности: состояние
// выводится из sys документа, действия выполняются через REST с проверкой версии.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/stream"
)

//go:generate moq -out resource_mock.go . Document API

// Document is the part of a live document the manager drives.
type Document interface {
	Sys() models.Sys
	// OnSysChange calls fn with the new sys every time the document's sys changes.
	OnSysChange(fn func(models.Sys)) (cancel func())
	// Exclusive runs fn after every earlier edit has settled and before any
	// later one is sent. A sys returned with a nil error is folded into the
	// document atomically.
	Exclusive(ctx context.Context, fn func(ctx context.Context, sys models.Sys) (models.Sys, error)) error
}

// API performs lifecycle requests. Each call carries the version the
// client believes is current and returns the updated sys.
type API interface {
	Publish(ctx context.Context, ref models.Ref, version int64) (models.Sys, error)
	Unpublish(ctx context.Context, ref models.Ref, version int64) (models.Sys, error)
	Archive(ctx context.Context, ref models.Ref, version int64) (models.Sys, error)
	Unarchive(ctx context.Context, ref models.Ref, version int64) (models.Sys, error)
	Delete(ctx context.Context, ref models.Ref, version int64) (models.Sys, error)
}

// Transition describes a state change. Action is empty when the change
// was not caused by this manager (remote edit, another user's action).
type Transition struct {
	Sys    models.Sys
	From   models.State
	To     models.State
	Action models.Action
}

// Manager is the state machine of one document.
type Manager struct {
	doc     Document
	api     API
	logger  *slog.Logger
	state   *stream.Property[models.State]
	changes *stream.Bus[Transition]
	queue   *stream.Queue
	cancel  func()
	ref     models.Ref
	notes   []Transition

	// действие, результат которого ожидается в sys с этой версией
	action        models.Action
	actionVersion int64

	version int64
	current models.State
	mu      sync.Mutex
}

// NewManager derives the initial state from doc and follows its sys.
func NewManager(doc Document, ref models.Ref, api API, logger *slog.Logger) *Manager {
	sys := doc.Sys()
	initial := models.DeriveState(sys)
	queue := &stream.Queue{}

	m := &Manager{
		doc:     doc,
		api:     api,
		ref:     ref,
		logger:  logger.With("entity", ref.Key()),
		queue:   queue,
		state:   stream.NewProperty(initial).WithQueue(queue),
		changes: stream.NewBus[Transition]().WithQueue(queue),
		version: sys.Version,
		current: initial,
	}
	m.cancel = doc.OnSysChange(func(sys models.Sys) {
		m.fold(sys, "")
	})
	return m
}

// State is the derived resource state.
func (m *Manager) State() *stream.Property[models.State] {
	return m.state
}

// StateChanges emits one Transition per state change.
func (m *Manager) StateChanges() *stream.Bus[Transition] {
	return m.changes
}

// Current returns the state derived from the latest folded sys.
func (m *Manager) Current() models.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanPerform reports whether action is allowed in the current state.
func (m *Manager) CanPerform(action models.Action) bool {
	return m.Current().Allowed(action)
}

// Publish publishes the current version. Publishing an archived entity
// unarchives and publishes it in one step.
func (m *Manager) Publish(ctx context.Context) (models.Sys, error) {
	return m.perform(ctx, models.ActionPublish, m.api.Publish)
}

// Unpublish removes the published version.
func (m *Manager) Unpublish(ctx context.Context) (models.Sys, error) {
	return m.perform(ctx, models.ActionUnpublish, m.api.Unpublish)
}

// Archive archives an unpublished entity.
func (m *Manager) Archive(ctx context.Context) (models.Sys, error) {
	return m.perform(ctx, models.ActionArchive, m.api.Archive)
}

// Unarchive returns an archived entity to draft.
func (m *Manager) Unarchive(ctx context.Context) (models.Sys, error) {
	return m.perform(ctx, models.ActionUnarchive, m.api.Unarchive)
}

// Delete deletes the entity. The document rejects edits afterwards.
func (m *Manager) Delete(ctx context.Context) (models.Sys, error) {
	return m.perform(ctx, models.ActionDelete, m.api.Delete)
}

// Perform dispatches action by name.
func (m *Manager) Perform(ctx context.Context, action models.Action) (models.Sys, error) {
	switch action {
	case models.ActionPublish:
		return m.Publish(ctx)
	case models.ActionUnpublish:
		return m.Unpublish(ctx)
	case models.ActionArchive:
		return m.Archive(ctx)
	case models.ActionUnarchive:
		return m.Unarchive(ctx)
	case models.ActionDelete:
		return m.Delete(ctx)
	}
	return models.Sys{}, fmt.Errorf("%w: unknown action %q", models.ErrActionNotAllowed, action)
}

type requestFunc func(ctx context.Context, ref models.Ref, version int64) (models.Sys, error)

func (m *Manager) perform(ctx context.Context, action models.Action, request requestFunc) (models.Sys, error) {
	if state := m.Current(); !state.Allowed(action) {
		return models.Sys{}, fmt.Errorf("%w: cannot %s a %s entity", models.ErrActionNotAllowed, action, state)
	}

	var result models.Sys
	err := m.doc.Exclusive(ctx, func(ctx context.Context, sys models.Sys) (models.Sys, error) {
		// состояние могло измениться, пока ждали своей очереди
		state := models.DeriveState(sys)
		if !state.Allowed(action) {
			return sys, fmt.Errorf("%w: cannot %s a %s entity", models.ErrActionNotAllowed, action, state)
		}

		updated, err := request(ctx, m.ref, sys.Version)
		if err != nil {
			return sys, err
		}

		m.mu.Lock()
		m.action = action
		m.actionVersion = updated.Version
		m.mu.Unlock()

		result = updated
		return updated, nil
	})
	if err != nil {
		m.logger.Warn("lifecycle action failed", "action", action, "error", err)
		return models.Sys{}, fmt.Errorf("%s: %w", action, err)
	}

	m.fold(result, action)
	m.logger.Info("lifecycle action done", "action", action, "version", result.Version, "state", m.Current())
	return result, nil
}

// fold re-derives the state from sys. Older sys than the last folded one is ignored.
func (m *Manager) fold(sys models.Sys, action models.Action) {
	m.mu.Lock()
	if sys.Version < m.version {
		m.mu.Unlock()
		return
	}
	if action == "" && m.actionVersion == sys.Version {
		action = m.action
	}
	m.version = sys.Version

	from := m.current
	to := models.DeriveState(sys)
	m.current = to
	if from != to {
		m.state.Store(to)
		m.notes = append(m.notes, Transition{Sys: sys.Clone(), From: from, To: to, Action: action})
	}
	m.mu.Unlock()

	m.queue.Run(m.deliver)
}

func (m *Manager) deliver() {
	m.mu.Lock()
	notes := m.notes
	m.notes = nil
	m.mu.Unlock()

	for _, tr := range notes {
		m.state.Notify(tr.To)
		m.changes.Publish(tr)
	}
}

// Close stops following the document.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}
