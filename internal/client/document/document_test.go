package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/client/channel"
	"github.com/iudanet/docsync/internal/client/presence"
	"github.com/iudanet/docsync/internal/client/resource"
	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

var (
	testRef = models.Ref{Space: "s1", Environment: "master", Type: models.EntityTypeEntry, ID: "e1"}

	testContentType = models.ContentType{
		ID:   "post",
		Name: "Post",
		Fields: []models.Field{
			{ID: "title", Name: "Title", Type: models.FieldTypeSymbol, Localized: true},
			{ID: "body", Name: "Body", Type: models.FieldTypeText, Localized: true},
			{ID: "views", Name: "Views", Type: models.FieldTypeInteger},
			{ID: "meta", Name: "Meta", Type: models.FieldTypeObject},
		},
	}

	titlePath = patch.FieldPath("title", "en-US")
	bodyPath  = patch.FieldPath("body", "en-US")
	viewsPath = patch.FieldPath("views", "en-US")
)

func sysAt(version int64) models.Sys {
	return models.Sys{
		ID:          "e1",
		Type:        models.EntityTypeEntry,
		Space:       "s1",
		Environment: "master",
		ContentType: "post",
		Version:     version,
	}
}

func entityAt(version int64, title string) models.Entity {
	return models.Entity{
		Sys:    sysAt(version),
		Fields: models.Fields{"title": {"en-US": title}},
	}
}

type submitFunc func(version int64, ops []patch.Op) (channel.Ack, error)

// fakeHandle is a scripted channel subscription.
type fakeHandle struct {
	*HandleMock
	events chan channel.Event
	once   sync.Once
}

func newFakeHandle(snapshot models.Entity, submit submitFunc) *fakeHandle {
	fh := &fakeHandle{events: make(chan channel.Event, 16)}
	fh.HandleMock = &HandleMock{
		SnapshotFunc:  func() models.Entity { return snapshot.Clone() },
		SessionIDFunc: func() string { return "me" },
		EventsFunc:    func() <-chan channel.Event { return fh.events },
		SubmitFunc: func(ctx context.Context, version int64, ops []patch.Op) (channel.Ack, error) {
			return submit(version, ops)
		},
		FetchFunc: func(ctx context.Context) (models.Entity, error) {
			return models.Entity{}, errors.New("unexpected fetch")
		},
		ShoutFunc: func(ctx context.Context, data any) error { return nil },
		CloseFunc: func() { fh.once.Do(func() { close(fh.events) }) },
	}
	return fh
}

// acker acknowledges every submission with the next version.
func acker(start int64) submitFunc {
	var mu sync.Mutex
	v := start
	return func(int64, []patch.Op) (channel.Ack, error) {
		mu.Lock()
		defer mu.Unlock()
		v++
		sys := sysAt(v)
		return channel.Ack{Version: v, Sys: &sys}, nil
	}
}

func openTestDoc(t *testing.T, api resource.API, handles ...*fakeHandle) (*Document, *OpenerMock) {
	t.Helper()
	var mu sync.Mutex
	next := 0
	opener := &OpenerMock{
		OpenFunc: func(ctx context.Context, ref models.Ref) (Handle, error) {
			mu.Lock()
			defer mu.Unlock()
			if next >= len(handles) {
				return nil, fmt.Errorf("%w: no more handles", models.ErrTransport)
			}
			h := handles[next]
			next++
			return h, nil
		},
	}
	if api == nil {
		api = &resource.APIMock{}
	}

	doc, err := Open(context.Background(), opener, testRef, testContentType, Config{
		API:    api,
		Clock:  clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger: setupTestLogger(),
		User:   models.User{ID: "u-me", Name: "Me"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Destroy(context.Background()) })
	return doc, opener
}

func TestDocument_Open(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, nil, fh)

	assert.Equal(t, StatusReady, doc.Status().Get())
	assert.Equal(t, "Hello", doc.GetValueAt(titlePath))
	assert.Equal(t, int64(5), doc.GetValueAt(patch.Path{"sys", "version"}))
	assert.Nil(t, doc.GetValueAt(bodyPath))
	assert.Equal(t, int64(5), doc.Sys().Version)
	assert.False(t, doc.IsDirty())
	assert.Equal(t, models.StateDraft, doc.Resource().State().Get())

	// presence announces the session on open
	shouts := fh.ShoutCalls()
	require.NotEmpty(t, shouts)
	assert.Equal(t, presence.Message{Kind: presence.KindOpen}, shouts[0].Data)
}

func TestDocument_OpenFails(t *testing.T) {
	opener := OpenFunc(func(ctx context.Context, ref models.Ref) (Handle, error) {
		return nil, models.ErrNotFound
	})
	_, err := Open(context.Background(), opener, testRef, testContentType, Config{API: &resource.APIMock{}, Logger: setupTestLogger()})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDocument_SetValueAt_Text(t *testing.T) {
	var doc *Document
	var duringSubmit []any
	ack := acker(5)
	fh := newFakeHandle(entityAt(5, "Hello"), func(version int64, ops []patch.Op) (channel.Ack, error) {
		// optimistic value is visible before the backend answers
		duringSubmit = append(duringSubmit, doc.GetValueAt(titlePath), doc.IsDirty())
		return ack(version, ops)
	})
	doc, _ = openTestDoc(t, nil, fh)

	var seen []any
	cancel := doc.ValueChanged(titlePath, func(v any) { seen = append(seen, v) })
	defer cancel()

	require.NoError(t, doc.SetValueAt(context.Background(), titlePath, "Hello!"))

	calls := fh.SubmitCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(5), calls[0].Version)
	assert.Equal(t, []patch.Op{{Op: patch.KindInsertText, Path: titlePath, Offset: 5, SI: "!"}}, calls[0].Ops)
	assert.Equal(t, []any{"Hello!", true}, duringSubmit)

	assert.Equal(t, "Hello!", doc.GetValueAt(titlePath))
	assert.Equal(t, int64(6), doc.Sys().Version)
	assert.False(t, doc.IsDirty())
	assert.Equal(t, []any{"Hello!"}, seen)

	require.NoError(t, doc.SetValueAt(context.Background(), titlePath, "Help!"))
	calls = fh.SubmitCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(6), calls[1].Version)
	assert.Equal(t, []patch.Op{
		{Op: patch.KindDeleteText, Path: titlePath, Offset: 3, SD: "lo"},
		{Op: patch.KindInsertText, Path: titlePath, Offset: 3, SI: "p"},
	}, calls[1].Ops)
}

func TestDocument_SetValueAt_Ops(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, nil, fh)
	ctx := context.Background()

	// an empty string removes the value
	require.NoError(t, doc.SetValueAt(ctx, titlePath, ""))
	assert.Nil(t, doc.GetValueAt(titlePath))

	// a new string is a single insert at 0
	require.NoError(t, doc.SetValueAt(ctx, bodyPath, "abc"))

	require.NoError(t, doc.SetValueAt(ctx, viewsPath, 3))
	require.NoError(t, doc.SetValueAt(ctx, viewsPath, 4))
	// the same value again is a no-op
	require.NoError(t, doc.SetValueAt(ctx, viewsPath, 4.0))

	require.NoError(t, doc.SetValueAt(ctx, patch.FieldPath("meta", "en-US"), map[string]any{"a": 1}))
	assert.Equal(t, map[string]any{"a": float64(1)}, doc.GetValueAt(patch.FieldPath("meta", "en-US")))

	require.NoError(t, doc.RemoveValueAt(ctx, viewsPath))
	// removing an absent value is a no-op
	require.NoError(t, doc.RemoveValueAt(ctx, viewsPath))

	var ops [][]patch.Op
	for _, c := range fh.SubmitCalls() {
		ops = append(ops, c.Ops)
	}
	assert.Equal(t, [][]patch.Op{
		{{Op: patch.KindRemove, Path: titlePath}},
		{{Op: patch.KindInsertText, Path: bodyPath, Offset: 0, SI: "abc"}},
		{{Op: patch.KindAdd, Path: viewsPath, Value: float64(3)}},
		{{Op: patch.KindReplace, Path: viewsPath, Value: float64(4)}},
		{{Op: patch.KindAdd, Path: patch.FieldPath("meta", "en-US"), Value: map[string]any{"a": float64(1)}}},
		{{Op: patch.KindRemove, Path: viewsPath}},
	}, ops)
	assert.Equal(t, int64(11), doc.Sys().Version)
}

func TestDocument_SetValueAt_Invalid(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, nil, fh)
	ctx := context.Background()

	tests := []struct {
		name  string
		path  patch.Path
		value any
	}{
		{"number into a text field", titlePath, 42},
		{"date into a text field", titlePath, time.Now()},
		{"string into an integer field", viewsPath, "many"},
		{"NaN", viewsPath, math.NaN()},
		{"unknown field", patch.FieldPath("nope", "en-US"), "x"},
		{"sys path", patch.Path{"sys", "version"}, 7},
		{"field without locale", patch.Path{"fields", "title"}, "x"},
		{"bad locale", patch.FieldPath("title", "EN_us"), "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.SetValueAt(ctx, tt.path, tt.value)
			assert.ErrorIs(t, err, models.ErrInvalidFieldValue)
		})
	}

	assert.Empty(t, fh.SubmitCalls())
	assert.Equal(t, "Hello", doc.GetValueAt(titlePath))
	assert.False(t, doc.IsDirty())
}

func TestDocument_ConflictRollsBack(t *testing.T) {
	server := entityAt(7, "Server")
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	fh := newFakeHandle(entityAt(5, "Hello"), func(version int64, ops []patch.Op) (channel.Ack, error) {
		started <- struct{}{}
		<-gate
		return channel.Ack{}, &models.VersionConflictError{Expected: version, Actual: 7, Snapshot: &server}
	})
	doc, _ := openTestDoc(t, nil, fh)
	ctx := context.Background()

	var origins []Origin
	var mu sync.Mutex
	cancel := doc.Changes().Subscribe(func(c Change) {
		mu.Lock()
		origins = append(origins, c.Origin)
		mu.Unlock()
	})
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- doc.SetValueAt(ctx, titlePath, "Mine") }()
	<-started
	go func() { errs <- doc.SetValueAt(ctx, bodyPath, "queued") }()

	require.Eventually(t, func() bool { return doc.GetValueAt(bodyPath) == "queued" }, waitFor, tick)
	assert.True(t, doc.IsDirty())
	close(gate)

	for range 2 {
		assert.ErrorIs(t, <-errs, models.ErrVersionConflict)
	}
	// the queued edit was built on the rolled back state and never sent
	assert.Len(t, fh.SubmitCalls(), 1)

	assert.Equal(t, "Server", doc.GetValueAt(titlePath))
	assert.Nil(t, doc.GetValueAt(bodyPath))
	assert.Equal(t, int64(7), doc.Sys().Version)
	assert.False(t, doc.IsDirty())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(origins) > 0 && origins[len(origins)-1] == OriginReload
	}, waitFor, tick)
}

func TestDocument_ValidationRejectResyncs(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), func(int64, []patch.Op) (channel.Ack, error) {
		return channel.Ack{}, &models.ValidationError{Message: "title is too long"}
	})
	fh.FetchFunc = func(ctx context.Context) (models.Entity, error) {
		return entityAt(6, "Fetched"), nil
	}
	doc, _ := openTestDoc(t, nil, fh)

	err := doc.SetValueAt(context.Background(), titlePath, "Mine")
	require.ErrorIs(t, err, models.ErrValidationFailed)

	require.Eventually(t, func() bool { return doc.Sys().Version == 6 }, waitFor, tick)
	assert.Equal(t, "Fetched", doc.GetValueAt(titlePath))
	assert.Len(t, fh.FetchCalls(), 1)
}

func TestDocument_RemoteChanges(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, nil, fh)

	var mu sync.Mutex
	var remote int
	cancel := doc.Changes().Subscribe(func(c Change) {
		if c.Origin == OriginRemote {
			mu.Lock()
			remote++
			mu.Unlock()
		}
	})
	defer cancel()

	var values []any
	cancelValue := doc.ValueChanged(titlePath, func(v any) {
		mu.Lock()
		values = append(values, v)
		mu.Unlock()
	})
	defer cancelValue()

	sys6, sys7 := sysAt(6), sysAt(7)
	fh.events <- channel.Event{Kind: channel.EventChange, Version: 6, Sys: &sys6, Src: "other",
		Ops: []patch.Op{{Op: patch.KindInsertText, Path: titlePath, Offset: 5, SI: "!"}}}
	// delivered twice, applied once
	fh.events <- channel.Event{Kind: channel.EventChange, Version: 6, Sys: &sys6, Src: "other",
		Ops: []patch.Op{{Op: patch.KindInsertText, Path: titlePath, Offset: 5, SI: "!"}}}
	fh.events <- channel.Event{Kind: channel.EventChange, Version: 7, Sys: &sys7, Src: "other",
		Ops: []patch.Op{{Op: patch.KindDeleteText, Path: titlePath, Offset: 0, SD: "H"}}}

	require.Eventually(t, func() bool { return doc.Sys().Version == 7 }, waitFor, tick)
	assert.Equal(t, "ello!", doc.GetValueAt(titlePath))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return remote == 2
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, []any{"Hello!", "ello!"}, values)
	mu.Unlock()
	assert.Empty(t, fh.FetchCalls())
}

func TestDocument_AckWaitsForEarlierVersions(t *testing.T) {
	sys7 := sysAt(7)
	fh := newFakeHandle(entityAt(5, "Hello"), func(int64, []patch.Op) (channel.Ack, error) {
		// another session's change got version 6 first
		return channel.Ack{Version: 7, Sys: &sys7}, nil
	})
	doc, _ := openTestDoc(t, nil, fh)
	ctx := context.Background()

	require.NoError(t, doc.SetValueAt(ctx, titlePath, "Mine"))
	assert.Equal(t, int64(5), doc.Sys().Version)
	assert.False(t, doc.IsDirty())

	flushed := make(chan error, 1)
	go func() { flushed <- doc.Flush(ctx) }()
	select {
	case <-flushed:
		t.Fatal("flush returned before version 6 arrived")
	case <-time.After(50 * time.Millisecond):
	}

	sys6 := sysAt(6)
	fh.events <- channel.Event{Kind: channel.EventChange, Version: 6, Sys: &sys6, Src: "other",
		Ops: []patch.Op{{Op: patch.KindAdd, Path: bodyPath, Value: "Theirs"}}}

	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("flush did not return")
	}
	assert.Equal(t, int64(7), doc.Sys().Version)
	assert.Equal(t, "Mine", doc.GetValueAt(titlePath))
	assert.Equal(t, "Theirs", doc.GetValueAt(bodyPath))
	assert.Empty(t, fh.FetchCalls())
}

func TestDocument_GapResyncs(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	fh.FetchFunc = func(ctx context.Context) (models.Entity, error) {
		return entityAt(9, "Fetched"), nil
	}
	doc, _ := openTestDoc(t, nil, fh)

	sys8 := sysAt(8)
	fh.events <- channel.Event{Kind: channel.EventChange, Version: 8, Sys: &sys8, Src: "other",
		Ops: []patch.Op{{Op: patch.KindReplace, Path: titlePath, Value: "Eight"}}}

	require.Eventually(t, func() bool { return doc.Sys().Version == 9 }, waitFor, tick)
	assert.Equal(t, "Fetched", doc.GetValueAt(titlePath))
	assert.Len(t, fh.FetchCalls(), 1)
}

func TestDocument_StaleAndReopen(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	fh2 := newFakeHandle(entityAt(8, "Reloaded"), acker(8))
	doc, opener := openTestDoc(t, nil, fh, fh2)
	ctx := context.Background()

	fh.events <- channel.Event{Kind: channel.EventDisconnect, Err: models.ErrTransport}
	require.Eventually(t, func() bool { return doc.Status().Get() == StatusStale }, waitFor, tick)
	assert.True(t, doc.IsStale())
	assert.Len(t, fh.CloseCalls(), 1)

	err := doc.SetValueAt(ctx, titlePath, "Mine")
	assert.ErrorIs(t, err, models.ErrDocumentStale)
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.Empty(t, fh.SubmitCalls())

	require.NoError(t, doc.Reopen(ctx))
	// a live document is left alone
	require.NoError(t, doc.Reopen(ctx))
	assert.Len(t, opener.OpenCalls(), 2)

	assert.Equal(t, StatusReady, doc.Status().Get())
	assert.Equal(t, "Reloaded", doc.GetValueAt(titlePath))
	assert.Equal(t, int64(8), doc.Sys().Version)

	shouts := fh2.ShoutCalls()
	require.NotEmpty(t, shouts)
	assert.Equal(t, presence.Message{Kind: presence.KindOpen}, shouts[0].Data)

	require.NoError(t, doc.SetValueAt(ctx, titlePath, "Reloaded!"))
	calls := fh2.SubmitCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(8), calls[0].Version)
	assert.Equal(t, int64(9), doc.Sys().Version)
}

func TestDocument_SubmitTransportError(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), func(int64, []patch.Op) (channel.Ack, error) {
		return channel.Ack{}, fmt.Errorf("%w: link lost", models.ErrTransport)
	})
	doc, _ := openTestDoc(t, nil, fh)

	err := doc.SetValueAt(context.Background(), titlePath, "Mine")
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.Equal(t, StatusStale, doc.Status().Get())
	assert.Len(t, fh.CloseCalls(), 1)
	assert.False(t, doc.IsDirty())
}

func TestDocument_LifecycleActions(t *testing.T) {
	api := &resource.APIMock{
		PublishFunc: func(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
			sys := sysAt(version + 1)
			sys.PublishedVersion = models.VersionPtr(version)
			return sys, nil
		},
		DeleteFunc: func(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
			sys := sysAt(version + 1)
			sys.PublishedVersion = models.VersionPtr(6)
			sys.DeletedVersion = models.VersionPtr(version)
			return sys, nil
		},
	}
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, api, fh)
	ctx := context.Background()

	require.NoError(t, doc.SetValueAt(ctx, titlePath, "Hello!"))

	sys, err := doc.Resource().Publish(ctx)
	require.NoError(t, err)
	// the edit was folded before the request was made
	require.Len(t, api.PublishCalls(), 1)
	assert.Equal(t, int64(6), api.PublishCalls()[0].Version)
	assert.Equal(t, int64(7), sys.Version)

	assert.Equal(t, int64(7), doc.Sys().Version)
	require.NotNil(t, doc.Sys().PublishedVersion)
	assert.Equal(t, int64(6), *doc.Sys().PublishedVersion)
	assert.Equal(t, int64(6), doc.GetValueAt(patch.Path{"sys", "publishedVersion"}))
	assert.Equal(t, models.StateChanged, doc.Resource().State().Get())

	_, err = doc.Resource().Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateDeleted, doc.Resource().State().Get())

	err = doc.SetValueAt(ctx, titlePath, "after delete")
	assert.ErrorIs(t, err, models.ErrEntityDeleted)
	assert.Len(t, fh.SubmitCalls(), 1)
}

func TestDocument_ShoutsReachPresence(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, nil, fh)

	bob := models.User{ID: "u-bob", Name: "Bob"}
	data, err := json.Marshal(presence.Message{Kind: presence.KindFocus, Field: "title", Locale: "en-US"})
	require.NoError(t, err)
	fh.events <- channel.Event{Kind: channel.EventShout, Src: "s-bob", User: &bob, Data: data}

	require.Eventually(t, func() bool {
		users := doc.Presence().CollaboratorsFor("title", "en-US").Get()
		return len(users) == 1 && users[0] == bob
	}, waitFor, tick)
}

func TestDocument_Destroy(t *testing.T) {
	fh := newFakeHandle(entityAt(5, "Hello"), acker(5))
	doc, _ := openTestDoc(t, nil, fh)
	ctx := context.Background()

	var statuses []Status
	cancel := doc.Status().Subscribe(func(s Status) { statuses = append(statuses, s) })
	defer cancel()

	require.NoError(t, doc.Destroy(ctx))
	require.NoError(t, doc.Destroy(ctx))

	assert.Equal(t, StatusDestroyed, doc.Status().Get())
	assert.Equal(t, []Status{StatusDestroyed}, statuses)
	assert.Len(t, fh.CloseCalls(), 1)

	shouts := fh.ShoutCalls()
	assert.Equal(t, presence.Message{Kind: presence.KindClose}, shouts[len(shouts)-1].Data)

	assert.ErrorIs(t, doc.SetValueAt(ctx, titlePath, "x"), models.ErrDocumentDestroyed)
	assert.ErrorIs(t, doc.Flush(ctx), models.ErrDocumentDestroyed)
	assert.ErrorIs(t, doc.Reopen(ctx), models.ErrDocumentDestroyed)
}
