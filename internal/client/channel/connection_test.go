package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

var testRef = models.Ref{Space: "s1", Environment: "master", Type: models.EntityTypeEntry, ID: "e1"}

// fakeServer is a scripted channel endpoint.
type fakeServer struct {
	srv      *httptest.Server
	conns    []*serverConn
	received []api.Message
	auth     []string
	mu       sync.Mutex
	version  int64
}

type serverConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (sc *serverConn) write(msg api.Message) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_ = sc.ws.WriteJSON(msg)
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{version: 5}
	upgrader := websocket.Upgrader{}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ChannelPath {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		sc := &serverConn{ws: ws}
		fs.mu.Lock()
		fs.auth = append(fs.auth, r.Header.Get("Authorization"))
		fs.conns = append(fs.conns, sc)
		session := fmt.Sprintf("sess-%d", len(fs.conns))
		fs.mu.Unlock()

		sc.write(api.Message{Type: api.MsgHello, Src: session})
		for {
			var msg api.Message
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			fs.handle(sc, msg)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) snapshot() *api.Entity {
	return &api.Entity{
		Sys:    api.Sys{ID: "e1", Type: "Entry", Space: "s1", Environment: "master", Version: fs.version},
		Fields: map[string]map[string]any{"title": {"en-US": "Hello"}},
	}
}

func (fs *fakeServer) handle(sc *serverConn, msg api.Message) {
	fs.mu.Lock()
	fs.received = append(fs.received, msg)
	fs.mu.Unlock()

	switch msg.Type {
	case api.MsgOpen, api.MsgFetch:
		if msg.Doc == "s1!Entry!missing" {
			sc.write(api.Message{Type: api.MsgError, ID: msg.ID, Doc: msg.Doc, Error: &api.ErrorResponse{Code: api.CodeNotFound, Message: "no such entity"}})
			return
		}
		fs.mu.Lock()
		snap := fs.snapshot()
		fs.mu.Unlock()
		sc.write(api.Message{Type: api.MsgSnapshot, ID: msg.ID, Doc: msg.Doc, Snapshot: snap})
	case api.MsgOp:
		fs.mu.Lock()
		if msg.V != fs.version {
			snap := fs.snapshot()
			fs.mu.Unlock()
			sc.write(api.Message{Type: api.MsgError, ID: msg.ID, Doc: msg.Doc, Snapshot: snap,
				Error: &api.ErrorResponse{Code: api.CodeVersionMismatch, Message: "stale"}})
			return
		}
		if len(msg.Ops) > 0 && msg.Ops[0].SI == "hang" {
			fs.mu.Unlock()
			return
		}
		fs.version++
		sys := fs.snapshot().Sys
		fs.mu.Unlock()
		sc.write(api.Message{Type: api.MsgAck, ID: msg.ID, Doc: msg.Doc, V: sys.Version, Sys: &sys})
	}
}

func (fs *fakeServer) conn(i int) *serverConn {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.conns[i]
}

func (fs *fakeServer) connCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.conns)
}

func (fs *fakeServer) messages(kind api.MessageType) []api.Message {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []api.Message
	for _, m := range fs.received {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}

func dialTest(t *testing.T, fs *fakeServer) *Connection {
	settings := DefaultSettings(fs.srv.URL, "tok")
	settings.ReconnectMin = 10 * time.Millisecond
	settings.ReconnectMax = 50 * time.Millisecond
	settings.RequestTimeout = 2 * time.Second

	c, err := Dial(context.Background(), settings, clock.Real(), setupTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitConnected(ctx))
	return c
}

func nextEvent(t *testing.T, h *Handle) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-h.Events():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}, false
	}
}

func TestChannelURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/api/v1/channel"},
		{in: "https://example.com/", want: "wss://example.com/api/v1/channel"},
		{in: "https://example.com/base", want: "wss://example.com/base/api/v1/channel"},
		{in: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		got, err := channelURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestJitter(t *testing.T) {
	for range 100 {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestConnection_OpenSubmit(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)

	assert.True(t, c.Connected().Get())
	assert.Equal(t, "sess-1", c.SessionID())
	fs.mu.Lock()
	assert.Equal(t, []string{"Bearer tok"}, fs.auth)
	fs.mu.Unlock()

	h, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)
	defer h.Close()

	snap := h.Snapshot()
	assert.Equal(t, int64(5), snap.Sys.Version)
	assert.Equal(t, "Hello", snap.Fields["title"]["en-US"])
	assert.Equal(t, "sess-1", h.SessionID())

	ops := patch.TextOps(patch.FieldPath("title", "en-US"), "Hello", "Hello!")
	ack, err := h.Submit(context.Background(), 5, ops)
	require.NoError(t, err)
	assert.Equal(t, int64(6), ack.Version)
	require.NotNil(t, ack.Sys)
	assert.Equal(t, int64(6), ack.Sys.Version)

	sent := fs.messages(api.MsgOp)
	require.Len(t, sent, 1)
	assert.Equal(t, "s1!Entry!e1", sent[0].Doc)
	assert.Equal(t, ops, sent[0].Ops)
}

func TestConnection_SubmitConflict(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)

	h, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Submit(context.Background(), 3, []patch.Op{{Op: patch.KindReplace, Path: patch.FieldPath("title", "en-US"), Value: "x"}})
	require.Error(t, err)

	var conflict *models.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(3), conflict.Expected)
	assert.Equal(t, int64(5), conflict.Actual)
	require.NotNil(t, conflict.Snapshot)
	assert.Equal(t, "Hello", conflict.Snapshot.Fields["title"]["en-US"])
}

func TestConnection_OpenErrors(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)

	missing := testRef
	missing.ID = "missing"
	_, err := c.Open(context.Background(), missing)
	assert.ErrorIs(t, err, models.ErrNotFound)

	h, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)
	_, err = c.Open(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	// after Close the key can be opened again
	h.Close()
	h2, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)
	h2.Close()

	assert.Eventually(t, func() bool { return len(fs.messages(api.MsgClose)) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestConnection_EventsInOrder(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)

	h, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)
	defer h.Close()

	sc := fs.conn(0)
	for v := int64(6); v <= 8; v++ {
		sc.write(api.Message{
			Type: api.MsgChange, Doc: "s1!Entry!e1", V: v, Src: "other",
			Ops: []patch.Op{{Op: patch.KindReplace, Path: patch.FieldPath("n", "en-US"), Value: float64(v)}},
		})
	}
	sc.write(api.Message{Type: api.MsgShout, Doc: "s1!Entry!e1", Src: "other", User: &api.User{ID: "u2", Name: "Bob"}, Data: json.RawMessage(`{"kind":"ping"}`)})
	// кадр для чужого документа игнорируется
	sc.write(api.Message{Type: api.MsgChange, Doc: "s1!Entry!other", V: 1})

	for v := int64(6); v <= 8; v++ {
		ev, ok := nextEvent(t, h)
		require.True(t, ok)
		assert.Equal(t, EventChange, ev.Kind)
		assert.Equal(t, v, ev.Version)
		assert.Equal(t, float64(v), ev.Ops[0].Value)
	}

	ev, ok := nextEvent(t, h)
	require.True(t, ok)
	assert.Equal(t, EventShout, ev.Kind)
	require.NotNil(t, ev.User)
	assert.Equal(t, "u2", ev.User.ID)
	assert.JSONEq(t, `{"kind":"ping"}`, string(ev.Data))
}

func TestConnection_DisconnectAndReconnect(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)

	h, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)

	// запрос, на который сервер не ответит
	submitErr := make(chan error, 1)
	go func() {
		_, err := h.Submit(context.Background(), 5, []patch.Op{{Op: patch.KindInsertText, Path: patch.FieldPath("title", "en-US"), SI: "hang"}})
		submitErr <- err
	}()
	assert.Eventually(t, func() bool { return len(fs.messages(api.MsgOp)) == 1 }, 2*time.Second, 5*time.Millisecond)

	_ = fs.conn(0).ws.Close()

	select {
	case err := <-submitErr:
		assert.ErrorIs(t, err, models.ErrTransport)
	case <-time.After(2 * time.Second):
		t.Fatal("pending submit did not fail")
	}

	ev, ok := nextEvent(t, h)
	require.True(t, ok)
	assert.Equal(t, EventDisconnect, ev.Kind)
	assert.ErrorIs(t, ev.Err, models.ErrTransport)
	_, ok = nextEvent(t, h)
	assert.False(t, ok, "events channel must be closed after disconnect")

	_, err = h.Submit(context.Background(), 5, nil)
	assert.ErrorIs(t, err, models.ErrTransport)

	// соединение восстанавливается само
	assert.Eventually(t, func() bool {
		return fs.connCount() == 2 && c.Connected().Get()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "sess-2", c.SessionID())

	h2, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)
	h2.Close()
	h.Close()
}

func TestConnection_NotConnected(t *testing.T) {
	settings := DefaultSettings("http://127.0.0.1:1", "")
	settings.ReconnectMin = time.Hour
	settings.ReconnectMax = time.Hour

	c, err := Dial(context.Background(), settings, clock.NewFake(time.Now()), setupTestLogger())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Open(context.Background(), testRef)
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.False(t, c.Connected().Get())
}

func TestConnection_Close(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)

	h, err := c.Open(context.Background(), testRef)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.False(t, c.Connected().Get())

	ev, ok := nextEvent(t, h)
	require.True(t, ok)
	assert.Equal(t, EventDisconnect, ev.Kind)

	_, err = c.Open(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrClosed)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, c.WaitConnected(ctx), ErrClosed)
}
