package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
)

func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

var (
	alice = &models.User{ID: "u-alice", Name: "Alice"}
	bob   = &models.User{ID: "u-bob", Name: "Bob"}
)

type harness struct {
	hub     *Hub
	clock   *clock.Fake
	shouter *ShouterMock
	deliver func(Shout)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))}
	h.shouter = &ShouterMock{
		SessionIDFunc: func() string { return "me" },
		ShoutFunc:     func(ctx context.Context, data any) error { return nil },
		OnShoutFunc: func(fn func(Shout)) func() {
			h.deliver = fn
			return func() { h.deliver = nil }
		},
	}
	h.hub = NewHub(h.shouter, DefaultSettings(), h.clock, setupTestLogger())
	t.Cleanup(h.hub.Destroy)
	return h
}

func (h *harness) sent() []Message {
	calls := h.shouter.ShoutCalls()
	out := make([]Message, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Data.(Message))
	}
	return out
}

func (h *harness) receive(t *testing.T, src string, user *models.User, msg Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NotNil(t, h.deliver, "hub is not subscribed")
	h.deliver(Shout{Src: src, User: user, Data: data})
}

func TestHub_AnnouncesOnStart(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []Message{{Kind: KindOpen}}, h.sent())
	assert.Empty(t, h.hub.Collaborators().Get())
}

func TestHub_RepliesToOpen(t *testing.T) {
	h := newHarness(t)

	h.receive(t, "s-bob", bob, Message{Kind: KindOpen})
	assert.Equal(t, Message{Kind: KindPing}, h.sent()[1])
	assert.Equal(t, []models.User{*bob}, h.hub.Collaborators().Get())

	h.hub.Focus("title", "en-US")
	h.receive(t, "s-alice", alice, Message{Kind: KindOpen})

	sent := h.sent()
	assert.Equal(t, Message{Kind: KindFocus, Field: "title", Locale: "en-US"}, sent[len(sent)-1])
	assert.Equal(t, []models.User{*alice, *bob}, h.hub.Collaborators().Get())
}

func TestHub_FocusAndClose(t *testing.T) {
	h := newHarness(t)

	var updates [][]models.User
	cancel := h.hub.Collaborators().Subscribe(func(u []models.User) { updates = append(updates, u) })
	defer cancel()

	title := h.hub.CollaboratorsFor("title", "en-US")
	assert.Empty(t, title.Get())
	assert.Same(t, title, h.hub.CollaboratorsFor("title", "en-US"))

	h.receive(t, "s-bob", bob, Message{Kind: KindFocus, Field: "title", Locale: "en-US"})
	assert.Equal(t, []models.User{*bob}, title.Get())
	assert.Empty(t, h.hub.CollaboratorsFor("body", "en-US").Get())

	// a ping keeps the focus
	h.receive(t, "s-bob", bob, Message{Kind: KindPing})
	assert.Equal(t, []models.User{*bob}, title.Get())

	h.receive(t, "s-bob", bob, Message{Kind: KindFocus, Field: "body", Locale: "en-US"})
	assert.Empty(t, title.Get())
	assert.Equal(t, []models.User{*bob}, h.hub.CollaboratorsFor("body", "en-US").Get())

	h.receive(t, "s-bob", bob, Message{Kind: KindClose})
	assert.Empty(t, h.hub.Collaborators().Get())

	// [bob] and then []: the focus changes do not touch the collaborator list
	require.Len(t, updates, 2)
	assert.Equal(t, []models.User{*bob}, updates[0])
	assert.Empty(t, updates[1])
}

func TestHub_SameUserTwoSessions(t *testing.T) {
	h := newHarness(t)

	h.receive(t, "s-bob-1", bob, Message{Kind: KindFocus, Field: "title", Locale: "en-US"})
	h.receive(t, "s-bob-2", bob, Message{Kind: KindPing})

	assert.Equal(t, []models.User{*bob}, h.hub.Collaborators().Get())
	assert.Len(t, h.hub.Peers(), 2)

	h.receive(t, "s-bob-1", bob, Message{Kind: KindClose})
	assert.Equal(t, []models.User{*bob}, h.hub.Collaborators().Get())
}

func TestHub_IgnoresInvalidMessages(t *testing.T) {
	h := newHarness(t)
	before := len(h.sent())

	h.receive(t, "me", alice, Message{Kind: KindOpen})
	h.receive(t, "s-x", nil, Message{Kind: KindFocus, Field: "title"})
	h.receive(t, "s-bob", bob, Message{Kind: "wave"})
	h.deliver(Shout{Src: "s-bob", User: bob, Data: json.RawMessage(`{not json`)})

	assert.Empty(t, h.hub.Collaborators().Get())
	assert.Len(t, h.sent(), before)
}

func TestHub_FocusThrottle(t *testing.T) {
	h := newHarness(t)

	h.hub.Focus("title", "en-US")
	h.clock.Advance(2 * time.Second)
	h.hub.Focus("body", "en-US")
	h.clock.Advance(2 * time.Second)
	h.hub.Focus("slug", "de-DE")

	// leading edge only so far
	assert.Equal(t, []Message{
		{Kind: KindOpen},
		{Kind: KindFocus, Field: "title", Locale: "en-US"},
	}, h.sent())

	// the trailing send carries the last focus
	h.clock.Advance(6 * time.Second)
	sent := h.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, Message{Kind: KindFocus, Field: "slug", Locale: "de-DE"}, sent[2])

	// nothing more is pending for the window
	h.clock.Advance(9 * time.Second)
	assert.Len(t, h.sent(), 3)

	// the window is over, the next focus goes out at once
	h.clock.Advance(2 * time.Second)
	h.hub.Focus("title", "en-US")
	assert.Len(t, h.sent(), 4)
}

func TestHub_Heartbeat(t *testing.T) {
	h := newHarness(t)

	h.clock.Advance(60 * time.Second)
	assert.Equal(t, Message{Kind: KindPing}, h.sent()[1])

	h.hub.Focus("title", "en-US")
	h.clock.Advance(60 * time.Second)
	sent := h.sent()
	assert.Equal(t, Message{Kind: KindFocus, Field: "title", Locale: "en-US"}, sent[len(sent)-1])
}

func TestHub_EvictsSilentPeers(t *testing.T) {
	h := newHarness(t)

	h.receive(t, "s-bob", bob, Message{Kind: KindFocus, Field: "title", Locale: "en-US"})
	h.clock.Advance(4 * time.Minute)
	h.receive(t, "s-alice", alice, Message{Kind: KindPing})

	// at the 6m tick bob has been silent for 6m, alice for 2m
	h.clock.Advance(150 * time.Second)
	assert.Equal(t, []models.User{*alice}, h.hub.Collaborators().Get())
	assert.Empty(t, h.hub.CollaboratorsFor("title", "en-US").Get())
}

func TestHub_LeaveAndDestroy(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "s-bob", bob, Message{Kind: KindPing})

	h.hub.Leave()
	h.hub.Destroy()
	h.hub.Destroy()

	sent := h.sent()
	assert.Equal(t, Message{Kind: KindClose}, sent[len(sent)-1])
	assert.Empty(t, h.hub.Collaborators().Get())
	assert.Nil(t, h.deliver)
	assert.Equal(t, 0, h.clock.Pending())

	// no timers, no sends after destroy
	h.hub.Focus("title", "en-US")
	h.clock.Advance(10 * time.Minute)
	assert.Len(t, h.sent(), len(sent))
}
