// Package channel реализует клиентскую сторону realtime канала: одно
// websocket соединение на процесс, мультиплексирующее все открытые документы.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/stream"
	"github.com/iudanet/docsync/pkg/api"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("connection closed")
	// ErrAlreadyOpen is returned when a channel key already has a live handle.
	ErrAlreadyOpen = errors.New("document already open on this connection")
)

// call is a request awaiting its reply frame.
type call struct {
	err   error
	done  chan struct{}
	reply api.Message
}

// link is one established websocket. A new link is created on every reconnect.
type link struct {
	ws      *websocket.Conn
	send    chan api.Message
	done    chan struct{}
	session string
}

// Connection maintains the multiplexed channel and reconnects on failure.
type Connection struct {
	clock     clock.Clock
	ctx       context.Context
	logger    *slog.Logger
	connected *stream.Property[bool]
	link      *link
	pending   map[string]*call
	handles   map[string]*Handle
	cancel    context.CancelFunc
	done      chan struct{}
	endpoint  string
	settings  Settings
	mu        sync.Mutex
}

// Dial starts the connection loop and returns immediately. The link is
// established in the background; watch Connected or call WaitConnected.
// The connection lives until ctx is done or Close is called.
func Dial(ctx context.Context, settings Settings, clk clock.Clock, logger *slog.Logger) (*Connection, error) {
	endpoint, err := channelURL(settings.ServerURL)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := &Connection{
		settings:  settings,
		endpoint:  endpoint,
		clock:     clk,
		logger:    logger,
		connected: stream.NewProperty(false),
		pending:   make(map[string]*call),
		handles:   make(map[string]*Handle),
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Connected is the connectivity signal.
func (c *Connection) Connected() *stream.Property[bool] {
	return c.connected
}

// SessionID returns the server-assigned id of the current link, or "".
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ""
	}
	return c.link.session
}

// WaitConnected blocks until the link is up.
func (c *Connection) WaitConnected(ctx context.Context) error {
	up := make(chan struct{})
	var once sync.Once
	cancel := c.connected.Observe(func(v bool) {
		if v {
			once.Do(func() { close(up) })
		}
	})
	defer cancel()

	select {
	case <-up:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down. Open handles receive a disconnect event.
func (c *Connection) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.link != nil {
		_ = c.link.ws.Close()
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

func (c *Connection) run() {
	defer close(c.done)

	backoff := c.settings.ReconnectMin
	for {
		established, err := c.serve()
		if c.ctx.Err() != nil {
			return
		}
		if established {
			backoff = c.settings.ReconnectMin
		}

		wait := jitter(backoff)
		c.logger.Warn("channel disconnected", "error", err, "retry_in", wait)

		select {
		case <-c.ctx.Done():
			return
		case <-c.clock.After(wait):
		}
		backoff = min(backoff*2, c.settings.ReconnectMax)
	}
}

// jitter spreads reconnects over [d/2, d].
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(d-half+1)
}

// serve dials once and blocks until the link dies. It reports whether the
// link got as far as the hello frame.
func (c *Connection) serve() (bool, error) {
	dialCtx, cancel := context.WithTimeout(c.ctx, c.settings.DialTimeout)
	defer cancel()

	header := http.Header{}
	if c.settings.Token != "" {
		header.Set("Authorization", "Bearer "+c.settings.Token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(dialCtx, c.endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: status %d: %w", c.endpoint, resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	defer func() {
		_ = ws.Close()
	}()

	_ = ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	var hello api.Message
	if err := ws.ReadJSON(&hello); err != nil {
		return false, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != api.MsgHello {
		return false, fmt.Errorf("unexpected first frame %q", hello.Type)
	}

	l := &link{
		ws:      ws,
		send:    make(chan api.Message, c.settings.SendBufferSize),
		done:    make(chan struct{}),
		session: hello.Src,
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.link = l
	c.mu.Unlock()

	c.logger.Info("channel connected", "session", l.session)
	c.connected.Set(true)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(l)
	}()

	err = c.readLoop(l)
	c.teardown(l, err)
	<-writerDone
	return true, err
}

func (c *Connection) writeLoop(l *link) {
	for {
		select {
		case <-l.done:
			return
		case msg := <-l.send:
			_ = l.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := l.ws.WriteJSON(msg); err != nil {
				// для websocket таймаут записи не восстанавливается
				c.logger.Debug("channel write failed", "error", err)
				_ = l.ws.Close()
				return
			}
		case <-c.clock.After(c.settings.PingInterval):
			deadline := time.Now().Add(c.settings.WriteTimeout)
			if err := l.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = l.ws.Close()
				return
			}
		}
	}
}

func (c *Connection) readLoop(l *link) error {
	l.ws.SetPongHandler(func(string) error {
		return l.ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	})

	for {
		_ = l.ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			return err
		}

		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed channel frame", "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Connection) dispatch(msg api.Message) {
	if msg.IsReply() {
		c.mu.Lock()
		cl := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()

		if cl != nil {
			cl.reply = msg
			close(cl.done)
		}
		return
	}

	switch msg.Type {
	case api.MsgChange, api.MsgShout:
		c.mu.Lock()
		h := c.handles[msg.Doc]
		c.mu.Unlock()
		if h == nil {
			c.logger.Debug("frame for unknown document", "doc", msg.Doc, "type", msg.Type)
			return
		}
		h.push(eventFromMessage(msg))
	default:
		c.logger.Debug("unexpected channel frame", "type", msg.Type)
	}
}

// teardown fails everything bound to l.
func (c *Connection) teardown(l *link, cause error) {
	close(l.done)

	c.mu.Lock()
	if c.link == l {
		c.link = nil
	}
	pending := c.pending
	c.pending = make(map[string]*call)
	handles := c.handles
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	c.connected.Set(false)

	err := fmt.Errorf("%w: channel disconnected", models.ErrTransport)
	if cause != nil {
		err = fmt.Errorf("%w: %v", models.ErrTransport, cause)
	}
	for _, cl := range pending {
		cl.err = err
		close(cl.done)
	}
	for _, h := range handles {
		h.terminate(&Event{Kind: EventDisconnect, Err: err})
	}
}

// current returns the live link or ErrTransport.
func (c *Connection) current() (*link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if c.link == nil {
		return nil, fmt.Errorf("%w: not connected", models.ErrTransport)
	}
	return c.link, nil
}

// request sends msg on l and waits for the reply with the same id.
func (c *Connection) request(ctx context.Context, l *link, msg api.Message) (api.Message, error) {
	if _, ok := ctx.Deadline(); !ok && c.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.RequestTimeout)
		defer cancel()
	}

	msg.ID = uuid.NewString()
	cl := &call{done: make(chan struct{})}

	c.mu.Lock()
	if c.link != l {
		c.mu.Unlock()
		return api.Message{}, fmt.Errorf("%w: link replaced", models.ErrTransport)
	}
	c.pending[msg.ID] = cl
	c.mu.Unlock()

	if err := c.enqueue(ctx, l, msg); err != nil {
		c.forget(msg.ID)
		return api.Message{}, err
	}

	select {
	case <-cl.done:
		if cl.err != nil {
			return api.Message{}, cl.err
		}
		return cl.reply, nil
	case <-ctx.Done():
		c.forget(msg.ID)
		// ответ мог еще прийти, но вызывающий его уже не ждет
		return api.Message{}, fmt.Errorf("%w: %w", models.ErrTransport, ctx.Err())
	}
}

func (c *Connection) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// enqueue hands msg to the writer of l. Frames from one goroutine keep their order.
func (c *Connection) enqueue(ctx context.Context, l *link, msg api.Message) error {
	select {
	case l.send <- msg:
		return nil
	case <-l.done:
		return fmt.Errorf("%w: channel disconnected", models.ErrTransport)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open subscribes to the document channel of ref and returns its handle
// with the initial snapshot. It fails with ErrTransport while disconnected.
func (c *Connection) Open(ctx context.Context, ref models.Ref) (*Handle, error) {
	l, err := c.current()
	if err != nil {
		return nil, err
	}

	key := ref.ChannelKey()
	h := newHandle(c, l, ref)

	c.mu.Lock()
	if c.link != l {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: link replaced", models.ErrTransport)
	}
	if _, ok := c.handles[key]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, key)
	}
	c.handles[key] = h
	c.mu.Unlock()

	reply, err := c.request(ctx, l, api.Message{Type: api.MsgOpen, Doc: key})
	if err == nil {
		err = replyError(reply, 0)
	}
	if err == nil && reply.Snapshot == nil {
		err = fmt.Errorf("open %s: reply without snapshot", key)
	}
	if err == nil && h.isTerminated() {
		err = fmt.Errorf("%w: disconnected while opening", models.ErrTransport)
	}
	if err != nil {
		c.removeHandle(h)
		h.terminate(nil)
		h.stopPump()
		return nil, fmt.Errorf("open %s: %w", key, err)
	}

	h.snapshot = reply.Snapshot.ToModel()
	c.logger.Debug("document opened", "doc", key, "version", h.snapshot.Sys.Version)
	return h, nil
}

func (c *Connection) removeHandle(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handles[h.key] == h {
		delete(c.handles, h.key)
	}
}

// replyError converts an error frame into a domain error.
func replyError(reply api.Message, sent int64) error {
	if reply.Type != api.MsgError {
		return nil
	}
	if reply.Error == nil {
		return fmt.Errorf("request rejected")
	}
	var snapshot *models.Entity
	if reply.Snapshot != nil {
		e := reply.Snapshot.ToModel()
		snapshot = &e
	}
	return reply.Error.Err(sent, snapshot)
}
