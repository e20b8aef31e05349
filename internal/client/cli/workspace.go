package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/docsync/internal/client/api"
	"github.com/iudanet/docsync/internal/client/channel"
	"github.com/iudanet/docsync/internal/client/document"
	"github.com/iudanet/docsync/internal/client/pool"
	"github.com/iudanet/docsync/internal/client/storage"
	"github.com/iudanet/docsync/internal/models"
)

// workspace is a live connection with its document pool.
type workspace struct {
	api  *api.Client
	conn *channel.Connection
	pool *pool.Pool
	user models.User
}

// openWorkspace connects to the realtime channel of the session's server.
func (c *Cli) openWorkspace(ctx context.Context, sess *storage.Session) (*workspace, error) {
	client := c.api(sess)
	conn, err := channel.Dial(ctx, channel.DefaultSettings(sess.Server, sess.AccessToken), c.clock, c.logger)
	if err != nil {
		return nil, err
	}
	if err := conn.WaitConnected(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", sess.Server, err)
	}

	p := pool.New(document.ChannelOpener(conn), pool.Config{
		API:          client,
		Clock:        c.clock,
		Logger:       c.logger,
		Connectivity: conn.Connected(),
	})
	return &workspace{
		api:  client,
		conn: conn,
		pool: p,
		user: models.User{ID: sess.UserID, Name: sess.Name},
	}, nil
}

// document opens ref in the pool. The reference is held until lifeline is done.
func (w *workspace) document(ctx context.Context, ref models.Ref, lifeline context.Context) (*document.Document, error) {
	ct := models.AssetContentType
	if ref.Type == models.EntityTypeEntry {
		entity, err := w.api.GetEntity(ctx, ref)
		if err != nil {
			return nil, err
		}
		got, err := w.api.GetContentType(ctx, ref.Space, ref.Environment, entity.Sys.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to load content type %q: %w", entity.Sys.ContentType, err)
		}
		ct = *got
	}
	return w.pool.Get(ctx, ref, ct, w.user, lifeline)
}

// Close flushes and destroys every open document, then disconnects.
func (w *workspace) Close(ctx context.Context) error {
	return errors.Join(w.pool.Destroy(ctx), w.conn.Close())
}

// withDocument runs fn on a live document of ref and tears everything down after.
func (c *Cli) withDocument(ctx context.Context, sess *storage.Session, ref models.Ref, fn func(ctx context.Context, doc *document.Document) error) (err error) {
	ws, err := c.openWorkspace(ctx, sess)
	if err != nil {
		return err
	}
	defer func() {
		// Destroy дожидается отправки правок, даже если ctx уже отменен
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), document.DefaultDestroyTimeout)
		defer cancel()
		err = errors.Join(err, ws.Close(closeCtx))
	}()

	lifeline, release := context.WithCancel(context.Background())
	defer release()

	doc, err := ws.document(ctx, ref, lifeline)
	if err != nil {
		return err
	}
	return fn(ctx, doc)
}
