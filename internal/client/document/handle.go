package document

import (
	"context"

	"github.com/iudanet/docsync/internal/client/channel"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
)

//go:generate moq -out document_mock.go . Handle Opener

// Handle is an open channel subscription for one entity.
// *channel.Handle implements it.
type Handle interface {
	Snapshot() models.Entity
	SessionID() string
	Events() <-chan channel.Event
	Submit(ctx context.Context, version int64, ops []patch.Op) (channel.Ack, error)
	Fetch(ctx context.Context) (models.Entity, error)
	Shout(ctx context.Context, data any) error
	Close()
}

// Opener subscribes to an entity and returns its handle with the initial snapshot.
type Opener interface {
	Open(ctx context.Context, ref models.Ref) (Handle, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(ctx context.Context, ref models.Ref) (Handle, error)

// Open calls f.
func (f OpenFunc) Open(ctx context.Context, ref models.Ref) (Handle, error) {
	return f(ctx, ref)
}

// ChannelOpener opens documents on a realtime connection.
func ChannelOpener(conn *channel.Connection) Opener {
	return OpenFunc(func(ctx context.Context, ref models.Ref) (Handle, error) {
		h, err := conn.Open(ctx, ref)
		if err != nil {
			return nil, err
		}
		return h, nil
	})
}
