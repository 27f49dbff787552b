// Package broadcast publishes committed operations to the private channels
// of every viewer allowed to see them, and serves those channels over
// websockets.
package broadcast

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tonimelisma/schema-api/internal/authz"
	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
	"github.com/tonimelisma/schema-api/internal/sync"
)

// ViewerResolver lists the ids of the viewers allowed to see op.
type ViewerResolver interface {
	Viewers(ctx context.Context, op *sync.Operation) ([]string, error)
}

// Recorder receives publish counts for metrics.
type Recorder interface {
	Published(n int)
	Dropped(n int)
}

// GateViewers asks the gate, for every row of the viewer entity, whether
// that row as actor may view the operation's record.
type GateViewers struct {
	Store  *store.Store
	Viewer *schema.Entity
	Gate   *authz.Gate
}

// Viewers implements ViewerResolver.
func (g *GateViewers) Viewers(ctx context.Context, op *sync.Operation) ([]string, error) {
	cur, err := g.Store.Select(ctx, store.Query{Entity: g.Viewer})
	if err != nil {
		return nil, fmt.Errorf("broadcast: listing viewers: %w", err)
	}
	defer cur.Close()

	var ids []string

	for cur.Next() {
		id := cur.Record().Key()

		if g.Gate.AllowsActor(&authz.Actor{ID: id}, "view", op.Entity, op.Record) {
			ids = append(ids, id)
		}
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("broadcast: listing viewers: %w", err)
	}

	return ids, nil
}

// Broadcaster turns operations into messages.
type Broadcaster struct {
	hub      *Hub
	viewers  ViewerResolver
	renderer sync.AttrRenderer
	recorder Recorder
	logger   *slog.Logger

	mu      gosync.Mutex
	entropy io.Reader
	nowFunc func() time.Time
}

// NewBroadcaster creates a Broadcaster. recorder may be nil.
func NewBroadcaster(hub *Hub, viewers ViewerResolver, renderer sync.AttrRenderer, recorder Recorder, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Broadcaster{
		hub:      hub,
		viewers:  viewers,
		renderer: renderer,
		recorder: recorder,
		logger:   logger,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		nowFunc:  time.Now,
	}
}

// Notify implements sync.Notifier. Failures are logged; the batch has
// already committed.
func (b *Broadcaster) Notify(ctx context.Context, ops []*sync.Operation) {
	for _, op := range ops {
		if err := b.Broadcast(ctx, op); err != nil {
			b.logger.Warn("broadcast failed",
				slog.String("type", op.Type),
				slog.String("id", op.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Broadcast publishes op on the channel of every viewer allowed to see it.
// Operations without a record are skipped.
func (b *Broadcaster) Broadcast(ctx context.Context, op *sync.Operation) error {
	if op.Record == nil || op.Entity == nil {
		return nil
	}

	ids, err := b.viewers.Viewers(ctx, op)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}

	payload := op.Payload(b.renderer)

	var delivered, dropped int

	for _, id := range ids {
		d, x := b.hub.Publish(Message{
			ID:      b.nextID(),
			Channel: Channel(id),
			Event:   EventModelOperation,
			Data:    payload,
		})

		delivered += d
		dropped += x
	}

	if b.recorder != nil {
		b.recorder.Published(len(ids))
		b.recorder.Dropped(dropped)
	}

	b.logger.Debug("operation broadcast",
		slog.String("type", op.Type),
		slog.String("id", op.ID),
		slog.String("op", string(op.Kind)),
		slog.Int("viewers", len(ids)),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped),
	)

	return nil
}

func (b *Broadcaster) nextID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(b.nowFunc()), b.entropy).String()
}
