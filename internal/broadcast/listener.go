package broadcast

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/schema-api/internal/store"
	"github.com/tonimelisma/schema-api/internal/sync"
)

// DefaultQueueSize is the listener queue length used when none is given.
const DefaultQueueSize = 1024

// Listener broadcasts every committed write in the process, whichever code
// path made it. Register it with store.Store.OnCommit and run Run in its
// own goroutine.
type Listener struct {
	broadcaster *Broadcaster
	queue       chan *sync.Operation
	recorder    Recorder
	logger      *slog.Logger
}

// NewListener creates a listener with a queue of size entries.
func NewListener(b *Broadcaster, size int, recorder Recorder, logger *slog.Logger) *Listener {
	if size <= 0 {
		size = DefaultQueueSize
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Listener{
		broadcaster: b,
		queue:       make(chan *sync.Operation, size),
		recorder:    recorder,
		logger:      logger,
	}
}

// Observe implements store.Observer. It never blocks: when the queue is
// full the change is dropped.
func (l *Listener) Observe(_ context.Context, ch store.Change) {
	op, ok := sync.OperationFromChange(ch)
	if !ok {
		return
	}

	if op.Entity.APIIgnore && !op.Entity.BroadcastIgnored {
		return
	}

	select {
	case l.queue <- op:
	default:
		if l.recorder != nil {
			l.recorder.Dropped(1)
		}

		l.logger.Warn("broadcast queue full, dropping operation",
			slog.String("type", op.Type),
			slog.String("id", op.ID),
		)
	}
}

// Run broadcasts queued operations until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("broadcast listener started", slog.Int("queue_size", cap(l.queue)))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("broadcast listener stopped", slog.Int("pending", len(l.queue)))
			return nil
		case op := <-l.queue:
			if err := l.broadcaster.Broadcast(ctx, op); err != nil {
				l.logger.Warn("broadcast failed",
					slog.String("type", op.Type),
					slog.String("id", op.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
