package docstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// queryFunc runs a query once.
type queryFunc func(ctx context.Context, q core.Query) ([]core.Row, error)

// listenerSet runs listener goroutines that re-query on change messages
// and, if poll is set, on a fixed interval.
type listenerSet struct {
	notifier Notifier
	poll     time.Duration
	logger   *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

func newListenerSet(notifier Notifier, poll time.Duration, logger *slog.Logger) *listenerSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &listenerSet{
		notifier: notifier,
		poll:     poll,
		logger:   logger,
		closed:   make(chan struct{}),
	}
}

// listen starts a listener. The first snapshot is delivered from the
// listener goroutine, never from the caller's.
func (l *listenerSet) listen(ctx context.Context, q core.Query, run queryFunc, onSnapshot func([]core.Row), onError func(error)) core.Unsubscribe {
	ctx, cancel := listenCtx(ctx)
	events, stop := l.notifier.Subscribe(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer stop()
		defer cancel()

		var tick <-chan time.Time
		if l.poll > 0 {
			ticker := time.NewTicker(l.poll)
			defer ticker.Stop()
			tick = ticker.C
		}

		refresh := func() {
			rows, err := run(ctx, q)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.logger.Warn("listener query failed", "collection", q.Collection, "error", err)
				onError(err)
				return
			}
			onSnapshot(rows)
		}

		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.closed:
				return
			case collection, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if queryMatchesCollection(q, collection) {
					refresh()
				}
			case <-tick:
				refresh()
			}
		}
	}()

	return func() { cancel() }
}

// close stops every listener and waits for them to exit.
func (l *listenerSet) close() {
	l.closeOnce.Do(func() { close(l.closed) })
	l.wg.Wait()
}
