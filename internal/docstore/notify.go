package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "collection changed" messages between writers and
// listeners, possibly across processes.
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	// Subscribe delivers changed collection paths until stop is called or
	// ctx is done.
	Subscribe(ctx context.Context) (events <-chan string, stop func())
	Close() error
}

// LocalNotifier fans messages out within the process.
type LocalNotifier struct {
	mu     sync.Mutex
	subs   map[int]chan string
	nextID int
}

// NewLocalNotifier creates an in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[int]chan string)}
}

// Publish sends collection to every subscriber. A subscriber that already
// has a message queued is skipped; it will re-run its query anyway.
func (n *LocalNotifier) Publish(_ context.Context, collection string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- collection:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context) (<-chan string, func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	ch := make(chan string, 64)
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
	return ch, stop
}

func (n *LocalNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = make(map[int]chan string)
	return nil
}

// DefaultRedisChannel carries change messages when no channel is configured.
const DefaultRedisChannel = "rowgrid:changes"

// RedisNotifier publishes change messages on a Redis pub/sub channel so
// listeners on every server instance see writes from any instance.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier connects to Redis at url and verifies the connection.
func NewRedisNotifier(ctx context.Context, url, channel string, logger *slog.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}, nil
}

func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	if err := n.client.Publish(ctx, n.channel, collection).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan string, func()) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	out := make(chan string, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				n.logger.Debug("close redis subscription", "error", err)
			}
		})
	}
	return out, stop
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
