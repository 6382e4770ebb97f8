package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// MemoryStore is an in-process document store.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]memoryDoc
	writeCheck func(path string) error

	notifier  Notifier
	listeners *listenerSet
}

type memoryDoc struct {
	collection string
	id         string
	data       map[string]any
}

// NewMemoryStore creates an empty store. A nil notifier uses a LocalNotifier.
func NewMemoryStore(notifier Notifier, logger *slog.Logger) *MemoryStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &MemoryStore{
		docs:      make(map[string]memoryDoc),
		notifier:  notifier,
		listeners: newListenerSet(notifier, 0, logger),
	}
}

// SetWriteCheck installs a hook run before every write; a non-nil error
// rejects the write. Used to simulate security rules.
func (s *MemoryStore) SetWriteCheck(check func(path string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCheck = check
}

func (s *MemoryStore) checkWrite(path string) error {
	s.mu.RLock()
	check := s.writeCheck
	s.mu.RUnlock()
	if check == nil {
		return nil
	}
	return check(path)
}

func (s *MemoryStore) GetDoc(_ context.Context, path string) (map[string]any, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, nil
	}
	return cloneMap(doc.data), nil
}

func (s *MemoryStore) SetDoc(ctx context.Context, path string, data map[string]any, deleteFields []string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := s.checkWrite(path); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	update, err := normalizeDoc(data)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	s.mu.Lock()
	existing := s.docs[path]
	s.docs[path] = memoryDoc{
		collection: collection,
		id:         id,
		data:       mergeDoc(existing.data, update, deleteFields),
	}
	s.mu.Unlock()

	return s.notifier.Publish(ctx, collection)
}

func (s *MemoryStore) DeleteDoc(ctx context.Context, path string) error {
	collection, _, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := s.checkWrite(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()

	return s.notifier.Publish(ctx, collection)
}

func (s *MemoryStore) Listen(ctx context.Context, q core.Query, onSnapshot func([]core.Row), onError func(error)) (core.Unsubscribe, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("listen: empty collection")
	}
	return s.listeners.listen(ctx, q, s.query, onSnapshot, onError), nil
}

// Query runs q once.
func (s *MemoryStore) Query(ctx context.Context, q core.Query) ([]core.Row, error) {
	return s.query(ctx, q)
}

func (s *MemoryStore) query(_ context.Context, q core.Query) ([]core.Row, error) {
	s.mu.RLock()
	entries := make([]docEntry, 0)
	for path, doc := range s.docs {
		if !queryMatchesCollection(q, doc.collection) || !matchFilters(q, doc.id, doc.data) {
			continue
		}
		entries = append(entries, docEntry{path: path, id: doc.id, data: cloneMap(doc.data)})
	}
	s.mu.RUnlock()

	entries = sortEntries(q, entries)
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	rows := make([]core.Row, len(entries))
	for i, e := range entries {
		rows[i] = core.Row{Ref: core.RowRef{Path: e.path, ID: e.id}, Fields: e.data}
	}
	return rows, nil
}

// Close stops all listeners.
func (s *MemoryStore) Close() error {
	s.listeners.close()
	return s.notifier.Close()
}
