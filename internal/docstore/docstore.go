// Package docstore implements core.DocumentStore.
//
// Documents are JSON maps addressed by slash-separated paths in the form
// collection/id[/subcollection/id...]. Writes use set-with-merge semantics:
// nested maps merge key by key, every other value (arrays included) is
// replaced. Listeners re-run their query whenever a document in the
// collection changes.
//
// Two drivers exist: a Postgres JSONB store for production and an in-memory
// store for tests and local development.
package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// Store is a closable document store.
type Store interface {
	core.DocumentStore
	// Close stops all listeners and releases resources.
	Close() error
}

// splitPath returns the collection and id of a document path.
func splitPath(path string) (collection, id string, err error) {
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("invalid document path %q", path)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}

// collectionID returns the last segment of a collection path.
func collectionID(collection string) string {
	if i := strings.LastIndex(collection, "/"); i >= 0 {
		return collection[i+1:]
	}
	return collection
}

// queryMatchesCollection reports whether a write to collection affects q.
func queryMatchesCollection(q core.Query, collection string) bool {
	if q.CollectionGroup {
		return collectionID(collection) == collectionID(q.Collection)
	}
	return collection == q.Collection
}

// listenCtx derives the context a listener goroutine runs under.
func listenCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithCancel(ctx)
}
