// Package store provides the key-value persistence gateway for activity and
// quiz sessions. The monitor only relies on the get/set/keys contract; the
// engine behind it is a deployment choice, so a SQLite backend and an
// in-memory backend both live here.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logical namespaces. Sessions and quiz sessions never share keys.
const (
	NamespaceSessions     = "sessions"
	NamespaceQuizSessions = "quiz_sessions"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Gateway is the persistence contract. Implementations must be safe for
// concurrent use; calls may block on I/O and honor context cancellation.
type Gateway interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, namespace, key string, value []byte) error

	// Keys lists every key in the namespace, in unspecified order.
	Keys(ctx context.Context, namespace string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}

// SessionKey builds the storage key for an activity session. The key doubles
// as the session id. Because report aggregation matches keys by userID
// substring, no userID may be a substring of another userID in the same
// deployment.
func SessionKey(userID string, start time.Time) string {
	return fmt.Sprintf("session_%s_%d", userID, start.UnixMilli())
}

// QuizKey builds the storage key for a quiz session.
func QuizKey(userID string, start time.Time) string {
	return fmt.Sprintf("quiz_%s_%d", userID, start.UnixMilli())
}
