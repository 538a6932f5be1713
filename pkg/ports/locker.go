package ports

import (
	"context"
	"time"
)

// UnlockFunc gives a held lock back. Calling it after the lock expired is
// not an error the caller can act on; implementations may report it anyway.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work that replicas share.
//
// Keys are namespaced by the caller: the model manager locks "model:<id>"
// around a backend load and the session manager locks "session:<id>"
// around a conversation exchange.
type DistributedLocker interface {
	// Lock waits for key until ctx is done. A holder that never unlocks
	// loses the key after ttl.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
