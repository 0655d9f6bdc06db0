package ports

import (
	"context"
	"time"
)

// Locker provides mutual exclusion over the persisted state across
// independent OS processes. Acquire blocks up to timeout and returns
// domain.ErrLockTimeout when the lock could not be obtained; callers
// must surface that as "busy, retry later", never proceed without it.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) error
	Release() error
}
