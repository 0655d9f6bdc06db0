package lockdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vigia/internal/domain"
	"vigia/internal/ports"
)

// DirLock implements ports.Locker using atomic directory creation.
// os.Mkdir either creates the marker or fails because it exists, with
// no advisory-locking support required from the filesystem.
type DirLock struct {
	held          bool
	path          string
	retryInterval time.Duration
}

// Verify interface compliance at compile time
var _ ports.Locker = (*DirLock)(nil)

// DefaultRetryInterval is the sleep between acquisition attempts
const DefaultRetryInterval = 25 * time.Millisecond

// New creates a DirLock guarding the resource at path
func New(path string) *DirLock {
	return &DirLock{
		path:          path,
		retryInterval: DefaultRetryInterval,
	}
}

// Acquire attempts to create the lock directory, retrying until timeout
// elapses. On timeout it returns domain.ErrLockTimeout with the current
// holder's metadata when readable.
func (l *DirLock) Acquire(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		err := os.Mkdir(l.path, 0755)
		if err == nil {
			l.held = true
			l.writeOwner()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock %s: %w", l.path, err)
		}

		if time.Now().After(deadline) {
			holder := l.readOwner()
			if holder != "" {
				return fmt.Errorf("lock %s held by %s: %w", l.path, holder, domain.ErrLockTimeout)
			}
			return fmt.Errorf("lock %s: %w", l.path, domain.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

// Release removes the lock directory. Releasing an unheld lock is a no-op.
func (l *DirLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.RemoveAll(l.path); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}

// writeOwner records holder metadata inside the lock dir for diagnostics.
// Failure is non-fatal: the lock itself is the directory.
func (l *DirLock) writeOwner() {
	host, _ := os.Hostname()
	owner := fmt.Sprintf("pid=%d host=%s acquired=%s\n",
		os.Getpid(), host, time.Now().UTC().Format(time.RFC3339))
	_ = os.WriteFile(filepath.Join(l.path, "owner"), []byte(owner), 0644)
}

func (l *DirLock) readOwner() string {
	data, err := os.ReadFile(filepath.Join(l.path, "owner"))
	if err != nil {
		return ""
	}
	return string(data)
}
