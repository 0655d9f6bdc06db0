package domain

import "errors"

var (
	ErrCorruptState      = errors.New("state file and all backups are invalid")
	ErrDepthExceeded     = errors.New("session depth limit exceeded")
	ErrInvalidPhase      = errors.New("invalid phase transition")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrLockTimeout       = errors.New("timed out waiting for state lock")
	ErrNotStale          = errors.New("session is not stale")
	ErrRootLimit         = errors.New("active root session limit reached")
	ErrSessionExists     = errors.New("session already exists")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTerminal   = errors.New("session is in a terminal status")
	ErrStaleSession      = errors.New("session is stale and requires disposition")
)
