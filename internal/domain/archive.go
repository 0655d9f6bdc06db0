package domain

import "time"

// ArchivedSession is a session that was garbage-collected out of the
// active working set, kept for audit in long-term storage.
type ArchivedSession struct {
	Session
	ArchivedAt time.Time `json:"archived_at"`
	Reason     string    `json:"reason"`
}
