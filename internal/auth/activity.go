package auth

import (
	"encoding/json"
	"fmt"
	"sync"

	"invasivewatch/dashboard/internal/kvstore"
)

const (
	ActivityLogKey   = "activity_log"
	ActivityLogLimit = 100
)

// ActivityLog is the login/logout trail shared by every session store on a
// medium. Only the newest limit entries are kept.
type ActivityLog struct {
	medium kvstore.Store
	limit  int

	mu sync.Mutex
}

func NewActivityLog(medium kvstore.Store, limit int) *ActivityLog {
	if limit <= 0 {
		limit = ActivityLogLimit
	}
	return &ActivityLog{medium: medium, limit: limit}
}

func (l *ActivityLog) Append(e ActivityEntry) error {
	if l == nil || l.medium == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	if len(entries) > l.limit {
		entries = entries[len(entries)-l.limit:]
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode activity log: %w", err)
	}
	if err := l.medium.Set(ActivityLogKey, string(b)); err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

// Entries returns the log oldest first.
func (l *ActivityLog) Entries() ([]ActivityEntry, error) {
	if l == nil || l.medium == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *ActivityLog) loadLocked() ([]ActivityEntry, error) {
	raw, ok, err := l.medium.Get(ActivityLogKey)
	if err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var entries []ActivityEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// A corrupt log is dropped rather than blocking logins.
		return nil, nil
	}
	return entries, nil
}
