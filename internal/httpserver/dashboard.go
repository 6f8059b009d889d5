package httpserver

import (
	"sync"
	"time"

	"invasivewatch/dashboard/internal/reports"
)

type reportLister interface {
	List(f reports.Filter) []reports.Report
}

// Dashboard caches the summary shown on the landing view. It is refreshed
// after every stored verification decision and every submission.
type Dashboard struct {
	src     reportLister
	nowFunc func() time.Time

	mu          sync.RWMutex
	stats       reports.Stats
	refreshedAt time.Time
}

func NewDashboard(src reportLister) *Dashboard {
	d := &Dashboard{src: src, nowFunc: time.Now}
	d.Refresh()
	return d
}

func (d *Dashboard) Refresh() {
	st := reports.Summarize(d.src.List(reports.Filter{}))
	now := d.nowFunc().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = st
	d.refreshedAt = now
}

func (d *Dashboard) Snapshot() (reports.Stats, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats, d.refreshedAt
}
