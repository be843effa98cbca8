package project

import "time"

// Elapsed returns the banked seconds plus the open playing segment,
// truncated to whole seconds.
func Elapsed(p Project, now time.Time) int64 {
	if p.StartedAt == nil {
		return p.ElapsedSeconds
	}
	open := now.Sub(*p.StartedAt)
	if open < 0 {
		open = 0
	}
	return p.ElapsedSeconds + int64(open/time.Second)
}

// Stale reports whether a playing project has seen no activity for longer
// than threshold. Inactivity is measured from last_activity, falling back
// to the start of the current segment.
func Stale(p Project, now time.Time, threshold time.Duration) bool {
	if p.Status != StatusPlaying {
		return false
	}
	ref := p.StartedAt
	if p.LastActivity != nil {
		ref = p.LastActivity
	}
	if ref == nil {
		return false
	}
	return now.Sub(*ref) > threshold
}
