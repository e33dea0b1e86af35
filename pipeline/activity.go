package pipeline

import "synesthetica/music"

// ActivityTracker records recent per-part event volume so callers can ask
// which part was most active in a window. Consumed by external command
// layers; the pipeline only feeds it.
type ActivityTracker struct {
	records map[string][]activityRecord
	keepMs  music.Millis
}

type activityRecord struct {
	at    music.Millis
	count int
}

// NewActivityTracker keeps records for at most keepMs.
func NewActivityTracker(keepMs music.Millis) *ActivityTracker {
	return &ActivityTracker{
		records: make(map[string][]activityRecord),
		keepMs:  keepMs,
	}
}

// Record notes that a part produced count events at time at, and expires
// anything older than the retention window.
func (a *ActivityTracker) Record(partID string, at music.Millis, count int) {
	if count <= 0 {
		return
	}
	recs := append(a.records[partID], activityRecord{at: at, count: count})
	cutoff := at - a.keepMs
	for len(recs) > 0 && recs[0].at < cutoff {
		recs = recs[1:]
	}
	a.records[partID] = recs
}

// CountIn sums a part's event volume in the window ending at now.
func (a *ActivityTracker) CountIn(partID string, now, windowMs music.Millis) int {
	total := 0
	for _, r := range a.records[partID] {
		if r.at >= now-windowMs && r.at <= now {
			total += r.count
		}
	}
	return total
}

// MostActive returns the part with the highest event volume in the window,
// or false when nothing was recorded in it.
func (a *ActivityTracker) MostActive(now, windowMs music.Millis) (string, bool) {
	best, bestCount := "", 0
	for partID := range a.records {
		if c := a.CountIn(partID, now, windowMs); c > bestCount {
			best, bestCount = partID, c
		}
	}
	return best, bestCount > 0
}

// Reset drops all history.
func (a *ActivityTracker) Reset() {
	a.records = make(map[string][]activityRecord)
}
