package game

import "time"

type respawnEntry struct {
	id      string
	readyAt time.Time
}

// RespawnQueue holds humans waiting out their respawn delay, in the order
// they died.
type RespawnQueue struct {
	entries []respawnEntry
}

// Push queues id, replacing any existing entry for it.
func (q *RespawnQueue) Push(id string, readyAt time.Time) {
	q.Remove(id)
	q.entries = append(q.entries, respawnEntry{id: id, readyAt: readyAt})
}

// Remove drops the entry for id, if any.
func (q *RespawnQueue) Remove(id string) bool {
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// PopDue removes and returns every id whose ready time has been reached.
func (q *RespawnQueue) PopDue(now time.Time) []string {
	var due []string
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !now.Before(e.readyAt) {
			due = append(due, e.id)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return due
}

// Len returns the number of queued entries.
func (q *RespawnQueue) Len() int { return len(q.entries) }
