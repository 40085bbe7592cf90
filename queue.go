// the crowd-submitted track queue
package main

// SubmissionQueue is the FIFO of crowd-submitted tracks. Like the
// ledger it is unlocked; the coordinator's state mutex guards it.
type SubmissionQueue struct {
	entries []QueueEntry
}

func NewSubmissionQueue() *SubmissionQueue {
	return &SubmissionQueue{entries: make([]QueueEntry, 0)}
}

func (q *SubmissionQueue) Enqueue(trackID, ownerSessionID string) {
	q.entries = append(q.entries, QueueEntry{TrackID: trackID, OwnerSessionID: ownerSessionID})
}

// PeekHead returns the next entry without removing it.
func (q *SubmissionQueue) PeekHead() (QueueEntry, bool) {
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	return q.entries[0], true
}

// PopIfHeadMatches removes and returns the head entry only when its
// track id equals trackID. This is the only consumption path, so a
// track replayed out of order can never eat an unrelated entry.
func (q *SubmissionQueue) PopIfHeadMatches(trackID string) (QueueEntry, bool) {
	if len(q.entries) == 0 || q.entries[0].TrackID != trackID {
		return QueueEntry{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

func (q *SubmissionQueue) Length() int {
	return len(q.entries)
}
