// like/dislike tallies for the currently playing track
package main

// FeedbackTally holds one vote per session for the track that is
// playing right now. Votes are wiped whenever the track identity
// changes, never merely because playback progressed.
type FeedbackTally struct {
	currentTrackID string
	votes          map[string]Vote
}

func NewFeedbackTally() *FeedbackTally {
	return &FeedbackTally{votes: make(map[string]Vote)}
}

// ResetForTrack clears all votes iff trackID differs from the stored
// current track. It is called on every poll cycle, so redundant calls
// with the same track id must be (and are) no-ops.
func (f *FeedbackTally) ResetForTrack(trackID string) {
	if trackID == f.currentTrackID {
		return
	}
	f.currentTrackID = trackID
	f.votes = make(map[string]Vote)
}

// CastVote records or flips a session's vote. A flipped vote replaces
// the old one, it never double-counts.
func (f *FeedbackTally) CastVote(sessionID string, v Vote) {
	f.votes[sessionID] = v
}

// VoteOf returns the session's current vote, if any.
func (f *FeedbackTally) VoteOf(sessionID string) (Vote, bool) {
	v, ok := f.votes[sessionID]
	return v, ok
}

func (f *FeedbackTally) LikeCount() int {
	return f.count(VoteLike)
}

func (f *FeedbackTally) DislikeCount() int {
	return f.count(VoteDislike)
}

func (f *FeedbackTally) count(want Vote) int {
	n := 0
	for _, v := range f.votes {
		if v == want {
			n++
		}
	}
	return n
}
