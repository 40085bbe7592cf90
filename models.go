// this file defines the data structures to be used throughout
package main

// QueueEntry is a track awaiting playback, tagged with the session
// that paid to submit it.
type QueueEntry struct {
	TrackID        string `json:"track_id"`
	OwnerSessionID string `json:"owner_session_id"`
}

// Vote is a listener's feedback on the currently playing track.
type Vote string

const (
	VoteLike    Vote = "like"
	VoteDislike Vote = "dislike"
)

// InboundMessage is the envelope every client request arrives in.
type InboundMessage struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}
