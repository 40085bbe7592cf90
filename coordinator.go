// per-session request dispatch over the shared room state
package main

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Coordinator owns the room's mutable state and dispatches every
// inbound session request. The single mu serializes the dispatch path
// and the radio's poll loop, because add_track and poll both need a
// consistent queue+ledger+cursor view. The session directory keeps its
// own lock and is reachable without mu.
type Coordinator struct {
	mu       sync.Mutex
	ledger   *TokenLedger
	queue    *SubmissionQueue
	feedback *FeedbackTally
	sessions *SessionDirectory
	provider Provider
	radio    *Radio
	cfg      Config
}

func NewCoordinator(cfg Config, provider Provider, sessions *SessionDirectory) *Coordinator {
	return &Coordinator{
		ledger:   NewTokenLedger(cfg.StartingTokens, cfg.CostModifier),
		queue:    NewSubmissionQueue(),
		feedback: NewFeedbackTally(),
		sessions: sessions,
		provider: provider,
		cfg:      cfg,
	}
}

// Connect registers a new session (optionally resuming a requested id),
// funds its ledger balance and returns the id together with the
// handshake snapshot for the joining client.
func (c *Coordinator) Connect(conn ClientConn, requestedID string) (string, map[string]any) {
	sid := c.sessions.Register(conn, requestedID)

	c.mu.Lock()
	c.ledger.Register(sid)
	var clientVote any
	if v, ok := c.feedback.VoteOf(sid); ok {
		clientVote = string(v)
	}
	handshake := successReply(map[string]any{
		"sessionId":         sid,
		"currently_playing": c.radio.current,
		"queue_length":      c.queue.Length(),
		"cost":              c.ledger.Cost(c.queue.Length()),
		"tokens":            c.ledger.Balance(sid),
		"client_vote":       clientVote,
	})
	c.mu.Unlock()

	return sid, handshake
}

// Disconnect tears the session down. Its balance dies with it; its
// vote, if any, stays in the tally until the track changes.
func (c *Coordinator) Disconnect(sessionID string) {
	c.sessions.Unregister(sessionID)
	c.mu.Lock()
	c.ledger.Remove(sessionID)
	c.mu.Unlock()
}

// queueUpdate builds the broadcast payload announcing the queue length
// and the cost of the next submission.
func (c *Coordinator) queueUpdate() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"queue_length": c.queue.Length(),
		"cost":         c.ledger.Cost(c.queue.Length()),
	}
}

// Dispatch handles one inbound frame and returns the unicast reply.
// Broadcasts triggered by the request go out through the directory
// directly. Nothing a client sends may crash the shared loop, so any
// panic is converted to a GENERAL_ERROR envelope.
func (c *Coordinator) Dispatch(sessionID string, raw []byte) (reply map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			wsLog.Errorw("dispatch panicked", "session", sessionID, "panic", fmt.Sprint(rec))
			reply = errorReply(codeGeneralError, "internal error", nil)
		}
	}()

	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errorReply(codeGeneralError, "message must be a JSON object", nil)
	}

	switch msg.Action {
	case "refresh":
		return c.handleRefresh()
	case "add_track":
		return c.handleAddTrack(sessionID, msg.Data)
	case "like_track":
		return c.handleVote(sessionID, VoteLike)
	case "dislike_track":
		return c.handleVote(sessionID, VoteDislike)
	case "search":
		return c.handleSearch(msg.Data)
	case "":
		return errorReply(codeGeneralError, "'action' field is required", nil)
	default:
		return errorReply(codeUnknownAction, fmt.Sprintf("unknown action %q", msg.Action), nil)
	}
}

func (c *Coordinator) handleRefresh() map[string]any {
	np, err := c.provider.NowPlaying()
	if err != nil {
		return errorReply(codeSpotifyAPIError, "failed to fetch playback state", nil)
	}
	var payload any
	if np != nil {
		payload = np
	}
	return successReply(map[string]any{"currently_playing": payload})
}

func (c *Coordinator) handleAddTrack(sessionID string, data map[string]any) map[string]any {
	trackID, _ := data["track_id"].(string)
	if trackID == "" {
		return errorReply(codeInvalidTrackID, "missing 'track_id'", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	queueLength := c.queue.Length()
	cost := c.ledger.Cost(queueLength)
	ok, balance := c.ledger.TrySpend(sessionID, queueLength)
	if !ok {
		return errorReply(codeInsufficientTokens, "not enough tokens to queue this track", map[string]any{
			"requiredTokens":  cost,
			"availableTokens": balance,
		})
	}

	// The spend already happened: only the provider accepting the track
	// puts it in our queue. Whether a provider failure refunds the
	// spend is a deployment policy.
	if err := c.provider.QueueTrack(trackID); err != nil {
		wsLog.Warnw("provider rejected track", "session", sessionID, "track", trackID, "err", err)
		if c.cfg.RefundOnProviderFailure {
			balance = c.ledger.Reward(sessionID, cost)
		}
		return errorReply(codeSpotifyAPIError, "failed to add track", map[string]any{
			"tokens": balance,
		})
	}

	c.queue.Enqueue(trackID, sessionID)
	c.sessions.Broadcast(map[string]any{
		"queue_length": c.queue.Length(),
		"cost":         c.ledger.Cost(c.queue.Length()),
	})
	return successReply(map[string]any{"tokens": balance})
}

func (c *Coordinator) handleVote(sessionID string, v Vote) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.radio.current == nil {
		// before the first successful poll the cursor is cold; run one
		// cycle inline rather than reject a valid vote
		c.radio.poll()
	}
	if c.radio.current == nil {
		return errorReply(codeNoTrackPlaying, "no track is currently playing", nil)
	}

	c.feedback.CastVote(sessionID, v)
	if event := c.radio.handleFeedback(v, c.sessions.Count()); event != nil {
		c.sessions.Broadcast(event)
	}
	return successReply(map[string]any{
		"likes":       c.feedback.LikeCount(),
		"dislikes":    c.feedback.DislikeCount(),
		"client_vote": string(v),
	})
}

func (c *Coordinator) handleSearch(data map[string]any) map[string]any {
	query, _ := data["query"].(string)
	if query == "" {
		return errorReply(codeGeneralError, "missing 'query'", nil)
	}

	tracks, err := c.provider.Search(query)
	if err != nil {
		return errorReply(codeSpotifyAPIError, "track search failed", nil)
	}
	return successReply(map[string]any{"search_data": tracks})
}
