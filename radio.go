// this file deals with keeping room state in sync with Spotify playback
package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/crowdtraq/crowdtraq/spotify"
)

// Provider is the slice of the Spotify client the room depends on.
// It is injected so tests can run the whole engine against a fake.
type Provider interface {
	NowPlaying() (*spotify.NowPlaying, error)
	QueueTrack(trackID string) error
	Skip() error
	Search(query string) ([]spotify.Track, error)
}

// Radio reconciles externally-driven playback with the submission
// queue, the feedback tally and the ledger. It shares the coordinator's
// state mutex: every exported entry point takes it, and the lowercase
// methods assume it is held.
type Radio struct {
	mu       *sync.Mutex
	provider Provider
	ledger   *TokenLedger
	queue    *SubmissionQueue
	feedback *FeedbackTally
	sessions *SessionDirectory
	cfg      Config

	// playback cursor
	current     *spotify.NowPlaying
	lastTrackID string
	ownerID     string
	rewarded    bool
	skipped     bool

	stop chan struct{}
	done chan struct{}
}

func NewRadio(cfg Config, provider Provider, c *Coordinator) *Radio {
	return &Radio{
		mu:       &c.mu,
		provider: provider,
		ledger:   c.ledger,
		queue:    c.queue,
		feedback: c.feedback,
		sessions: c.sessions,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. Each cycle wakes shortly before the
// current track ends instead of polling at a fixed cadence, so Spotify
// sees a bounded request rate while track transitions are still caught
// quickly.
func (r *Radio) Start() {
	go func() {
		defer close(r.done)
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-timer.C:
			}
			timer.Reset(r.pollCycle())
		}
	}()
}

// Shutdown stops scheduling further polls and waits for the loop to
// exit. In-flight state is left intact.
func (r *Radio) Shutdown() {
	close(r.stop)
	<-r.done
}

// pollCycle runs one locked poll and converts any panic into a fixed
// backoff; a bad cycle must never kill the loop.
func (r *Radio) pollCycle() (delay time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			radioLog.Errorw("poll cycle panicked", "panic", fmt.Sprint(rec))
			delay = r.cfg.PollRetry
		}
	}()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poll()
}

// poll advances the cursor against the externally-reported playback
// state and returns the delay until the next poll. Caller holds the
// state mutex.
func (r *Radio) poll() time.Duration {
	np, err := r.provider.NowPlaying()
	if err != nil {
		radioLog.Warnw("currently-playing fetch failed", "err", err)
		r.current = nil
		return r.cfg.PollRetry
	}
	if np == nil || !np.IsPlaying {
		radioLog.Debug("nothing playing")
		r.current = nil
		return r.cfg.PollRetry
	}
	r.current = np

	if np.TrackID != r.lastTrackID {
		// new track: reward/skip guards re-arm, tally resets
		r.rewarded = false
		r.skipped = false
		r.consumeHead(np.TrackID)
		r.feedback.ResetForTrack(np.TrackID)
		r.lastTrackID = np.TrackID
		radioLog.Infow("track changed", "track", np.TrackID, "owner", r.ownerID)
	} else if head, ok := r.queue.PeekHead(); ok && head.TrackID == np.TrackID {
		// same track id but the queue head matches: a back-to-back
		// duplicate submission that a pure id diff would never see.
		r.consumeHead(np.TrackID)
		r.feedback.ResetForTrack(np.TrackID)
	}

	left := time.Duration(np.DurationMS-np.ProgressMS) * time.Millisecond
	delay := left - r.cfg.PollLead
	if delay < r.cfg.PollFloor {
		delay = r.cfg.PollFloor
	}
	radioLog.Debugw("track playing", "track", np.TrackID, "next_poll", delay)
	return delay
}

// consumeHead pops the queue head if it matches the now-playing track,
// making its submitter the reward/skip target for this play.
func (r *Radio) consumeHead(trackID string) {
	entry, ok := r.queue.PopIfHeadMatches(trackID)
	if !ok {
		// not crowd-queued (e.g. the account's own shuffle); the
		// previous owner is deliberately left in place
		return
	}
	r.ownerID = entry.OwnerSessionID
	r.rewarded = false
	r.skipped = false
	radioLog.Infow("queue head consumed", "track", trackID, "owner", entry.OwnerSessionID)
	r.sessions.Broadcast(map[string]any{
		"queue_length": r.queue.Length(),
		"cost":         r.ledger.Cost(r.queue.Length()),
	})
}

// handleFeedback re-evaluates the supermajority thresholds after a vote
// changed, and returns the event to broadcast, if any. The threshold is
// checked on every vote because the session count moves as listeners
// join and leave; the per-track guard flags keep a sustained
// supermajority from firing twice. Caller holds the state mutex.
func (r *Radio) handleFeedback(v Vote, totalSessions int) map[string]any {
	if totalSessions == 0 {
		return nil
	}
	threshold := float64(totalSessions) * r.cfg.Supermajority

	switch v {
	case VoteLike:
		if r.rewarded || r.ownerID == "" {
			return nil
		}
		if float64(r.feedback.LikeCount()) <= threshold {
			return nil
		}
		balance := r.ledger.Reward(r.ownerID, r.cfg.RewardTokens)
		r.rewarded = true
		radioLog.Infow("supermajority reward", "owner", r.ownerID, "tokens", balance)
		return map[string]any{
			"event":  "reward",
			"owner":  r.ownerID,
			"tokens": balance,
		}

	case VoteDislike:
		if r.skipped {
			return nil
		}
		if float64(r.feedback.DislikeCount()) <= threshold {
			return nil
		}
		if err := r.provider.Skip(); err != nil {
			radioLog.Warnw("skip command failed", "err", err)
			return nil
		}
		r.skipped = true
		radioLog.Infow("supermajority skip", "track", r.lastTrackID)
		// refresh the cursor and tally right away so the event carries
		// whatever is playing now
		r.poll()
		return map[string]any{
			"event":             "track_skipped",
			"currently_playing": r.current,
		}
	}
	return nil
}
