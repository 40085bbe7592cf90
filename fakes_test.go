package main

import (
	"sync"
	"time"

	"github.com/crowdtraq/crowdtraq/spotify"
)

// fakeProvider scripts the external playback state for tests.
type fakeProvider struct {
	now    *spotify.NowPlaying
	nowErr error

	queueErr error
	queued   []string

	skipErr error
	skips   int
	// onSkip lets a test swap the playing track when skip is commanded
	onSkip func()

	searchResults []spotify.Track
	searchErr     error
}

func (p *fakeProvider) NowPlaying() (*spotify.NowPlaying, error) {
	if p.nowErr != nil {
		return nil, p.nowErr
	}
	return p.now, nil
}

func (p *fakeProvider) QueueTrack(trackID string) error {
	if p.queueErr != nil {
		return p.queueErr
	}
	p.queued = append(p.queued, trackID)
	return nil
}

func (p *fakeProvider) Skip() error {
	if p.skipErr != nil {
		return p.skipErr
	}
	p.skips++
	if p.onSkip != nil {
		p.onSkip()
	}
	return nil
}

func (p *fakeProvider) Search(query string) ([]spotify.Track, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.searchResults, nil
}

func playing(trackID string, durationMS, progressMS int) *spotify.NowPlaying {
	return &spotify.NowPlaying{
		TrackName:  "track " + trackID,
		Artists:    []string{"artist"},
		DurationMS: durationMS,
		ProgressMS: progressMS,
		IsPlaying:  true,
		TrackID:    trackID,
		URI:        "spotify:track:" + trackID,
	}
}

// fakeConn records everything delivered to one session.
type fakeConn struct {
	mu       sync.Mutex
	sent     []any
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) payloads() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) countEvents(event string) int {
	n := 0
	for _, p := range c.payloads() {
		if m, ok := p.(map[string]any); ok && m["event"] == event {
			n++
		}
	}
	return n
}

func testConfig() Config {
	return Config{
		StartingTokens: 5,
		CostModifier:   2,
		RewardTokens:   2,
		Supermajority:  0.66,
		PollLead:       2 * time.Second,
		PollFloor:      time.Second,
		PollRetry:      5 * time.Second,
	}
}

// newTestRig wires a coordinator and radio around a fake provider, the
// same way main does around the real client.
func newTestRig(cfg Config, provider Provider) (*Coordinator, *Radio) {
	sessions := NewSessionDirectory()
	coordinator := NewCoordinator(cfg, provider, sessions)
	radio := NewRadio(cfg, provider, coordinator)
	coordinator.radio = radio
	return coordinator, radio
}

// pollOnce runs a single locked poll cycle, as the background loop
// would.
func pollOnce(r *Radio) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poll()
}
