package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdtraq/crowdtraq/spotify"
)

func errCode(t *testing.T, reply map[string]any) string {
	t.Helper()
	require.Equal(t, false, reply["success"])
	body, ok := reply["error"].(map[string]any)
	require.True(t, ok, "error envelope missing body")
	return body["code"].(string)
}

func TestConnectHandshake(t *testing.T) {
	provider := &fakeProvider{now: playing("t1", 100_000, 0)}
	c, r := newTestRig(testConfig(), provider)
	pollOnce(r)

	conn := &fakeConn{}
	sid, handshake := c.Connect(conn, "")

	assert.NotEmpty(t, sid)
	assert.Equal(t, sid, handshake["sessionId"])
	assert.Equal(t, true, handshake["success"])
	assert.Equal(t, 5, handshake["tokens"])
	assert.Equal(t, 0, handshake["queue_length"])
	assert.Equal(t, 0, handshake["cost"])
	assert.Nil(t, handshake["client_vote"])
	assert.NotNil(t, handshake["currently_playing"])

	c.Disconnect(sid)
	assert.Equal(t, 0, c.ledger.Balance(sid))
	assert.Equal(t, 0, c.sessions.Count())
}

func TestConnectResumesRequestedID(t *testing.T) {
	c, _ := newTestRig(testConfig(), &fakeProvider{})

	sid, _ := c.Connect(&fakeConn{}, "returning-listener")
	assert.Equal(t, "returning-listener", sid)
}

func TestDispatchProtocolErrors(t *testing.T) {
	c, _ := newTestRig(testConfig(), &fakeProvider{})
	sid, _ := c.Connect(&fakeConn{}, "")

	assert.Equal(t, codeGeneralError, errCode(t, c.Dispatch(sid, []byte(`not json`))))
	assert.Equal(t, codeGeneralError, errCode(t, c.Dispatch(sid, []byte(`{}`))))
	assert.Equal(t, codeUnknownAction, errCode(t, c.Dispatch(sid, []byte(`{"action":"dance"}`))))
}

func TestAddTrackMissingID(t *testing.T) {
	c, _ := newTestRig(testConfig(), &fakeProvider{})
	sid, _ := c.Connect(&fakeConn{}, "")

	reply := c.Dispatch(sid, []byte(`{"action":"add_track","data":{}}`))
	assert.Equal(t, codeInvalidTrackID, errCode(t, reply))
}

func TestAddTrackSuccessBroadcastsQueueUpdate(t *testing.T) {
	provider := &fakeProvider{}
	c, _ := newTestRig(testConfig(), provider)

	sid, _ := c.Connect(&fakeConn{}, "submitter")
	watcher := &fakeConn{}
	c.sessions.Register(watcher, "w")

	// queue empty, cost 0
	reply := c.Dispatch(sid, []byte(`{"action":"add_track","data":{"track_id":"t1"}}`))
	require.Equal(t, true, reply["success"])
	assert.Equal(t, 5, reply["tokens"])
	assert.Equal(t, []string{"t1"}, provider.queued)
	assert.Equal(t, 1, c.queue.Length())

	payloads := watcher.payloads()
	require.Len(t, payloads, 1)
	update := payloads[0].(map[string]any)
	assert.Equal(t, 1, update["queue_length"])
	assert.Equal(t, 3, update["cost"]) // next submission costs 1 + modifier
}

func TestAddTrackInsufficientTokens(t *testing.T) {
	cfg := testConfig()
	cfg.StartingTokens = 3
	c, _ := newTestRig(cfg, &fakeProvider{})
	sid, _ := c.Connect(&fakeConn{}, "")

	c.mu.Lock()
	c.queue.Enqueue("x1", "other")
	c.queue.Enqueue("x2", "other")
	c.mu.Unlock()

	// cost at queue length 2 is 2+2=4 against a balance of 3
	reply := c.Dispatch(sid, []byte(`{"action":"add_track","data":{"track_id":"t1"}}`))
	require.Equal(t, codeInsufficientTokens, errCode(t, reply))

	details := reply["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, 4, details["requiredTokens"])
	assert.Equal(t, 3, details["availableTokens"])

	assert.Equal(t, 2, c.queue.Length(), "queue unchanged")
	assert.Equal(t, 3, c.ledger.Balance(sid), "balance unchanged")
}

func TestAddTrackProviderFailureKeepsSpend(t *testing.T) {
	provider := &fakeProvider{queueErr: errors.New("503 service unavailable")}
	c, _ := newTestRig(testConfig(), provider)
	sid, _ := c.Connect(&fakeConn{}, "")

	c.mu.Lock()
	c.queue.Enqueue("x1", "other")
	c.mu.Unlock()

	reply := c.Dispatch(sid, []byte(`{"action":"add_track","data":{"track_id":"t1"}}`))
	assert.Equal(t, codeSpotifyAPIError, errCode(t, reply))

	// default policy: the spend is not refunded
	assert.Equal(t, 2, c.ledger.Balance(sid)) // 5 - cost(1)=3
	assert.Equal(t, 1, c.queue.Length(), "nothing enqueued locally")
}

func TestAddTrackProviderFailureWithRefund(t *testing.T) {
	cfg := testConfig()
	cfg.RefundOnProviderFailure = true
	provider := &fakeProvider{queueErr: errors.New("503 service unavailable")}
	c, _ := newTestRig(cfg, provider)
	sid, _ := c.Connect(&fakeConn{}, "")

	c.mu.Lock()
	c.queue.Enqueue("x1", "other")
	c.mu.Unlock()

	reply := c.Dispatch(sid, []byte(`{"action":"add_track","data":{"track_id":"t1"}}`))
	assert.Equal(t, codeSpotifyAPIError, errCode(t, reply))

	details := reply["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, 5, details["tokens"])
	assert.Equal(t, 5, c.ledger.Balance(sid))
}

func TestVoteWithNothingPlaying(t *testing.T) {
	c, _ := newTestRig(testConfig(), &fakeProvider{})
	sid, _ := c.Connect(&fakeConn{}, "")

	reply := c.Dispatch(sid, []byte(`{"action":"like_track"}`))
	assert.Equal(t, codeNoTrackPlaying, errCode(t, reply))
}

func TestVoteWarmsColdCursor(t *testing.T) {
	// a vote arriving before the first poll completed should still land
	provider := &fakeProvider{now: playing("t1", 100_000, 0)}
	c, _ := newTestRig(testConfig(), provider)
	sid, _ := c.Connect(&fakeConn{}, "")

	reply := c.Dispatch(sid, []byte(`{"action":"like_track"}`))
	require.Equal(t, true, reply["success"])
	assert.Equal(t, 1, reply["likes"])
	assert.Equal(t, "like", reply["client_vote"])
}

func TestVoteFlip(t *testing.T) {
	provider := &fakeProvider{now: playing("t1", 100_000, 0)}
	c, r := newTestRig(testConfig(), provider)
	pollOnce(r)
	sid, _ := c.Connect(&fakeConn{}, "")
	c.Connect(&fakeConn{}, "bystander") // keep one vote below the skip threshold

	c.Dispatch(sid, []byte(`{"action":"like_track"}`))
	reply := c.Dispatch(sid, []byte(`{"action":"dislike_track"}`))

	require.Equal(t, true, reply["success"])
	assert.Equal(t, 0, reply["likes"])
	assert.Equal(t, 1, reply["dislikes"])
}

func TestRefresh(t *testing.T) {
	provider := &fakeProvider{now: playing("t1", 100_000, 0)}
	c, _ := newTestRig(testConfig(), provider)
	sid, _ := c.Connect(&fakeConn{}, "")

	reply := c.Dispatch(sid, []byte(`{"action":"refresh"}`))
	require.Equal(t, true, reply["success"])
	np, ok := reply["currently_playing"].(*spotify.NowPlaying)
	require.True(t, ok)
	assert.Equal(t, "t1", np.TrackID)

	provider.now = nil
	reply = c.Dispatch(sid, []byte(`{"action":"refresh"}`))
	require.Equal(t, true, reply["success"])
	assert.Nil(t, reply["currently_playing"])
}

func TestSearch(t *testing.T) {
	provider := &fakeProvider{searchResults: []spotify.Track{
		{TrackName: "Song", Artists: []string{"Artist"}, TrackID: "t1", AlbumArt: "img"},
	}}
	c, _ := newTestRig(testConfig(), provider)
	sid, _ := c.Connect(&fakeConn{}, "")

	reply := c.Dispatch(sid, []byte(`{"action":"search","data":{"query":"song"}}`))
	require.Equal(t, true, reply["success"])
	results := reply["search_data"].([]spotify.Track)
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].TrackID)

	reply = c.Dispatch(sid, []byte(`{"action":"search","data":{}}`))
	assert.Equal(t, codeGeneralError, errCode(t, reply))
}

func TestSearchProviderError(t *testing.T) {
	provider := &fakeProvider{searchErr: errors.New("401 unauthorized")}
	c, _ := newTestRig(testConfig(), provider)
	sid, _ := c.Connect(&fakeConn{}, "")

	reply := c.Dispatch(sid, []byte(`{"action":"search","data":{"query":"song"}}`))
	assert.Equal(t, codeSpotifyAPIError, errCode(t, reply))
}
