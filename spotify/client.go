// Package spotify talks to the Spotify Web API on behalf of the room's
// shared playback account.
package spotify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultAccountsBase = "https://accounts.spotify.com"
	defaultAPIBase      = "https://api.spotify.com/v1"
)

type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// NowPlaying is the playback snapshot in the shape the room protocol
// exposes to clients.
type NowPlaying struct {
	TrackName  string   `json:"track_name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	AlbumArt   string   `json:"album_art"`
	DurationMS int      `json:"duration_ms"`
	ProgressMS int      `json:"progress_ms"`
	IsPlaying  bool     `json:"is_playing"`
	TrackID    string   `json:"track_id"`
	URI        string   `json:"uri"`
}

// Track is a search result entry.
type Track struct {
	TrackName string   `json:"track_name"`
	Artists   []string `json:"artists"`
	TrackID   string   `json:"track_id"`
	AlbumArt  string   `json:"album_art"`
}

type Client struct {
	creds Credentials
	store TokenStore
	http  *http.Client

	accountsBase string
	apiBase      string

	mu    sync.Mutex
	token *TokenInfo
}

func NewClient(creds Credentials, store TokenStore) *Client {
	return &Client{
		creds:        creds,
		store:        store,
		http:         &http.Client{Timeout: 10 * time.Second},
		accountsBase: defaultAccountsBase,
		apiBase:      defaultAPIBase,
	}
}

// NowPlaying fetches the current playback state. Returns (nil, nil)
// when the account has no active playback.
func (c *Client) NowPlaying() (*NowPlaying, error) {
	resp, err := c.do(http.MethodGet, "/me/player/currently-playing", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify: currently-playing returned %s", resp.Status)
	}

	response := struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMS int  `json:"progress_ms"`
		Item       *struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			URI        string `json:"uri"`
			DurationMS int    `json:"duration_ms"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name   string `json:"name"`
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"item"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	if response.Item == nil {
		return nil, nil
	}

	np := &NowPlaying{
		TrackName:  response.Item.Name,
		Album:      response.Item.Album.Name,
		DurationMS: response.Item.DurationMS,
		ProgressMS: response.ProgressMS,
		IsPlaying:  response.IsPlaying,
		TrackID:    response.Item.ID,
		URI:        response.Item.URI,
	}
	for _, a := range response.Item.Artists {
		np.Artists = append(np.Artists, a.Name)
	}
	if len(response.Item.Album.Images) > 0 {
		np.AlbumArt = response.Item.Album.Images[0].URL
	}
	return np, nil
}

// QueueTrack appends the track to the account's playback queue.
func (c *Client) QueueTrack(trackID string) error {
	q := url.Values{}
	q.Set("uri", "spotify:track:"+trackID)

	resp, err := c.do(http.MethodPost, "/me/player/queue", q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("spotify: add to queue returned %s", resp.Status)
	}
	return nil
}

// Skip advances playback to the next track.
func (c *Client) Skip() error {
	resp, err := c.do(http.MethodPost, "/me/player/next", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("spotify: skip returned %s", resp.Status)
	}
	return nil
}

// Search runs a track search and reshapes the results for the room
// protocol.
func (c *Client) Search(query string) ([]Track, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", "10")

	resp, err := c.do(http.MethodGet, "/search", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify: search returned %s", resp.Status)
	}

	response := struct {
		Tracks struct {
			Items []struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Images []struct {
						URL string `json:"url"`
					} `json:"images"`
				} `json:"album"`
			} `json:"items"`
		} `json:"tracks"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		t := Track{TrackName: item.Name, TrackID: item.ID}
		for _, a := range item.Artists {
			t.Artists = append(t.Artists, a.Name)
		}
		if len(item.Album.Images) > 0 {
			t.AlbumArt = item.Album.Images[0].URL
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func (c *Client) do(method, path string, query url.Values) (*http.Response, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}

	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.http.Do(req)
}
