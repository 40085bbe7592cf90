package spotify

import "time"

// TokenInfo is the OAuth token pair granted by the accounts service.
type TokenInfo struct {
	AccessToken  string    `db:"access_token" json:"access_token"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	ExpiresIn    int       `db:"expires_in" json:"expires_in"`
	ObtainedAt   time.Time `db:"obtained_at" json:"obtained_at"`
}

// ExpiresWithin reports whether the access token expires inside the
// given margin (or already has).
func (t TokenInfo) ExpiresWithin(margin time.Duration) bool {
	deadline := t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	return time.Now().Add(margin).After(deadline)
}

// TokenStore persists the token pair across restarts so the room does
// not need a fresh browser authorization on every boot. Load returns
// (nil, nil) when nothing has been stored yet.
type TokenStore interface {
	Save(info TokenInfo) error
	Load() (*TokenInfo, error)
	Close() error
}
