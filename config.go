// runtime configuration, environment-first with sane defaults
package main

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string
	DBURL      string
	LogLevel   string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string

	StartingTokens int
	CostModifier   int
	RewardTokens   int
	Supermajority  float64

	PollLead  time.Duration
	PollFloor time.Duration
	PollRetry time.Duration

	// RefundOnProviderFailure credits a spend back when Spotify rejects
	// the enqueue after the tokens were already debited.
	RefundOnProviderFailure bool
}

// LoadConfig reads crowdtraq.yaml from the working directory when
// present, then lets CROWDTRAQ_* environment variables override it.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":7890")
	v.SetDefault("db_url", "sqlite://crowdtraq.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.redirect_uri", "http://localhost:7890/callback")
	v.SetDefault("starting_tokens", 5)
	v.SetDefault("cost_modifier", 2)
	v.SetDefault("reward_tokens", 2)
	v.SetDefault("supermajority", 0.66)
	v.SetDefault("poll_lead_seconds", 2)
	v.SetDefault("poll_floor_seconds", 1)
	v.SetDefault("poll_retry_seconds", 5)
	v.SetDefault("refund_on_provider_failure", false)

	v.SetConfigName("crowdtraq")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("crowdtraq")
	v.AutomaticEnv()
	// legacy names kept from the first deployment
	v.BindEnv("spotify.client_id", "SPOTIFY_CLIENT_ID")
	v.BindEnv("spotify.client_secret", "SPOTIFY_CLIENT_SECRET")
	v.BindEnv("spotify.redirect_uri", "SPOTIFY_REDIRECT_URI")
	v.BindEnv("db_url", "DB_URL")

	return Config{
		ListenAddr:              v.GetString("listen_addr"),
		DBURL:                   v.GetString("db_url"),
		LogLevel:                v.GetString("log_level"),
		SpotifyClientID:         v.GetString("spotify.client_id"),
		SpotifyClientSecret:     v.GetString("spotify.client_secret"),
		SpotifyRedirectURI:      v.GetString("spotify.redirect_uri"),
		StartingTokens:          v.GetInt("starting_tokens"),
		CostModifier:            v.GetInt("cost_modifier"),
		RewardTokens:            v.GetInt("reward_tokens"),
		Supermajority:           v.GetFloat64("supermajority"),
		PollLead:                time.Duration(v.GetInt("poll_lead_seconds")) * time.Second,
		PollFloor:               time.Duration(v.GetInt("poll_floor_seconds")) * time.Second,
		PollRetry:               time.Duration(v.GetInt("poll_retry_seconds")) * time.Second,
		RefundOnProviderFailure: v.GetBool("refund_on_provider_failure"),
	}, nil
}
