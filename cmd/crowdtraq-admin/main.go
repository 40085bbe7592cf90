// crowdtraq-admin manages the room's Spotify authorization out of band:
// printing the authorize URL, forcing a token refresh, and showing what
// is stored.
package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crowdtraq/crowdtraq/spotify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crowdtraq-admin",
		Short:         "Manage the room's Spotify authorization",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(newAuthorizeCmd(), newRefreshCmd(), newStatusCmd())
	return rootCmd
}

func newAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Print the Spotify authorization URL",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, store, err := buildClient()
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Println("Go to this URL to authorize the app:")
			fmt.Println(client.AuthorizationURL())
			fmt.Println("After granting access, Spotify redirects to the server's /callback and the tokens are saved.")
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token using the stored refresh token",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, store, err := buildClient()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := client.LoadTokens(); err != nil {
				if errors.Is(err, spotify.ErrNotAuthorized) {
					return errors.New("no stored tokens, run 'crowdtraq-admin authorize' first")
				}
				return err
			}
			if err := client.Refresh(); err != nil {
				return err
			}
			fmt.Println("Tokens refreshed and saved.")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored token info",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, store, err := buildClient()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := client.LoadTokens(); err != nil {
				if errors.Is(err, spotify.ErrNotAuthorized) {
					fmt.Println("No stored tokens. Run 'crowdtraq-admin authorize' first.")
					return nil
				}
				return err
			}
			info, _ := client.Token()
			fmt.Printf("obtained at:   %s\n", info.ObtainedAt.Format(time.RFC3339))
			fmt.Printf("expires in:    %ds\n", info.ExpiresIn)
			fmt.Printf("expired:       %v\n", info.ExpiresWithin(0))
			fmt.Printf("refresh token: present=%v\n", info.RefreshToken != "")
			return nil
		},
	}
}

// buildClient wires a Spotify client from the same environment the
// server reads, so both ends share one token store.
func buildClient() (*spotify.Client, spotify.TokenStore, error) {
	v := viper.New()
	v.SetDefault("db_url", "sqlite://crowdtraq.db")
	v.SetDefault("spotify.redirect_uri", "http://localhost:7890/callback")
	v.AutomaticEnv()
	v.BindEnv("db_url", "DB_URL")
	v.BindEnv("spotify.client_id", "SPOTIFY_CLIENT_ID")
	v.BindEnv("spotify.client_secret", "SPOTIFY_CLIENT_SECRET")
	v.BindEnv("spotify.redirect_uri", "SPOTIFY_REDIRECT_URI")

	dbURL := v.GetString("db_url")
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bad database url %q: %w", dbURL, err)
	}

	var store spotify.TokenStore
	switch u.Scheme {
	case "sqlite":
		store, err = spotify.NewSQLiteTokenStore(u.Host + u.Path)
	case "postgres":
		store, err = spotify.NewPostgresTokenStore(dbURL)
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme in %q", dbURL)
	}
	if err != nil {
		return nil, nil, err
	}

	client := spotify.NewClient(spotify.Credentials{
		ClientID:     v.GetString("spotify.client_id"),
		ClientSecret: v.GetString("spotify.client_secret"),
		RedirectURI:  v.GetString("spotify.redirect_uri"),
	}, store)
	return client, store, nil
}
