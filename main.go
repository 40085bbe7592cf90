package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/crowdtraq/crowdtraq/spotify"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		mainLog.Fatalw("failed to load config", "err", err)
	}
	logging.SetAllLoggers(logLevel(cfg.LogLevel))

	var store spotify.TokenStore

	u, err := url.Parse(cfg.DBURL)
	if err != nil {
		mainLog.Fatalw("bad database url", "url", cfg.DBURL, "err", err)
	}
	switch u.Scheme {
	case "sqlite":
		store, err = spotify.NewSQLiteTokenStore(u.Host + u.Path)
	case "postgres":
		store, err = spotify.NewPostgresTokenStore(cfg.DBURL)
	default:
		mainLog.Fatalw("unsupported database scheme", "url", cfg.DBURL)
	}
	if err != nil {
		mainLog.Fatalw("failed to open token store", "err", err)
	}
	defer store.Close()

	spotifyClient := spotify.NewClient(spotify.Credentials{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURI:  cfg.SpotifyRedirectURI,
	}, store)
	if err := spotifyClient.LoadTokens(); err != nil {
		if errors.Is(err, spotify.ErrNotAuthorized) {
			mainLog.Infow("no stored tokens, run 'crowdtraq-admin authorize' to link Spotify",
				"authorize_url", spotifyClient.AuthorizationURL())
		} else {
			mainLog.Fatalw("failed to load tokens", "err", err)
		}
	}

	sessions := NewSessionDirectory()
	coordinator := NewCoordinator(cfg, spotifyClient, sessions)
	radio := NewRadio(cfg, spotifyClient, coordinator)
	coordinator.radio = radio

	radio.Start()
	defer radio.Shutdown()

	mainLog.Infow("session started", "addr", cfg.ListenAddr, "room_code", generateRoomCode(4))

	router := NewHTTPRouter(coordinator, spotifyClient)
	go func() {
		if err := router.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			mainLog.Fatalw("http server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	mainLog.Info("caught termination signal, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := router.Shutdown(ctx); err != nil {
		mainLog.Warnw("http shutdown incomplete", "err", err)
	}
}

// generateRoomCode makes the short cosmetic identifier listeners use to
// find the room.
func generateRoomCode(length int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	code := make([]byte, length)
	for i := range code {
		code[i] = letters[rand.Intn(len(letters))]
	}
	return string(code)
}

func logLevel(level string) logging.LogLevel {
	parsed, err := logging.LevelFromString(level)
	if err != nil {
		return logging.LevelInfo
	}
	return parsed
}
