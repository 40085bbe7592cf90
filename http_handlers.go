package main

// this file contains the HTTP surface: websocket sessions, the Spotify
// authorization callback, and health

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/crowdtraq/crowdtraq/spotify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// clients connect from whatever origin serves the room frontend
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewHTTPRouter(coordinator *Coordinator, spotifyClient *spotify.Client) *echo.Echo {
	r := echo.New()
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}\n",
	}))

	r.GET("/ws", sessionHandler(coordinator))
	r.GET("/callback", callbackHandler(spotifyClient))

	api := r.Group("/api")
	api.GET("/health", healthCheckHandler)

	return r
}

// sessionHandler upgrades the connection and runs the session's read
// loop for its whole lifetime. Replies are delivered in request order
// on this connection; broadcasts may interleave either way.
func sessionHandler(coordinator *Coordinator) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		client := newWSClient(conn)
		defer client.Close()

		sid, handshake := coordinator.Connect(client, c.QueryParam("session"))
		defer coordinator.Disconnect(sid)
		wsLog.Infow("session connected", "session", sid)

		if err := client.WriteJSON(handshake); err != nil {
			wsLog.Warnw("handshake send failed", "session", sid, "err", err)
			return nil
		}
		// let the rest of the room see the join
		coordinator.sessions.Broadcast(coordinator.queueUpdate())

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				wsLog.Infow("session disconnected", "session", sid, "err", err)
				return nil
			}
			if err := client.WriteJSON(coordinator.Dispatch(sid, raw)); err != nil {
				wsLog.Warnw("reply send failed", "session", sid, "err", err)
				return nil
			}
		}
	}
}

func callbackHandler(spotifyClient *spotify.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		code := c.QueryParam("code")
		if code == "" {
			return c.String(http.StatusBadRequest, "Error: Missing authorization code")
		}
		if err := spotifyClient.ExchangeCode(code); err != nil {
			mainLog.Errorw("authorization code exchange failed", "err", err)
			return c.String(http.StatusBadGateway, "Error: token exchange failed")
		}
		mainLog.Info("user granted playback permission")
		return c.String(http.StatusOK,
			"Authorization successful! You may now close this window.")
	}
}

func healthCheckHandler(c echo.Context) error {
	return c.String(http.StatusOK, "I am up and running!")
}
