package channel

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ChannelPath is the websocket endpoint on the server.
const ChannelPath = "/api/v1/channel"

// Settings configures a Connection.
type Settings struct {
	// ServerURL is the http(s) base URL of the backend.
	ServerURL string
	Token     string

	// Reconnect backoff grows from ReconnectMin to ReconnectMax with jitter.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	RequestTimeout time.Duration

	SendBufferSize int
}

// DefaultSettings returns production defaults for serverURL.
func DefaultSettings(serverURL, token string) Settings {
	return Settings{
		ServerURL:      serverURL,
		Token:          token,
		ReconnectMin:   500 * time.Millisecond,
		ReconnectMax:   30 * time.Second,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
		PingInterval:   20 * time.Second,
		ReadTimeout:    60 * time.Second,
		RequestTimeout: 30 * time.Second,
		SendBufferSize: 64,
	}
}

// channelURL converts the http base URL into the websocket endpoint URL.
func channelURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme", serverURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ChannelPath
	return u.String(), nil
}
