package realtime

import "time"

// Settings configures the realtime hub.
type Settings struct {
	// Environment is the environment served on the channel. Channel keys
	// ("space!type!id") do not name one.
	Environment string

	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadTimeout  time.Duration

	// SendBufferSize is the per-session outgoing queue. A session whose
	// queue overflows is disconnected.
	SendBufferSize int
	// OpLogDepth is how many applied submissions per document are kept for rebasing.
	OpLogDepth     int
	MaxMessageSize int64
}

// DefaultSettings returns production defaults.
func DefaultSettings() Settings {
	return Settings{
		Environment:    "master",
		WriteTimeout:   5 * time.Second,
		PingInterval:   25 * time.Second,
		ReadTimeout:    60 * time.Second,
		SendBufferSize: 256,
		OpLogDepth:     256,
		MaxMessageSize: 1 << 20,
	}
}

// withDefaults fills zero values from DefaultSettings.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Environment == "" {
		s.Environment = d.Environment
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = d.WriteTimeout
	}
	if s.PingInterval <= 0 {
		s.PingInterval = d.PingInterval
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = d.ReadTimeout
	}
	if s.SendBufferSize <= 0 {
		s.SendBufferSize = d.SendBufferSize
	}
	if s.OpLogDepth <= 0 {
		s.OpLogDepth = d.OpLogDepth
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = d.MaxMessageSize
	}
	return s
}
