package server

import (
	"log/slog"
	"time"

	"github.com/vango-dev/corehttp/pkg/upload"
)

// ServerConfig holds the runtime configuration of a Server.
type ServerConfig struct {
	// Address is the listen address.
	// Default: "0.0.0.0:8080".
	Address string

	// SocketTimeout is the read inactivity timeout applied to every
	// accepted connection. A negative value disables it.
	// Default: 5 seconds.
	SocketTimeout time.Duration

	// AcceptRate limits accepted connections per second. Zero disables
	// the limit.
	AcceptRate float64

	// AcceptBurst is the burst allowed above AcceptRate.
	// Default: 1 when AcceptRate is set.
	AcceptBurst int

	// MaxBodySize bounds request bodies and multipart file parts.
	// Default: 32 MiB.
	MaxBodySize int64

	// MaxLineSize bounds the request line and each header line.
	// Default: 64 KiB.
	MaxLineSize int

	// UploadStore receives multipart file parts.
	// Default: the OS temporary directory.
	UploadStore upload.Store

	// Provider creates the listening socket.
	// Default: plain TCP.
	Provider ListenerProvider

	// Executor runs connection handlers.
	// Default: one goroutine per connection.
	Executor Executor

	// Logger is the server logger.
	// Default: slog.Default() tagged with component=server.
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:       "0.0.0.0:8080",
		SocketTimeout: 5 * time.Second,
		MaxBodySize:   32 << 20,
		MaxLineSize:   64 << 10,
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		c = defaults
	}
	cfg := *c
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.SocketTimeout == 0 {
		cfg.SocketTimeout = defaults.SocketTimeout
	}
	if cfg.SocketTimeout < 0 {
		cfg.SocketTimeout = 0
	}
	if cfg.AcceptRate > 0 && cfg.AcceptBurst <= 0 {
		cfg.AcceptBurst = 1
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = defaults.MaxBodySize
	}
	if cfg.MaxLineSize == 0 {
		cfg.MaxLineSize = defaults.MaxLineSize
	}
	if cfg.UploadStore == nil {
		cfg.UploadStore = upload.TempStore()
	}
	if cfg.Provider == nil {
		cfg.Provider = TCPProvider{}
	}
	if cfg.Executor == nil {
		cfg.Executor = GoExecutor{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "server")
	}
	return &cfg
}
