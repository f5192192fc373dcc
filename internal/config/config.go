package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/vango-dev/corehttp/internal/errors"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "COREHTTP"

	// DefaultHost is the default listen host.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the default listen port.
	DefaultPort = 8080

	// DefaultAdminAddress is the default admin listen address.
	DefaultAdminAddress = "127.0.0.1:9090"
)

// Config is the complete corehttp configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" envconfig:"SERVER"`
	TLS       TLSConfig       `json:"tls" yaml:"tls" envconfig:"TLS"`
	Static    StaticConfig    `json:"static" yaml:"static" envconfig:"STATIC"`
	WebSocket WebSocketConfig `json:"websocket" yaml:"websocket" envconfig:"WEBSOCKET"`
	Uploads   UploadsConfig   `json:"uploads" yaml:"uploads" envconfig:"UPLOADS"`
	Admin     AdminConfig     `json:"admin" yaml:"admin" envconfig:"ADMIN"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging" envconfig:"LOGGING"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing" envconfig:"TRACING"`

	// path stores the file the config was loaded from.
	path string
}

// ServerConfig configures the protocol server.
type ServerConfig struct {
	Host          string   `json:"host" yaml:"host" envconfig:"HOST" validate:"required"`
	Port          int      `json:"port" yaml:"port" envconfig:"PORT" validate:"min=0,max=65535"`
	SocketTimeout Duration `json:"socket_timeout" yaml:"socket_timeout" envconfig:"SOCKET_TIMEOUT"`
	MaxBodySize   int64    `json:"max_body_size" yaml:"max_body_size" envconfig:"MAX_BODY_SIZE" validate:"gt=0"`
	MaxLineSize   int      `json:"max_line_size" yaml:"max_line_size" envconfig:"MAX_LINE_SIZE" validate:"gte=256"`
	AcceptRate    float64  `json:"accept_rate" yaml:"accept_rate" envconfig:"ACCEPT_RATE" validate:"gte=0"`
	AcceptBurst   int      `json:"accept_burst" yaml:"accept_burst" envconfig:"ACCEPT_BURST" validate:"gte=0"`

	// Workers bounds concurrently served connections. Zero means one
	// goroutine per connection.
	Workers int `json:"workers" yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// TLSConfig configures TLS. Either Keystore or CertFile and KeyFile must be
// set when Enabled.
type TLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Keystore string `json:"keystore,omitempty" yaml:"keystore,omitempty" envconfig:"KEYSTORE"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" envconfig:"PASSWORD"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty" envconfig:"CERT_FILE" validate:"required_with=KeyFile"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty" envconfig:"KEY_FILE" validate:"required_with=CertFile"`
}

// StaticConfig configures file serving.
type StaticConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Dir           string `json:"dir" yaml:"dir" envconfig:"DIR" validate:"required_if=Enabled true"`
	Prefix        string `json:"prefix" yaml:"prefix" envconfig:"PREFIX" validate:"startswith=/"`
	Index         string `json:"index" yaml:"index" envconfig:"INDEX" validate:"required"`
	GzipMinLength int64  `json:"gzip_min_length" yaml:"gzip_min_length" envconfig:"GZIP_MIN_LENGTH" validate:"gte=0"`
	CacheControl  string `json:"cache_control" yaml:"cache_control" envconfig:"CACHE_CONTROL" validate:"oneof=none no-store production"`
}

// WebSocketConfig configures the WebSocket endpoint.
type WebSocketConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Paths          []string `json:"paths" yaml:"paths" envconfig:"PATHS" validate:"required_if=Enabled true,dive,startswith=/"`
	MaxMessageSize int64    `json:"max_message_size" yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE" validate:"gt=0"`
	MaskOutbound   bool     `json:"mask_outbound" yaml:"mask_outbound" envconfig:"MASK_OUTBOUND"`
}

// UploadsConfig configures where multipart file parts are stored.
type UploadsConfig struct {
	Backend         string   `json:"backend" yaml:"backend" envconfig:"BACKEND" validate:"oneof=disk s3"`
	Dir             string   `json:"dir" yaml:"dir" envconfig:"DIR"`
	MaxSize         int64    `json:"max_size" yaml:"max_size" envconfig:"MAX_SIZE" validate:"gte=0"`
	MaxAge          Duration `json:"max_age" yaml:"max_age" envconfig:"MAX_AGE"`
	CleanupInterval Duration `json:"cleanup_interval" yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`

	S3Bucket       string `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty" envconfig:"S3_BUCKET" validate:"required_if=Backend s3"`
	S3Prefix       string `json:"s3_prefix,omitempty" yaml:"s3_prefix,omitempty" envconfig:"S3_PREFIX"`
	S3Region       string `json:"s3_region,omitempty" yaml:"s3_region,omitempty" envconfig:"S3_REGION"`
	S3Endpoint     string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty" envconfig:"S3_ENDPOINT" validate:"omitempty,url"`
	S3UsePathStyle bool   `json:"s3_use_path_style,omitempty" yaml:"s3_use_path_style,omitempty" envconfig:"S3_USE_PATH_STYLE"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Address string `json:"address" yaml:"address" envconfig:"ADDRESS"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `json:"service_name" yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required_if=Enabled true"`
	PrettyPrint bool   `json:"pretty_print" yaml:"pretty_print" envconfig:"PRETTY_PRINT"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          DefaultHost,
			Port:          DefaultPort,
			SocketTimeout: Duration(5e9),
			MaxBodySize:   32 << 20,
			MaxLineSize:   64 << 10,
		},
		Static: StaticConfig{
			Enabled:       true,
			Dir:           "WebContent",
			Prefix:        "/",
			Index:         "index.html",
			GzipMinLength: 2048,
			CacheControl:  "none",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Paths:          []string{"/ws"},
			MaxMessageSize: 16 << 20,
		},
		Uploads: UploadsConfig{
			Backend:         "disk",
			Dir:             os.TempDir(),
			MaxAge:          Duration(24 * 3600e9),
			CleanupInterval: Duration(3600e9),
		},
		Admin: AdminConfig{
			Enabled: true,
			Address: DefaultAdminAddress,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "corehttp",
		},
	}
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("C001").
				WithDetail("No configuration file at " + path + ".").
				Wrap(err)
		}
		return errors.New("C001").Wrap(err)
	}

	if isYAML(path) {
		err = yaml.UnmarshalStrict(data, c)
	} else {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	}
	if err != nil {
		return errors.New("C002").WithLocationFromError(path, err).Wrap(err)
	}

	c.path = path
	return nil
}

// ApplyEnv overrides fields from COREHTTP_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return errors.New("C004").Wrap(err)
	}
	return nil
}

// Marshal encodes the configuration in the format implied by path's
// extension.
func (c *Config) Marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Address returns the protocol server listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
