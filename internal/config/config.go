package config

import (
	"os"
	"path/filepath"
	"time"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VAULTSYNC_"

// Default values applied before any other source.
const (
	DefaultServerURL         = "https://vault.bitwarden.com"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRateLimit         = 500 * time.Millisecond
	DefaultBurst             = 3
	DefaultSyncInterval      = 5 * time.Minute
	DefaultClientName        = "desktop"
	DefaultClientVersion     = "2025.9.1"
	DefaultDeviceType        = 8
	DefaultDeviceName        = "vaultsync"
	DefaultKeyringService    = "vaultsync"
	DefaultKeyringBackend    = KeyringBackendOS
	DefaultDataLossWarnRatio = 0.5
	DefaultLogLevel          = "info"
)

// Keyring backends.
const (
	// KeyringBackendOS keeps the device wrapping key in the OS keyring.
	KeyringBackendOS = "os"
	// KeyringBackendStatic uses the base64 key from Keyring.StaticKey. Meant
	// for headless machines without a keyring daemon.
	KeyringBackendStatic = "static"
)

// StructuredConfig is the top-level configuration container for the vault
// sync client. It aggregates all sub-configurations and is populated by
// merging defaults, an optional JSON file, environment variables and
// command-line flags.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App identifies this installation to the server and controls logging.
	App App `envPrefix:"APP_"`

	// Adapter holds settings of the outbound HTTP clients.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds the local database settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Keyring selects where the device wrapping key lives.
	Keyring Keyring `envPrefix:"KEYRING_"`

	// Workers holds configuration for background worker processes.
	Workers Workers `envPrefix:"WORKERS_"`

	// Sync tunes the synchronization engine.
	Sync Sync `envPrefix:"SYNC_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via VAULTSYNC_CONFIG or the --config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds device identification and logging settings.
type App struct {
	// DeviceID overrides the generated per-install device identifier.
	// Env: VAULTSYNC_APP_DEVICE_ID
	DeviceID string `env:"DEVICE_ID"`

	// DeviceName is reported to the server on login.
	// Env: VAULTSYNC_APP_DEVICE_NAME
	DeviceName string `env:"DEVICE_NAME"`

	// DeviceType is the numeric device type sent with every token request.
	// Env: VAULTSYNC_APP_DEVICE_TYPE
	DeviceType int `env:"DEVICE_TYPE"`

	// ClientName is sent as Bitwarden-Client-Name and as client_id.
	// Env: VAULTSYNC_APP_CLIENT_NAME
	ClientName string `env:"CLIENT_NAME"`

	// ClientVersion is sent as Bitwarden-Client-Version.
	// Env: VAULTSYNC_APP_CLIENT_VERSION
	ClientVersion string `env:"CLIENT_VERSION"`

	// LogDir is the directory of the log file. Empty means next to the
	// executable.
	// Env: VAULTSYNC_APP_LOG_DIR
	LogDir string `env:"LOG_DIR"`

	// LogLevel is a zerolog level name.
	// Env: VAULTSYNC_APP_LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL"`
}

// Adapter holds settings of the identity and API clients.
type Adapter struct {
	// ServerURL is used by login when no server is given explicitly.
	// Env: VAULTSYNC_ADAPTER_SERVER_URL
	ServerURL string `env:"SERVER_URL"`

	// RequestTimeout bounds every outbound request (e.g. "30s").
	// Env: VAULTSYNC_ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// RateLimit is the minimum spacing between identity requests.
	// Env: VAULTSYNC_ADAPTER_RATE_LIMIT
	RateLimit time.Duration `env:"RATE_LIMIT"`

	// Burst is the number of identity requests allowed back to back.
	// Env: VAULTSYNC_ADAPTER_BURST
	Burst int `env:"BURST"`
}

// Storage groups the configuration of the local persistence backend.
type Storage struct {
	// DB holds the SQLite settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite database.
type DB struct {
	// DSN is a file path or a sqlite3 DSN (e.g. "file:vault.db?mode=rwc").
	// Env: VAULTSYNC_STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Keyring selects the device wrapping key backend.
type Keyring struct {
	// Service is the keyring service name.
	// Env: VAULTSYNC_KEYRING_SERVICE
	Service string `env:"SERVICE"`

	// Backend is "os" or "static".
	// Env: VAULTSYNC_KEYRING_BACKEND
	Backend string `env:"BACKEND"`

	// StaticKey is a base64 encoded 32-byte key used by the static backend.
	// Env: VAULTSYNC_KEYRING_STATIC_KEY
	StaticKey string `env:"STATIC_KEY"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval is the period of the background sync job.
	// Env: VAULTSYNC_WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// Sync tunes the synchronization engine.
type Sync struct {
	// PushLocalEdits uploads locally modified entries after each pull.
	// Env: VAULTSYNC_SYNC_PUSH_LOCAL_EDITS
	PushLocalEdits bool `env:"PUSH_LOCAL_EDITS"`

	// DataLossWarnRatio is the share of local entries a snapshot may drop
	// before a warning is logged.
	// Env: VAULTSYNC_SYNC_DATA_LOSS_WARN_RATIO
	DataLossWarnRatio float64 `env:"DATA_LOSS_WARN_RATIO"`
}

// Defaults returns the built-in configuration layer.
func Defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			DeviceName:    DefaultDeviceName,
			DeviceType:    DefaultDeviceType,
			ClientName:    DefaultClientName,
			ClientVersion: DefaultClientVersion,
			LogLevel:      DefaultLogLevel,
		},
		Adapter: Adapter{
			ServerURL:      DefaultServerURL,
			RequestTimeout: DefaultRequestTimeout,
			RateLimit:      DefaultRateLimit,
			Burst:          DefaultBurst,
		},
		Storage: Storage{DB: DB{DSN: defaultDSN()}},
		Keyring: Keyring{
			Service: DefaultKeyringService,
			Backend: DefaultKeyringBackend,
		},
		Workers: Workers{SyncInterval: DefaultSyncInterval},
		Sync:    Sync{DataLossWarnRatio: DefaultDataLossWarnRatio},
	}
}

func defaultDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vaultsync.db"
	}
	return filepath.Join(dir, "vaultsync", "vaultsync.db")
}

// GetStructuredConfig loads, merges, and validates the configuration from all
// available sources. flags may be nil when no command line is bound.
func GetStructuredConfig(flags *Flags) (*StructuredConfig, error) {
	return newConfigBuilder().
		withDefaults().
		withEnv().
		withFlags(flags).
		withJSON().
		build()
}
