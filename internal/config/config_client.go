package config

import (
	"fmt"
	"time"
)

// ClientApp identifies the installation and controls logging.
type ClientApp struct {
	// DeviceID is empty when the stored or generated id should be used.
	DeviceID      string
	DeviceName    string
	DeviceType    int
	ClientName    string
	ClientVersion string
	LogDir        string
	LogLevel      string
}

// ClientAdapter holds network settings used by the identity and API clients.
type ClientAdapter struct {
	// ServerURL is the default server for new logins.
	ServerURL string
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration
	// RateLimit and Burst throttle identity requests.
	RateLimit time.Duration
	Burst     int
}

// ClientDB contains local database connection settings.
type ClientDB struct {
	// DSN is the SQLite file path or connection string.
	DSN string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientKeyring selects the device wrapping key backend.
type ClientKeyring struct {
	Service   string
	Backend   string
	StaticKey string
}

// ClientWorkers contains client background worker settings.
type ClientWorkers struct {
	// SyncInterval defines how often the sync job runs.
	SyncInterval time.Duration
}

// ClientSync tunes the sync engine.
type ClientSync struct {
	PushLocalEdits    bool
	DataLossWarnRatio float64
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App     ClientApp
	Adapter ClientAdapter
	Storage ClientStorage
	Keyring ClientKeyring
	Workers ClientWorkers
	Sync    ClientSync
}

// GetClientConfig builds and validates the client config from defaults, the
// JSON file, the environment and flags. flags may be nil.
func GetClientConfig(flags *Flags) (*ClientConfig, error) {
	cfg, err := GetStructuredConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := newClientConfig(cfg)
	return clientCfg, clientCfg.validate()
}

func newClientConfig(cfg *StructuredConfig) *ClientConfig {
	return &ClientConfig{
		App: ClientApp{
			DeviceID:      cfg.App.DeviceID,
			DeviceName:    cfg.App.DeviceName,
			DeviceType:    cfg.App.DeviceType,
			ClientName:    cfg.App.ClientName,
			ClientVersion: cfg.App.ClientVersion,
			LogDir:        cfg.App.LogDir,
			LogLevel:      cfg.App.LogLevel,
		},
		Adapter: ClientAdapter{
			ServerURL:      cfg.Adapter.ServerURL,
			RequestTimeout: cfg.Adapter.RequestTimeout,
			RateLimit:      cfg.Adapter.RateLimit,
			Burst:          cfg.Adapter.Burst,
		},
		Storage: ClientStorage{
			DB: ClientDB{DSN: cfg.Storage.DB.DSN},
		},
		Keyring: ClientKeyring{
			Service:   cfg.Keyring.Service,
			Backend:   cfg.Keyring.Backend,
			StaticKey: cfg.Keyring.StaticKey,
		},
		Workers: ClientWorkers{SyncInterval: cfg.Workers.SyncInterval},
		Sync: ClientSync{
			PushLocalEdits:    cfg.Sync.PushLocalEdits,
			DataLossWarnRatio: cfg.Sync.DataLossWarnRatio,
		},
	}
}
