package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds the values of the configuration flags bound by [BindFlags].
// Unset flags keep their zero value and do not override other sources.
type Flags struct {
	configPath     string
	serverURL      string
	dsn            string
	deviceName     string
	logDir         string
	logLevel       string
	keyringBackend string
	requestTimeout time.Duration
	syncInterval   time.Duration
	pushLocalEdits bool
}

// BindFlags declares the configuration flags on fs, usually the persistent
// flag set of the root command.
//
// Flags:
//
//	-c/--config            json file path with configs
//	-s/--server            default server URL
//	-d/--db                SQLite database path or DSN
//	--device-name          device name reported on login
//	--log-dir              log file directory
//	--log-level            log level (debug, info, warn, error)
//	--keyring              device key backend (os, static)
//	--request-timeout      request timeout (e.g., "30s", "1m")
//	--sync-interval        background sync period (e.g., "5m")
//	--push                 upload local edits after each sync
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVarP(&f.configPath, "config", "c", "", "JSON config file path")
	fs.StringVarP(&f.serverURL, "server", "s", "", "Server URL (https://vault.bitwarden.com, https://vault.bitwarden.eu or self-hosted)")
	fs.StringVarP(&f.dsn, "db", "d", "", "SQLite database path or DSN")
	fs.StringVar(&f.deviceName, "device-name", "", "Device name reported on login")
	fs.StringVar(&f.logDir, "log-dir", "", "Log file directory")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level")
	fs.StringVar(&f.keyringBackend, "keyring", "", "Device key backend: os or static")
	fs.DurationVar(&f.requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.DurationVar(&f.syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m)")
	fs.BoolVar(&f.pushLocalEdits, "push", false, "Upload locally modified entries after each sync")

	return f
}

func (f *Flags) toConfig() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			DeviceName: f.deviceName,
			LogDir:     f.logDir,
			LogLevel:   f.logLevel,
		},
		Adapter: Adapter{
			ServerURL:      f.serverURL,
			RequestTimeout: f.requestTimeout,
		},
		Storage:      Storage{DB: DB{DSN: f.dsn}},
		Keyring:      Keyring{Backend: f.keyringBackend},
		Workers:      Workers{SyncInterval: f.syncInterval},
		Sync:         Sync{PushLocalEdits: f.pushLocalEdits},
		JSONFilePath: f.configPath,
	}
}
