package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig is the on-disk layout of the JSON config file.
type StructuredJSONConfig struct {
	App struct {
		DeviceID      string `json:"device_id"`
		DeviceName    string `json:"device_name"`
		DeviceType    int    `json:"device_type"`
		ClientName    string `json:"client_name"`
		ClientVersion string `json:"client_version"`
		LogDir        string `json:"log_dir"`
		LogLevel      string `json:"log_level"`
	} `json:"app,omitempty"`

	Adapter struct {
		ServerURL      string   `json:"server_url"`
		RequestTimeout Duration `json:"request_timeout"`
		RateLimit      Duration `json:"rate_limit"`
		Burst          int      `json:"burst"`
	} `json:"adapter,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Keyring struct {
		Service   string `json:"service"`
		Backend   string `json:"backend"`
		StaticKey string `json:"static_key"`
	} `json:"keyring,omitempty"`

	Workers struct {
		SyncInterval Duration `json:"sync_interval"`
	} `json:"workers,omitempty"`

	Sync struct {
		PushLocalEdits    bool    `json:"push_local_edits"`
		DataLossWarnRatio float64 `json:"data_loss_warn_ratio"`
	} `json:"sync,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			DeviceID:      jsonCfg.App.DeviceID,
			DeviceName:    jsonCfg.App.DeviceName,
			DeviceType:    jsonCfg.App.DeviceType,
			ClientName:    jsonCfg.App.ClientName,
			ClientVersion: jsonCfg.App.ClientVersion,
			LogDir:        jsonCfg.App.LogDir,
			LogLevel:      jsonCfg.App.LogLevel,
		},
		Adapter: Adapter{
			ServerURL:      jsonCfg.Adapter.ServerURL,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
			RateLimit:      time.Duration(jsonCfg.Adapter.RateLimit),
			Burst:          jsonCfg.Adapter.Burst,
		},
		Storage: Storage{
			DB: DB{DSN: jsonCfg.Storage.DB.DSN},
		},
		Keyring: Keyring{
			Service:   jsonCfg.Keyring.Service,
			Backend:   jsonCfg.Keyring.Backend,
			StaticKey: jsonCfg.Keyring.StaticKey,
		},
		Workers: Workers{
			SyncInterval: time.Duration(jsonCfg.Workers.SyncInterval),
		},
		Sync: Sync{
			PushLocalEdits:    jsonCfg.Sync.PushLocalEdits,
			DataLossWarnRatio: jsonCfg.Sync.DataLossWarnRatio,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
