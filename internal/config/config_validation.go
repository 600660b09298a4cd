package config

import (
	"encoding/base64"
	"strings"
)

// validate checks the merged [StructuredConfig]. Field-level rules live on
// [ClientConfig]; here only cross-source problems are caught.
func (cfg *StructuredConfig) validate() error {
	if cfg.Sync.DataLossWarnRatio < 0 {
		return ErrInvalidSyncConfigs
	}
	return nil
}

func (cfg *ClientConfig) validate() error {
	if strings.TrimSpace(cfg.Storage.DB.DSN) == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.ServerURL == "" || cfg.Adapter.RequestTimeout <= 0 || cfg.Adapter.Burst < 1 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Workers.SyncInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.App.ClientName == "" || cfg.App.ClientVersion == "" {
		return ErrInvalidAppConfigs
	}

	switch cfg.Keyring.Backend {
	case KeyringBackendOS:
		if cfg.Keyring.Service == "" {
			return ErrInvalidKeyringConfigs
		}
	case KeyringBackendStatic:
		key, err := base64.StdEncoding.DecodeString(cfg.Keyring.StaticKey)
		if err != nil || len(key) != 32 {
			return ErrInvalidKeyringConfigs
		}
	default:
		return ErrInvalidKeyringConfigs
	}

	if cfg.Sync.DataLossWarnRatio <= 0 || cfg.Sync.DataLossWarnRatio > 1 {
		return ErrInvalidSyncConfigs
	}

	return nil
}
