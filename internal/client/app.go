package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/service"
	"github.com/MKhiriev/go-vault-sync/internal/store"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/internal/workers"
	"github.com/MKhiriev/go-vault-sync/models"
)

// deviceIDSetting is the app_state key the generated device identifier is
// persisted under.
const deviceIDSetting = "device_id"

// App owns every long-lived component of a vaultsync process.
type App struct {
	cfg      *config.ClientConfig
	log      *logger.Logger
	storages *store.ClientStorages
	services *service.ClientServices
	workers  *workers.Workers
}

// NewApp opens local storage and wires adapters, services and background
// workers from cfg.
func NewApp(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	storages, err := store.NewClientStorages(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	wrapper, err := newSecretWrapper(cfg.Keyring, log)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create secret wrapper: %w", err)
	}

	device, err := deviceInfo(ctx, cfg.App, storages.Vaults)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("resolve device identity: %w", err)
	}
	log.Debug().Str("device_id", device.Identifier).Str("server", cfg.Adapter.ServerURL).Msg("client wired")

	identity := adapter.NewIdentityClient(cfg.Adapter, device, log)
	api := adapter.NewVaultAPI(cfg.Adapter, device, log)

	services := service.NewClientServices(storages, identity, api, wrapper, cfg.Sync, log)

	return &App{
		cfg:      cfg,
		log:      log,
		storages: storages,
		services: services,
		workers:  workers.NewWorkers(workers.NewSyncWorker(services.SyncJob, cfg.Workers)),
	}, nil
}

func (a *App) Services() *service.ClientServices {
	return a.services
}

func (a *App) Config() *config.ClientConfig {
	return a.cfg
}

// Run starts the background workers and blocks until ctx is cancelled.
// Every vault is locked on the way out.
func (a *App) Run(ctx context.Context) error {
	a.workers.Run(ctx)
	a.log.Info().Dur("interval", a.cfg.Workers.SyncInterval).Msg("background sync started")

	<-ctx.Done()

	a.workers.Stop()
	a.log.Info().Msg("background sync stopped")

	return a.services.Sessions.LockAll(context.WithoutCancel(ctx))
}

// Close locks every vault and releases local storage.
func (a *App) Close() error {
	if err := a.services.Sessions.LockAll(context.Background()); err != nil {
		a.log.Err(err).Msg("lock vaults on close")
	}
	return a.storages.Close()
}

func newSecretWrapper(cfg config.ClientKeyring, log *logger.Logger) (crypto.SecretWrapper, error) {
	switch cfg.Backend {
	case config.KeyringBackendStatic:
		key, err := base64.StdEncoding.DecodeString(cfg.StaticKey)
		if err != nil {
			return nil, fmt.Errorf("decode static key: %w", err)
		}
		return crypto.NewStaticWrapper(key)
	default:
		return crypto.NewKeyringWrapper(cfg.Service, log), nil
	}
}

// deviceInfo returns the configured device identifier, else the one
// generated on first start, else a fresh one that is persisted.
func deviceInfo(ctx context.Context, cfg config.ClientApp, vaults store.VaultRepository) (models.DeviceInfo, error) {
	id := cfg.DeviceID
	if id == "" {
		stored, err := vaults.GetSetting(ctx, deviceIDSetting)
		if err != nil {
			return models.DeviceInfo{}, err
		}
		id = stored
	}
	if id == "" {
		id = utils.NewDeviceID()
		if err := vaults.PutSetting(ctx, deviceIDSetting, id); err != nil {
			return models.DeviceInfo{}, err
		}
	}

	return models.DeviceInfo{
		Identifier:    id,
		Name:          cfg.DeviceName,
		Type:          strconv.Itoa(cfg.DeviceType),
		ClientName:    cfg.ClientName,
		ClientVersion: cfg.ClientVersion,
	}, nil
}
