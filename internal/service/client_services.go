// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service implements the vault client: the login state machine,
// the per-vault session store, the sync engine and conflict resolution.
//
// Services return typed failures ([Error]) whose [ErrorKind] tells callers
// whether to ask for credentials again, retry later or fix configuration.
package service

import (
	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/store"
)

type ClientServices struct {
	Sessions  VaultSessionStore
	Auth      AuthSession
	Sync      SyncEngine
	Conflicts ConflictResolver
	SyncJob   SyncJob
}

func NewClientServices(
	storages *store.ClientStorages,
	identity adapter.IdentityClient,
	api adapter.VaultAPI,
	wrapper crypto.SecretWrapper,
	cfg config.ClientSync,
	log *logger.Logger,
) *ClientServices {
	sessions := NewVaultSessionStore(storages.Vaults, wrapper, identity, log)
	engine := NewSyncEngine(sessions, api, storages, cfg, log)

	return &ClientServices{
		Sessions:  sessions,
		Auth:      NewAuthSession(identity, sessions, log),
		Sync:      engine,
		Conflicts: NewConflictResolver(sessions, storages, log),
		SyncJob:   NewSyncJob(engine, sessions, log),
	}
}
