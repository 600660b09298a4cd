// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package store persists vaults, their mirrored items and conflict records
// in a local SQLite database.
//
// Every secret column holds either a device-wrapped blob (vault tokens and
// keys) or a cipher string sealed with the vault's symmetric key (entry
// fields), so the database file alone reveals nothing.
package store

import (
	"context"
	"time"

	"github.com/MKhiriev/go-vault-sync/models"
)

// VaultRepository stores vault records and the active-vault pointer.
type VaultRepository interface {
	// CreateVault inserts v. The first vault ever created is marked default.
	// Returns [ErrVaultAlreadyExists] for a duplicate email.
	CreateVault(ctx context.Context, v models.Vault) (models.Vault, error)
	// UpdateVault rewrites every mutable column of v.
	UpdateVault(ctx context.Context, v models.Vault) error
	// UpdateTokens rewrites only the token columns.
	UpdateTokens(ctx context.Context, vaultID string, tokens models.VaultTokens) error
	// UpdateUserID rewrites only the server-side account id.
	UpdateUserID(ctx context.Context, vaultID, userID string) error
	// SetLocked flips the persisted lock flag of one vault, or of all vaults
	// when vaultID is empty.
	SetLocked(ctx context.Context, vaultID string, locked bool) error
	// MarkSynced records the time and server revision of a finished sync.
	MarkSynced(ctx context.Context, vaultID string, at time.Time, revision *time.Time) error
	GetVault(ctx context.Context, vaultID string) (models.Vault, error)
	GetVaultByEmail(ctx context.Context, email string) (models.Vault, error)
	// ListVaults returns vaults ordered by creation time, then id.
	ListVaults(ctx context.Context) ([]models.Vault, error)
	// DeleteVault removes the vault and every row scoped to it in one
	// transaction, clears the active pointer when it referenced the vault and
	// promotes the oldest remaining vault to default when needed.
	DeleteVault(ctx context.Context, vaultID string) error

	GetActiveVaultID(ctx context.Context) (string, error)
	SetActiveVaultID(ctx context.Context, vaultID string) error

	// GetSetting reads an installation-wide value, "" when unset.
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// LoginEntryRepository stores local credential entries.
type LoginEntryRepository interface {
	SaveEntry(ctx context.Context, e models.LoginEntry) error
	GetEntry(ctx context.Context, entryID string) (models.LoginEntry, error)
	// ListEntries returns all entries of a vault, including soft-deleted ones.
	ListEntries(ctx context.Context, vaultID string) ([]models.LoginEntry, error)
	// CountActiveEntries counts entries of a vault that are not soft-deleted.
	CountActiveEntries(ctx context.Context, vaultID string) (int, error)
	// ListModified returns live entries with LocallyModified set.
	ListModified(ctx context.Context, vaultID string) ([]models.LoginEntry, error)
	// ListPendingDeletes returns soft-deleted entries with LocallyModified set
	// that still point at a server cipher.
	ListPendingDeletes(ctx context.Context, vaultID string) ([]models.LoginEntry, error)
	// MarkUploaded clears LocallyModified and records the server copy.
	MarkUploaded(ctx context.Context, entryID, cipherID string, revision time.Time) error
	// ApplyCipherBatch writes one reconciliation batch atomically.
	ApplyCipherBatch(ctx context.Context, vaultID string, batch models.CipherBatch) error
}

// FolderRepository mirrors server folders.
type FolderRepository interface {
	// UpsertFolders writes all folders of one snapshot atomically.
	UpsertFolders(ctx context.Context, vaultID string, folders []models.Folder) error
	ListFolders(ctx context.Context, vaultID string) ([]models.Folder, error)
}

// SendRepository mirrors server sends.
type SendRepository interface {
	// ReplaceSends makes the stored sends equal to the snapshot atomically.
	ReplaceSends(ctx context.Context, vaultID string, sends []models.Send) error
	ListSends(ctx context.Context, vaultID string) ([]models.Send, error)
}

// ConflictRepository stores conflict records and applies resolutions.
type ConflictRepository interface {
	GetConflict(ctx context.Context, conflictID string) (models.ConflictRecord, error)
	ListUnresolved(ctx context.Context, vaultID string) ([]models.ConflictRecord, error)
	CountUnresolved(ctx context.Context, vaultID string) (int, error)
	// ResolveKeepLocal marks the conflict resolved and moves the entry's sync
	// baseline to the server revision, so the local version is uploaded
	// instead of raising the same conflict again. Returns
	// [ErrConflictAlreadyResolved] or [ErrEntryNotFound] without writing.
	ResolveKeepLocal(ctx context.Context, conflictID string, entry models.LoginEntry, at time.Time) error
	// ResolveKeepServer overwrites the entry and marks the conflict resolved
	// in one transaction, with the same failure contract.
	ResolveKeepServer(ctx context.Context, conflictID string, entry models.LoginEntry, at time.Time) error
}
