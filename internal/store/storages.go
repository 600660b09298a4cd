package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
)

// ClientStorages groups the repositories over one local database.
type ClientStorages struct {
	Vaults    VaultRepository
	Entries   LoginEntryRepository
	Folders   FolderRepository
	Sends     SendRepository
	Conflicts ConflictRepository

	db *DB
}

// NewClientStorages opens the SQLite database from cfg, migrates it and wires
// the repositories.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, log *logger.Logger) (*ClientStorages, error) {
	log.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return NewClientStoragesFromDB(db, log), nil
}

// NewClientStoragesFromDB wires repositories over an already migrated db.
func NewClientStoragesFromDB(db *DB, log *logger.Logger) *ClientStorages {
	return &ClientStorages{
		Vaults:    NewVaultRepository(db, log),
		Entries:   NewLoginEntryRepository(db, log),
		Folders:   NewFolderRepository(db, log),
		Sends:     NewSendRepository(db, log),
		Conflicts: NewConflictRepository(db, log),
		db:        db,
	}
}

// Close releases the database.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
