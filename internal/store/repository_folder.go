package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/models"
)

type folderRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewFolderRepository constructs a SQLite-backed [FolderRepository].
func NewFolderRepository(db *DB, log *logger.Logger) FolderRepository {
	log.Debug().Msg("creating folder repository")
	return &folderRepository{db: db, logger: log}
}

func (r *folderRepository) UpsertFolders(ctx context.Context, vaultID string, folders []models.Folder) error {
	if len(folders) == 0 {
		return nil
	}

	err := r.db.WithTx(ctx, "UpsertFolders", func(tx *sql.Tx) error {
		for _, f := range folders {
			if _, err := tx.ExecContext(ctx, upsertFolder, f.ID, vaultID, f.Name, f.RevisionDate.UTC()); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "folderRepository.UpsertFolders").Str("vault_id", vaultID).Msg("failed to upsert folders")
		return err
	}
	return nil
}

func (r *folderRepository) ListFolders(ctx context.Context, vaultID string) ([]models.Folder, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, listFolders, vaultID)
	if err != nil {
		log.Err(err).Str("func", "folderRepository.ListFolders").Msg("failed to query folders")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var f models.Folder
		if err = rows.Scan(&f.ID, &f.VaultID, &f.Name, &f.RevisionDate); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		f.RevisionDate = f.RevisionDate.UTC()
		folders = append(folders, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return folders, nil
}
