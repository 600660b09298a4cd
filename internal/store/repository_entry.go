package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/models"
)

type loginEntryRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewLoginEntryRepository constructs a SQLite-backed [LoginEntryRepository].
func NewLoginEntryRepository(db *DB, log *logger.Logger) LoginEntryRepository {
	log.Debug().Msg("creating login entry repository")
	return &loginEntryRepository{db: db, logger: log}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *loginEntryRepository) SaveEntry(ctx context.Context, e models.LoginEntry) error {
	if err := saveEntry(ctx, r.db, e); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "loginEntryRepository.SaveEntry").Str("entry_id", e.ID).Msg("failed to save entry")
		return err
	}
	return nil
}

func saveEntry(ctx context.Context, ex execer, e models.LoginEntry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	_, err := ex.ExecContext(ctx, upsertEntry,
		e.ID,
		e.VaultID,
		nullString(e.CipherID),
		nullString(e.FolderID),
		int(e.Type),
		e.Favorite,
		e.Title,
		e.Username,
		e.Password,
		e.URL,
		e.Notes,
		e.Totp,
		e.LocallyModified,
		nullTime(e.ServerRevision),
		nullTime(e.LastSyncedAt),
		nullTime(e.DeletedAt),
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *loginEntryRepository) GetEntry(ctx context.Context, entryID string) (models.LoginEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, getEntryByID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.LoginEntry{}, ErrEntryNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "loginEntryRepository.GetEntry").Str("entry_id", entryID).Msg("failed to scan entry")
		return models.LoginEntry{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return e, nil
}

func (r *loginEntryRepository) ListEntries(ctx context.Context, vaultID string) ([]models.LoginEntry, error) {
	return r.list(ctx, "loginEntryRepository.ListEntries", sq.Eq{"vault_id": vaultID})
}

func (r *loginEntryRepository) ListModified(ctx context.Context, vaultID string) ([]models.LoginEntry, error) {
	return r.list(ctx, "loginEntryRepository.ListModified", sq.And{
		sq.Eq{"vault_id": vaultID},
		sq.Eq{"locally_modified": true},
		sq.Eq{"deleted_at": nil},
	})
}

func (r *loginEntryRepository) ListPendingDeletes(ctx context.Context, vaultID string) ([]models.LoginEntry, error) {
	return r.list(ctx, "loginEntryRepository.ListPendingDeletes", sq.And{
		sq.Eq{"vault_id": vaultID},
		sq.Eq{"locally_modified": true},
		sq.NotEq{"deleted_at": nil},
		sq.NotEq{"cipher_id": nil},
	})
}

func (r *loginEntryRepository) list(ctx context.Context, fn string, where sq.Sqlizer) ([]models.LoginEntry, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.Select(entryColumns).
		From("login_entries").
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", fn).Msg("failed to query entries")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var entries []models.LoginEntry
	for rows.Next() {
		e, scanErr := scanEntry(rows)
		if scanErr != nil {
			log.Err(scanErr).Str("func", fn).Msg("failed to scan entry row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return entries, nil
}

func (r *loginEntryRepository) CountActiveEntries(ctx context.Context, vaultID string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("login_entries").
		Where(sq.Eq{"vault_id": vaultID, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var n int
	if err = r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "loginEntryRepository.CountActiveEntries").Msg("failed to count entries")
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return n, nil
}

func (r *loginEntryRepository) MarkUploaded(ctx context.Context, entryID, cipherID string, revision time.Time) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, markEntryUploaded, cipherID, revision.UTC(), revision.UTC(), now, entryID)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "loginEntryRepository.MarkUploaded").Str("entry_id", entryID).Msg("failed to mark entry uploaded")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return expectOneRow(res, ErrEntryNotFound)
}

func (r *loginEntryRepository) ApplyCipherBatch(ctx context.Context, vaultID string, batch models.CipherBatch) error {
	if batch.Empty() {
		return nil
	}
	log := logger.FromContext(ctx)

	err := r.db.WithTx(ctx, "ApplyCipherBatch", func(tx *sql.Tx) error {
		for _, e := range batch.Insert {
			e.VaultID = vaultID
			if err := saveEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, e := range batch.Update {
			e.VaultID = vaultID
			if err := saveEntry(ctx, tx, e); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		for _, e := range batch.SoftDelete {
			deletedAt := nullTime(e.DeletedAt)
			if !deletedAt.Valid {
				deletedAt = sql.NullTime{Time: now, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, softDeleteEntry,
				deletedAt, nullTime(e.ServerRevision), nullTime(e.LastSyncedAt), now, e.ID,
			); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
			}
		}

		for _, c := range batch.Conflicts {
			if err := upsertConflict(ctx, tx, vaultID, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Err(err).Str("func", "loginEntryRepository.ApplyCipherBatch").Str("vault_id", vaultID).Msg("failed to apply cipher batch")
		return err
	}

	return nil
}

func scanEntry(row rowScanner) (models.LoginEntry, error) {
	var (
		e                       models.LoginEntry
		entryType               int
		cipherID, folderID      sql.NullString
		serverRev, synced, dead sql.NullTime
	)

	err := row.Scan(
		&e.ID,
		&e.VaultID,
		&cipherID,
		&folderID,
		&entryType,
		&e.Favorite,
		&e.Title,
		&e.Username,
		&e.Password,
		&e.URL,
		&e.Notes,
		&e.Totp,
		&e.LocallyModified,
		&serverRev,
		&synced,
		&dead,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return models.LoginEntry{}, err
	}

	e.Type = models.CipherType(entryType)
	e.CipherID = stringFromNull(cipherID)
	e.FolderID = stringFromNull(folderID)
	e.ServerRevision = timeFromNull(serverRev)
	e.LastSyncedAt = timeFromNull(synced)
	e.DeletedAt = timeFromNull(dead)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()

	return e, nil
}
