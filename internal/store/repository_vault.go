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

const activeVaultKey = "active_vault_id"

type vaultRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewVaultRepository constructs a SQLite-backed [VaultRepository].
func NewVaultRepository(db *DB, log *logger.Logger) VaultRepository {
	log.Debug().Msg("creating vault repository")
	return &vaultRepository{db: db, logger: log}
}

func (r *vaultRepository) CreateVault(ctx context.Context, v models.Vault) (models.Vault, error) {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, insertVault,
		v.ID,
		v.Email,
		v.UserID,
		v.URLs.Vault,
		v.URLs.Identity,
		v.URLs.API,
		int(v.Kdf.Type),
		v.Kdf.Iterations,
		nullInt(v.Kdf.Memory),
		nullInt(v.Kdf.Parallelism),
		v.AccessTokenWrapped,
		v.RefreshTokenWrapped,
		nullTimeValue(v.AccessTokenExpiresAt),
		v.TwoFactorRememberWrapped,
		v.MasterKeyWrapped,
		v.EncKeyWrapped,
		v.MacKeyWrapped,
		nullTime(v.LastSyncAt),
		nullTime(v.RevisionDate),
		v.Locked,
		v.Connected,
		v.SyncEnabled,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.CreateVault").Str("vault_id", v.ID).Msg("failed to insert vault")
		if isUniqueViolation(err) {
			return models.Vault{}, ErrVaultAlreadyExists
		}
		return models.Vault{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return r.GetVault(ctx, v.ID)
}

func (r *vaultRepository) UpdateVault(ctx context.Context, v models.Vault) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, updateVault,
		v.UserID,
		v.URLs.Vault,
		v.URLs.Identity,
		v.URLs.API,
		int(v.Kdf.Type),
		v.Kdf.Iterations,
		nullInt(v.Kdf.Memory),
		nullInt(v.Kdf.Parallelism),
		v.AccessTokenWrapped,
		v.RefreshTokenWrapped,
		nullTimeValue(v.AccessTokenExpiresAt),
		v.TwoFactorRememberWrapped,
		v.MasterKeyWrapped,
		v.EncKeyWrapped,
		v.MacKeyWrapped,
		v.Locked,
		v.Connected,
		v.SyncEnabled,
		time.Now().UTC(),
		v.ID,
	)
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.UpdateVault").Str("vault_id", v.ID).Msg("failed to update vault")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return expectOneRow(res, ErrVaultNotFound)
}

func (r *vaultRepository) UpdateTokens(ctx context.Context, vaultID string, tokens models.VaultTokens) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, updateVaultTokens,
		tokens.AccessTokenWrapped,
		tokens.RefreshTokenWrapped,
		nullTimeValue(tokens.AccessTokenExpiresAt),
		time.Now().UTC(),
		vaultID,
	)
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.UpdateTokens").Str("vault_id", vaultID).Msg("failed to update tokens")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return expectOneRow(res, ErrVaultNotFound)
}

func (r *vaultRepository) UpdateUserID(ctx context.Context, vaultID, userID string) error {
	res, err := r.db.ExecContext(ctx, updateVaultUserID, userID, time.Now().UTC(), vaultID)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "vaultRepository.UpdateUserID").Str("vault_id", vaultID).Msg("failed to update user id")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return expectOneRow(res, ErrVaultNotFound)
}

func (r *vaultRepository) SetLocked(ctx context.Context, vaultID string, locked bool) error {
	log := logger.FromContext(ctx)

	builder := sq.Update("vaults").
		Set("is_locked", locked).
		Set("updated_at", time.Now().UTC())
	if vaultID != "" {
		builder = builder.Where(sq.Eq{"id": vaultID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.SetLocked").Str("vault_id", vaultID).Msg("failed to update lock flag")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if vaultID == "" {
		return nil
	}
	return expectOneRow(res, ErrVaultNotFound)
}

func (r *vaultRepository) MarkSynced(ctx context.Context, vaultID string, at time.Time, revision *time.Time) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, updateVaultSynced, at.UTC(), nullTime(revision), time.Now().UTC(), vaultID)
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.MarkSynced").Str("vault_id", vaultID).Msg("failed to record sync time")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return expectOneRow(res, ErrVaultNotFound)
}

func (r *vaultRepository) GetVault(ctx context.Context, vaultID string) (models.Vault, error) {
	return r.getOne(ctx, "vaultRepository.GetVault", getVaultByID, vaultID)
}

func (r *vaultRepository) GetVaultByEmail(ctx context.Context, email string) (models.Vault, error) {
	return r.getOne(ctx, "vaultRepository.GetVaultByEmail", getVaultByEmail, email)
}

func (r *vaultRepository) getOne(ctx context.Context, fn, query string, arg any) (models.Vault, error) {
	log := logger.FromContext(ctx)

	v, err := scanVault(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vault{}, ErrVaultNotFound
	}
	if err != nil {
		log.Err(err).Str("func", fn).Msg("failed to scan vault row")
		return models.Vault{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return v, nil
}

func (r *vaultRepository) ListVaults(ctx context.Context) ([]models.Vault, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, listVaults)
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.ListVaults").Msg("failed to query vaults")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var vaults []models.Vault
	for rows.Next() {
		v, scanErr := scanVault(rows)
		if scanErr != nil {
			log.Err(scanErr).Str("func", "vaultRepository.ListVaults").Msg("failed to scan vault row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		vaults = append(vaults, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return vaults, nil
}

func (r *vaultRepository) DeleteVault(ctx context.Context, vaultID string) error {
	log := logger.FromContext(ctx)

	err := r.db.WithTx(ctx, "DeleteVault", func(tx *sql.Tx) error {
		for _, stmt := range []string{deleteVaultConflicts, deleteVaultEntries, deleteVaultFolders, deleteVaultSends} {
			if _, err := tx.ExecContext(ctx, stmt, vaultID); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
			}
		}

		res, err := tx.ExecContext(ctx, deleteVault, vaultID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if err = expectOneRow(res, ErrVaultNotFound); err != nil {
			return err
		}

		if _, err = tx.ExecContext(ctx, deleteAppStateValue, activeVaultKey, vaultID); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if _, err = tx.ExecContext(ctx, promoteDefaultVault); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		return nil
	})
	if err != nil {
		log.Err(err).Str("func", "vaultRepository.DeleteVault").Str("vault_id", vaultID).Msg("failed to delete vault")
		return err
	}

	return nil
}

func (r *vaultRepository) GetActiveVaultID(ctx context.Context) (string, error) {
	return r.GetSetting(ctx, activeVaultKey)
}

func (r *vaultRepository) SetActiveVaultID(ctx context.Context, vaultID string) error {
	return r.PutSetting(ctx, activeVaultKey, vaultID)
}

func (r *vaultRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, getAppState, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return value, nil
}

func (r *vaultRepository) PutSetting(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertAppState, key, value); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "vaultRepository.PutSetting").Str("key", key).Msg("failed to store setting")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVault(row rowScanner) (models.Vault, error) {
	var (
		v                        models.Vault
		kdfType                  int
		memory, parallelism      sql.NullInt64
		expiresAt, lastSync, rev sql.NullTime
	)

	err := row.Scan(
		&v.ID,
		&v.Email,
		&v.UserID,
		&v.URLs.Vault,
		&v.URLs.Identity,
		&v.URLs.API,
		&kdfType,
		&v.Kdf.Iterations,
		&memory,
		&parallelism,
		&v.AccessTokenWrapped,
		&v.RefreshTokenWrapped,
		&expiresAt,
		&v.TwoFactorRememberWrapped,
		&v.MasterKeyWrapped,
		&v.EncKeyWrapped,
		&v.MacKeyWrapped,
		&lastSync,
		&rev,
		&v.IsDefault,
		&v.Locked,
		&v.Connected,
		&v.SyncEnabled,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return models.Vault{}, err
	}

	v.Kdf.Type = models.KdfType(kdfType)
	v.Kdf.Memory = intFromNull(memory)
	v.Kdf.Parallelism = intFromNull(parallelism)
	if expiresAt.Valid {
		v.AccessTokenExpiresAt = expiresAt.Time
	}
	v.LastSyncAt = timeFromNull(lastSync)
	v.RevisionDate = timeFromNull(rev)

	return v, nil
}
