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

type conflictRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewConflictRepository constructs a SQLite-backed [ConflictRepository].
func NewConflictRepository(db *DB, log *logger.Logger) ConflictRepository {
	log.Debug().Msg("creating conflict repository")
	return &conflictRepository{db: db, logger: log}
}

func upsertConflict(ctx context.Context, ex execer, vaultID string, c models.ConflictRecord) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := ex.ExecContext(ctx, upsertOpenConflict,
		c.ID,
		vaultID,
		c.EntryID,
		c.CipherID,
		string(c.Type),
		c.ServerSnapshot,
		nullTime(c.ServerRevision),
		nullTime(c.LocalRevision),
		c.EntryTitle,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *conflictRepository) GetConflict(ctx context.Context, conflictID string) (models.ConflictRecord, error) {
	c, err := scanConflict(r.db.QueryRowContext(ctx, getConflictByID, conflictID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConflictRecord{}, ErrConflictNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "conflictRepository.GetConflict").Str("conflict_id", conflictID).Msg("failed to scan conflict")
		return models.ConflictRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return c, nil
}

func (r *conflictRepository) ListUnresolved(ctx context.Context, vaultID string) ([]models.ConflictRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.Select(conflictColumns).
		From("conflicts").
		Where(sq.Eq{"vault_id": vaultID, "resolved": false}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "conflictRepository.ListUnresolved").Msg("failed to query conflicts")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var conflicts []models.ConflictRecord
	for rows.Next() {
		c, scanErr := scanConflict(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		conflicts = append(conflicts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return conflicts, nil
}

func (r *conflictRepository) CountUnresolved(ctx context.Context, vaultID string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("conflicts").
		Where(sq.Eq{"vault_id": vaultID, "resolved": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var n int
	if err = r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return n, nil
}

func (r *conflictRepository) ResolveKeepLocal(ctx context.Context, conflictID string, entry models.LoginEntry, at time.Time) error {
	err := r.resolve(ctx, conflictID, models.ResolutionKeepLocal, at, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, updateEntryBaseline,
			nullString(entry.CipherID),
			nullTime(entry.ServerRevision),
			nullTime(entry.LastSyncedAt),
			at.UTC(),
			entry.ID,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "conflictRepository.ResolveKeepLocal").Str("conflict_id", conflictID).Msg("failed to resolve conflict")
	}
	return err
}

func (r *conflictRepository) ResolveKeepServer(ctx context.Context, conflictID string, entry models.LoginEntry, at time.Time) error {
	err := r.resolve(ctx, conflictID, models.ResolutionKeepServer, at, func(tx *sql.Tx) error {
		entry.UpdatedAt = at.UTC()
		return saveEntry(ctx, tx, entry)
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "conflictRepository.ResolveKeepServer").Str("conflict_id", conflictID).Msg("failed to resolve conflict")
	}
	return err
}

// resolve checks that the conflict is still open and its entry still live,
// runs apply and closes the conflict, all in one transaction.
func (r *conflictRepository) resolve(ctx context.Context, conflictID string, resolution models.Resolution, at time.Time, apply func(tx *sql.Tx) error) error {
	return r.db.WithTx(ctx, "Resolve"+string(resolution), func(tx *sql.Tx) error {
		c, err := scanConflict(tx.QueryRowContext(ctx, getConflictByID, conflictID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflictNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if c.Resolved {
			return ErrConflictAlreadyResolved
		}

		var entryID string
		err = tx.QueryRowContext(ctx, getLiveEntryForUpdate, c.EntryID).Scan(&entryID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrScanningRow, err)
		}

		if err = apply(tx); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, markConflictResolved, string(resolution), at.UTC(), conflictID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		return expectOneRow(res, ErrConflictAlreadyResolved)
	})
}

func scanConflict(row rowScanner) (models.ConflictRecord, error) {
	var (
		c                   models.ConflictRecord
		conflictType        string
		resolution          sql.NullString
		serverRev, localRev sql.NullTime
		resolvedAt          sql.NullTime
	)

	err := row.Scan(
		&c.ID,
		&c.VaultID,
		&c.EntryID,
		&c.CipherID,
		&conflictType,
		&c.ServerSnapshot,
		&serverRev,
		&localRev,
		&c.EntryTitle,
		&c.Resolved,
		&resolution,
		&resolvedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return models.ConflictRecord{}, err
	}

	c.Type = models.ConflictType(conflictType)
	if resolution.Valid {
		res := models.Resolution(resolution.String)
		c.Resolution = &res
	}
	c.ServerRevision = timeFromNull(serverRev)
	c.LocalRevision = timeFromNull(localRev)
	c.ResolvedAt = timeFromNull(resolvedAt)
	c.CreatedAt = c.CreatedAt.UTC()

	return c, nil
}
