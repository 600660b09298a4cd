package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/models"
)

type sendRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewSendRepository constructs a SQLite-backed [SendRepository].
func NewSendRepository(db *DB, log *logger.Logger) SendRepository {
	log.Debug().Msg("creating send repository")
	return &sendRepository{db: db, logger: log}
}

// ReplaceSends upserts every send of the snapshot and removes the ones the
// server no longer returns. Sends are never edited locally, so unlike
// ciphers they can follow the server exactly.
func (r *sendRepository) ReplaceSends(ctx context.Context, vaultID string, sends []models.Send) error {
	err := r.db.WithTx(ctx, "ReplaceSends", func(tx *sql.Tx) error {
		ids := make([]string, 0, len(sends))
		for _, s := range sends {
			ids = append(ids, s.ID)
			if _, err := tx.ExecContext(ctx, upsertSend,
				s.ID,
				vaultID,
				s.AccessID,
				s.Type,
				s.Name,
				s.Notes,
				s.Key,
				s.Disabled,
				s.AccessCount,
				nullInt(s.MaxAccessCount),
				s.RevisionDate.UTC(),
				nullTime(s.ExpirationDate),
				nullTime(s.DeletionDate),
			); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
			}
		}

		del := sq.Delete("sends").Where(sq.Eq{"vault_id": vaultID})
		if len(ids) > 0 {
			del = del.Where(sq.NotEq{"id": ids})
		}
		query, args, err := del.ToSql()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "sendRepository.ReplaceSends").Str("vault_id", vaultID).Msg("failed to replace sends")
		return err
	}
	return nil
}

func (r *sendRepository) ListSends(ctx context.Context, vaultID string) ([]models.Send, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, listSends, vaultID)
	if err != nil {
		log.Err(err).Str("func", "sendRepository.ListSends").Msg("failed to query sends")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var sends []models.Send
	for rows.Next() {
		var (
			s                  models.Send
			maxAccess          sql.NullInt64
			expires, deletedAt sql.NullTime
		)
		if err = rows.Scan(
			&s.ID,
			&s.VaultID,
			&s.AccessID,
			&s.Type,
			&s.Name,
			&s.Notes,
			&s.Key,
			&s.Disabled,
			&s.AccessCount,
			&maxAccess,
			&s.RevisionDate,
			&expires,
			&deletedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		s.MaxAccessCount = intFromNull(maxAccess)
		s.RevisionDate = s.RevisionDate.UTC()
		s.ExpirationDate = timeFromNull(expires)
		s.DeletionDate = timeFromNull(deletedAt)
		sends = append(sends, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return sends, nil
}
