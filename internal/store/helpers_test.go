package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", withDefaultParams(":memory:", false))
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	db := NewDB(conn, logger.Nop())
	require.NoError(t, db.Migrate())
	return db
}

func newTestStorages(t *testing.T) *ClientStorages {
	t.Helper()
	return NewClientStoragesFromDB(newTestDB(t), logger.Nop())
}

func seedVault(t *testing.T, s *ClientStorages, id, email string) models.Vault {
	t.Helper()

	v, err := s.Vaults.CreateVault(context.Background(), models.Vault{
		ID:    id,
		Email: email,
		URLs: models.ServerURLs{
			Vault:    "https://vault.bitwarden.com",
			Identity: "https://identity.bitwarden.com",
			API:      "https://api.bitwarden.com",
		},
		Kdf:         models.DefaultKdfConfig(),
		Locked:      true,
		Connected:   true,
		SyncEnabled: true,
	})
	require.NoError(t, err)
	return v
}

func ptr[T any](v T) *T { return &v }

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
