package service

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/store"
	"github.com/MKhiriev/go-vault-sync/models"
)

const (
	testServerTime = "2006-01-02T15:04:05.000Z"
	testPassword   = "correct horse"
)

var testURLs = models.ServerURLs{
	Vault:    "https://vault.bitwarden.com",
	Identity: "https://identity.bitwarden.com",
	API:      "https://api.bitwarden.com",
}

func fastKdf() models.KdfConfig {
	return models.KdfConfig{Type: models.KdfPBKDF2SHA256, Iterations: crypto.MinPBKDF2Iterations}
}

func newTestStorages(t *testing.T) *store.ClientStorages {
	t.Helper()
	s, err := store.NewClientStorages(context.Background(), config.ClientStorage{DB: config.ClientDB{DSN: ":memory:"}}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestWrapper(t *testing.T) crypto.SecretWrapper {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	w, err := crypto.NewStaticWrapper(key)
	require.NoError(t, err)
	return w
}

// newSuccess derives the keys for email and password the way a login does
// and packs them into a success bundle.
func newSuccess(t *testing.T, email, password string, expiresAt time.Time) *AuthSuccess {
	t.Helper()

	raw, err := crypto.DeriveMasterKey([]byte(password), email, fastKdf())
	require.NoError(t, err)
	stretched, err := crypto.ExpandSessionKey(raw)
	require.NoError(t, err)
	master, err := crypto.NewSymmetricCryptoKey(raw, nil)
	require.NoError(t, err)

	return &AuthSuccess{
		Email:        email,
		URLs:         testURLs,
		Kdf:          fastKdf(),
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		ExpiresIn:    3600,
		ExpiresAt:    expiresAt,
		MasterKey:    master,
		SymmetricKey: stretched,
	}
}

// loginVault stores an unlocked vault for email with an hour-long token.
func loginVault(t *testing.T, sessions VaultSessionStore, email string) models.Vault {
	t.Helper()
	v, err := sessions.SaveLogin(context.Background(), newSuccess(t, email, testPassword, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	return v
}

func sealString(t *testing.T, key *crypto.SymmetricCryptoKey, s string) string {
	t.Helper()
	out, err := crypto.EncryptToString([]byte(s), key)
	require.NoError(t, err)
	return out
}

func openString(t *testing.T, key *crypto.SymmetricCryptoKey, s string) string {
	t.Helper()
	out, err := crypto.DecryptString(s, key)
	require.NoError(t, err)
	return string(out)
}

func serverTime(t time.Time) string {
	return t.UTC().Format(testServerTime)
}

// loginCipher builds a server login cipher encrypted under key.
func loginCipher(t *testing.T, key *crypto.SymmetricCryptoKey, id, name, password string, revision time.Time) models.CipherResponse {
	t.Helper()
	username := sealString(t, key, "alice")
	pass := sealString(t, key, password)
	uri := sealString(t, key, "https://example.com")
	return models.CipherResponse{
		ID:   id,
		Type: models.CipherLogin,
		Name: sealString(t, key, name),
		Login: &models.CipherLoginData{
			Username: &username,
			Password: &pass,
			Uris:     []models.CipherURI{{URI: &uri}},
		},
		RevisionDate: serverTime(revision),
	}
}

func ptr[T any](v T) *T { return &v }
