package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/models"
)

// AuthSession drives the login state machine against the identity service.
// The master password is stretched once per login attempt; continuations
// reuse the keys kept in [TwoFactorState].
type AuthSession interface {
	// Login resolves the server endpoints, learns the KDF parameters,
	// derives the keys and submits the password grant. The outcome is either
	// a success bundle, a two-factor challenge or an error.
	Login(ctx context.Context, email string, password []byte, serverURL string) AuthOutcome

	// SubmitCode answers a two-factor challenge. A rejected code leaves state
	// usable for another attempt.
	SubmitCode(ctx context.Context, state *TwoFactorState, code string, provider models.TwoFactorProvider, remember bool) AuthOutcome

	// SubmitNewDeviceOTP answers a new-device verification challenge.
	SubmitNewDeviceOTP(ctx context.Context, state *TwoFactorState, otp string) AuthOutcome

	// Refresh exchanges the vault's refresh token for a new access token and
	// rewrites only the token fields of the vault. A failure means the vault
	// needs a new login.
	Refresh(ctx context.Context, vaultID string) error
}

// VaultSessionStore is the only holder of decrypted vault keys and bearer
// tokens, and the only reader and writer of their wrapped copies. Calls for
// different vaults never wait on each other.
type VaultSessionStore interface {
	// SaveLogin creates or updates the vault for a successful login, wraps
	// and persists its keys and tokens, caches the session and selects the
	// vault. It takes ownership of the keys in success.
	SaveLogin(ctx context.Context, success *AuthSuccess) (models.Vault, error)

	// Unlock re-derives the master key from password and, when it matches
	// the stored one, caches the vault key and bearer token.
	Unlock(ctx context.Context, vaultID string, password []byte) error
	// Lock purges the cached session of one vault and cancels work bound to
	// it. Locking a locked vault is a no-op.
	Lock(ctx context.Context, vaultID string) error
	LockAll(ctx context.Context) error
	// Logout purges the session and deletes the vault with everything scoped
	// to it in one transaction.
	Logout(ctx context.Context, vaultID string) bool
	// IsUnlocked is true iff both a vault key and a bearer token are cached.
	IsUnlocked(vaultID string) bool

	// GetActiveVault returns the selected vault, else the default one, else
	// the oldest one, else nil.
	GetActiveVault(ctx context.Context) (*models.Vault, error)
	SetActiveVault(ctx context.Context, vaultID string) error
	ListVaults(ctx context.Context) ([]models.Vault, error)

	// AccessToken returns the cached bearer token, refreshing it first when
	// it expires within the safety window.
	AccessToken(ctx context.Context, vaultID string) (string, error)
	// Refresh forces a token refresh. Concurrent calls for one vault share a
	// single request.
	Refresh(ctx context.Context, vaultID string) error
	// SymmetricKey returns the cached vault key. The key is destroyed when
	// the vault is locked; callers must not keep it.
	SymmetricKey(vaultID string) (*crypto.SymmetricCryptoKey, error)
	// SessionContext returns a context that is cancelled when the vault is
	// locked or logged out. It is already cancelled for a locked vault.
	SessionContext(vaultID string) context.Context
	// RememberToken returns the two-factor remember token stored for email.
	RememberToken(ctx context.Context, email string) string
}

// SyncEngine reconciles the server snapshot of a vault with local storage.
type SyncEngine interface {
	// Sync runs one pass for vaultID. At most one pass per vault runs at a
	// time; a second call reports ErrSyncInProgress.
	Sync(ctx context.Context, vaultID string) models.SyncOutcome
	// ConfirmClear lets the next pass of vaultID apply a snapshot that would
	// otherwise be blocked for removing every local item.
	ConfirmClear(vaultID string)
}

// ConflictResolver applies user decisions to conflicts raised by sync.
type ConflictResolver interface {
	// ResolveWithLocal keeps the local entry and moves its baseline to the
	// server revision so the next push uploads it. Returns false when the
	// conflict is already resolved or its entry is gone.
	ResolveWithLocal(ctx context.Context, conflictID string) bool
	// ResolveWithServer overwrites the local entry with the stored server
	// snapshot, with the same failure contract.
	ResolveWithServer(ctx context.Context, conflictID string) bool
	ListUnresolved(ctx context.Context, vaultID string) ([]models.ConflictRecord, error)
	// Describe renders a line diff between the local entry and the server
	// snapshot. Requires the vault to be unlocked.
	Describe(ctx context.Context, conflictID string) (string, error)
}

// SyncJob periodically syncs every unlocked, connected, sync-enabled vault.
type SyncJob interface {
	// Start launches the background goroutine. It syncs every interval,
	// defaulting to 5 minutes if interval is zero or negative. Any previously
	// running job is stopped before the new one begins.
	Start(ctx context.Context, interval time.Duration)

	// Stop signals the background goroutine to exit and blocks until it has
	// fully terminated.
	Stop()

	// RunOnce syncs every eligible vault and returns the outcomes by vault id.
	RunOnce(ctx context.Context) map[string]models.SyncOutcome
}
