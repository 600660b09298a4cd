package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/store"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/models"
)

// TokenSafetyWindow is how long before expiry an access token is refreshed.
const TokenSafetyWindow = 60 * time.Second

// vaultSession is the in-memory state of one unlocked vault.
type vaultSession struct {
	key         *crypto.SymmetricCryptoKey
	accessToken string
	expiresAt   time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *vaultSession) purge() {
	s.cancel()
	s.key.Destroy()
	s.accessToken = ""
}

type vaultSessionStore struct {
	vaults   store.VaultRepository
	wrapper  crypto.SecretWrapper
	identity adapter.IdentityClient
	ids      utils.UUIDGenerator

	mu       sync.Mutex
	sessions map[string]*vaultSession
	locks    map[string]*sync.Mutex

	refreshes singleflight.Group

	now    func() time.Time
	logger *logger.Logger
}

// NewVaultSessionStore creates an empty session store: every vault starts
// locked.
func NewVaultSessionStore(vaults store.VaultRepository, wrapper crypto.SecretWrapper, identity adapter.IdentityClient, log *logger.Logger) VaultSessionStore {
	return &vaultSessionStore{
		vaults:   vaults,
		wrapper:  wrapper,
		identity: identity,
		sessions: make(map[string]*vaultSession),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
		logger:   log,
	}
}

// vaultLock returns the mutex serialising session changes of one vault.
func (s *vaultSessionStore) vaultLock(vaultID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[vaultID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[vaultID] = l
	}
	return l
}

func (s *vaultSessionStore) session(vaultID string) (*vaultSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[vaultID]
	return sess, ok
}

// cache replaces the session of vaultID. Callers hold the vault lock.
func (s *vaultSessionStore) cache(vaultID string, key *crypto.SymmetricCryptoKey, token string, expiresAt time.Time) {
	ctx, cancel := context.WithCancel(context.Background())
	next := &vaultSession{key: key, accessToken: token, expiresAt: expiresAt, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	prev := s.sessions[vaultID]
	s.sessions[vaultID] = next
	s.mu.Unlock()

	if prev != nil {
		prev.purge()
	}
}

// evict drops the session of vaultID. Callers hold the vault lock.
func (s *vaultSessionStore) evict(vaultID string) {
	s.mu.Lock()
	sess := s.sessions[vaultID]
	delete(s.sessions, vaultID)
	s.mu.Unlock()

	if sess != nil {
		sess.purge()
	}
}

// SaveLogin implements [VaultSessionStore].
func (s *vaultSessionStore) SaveLogin(ctx context.Context, success *AuthSuccess) (models.Vault, error) {
	const op = "vaultSessionStore.SaveLogin"
	log := logger.FromContext(ctx)
	defer success.MasterKey.Destroy()

	v, err := s.vaults.GetVaultByEmail(ctx, success.Email)
	isNew := errors.Is(err, store.ErrVaultNotFound)
	if err != nil && !isNew {
		success.SymmetricKey.Destroy()
		return models.Vault{}, mapStoreError(op, err)
	}
	if isNew {
		v = models.Vault{ID: s.ids.Generate(), Email: success.Email, SyncEnabled: true}
	}

	l := s.vaultLock(v.ID)
	l.Lock()
	defer l.Unlock()

	v.URLs = success.URLs
	v.Kdf = success.Kdf
	v.Locked = false
	v.Connected = true
	if err = s.wrapLogin(&v, success); err != nil {
		success.SymmetricKey.Destroy()
		return models.Vault{}, mapStoreError(op, err)
	}

	if isNew {
		v, err = s.vaults.CreateVault(ctx, v)
	} else {
		err = s.vaults.UpdateVault(ctx, v)
	}
	if err != nil {
		success.SymmetricKey.Destroy()
		log.Err(err).Str("func", op).Msg("failed to persist vault")
		return models.Vault{}, mapStoreError(op, err)
	}

	if err = s.vaults.SetActiveVaultID(ctx, v.ID); err != nil {
		log.Warn().Err(err).Str("func", op).Msg("failed to select vault")
	}

	s.cache(v.ID, success.SymmetricKey, success.AccessToken, success.ExpiresAt)
	log.Info().Str("func", op).Str("vault_id", v.ID).Bool("created", isNew).Msg("login stored")
	return v, nil
}

func (s *vaultSessionStore) wrapLogin(v *models.Vault, success *AuthSuccess) error {
	master, err := success.MasterKey.EncKeyCopy()
	if err != nil {
		return err
	}
	defer crypto.Wipe(master)
	enc, err := success.SymmetricKey.EncKeyCopy()
	if err != nil {
		return err
	}
	defer crypto.Wipe(enc)
	mac, err := success.SymmetricKey.MacKeyCopy()
	if err != nil {
		return err
	}
	defer crypto.Wipe(mac)

	blobs := []struct {
		dst   *string
		plain []byte
	}{
		{&v.MasterKeyWrapped, master},
		{&v.EncKeyWrapped, enc},
		{&v.MacKeyWrapped, mac},
		{&v.AccessTokenWrapped, []byte(success.AccessToken)},
		{&v.RefreshTokenWrapped, []byte(success.RefreshToken)},
	}
	if success.RememberToken != "" {
		blobs = append(blobs, struct {
			dst   *string
			plain []byte
		}{&v.TwoFactorRememberWrapped, []byte(success.RememberToken)})
	}

	for _, b := range blobs {
		if len(b.plain) == 0 {
			*b.dst = ""
			continue
		}
		wrapped, err := s.wrapper.Wrap(b.plain)
		if err != nil {
			return fmt.Errorf("wrap vault secret: %w", err)
		}
		*b.dst = wrapped
	}
	v.AccessTokenExpiresAt = success.ExpiresAt
	return nil
}

// Unlock implements [VaultSessionStore].
func (s *vaultSessionStore) Unlock(ctx context.Context, vaultID string, password []byte) error {
	const op = "vaultSessionStore.Unlock"
	log := logger.FromContext(ctx).With().Str("func", op).Str("vault_id", vaultID).Logger()

	l := s.vaultLock(vaultID)
	l.Lock()
	defer l.Unlock()

	v, err := s.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return mapStoreError(op, err)
	}
	if !v.HasKeyMaterial() || v.AccessTokenWrapped == "" {
		return newError(KindState, op, app.MsgReloginRequired, ErrReloginRequired)
	}

	derived, err := crypto.DeriveMasterKey(password, v.Email, v.Kdf)
	if err != nil {
		return mapStoreError(op, err)
	}
	defer crypto.Wipe(derived)

	stored, err := s.wrapper.Unwrap(v.MasterKeyWrapped)
	if err != nil {
		log.Warn().Err(err).Msg("stored master key cannot be unwrapped")
		return newError(KindState, op, app.MsgReloginRequired, errors.Join(ErrReloginRequired, err))
	}
	defer crypto.Wipe(stored)

	if !crypto.EqualKeys(derived, stored) {
		log.Info().Msg("unlock rejected")
		return newError(KindCredential, op, app.MsgWrongPassword, ErrWrongPassword)
	}

	key, token, err := s.unwrapSession(v)
	if err != nil {
		log.Warn().Err(err).Msg("stored session cannot be unwrapped")
		return newError(KindState, op, app.MsgReloginRequired, errors.Join(ErrReloginRequired, err))
	}

	if err = s.vaults.SetLocked(ctx, vaultID, false); err != nil {
		key.Destroy()
		return mapStoreError(op, err)
	}

	s.cache(vaultID, key, token, v.AccessTokenExpiresAt)
	log.Info().Msg("vault unlocked")
	return nil
}

func (s *vaultSessionStore) unwrapSession(v models.Vault) (*crypto.SymmetricCryptoKey, string, error) {
	enc, err := s.wrapper.Unwrap(v.EncKeyWrapped)
	if err != nil {
		return nil, "", err
	}
	mac, err := s.wrapper.Unwrap(v.MacKeyWrapped)
	if err != nil {
		crypto.Wipe(enc)
		return nil, "", err
	}
	key, err := crypto.NewSymmetricCryptoKey(enc, mac)
	if err != nil {
		return nil, "", err
	}

	token, err := s.wrapper.Unwrap(v.AccessTokenWrapped)
	if err != nil {
		key.Destroy()
		return nil, "", err
	}
	return key, string(token), nil
}

// Lock implements [VaultSessionStore].
func (s *vaultSessionStore) Lock(ctx context.Context, vaultID string) error {
	l := s.vaultLock(vaultID)
	l.Lock()
	defer l.Unlock()

	s.evict(vaultID)
	if err := s.vaults.SetLocked(ctx, vaultID, true); err != nil && !errors.Is(err, store.ErrVaultNotFound) {
		return mapStoreError("vaultSessionStore.Lock", err)
	}
	logger.FromContext(ctx).Info().Str("func", "vaultSessionStore.Lock").Str("vault_id", vaultID).Msg("vault locked")
	return nil
}

// LockAll implements [VaultSessionStore].
func (s *vaultSessionStore) LockAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		l := s.vaultLock(id)
		l.Lock()
		s.evict(id)
		l.Unlock()
	}

	if err := s.vaults.SetLocked(ctx, "", true); err != nil {
		return mapStoreError("vaultSessionStore.LockAll", err)
	}
	return nil
}

// Logout implements [VaultSessionStore].
func (s *vaultSessionStore) Logout(ctx context.Context, vaultID string) bool {
	log := logger.FromContext(ctx).With().Str("func", "vaultSessionStore.Logout").Str("vault_id", vaultID).Logger()

	l := s.vaultLock(vaultID)
	l.Lock()
	defer l.Unlock()

	s.evict(vaultID)
	if err := s.vaults.DeleteVault(ctx, vaultID); err != nil {
		log.Err(err).Msg("logout failed")
		return false
	}

	log.Info().Msg("vault logged out")
	return true
}

// IsUnlocked implements [VaultSessionStore].
func (s *vaultSessionStore) IsUnlocked(vaultID string) bool {
	sess, ok := s.session(vaultID)
	if !ok {
		return false
	}

	l := s.vaultLock(vaultID)
	l.Lock()
	defer l.Unlock()
	return sess.key.Alive() && sess.accessToken != ""
}

// GetActiveVault implements [VaultSessionStore].
func (s *vaultSessionStore) GetActiveVault(ctx context.Context) (*models.Vault, error) {
	const op = "vaultSessionStore.GetActiveVault"

	activeID, err := s.vaults.GetActiveVaultID(ctx)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	if activeID != "" {
		v, err := s.vaults.GetVault(ctx, activeID)
		if err == nil {
			return &v, nil
		}
		if !errors.Is(err, store.ErrVaultNotFound) {
			return nil, mapStoreError(op, err)
		}
	}

	vaults, err := s.vaults.ListVaults(ctx)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	if len(vaults) == 0 {
		return nil, nil
	}
	for i := range vaults {
		if vaults[i].IsDefault {
			return &vaults[i], nil
		}
	}
	return &vaults[0], nil
}

// SetActiveVault implements [VaultSessionStore].
func (s *vaultSessionStore) SetActiveVault(ctx context.Context, vaultID string) error {
	const op = "vaultSessionStore.SetActiveVault"
	if _, err := s.vaults.GetVault(ctx, vaultID); err != nil {
		return mapStoreError(op, err)
	}
	return mapStoreError(op, s.vaults.SetActiveVaultID(ctx, vaultID))
}

// ListVaults implements [VaultSessionStore].
func (s *vaultSessionStore) ListVaults(ctx context.Context) ([]models.Vault, error) {
	vaults, err := s.vaults.ListVaults(ctx)
	if err != nil {
		return nil, mapStoreError("vaultSessionStore.ListVaults", err)
	}
	return vaults, nil
}

// AccessToken implements [VaultSessionStore].
func (s *vaultSessionStore) AccessToken(ctx context.Context, vaultID string) (string, error) {
	token, expiresAt, ok := s.cachedToken(vaultID)
	if !ok {
		return "", newError(KindState, "vaultSessionStore.AccessToken", app.MsgVaultLocked, ErrVaultLocked)
	}
	if !utils.ExpiresWithin(expiresAt, s.now(), TokenSafetyWindow) {
		return token, nil
	}

	if err := s.Refresh(ctx, vaultID); err != nil {
		return "", err
	}
	token, _, ok = s.cachedToken(vaultID)
	if !ok {
		return "", newError(KindState, "vaultSessionStore.AccessToken", app.MsgVaultLocked, ErrVaultLocked)
	}
	return token, nil
}

func (s *vaultSessionStore) cachedToken(vaultID string) (string, time.Time, bool) {
	sess, ok := s.session(vaultID)
	if !ok {
		return "", time.Time{}, false
	}

	l := s.vaultLock(vaultID)
	l.Lock()
	defer l.Unlock()
	if !sess.key.Alive() || sess.accessToken == "" {
		return "", time.Time{}, false
	}
	return sess.accessToken, sess.expiresAt, true
}

// Refresh implements [VaultSessionStore].
func (s *vaultSessionStore) Refresh(ctx context.Context, vaultID string) error {
	_, err, shared := s.refreshes.Do(vaultID, func() (any, error) {
		return nil, s.refresh(ctx, vaultID)
	})
	if shared {
		logger.FromContext(ctx).Debug().Str("func", "vaultSessionStore.Refresh").Str("vault_id", vaultID).Msg("joined in-flight refresh")
	}
	return err
}

func (s *vaultSessionStore) refresh(ctx context.Context, vaultID string) error {
	const op = "vaultSessionStore.Refresh"
	log := logger.FromContext(ctx).With().Str("func", op).Str("vault_id", vaultID).Logger()

	v, err := s.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return mapStoreError(op, err)
	}
	if v.RefreshTokenWrapped == "" {
		return newError(KindCredential, op, app.MsgReloginRequired, ErrReloginRequired)
	}
	refreshToken, err := s.wrapper.Unwrap(v.RefreshTokenWrapped)
	if err != nil {
		return newError(KindCredential, op, app.MsgReloginRequired, errors.Join(ErrReloginRequired, err))
	}

	res, err := s.identity.RefreshGrant(ctx, v.URLs.Identity, string(refreshToken))
	crypto.Wipe(refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh request failed")
		return mapAdapterError(op, err)
	}
	if res.Kind != models.GrantToken {
		log.Warn().Str("reason", res.ErrorMessage).Msg("refresh rejected")
		if res.Retryable {
			return newError(KindNetwork, op, app.MsgCheckConnection, withMessage(ErrGrantFailed, res.ErrorMessage))
		}
		return newError(KindCredential, op, app.MsgReloginRequired, withMessage(ErrReloginRequired, res.ErrorMessage))
	}

	expiresAt := utils.AccessTokenExpiry(res.Token.AccessToken, int(res.Token.ExpiresIn), s.now())
	tokens := models.VaultTokens{
		RefreshTokenWrapped:  v.RefreshTokenWrapped,
		AccessTokenExpiresAt: expiresAt,
	}
	if tokens.AccessTokenWrapped, err = s.wrapper.Wrap([]byte(res.Token.AccessToken)); err != nil {
		return mapStoreError(op, err)
	}
	if res.Token.RefreshToken != "" {
		if tokens.RefreshTokenWrapped, err = s.wrapper.Wrap([]byte(res.Token.RefreshToken)); err != nil {
			return mapStoreError(op, err)
		}
	}
	if err = s.vaults.UpdateTokens(ctx, vaultID, tokens); err != nil {
		return mapStoreError(op, err)
	}

	l := s.vaultLock(vaultID)
	l.Lock()
	if sess, ok := s.session(vaultID); ok {
		sess.accessToken = res.Token.AccessToken
		sess.expiresAt = expiresAt
	}
	l.Unlock()

	log.Info().Time("expires_at", expiresAt).Msg("access token refreshed")
	return nil
}

// SymmetricKey implements [VaultSessionStore].
func (s *vaultSessionStore) SymmetricKey(vaultID string) (*crypto.SymmetricCryptoKey, error) {
	sess, ok := s.session(vaultID)
	if !ok || !sess.key.Alive() {
		return nil, newError(KindState, "vaultSessionStore.SymmetricKey", app.MsgVaultLocked, ErrVaultLocked)
	}
	return sess.key, nil
}

var closedContext = func() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}()

// SessionContext implements [VaultSessionStore].
func (s *vaultSessionStore) SessionContext(vaultID string) context.Context {
	sess, ok := s.session(vaultID)
	if !ok {
		return closedContext
	}
	return sess.ctx
}

// RememberToken implements [VaultSessionStore].
func (s *vaultSessionStore) RememberToken(ctx context.Context, email string) string {
	v, err := s.vaults.GetVaultByEmail(ctx, email)
	if err != nil || v.TwoFactorRememberWrapped == "" {
		return ""
	}
	token, err := s.wrapper.Unwrap(v.TwoFactorRememberWrapped)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("func", "vaultSessionStore.RememberToken").Msg("remember token cannot be unwrapped")
		return ""
	}
	return string(token)
}
