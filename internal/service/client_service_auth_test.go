package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/mock"
	"github.com/MKhiriev/go-vault-sync/models"
)

func newTestAuth(t *testing.T, ctrl *gomock.Controller) (AuthSession, VaultSessionStore, *mock.MockIdentityClient) {
	t.Helper()
	storages := newTestStorages(t)
	identity := mock.NewMockIdentityClient(ctrl)
	sessions := NewVaultSessionStore(storages.Vaults, newTestWrapper(t), identity, logger.Nop())
	return NewAuthSession(identity, sessions, logger.Nop()), sessions, identity
}

func expectPrelogin(identity *mock.MockIdentityClient, email string) {
	identity.EXPECT().
		Prelogin(gomock.Any(), testURLs.Identity, email).
		Return(models.PreloginResponse{
			Kdf:           ptr(models.KdfPBKDF2SHA256),
			KdfIterations: ptr(crypto.MinPBKDF2Iterations),
		}, nil)
}

func expectedHash(t *testing.T, email, password string) string {
	t.Helper()
	raw, err := crypto.DeriveMasterKey([]byte(password), email, fastKdf())
	require.NoError(t, err)
	return crypto.MasterPasswordHash(raw, []byte(password))
}

func tokenGrant(access string) models.GrantResult {
	return models.GrantResult{Kind: models.GrantToken, Token: models.TokenResponse{
		AccessToken:  access,
		RefreshToken: "refresh",
		ExpiresIn:    3600,
	}}
}

// ── Login ────────────────────────────────────────────────────────────────────

func TestAuthSession_Login_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, sessions, identity := newTestAuth(t, ctrl)
	ctx := context.Background()

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().
		PasswordGrant(gomock.Any(), testURLs.Identity, models.PasswordCredentials{
			Email:        "a@b.com",
			PasswordHash: expectedHash(t, "a@b.com", "correct"),
		}).
		Return(tokenGrant("access-1"), nil)

	outcome := auth.Login(ctx, " a@b.com ", []byte("correct"), "")
	require.Equal(t, AuthSucceeded, outcome.Kind, "err: %v", outcome.Err)
	require.NotNil(t, outcome.Success)

	s := outcome.Success
	assert.Equal(t, "a@b.com", s.Email)
	assert.Equal(t, testURLs, s.URLs)
	assert.Equal(t, "access-1", s.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Minute)
	assert.True(t, s.MasterKey.Alive())
	assert.True(t, s.SymmetricKey.Alive())
	assert.True(t, s.SymmetricKey.HasMac())

	v, err := sessions.SaveLogin(ctx, s)
	require.NoError(t, err)
	assert.True(t, sessions.IsUnlocked(v.ID))
	assert.False(t, s.MasterKey.Alive())
}

func TestAuthSession_Login_Rejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().
		PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.GrantResult{Kind: models.GrantError, ErrorMessage: "Username or password is incorrect. Try again."}, nil)

	outcome := auth.Login(context.Background(), "a@b.com", []byte("wrong"), "")
	require.Equal(t, AuthFailed, outcome.Kind)
	assert.True(t, IsCredential(outcome.Err))
	assert.ErrorIs(t, outcome.Err, ErrInvalidCredentials)
	assert.Contains(t, outcome.Err.Error(), "Username or password is incorrect")
	assert.Equal(t, app.MsgInvalidCredentials, UserMessage(outcome.Err))
}

func TestAuthSession_Login_NetworkFailures(t *testing.T) {
	tests := []struct {
		name   string
		result models.GrantResult
		err    error
	}{
		{
			name: "transport",
			err:  fmt.Errorf("PasswordGrant: %w: connection refused", adapter.ErrTransport),
		},
		{
			name:   "retryable server answer",
			result: models.GrantResult{Kind: models.GrantError, ErrorMessage: "http 503: Service Unavailable", Retryable: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			auth, _, identity := newTestAuth(t, ctrl)

			expectPrelogin(identity, "a@b.com")
			identity.EXPECT().PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.result, tt.err)

			outcome := auth.Login(context.Background(), "a@b.com", []byte("correct"), "")
			require.Equal(t, AuthFailed, outcome.Kind)
			assert.True(t, IsNetwork(outcome.Err))
			assert.True(t, Retryable(outcome.Err))
			assert.Equal(t, app.MsgCheckConnection, UserMessage(outcome.Err))
		})
	}
}

func TestAuthSession_Login_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		serverURL string
		wantKind  ErrorKind
	}{
		{name: "empty email", email: " ", password: "p", wantKind: KindCredential},
		{name: "empty password", email: "a@b.com", password: "", wantKind: KindCredential},
		{name: "bad server url", email: "a@b.com", password: "p", serverURL: "ftp://vault.example.com", wantKind: KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			auth, _, _ := newTestAuth(t, ctrl)

			outcome := auth.Login(context.Background(), tt.email, []byte(tt.password), tt.serverURL)
			require.Equal(t, AuthFailed, outcome.Kind)
			assert.Equal(t, tt.wantKind, KindOf(outcome.Err))
		})
	}
}

func TestAuthSession_Login_SelfHostedURLs(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)

	identity.EXPECT().
		Prelogin(gomock.Any(), "https://vault.example.com/identity", "a@b.com").
		Return(models.PreloginResponse{Kdf: ptr(models.KdfPBKDF2SHA256), KdfIterations: ptr(crypto.MinPBKDF2Iterations)}, nil)
	identity.EXPECT().
		PasswordGrant(gomock.Any(), "https://vault.example.com/identity", gomock.Any()).
		Return(tokenGrant("access-1"), nil)

	outcome := auth.Login(context.Background(), "a@b.com", []byte("correct"), "vault.example.com")
	require.Equal(t, AuthSucceeded, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, "https://vault.example.com/api", outcome.Success.URLs.API)
	outcome.Success.Destroy()
}

func TestAuthSession_Login_SendsStoredRememberToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, sessions, identity := newTestAuth(t, ctrl)
	ctx := context.Background()

	stored := newSuccess(t, "a@b.com", "correct", time.Now().Add(time.Hour))
	stored.RememberToken = "remember-1"
	_, err := sessions.SaveLogin(ctx, stored)
	require.NoError(t, err)

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().
		PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, creds models.PasswordCredentials) (models.GrantResult, error) {
			assert.Equal(t, "remember-1", creds.RememberToken)
			return tokenGrant("access-2"), nil
		})

	outcome := auth.Login(ctx, "a@b.com", []byte("correct"), "")
	require.Equal(t, AuthSucceeded, outcome.Kind)
	outcome.Success.Destroy()
}

func TestAuthSession_Login_DecryptsAccountKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)

	raw, err := crypto.DeriveMasterKey([]byte("correct"), "a@b.com", fastKdf())
	require.NoError(t, err)
	stretched, err := crypto.ExpandSessionKey(raw)
	require.NoError(t, err)
	defer stretched.Destroy()

	accountKey := make([]byte, 2*crypto.KeySize)
	_, err = rand.Read(accountKey)
	require.NoError(t, err)
	protected, err := crypto.EncryptToString(accountKey, stretched)
	require.NoError(t, err)

	grant := tokenGrant("access-1")
	grant.Token.Key = protected
	grant.Token.Kdf = ptr(models.KdfPBKDF2SHA256)
	grant.Token.KdfIterations = ptr(crypto.MinPBKDF2Iterations + 1000)

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).Return(grant, nil)

	outcome := auth.Login(context.Background(), "a@b.com", []byte("correct"), "")
	require.Equal(t, AuthSucceeded, outcome.Kind, "err: %v", outcome.Err)
	defer outcome.Success.Destroy()

	enc, err := outcome.Success.SymmetricKey.EncKeyCopy()
	require.NoError(t, err)
	assert.Equal(t, accountKey[:crypto.KeySize], enc)
	assert.Equal(t, crypto.MinPBKDF2Iterations+1000, outcome.Success.Kdf.Iterations)
}

func TestAuthSession_Login_UndecryptableAccountKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)

	grant := tokenGrant("access-1")
	grant.Token.Key = "2.AAAA|BBBB|CCCC"

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).Return(grant, nil)

	outcome := auth.Login(context.Background(), "a@b.com", []byte("correct"), "")
	require.Equal(t, AuthFailed, outcome.Kind)
	assert.True(t, IsCrypto(outcome.Err))
}

// ── Two-factor ───────────────────────────────────────────────────────────────

func TestAuthSession_TwoFactorFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)
	ctx := context.Background()
	hash := expectedHash(t, "a@b.com", "correct")

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().
		PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.GrantResult{
			Kind:      models.GrantTwoFactor,
			Providers: []models.TwoFactorProvider{models.ProviderAuthenticator, models.ProviderEmail},
		}, nil)

	outcome := auth.Login(ctx, "a@b.com", []byte("correct"), "")
	require.Equal(t, AuthTwoFactorRequired, outcome.Kind)
	state := outcome.TwoFactor
	require.NotNil(t, state)
	assert.Equal(t, []models.TwoFactorProvider{models.ProviderAuthenticator, models.ProviderEmail}, state.Providers)
	assert.False(t, state.NewDevice())

	creds := models.PasswordCredentials{Email: "a@b.com", PasswordHash: hash}
	gomock.InOrder(
		identity.EXPECT().
			TwoFactorGrant(gomock.Any(), testURLs.Identity, creds, models.TwoFactorCode{Code: "000000", Provider: models.ProviderAuthenticator, Remember: true}).
			Return(models.GrantResult{Kind: models.GrantError, ErrorMessage: "Two-step token is invalid. Try again."}, nil),
		identity.EXPECT().
			TwoFactorGrant(gomock.Any(), testURLs.Identity, creds, models.TwoFactorCode{Code: "123456", Provider: models.ProviderAuthenticator, Remember: true}).
			DoAndReturn(func(context.Context, string, models.PasswordCredentials, models.TwoFactorCode) (models.GrantResult, error) {
				res := tokenGrant("access-1")
				res.Token.TwoFactorToken = "remember-xyz"
				return res, nil
			}),
	)

	rejected := auth.SubmitCode(ctx, state, "000000", models.ProviderAuthenticator, true)
	require.Equal(t, AuthFailed, rejected.Kind)
	assert.True(t, IsCredential(rejected.Err))
	assert.Equal(t, app.MsgInvalidTwoFactorCode, UserMessage(rejected.Err))

	accepted := auth.SubmitCode(ctx, state, "123456", models.ProviderAuthenticator, true)
	require.Equal(t, AuthSucceeded, accepted.Kind, "err: %v", accepted.Err)
	assert.Equal(t, "remember-xyz", accepted.Success.RememberToken)
	accepted.Success.Destroy()

	// The keys moved into the success bundle.
	again := auth.SubmitCode(ctx, state, "123456", models.ProviderAuthenticator, true)
	require.Equal(t, AuthFailed, again.Kind)
	assert.ErrorIs(t, again.Err, ErrChallengeExpired)
}

func TestAuthSession_SubmitCode_EmptyCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().
		PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.GrantResult{Kind: models.GrantTwoFactor, Providers: []models.TwoFactorProvider{models.ProviderAuthenticator}}, nil)

	outcome := auth.Login(context.Background(), "a@b.com", []byte("correct"), "")
	require.Equal(t, AuthTwoFactorRequired, outcome.Kind)
	defer outcome.TwoFactor.Discard()

	res := auth.SubmitCode(context.Background(), outcome.TwoFactor, "  ", models.ProviderAuthenticator, false)
	require.Equal(t, AuthFailed, res.Kind)
	assert.True(t, IsCredential(res.Err))
}

func TestAuthSession_SubmitCode_DiscardedState(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, _ := newTestAuth(t, ctrl)

	state := &TwoFactorState{Email: "a@b.com", URLs: testURLs}
	state.Discard()

	res := auth.SubmitCode(context.Background(), state, "123456", models.ProviderAuthenticator, false)
	require.Equal(t, AuthFailed, res.Kind)
	assert.True(t, IsState(res.Err))
	assert.ErrorIs(t, res.Err, ErrChallengeExpired)

	res = auth.SubmitCode(context.Background(), nil, "123456", models.ProviderAuthenticator, false)
	assert.ErrorIs(t, res.Err, ErrChallengeExpired)
}

func TestAuthSession_NewDeviceVerification(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, _, identity := newTestAuth(t, ctrl)
	ctx := context.Background()

	expectPrelogin(identity, "a@b.com")
	identity.EXPECT().
		PasswordGrant(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.GrantResult{Kind: models.GrantTwoFactor, Providers: []models.TwoFactorProvider{models.ProviderEmailNewDevice}}, nil)
	identity.EXPECT().
		NewDeviceGrant(gomock.Any(), testURLs.Identity, gomock.Any(), "987654").
		Return(tokenGrant("access-1"), nil)

	outcome := auth.Login(ctx, "a@b.com", []byte("correct"), "")
	require.Equal(t, AuthTwoFactorRequired, outcome.Kind)
	require.True(t, outcome.TwoFactor.NewDevice())

	res := auth.SubmitNewDeviceOTP(ctx, outcome.TwoFactor, "987654")
	require.Equal(t, AuthSucceeded, res.Kind, "err: %v", res.Err)
	res.Success.Destroy()
}

// ── Refresh ──────────────────────────────────────────────────────────────────

func TestAuthSession_Refresh_DelegatesToSessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth, sessions, identity := newTestAuth(t, ctrl)
	ctx := context.Background()

	v := loginVault(t, sessions, "a@b.com")
	identity.EXPECT().
		RefreshGrant(gomock.Any(), testURLs.Identity, "refresh-a@b.com").
		Return(tokenGrant("access-2"), nil)

	require.NoError(t, auth.Refresh(ctx, v.ID))
	token, err := sessions.AccessToken(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
}
