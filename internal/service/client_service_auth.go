package service

import (
	"context"
	"strings"
	"time"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/models"
)

type authSession struct {
	identity adapter.IdentityClient
	sessions VaultSessionStore

	now    func() time.Time
	logger *logger.Logger
}

// NewAuthSession creates the login state machine. sessions supplies stored
// two-factor remember tokens and performs refreshes.
func NewAuthSession(identity adapter.IdentityClient, sessions VaultSessionStore, log *logger.Logger) AuthSession {
	return &authSession{identity: identity, sessions: sessions, now: time.Now, logger: log}
}

// Login implements [AuthSession].
func (a *authSession) Login(ctx context.Context, email string, password []byte, serverURL string) AuthOutcome {
	const op = "authSession.Login"
	log := a.logger.With().Str("func", op).Logger()

	email = strings.TrimSpace(email)
	if email == "" || len(password) == 0 {
		return failed(newError(KindCredential, op, app.MsgInvalidCredentials, ErrInvalidCredentials))
	}
	if strings.TrimSpace(serverURL) != "" {
		if err := adapter.ValidateServerURL(serverURL); err != nil {
			return failed(newError(KindConfiguration, op, err.Error(), err))
		}
	}

	urls := adapter.ResolveServerURLs(serverURL)

	kdf := models.DefaultKdfConfig()
	pre, err := a.identity.Prelogin(ctx, urls.Identity, email)
	if err != nil {
		log.Warn().Err(err).Msg("prelogin failed, using default kdf parameters")
	} else {
		kdf = pre.KdfConfig()
	}

	masterRaw, err := crypto.DeriveMasterKey(password, email, kdf)
	if err != nil {
		return failed(mapStoreError(op, err))
	}
	hash := crypto.MasterPasswordHash(masterRaw, password)

	stretched, err := crypto.ExpandSessionKey(masterRaw)
	if err != nil {
		crypto.Wipe(masterRaw)
		return failed(mapStoreError(op, err))
	}
	masterKey, err := crypto.NewSymmetricCryptoKey(masterRaw, nil)
	if err != nil {
		stretched.Destroy()
		return failed(mapStoreError(op, err))
	}

	state := &TwoFactorState{
		Email:        email,
		URLs:         urls,
		Kdf:          kdf,
		PasswordHash: hash,
		masterKey:    masterKey,
		stretched:    stretched,
	}

	creds := models.PasswordCredentials{
		Email:         email,
		PasswordHash:  hash,
		RememberToken: a.sessions.RememberToken(ctx, email),
	}
	res, err := a.identity.PasswordGrant(ctx, urls.Identity, creds)

	log.Debug().Str("kdf", kdf.Type.String()).Str("region", string(adapter.Region(urls.Vault))).Msg("password grant sent")

	outcome := a.interpret(ctx, op, state, res, err, app.MsgInvalidCredentials)
	if outcome.Kind == AuthFailed {
		state.Discard()
	}
	return outcome
}

// SubmitCode implements [AuthSession].
func (a *authSession) SubmitCode(ctx context.Context, state *TwoFactorState, code string, provider models.TwoFactorProvider, remember bool) AuthOutcome {
	const op = "authSession.SubmitCode"
	if !state.usable() {
		return failed(newError(KindState, op, app.MsgReloginRequired, ErrChallengeExpired))
	}
	if strings.TrimSpace(code) == "" {
		return failed(newError(KindCredential, op, app.MsgInvalidTwoFactorCode, ErrInvalidCredentials))
	}

	res, err := a.identity.TwoFactorGrant(ctx, state.URLs.Identity, state.credentials(), models.TwoFactorCode{
		Code:     code,
		Provider: provider,
		Remember: remember,
	})
	return a.interpret(ctx, op, state, res, err, app.MsgInvalidTwoFactorCode)
}

// SubmitNewDeviceOTP implements [AuthSession].
func (a *authSession) SubmitNewDeviceOTP(ctx context.Context, state *TwoFactorState, otp string) AuthOutcome {
	const op = "authSession.SubmitNewDeviceOTP"
	if !state.usable() {
		return failed(newError(KindState, op, app.MsgReloginRequired, ErrChallengeExpired))
	}
	if strings.TrimSpace(otp) == "" {
		return failed(newError(KindCredential, op, app.MsgInvalidTwoFactorCode, ErrInvalidCredentials))
	}

	res, err := a.identity.NewDeviceGrant(ctx, state.URLs.Identity, state.credentials(), otp)
	return a.interpret(ctx, op, state, res, err, app.MsgInvalidTwoFactorCode)
}

// Refresh implements [AuthSession].
func (a *authSession) Refresh(ctx context.Context, vaultID string) error {
	return a.sessions.Refresh(ctx, vaultID)
}

// interpret turns a grant answer into an outcome. state keeps its keys on
// failure and two-factor answers so the caller can continue; on success the
// keys move into the returned bundle.
func (a *authSession) interpret(ctx context.Context, op string, state *TwoFactorState, res models.GrantResult, err error, rejected string) AuthOutcome {
	log := logger.FromContext(ctx)

	if err != nil {
		log.Warn().Err(err).Str("func", op).Msg("token request failed")
		return failed(mapAdapterError(op, err))
	}

	switch res.Kind {
	case models.GrantTwoFactor:
		state.Providers = res.Providers
		state.ChallengeToken = res.ChallengeToken
		log.Info().Str("func", op).Int("providers", len(res.Providers)).Msg("second factor required")
		return AuthOutcome{Kind: AuthTwoFactorRequired, TwoFactor: state}

	case models.GrantToken:
		success, err := a.complete(op, state, res.Token)
		if err != nil {
			return failed(err)
		}
		log.Info().Str("func", op).Msg("login succeeded")
		return AuthOutcome{Kind: AuthSucceeded, Success: success}

	default:
		if res.Retryable {
			return failed(newError(KindNetwork, op, app.MsgCheckConnection, withMessage(ErrGrantFailed, res.ErrorMessage)))
		}
		return failed(newError(KindCredential, op, rejected, withMessage(ErrInvalidCredentials, res.ErrorMessage)))
	}
}

// complete builds the success bundle and consumes state's keys.
func (a *authSession) complete(op string, state *TwoFactorState, token models.TokenResponse) (*AuthSuccess, error) {
	kdf := state.Kdf
	if serverKdf, ok := token.KdfConfig(); ok {
		kdf = serverKdf
	}

	symmetric := state.stretched
	if token.Key != "" {
		userKey, err := crypto.DecryptUserKey(token.Key, state.stretched)
		if err != nil {
			return nil, newError(KindCrypto, op, app.MsgDecryptFailed, err)
		}
		state.stretched.Destroy()
		symmetric = userKey
	}

	now := a.now()
	success := &AuthSuccess{
		Email:         state.Email,
		URLs:          state.URLs,
		Kdf:           kdf,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		ExpiresIn:     token.ExpiresIn,
		ExpiresAt:     utils.AccessTokenExpiry(token.AccessToken, int(token.ExpiresIn), now),
		RememberToken: token.TwoFactorToken,
		MasterKey:     state.masterKey,
		SymmetricKey:  symmetric,
	}
	state.masterKey, state.stretched = nil, nil
	return success, nil
}

func (s *TwoFactorState) credentials() models.PasswordCredentials {
	return models.PasswordCredentials{Email: s.Email, PasswordHash: s.PasswordHash}
}

func failed(err error) AuthOutcome {
	return AuthOutcome{Kind: AuthFailed, Err: err}
}

// serverMessageError keeps the server's text next to a sentinel.
type serverMessageError struct {
	sentinel error
	message  string
}

func (e *serverMessageError) Error() string {
	if e.message == "" {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + ": " + e.message
}

func (e *serverMessageError) Unwrap() error { return e.sentinel }

func withMessage(sentinel error, message string) error {
	return &serverMessageError{sentinel: sentinel, message: message}
}
