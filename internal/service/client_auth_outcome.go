package service

import (
	"time"

	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/models"
)

// AuthOutcomeKind tags an [AuthOutcome].
type AuthOutcomeKind int

const (
	AuthSucceeded AuthOutcomeKind = iota + 1
	AuthTwoFactorRequired
	AuthFailed
)

// AuthOutcome is the result of one step of the login state machine. Exactly
// one of Success, TwoFactor and Err is set, matching Kind.
type AuthOutcome struct {
	Kind      AuthOutcomeKind
	Success   *AuthSuccess
	TwoFactor *TwoFactorState
	Err       error
}

// AuthSuccess is the bundle produced by a successful grant.
type AuthSuccess struct {
	Email string
	URLs  models.ServerURLs
	// Kdf holds the parameters the server reported, which win over the
	// prelogin guess.
	Kdf models.KdfConfig

	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    time.Time
	// RememberToken is set when the user asked the server to trust this
	// device for two-factor.
	RememberToken string

	// MasterKey is the KDF output, kept enc-only.
	MasterKey *crypto.SymmetricCryptoKey
	// SymmetricKey decrypts vault items: the account key when the server
	// sent one, else the stretched master key.
	SymmetricKey *crypto.SymmetricCryptoKey
}

// Destroy wipes both keys. Safe to call on a nil receiver.
func (s *AuthSuccess) Destroy() {
	if s == nil {
		return
	}
	s.MasterKey.Destroy()
	s.SymmetricKey.Destroy()
}

// TwoFactorState carries what a continuation needs so the master password
// is not asked for again.
type TwoFactorState struct {
	Email        string
	URLs         models.ServerURLs
	Kdf          models.KdfConfig
	PasswordHash string
	Providers    []models.TwoFactorProvider
	// ChallengeToken identifies an email challenge when the server sent one.
	ChallengeToken string

	masterKey *crypto.SymmetricCryptoKey
	stretched *crypto.SymmetricCryptoKey
}

// NewDevice reports whether the challenge is a new-device verification
// rather than a second factor.
func (s *TwoFactorState) NewDevice() bool {
	for _, p := range s.Providers {
		if p == models.ProviderEmailNewDevice {
			return true
		}
	}
	return false
}

// Discard wipes the keys kept for the continuation.
func (s *TwoFactorState) Discard() {
	if s == nil {
		return
	}
	s.masterKey.Destroy()
	s.stretched.Destroy()
	s.masterKey, s.stretched = nil, nil
}

func (s *TwoFactorState) usable() bool {
	return s != nil && s.masterKey.Alive() && s.stretched.Alive()
}
