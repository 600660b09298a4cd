package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// TwoFactorProvider is the numeric provider code used by the identity server.
type TwoFactorProvider int

const (
	ProviderAuthenticator  TwoFactorProvider = 0
	ProviderEmail          TwoFactorProvider = 1
	ProviderDuo            TwoFactorProvider = 2
	ProviderYubiKey        TwoFactorProvider = 3
	ProviderU2F            TwoFactorProvider = 4
	ProviderRemember       TwoFactorProvider = 5
	ProviderWebAuthn       TwoFactorProvider = 7
	ProviderEmailNewDevice TwoFactorProvider = -100
)

func (p TwoFactorProvider) String() string {
	switch p {
	case ProviderAuthenticator:
		return "authenticator"
	case ProviderEmail:
		return "email"
	case ProviderDuo:
		return "duo"
	case ProviderYubiKey:
		return "yubikey"
	case ProviderU2F:
		return "u2f"
	case ProviderRemember:
		return "remember"
	case ProviderWebAuthn:
		return "webauthn"
	case ProviderEmailNewDevice:
		return "new-device-email"
	default:
		return "provider(" + strconv.Itoa(int(p)) + ")"
	}
}

// ErrorModel is the nested error object of identity responses.
type ErrorModel struct {
	Message string `json:"Message"`
}

// TokenResponse is the body of POST /connect/token. Field matching is case
// insensitive, so both PascalCase and camelCase servers decode into it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`

	Key            string   `json:"Key"`
	PrivateKey     string   `json:"PrivateKey"`
	Kdf            *KdfType `json:"Kdf"`
	KdfIterations  *int     `json:"KdfIterations"`
	KdfMemory      *int     `json:"KdfMemory"`
	KdfParallelism *int     `json:"KdfParallelism"`

	// TwoFactorToken is the "remember this device" token issued after a
	// successful two-factor login with remember set.
	TwoFactorToken string `json:"TwoFactorToken"`
	// SsoEmail2faSessionToken identifies an email two-factor challenge.
	SsoEmail2faSessionToken string `json:"SsoEmail2faSessionToken"`

	Error               string                     `json:"error"`
	ErrorDescription    string                     `json:"error_description"`
	ErrorModel          *ErrorModel                `json:"ErrorModel"`
	TwoFactorProviders  ProviderList               `json:"TwoFactorProviders"`
	TwoFactorProviders2 map[string]json.RawMessage `json:"TwoFactorProviders2"`
}

// KdfConfig returns the KDF parameters carried by the response, or ok=false
// when the server did not send any.
func (t TokenResponse) KdfConfig() (KdfConfig, bool) {
	if t.Kdf == nil || t.KdfIterations == nil {
		return KdfConfig{}, false
	}
	return KdfConfig{
		Type:        *t.Kdf,
		Iterations:  *t.KdfIterations,
		Memory:      t.KdfMemory,
		Parallelism: t.KdfParallelism,
	}, true
}

// Providers merges TwoFactorProviders and the keys of TwoFactorProviders2,
// sorted ascending and without duplicates.
func (t TokenResponse) Providers() []TwoFactorProvider {
	seen := make(map[TwoFactorProvider]struct{})
	for _, p := range t.TwoFactorProviders {
		seen[p] = struct{}{}
	}
	for k := range t.TwoFactorProviders2 {
		if v, err := strconv.Atoi(strings.TrimSpace(k)); err == nil {
			seen[TwoFactorProvider(v)] = struct{}{}
		}
	}

	out := make([]TwoFactorProvider, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ProviderList decodes provider codes sent either as numbers or as numeric
// strings.
type ProviderList []TwoFactorProvider

func (l *ProviderList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make(ProviderList, 0, len(raw))
	for _, r := range raw {
		var n int
		if err := json.Unmarshal(r, &n); err == nil {
			out = append(out, TwoFactorProvider(n))
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		out = append(out, TwoFactorProvider(n))
	}

	*l = out
	return nil
}

// PreloginRequest is the body of POST /accounts/prelogin.
type PreloginRequest struct {
	Email string `json:"email"`
}

// PreloginResponse carries the account's KDF settings.
type PreloginResponse struct {
	Kdf            *KdfType `json:"Kdf"`
	KdfIterations  *int     `json:"KdfIterations"`
	KdfMemory      *int     `json:"KdfMemory"`
	KdfParallelism *int     `json:"KdfParallelism"`
}

// KdfConfig applies the protocol defaults to absent fields.
func (p PreloginResponse) KdfConfig() KdfConfig {
	cfg := DefaultKdfConfig()
	if p.Kdf != nil {
		cfg.Type = *p.Kdf
	}
	if p.KdfIterations != nil && *p.KdfIterations > 0 {
		cfg.Iterations = *p.KdfIterations
	} else if cfg.Type == KdfArgon2id {
		cfg.Iterations = DefaultArgon2Iterations
	}
	cfg.Memory = p.KdfMemory
	cfg.Parallelism = p.KdfParallelism
	return cfg
}

// GrantKind discriminates [GrantResult].
type GrantKind int

const (
	GrantToken GrantKind = iota
	GrantTwoFactor
	GrantError
)

// GrantResult is the outcome of one token grant.
//
// Exactly one of Token, Providers (with ChallengeToken) or ErrorMessage is
// meaningful, selected by Kind.
type GrantResult struct {
	Kind GrantKind

	Token TokenResponse

	Providers      []TwoFactorProvider
	ChallengeToken string

	ErrorMessage string
	// Retryable is set for failures that may succeed unchanged later
	// (server errors, throttling), never for rejected credentials.
	Retryable bool
}

// DeviceInfo is the device metadata sent with every grant.
type DeviceInfo struct {
	Identifier    string
	Name          string
	Type          string
	ClientName    string
	ClientVersion string
}

// PasswordCredentials is what a password-based grant sends. PasswordHash is
// the master password hash, never the password itself.
type PasswordCredentials struct {
	Email        string
	PasswordHash string
	// RememberToken is a stored two-factor remember token, sent so the
	// server can skip the second factor for this device.
	RememberToken string
}

// TwoFactorCode answers a two-factor challenge.
type TwoFactorCode struct {
	Code     string
	Provider TwoFactorProvider
	Remember bool
}
