package models

import "time"

// Vault is one authenticated account on one server.
//
// Every field suffixed with "Wrapped" holds a blob produced by the device-level
// secret wrapper and is never plaintext. A vault with Locked == true never has
// a session key in memory; a vault with Connected == false is never a sync
// target.
type Vault struct {
	ID     string
	Email  string
	UserID string
	URLs   ServerURLs

	Kdf KdfConfig

	AccessTokenWrapped   string
	RefreshTokenWrapped  string
	AccessTokenExpiresAt time.Time
	// TwoFactorRememberWrapped is the remember token handed out when the user
	// asked the server to trust this device.
	TwoFactorRememberWrapped string

	MasterKeyWrapped string
	EncKeyWrapped    string
	MacKeyWrapped    string

	LastSyncAt   *time.Time
	RevisionDate *time.Time

	IsDefault   bool
	Locked      bool
	Connected   bool
	SyncEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasKeyMaterial reports whether all wrapped key blobs needed for unlock are
// present.
func (v Vault) HasKeyMaterial() bool {
	return v.MasterKeyWrapped != "" && v.EncKeyWrapped != "" && v.MacKeyWrapped != ""
}

// VaultTokens is the token subset of a vault that a refresh rewrites.
type VaultTokens struct {
	AccessTokenWrapped   string
	RefreshTokenWrapped  string
	AccessTokenExpiresAt time.Time
}
