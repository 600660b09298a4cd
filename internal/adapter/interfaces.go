// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter talks to the identity and API services of a
// Bitwarden-compatible server.
//
// [IdentityClient] encodes the token grants and prelogin. [VaultAPI] fetches
// the vault snapshot and performs item CRUD. Both are stateless: base URLs
// and bearer tokens are passed on every call, so one instance serves every
// vault.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] (e.g. [ErrUnauthorized]
// for 401). Failures below HTTP wrap [ErrTransport].
package adapter

import (
	"context"

	"github.com/MKhiriev/go-vault-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// IdentityClient encodes requests to the identity service.
//
// Grant methods return a [models.GrantResult] for every HTTP answer,
// including rejections, and an error only when no usable answer arrived
// (transport failure, cancelled context).
type IdentityClient interface {
	// Prelogin asks for the KDF parameters of email.
	Prelogin(ctx context.Context, identityURL, email string) (models.PreloginResponse, error)

	// PasswordGrant exchanges the master password hash for tokens.
	PasswordGrant(ctx context.Context, identityURL string, creds models.PasswordCredentials) (models.GrantResult, error)

	// TwoFactorGrant repeats the password grant with a second-factor code.
	TwoFactorGrant(ctx context.Context, identityURL string, creds models.PasswordCredentials, code models.TwoFactorCode) (models.GrantResult, error)

	// NewDeviceGrant repeats the password grant with the one-time code the
	// server mailed to confirm a new device.
	NewDeviceGrant(ctx context.Context, identityURL string, creds models.PasswordCredentials, otp string) (models.GrantResult, error)

	// RefreshGrant exchanges a refresh token for a new access token.
	RefreshGrant(ctx context.Context, identityURL, refreshToken string) (models.GrantResult, error)
}

// VaultAPI performs authenticated calls against the API service. Non-2xx
// answers are returned as errors wrapping the sentinels of this package.
type VaultAPI interface {
	// Sync downloads the full vault snapshot.
	Sync(ctx context.Context, apiURL, token string) (models.SyncResponse, error)

	GetCipher(ctx context.Context, apiURL, token, cipherID string) (models.CipherResponse, error)
	CreateCipher(ctx context.Context, apiURL, token string, req models.CipherRequest) (models.CipherResponse, error)
	UpdateCipher(ctx context.Context, apiURL, token, cipherID string, req models.CipherRequest) (models.CipherResponse, error)
	// SoftDeleteCipher moves the cipher to the trash.
	SoftDeleteCipher(ctx context.Context, apiURL, token, cipherID string) error
	// RestoreCipher takes the cipher out of the trash.
	RestoreCipher(ctx context.Context, apiURL, token, cipherID string) (models.CipherResponse, error)
}
