// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app contains shared application-layer constants used across the
// vault-sync services and the command line.
//
// All Msg* constants are human-readable message strings shown to the user or
// written into log entries. They never contain secrets, so any of them can
// be printed as-is.
package app

const (
	// MsgCheckConnection is shown for transport failures and transient server
	// errors.
	MsgCheckConnection = "could not reach the server, check your connection and try again"

	// MsgInvalidCredentials is shown when the server rejects the master
	// password.
	MsgInvalidCredentials = "invalid email or master password"

	// MsgInvalidTwoFactorCode is shown when the server rejects a second-factor
	// or new-device code.
	MsgInvalidTwoFactorCode = "the verification code is invalid or expired"

	// MsgWrongPassword is shown when unlock re-derives a key that does not
	// match the stored one.
	MsgWrongPassword = "wrong master password"

	// MsgReloginRequired is shown when stored key material or the refresh
	// token can no longer be used.
	MsgReloginRequired = "session expired, log in again"

	// MsgInvalidKdf is shown when the server advertises KDF parameters this
	// client refuses to use.
	MsgInvalidKdf = "the account uses unsupported key derivation settings"

	// MsgDecryptFailed is shown when account key material cannot be
	// decrypted.
	MsgDecryptFailed = "could not decrypt vault data"

	// MsgVaultLocked is shown when an operation needs an unlocked vault.
	MsgVaultLocked = "vault not unlocked"

	// MsgVaultNotFound is shown for unknown vault ids.
	MsgVaultNotFound = "vault not found"

	// MsgVaultDisconnected is shown when sync is asked for a vault that is
	// not connected.
	MsgVaultDisconnected = "vault is not connected"

	// MsgSyncInProgress is shown when a second sync for the same vault is
	// requested while one is running.
	MsgSyncInProgress = "a sync for this vault is already running"

	// MsgSyncBlocked is shown when the server returned no items while the
	// vault holds local ones.
	MsgSyncBlocked = "the server returned an empty vault; confirm to continue and apply it"

	// MsgDataLossWarning is shown when many locally known items are missing
	// from the server snapshot.
	MsgDataLossWarning = "many items known locally are missing on the server"

	// MsgConflictsDetected is shown when a sync pass raised conflicts.
	MsgConflictsDetected = "some items changed both here and on the server and need a decision"

	// MsgUnexpectedServerResponse is shown when the server answered with
	// something this client cannot interpret.
	MsgUnexpectedServerResponse = "unexpected server response"

	// MsgInternalError is shown for local failures such as database errors.
	MsgInternalError = "internal error"
)
