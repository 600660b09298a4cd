package service

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/store"
)

// mapAdapterError translates the adapter's transport error into a service error
func mapAdapterError(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return newError(KindState, op, app.MsgVaultLocked, err)

	case adapter.IsRetryable(err):
		return newError(KindNetwork, op, app.MsgCheckConnection, err)

	case errors.Is(err, adapter.ErrUnauthorized), errors.Is(err, adapter.ErrForbidden):
		return newError(KindCredential, op, app.MsgReloginRequired, err)
	}

	// Decode failures and unexpected statuses.
	return newError(KindInternal, op, app.MsgUnexpectedServerResponse, err)
}

// mapStoreError translates repository and crypto failures into service errors
func mapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrVaultNotFound):
		return newError(KindState, op, app.MsgVaultNotFound, errors.Join(ErrVaultNotFound, err))

	case errors.Is(err, crypto.ErrKeyDestroyed), errors.Is(err, context.Canceled):
		return newError(KindState, op, app.MsgVaultLocked, errors.Join(ErrVaultLocked, err))

	case errors.Is(err, crypto.ErrInvalidKdfConfig):
		return newError(KindConfiguration, op, app.MsgInvalidKdf, err)

	case errors.Is(err, crypto.ErrMacMismatch),
		errors.Is(err, crypto.ErrDecrypt),
		errors.Is(err, crypto.ErrInvalidCipherString),
		errors.Is(err, crypto.ErrUnsupportedEncryption),
		errors.Is(err, crypto.ErrInvalidKey):
		return newError(KindCrypto, op, app.MsgDecryptFailed, err)
	}

	return newError(KindInternal, op, app.MsgInternalError, err)
}
