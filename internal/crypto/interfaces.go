// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/secret_wrapper_mock.go -package=mock

// SecretWrapper protects key material and tokens at rest with a device-level
// key that never leaves the machine.
//
// Wrap returns an opaque text blob that is safe to persist. Unwrap reverses
// it and fails if the blob was produced on another device or was tampered
// with.
type SecretWrapper interface {
	Wrap(plain []byte) (string, error)
	Unwrap(blob string) ([]byte, error)
}
