package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
)

func TestKeyringWrapper_RoundTripAndPersistentKey(t *testing.T) {
	keyring.MockInit()

	w1 := NewKeyringWrapper("vaultsync-test", logger.Nop())
	blob, err := w1.Wrap([]byte("refresh-token"))
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}

	// a second wrapper on the same service must reuse the stored device key
	w2 := NewKeyringWrapper("vaultsync-test", logger.Nop())
	got, err := w2.Unwrap(blob)
	if err != nil {
		t.Fatalf("Unwrap error: %v", err)
	}
	if !bytes.Equal(got, []byte("refresh-token")) {
		t.Fatalf("got %q", got)
	}
}

func TestKeyringWrapper_OtherDeviceCannotUnwrap(t *testing.T) {
	keyring.MockInit()

	blob, err := NewKeyringWrapper("device-a", logger.Nop()).Wrap([]byte("secret"))
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}

	if _, err = NewKeyringWrapper("device-b", logger.Nop()).Unwrap(blob); !errors.Is(err, ErrWrappedBlob) {
		t.Fatalf("expected ErrWrappedBlob, got %v", err)
	}
}

func TestStaticWrapper(t *testing.T) {
	if _, err := NewStaticWrapper([]byte("short")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	w, err := NewStaticWrapper(bytes.Repeat([]byte{1}, KeySize))
	if err != nil {
		t.Fatalf("NewStaticWrapper error: %v", err)
	}

	blob, err := w.Wrap([]byte("x"))
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}
	if _, err = w.Unwrap(blob[:len(blob)-4] + "AAAA"); !errors.Is(err, ErrWrappedBlob) {
		t.Fatalf("expected ErrWrappedBlob for tampered blob, got %v", err)
	}
	if _, err = w.Unwrap("not base64!"); !errors.Is(err, ErrWrappedBlob) {
		t.Fatalf("expected ErrWrappedBlob for garbage, got %v", err)
	}
}
