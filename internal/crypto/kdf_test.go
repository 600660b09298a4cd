package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/MKhiriev/go-vault-sync/models"
)

func fastPBKDF2() models.KdfConfig {
	return models.KdfConfig{Type: models.KdfPBKDF2SHA256, Iterations: MinPBKDF2Iterations}
}

func fastArgon2() models.KdfConfig {
	return models.KdfConfig{
		Type:        models.KdfArgon2id,
		Iterations:  1,
		Memory:      models.IntPtr(MinArgon2MemoryMiB),
		Parallelism: models.IntPtr(1),
	}
}

func TestDeriveMasterKey_DeterministicAnd256Bit(t *testing.T) {
	for name, cfg := range map[string]models.KdfConfig{"pbkdf2": fastPBKDF2(), "argon2id": fastArgon2()} {
		t.Run(name, func(t *testing.T) {
			k1, err := DeriveMasterKey([]byte("correct"), "a@b.com", cfg)
			if err != nil {
				t.Fatalf("DeriveMasterKey error: %v", err)
			}
			k2, err := DeriveMasterKey([]byte("correct"), "a@b.com", cfg)
			if err != nil {
				t.Fatalf("DeriveMasterKey error: %v", err)
			}

			if len(k1) != KeySize {
				t.Fatalf("key length = %d, want %d", len(k1), KeySize)
			}
			if !bytes.Equal(k1, k2) {
				t.Fatalf("expected identical keys for identical inputs")
			}
		})
	}
}

func TestDeriveMasterKey_EmailIsCaseInsensitiveSalt(t *testing.T) {
	k1, err := DeriveMasterKey([]byte("pw"), "User@Example.COM", fastPBKDF2())
	if err != nil {
		t.Fatalf("DeriveMasterKey error: %v", err)
	}
	k2, err := DeriveMasterKey([]byte("pw"), "user@example.com", fastPBKDF2())
	if err != nil {
		t.Fatalf("DeriveMasterKey error: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("salt must be the lowercased email")
	}
}

func TestDeriveMasterKey_DifferentPasswordsDiffer(t *testing.T) {
	k1, _ := DeriveMasterKey([]byte("correct"), "a@b.com", fastPBKDF2())
	k2, _ := DeriveMasterKey([]byte("wrong"), "a@b.com", fastPBKDF2())
	if bytes.Equal(k1, k2) {
		t.Fatalf("different passwords produced the same key")
	}
}

func TestDeriveMasterKey_DefaultIterations(t *testing.T) {
	if testing.Short() {
		t.Skip("600000 iterations is slow")
	}
	k, err := DeriveMasterKey([]byte("correct"), "a@b.com", models.DefaultKdfConfig())
	if err != nil {
		t.Fatalf("DeriveMasterKey error: %v", err)
	}
	if len(k) != KeySize {
		t.Fatalf("key length = %d, want %d", len(k), KeySize)
	}
}

func TestDeriveMasterKey_RejectsInvalidConfig(t *testing.T) {
	cases := map[string]models.KdfConfig{
		"zero iterations":        {Type: models.KdfPBKDF2SHA256, Iterations: 0},
		"below pbkdf2 floor":     {Type: models.KdfPBKDF2SHA256, Iterations: MinPBKDF2Iterations - 1},
		"unknown type":           {Type: models.KdfType(7), Iterations: 600000},
		"argon2 zero iterations": {Type: models.KdfArgon2id, Iterations: 0},
		"argon2 tiny memory":     {Type: models.KdfArgon2id, Iterations: 3, Memory: models.IntPtr(1)},
		"argon2 huge parallel":   {Type: models.KdfArgon2id, Iterations: 3, Parallelism: models.IntPtr(64)},
	}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			k, err := DeriveMasterKey([]byte("pw"), "a@b.com", cfg)
			if !errors.Is(err, ErrInvalidKdfConfig) {
				t.Fatalf("expected ErrInvalidKdfConfig, got %v", err)
			}
			if k != nil {
				t.Fatalf("expected no key on invalid config")
			}
		})
	}
}

func TestMasterPasswordHash_Deterministic(t *testing.T) {
	mk, _ := DeriveMasterKey([]byte("correct"), "a@b.com", fastPBKDF2())

	h1 := MasterPasswordHash(mk, []byte("correct"))
	h2 := MasterPasswordHash(mk, []byte("correct"))
	if h1 != h2 || h1 == "" {
		t.Fatalf("hash not deterministic: %q vs %q", h1, h2)
	}
	if h1 == MasterPasswordHash(mk, []byte("wrong")) {
		t.Fatalf("hash must depend on the password")
	}
}

func TestExpandSessionKey(t *testing.T) {
	mk, _ := DeriveMasterKey([]byte("correct"), "a@b.com", fastPBKDF2())

	k1, err := ExpandSessionKey(mk)
	if err != nil {
		t.Fatalf("ExpandSessionKey error: %v", err)
	}
	defer k1.Destroy()
	k2, err := ExpandSessionKey(mk)
	if err != nil {
		t.Fatalf("ExpandSessionKey error: %v", err)
	}
	defer k2.Destroy()

	enc1, _ := k1.EncKeyCopy()
	enc2, _ := k2.EncKeyCopy()
	mac1, _ := k1.MacKeyCopy()

	if len(enc1) != KeySize || len(mac1) != KeySize {
		t.Fatalf("unexpected key sizes enc=%d mac=%d", len(enc1), len(mac1))
	}
	if !bytes.Equal(enc1, enc2) {
		t.Fatalf("expansion is not deterministic")
	}
	if bytes.Equal(enc1, mac1) {
		t.Fatalf("enc and mac keys must differ")
	}
}

func TestExpandSessionKey_WrongLength(t *testing.T) {
	if _, err := ExpandSessionKey(make([]byte, 16)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestEqualKeys(t *testing.T) {
	if !EqualKeys([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Fatalf("equal keys reported different")
	}
	if EqualKeys([]byte{1, 2, 3}, []byte{1, 2}) {
		t.Fatalf("different lengths reported equal")
	}
}
