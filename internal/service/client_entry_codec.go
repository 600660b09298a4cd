package service

import (
	"fmt"
	"time"

	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/models"
)

// cipherRevision is the parsed timing of a server cipher.
type cipherRevision struct {
	At        time.Time
	DeletedAt *time.Time
}

func parseRevision(c models.CipherResponse) (cipherRevision, error) {
	at, err := models.ParseServerTime(c.RevisionDate)
	if err != nil {
		return cipherRevision{}, fmt.Errorf("revision date: %w", err)
	}
	deletedAt, err := models.ParseOptionalServerTime(c.DeletedDate)
	if err != nil {
		return cipherRevision{}, fmt.Errorf("deleted date: %w", err)
	}
	return cipherRevision{At: at, DeletedAt: deletedAt}, nil
}

// cipherKey returns the key that opens c: its own item key when it has one,
// else the vault key. release must be called when done.
func cipherKey(c models.CipherResponse, vaultKey *crypto.SymmetricCryptoKey) (*crypto.SymmetricCryptoKey, func(), error) {
	if c.Key == "" {
		return vaultKey, func() {}, nil
	}
	itemKey, err := crypto.DecryptUserKey(c.Key, vaultKey)
	if err != nil {
		return nil, nil, fmt.Errorf("item key: %w", err)
	}
	return itemKey, itemKey.Destroy, nil
}

// decodeCipher decrypts the fields of c that a login entry mirrors. Every
// present field must pass MAC verification.
func decodeCipher(c models.CipherResponse, vaultKey *crypto.SymmetricCryptoKey) (models.Credential, error) {
	key, release, err := cipherKey(c, vaultKey)
	if err != nil {
		return models.Credential{}, err
	}
	defer release()

	var cred models.Credential
	fields := []struct {
		dst *string
		src *string
	}{
		{&cred.Title, &c.Name},
		{&cred.Notes, c.Notes},
	}
	if c.Login != nil {
		fields = append(fields,
			struct{ dst, src *string }{&cred.Username, c.Login.Username},
			struct{ dst, src *string }{&cred.Password, c.Login.Password},
			struct{ dst, src *string }{&cred.Totp, c.Login.Totp},
		)
		if len(c.Login.Uris) > 0 {
			fields = append(fields, struct{ dst, src *string }{&cred.URL, c.Login.Uris[0].URI})
		}
	}

	for _, f := range fields {
		if f.src == nil || *f.src == "" {
			continue
		}
		plain, err := crypto.DecryptString(*f.src, key)
		if err != nil {
			return models.Credential{}, err
		}
		*f.dst = string(plain)
		crypto.Wipe(plain)
	}
	return cred, nil
}

// seal encrypts every non-empty field of cred with key. The result holds
// cipher strings in place of plaintext.
func seal(cred models.Credential, key *crypto.SymmetricCryptoKey) (models.Credential, error) {
	out := cred
	for _, f := range credentialFields(&out) {
		if *f == "" {
			continue
		}
		enc, err := crypto.EncryptToString([]byte(*f), key)
		if err != nil {
			return models.Credential{}, err
		}
		*f = enc
	}
	return out, nil
}

// open is the inverse of seal.
func open(sealed models.Credential, key *crypto.SymmetricCryptoKey) (models.Credential, error) {
	out := sealed
	for _, f := range credentialFields(&out) {
		if *f == "" {
			continue
		}
		plain, err := crypto.DecryptString(*f, key)
		if err != nil {
			return models.Credential{}, err
		}
		*f = string(plain)
		crypto.Wipe(plain)
	}
	return out, nil
}

func credentialFields(c *models.Credential) []*string {
	return []*string{&c.Title, &c.Username, &c.Password, &c.URL, &c.Notes, &c.Totp}
}

func entryCredential(e models.LoginEntry) models.Credential {
	return models.Credential{
		Title:    e.Title,
		Username: e.Username,
		Password: e.Password,
		URL:      e.URL,
		Notes:    e.Notes,
		Totp:     e.Totp,
	}
}

// applyServer copies the sealed credential and the server metadata of c into
// e and marks e as matching revision.
func applyServer(e *models.LoginEntry, c models.CipherResponse, sealed models.Credential, revision cipherRevision) {
	e.Title = sealed.Title
	e.Username = sealed.Username
	e.Password = sealed.Password
	e.URL = sealed.URL
	e.Notes = sealed.Notes
	e.Totp = sealed.Totp

	cipherID := c.ID
	e.CipherID = &cipherID
	e.FolderID = c.FolderID
	e.Type = c.Type
	e.Favorite = c.Favorite
	e.LocallyModified = false
	e.DeletedAt = revision.DeletedAt
	e.ServerRevision = &revision.At
	e.LastSyncedAt = &revision.At
}

// cipherRequest builds the upload body for a local entry. When base is the
// current server copy, fields the entry does not mirror are carried over so
// the update does not erase them.
func cipherRequest(e models.LoginEntry, plain models.Credential, base *models.CipherResponse, vaultKey *crypto.SymmetricCryptoKey) (models.CipherRequest, error) {
	key := vaultKey
	req := models.CipherRequest{
		Type:     e.Type,
		FolderID: e.FolderID,
		Favorite: e.Favorite,
	}
	if req.Type == 0 {
		req.Type = models.CipherLogin
	}

	if base != nil {
		itemKey, release, err := cipherKey(*base, vaultKey)
		if err != nil {
			return models.CipherRequest{}, err
		}
		defer release()
		key = itemKey

		req.Key = base.Key
		req.Reprompt = base.Reprompt
		req.Fields = base.Fields
		req.SecureNote = base.SecureNote
		if base.RevisionDate != "" {
			rev := base.RevisionDate
			req.LastKnownRevisionDate = &rev
		}
	}

	sealed, err := seal(plain, key)
	if err != nil {
		return models.CipherRequest{}, err
	}

	req.Name = sealed.Title
	req.Notes = optional(sealed.Notes)

	switch req.Type {
	case models.CipherLogin:
		login := &models.CipherLoginData{}
		if base != nil && base.Login != nil {
			copied := *base.Login
			login = &copied
		}
		login.Username = optional(sealed.Username)
		login.Password = optional(sealed.Password)
		login.Totp = optional(sealed.Totp)
		login.Uris = replaceFirstURI(login.Uris, sealed.URL)
		req.Login = login
	case models.CipherSecureNote:
		if req.SecureNote == nil {
			req.SecureNote = &models.CipherSecureNoteData{}
		}
	}
	return req, nil
}

func replaceFirstURI(uris []models.CipherURI, sealedURL string) []models.CipherURI {
	out := append([]models.CipherURI(nil), uris...)
	switch {
	case sealedURL == "" && len(out) > 0:
		return out[1:]
	case sealedURL == "":
		return out
	case len(out) == 0:
		return []models.CipherURI{{URI: optional(sealedURL)}}
	default:
		out[0].URI = optional(sealedURL)
		return out
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// pushable reports whether local edits of this cipher type can be uploaded
// without losing data the entry does not mirror.
func pushable(t models.CipherType) bool {
	return t == models.CipherLogin || t == models.CipherSecureNote || t == 0
}
