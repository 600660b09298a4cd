package models

import "time"

// LoginEntry is the local copy of one vault item.
//
// Title, Username, Password, URL, Notes and Totp hold cipher strings sealed
// with the vault's symmetric key; they are opened into a [Credential] only
// while the vault is unlocked.
type LoginEntry struct {
	ID       string
	VaultID  string
	CipherID *string
	FolderID *string
	Type     CipherType
	Favorite bool

	Title    string
	Username string
	Password string
	URL      string
	Notes    string
	Totp     string

	// LocallyModified is set by local edits and cleared once the server has
	// confirmed the upload.
	LocallyModified bool
	// ServerRevision is the revision date of the server copy last applied.
	ServerRevision *time.Time
	// LastSyncedAt is the moment the local entry last matched the server.
	LastSyncedAt *time.Time
	DeletedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is the decrypted view of a [LoginEntry].
type Credential struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
	Notes    string `json:"notes"`
	Totp     string `json:"totp"`
}

// Folder is a server folder mirrored into a vault. Name is a cipher string.
type Folder struct {
	ID           string
	VaultID      string
	Name         string
	RevisionDate time.Time
}

// Send is a mirrored share. Name and Notes are cipher strings sealed with the
// send's own key as delivered by the server.
type Send struct {
	ID             string
	VaultID        string
	AccessID       string
	Type           int
	Name           string
	Notes          string
	Key            string
	Disabled       bool
	AccessCount    int
	MaxAccessCount *int
	RevisionDate   time.Time
	ExpirationDate *time.Time
	DeletionDate   *time.Time
}

// CipherBatch is the set of local writes produced by one reconciliation
// pass over the server's ciphers. It is applied atomically.
type CipherBatch struct {
	Insert     []LoginEntry
	Update     []LoginEntry
	SoftDelete []LoginEntry
	Conflicts  []ConflictRecord
}

// Empty reports whether the batch has nothing to write.
func (b CipherBatch) Empty() bool {
	return len(b.Insert) == 0 && len(b.Update) == 0 && len(b.SoftDelete) == 0 && len(b.Conflicts) == 0
}
