package models

// CipherRequest is the body of cipher create and update calls. All text
// fields are cipher strings.
type CipherRequest struct {
	Type CipherType `json:"type"`
	// Key is the item key of the cipher, sent back unchanged on update.
	Key        string                `json:"key,omitempty"`
	FolderID   *string               `json:"folderId"`
	Name       string                `json:"name"`
	Notes      *string               `json:"notes"`
	Login      *CipherLoginData      `json:"login,omitempty"`
	SecureNote *CipherSecureNoteData `json:"secureNote,omitempty"`
	Fields     []CipherField         `json:"fields,omitempty"`
	Favorite   bool                  `json:"favorite"`
	Reprompt   int                   `json:"reprompt"`
	// LastKnownRevisionDate lets the server reject stale updates.
	LastKnownRevisionDate *string `json:"lastKnownRevisionDate,omitempty"`
}
