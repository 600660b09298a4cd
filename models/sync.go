package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncResponse is the full vault snapshot returned by GET /sync.
type SyncResponse struct {
	Profile     ProfileResponse      `json:"Profile"`
	Folders     []FolderResponse     `json:"Folders"`
	Ciphers     []CipherResponse     `json:"Ciphers"`
	Collections []CollectionResponse `json:"Collections"`
	Policies    []PolicyResponse     `json:"Policies"`
	Sends       []SendResponse       `json:"Sends"`
}

// LiveCipherCount counts ciphers that are not in the server trash.
func (s SyncResponse) LiveCipherCount() int {
	n := 0
	for _, c := range s.Ciphers {
		if c.DeletedDate == nil || *c.DeletedDate == "" {
			n++
		}
	}
	return n
}

type ProfileResponse struct {
	ID            string `json:"Id"`
	Name          string `json:"Name"`
	Email         string `json:"Email"`
	Premium       bool   `json:"Premium"`
	Key           string `json:"Key"`
	PrivateKey    string `json:"PrivateKey"`
	SecurityStamp string `json:"SecurityStamp"`
}

type FolderResponse struct {
	ID           string `json:"Id"`
	Name         string `json:"Name"`
	RevisionDate string `json:"RevisionDate"`
}

// CipherType is the kind of vault item.
type CipherType int

const (
	CipherLogin      CipherType = 1
	CipherSecureNote CipherType = 2
	CipherCard       CipherType = 3
	CipherIdentity   CipherType = 4
)

// CipherResponse is one encrypted vault item. Every string field except ids
// and dates is a cipher string.
type CipherResponse struct {
	ID             string     `json:"Id"`
	OrganizationID *string    `json:"OrganizationId"`
	FolderID       *string    `json:"FolderId"`
	Type           CipherType `json:"Type"`
	// Key is the optional per-item key, encrypted with the user key.
	Key        string                `json:"Key,omitempty"`
	Name       string                `json:"Name"`
	Notes      *string               `json:"Notes"`
	Login      *CipherLoginData      `json:"Login"`
	Card       *CipherCardData       `json:"Card"`
	Identity   *CipherIdentityData   `json:"Identity"`
	SecureNote *CipherSecureNoteData `json:"SecureNote"`
	Fields     []CipherField         `json:"Fields"`
	Favorite   bool                  `json:"Favorite"`
	Reprompt   int                   `json:"Reprompt"`

	RevisionDate string  `json:"RevisionDate"`
	CreationDate *string `json:"CreationDate"`
	DeletedDate  *string `json:"DeletedDate"`
}

// IsDeleted reports whether the server moved the cipher to its trash.
func (c CipherResponse) IsDeleted() bool {
	return c.DeletedDate != nil && strings.TrimSpace(*c.DeletedDate) != ""
}

type CipherLoginData struct {
	Username *string     `json:"Username"`
	Password *string     `json:"Password"`
	Totp     *string     `json:"Totp"`
	Uris     []CipherURI `json:"Uris"`
}

type CipherURI struct {
	URI   *string `json:"Uri"`
	Match *int    `json:"Match"`
}

type CipherCardData struct {
	CardholderName *string `json:"CardholderName"`
	Brand          *string `json:"Brand"`
	Number         *string `json:"Number"`
	ExpMonth       *string `json:"ExpMonth"`
	ExpYear        *string `json:"ExpYear"`
	Code           *string `json:"Code"`
}

type CipherIdentityData struct {
	Title      *string `json:"Title"`
	FirstName  *string `json:"FirstName"`
	MiddleName *string `json:"MiddleName"`
	LastName   *string `json:"LastName"`
	Email      *string `json:"Email"`
	Phone      *string `json:"Phone"`
	Company    *string `json:"Company"`
	Username   *string `json:"Username"`
}

type CipherSecureNoteData struct {
	Type int `json:"Type"`
}

type CipherField struct {
	Name     *string `json:"Name"`
	Value    *string `json:"Value"`
	Type     int     `json:"Type"`
	LinkedID *int    `json:"LinkedId"`
}

type CollectionResponse struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type PolicyResponse struct {
	ID      string `json:"Id"`
	Type    int    `json:"Type"`
	Enabled bool   `json:"Enabled"`
}

type SendResponse struct {
	ID             string    `json:"Id"`
	AccessID       string    `json:"AccessId"`
	Key            string    `json:"Key"`
	Type           int       `json:"Type"`
	Name           string    `json:"Name"`
	Notes          *string   `json:"Notes"`
	Text           *SendText `json:"Text"`
	File           *SendFile `json:"File"`
	AccessCount    int       `json:"AccessCount"`
	MaxAccessCount *int      `json:"MaxAccessCount"`
	RevisionDate   string    `json:"RevisionDate"`
	ExpirationDate *string   `json:"ExpirationDate"`
	DeletionDate   *string   `json:"DeletionDate"`
	Password       *string   `json:"Password"`
	Disabled       bool      `json:"Disabled"`
	HideEmail      *bool     `json:"HideEmail"`
}

type SendText struct {
	Text   *string `json:"Text"`
	Hidden *bool   `json:"Hidden"`
}

type SendFile struct {
	ID       *string `json:"Id"`
	FileName *string `json:"FileName"`
	Size     *string `json:"Size"`
	SizeName *string `json:"SizeName"`
}

var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseServerTime parses the timestamps the API emits. Values without a zone
// are taken as UTC.
func ParseServerTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ParseOptionalServerTime returns nil for a nil or blank value.
func ParseOptionalServerTime(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := ParseServerTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
