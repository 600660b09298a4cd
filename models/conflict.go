package models

import "time"

type ConflictType string

const (
	ConflictConcurrentEdit ConflictType = "CONCURRENT_EDIT"
	ConflictServerDeleted  ConflictType = "SERVER_DELETED"
)

type Resolution string

const (
	ResolutionKeepLocal  Resolution = "KEEP_LOCAL"
	ResolutionKeepServer Resolution = "KEEP_SERVER"
)

// ConflictRecord captures one divergence between a local edit and a newer
// server version of the same item.
//
// ServerSnapshot is the server's cipher JSON at detection time, still
// encrypted. Once Resolved is true only ResolvedAt may change.
type ConflictRecord struct {
	ID             string
	VaultID        string
	EntryID        string
	CipherID       string
	Type           ConflictType
	ServerSnapshot string
	ServerRevision *time.Time
	LocalRevision  *time.Time
	EntryTitle     string
	Resolved       bool
	Resolution     *Resolution
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}
