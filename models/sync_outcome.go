package models

// SyncKind tags a [SyncOutcome].
type SyncKind int

const (
	SyncSuccess SyncKind = iota
	// SyncBlocked means the snapshot would have wiped local data and the
	// pass stopped before writing anything.
	SyncBlocked
	SyncError
)

func (k SyncKind) String() string {
	switch k {
	case SyncSuccess:
		return "success"
	case SyncBlocked:
		return "blocked"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// SyncOutcome is the result of one sync pass.
type SyncOutcome struct {
	Kind SyncKind

	Added     int
	Updated   int
	Conflicts int
	Deleted   int
	Skipped   int
	Uploaded  int

	// Message is safe to show to the user.
	Message string
	// Err is set for SyncError.
	Err error
	// Warning is a non-blocking notice, such as many local items missing
	// from the snapshot.
	Warning string
}
