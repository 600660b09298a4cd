package service

import (
	"errors"
	"strings"

	"github.com/MKhiriev/go-vault-sync/internal/app"
)

// ErrorKind classifies failures so callers can decide how to react without
// inspecting causes.
type ErrorKind int

const (
	// KindConfiguration is fatal until the settings are fixed.
	KindConfiguration ErrorKind = iota + 1
	// KindCredential means the user must enter a password or code again.
	KindCredential
	// KindNetwork is transient and may be retried with backoff.
	KindNetwork
	// KindCrypto is a failed MAC check or decryption.
	KindCrypto
	// KindState is an operation on a locked, busy or unknown vault.
	KindState
	// KindConflict is not a failure: the user has to pick a side.
	KindConflict
	// KindInternal covers local failures such as database errors.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindCredential:
		return "credential"
	case KindNetwork:
		return "network"
	case KindCrypto:
		return "crypto"
	case KindState:
		return "state"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Causes wrapped by [Error].
var (
	ErrVaultLocked        = errors.New("vault not unlocked")
	ErrVaultNotFound      = errors.New("vault not found")
	ErrVaultDisconnected  = errors.New("vault is not connected")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrWrongPassword      = errors.New("wrong password")
	ErrReloginRequired    = errors.New("re-login required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeExpired   = errors.New("two-factor state no longer usable")
	ErrGrantFailed        = errors.New("token grant failed")
)

// Error is the typed failure returned across the service boundary. Msg is
// safe to show to users; Err carries the cause for logs and errors.Is.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func newError(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first [Error] in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// UserMessage returns a message for err that can be shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return app.MsgInternalError
}

func IsCredential(err error) bool    { return KindOf(err) == KindCredential }
func IsNetwork(err error) bool       { return KindOf(err) == KindNetwork }
func IsState(err error) bool         { return KindOf(err) == KindState }
func IsCrypto(err error) bool        { return KindOf(err) == KindCrypto }
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// Retryable reports whether repeating the same call later may succeed.
func Retryable(err error) bool {
	return IsNetwork(err)
}
