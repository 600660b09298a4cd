package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/store"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/models"
)

type conflictResolver struct {
	sessions  VaultSessionStore
	entries   store.LoginEntryRepository
	conflicts store.ConflictRepository

	now    func() time.Time
	logger *logger.Logger
}

// NewConflictResolver creates a [ConflictResolver].
func NewConflictResolver(sessions VaultSessionStore, storages *store.ClientStorages, log *logger.Logger) ConflictResolver {
	return &conflictResolver{
		sessions:  sessions,
		entries:   storages.Entries,
		conflicts: storages.Conflicts,
		now:       time.Now,
		logger:    log,
	}
}

// load returns the open conflict and its live entry, or ok=false.
func (r *conflictResolver) load(ctx context.Context, op, conflictID string) (models.ConflictRecord, models.LoginEntry, bool) {
	log := logger.FromContext(ctx).With().Str("func", op).Str("conflict_id", conflictID).Logger()

	c, err := r.conflicts.GetConflict(ctx, conflictID)
	if err != nil {
		log.Warn().Err(err).Msg("conflict not loaded")
		return models.ConflictRecord{}, models.LoginEntry{}, false
	}
	if c.Resolved {
		log.Debug().Msg("conflict already resolved")
		return models.ConflictRecord{}, models.LoginEntry{}, false
	}

	entry, err := r.entries.GetEntry(ctx, c.EntryID)
	if err != nil || entry.DeletedAt != nil {
		log.Info().Err(err).Msg("conflict entry is gone")
		return models.ConflictRecord{}, models.LoginEntry{}, false
	}
	return c, entry, true
}

// ResolveWithLocal implements [ConflictResolver].
func (r *conflictResolver) ResolveWithLocal(ctx context.Context, conflictID string) bool {
	const op = "conflictResolver.ResolveWithLocal"

	c, entry, ok := r.load(ctx, op, conflictID)
	if !ok {
		return false
	}

	entry.ServerRevision = c.ServerRevision
	entry.LastSyncedAt = c.ServerRevision
	if c.Type == models.ConflictServerDeleted {
		// The server copy is gone: the next push creates a new cipher.
		entry.CipherID = nil
	}

	return r.finish(ctx, op, conflictID, r.conflicts.ResolveKeepLocal(ctx, conflictID, entry, r.now().UTC()))
}

// ResolveWithServer implements [ConflictResolver].
func (r *conflictResolver) ResolveWithServer(ctx context.Context, conflictID string) bool {
	const op = "conflictResolver.ResolveWithServer"
	log := logger.FromContext(ctx).With().Str("func", op).Str("conflict_id", conflictID).Logger()

	c, entry, ok := r.load(ctx, op, conflictID)
	if !ok {
		return false
	}

	key, err := r.sessions.SymmetricKey(c.VaultID)
	if err != nil {
		log.Warn().Err(err).Msg("vault is locked")
		return false
	}

	var server models.CipherResponse
	if err = json.Unmarshal([]byte(c.ServerSnapshot), &server); err != nil {
		log.Err(err).Msg("server snapshot is corrupt")
		return false
	}
	revision, err := parseRevision(server)
	if err != nil {
		log.Err(err).Msg("server snapshot has no usable revision")
		return false
	}

	plain, err := decodeCipher(server, key)
	if err != nil {
		log.Err(err).Msg("server snapshot failed verification")
		return false
	}
	sealed, err := seal(plain, key)
	if err != nil {
		log.Err(err).Msg("server snapshot could not be sealed")
		return false
	}
	applyServer(&entry, server, sealed, revision)

	return r.finish(ctx, op, conflictID, r.conflicts.ResolveKeepServer(ctx, conflictID, entry, r.now().UTC()))
}

func (r *conflictResolver) finish(ctx context.Context, op, conflictID string, err error) bool {
	log := logger.FromContext(ctx)
	switch {
	case err == nil:
		log.Info().Str("func", op).Str("conflict_id", conflictID).Msg("conflict resolved")
		return true
	case errors.Is(err, store.ErrConflictAlreadyResolved), errors.Is(err, store.ErrEntryNotFound), errors.Is(err, store.ErrConflictNotFound):
		log.Info().Err(err).Str("func", op).Str("conflict_id", conflictID).Msg("conflict no longer open")
	default:
		log.Err(err).Str("func", op).Str("conflict_id", conflictID).Msg("failed to resolve conflict")
	}
	return false
}

// ListUnresolved implements [ConflictResolver].
func (r *conflictResolver) ListUnresolved(ctx context.Context, vaultID string) ([]models.ConflictRecord, error) {
	conflicts, err := r.conflicts.ListUnresolved(ctx, vaultID)
	if err != nil {
		return nil, mapStoreError("conflictResolver.ListUnresolved", err)
	}
	return conflicts, nil
}

// Describe implements [ConflictResolver].
func (r *conflictResolver) Describe(ctx context.Context, conflictID string) (string, error) {
	const op = "conflictResolver.Describe"

	c, err := r.conflicts.GetConflict(ctx, conflictID)
	if err != nil {
		return "", mapStoreError(op, err)
	}
	key, err := r.sessions.SymmetricKey(c.VaultID)
	if err != nil {
		return "", err
	}

	localText := "(local entry deleted)"
	if entry, err := r.entries.GetEntry(ctx, c.EntryID); err == nil {
		plain, err := open(entryCredential(entry), key)
		if err != nil {
			return "", mapStoreError(op, err)
		}
		localText = renderCredential(plain)
	}

	var server models.CipherResponse
	if err = json.Unmarshal([]byte(c.ServerSnapshot), &server); err != nil {
		return "", newError(KindInternal, op, app.MsgInternalError, err)
	}
	serverText := "(deleted on server)"
	if !server.IsDeleted() {
		plain, err := decodeCipher(server, key)
		if err != nil {
			return "", mapStoreError(op, err)
		}
		serverText = renderCredential(plain)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "conflict %s (%s)\n", c.ID, c.Type)
	if c.LocalRevision != nil {
		fmt.Fprintf(&b, "--- local  %s\n", c.LocalRevision.Format(time.RFC3339))
	} else {
		b.WriteString("--- local\n")
	}
	if c.ServerRevision != nil {
		fmt.Fprintf(&b, "+++ server %s\n", c.ServerRevision.Format(time.RFC3339))
	} else {
		b.WriteString("+++ server\n")
	}
	b.WriteString(lineDiff(localText, serverText))
	return b.String(), nil
}

// renderCredential lays out the secret-free view of an entry: the password
// and TOTP seed are shown only as changed or unchanged markers.
func renderCredential(c models.Credential) string {
	var b strings.Builder
	fmt.Fprintf(&b, "title: %s\n", c.Title)
	fmt.Fprintf(&b, "username: %s\n", c.Username)
	fmt.Fprintf(&b, "url: %s\n", c.URL)
	fmt.Fprintf(&b, "password: %s\n", fingerprint(c.Password))
	fmt.Fprintf(&b, "totp: %s\n", fingerprint(c.Totp))
	for _, line := range strings.Split(c.Notes, "\n") {
		fmt.Fprintf(&b, "notes: %s\n", line)
	}
	return b.String()
}

// fingerprints is keyed per process, so markers cannot be compared across
// runs.
var fingerprints = utils.NewEphemeralHasher()

func fingerprint(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return "hidden #" + fingerprints.ShortHex([]byte(secret), 4)
}

// lineDiff prefixes each line with " ", "-" or "+".
func lineDiff(local, server string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(local, server)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
		}
	}
	return out.String()
}
