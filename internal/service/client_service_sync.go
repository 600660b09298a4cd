package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/store"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/models"
)

type syncEngine struct {
	sessions  VaultSessionStore
	api       adapter.VaultAPI
	vaults    store.VaultRepository
	entries   store.LoginEntryRepository
	folders   store.FolderRepository
	sends     store.SendRepository
	conflicts store.ConflictRepository
	ids       utils.UUIDGenerator
	cfg       config.ClientSync

	mu        sync.Mutex
	running   map[string]struct{}
	confirmed map[string]bool

	now    func() time.Time
	logger *logger.Logger
}

// NewSyncEngine creates a [SyncEngine] over the given storages.
func NewSyncEngine(sessions VaultSessionStore, api adapter.VaultAPI, storages *store.ClientStorages, cfg config.ClientSync, log *logger.Logger) SyncEngine {
	return &syncEngine{
		sessions:  sessions,
		api:       api,
		vaults:    storages.Vaults,
		entries:   storages.Entries,
		folders:   storages.Folders,
		sends:     storages.Sends,
		conflicts: storages.Conflicts,
		cfg:       cfg,
		running:   make(map[string]struct{}),
		confirmed: make(map[string]bool),
		now:       time.Now,
		logger:    log,
	}
}

// ConfirmClear implements [SyncEngine].
func (e *syncEngine) ConfirmClear(vaultID string) {
	e.mu.Lock()
	e.confirmed[vaultID] = true
	e.mu.Unlock()
}

// takeConfirmation consumes a pending confirmation for vaultID.
func (e *syncEngine) takeConfirmation(vaultID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.confirmed[vaultID]
	delete(e.confirmed, vaultID)
	return ok
}

func (e *syncEngine) tryStart(vaultID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.running[vaultID]; busy {
		return false
	}
	e.running[vaultID] = struct{}{}
	return true
}

func (e *syncEngine) finish(vaultID string) {
	e.mu.Lock()
	delete(e.running, vaultID)
	e.mu.Unlock()
}

// Sync implements [SyncEngine].
func (e *syncEngine) Sync(ctx context.Context, vaultID string) models.SyncOutcome {
	const op = "syncEngine.Sync"

	if !e.tryStart(vaultID) {
		return syncFailed(newError(KindState, op, app.MsgSyncInProgress, ErrSyncInProgress))
	}
	defer e.finish(vaultID)

	if !e.sessions.IsUnlocked(vaultID) {
		return syncFailed(newError(KindState, op, app.MsgVaultLocked, ErrVaultLocked))
	}

	// Locking or logging out the vault cancels the pass.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.sessions.SessionContext(vaultID), cancel)
	defer stop()

	log := e.logger.WithVault(vaultID)
	ctx = log.WithContext(ctx)

	outcome, err := e.sync(ctx, vaultID)
	if err != nil {
		log.Err(err).Str("func", op).Msg("sync failed")
		return syncFailed(err)
	}

	log.Info().
		Str("func", op).
		Str("kind", outcome.Kind.String()).
		Int("added", outcome.Added).
		Int("updated", outcome.Updated).
		Int("conflicts", outcome.Conflicts).
		Int("deleted", outcome.Deleted).
		Int("skipped", outcome.Skipped).
		Int("uploaded", outcome.Uploaded).
		Msg("sync finished")
	return outcome
}

func (e *syncEngine) sync(ctx context.Context, vaultID string) (models.SyncOutcome, error) {
	const op = "syncEngine.Sync"
	log := logger.FromContext(ctx)

	v, err := e.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return models.SyncOutcome{}, mapStoreError(op, err)
	}
	if !v.Connected {
		return models.SyncOutcome{}, newError(KindState, op, app.MsgVaultDisconnected, ErrVaultDisconnected)
	}

	snapshot, token, err := e.fetch(ctx, v)
	if err != nil {
		return models.SyncOutcome{}, err
	}

	key, err := e.sessions.SymmetricKey(vaultID)
	if err != nil {
		return models.SyncOutcome{}, err
	}

	local, err := e.entries.ListEntries(ctx, vaultID)
	if err != nil {
		return models.SyncOutcome{}, mapStoreError(op, err)
	}

	blocked, warning := e.protect(vaultID, v, snapshot, local)
	if blocked {
		log.Warn().Str("func", op).Int("local", liveCount(local)).Msg("empty snapshot blocked")
		return models.SyncOutcome{Kind: models.SyncBlocked, Message: app.MsgSyncBlocked}, nil
	}
	if warning != "" {
		log.Warn().Str("func", op).Msg(warning)
	}

	return e.apply(ctx, v, token, key, snapshot, local, warning)
}

// fetch downloads the snapshot, refreshing the token once when the server
// rejects it.
func (e *syncEngine) fetch(ctx context.Context, v models.Vault) (models.SyncResponse, string, error) {
	const op = "syncEngine.fetch"

	token, err := e.sessions.AccessToken(ctx, v.ID)
	if err != nil {
		return models.SyncResponse{}, "", err
	}

	snapshot, err := e.api.Sync(ctx, v.URLs.API, token)
	if errors.Is(err, adapter.ErrUnauthorized) {
		logger.FromContext(ctx).Info().Str("func", op).Msg("token rejected, refreshing")
		if err = e.sessions.Refresh(ctx, v.ID); err != nil {
			return models.SyncResponse{}, "", err
		}
		if token, err = e.sessions.AccessToken(ctx, v.ID); err != nil {
			return models.SyncResponse{}, "", err
		}
		snapshot, err = e.api.Sync(ctx, v.URLs.API, token)
	}
	if err != nil {
		return models.SyncResponse{}, "", mapAdapterError(op, err)
	}
	return snapshot, token, nil
}

// protect decides whether the snapshot may be applied. An empty snapshot is
// blocked when the vault has synced before, still holds live entries and
// the user has not confirmed. warning is set when a large share of known
// items is missing from the snapshot.
func (e *syncEngine) protect(vaultID string, v models.Vault, snapshot models.SyncResponse, local []models.LoginEntry) (blocked bool, warning string) {
	confirmed := e.takeConfirmation(vaultID)
	live := liveCount(local)

	if v.LastSyncAt != nil && snapshot.LiveCipherCount() == 0 && live > 0 && !confirmed {
		return true, ""
	}

	present := make(map[string]struct{}, len(snapshot.Ciphers))
	for _, c := range snapshot.Ciphers {
		present[c.ID] = struct{}{}
	}
	known, missing := 0, 0
	for _, le := range local {
		if le.CipherID == nil || le.DeletedAt != nil {
			continue
		}
		known++
		if _, ok := present[*le.CipherID]; !ok {
			missing++
		}
	}
	if known > 0 && float64(missing)/float64(known) > e.cfg.DataLossWarnRatio {
		return false, fmt.Sprintf("%s (%d of %d)", app.MsgDataLossWarning, missing, known)
	}
	return false, ""
}

func (e *syncEngine) apply(ctx context.Context, v models.Vault, token string, key *crypto.SymmetricCryptoKey, snapshot models.SyncResponse, local []models.LoginEntry, warning string) (models.SyncOutcome, error) {
	const op = "syncEngine.Sync"
	log := logger.FromContext(ctx)
	outcome := models.SyncOutcome{Kind: models.SyncSuccess, Warning: warning}

	if snapshot.Profile.ID != "" && snapshot.Profile.ID != v.UserID {
		if err := e.vaults.UpdateUserID(ctx, v.ID, snapshot.Profile.ID); err != nil {
			log.Warn().Err(err).Str("func", op).Msg("failed to store user id")
		}
	}

	if err := e.folders.UpsertFolders(ctx, v.ID, e.folderBatch(ctx, v.ID, key, snapshot.Folders)); err != nil {
		return models.SyncOutcome{}, mapStoreError(op, err)
	}

	batch, skipped := e.reconcile(ctx, v.ID, key, snapshot.Ciphers, local)
	if err := e.entries.ApplyCipherBatch(ctx, v.ID, batch); err != nil {
		return models.SyncOutcome{}, mapStoreError(op, err)
	}
	outcome.Added = len(batch.Insert)
	outcome.Updated = len(batch.Update)
	outcome.Deleted = len(batch.SoftDelete)
	outcome.Conflicts = len(batch.Conflicts)
	outcome.Skipped = skipped

	if err := e.sends.ReplaceSends(ctx, v.ID, e.sendBatch(ctx, v.ID, snapshot.Sends)); err != nil {
		return models.SyncOutcome{}, mapStoreError(op, err)
	}

	if e.cfg.PushLocalEdits {
		uploaded, err := e.push(ctx, v, token, key)
		if err != nil {
			return models.SyncOutcome{}, err
		}
		outcome.Uploaded = uploaded
	}

	if err := e.vaults.MarkSynced(ctx, v.ID, e.now().UTC(), latestRevision(snapshot)); err != nil {
		return models.SyncOutcome{}, mapStoreError(op, err)
	}

	if outcome.Conflicts > 0 {
		outcome.Message = app.MsgConflictsDetected
	}
	return outcome, nil
}

// reconcile builds the cipher batch of one pass. Ciphers that fail to
// decrypt or parse are skipped and counted.
func (e *syncEngine) reconcile(ctx context.Context, vaultID string, key *crypto.SymmetricCryptoKey, ciphers []models.CipherResponse, local []models.LoginEntry) (models.CipherBatch, int) {
	log := logger.FromContext(ctx).With().Str("func", "syncEngine.reconcile").Logger()

	byCipher := make(map[string]models.LoginEntry, len(local))
	for _, le := range local {
		if le.CipherID != nil {
			byCipher[*le.CipherID] = le
		}
	}

	var (
		batch   models.CipherBatch
		skipped int
		now     = e.now().UTC()
	)
	for _, c := range ciphers {
		if c.OrganizationID != nil && *c.OrganizationID != "" {
			log.Debug().Str("cipher_id", c.ID).Msg("organization cipher skipped")
			skipped++
			continue
		}

		revision, err := parseRevision(c)
		if err != nil {
			log.Warn().Err(err).Str("cipher_id", c.ID).Msg("cipher skipped")
			skipped++
			continue
		}

		existing, found := byCipher[c.ID]

		if revision.DeletedAt != nil {
			switch {
			case !found, existing.DeletedAt != nil:
			case existing.LocallyModified && serverNewer(revision.At, existing.LastSyncedAt):
				batch.Conflicts = append(batch.Conflicts, e.conflict(existing, c, models.ConflictServerDeleted, revision, now))
			case existing.LocallyModified:
				// Edited after the deletion was synced; push restores it.
			default:
				existing.DeletedAt = revision.DeletedAt
				existing.ServerRevision = &revision.At
				existing.LastSyncedAt = &revision.At
				batch.SoftDelete = append(batch.SoftDelete, existing)
			}
			continue
		}

		if found && existing.LocallyModified {
			newer := serverNewer(revision.At, existing.LastSyncedAt)
			switch {
			case !newer:
				continue
			case existing.DeletedAt == nil:
				batch.Conflicts = append(batch.Conflicts, e.conflict(existing, c, models.ConflictConcurrentEdit, revision, now))
				continue
			}
			// A server edit newer than a local delete revives the entry.
		}
		if found && existing.DeletedAt == nil && existing.ServerRevision != nil && !serverNewer(revision.At, existing.ServerRevision) {
			continue
		}

		plain, err := decodeCipher(c, key)
		if err != nil {
			log.Warn().Err(err).Str("cipher_id", c.ID).Msg("cipher failed verification, skipped")
			skipped++
			continue
		}
		sealed, err := seal(plain, key)
		if err != nil {
			log.Warn().Err(err).Str("cipher_id", c.ID).Msg("cipher could not be sealed, skipped")
			skipped++
			continue
		}

		if !found {
			entry := models.LoginEntry{ID: e.ids.Generate(), VaultID: vaultID, CreatedAt: now, UpdatedAt: now}
			applyServer(&entry, c, sealed, revision)
			batch.Insert = append(batch.Insert, entry)
			continue
		}
		applyServer(&existing, c, sealed, revision)
		existing.UpdatedAt = now
		batch.Update = append(batch.Update, existing)
	}
	return batch, skipped
}

func (e *syncEngine) conflict(local models.LoginEntry, c models.CipherResponse, kind models.ConflictType, revision cipherRevision, now time.Time) models.ConflictRecord {
	snapshot, _ := json.Marshal(c)
	localRevision := local.UpdatedAt
	serverRevision := revision.At
	return models.ConflictRecord{
		ID:             e.ids.Generate(),
		VaultID:        local.VaultID,
		EntryID:        local.ID,
		CipherID:       c.ID,
		Type:           kind,
		ServerSnapshot: string(snapshot),
		ServerRevision: &serverRevision,
		LocalRevision:  &localRevision,
		EntryTitle:     local.Title,
		CreatedAt:      now,
	}
}

// serverNewer reports whether a server revision is strictly after the local
// baseline at millisecond precision. A missing baseline is always older.
func serverNewer(server time.Time, baseline *time.Time) bool {
	if baseline == nil {
		return true
	}
	return server.Truncate(time.Millisecond).After(baseline.Truncate(time.Millisecond))
}

// folderBatch keeps the folders whose names verify under key. Names stay
// sealed.
func (e *syncEngine) folderBatch(ctx context.Context, vaultID string, key *crypto.SymmetricCryptoKey, in []models.FolderResponse) []models.Folder {
	log := logger.FromContext(ctx)
	out := make([]models.Folder, 0, len(in))
	for _, f := range in {
		if _, err := crypto.DecryptString(f.Name, key); err != nil {
			log.Warn().Err(err).Str("folder_id", f.ID).Msg("folder failed verification, skipped")
			continue
		}
		rev, err := models.ParseServerTime(f.RevisionDate)
		if err != nil {
			rev = e.now().UTC()
		}
		out = append(out, models.Folder{ID: f.ID, VaultID: vaultID, Name: f.Name, RevisionDate: rev})
	}
	return out
}

// sendBatch converts sends. Their names are sealed with per-send keys and are
// stored as received.
func (e *syncEngine) sendBatch(ctx context.Context, vaultID string, in []models.SendResponse) []models.Send {
	log := logger.FromContext(ctx)
	out := make([]models.Send, 0, len(in))
	for _, s := range in {
		rev, err := models.ParseServerTime(s.RevisionDate)
		if err != nil {
			log.Warn().Err(err).Str("send_id", s.ID).Msg("send skipped")
			continue
		}
		expires, err := models.ParseOptionalServerTime(s.ExpirationDate)
		if err != nil {
			log.Warn().Err(err).Str("send_id", s.ID).Msg("send skipped")
			continue
		}
		deletes, err := models.ParseOptionalServerTime(s.DeletionDate)
		if err != nil {
			log.Warn().Err(err).Str("send_id", s.ID).Msg("send skipped")
			continue
		}

		send := models.Send{
			ID:             s.ID,
			VaultID:        vaultID,
			AccessID:       s.AccessID,
			Type:           s.Type,
			Name:           s.Name,
			Key:            s.Key,
			Disabled:       s.Disabled,
			AccessCount:    s.AccessCount,
			MaxAccessCount: s.MaxAccessCount,
			RevisionDate:   rev,
			ExpirationDate: expires,
			DeletionDate:   deletes,
		}
		if s.Notes != nil {
			send.Notes = *s.Notes
		}
		out = append(out, send)
	}
	return out
}

// push sends local changes of entries that have no open conflict: local
// deletes move their ciphers to the trash, live edits are uploaded. Rejected
// requests are logged and left for the next pass; transport failures abort.
func (e *syncEngine) push(ctx context.Context, v models.Vault, token string, key *crypto.SymmetricCryptoKey) (int, error) {
	const op = "syncEngine.push"
	log := logger.FromContext(ctx).With().Str("func", op).Logger()

	modified, err := e.entries.ListModified(ctx, v.ID)
	if err != nil {
		return 0, mapStoreError(op, err)
	}
	deleted, err := e.entries.ListPendingDeletes(ctx, v.ID)
	if err != nil {
		return 0, mapStoreError(op, err)
	}
	if len(modified)+len(deleted) == 0 {
		return 0, nil
	}

	unresolved, err := e.conflicts.ListUnresolved(ctx, v.ID)
	if err != nil {
		return 0, mapStoreError(op, err)
	}
	blocked := make(map[string]struct{}, len(unresolved))
	for _, c := range unresolved {
		blocked[c.EntryID] = struct{}{}
	}

	pushed := 0
	for _, entry := range deleted {
		if _, ok := blocked[entry.ID]; ok {
			continue
		}

		if err = e.trash(ctx, v, token, *entry.CipherID); err != nil {
			if adapter.IsRetryable(err) {
				return pushed, mapAdapterError(op, err)
			}
			log.Warn().Err(err).Str("entry_id", entry.ID).Msg("delete rejected")
			continue
		}
		if err = e.entries.MarkUploaded(ctx, entry.ID, *entry.CipherID, e.now().UTC()); err != nil {
			return pushed, mapStoreError(op, err)
		}
		pushed++
	}

	for _, entry := range modified {
		if _, ok := blocked[entry.ID]; ok || !pushable(entry.Type) {
			continue
		}

		resp, err := e.upload(ctx, v, token, key, entry)
		if err != nil {
			if adapter.IsRetryable(err) {
				return pushed, mapAdapterError(op, err)
			}
			log.Warn().Err(err).Str("entry_id", entry.ID).Msg("upload rejected")
			continue
		}

		revision, err := models.ParseServerTime(resp.RevisionDate)
		if err != nil {
			revision = e.now().UTC()
		}
		if err = e.entries.MarkUploaded(ctx, entry.ID, resp.ID, revision); err != nil {
			return pushed, mapStoreError(op, err)
		}
		pushed++
	}
	return pushed, nil
}

// trash soft-deletes a cipher. A cipher the server no longer knows counts as
// deleted.
func (e *syncEngine) trash(ctx context.Context, v models.Vault, token, cipherID string) error {
	err := e.api.SoftDeleteCipher(ctx, v.URLs.API, token, cipherID)
	if errors.Is(err, adapter.ErrNotFound) {
		return nil
	}
	return err
}

func (e *syncEngine) upload(ctx context.Context, v models.Vault, token string, key *crypto.SymmetricCryptoKey, entry models.LoginEntry) (models.CipherResponse, error) {
	plain, err := open(entryCredential(entry), key)
	if err != nil {
		return models.CipherResponse{}, err
	}

	if entry.CipherID == nil {
		req, err := cipherRequest(entry, plain, nil, key)
		if err != nil {
			return models.CipherResponse{}, err
		}
		return e.api.CreateCipher(ctx, v.URLs.API, token, req)
	}

	base, err := e.api.GetCipher(ctx, v.URLs.API, token, *entry.CipherID)
	if err != nil {
		return models.CipherResponse{}, err
	}
	if base.IsDeleted() {
		restored, err := e.api.RestoreCipher(ctx, v.URLs.API, token, *entry.CipherID)
		if err != nil {
			return models.CipherResponse{}, err
		}
		if restored.RevisionDate != "" {
			base.RevisionDate = restored.RevisionDate
		}
		base.DeletedDate = nil
	}

	req, err := cipherRequest(entry, plain, &base, key)
	if err != nil {
		return models.CipherResponse{}, err
	}
	return e.api.UpdateCipher(ctx, v.URLs.API, token, *entry.CipherID, req)
}

func liveCount(entries []models.LoginEntry) int {
	n := 0
	for _, le := range entries {
		if le.DeletedAt == nil {
			n++
		}
	}
	return n
}

func latestRevision(snapshot models.SyncResponse) *time.Time {
	var latest *time.Time
	for _, c := range snapshot.Ciphers {
		t, err := models.ParseServerTime(c.RevisionDate)
		if err != nil {
			continue
		}
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}

func syncFailed(err error) models.SyncOutcome {
	return models.SyncOutcome{Kind: models.SyncError, Message: UserMessage(err), Err: err}
}
