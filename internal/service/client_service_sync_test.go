package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-vault-sync/internal/adapter"
	"github.com/MKhiriev/go-vault-sync/internal/app"
	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/mock"
	"github.com/MKhiriev/go-vault-sync/internal/store"
	"github.com/MKhiriev/go-vault-sync/models"
)

type syncFixture struct {
	engine   SyncEngine
	sessions VaultSessionStore
	storages *store.ClientStorages
	api      *mock.MockVaultAPI
	identity *mock.MockIdentityClient
	vault    models.Vault
	key      *crypto.SymmetricCryptoKey
}

func newSyncFixture(t *testing.T, ctrl *gomock.Controller, cfg config.ClientSync) *syncFixture {
	t.Helper()
	storages := newTestStorages(t)
	identity := mock.NewMockIdentityClient(ctrl)
	api := mock.NewMockVaultAPI(ctrl)
	sessions := NewVaultSessionStore(storages.Vaults, newTestWrapper(t), identity, logger.Nop())

	v := loginVault(t, sessions, "a@b.com")
	key, err := sessions.SymmetricKey(v.ID)
	require.NoError(t, err)

	return &syncFixture{
		engine:   NewSyncEngine(sessions, api, storages, cfg, logger.Nop()),
		sessions: sessions,
		storages: storages,
		api:      api,
		identity: identity,
		vault:    v,
		key:      key,
	}
}

func defaultSyncConfig() config.ClientSync {
	return config.ClientSync{DataLossWarnRatio: 0.5}
}

func (f *syncFixture) expectSnapshot(snapshot models.SyncResponse) *gomock.Call {
	return f.api.EXPECT().Sync(gomock.Any(), testURLs.API, "access-a@b.com").Return(snapshot, nil)
}

// seedEntry stores a local entry sealed under the vault key.
func (f *syncFixture) seedEntry(t *testing.T, id string, cipherID *string, title string, modified bool, synced *time.Time) models.LoginEntry {
	t.Helper()
	e := models.LoginEntry{
		ID:              id,
		VaultID:         f.vault.ID,
		CipherID:        cipherID,
		Type:            models.CipherLogin,
		Title:           sealString(t, f.key, title),
		Username:        sealString(t, f.key, "alice"),
		Password:        sealString(t, f.key, "local-secret"),
		URL:             sealString(t, f.key, "https://example.com"),
		LocallyModified: modified,
		ServerRevision:  synced,
		LastSyncedAt:    synced,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, f.storages.Entries.SaveEntry(context.Background(), e))
	return e
}

func (f *syncFixture) entryByCipher(t *testing.T, cipherID string) models.LoginEntry {
	t.Helper()
	entries, err := f.storages.Entries.ListEntries(context.Background(), f.vault.ID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.CipherID != nil && *e.CipherID == cipherID {
			return e
		}
	}
	t.Fatalf("no entry for cipher %s", cipherID)
	return models.LoginEntry{}
}

// assertPersistedTokens relocks the vault, unlocks it from the stored row and
// checks the bearer token and the refresh token it carries.
func (f *syncFixture) assertPersistedTokens(t *testing.T, access, refresh string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.sessions.Lock(ctx, f.vault.ID))
	require.NoError(t, f.sessions.Unlock(ctx, f.vault.ID, []byte(testPassword)))

	token, err := f.sessions.AccessToken(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, access, token)

	f.identity.EXPECT().RefreshGrant(gomock.Any(), testURLs.Identity, refresh).Return(tokenGrant("access-3"), nil)
	require.NoError(t, f.sessions.Refresh(ctx, f.vault.ID))
}

func rev(minute int) time.Time {
	return time.Date(2026, 3, 1, 12, minute, 0, 0, time.UTC)
}

// ── Preconditions ────────────────────────────────────────────────────────────

func TestSyncEngine_LockedVaultMakesNoRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	require.NoError(t, f.sessions.Lock(context.Background(), f.vault.ID))

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	assert.Equal(t, models.SyncError, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrVaultLocked)
	assert.Equal(t, app.MsgVaultLocked, outcome.Message)
}

func TestSyncEngine_DisconnectedVault(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	v, err := f.storages.Vaults.GetVault(ctx, f.vault.ID)
	require.NoError(t, err)
	v.Connected = false
	require.NoError(t, f.storages.Vaults.UpdateVault(ctx, v))

	outcome := f.engine.Sync(ctx, f.vault.ID)
	assert.Equal(t, models.SyncError, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrVaultDisconnected)
}

// ── Applying snapshots ───────────────────────────────────────────────────────

func TestSyncEngine_FirstSyncInsertsAndSkipsUnverifiable(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	foreign := newSuccess(t, "x@y.com", "other", time.Now())
	defer foreign.Destroy()

	orgID := "org-1"
	org := loginCipher(t, f.key, "c4", "Shared", "s", rev(0))
	org.OrganizationID = &orgID

	sendName := sealString(t, f.key, "note")
	snapshot := models.SyncResponse{
		Profile: models.ProfileResponse{ID: "user-1", Email: "a@b.com"},
		Folders: []models.FolderResponse{
			{ID: "f1", Name: sealString(t, f.key, "Work"), RevisionDate: serverTime(rev(0))},
		},
		Ciphers: []models.CipherResponse{
			loginCipher(t, f.key, "c1", "GitHub", "gh-secret", rev(1)),
			loginCipher(t, f.key, "c2", "Mail", "mail-secret", rev(2)),
			loginCipher(t, foreign.SymmetricKey, "c3", "Tampered", "x", rev(3)),
			org,
		},
		Sends: []models.SendResponse{
			{ID: "s1", AccessID: "acc", Name: sendName, RevisionDate: serverTime(rev(0))},
		},
	}
	f.expectSnapshot(snapshot)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 2, outcome.Added)
	assert.Equal(t, 0, outcome.Updated)
	assert.Equal(t, 2, outcome.Skipped)
	assert.Equal(t, 0, outcome.Conflicts)

	gh := f.entryByCipher(t, "c1")
	assert.Equal(t, "GitHub", openString(t, f.key, gh.Title))
	assert.Equal(t, "gh-secret", openString(t, f.key, gh.Password))
	assert.Equal(t, "https://example.com", openString(t, f.key, gh.URL))
	assert.NotContains(t, gh.Password, "gh-secret")
	assert.False(t, gh.LocallyModified)
	require.NotNil(t, gh.ServerRevision)
	assert.True(t, gh.ServerRevision.Equal(rev(1)))

	entries, err := f.storages.Entries.ListEntries(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	folders, err := f.storages.Folders.ListFolders(ctx, f.vault.ID)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Work", openString(t, f.key, folders[0].Name))

	sends, err := f.storages.Sends.ListSends(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.Len(t, sends, 1)

	v, err := f.storages.Vaults.GetVault(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.NotNil(t, v.LastSyncAt)
	assert.Equal(t, "user-1", v.UserID)
	require.NotNil(t, v.RevisionDate)
	assert.True(t, v.RevisionDate.Equal(rev(3)))
}

func TestSyncEngine_UnchangedAndNewerRevisions(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	first := models.SyncResponse{Ciphers: []models.CipherResponse{
		loginCipher(t, f.key, "c1", "GitHub", "old", rev(1)),
	}}
	second := models.SyncResponse{Ciphers: []models.CipherResponse{
		loginCipher(t, f.key, "c1", "GitHub", "new", rev(5)),
	}}
	gomock.InOrder(
		f.expectSnapshot(first),
		f.expectSnapshot(first),
		f.expectSnapshot(second),
	)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, 1, outcome.Added)

	outcome = f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind)
	assert.Equal(t, 0, outcome.Added)
	assert.Equal(t, 0, outcome.Updated)

	outcome = f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind)
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, "new", openString(t, f.key, f.entryByCipher(t, "c1").Password))
}

func TestSyncEngine_ConcurrentEditRaisesConflict(t *testing.T) {
	tests := []struct {
		name          string
		serverRev     time.Time
		wantConflicts int
	}{
		{name: "server newer", serverRev: rev(5), wantConflicts: 1},
		{name: "server same revision", serverRev: rev(1), wantConflicts: 0},
		{name: "server newer below a millisecond", serverRev: rev(1).Add(500 * time.Microsecond), wantConflicts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			f := newSyncFixture(t, ctrl, defaultSyncConfig())
			ctx := context.Background()

			local := f.seedEntry(t, "e1", ptr("c1"), "Edited locally", true, ptr(rev(1)))
			server := loginCipher(t, f.key, "c1", "Edited on server", "server-secret", tt.serverRev)
			server.RevisionDate = tt.serverRev.Format(time.RFC3339Nano)
			f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{server}})

			outcome := f.engine.Sync(ctx, f.vault.ID)
			require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
			assert.Equal(t, tt.wantConflicts, outcome.Conflicts)
			assert.Equal(t, 0, outcome.Updated)

			entry, err := f.storages.Entries.GetEntry(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, local.Title, entry.Title)
			assert.True(t, entry.LocallyModified)

			conflicts, err := f.storages.Conflicts.ListUnresolved(ctx, f.vault.ID)
			require.NoError(t, err)
			require.Len(t, conflicts, tt.wantConflicts)
			if tt.wantConflicts == 0 {
				assert.Empty(t, outcome.Message)
				return
			}
			assert.Equal(t, app.MsgConflictsDetected, outcome.Message)
			c := conflicts[0]
			assert.Equal(t, models.ConflictConcurrentEdit, c.Type)
			assert.Equal(t, "e1", c.EntryID)
			assert.Equal(t, "c1", c.CipherID)
			assert.Equal(t, "Edited locally", openString(t, f.key, c.EntryTitle))
			assert.NotContains(t, c.ServerSnapshot, "server-secret")
		})
	}
}

func TestSyncEngine_Tombstones(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	f.seedEntry(t, "e1", ptr("c1"), "Trashed", false, ptr(rev(1)))
	f.seedEntry(t, "e2", ptr("c2"), "Missing", false, ptr(rev(1)))
	f.seedEntry(t, "e3", ptr("c3"), "Kept", false, ptr(rev(1)))
	f.seedEntry(t, "e4", ptr("c4"), "Trashed but edited", true, ptr(rev(1)))

	deletedAt := serverTime(rev(9))
	trashed := loginCipher(t, f.key, "c1", "Trashed", "x", rev(9))
	trashed.DeletedDate = &deletedAt
	trashedEdited := loginCipher(t, f.key, "c4", "Trashed but edited", "x", rev(9))
	trashedEdited.DeletedDate = &deletedAt

	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{
		trashed,
		loginCipher(t, f.key, "c3", "Kept", "local-secret", rev(1)),
		trashedEdited,
	}})

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 1, outcome.Deleted)
	assert.Equal(t, 1, outcome.Conflicts)

	e1, err := f.storages.Entries.GetEntry(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, e1.DeletedAt)
	assert.True(t, e1.DeletedAt.Equal(rev(9)))

	// Absence from the snapshot is not a deletion.
	e2, err := f.storages.Entries.GetEntry(ctx, "e2")
	require.NoError(t, err)
	assert.Nil(t, e2.DeletedAt)

	e4, err := f.storages.Entries.GetEntry(ctx, "e4")
	require.NoError(t, err)
	assert.Nil(t, e4.DeletedAt)

	conflicts, err := f.storages.Conflicts.ListUnresolved(ctx, f.vault.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictServerDeleted, conflicts[0].Type)
}

func TestSyncEngine_DataLossWarning(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())

	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("c%d", i)
		f.seedEntry(t, "e"+id, &id, id, false, ptr(rev(1)))
	}
	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{
		loginCipher(t, f.key, "c1", "c1", "local-secret", rev(1)),
	}})

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind)
	assert.Contains(t, outcome.Warning, app.MsgDataLossWarning)
	assert.Contains(t, outcome.Warning, "3 of 4")
}

// ── Empty snapshot protection ────────────────────────────────────────────────

func TestSyncEngine_EmptySnapshotBlockedAfterPreviousSync(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("c%d", i)
		f.seedEntry(t, "e"+id, &id, id, false, ptr(rev(1)))
	}
	require.NoError(t, f.storages.Vaults.MarkSynced(ctx, f.vault.ID, time.Now().UTC(), ptr(rev(1))))

	f.api.EXPECT().Sync(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.SyncResponse{}, nil).Times(3)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	assert.Equal(t, models.SyncBlocked, outcome.Kind)
	assert.Equal(t, app.MsgSyncBlocked, outcome.Message)
	n, err := f.storages.Entries.CountActiveEntries(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	f.engine.ConfirmClear(f.vault.ID)
	outcome = f.engine.Sync(ctx, f.vault.ID)
	assert.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.NotEmpty(t, outcome.Warning)

	// The confirmation is used up.
	outcome = f.engine.Sync(ctx, f.vault.ID)
	assert.Equal(t, models.SyncBlocked, outcome.Kind)
}

func TestSyncEngine_EmptySnapshotAllowedOnFirstSync(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	f.seedEntry(t, "e1", nil, "Local only", false, nil)

	f.expectSnapshot(models.SyncResponse{})

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	assert.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
}

// ── Concurrency and cancellation ─────────────────────────────────────────────

func TestSyncEngine_SecondSyncReportsInProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.EXPECT().
		Sync(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (models.SyncResponse, error) {
			close(started)
			<-release
			return models.SyncResponse{}, nil
		})

	done := make(chan models.SyncOutcome, 1)
	go func() { done <- f.engine.Sync(ctx, f.vault.ID) }()
	<-started

	second := f.engine.Sync(ctx, f.vault.ID)
	assert.Equal(t, models.SyncError, second.Kind)
	assert.ErrorIs(t, second.Err, ErrSyncInProgress)
	assert.Equal(t, app.MsgSyncInProgress, second.Message)

	close(release)
	first := <-done
	assert.Equal(t, models.SyncSuccess, first.Kind, "err: %v", first.Err)
}

func TestSyncEngine_LockCancelsRunningSync(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	started := make(chan struct{})
	f.api.EXPECT().
		Sync(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (models.SyncResponse, error) {
			close(started)
			<-ctx.Done()
			return models.SyncResponse{}, fmt.Errorf("Sync: %w: %w", adapter.ErrTransport, ctx.Err())
		})

	done := make(chan models.SyncOutcome, 1)
	go func() { done <- f.engine.Sync(ctx, f.vault.ID) }()
	<-started

	require.NoError(t, f.sessions.Lock(ctx, f.vault.ID))

	select {
	case outcome := <-done:
		assert.Equal(t, models.SyncError, outcome.Kind)
		assert.True(t, IsState(outcome.Err))
	case <-time.After(5 * time.Second):
		t.Fatal("sync was not cancelled by lock")
	}
}

// ── Tokens ───────────────────────────────────────────────────────────────────

func TestSyncEngine_UnauthorizedRefreshesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())

	gomock.InOrder(
		f.api.EXPECT().
			Sync(gomock.Any(), testURLs.API, "access-a@b.com").
			Return(models.SyncResponse{}, fmt.Errorf("Sync: %w", adapter.ErrUnauthorized)),
		f.identity.EXPECT().
			RefreshGrant(gomock.Any(), testURLs.Identity, "refresh-a@b.com").
			Return(tokenGrant("access-2"), nil),
		f.api.EXPECT().
			Sync(gomock.Any(), testURLs.API, "access-2").
			Return(models.SyncResponse{}, nil),
	)

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	assert.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
}

func TestSyncEngine_RejectedAfterRefreshNeedsLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())

	f.api.EXPECT().
		Sync(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.SyncResponse{}, fmt.Errorf("Sync: %w", adapter.ErrUnauthorized)).
		Times(2)
	f.identity.EXPECT().RefreshGrant(gomock.Any(), gomock.Any(), gomock.Any()).Return(tokenGrant("access-2"), nil)

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	assert.Equal(t, models.SyncError, outcome.Kind)
	assert.True(t, IsCredential(outcome.Err))
	assert.Equal(t, app.MsgReloginRequired, outcome.Message)
}

func TestSyncEngine_ExpiringTokenRefreshedBeforeRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	_, err := f.sessions.SaveLogin(ctx, newSuccess(t, "a@b.com", testPassword, time.Now().Add(30*time.Second)))
	require.NoError(t, err)
	f.key, err = f.sessions.SymmetricKey(f.vault.ID)
	require.NoError(t, err)

	gomock.InOrder(
		f.identity.EXPECT().RefreshGrant(gomock.Any(), gomock.Any(), gomock.Any()).Return(tokenGrant("access-2"), nil),
		f.api.EXPECT().Sync(gomock.Any(), testURLs.API, "access-2").Return(models.SyncResponse{}, nil),
	)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	assert.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
}

func TestSyncEngine_RefreshBeforeRequestIsPersisted(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	_, err := f.sessions.SaveLogin(ctx, newSuccess(t, "a@b.com", testPassword, time.Now().Add(30*time.Second)))
	require.NoError(t, err)

	gomock.InOrder(
		f.identity.EXPECT().
			RefreshGrant(gomock.Any(), testURLs.Identity, "refresh-a@b.com").
			Return(tokenGrant("access-2"), nil),
		f.api.EXPECT().Sync(gomock.Any(), testURLs.API, "access-2").Return(models.SyncResponse{}, nil),
	)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)

	f.assertPersistedTokens(t, "access-2", "refresh")
}

func TestSyncEngine_RefreshAfterUnauthorizedIsPersisted(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())

	gomock.InOrder(
		f.api.EXPECT().
			Sync(gomock.Any(), testURLs.API, "access-a@b.com").
			Return(models.SyncResponse{}, fmt.Errorf("Sync: %w", adapter.ErrUnauthorized)),
		f.identity.EXPECT().
			RefreshGrant(gomock.Any(), testURLs.Identity, "refresh-a@b.com").
			Return(tokenGrant("access-2"), nil),
		f.api.EXPECT().
			Sync(gomock.Any(), testURLs.API, "access-2").
			Return(models.SyncResponse{}, nil),
	)

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)

	f.assertPersistedTokens(t, "access-2", "refresh")
}

// A snapshot that reports a new account id must not write back the vault
// row read before the token was refreshed.
func TestSyncEngine_UserIDChangeKeepsRefreshedTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())
	ctx := context.Background()

	_, err := f.sessions.SaveLogin(ctx, newSuccess(t, "a@b.com", testPassword, time.Now().Add(30*time.Second)))
	require.NoError(t, err)

	gomock.InOrder(
		f.identity.EXPECT().
			RefreshGrant(gomock.Any(), testURLs.Identity, "refresh-a@b.com").
			Return(tokenGrant("access-2"), nil),
		f.api.EXPECT().
			Sync(gomock.Any(), testURLs.API, "access-2").
			Return(models.SyncResponse{Profile: models.ProfileResponse{ID: "user-1"}}, nil),
	)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)

	v, err := f.storages.Vaults.GetVault(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", v.UserID)
	assert.True(t, v.AccessTokenExpiresAt.After(time.Now().Add(30*time.Minute)))

	f.assertPersistedTokens(t, "access-2", "refresh")
}

func TestSyncEngine_ServerUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, defaultSyncConfig())

	f.api.EXPECT().
		Sync(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.SyncResponse{}, fmt.Errorf("Sync: %w", adapter.ErrServiceUnavailable))

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	assert.Equal(t, models.SyncError, outcome.Kind)
	assert.True(t, Retryable(outcome.Err))
	assert.Equal(t, app.MsgCheckConnection, outcome.Message)
}

// ── Push ─────────────────────────────────────────────────────────────────────

func TestSyncEngine_PushCreatesNewCipher(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	f.seedEntry(t, "e1", nil, "New site", true, nil)
	f.expectSnapshot(models.SyncResponse{})
	f.api.EXPECT().
		CreateCipher(gomock.Any(), testURLs.API, "access-a@b.com", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, req models.CipherRequest) (models.CipherResponse, error) {
			assert.Equal(t, models.CipherLogin, req.Type)
			assert.Equal(t, "New site", openString(t, f.key, req.Name))
			require.NotNil(t, req.Login)
			require.NotNil(t, req.Login.Password)
			assert.Equal(t, "local-secret", openString(t, f.key, *req.Login.Password))
			assert.Nil(t, req.LastKnownRevisionDate)
			return models.CipherResponse{ID: "srv-1", RevisionDate: serverTime(rev(7))}, nil
		})

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 1, outcome.Uploaded)

	entry, err := f.storages.Entries.GetEntry(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, entry.CipherID)
	assert.Equal(t, "srv-1", *entry.CipherID)
	assert.False(t, entry.LocallyModified)
	require.NotNil(t, entry.ServerRevision)
	assert.True(t, entry.ServerRevision.Equal(rev(7)))
}

func TestSyncEngine_PushUpdatePreservesServerFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	f.seedEntry(t, "e1", ptr("c1"), "Edited", true, ptr(rev(1)))

	base := loginCipher(t, f.key, "c1", "Original", "server-secret", rev(1))
	fieldName := sealString(t, f.key, "pin")
	base.Fields = []models.CipherField{{Name: &fieldName}}
	base.Reprompt = 1

	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{base}})
	f.api.EXPECT().GetCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c1").Return(base, nil)
	f.api.EXPECT().
		UpdateCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, _ string, req models.CipherRequest) (models.CipherResponse, error) {
			assert.Equal(t, "Edited", openString(t, f.key, req.Name))
			assert.Equal(t, base.Fields, req.Fields)
			assert.Equal(t, 1, req.Reprompt)
			require.NotNil(t, req.LastKnownRevisionDate)
			assert.Equal(t, base.RevisionDate, *req.LastKnownRevisionDate)
			require.Len(t, req.Login.Uris, 1)
			return models.CipherResponse{ID: "c1", RevisionDate: serverTime(rev(8))}, nil
		})

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 0, outcome.Conflicts)
	assert.Equal(t, 1, outcome.Uploaded)

	entry, err := f.storages.Entries.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, entry.LocallyModified)
	assert.True(t, entry.LastSyncedAt.Equal(rev(8)))
}

func TestSyncEngine_PushSkipsEntriesWithOpenConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	f.seedEntry(t, "e1", ptr("c1"), "Edited", true, ptr(rev(1)))
	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{
		loginCipher(t, f.key, "c1", "Server edit", "x", rev(5)),
	}})

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 1, outcome.Conflicts)
	assert.Equal(t, 0, outcome.Uploaded)
}

func TestSyncEngine_PushAbortsOnTransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})

	f.seedEntry(t, "e1", nil, "New site", true, nil)
	f.expectSnapshot(models.SyncResponse{})
	f.api.EXPECT().
		CreateCipher(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.CipherResponse{}, fmt.Errorf("CreateCipher: %w: reset", adapter.ErrTransport))

	outcome := f.engine.Sync(context.Background(), f.vault.ID)
	assert.Equal(t, models.SyncError, outcome.Kind)
	assert.True(t, IsNetwork(outcome.Err))
}

// ── Push: deletes and restores ───────────────────────────────────────────────

func (f *syncFixture) deleteLocally(t *testing.T, id string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	e, err := f.storages.Entries.GetEntry(ctx, id)
	require.NoError(t, err)
	e.DeletedAt = &at
	e.LocallyModified = true
	require.NoError(t, f.storages.Entries.SaveEntry(ctx, e))
}

func TestSyncEngine_PushTrashesLocalDeletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	f.seedEntry(t, "e1", ptr("c1"), "Old site", false, ptr(rev(1)))
	f.seedEntry(t, "e2", ptr("c2"), "Purged site", false, ptr(rev(1)))
	f.deleteLocally(t, "e1", rev(3))
	f.deleteLocally(t, "e2", rev(3))

	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{
		loginCipher(t, f.key, "c1", "Old site", "local-secret", rev(1)),
	}})
	f.api.EXPECT().SoftDeleteCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c1").Return(nil)
	f.api.EXPECT().
		SoftDeleteCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c2").
		Return(fmt.Errorf("soft delete cipher: %w", adapter.ErrNotFound))

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 2, outcome.Uploaded)
	assert.Equal(t, 0, outcome.Conflicts)

	for _, id := range []string{"e1", "e2"} {
		e, err := f.storages.Entries.GetEntry(ctx, id)
		require.NoError(t, err)
		assert.False(t, e.LocallyModified, id)
		assert.NotNil(t, e.DeletedAt, id)
	}

	pending, err := f.storages.Entries.ListPendingDeletes(ctx, f.vault.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncEngine_RejectedDeleteStaysPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	f.seedEntry(t, "e1", ptr("c1"), "Shared site", false, ptr(rev(1)))
	f.deleteLocally(t, "e1", rev(3))

	f.expectSnapshot(models.SyncResponse{})
	f.api.EXPECT().
		SoftDeleteCipher(gomock.Any(), gomock.Any(), gomock.Any(), "c1").
		Return(fmt.Errorf("soft delete cipher: %w", adapter.ErrForbidden))

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 0, outcome.Uploaded)

	pending, err := f.storages.Entries.ListPendingDeletes(ctx, f.vault.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e1", pending[0].ID)
}

func TestSyncEngine_ServerEditRevivesLocalDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	f.seedEntry(t, "e1", ptr("c1"), "Old site", false, ptr(rev(1)))
	f.deleteLocally(t, "e1", rev(3))

	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{
		loginCipher(t, f.key, "c1", "Server edit", "server-secret", rev(5)),
	}})

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, 0, outcome.Conflicts)
	assert.Equal(t, 0, outcome.Uploaded)

	e, err := f.storages.Entries.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, e.DeletedAt)
	assert.False(t, e.LocallyModified)
	assert.Equal(t, "Server edit", openString(t, f.key, e.Title))
}

func TestSyncEngine_PushRestoresTrashedCipher(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newSyncFixture(t, ctrl, config.ClientSync{PushLocalEdits: true, DataLossWarnRatio: 0.5})
	ctx := context.Background()

	// The tombstone was synced at rev(9); the entry was restored and edited
	// locally afterwards.
	f.seedEntry(t, "e1", ptr("c1"), "Restored", true, ptr(rev(9)))

	deletedAt := serverTime(rev(9))
	trashed := loginCipher(t, f.key, "c1", "Restored", "x", rev(9))
	trashed.DeletedDate = &deletedAt

	f.expectSnapshot(models.SyncResponse{Ciphers: []models.CipherResponse{trashed}})
	gomock.InOrder(
		f.api.EXPECT().GetCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c1").Return(trashed, nil),
		f.api.EXPECT().
			RestoreCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c1").
			Return(models.CipherResponse{ID: "c1", RevisionDate: serverTime(rev(10))}, nil),
		f.api.EXPECT().
			UpdateCipher(gomock.Any(), testURLs.API, "access-a@b.com", "c1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _, _ string, req models.CipherRequest) (models.CipherResponse, error) {
				require.NotNil(t, req.LastKnownRevisionDate)
				assert.Equal(t, serverTime(rev(10)), *req.LastKnownRevisionDate)
				return models.CipherResponse{ID: "c1", RevisionDate: serverTime(rev(11))}, nil
			}),
	)

	outcome := f.engine.Sync(ctx, f.vault.ID)
	require.Equal(t, models.SyncSuccess, outcome.Kind, "err: %v", outcome.Err)
	assert.Equal(t, 0, outcome.Conflicts)
	assert.Equal(t, 0, outcome.Deleted)
	assert.Equal(t, 1, outcome.Uploaded)

	e, err := f.storages.Entries.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, e.DeletedAt)
	assert.False(t, e.LocallyModified)
	assert.True(t, e.LastSyncedAt.Equal(rev(11)))
}
