package store

const vaultColumns = `
			id,
			email,
			user_id,
			vault_url,
			identity_url,
			api_url,
			kdf_type,
			kdf_iterations,
			kdf_memory,
			kdf_parallelism,
			access_token,
			refresh_token,
			access_token_expires_at,
			two_factor_remember,
			master_key,
			enc_key,
			mac_key,
			last_sync_at,
			revision_date,
			is_default,
			is_locked,
			is_connected,
			sync_enabled,
			created_at,
			updated_at`

const (
	insertVault = `
		INSERT INTO vaults (` + vaultColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COUNT(*) = 0 FROM vaults), ?, ?, ?, ?, ?);`

	updateVault = `
		UPDATE vaults SET
			user_id = ?,
			vault_url = ?,
			identity_url = ?,
			api_url = ?,
			kdf_type = ?,
			kdf_iterations = ?,
			kdf_memory = ?,
			kdf_parallelism = ?,
			access_token = ?,
			refresh_token = ?,
			access_token_expires_at = ?,
			two_factor_remember = ?,
			master_key = ?,
			enc_key = ?,
			mac_key = ?,
			is_locked = ?,
			is_connected = ?,
			sync_enabled = ?,
			updated_at = ?
		WHERE id = ?;`

	updateVaultTokens = `
		UPDATE vaults SET
			access_token = ?,
			refresh_token = ?,
			access_token_expires_at = ?,
			updated_at = ?
		WHERE id = ?;`

	updateVaultUserID = `UPDATE vaults SET user_id = ?, updated_at = ? WHERE id = ?;`

	updateVaultSynced = `
		UPDATE vaults SET
			last_sync_at = ?,
			revision_date = COALESCE(?, revision_date),
			updated_at = ?
		WHERE id = ?;`

	getVaultByID    = `SELECT ` + vaultColumns + ` FROM vaults WHERE id = ?;`
	getVaultByEmail = `SELECT ` + vaultColumns + ` FROM vaults WHERE email = ? COLLATE NOCASE;`
	listVaults      = `SELECT ` + vaultColumns + ` FROM vaults ORDER BY created_at, id;`

	deleteVaultConflicts = `DELETE FROM conflicts WHERE vault_id = ?;`
	deleteVaultEntries   = `DELETE FROM login_entries WHERE vault_id = ?;`
	deleteVaultFolders   = `DELETE FROM folders WHERE vault_id = ?;`
	deleteVaultSends     = `DELETE FROM sends WHERE vault_id = ?;`
	deleteVault          = `DELETE FROM vaults WHERE id = ?;`

	promoteDefaultVault = `
		UPDATE vaults SET is_default = 1
		WHERE id = (SELECT id FROM vaults ORDER BY created_at, id LIMIT 1)
		  AND NOT EXISTS (SELECT 1 FROM vaults WHERE is_default = 1);`

	getAppState    = `SELECT value FROM app_state WHERE key = ?;`
	upsertAppState = `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;`
	deleteAppStateValue = `DELETE FROM app_state WHERE key = ? AND value = ?;`
)

const entryColumns = `
			id,
			vault_id,
			cipher_id,
			folder_id,
			type,
			favorite,
			title,
			username,
			password,
			url,
			notes,
			totp,
			locally_modified,
			server_revision,
			last_synced_at,
			deleted_at,
			created_at,
			updated_at`

const (
	upsertEntry = `
		INSERT INTO login_entries (` + entryColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			cipher_id = excluded.cipher_id,
			folder_id = excluded.folder_id,
			type = excluded.type,
			favorite = excluded.favorite,
			title = excluded.title,
			username = excluded.username,
			password = excluded.password,
			url = excluded.url,
			notes = excluded.notes,
			totp = excluded.totp,
			locally_modified = excluded.locally_modified,
			server_revision = excluded.server_revision,
			last_synced_at = excluded.last_synced_at,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at;`

	getEntryByID = `SELECT ` + entryColumns + ` FROM login_entries WHERE id = ?;`

	markEntryUploaded = `
		UPDATE login_entries SET
			cipher_id = ?,
			locally_modified = 0,
			server_revision = ?,
			last_synced_at = ?,
			updated_at = ?
		WHERE id = ?;`

	softDeleteEntry = `
		UPDATE login_entries SET
			deleted_at = ?,
			server_revision = ?,
			last_synced_at = ?,
			updated_at = ?
		WHERE id = ? AND locally_modified = 0;`
)

const (
	upsertFolder = `
		INSERT INTO folders (id, vault_id, name, revision_date) VALUES (?, ?, ?, ?)
		ON CONFLICT (vault_id, id) DO UPDATE SET
			name = excluded.name,
			revision_date = excluded.revision_date;`

	listFolders = `SELECT id, vault_id, name, revision_date FROM folders WHERE vault_id = ? ORDER BY id;`
)

const sendColumns = `
			id,
			vault_id,
			access_id,
			type,
			name,
			notes,
			send_key,
			disabled,
			access_count,
			max_access_count,
			revision_date,
			expiration_date,
			deletion_date`

const (
	upsertSend = `
		INSERT INTO sends (` + sendColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vault_id, id) DO UPDATE SET
			access_id = excluded.access_id,
			type = excluded.type,
			name = excluded.name,
			notes = excluded.notes,
			send_key = excluded.send_key,
			disabled = excluded.disabled,
			access_count = excluded.access_count,
			max_access_count = excluded.max_access_count,
			revision_date = excluded.revision_date,
			expiration_date = excluded.expiration_date,
			deletion_date = excluded.deletion_date;`

	listSends = `SELECT ` + sendColumns + ` FROM sends WHERE vault_id = ? ORDER BY id;`
)

const conflictColumns = `
			id,
			vault_id,
			entry_id,
			cipher_id,
			conflict_type,
			server_snapshot,
			server_revision,
			local_revision,
			entry_title,
			resolved,
			resolution,
			resolved_at,
			created_at`

const (
	// an open conflict for the same entry is refreshed with the newest server
	// snapshot instead of being duplicated
	upsertOpenConflict = `
		INSERT INTO conflicts (` + conflictColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?)
		ON CONFLICT (vault_id, entry_id) WHERE resolved = 0 DO UPDATE SET
			cipher_id = excluded.cipher_id,
			conflict_type = excluded.conflict_type,
			server_snapshot = excluded.server_snapshot,
			server_revision = excluded.server_revision,
			local_revision = excluded.local_revision,
			entry_title = excluded.entry_title;`

	getConflictByID = `SELECT ` + conflictColumns + ` FROM conflicts WHERE id = ?;`

	markConflictResolved = `
		UPDATE conflicts SET
			resolved = 1,
			resolution = ?,
			resolved_at = ?
		WHERE id = ? AND resolved = 0;`

	getLiveEntryForUpdate = `SELECT id FROM login_entries WHERE id = ? AND deleted_at IS NULL;`

	updateEntryBaseline = `
		UPDATE login_entries SET
			cipher_id = ?,
			server_revision = ?,
			last_synced_at = ?,
			updated_at = ?
		WHERE id = ?;`
)
