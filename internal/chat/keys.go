package chat

import (
	"database/sql"
	"fmt"

	"echochat/internal/models"
)

// Keys brokers Signal-style pre-key material: one KeyBundle per user plus a
// stock of single-use one-time pre-keys consumed on fetch.
type Keys struct {
	db *sql.DB
}

func NewKeys(db *sql.DB) *Keys {
	return &Keys{db: db}
}

// KeyBundleData is the client-supplied key material for an upsert.
type KeyBundleData struct {
	RegistrationID        int
	IdentityPublicKey     string
	SignedPreKeyID        int
	SignedPreKeyPublic    string
	SignedPreKeySignature string
}

// PreKeyInput is one client-generated one-time pre-key.
type PreKeyInput struct {
	KeyID     int
	PublicKey string
}

// PreKeyBundle is what a peer needs to establish a session. The one-time
// key fields are nil when the user's stock is exhausted.
type PreKeyBundle struct {
	RegistrationID        int     `json:"registrationId"`
	IdentityPublicKey     string  `json:"identityPublicKey"`
	SignedPreKeyID        int     `json:"signedPreKeyId"`
	SignedPreKeyPublic    string  `json:"signedPreKeyPublic"`
	SignedPreKeySignature string  `json:"signedPreKeySignature"`
	PreKeyID              *int    `json:"preKeyId"`
	PreKeyPublic          *string `json:"preKeyPublic"`
}

// UpsertBundle atomically inserts or replaces the user's key bundle. No
// read-before-write; the bundle is never partially updated.
func (k *Keys) UpsertBundle(userID int, data KeyBundleData) error {
	_, err := k.db.Exec(
		`INSERT INTO key_bundles (user_id, registration_id, identity_public_key, signed_pre_key_id, signed_pre_key_public, signed_pre_key_signature)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			registration_id = excluded.registration_id,
			identity_public_key = excluded.identity_public_key,
			signed_pre_key_id = excluded.signed_pre_key_id,
			signed_pre_key_public = excluded.signed_pre_key_public,
			signed_pre_key_signature = excluded.signed_pre_key_signature,
			updated_at = CURRENT_TIMESTAMP`,
		userID, data.RegistrationID, data.IdentityPublicKey, data.SignedPreKeyID, data.SignedPreKeyPublic, data.SignedPreKeySignature,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert key bundle: %w", err)
	}
	return nil
}

// UploadOneTimePreKeys bulk-inserts a client-generated batch. No dedup and
// no cap on the total stored.
func (k *Keys) UploadOneTimePreKeys(userID int, keys []PreKeyInput) error {
	tx, err := k.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO one_time_pre_keys (user_id, key_id, public_key) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.Exec(userID, key.KeyID, key.PublicKey); err != nil {
			return fmt.Errorf("failed to insert pre-key %d: %w", key.KeyID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pre-keys: %w", err)
	}
	return nil
}

// FetchBundle returns the user's bundle plus at most one unused one-time
// pre-key (lowest id first), marking that key used in the same
// transaction so it is never handed out twice. Returns nil when the user
// has no bundle at all.
func (k *Keys) FetchBundle(userID int) (*PreKeyBundle, error) {
	tx, err := k.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	bundle := &PreKeyBundle{}
	err = tx.QueryRow(
		"SELECT registration_id, identity_public_key, signed_pre_key_id, signed_pre_key_public, signed_pre_key_signature FROM key_bundles WHERE user_id = ?",
		userID,
	).Scan(&bundle.RegistrationID, &bundle.IdentityPublicKey, &bundle.SignedPreKeyID, &bundle.SignedPreKeyPublic, &bundle.SignedPreKeySignature)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query key bundle: %w", err)
	}

	var rowID, keyID int
	var publicKey string
	err = tx.QueryRow(
		"SELECT id, key_id, public_key FROM one_time_pre_keys WHERE user_id = ? AND used = 0 ORDER BY id ASC LIMIT 1",
		userID,
	).Scan(&rowID, &keyID, &publicKey)
	switch {
	case err == sql.ErrNoRows:
		// Stock exhausted: identity and signed-key portions still go out.
	case err != nil:
		return nil, fmt.Errorf("failed to query one-time pre-key: %w", err)
	default:
		if _, err := tx.Exec("UPDATE one_time_pre_keys SET used = 1 WHERE id = ?", rowID); err != nil {
			return nil, fmt.Errorf("failed to consume one-time pre-key: %w", err)
		}
		bundle.PreKeyID = &keyID
		bundle.PreKeyPublic = &publicKey
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pre-key fetch: %w", err)
	}
	return bundle, nil
}

// CountUnused returns how many one-time pre-keys remain for the user.
func (k *Keys) CountUnused(userID int) (int, error) {
	var count int
	err := k.db.QueryRow(
		"SELECT COUNT(*) FROM one_time_pre_keys WHERE user_id = ? AND used = 0",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pre-keys: %w", err)
	}
	return count, nil
}

// ListUnused returns the user's unused pre-keys ordered by id. Used by
// operational tooling.
func (k *Keys) ListUnused(userID int) ([]*models.OneTimePreKey, error) {
	rows, err := k.db.Query(
		"SELECT id, user_id, key_id, public_key, used, created_at FROM one_time_pre_keys WHERE user_id = ? AND used = 0 ORDER BY id ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pre-keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.OneTimePreKey
	for rows.Next() {
		key := &models.OneTimePreKey{}
		if err := rows.Scan(&key.ID, &key.UserID, &key.KeyID, &key.PublicKey, &key.Used, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pre-key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteByUser removes the user's key material: one-time pre-keys first,
// then the bundle.
func (k *Keys) DeleteByUser(userID int) error {
	if _, err := k.db.Exec("DELETE FROM one_time_pre_keys WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete one-time pre-keys: %w", err)
	}
	if _, err := k.db.Exec("DELETE FROM key_bundles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete key bundle: %w", err)
	}
	return nil
}
