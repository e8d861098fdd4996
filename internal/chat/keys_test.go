package chat

import (
	"fmt"
	"testing"
)

func bundleData(registrationID int) KeyBundleData {
	return KeyBundleData{
		RegistrationID:        registrationID,
		IdentityPublicKey:     "identity-pub",
		SignedPreKeyID:        1,
		SignedPreKeyPublic:    "signed-pub",
		SignedPreKeySignature: "signed-sig",
	}
}

func TestFetchBundleWithoutBundle(t *testing.T) {
	conn := newTestDB(t)
	ids := createUsers(t, conn, 1)
	keys := NewKeys(conn)

	bundle, err := keys.FetchBundle(ids[0])
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if bundle != nil {
		t.Errorf("expected nil bundle, got %+v", bundle)
	}
}

func TestUpsertBundleReplaces(t *testing.T) {
	conn := newTestDB(t)
	ids := createUsers(t, conn, 1)
	keys := NewKeys(conn)

	if err := keys.UpsertBundle(ids[0], bundleData(100)); err != nil {
		t.Fatalf("UpsertBundle: %v", err)
	}
	if err := keys.UpsertBundle(ids[0], bundleData(200)); err != nil {
		t.Fatalf("second UpsertBundle: %v", err)
	}

	bundle, err := keys.FetchBundle(ids[0])
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if bundle.RegistrationID != 200 {
		t.Errorf("RegistrationID = %d, want 200", bundle.RegistrationID)
	}

	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM key_bundles WHERE user_id = ?", ids[0]).Scan(&count); err != nil {
		t.Fatalf("count bundles: %v", err)
	}
	if count != 1 {
		t.Errorf("bundle rows = %d, want 1", count)
	}
}

func TestFetchConsumesKeysInOrder(t *testing.T) {
	conn := newTestDB(t)
	ids := createUsers(t, conn, 1)
	keys := NewKeys(conn)

	if err := keys.UpsertBundle(ids[0], bundleData(100)); err != nil {
		t.Fatalf("UpsertBundle: %v", err)
	}
	if err := keys.UploadOneTimePreKeys(ids[0], []PreKeyInput{
		{KeyID: 10, PublicKey: "pub-10"},
		{KeyID: 11, PublicKey: "pub-11"},
	}); err != nil {
		t.Fatalf("UploadOneTimePreKeys: %v", err)
	}

	for i, wantKeyID := range []int{10, 11} {
		bundle, err := keys.FetchBundle(ids[0])
		if err != nil {
			t.Fatalf("FetchBundle %d: %v", i, err)
		}
		if bundle.PreKeyID == nil {
			t.Fatalf("fetch %d returned no one-time key", i)
		}
		if *bundle.PreKeyID != wantKeyID {
			t.Errorf("fetch %d PreKeyID = %d, want %d", i, *bundle.PreKeyID, wantKeyID)
		}
	}

	// Stock exhausted: the bundle still goes out, without a one-time key.
	bundle, err := keys.FetchBundle(ids[0])
	if err != nil {
		t.Fatalf("FetchBundle exhausted: %v", err)
	}
	if bundle == nil {
		t.Fatal("expected bundle without one-time key, got nil")
	}
	if bundle.PreKeyID != nil || bundle.PreKeyPublic != nil {
		t.Errorf("exhausted fetch still returned key %v", bundle.PreKeyID)
	}
}

func TestCountUnusedDecrements(t *testing.T) {
	conn := newTestDB(t)
	ids := createUsers(t, conn, 1)
	keys := NewKeys(conn)

	if err := keys.UpsertBundle(ids[0], bundleData(100)); err != nil {
		t.Fatalf("UpsertBundle: %v", err)
	}
	var batch []PreKeyInput
	for i := 0; i < 5; i++ {
		batch = append(batch, PreKeyInput{KeyID: i, PublicKey: fmt.Sprintf("pub-%d", i)})
	}
	if err := keys.UploadOneTimePreKeys(ids[0], batch); err != nil {
		t.Fatalf("UploadOneTimePreKeys: %v", err)
	}

	count, err := keys.CountUnused(ids[0])
	if err != nil {
		t.Fatalf("CountUnused: %v", err)
	}
	if count != 5 {
		t.Fatalf("CountUnused = %d, want 5", count)
	}

	if _, err := keys.FetchBundle(ids[0]); err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	count, err = keys.CountUnused(ids[0])
	if err != nil {
		t.Fatalf("CountUnused after fetch: %v", err)
	}
	if count != 4 {
		t.Errorf("CountUnused = %d after fetch, want 4", count)
	}
}

func TestDeleteByUser(t *testing.T) {
	conn := newTestDB(t)
	ids := createUsers(t, conn, 1)
	keys := NewKeys(conn)

	if err := keys.UpsertBundle(ids[0], bundleData(100)); err != nil {
		t.Fatalf("UpsertBundle: %v", err)
	}
	if err := keys.UploadOneTimePreKeys(ids[0], []PreKeyInput{{KeyID: 1, PublicKey: "pub"}}); err != nil {
		t.Fatalf("UploadOneTimePreKeys: %v", err)
	}

	if err := keys.DeleteByUser(ids[0]); err != nil {
		t.Fatalf("DeleteByUser: %v", err)
	}

	bundle, err := keys.FetchBundle(ids[0])
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if bundle != nil {
		t.Errorf("bundle survived DeleteByUser: %+v", bundle)
	}
	count, err := keys.CountUnused(ids[0])
	if err != nil {
		t.Fatalf("CountUnused: %v", err)
	}
	if count != 0 {
		t.Errorf("pre-keys survived DeleteByUser: %d", count)
	}
}
