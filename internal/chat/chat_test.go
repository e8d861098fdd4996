package chat

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"echochat/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	// A second connection would see a different empty :memory: database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if _, err := conn.Exec(db.Schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

func createUser(t *testing.T, conn *sql.DB, email string) int {
	t.Helper()

	result, err := conn.Exec(
		"INSERT INTO users (email, password_hash) VALUES (?, ?)",
		email, "hash",
	)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	id, _ := result.LastInsertId()
	return int(id)
}

func createUsers(t *testing.T, conn *sql.DB, n int) []int {
	t.Helper()
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, createUser(t, conn, fmt.Sprintf("user%d@example.com", i+1)))
	}
	return ids
}
