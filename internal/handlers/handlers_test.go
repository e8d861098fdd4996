package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"

	"echochat/internal/auth"
	"echochat/internal/db"
)

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Service, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(db.Schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	service := auth.New(conn, "test-secret")
	router := gin.New()
	return router, service, conn
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	router, service, _ := newTestRouter(t)
	handler := NewAuthHandler(service)
	router.POST("/api/register", handler.Register)
	router.POST("/api/login", handler.Login)

	w := postJSON(t, router, "/api/register", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
		"username": "alice",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}
	var registered struct {
		Token  string `json:"token"`
		UserID int    `json:"userId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.Token == "" || registered.UserID == 0 {
		t.Fatalf("register response incomplete: %+v", registered)
	}

	w = postJSON(t, router, "/api/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}

	w = postJSON(t, router, "/api/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	router, service, _ := newTestRouter(t)
	router.POST("/api/register", NewAuthHandler(service).Register)

	body := map[string]string{"email": "bob@example.com", "password": "password123"}
	if w := postJSON(t, router, "/api/register", body); w.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", w.Code)
	}
	if w := postJSON(t, router, "/api/register", body); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, service, conn := newTestRouter(t)

	if _, err := conn.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", "carol@example.com", "hash"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	token, err := service.GenerateToken(1, "carol@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	router.GET("/api/whoami", AuthMiddleware(service), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetInt("user_id"), "email": c.GetString("email")})
	})

	// Bearer header.
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("bearer auth status = %d, want 200", w.Code)
	}

	// Query token, the websocket path.
	req = httptest.NewRequest(http.MethodGet, "/api/whoami?token="+token, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("query token auth status = %d, want 200", w.Code)
	}

	// Missing and garbage tokens are both rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/whoami?token=garbage", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", w.Code)
	}
}

func TestPushSubscribeAndUnsubscribe(t *testing.T) {
	router, _, conn := newTestRouter(t)

	if _, err := conn.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", "dave@example.com", "hash"); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	handler := NewPushHandler(conn, nil)
	withUser := func(c *gin.Context) { c.Set("user_id", 1) }
	router.POST("/api/push/subscribe", withUser, handler.Subscribe)
	router.POST("/api/push/unsubscribe", withUser, handler.Unsubscribe)

	w := postJSON(t, router, "/api/push/subscribe", map[string]any{
		"endpoint": "https://push.example.com/sub1",
		"keys":     map[string]string{"p256dh": "key", "auth": "secret"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d, body %s", w.Code, w.Body.String())
	}

	var active int
	if err := conn.QueryRow("SELECT COUNT(*) FROM push_subscriptions WHERE revoked_at IS NULL").Scan(&active); err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	if active != 1 {
		t.Fatalf("active subscriptions = %d, want 1", active)
	}

	w = postJSON(t, router, "/api/push/unsubscribe", map[string]any{
		"endpoint": "https://push.example.com/sub1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unsubscribe status = %d", w.Code)
	}
	if err := conn.QueryRow("SELECT COUNT(*) FROM push_subscriptions WHERE revoked_at IS NULL").Scan(&active); err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	if active != 0 {
		t.Errorf("active subscriptions after unsubscribe = %d, want 0", active)
	}

	w = postJSON(t, router, "/api/push/unsubscribe", map[string]any{
		"endpoint": "https://push.example.com/unknown",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint status = %d, want 404", w.Code)
	}
}
