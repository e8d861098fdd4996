package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"echochat/internal/push"
)

type PushHandler struct {
	db       *sql.DB
	notifier *push.Notifier
}

func NewPushHandler(db *sql.DB, notifier *push.Notifier) *PushHandler {
	return &PushHandler{db: db, notifier: notifier}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// Subscribe stores a Web Push subscription for the authenticated user.
// Re-subscribing with a known endpoint rebinds it and clears any revocation.
func (h *PushHandler) Subscribe(c *gin.Context) {
	userID := c.GetInt("user_id")

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint and keys are required"})
		return
	}

	_, err := h.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			revoked_at = NULL`,
		userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// Unsubscribe revokes the caller's subscription for the endpoint. The row
// is kept with a revocation timestamp rather than deleted.
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	userID := c.GetInt("user_id")

	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	result, err := h.db.Exec(
		"UPDATE push_subscriptions SET revoked_at = CURRENT_TIMESTAMP WHERE endpoint = ? AND user_id = ?",
		req.Endpoint, userID,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke subscription"})
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VAPIDPublicKey hands clients the key they need to subscribe. Empty when
// push is not configured.
func (h *PushHandler) VAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": h.notifier.VAPIDPublicKey()})
}
