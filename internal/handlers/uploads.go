package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"echochat/internal/chat"
	"echochat/internal/models"
	"echochat/internal/ws"
	"echochat/pkg/apperr"
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type UploadHandler struct {
	friends       *chat.Friends
	conversations *chat.Conversations
	messages      *chat.Messages
	hub           *ws.Hub
	storagePath   string
	maxSize       int64
}

func NewUploadHandler(friends *chat.Friends, conversations *chat.Conversations, messages *chat.Messages, hub *ws.Hub, storagePath string, maxSize int64) *UploadHandler {
	return &UploadHandler{
		friends:       friends,
		conversations: conversations,
		messages:      messages,
		hub:           hub,
		storagePath:   storagePath,
		maxSize:       maxSize,
	}
}

// UploadImage accepts a multipart image plus a recipientId and persists it
// as an IMAGE message in the conversation with that friend. The file lands
// on disk first; the message row points at its public URL. Fan-out goes
// through the hub like any other message.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	userID := c.GetInt("user_id")

	recipientID, err := strconv.Atoi(c.PostForm("recipientId"))
	if err != nil || recipientID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId is required"})
		return
	}

	friends, err := h.friends.AreFriends(userID, recipientID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": apperr.UserMessage(err, "failed to check friendship")})
		return
	}
	if !friends {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only message friends"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxSize)})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	filename := randomFilename(ext)
	if err := os.MkdirAll(h.storagePath, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(h.storagePath, filename)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}
	mediaURL := "/uploads/" + filename

	conv, err := h.conversations.FindOrCreate(userID, recipientID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": apperr.UserMessage(err, "failed to resolve conversation")})
		return
	}

	var expiresAt *time.Time
	if conv.DisappearingTimer != nil {
		t := time.Now().Add(time.Duration(*conv.DisappearingTimer) * time.Second)
		expiresAt = &t
	}

	msg, err := h.messages.Create(conv.ID, userID, "", chat.CreateOptions{
		MessageType: models.MessageTypeImage,
		MediaURL:    &mediaURL,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": apperr.UserMessage(err, "failed to create message")})
		return
	}

	h.hub.BroadcastImageMessage(userID, recipientID, msg.ID)

	c.JSON(http.StatusCreated, gin.H{
		"messageId":      msg.ID,
		"conversationId": conv.ID,
		"mediaUrl":       mediaURL,
	})
}

func randomFilename(ext string) string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf) + ext
}
