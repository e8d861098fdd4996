package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"echochat/internal/chat"
	"echochat/pkg/apperr"
)

type ProfileHandler struct {
	users       *chat.Users
	keys        *chat.Keys
	storagePath string
	maxSize     int64
}

func NewProfileHandler(users *chat.Users, keys *chat.Keys, storagePath string, maxSize int64) *ProfileHandler {
	return &ProfileHandler{users: users, keys: keys, storagePath: storagePath, maxSize: maxSize}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID := c.GetInt("user_id")

	user, err := h.users.FindByID(userID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": apperr.UserMessage(err, "failed to load profile")})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UploadPicture stores a new profile picture and updates the user record.
func (h *ProfileHandler) UploadPicture(c *gin.Context) {
	userID := c.GetInt("user_id")

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	buf := make([]byte, 16)
	rand.Read(buf)
	filename := "avatar_" + hex.EncodeToString(buf) + ext
	if err := os.MkdirAll(h.storagePath, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(h.storagePath, filename)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	url := "/uploads/" + filename
	if err := h.users.UpdateProfilePicture(userID, url); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": apperr.UserMessage(err, "failed to update profile picture")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profilePictureUrl": url})
}

// Delete removes the account. Key material goes first so no peer can fetch
// a pre-key bundle for a user that is about to disappear; the remaining
// rows follow the user via foreign-key cascades.
func (h *ProfileHandler) Delete(c *gin.Context) {
	userID := c.GetInt("user_id")

	if err := h.keys.DeleteByUser(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete key material"})
		return
	}
	if err := h.users.Delete(userID); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": apperr.UserMessage(err, "failed to delete account")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
