package ws

import (
	"time"

	"github.com/go-playground/validator/v10"

	"echochat/internal/chat"
	"echochat/internal/models"
)

// Envelope is the wire format in both directions:
// {"event": "<name>", "data": <payload>}.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

var validate = validator.New()

// Inbound payloads. Every one is validated before any side effect; a
// failure emits error{message} to the originating connection only.

type sendMessageIn struct {
	RecipientID int    `json:"recipientId" validate:"required,gt=0"`
	Content     string `json:"content" validate:"required,min=1,max=5000"`
	ExpiresIn   *int   `json:"expiresIn" validate:"omitempty,gt=0"`
	TempID      string `json:"tempId" validate:"omitempty,max=128"`
}

type getMessagesIn struct {
	ConversationID int `json:"conversationId" validate:"required,gt=0"`
	Limit          int `json:"limit" validate:"omitempty,gt=0"`
	Offset         int `json:"offset" validate:"omitempty,gte=0"`
}

type sendPingIn struct {
	RecipientID int `json:"recipientId" validate:"required,gt=0"`
}

type messageDeliveredIn struct {
	MessageID int `json:"messageId" validate:"required,gt=0"`
}

type markConversationReadIn struct {
	ConversationID int `json:"conversationId" validate:"required,gt=0"`
}

type setDisappearingTimerIn struct {
	ConversationID int  `json:"conversationId" validate:"required,gt=0"`
	Timer          *int `json:"timer" validate:"omitempty,gt=0"`
}

type sendFriendRequestIn struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email,max=255"`
}

type acceptFriendRequestIn struct {
	RequestID int `json:"requestId" validate:"required,gt=0"`
}

type rejectFriendRequestIn struct {
	RequestID int `json:"requestId" validate:"required,gt=0"`
}

type unfriendIn struct {
	UserID int `json:"userId" validate:"required,gt=0"`
}

type updateActiveStatusIn struct {
	ActiveStatus *bool `json:"activeStatus" validate:"required"`
}

type uploadKeyBundleIn struct {
	RegistrationID        int    `json:"registrationId" validate:"required,gt=0"`
	IdentityPublicKey     string `json:"identityPublicKey" validate:"required"`
	SignedPreKeyID        int    `json:"signedPreKeyId" validate:"required,gt=0"`
	SignedPreKeyPublic    string `json:"signedPreKeyPublic" validate:"required"`
	SignedPreKeySignature string `json:"signedPreKeySignature" validate:"required"`
}

type preKeyIn struct {
	KeyID     int    `json:"keyId" validate:"gte=0"`
	PublicKey string `json:"publicKey" validate:"required"`
}

type uploadOneTimePreKeysIn struct {
	Keys []preKeyIn `json:"keys" validate:"required,min=1,max=200,dive"`
}

type fetchPreKeyBundleIn struct {
	UserID int `json:"userId" validate:"required,gt=0"`
}

// Outbound payloads.

type errorPayload struct {
	Message string `json:"message"`
}

type messagePayload struct {
	ID             int                `json:"id"`
	Content        string             `json:"content"`
	SenderID       int                `json:"senderId"`
	SenderEmail    string             `json:"senderEmail"`
	SenderUsername *string            `json:"senderUsername"`
	ConversationID int                `json:"conversationId"`
	CreatedAt      time.Time          `json:"createdAt"`
	DeliveryStatus string             `json:"deliveryStatus"`
	ExpiresAt      *time.Time         `json:"expiresAt"`
	MessageType    models.MessageType `json:"messageType"`
	MediaURL       *string            `json:"mediaUrl"`
	TempID         string             `json:"tempId,omitempty"`
}

type userPayload struct {
	ID                int     `json:"id"`
	Email             string  `json:"email"`
	Username          *string `json:"username"`
	ProfilePictureURL *string `json:"profilePictureUrl"`
	ActiveStatus      bool    `json:"activeStatus"`
}

type friendRequestPayload struct {
	ID          int         `json:"id"`
	Sender      userPayload `json:"sender"`
	Receiver    userPayload `json:"receiver"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	RespondedAt *time.Time  `json:"respondedAt"`
}

type conversationPayload struct {
	ID                int         `json:"id"`
	UserOne           userPayload `json:"userOne"`
	UserTwo           userPayload `json:"userTwo"`
	DisappearingTimer *int        `json:"disappearingTimer"`
	CreatedAt         time.Time   `json:"createdAt"`
}

type messageHistoryPayload struct {
	ConversationID int              `json:"conversationId"`
	Messages       []messagePayload `json:"messages"`
}

type deliveryStatusPayload struct {
	MessageID      int    `json:"messageId"`
	ConversationID int    `json:"conversationId"`
	DeliveryStatus string `json:"deliveryStatus"`
}

type pendingCountPayload struct {
	Count int `json:"count"`
}

type openConversationPayload struct {
	ConversationID int `json:"conversationId"`
}

type unfriendedPayload struct {
	UserID int `json:"userId"`
}

type userStatusChangedPayload struct {
	UserID       int  `json:"userId"`
	ActiveStatus bool `json:"activeStatus"`
}

type activeStatusUpdatedPayload struct {
	ActiveStatus bool `json:"activeStatus"`
}

type disappearingTimerPayload struct {
	ConversationID int  `json:"conversationId"`
	Timer          *int `json:"timer"`
}

type keyBundleUploadedPayload struct {
	Success bool `json:"success"`
}

type preKeysUploadedPayload struct {
	Count int `json:"count"`
}

type preKeyBundleResponsePayload struct {
	UserID int                `json:"userId"`
	Bundle *chat.PreKeyBundle `json:"bundle"`
}

type preKeysLowPayload struct {
	Remaining int `json:"remaining"`
}

// Mappers.

func toUserPayload(u *models.User) userPayload {
	return userPayload{
		ID:                u.ID,
		Email:             u.Email,
		Username:          u.Username,
		ProfilePictureURL: u.ProfilePictureURL,
		ActiveStatus:      u.ActiveStatus,
	}
}

func toUserPayloads(users []*models.User) []userPayload {
	payloads := make([]userPayload, 0, len(users))
	for _, u := range users {
		payloads = append(payloads, toUserPayload(u))
	}
	return payloads
}

func toFriendRequestPayload(r *chat.Request) friendRequestPayload {
	return friendRequestPayload{
		ID:          r.ID,
		Sender:      toUserPayload(r.Sender),
		Receiver:    toUserPayload(r.Receiver),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		RespondedAt: r.RespondedAt,
	}
}

func toFriendRequestPayloads(requests []*chat.Request) []friendRequestPayload {
	payloads := make([]friendRequestPayload, 0, len(requests))
	for _, r := range requests {
		payloads = append(payloads, toFriendRequestPayload(r))
	}
	return payloads
}

func toConversationPayload(conv *models.Conversation, userOne, userTwo *models.User) conversationPayload {
	return conversationPayload{
		ID:                conv.ID,
		UserOne:           toUserPayload(userOne),
		UserTwo:           toUserPayload(userTwo),
		DisappearingTimer: conv.DisappearingTimer,
		CreatedAt:         conv.CreatedAt,
	}
}

func senderName(u *models.User) string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}

func toMessagePayload(m *models.Message, sender *models.User, tempID string) messagePayload {
	p := messagePayload{
		ID:             m.ID,
		SenderID:       m.SenderID,
		SenderEmail:    sender.Email,
		SenderUsername: sender.Username,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
		DeliveryStatus: m.DeliveryStatus,
		ExpiresAt:      m.ExpiresAt,
		MessageType:    m.MessageType,
		TempID:         tempID,
	}
	switch body := m.Body().(type) {
	case models.TextBody:
		p.Content = body.Content
	case models.ImageBody:
		url := body.MediaURL
		p.MediaURL = &url
	case models.PingBody:
	}
	return p
}
