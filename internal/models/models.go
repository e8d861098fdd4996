package models

import "time"

type User struct {
	ID                int       `json:"id"`
	Email             string    `json:"email"`
	Username          *string   `json:"username,omitempty"`
	PasswordHash      string    `json:"-"`
	ProfilePictureURL *string   `json:"profilePictureUrl,omitempty"`
	ActiveStatus      bool      `json:"activeStatus"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Conversation links exactly two users. 1-on-1 chat only, no groups.
type Conversation struct {
	ID                int       `json:"id"`
	UserOneID         int       `json:"userOneId"`
	UserTwoID         int       `json:"userTwoId"`
	DisappearingTimer *int      `json:"disappearingTimer"` // seconds, nil = messages never expire
	CreatedAt         time.Time `json:"createdAt"`
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID int) int {
	if c.UserOneID == userID {
		return c.UserTwoID
	}
	return c.UserOneID
}

func (c *Conversation) HasParticipant(userID int) bool {
	return c.UserOneID == userID || c.UserTwoID == userID
}

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypePing  MessageType = "PING"
)

type Message struct {
	ID             int         `json:"id"`
	ConversationID int         `json:"conversationId"`
	SenderID       int         `json:"senderId"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"messageType"`
	DeliveryStatus string      `json:"deliveryStatus"`
	MediaURL       *string     `json:"mediaUrl"`
	ExpiresAt      *time.Time  `json:"expiresAt"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// MessageBody is the type-specific part of a message. The envelope fields
// (sender, conversation, status, timestamps) are shared; only the body
// differs per type.
type MessageBody interface{ messageBody() }

type TextBody struct{ Content string }

type ImageBody struct{ MediaURL string }

type PingBody struct{}

func (TextBody) messageBody()  {}
func (ImageBody) messageBody() {}
func (PingBody) messageBody()  {}

// Body returns the typed payload for the message's type, so callers can
// switch on the variant instead of probing nullable columns.
func (m *Message) Body() MessageBody {
	switch m.MessageType {
	case MessageTypeImage:
		url := ""
		if m.MediaURL != nil {
			url = *m.MediaURL
		}
		return ImageBody{MediaURL: url}
	case MessageTypePing:
		return PingBody{}
	default:
		return TextBody{Content: m.Content}
	}
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "PENDING"
	FriendRequestAccepted FriendRequestStatus = "ACCEPTED"
	FriendRequestRejected FriendRequestStatus = "REJECTED"
)

type FriendRequest struct {
	ID          int                 `json:"id"`
	SenderID    int                 `json:"senderId"`
	ReceiverID  int                 `json:"receiverId"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	RespondedAt *time.Time          `json:"respondedAt"`
}

// KeyBundle is a user's long-lived public key material: one per user,
// replaced wholesale on re-upload, never partially updated.
type KeyBundle struct {
	ID                    int       `json:"id"`
	UserID                int       `json:"userId"`
	RegistrationID        int       `json:"registrationId"`
	IdentityPublicKey     string    `json:"identityPublicKey"`
	SignedPreKeyID        int       `json:"signedPreKeyId"`
	SignedPreKeyPublic    string    `json:"signedPreKeyPublic"`
	SignedPreKeySignature string    `json:"signedPreKeySignature"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// OneTimePreKey is consumed at most once: marked used when handed out in a
// pre-key bundle, never reused and never deleted on use.
type OneTimePreKey struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	KeyID     int       `json:"keyId"`
	PublicKey string    `json:"publicKey"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}
