package chat

import (
	"database/sql"
	"fmt"
	"time"

	"echochat/internal/models"
	"echochat/pkg/apperr"
)

// Messages owns message rows: creation, paginated history, monotonic
// delivery-status updates and bulk read-marking.
type Messages struct {
	db *sql.DB
}

func NewMessages(db *sql.DB) *Messages {
	return &Messages{db: db}
}

// CreateOptions tunes message creation; the zero value yields a TEXT
// message with status SENT and no expiry.
type CreateOptions struct {
	MessageType models.MessageType
	MediaURL    *string
	ExpiresAt   *time.Time
}

const messageColumns = "id, conversation_id, sender_id, content, message_type, delivery_status, media_url, expires_at, created_at"

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	msg := &models.Message{}
	var msgType, status string
	var mediaURL sql.NullString
	var expiresAt sql.NullTime
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msgType, &status, &mediaURL, &expiresAt, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.MessageType = models.MessageType(msgType)
	msg.DeliveryStatus = status
	if mediaURL.Valid {
		msg.MediaURL = &mediaURL.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		msg.ExpiresAt = &t
	}
	return msg, nil
}

// Create persists a message with initial status SENT. The server never
// writes SENDING; that state is reserved for client-optimistic UI.
func (m *Messages) Create(conversationID, senderID int, content string, opts CreateOptions) (*models.Message, error) {
	msgType := opts.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	var mediaURL sql.NullString
	if opts.MediaURL != nil {
		mediaURL = sql.NullString{String: *opts.MediaURL, Valid: true}
	}
	var expiresAt sql.NullTime
	if opts.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *opts.ExpiresAt, Valid: true}
	}

	result, err := m.db.Exec(
		`INSERT INTO messages (conversation_id, sender_id, content, message_type, delivery_status, media_url, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conversationID, senderID, content, string(msgType), string(StatusSent), mediaURL, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message id: %w", err)
	}
	return m.FindByID(int(id))
}

func (m *Messages) FindByID(id int) (*models.Message, error) {
	row := m.db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return msg, nil
}

// History returns messages of the conversation oldest first, paginated,
// with logically expired messages filtered out. The filter exists because
// expired rows are deleted by a periodic sweep and can linger between runs.
func (m *Messages) History(conversationID, limit, offset int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := m.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?",
		conversationID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if msg.ExpiresAt != nil && !msg.ExpiresAt.After(now) {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateDeliveryStatus applies the monotonic status progression: a
// requested status at or below the current one is a no-op returning the
// message unchanged.
func (m *Messages) UpdateDeliveryStatus(messageID int, requested DeliveryStatus) (*models.Message, error) {
	msg, err := m.FindByID(messageID)
	if err != nil {
		return nil, err
	}

	next := ApplyStatus(DeliveryStatus(msg.DeliveryStatus), requested)
	if next == DeliveryStatus(msg.DeliveryStatus) {
		return msg, nil
	}

	if _, err := m.db.Exec(
		"UPDATE messages SET delivery_status = ? WHERE id = ?",
		string(next), messageID,
	); err != nil {
		return nil, fmt.Errorf("failed to update delivery status: %w", err)
	}
	msg.DeliveryStatus = string(next)
	return msg, nil
}

// MarkConversationRead transitions every message sent by senderID in the
// conversation that is not yet READ to READ and returns the updated
// messages, oldest first.
func (m *Messages) MarkConversationRead(conversationID, senderID int) ([]*models.Message, error) {
	rows, err := m.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE conversation_id = ? AND sender_id = ? AND delivery_status != ? ORDER BY created_at ASC, id ASC",
		conversationID, senderID, string(StatusRead),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread messages: %w", err)
	}

	var pending []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		pending = append(pending, msg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var updated []*models.Message
	for _, msg := range pending {
		if _, err := m.db.Exec(
			"UPDATE messages SET delivery_status = ? WHERE id = ?",
			string(StatusRead), msg.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to mark message %d read: %w", msg.ID, err)
		}
		msg.DeliveryStatus = string(StatusRead)
		updated = append(updated, msg)
	}
	return updated, nil
}

// DeleteExpired removes rows whose expiry is in the past and returns how
// many were deleted. Called by the background sweep.
func (m *Messages) DeleteExpired(now time.Time) (int64, error) {
	result, err := m.db.Exec("DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
