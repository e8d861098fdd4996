package chat

import (
	"database/sql"
	"fmt"

	"echochat/internal/models"
	"echochat/pkg/apperr"
)

// Conversations resolves the unique conversation per unordered user pair.
type Conversations struct {
	db *sql.DB
}

func NewConversations(db *sql.DB) *Conversations {
	return &Conversations{db: db}
}

const conversationColumns = "id, user_one_id, user_two_id, disappearing_timer, created_at"

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var timer sql.NullInt64
	if err := row.Scan(&conv.ID, &conv.UserOneID, &conv.UserTwoID, &timer, &conv.CreatedAt); err != nil {
		return nil, err
	}
	if timer.Valid {
		t := int(timer.Int64)
		conv.DisappearingTimer = &t
	}
	return conv, nil
}

// FindOrCreate returns the conversation between the two users, creating it
// if none exists. Symmetric in its arguments. Find-before-create: two
// concurrent calls for the same pair can both miss and both insert. An
// accepted race; duplicates are rare and harmless for 1-on-1 chat.
func (c *Conversations) FindOrCreate(userAID, userBID int) (*models.Conversation, error) {
	if existing, err := c.FindBetween(userAID, userBID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	result, err := c.db.Exec(
		"INSERT INTO conversations (user_one_id, user_two_id) VALUES (?, ?)",
		userAID, userBID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation id: %w", err)
	}
	return c.FindByID(int(id))
}

// FindBetween returns the conversation between the two users in either
// participant order, or nil if none exists.
func (c *Conversations) FindBetween(userAID, userBID int) (*models.Conversation, error) {
	row := c.db.QueryRow(
		"SELECT "+conversationColumns+" FROM conversations WHERE (user_one_id = ? AND user_two_id = ?) OR (user_one_id = ? AND user_two_id = ?) LIMIT 1",
		userAID, userBID, userBID, userAID,
	)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return conv, nil
}

func (c *Conversations) FindByID(id int) (*models.Conversation, error) {
	row := c.db.QueryRow("SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return conv, nil
}

// FindByUser returns all conversations the user participates in, newest
// first.
func (c *Conversations) FindByUser(userID int) ([]*models.Conversation, error) {
	rows, err := c.db.Query(
		"SELECT "+conversationColumns+" FROM conversations WHERE user_one_id = ? OR user_two_id = ? ORDER BY created_at DESC",
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// Delete removes the conversation and its messages.
func (c *Conversations) Delete(id int) error {
	if _, err := c.db.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation messages: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// SetDisappearingTimer updates the conversation's disappearing-message timer
// in seconds; nil disables expiry for future messages.
func (c *Conversations) SetDisappearingTimer(id int, seconds *int) error {
	var value sql.NullInt64
	if seconds != nil {
		value = sql.NullInt64{Int64: int64(*seconds), Valid: true}
	}
	result, err := c.db.Exec("UPDATE conversations SET disappearing_timer = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("failed to update disappearing timer: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("Conversation not found")
	}
	return nil
}
