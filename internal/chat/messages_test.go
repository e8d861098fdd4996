package chat

import (
	"testing"
	"time"

	"echochat/internal/models"
)

func setupMessages(t *testing.T) (*Messages, *models.Conversation, []int) {
	t.Helper()
	conn := newTestDB(t)
	ids := createUsers(t, conn, 2)

	conv, err := NewConversations(conn).FindOrCreate(ids[0], ids[1])
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	return NewMessages(conn), conv, ids
}

func TestCreateStartsAtSent(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	msg, err := msgs.Create(conv.ID, ids[0], "hello", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if msg.DeliveryStatus != string(StatusSent) {
		t.Errorf("DeliveryStatus = %s, want SENT", msg.DeliveryStatus)
	}
	if msg.MessageType != models.MessageTypeText {
		t.Errorf("MessageType = %s, want TEXT", msg.MessageType)
	}
}

func TestCreatePingMessage(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	msg, err := msgs.Create(conv.ID, ids[0], "", CreateOptions{MessageType: models.MessageTypePing})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if msg.MessageType != models.MessageTypePing {
		t.Errorf("MessageType = %s, want PING", msg.MessageType)
	}
	if msg.Content != "" {
		t.Errorf("Content = %q, want empty", msg.Content)
	}
	if msg.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", msg.ExpiresAt)
	}
}

func TestHistoryFiltersExpired(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	if _, err := msgs.Create(conv.ID, ids[0], "expired", CreateOptions{ExpiresAt: &past}); err != nil {
		t.Fatalf("Create expired: %v", err)
	}
	if _, err := msgs.Create(conv.ID, ids[0], "alive", CreateOptions{ExpiresAt: &future}); err != nil {
		t.Fatalf("Create alive: %v", err)
	}
	if _, err := msgs.Create(conv.ID, ids[0], "forever", CreateOptions{}); err != nil {
		t.Fatalf("Create forever: %v", err)
	}

	history, err := msgs.History(conv.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History returned %d messages, want 2", len(history))
	}
	for _, msg := range history {
		if msg.Content == "expired" {
			t.Error("expired message present in history")
		}
	}
}

func TestHistoryOrderAndPagination(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	for _, content := range []string{"one", "two", "three"} {
		if _, err := msgs.Create(conv.ID, ids[0], content, CreateOptions{}); err != nil {
			t.Fatalf("Create %s: %v", content, err)
		}
	}

	page, err := msgs.History(conv.ID, 2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 2 || page[0].Content != "one" || page[1].Content != "two" {
		t.Errorf("first page = %v, want [one two]", contents(page))
	}

	page, err = msgs.History(conv.ID, 2, 2)
	if err != nil {
		t.Fatalf("History offset: %v", err)
	}
	if len(page) != 1 || page[0].Content != "three" {
		t.Errorf("second page = %v, want [three]", contents(page))
	}
}

func contents(msgs []*models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestUpdateDeliveryStatusMonotonic(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	msg, err := msgs.Create(conv.ID, ids[0], "hello", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := msgs.UpdateDeliveryStatus(msg.ID, StatusRead)
	if err != nil {
		t.Fatalf("UpdateDeliveryStatus: %v", err)
	}
	if updated.DeliveryStatus != string(StatusRead) {
		t.Fatalf("DeliveryStatus = %s, want READ", updated.DeliveryStatus)
	}

	// A late DELIVERED ack must not move the message backwards.
	updated, err = msgs.UpdateDeliveryStatus(msg.ID, StatusDelivered)
	if err != nil {
		t.Fatalf("UpdateDeliveryStatus late ack: %v", err)
	}
	if updated.DeliveryStatus != string(StatusRead) {
		t.Errorf("DeliveryStatus = %s after late DELIVERED, want READ", updated.DeliveryStatus)
	}
}

func TestMarkConversationRead(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	for i := 0; i < 3; i++ {
		if _, err := msgs.Create(conv.ID, ids[0], "msg", CreateOptions{}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	// The reader's own message must stay untouched.
	own, err := msgs.Create(conv.ID, ids[1], "mine", CreateOptions{})
	if err != nil {
		t.Fatalf("Create own: %v", err)
	}

	updated, err := msgs.MarkConversationRead(conv.ID, ids[0])
	if err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("updated %d messages, want 3", len(updated))
	}
	for _, msg := range updated {
		if msg.DeliveryStatus != string(StatusRead) {
			t.Errorf("message %d status = %s, want READ", msg.ID, msg.DeliveryStatus)
		}
	}

	ownAfter, err := msgs.FindByID(own.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if ownAfter.DeliveryStatus != string(StatusSent) {
		t.Errorf("own message status = %s, want SENT", ownAfter.DeliveryStatus)
	}

	// Second pass finds nothing left to update.
	updated, err = msgs.MarkConversationRead(conv.ID, ids[0])
	if err != nil {
		t.Fatalf("second MarkConversationRead: %v", err)
	}
	if len(updated) != 0 {
		t.Errorf("second pass updated %d messages, want 0", len(updated))
	}
}

func TestDeleteExpired(t *testing.T) {
	msgs, conv, ids := setupMessages(t)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	if _, err := msgs.Create(conv.ID, ids[0], "gone", CreateOptions{ExpiresAt: &past}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	keep, err := msgs.Create(conv.ID, ids[0], "keep", CreateOptions{ExpiresAt: &future})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted, err := msgs.DeleteExpired(time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := msgs.FindByID(keep.ID); err != nil {
		t.Errorf("unexpired message was deleted: %v", err)
	}
}
