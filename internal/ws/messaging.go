package ws

import (
	"encoding/json"
	"log"
	"time"

	"echochat/internal/chat"
	"echochat/internal/models"
	"echochat/pkg/apperr"
)

// handleSendMessage persists a TEXT message and fans it out. Only the
// persist is critical; a failed fan-out never rolls the message back.
func (c *Client) handleSendMessage(data json.RawMessage) {
	var in sendMessageIn
	if !decode(c, data, &in) {
		return
	}

	friends, err := c.hub.services.Friends.AreFriends(c.userID, in.RecipientID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send message"))
		return
	}
	if !friends {
		c.sendError("You can only message friends")
		return
	}

	sender, err := c.hub.services.Users.FindByID(c.userID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send message"))
		return
	}

	conv, err := c.hub.services.Conversations.FindOrCreate(c.userID, in.RecipientID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send message"))
		return
	}

	// Explicit expiresIn wins over the conversation's disappearing timer.
	var expiresAt *time.Time
	if in.ExpiresIn != nil {
		t := time.Now().Add(time.Duration(*in.ExpiresIn) * time.Second)
		expiresAt = &t
	} else if conv.DisappearingTimer != nil {
		t := time.Now().Add(time.Duration(*conv.DisappearingTimer) * time.Second)
		expiresAt = &t
	}

	msg, err := c.hub.services.Messages.Create(conv.ID, c.userID, in.Content, chat.CreateOptions{
		ExpiresAt: expiresAt,
	})
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send message"))
		return
	}

	c.Send("messageSent", toMessagePayload(msg, sender, in.TempID))
	if !c.hub.SendTo(in.RecipientID, "newMessage", toMessagePayload(msg, sender, "")) {
		c.hub.notifier.NotifyNewMessage(in.RecipientID, senderName(sender))
	}
}

// handleGetMessages replies with the paginated history of a conversation
// the requester participates in. A store failure after the membership
// check degrades to an empty history rather than an error.
func (c *Client) handleGetMessages(data json.RawMessage) {
	var in getMessagesIn
	if !decode(c, data, &in) {
		return
	}

	conv, err := c.hub.services.Conversations.FindByID(in.ConversationID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Conversation not found"))
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.sendError("You are not part of this conversation")
		return
	}

	messages, err := c.hub.services.Messages.History(conv.ID, in.Limit, in.Offset)
	if err != nil {
		log.Printf("ws: history for conversation %d failed: %v", conv.ID, err)
		messages = nil
	}

	participants := map[int]*models.User{}
	for _, id := range []int{conv.UserOneID, conv.UserTwoID} {
		user, err := c.hub.services.Users.FindByID(id)
		if err != nil {
			log.Printf("ws: failed to load participant %d: %v", id, err)
			continue
		}
		participants[id] = user
	}

	payloads := make([]messagePayload, 0, len(messages))
	for _, msg := range messages {
		sender, ok := participants[msg.SenderID]
		if !ok {
			continue
		}
		payloads = append(payloads, toMessagePayload(msg, sender, ""))
	}

	c.Send("messageHistory", messageHistoryPayload{
		ConversationID: conv.ID,
		Messages:       payloads,
	})
}

// handleSendPing sends a contentless PING message. Pings never expire,
// regardless of the conversation's disappearing timer.
func (c *Client) handleSendPing(data json.RawMessage) {
	var in sendPingIn
	if !decode(c, data, &in) {
		return
	}

	friends, err := c.hub.services.Friends.AreFriends(c.userID, in.RecipientID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send ping"))
		return
	}
	if !friends {
		c.sendError("You can only ping friends")
		return
	}

	sender, err := c.hub.services.Users.FindByID(c.userID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send ping"))
		return
	}

	conv, err := c.hub.services.Conversations.FindOrCreate(c.userID, in.RecipientID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send ping"))
		return
	}

	msg, err := c.hub.services.Messages.Create(conv.ID, c.userID, "", chat.CreateOptions{
		MessageType: models.MessageTypePing,
	})
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send ping"))
		return
	}

	c.Send("pingSent", toMessagePayload(msg, sender, ""))
	if !c.hub.SendTo(in.RecipientID, "newPing", toMessagePayload(msg, sender, "")) {
		c.hub.notifier.NotifyNewMessage(in.RecipientID, senderName(sender))
	}
}

// handleMessageDelivered applies DELIVERED to a message the requester
// received. The sender is told the resulting status, which may be the
// unchanged current one when the update was a no-op.
func (c *Client) handleMessageDelivered(data json.RawMessage) {
	var in messageDeliveredIn
	if !decode(c, data, &in) {
		return
	}

	msg, err := c.hub.services.Messages.FindByID(in.MessageID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Message not found"))
		return
	}
	if msg.SenderID == c.userID {
		c.sendError("You cannot mark your own message delivered")
		return
	}
	conv, err := c.hub.services.Conversations.FindByID(msg.ConversationID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Conversation not found"))
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.sendError("You are not part of this conversation")
		return
	}

	updated, err := c.hub.services.Messages.UpdateDeliveryStatus(msg.ID, chat.StatusDelivered)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to update delivery status"))
		return
	}

	// The sender is notified even when the monotonic update was a no-op;
	// the payload then carries the current (higher) status, which lets a
	// sender that missed the earlier notification resync.
	c.hub.SendTo(updated.SenderID, "messageDelivered", deliveryStatusPayload{
		MessageID:      updated.ID,
		ConversationID: updated.ConversationID,
		DeliveryStatus: updated.DeliveryStatus,
	})
}

// handleMarkConversationRead marks every message the other participant
// sent as READ and reports each transition back to them when online.
func (c *Client) handleMarkConversationRead(data json.RawMessage) {
	var in markConversationReadIn
	if !decode(c, data, &in) {
		return
	}

	conv, err := c.hub.services.Conversations.FindByID(in.ConversationID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Conversation not found"))
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.sendError("You are not part of this conversation")
		return
	}

	otherID := conv.OtherParticipant(c.userID)
	updated, err := c.hub.services.Messages.MarkConversationRead(conv.ID, otherID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to mark conversation read"))
		return
	}

	for _, msg := range updated {
		c.hub.SendTo(otherID, "messageDelivered", deliveryStatusPayload{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			DeliveryStatus: msg.DeliveryStatus,
		})
	}
}

// handleSetDisappearingTimer updates the conversation's timer and informs
// both participants.
func (c *Client) handleSetDisappearingTimer(data json.RawMessage) {
	var in setDisappearingTimerIn
	if !decode(c, data, &in) {
		return
	}

	conv, err := c.hub.services.Conversations.FindByID(in.ConversationID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Conversation not found"))
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.sendError("You are not part of this conversation")
		return
	}

	if err := c.hub.services.Conversations.SetDisappearingTimer(conv.ID, in.Timer); err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to update disappearing timer"))
		return
	}

	payload := disappearingTimerPayload{ConversationID: conv.ID, Timer: in.Timer}
	c.Send("disappearingTimerUpdated", payload)
	c.hub.SendTo(conv.OtherParticipant(c.userID), "disappearingTimerUpdated", payload)
}
