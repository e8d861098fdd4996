package ws

import (
	"encoding/json"

	"echochat/internal/chat"
	"echochat/internal/models"
	"echochat/pkg/apperr"
)

// List refresh helpers shared by the social handlers. Each pushes a full
// snapshot so the client never has to patch its own state.

func (h *Hub) sendFriendsList(userID int) error {
	friends, err := h.services.Friends.Friends(userID)
	if err != nil {
		return err
	}
	h.SendTo(userID, "friendsList", toUserPayloads(friends))
	return nil
}

func (h *Hub) sendFriendRequestsList(userID int) error {
	requests, err := h.services.Friends.PendingRequests(userID)
	if err != nil {
		return err
	}
	h.SendTo(userID, "friendRequestsList", toFriendRequestPayloads(requests))
	return nil
}

func (h *Hub) sendPendingCount(userID int) error {
	count, err := h.services.Friends.PendingCount(userID)
	if err != nil {
		return err
	}
	h.SendTo(userID, "pendingRequestsCount", pendingCountPayload{Count: count})
	return nil
}

func (h *Hub) sendConversationsList(userID int) error {
	conversations, err := h.services.Conversations.FindByUser(userID)
	if err != nil {
		return err
	}

	payloads := make([]conversationPayload, 0, len(conversations))
	for _, conv := range conversations {
		userOne, err := h.services.Users.FindByID(conv.UserOneID)
		if err != nil {
			return err
		}
		userTwo, err := h.services.Users.FindByID(conv.UserTwoID)
		if err != nil {
			return err
		}
		payloads = append(payloads, toConversationPayload(conv, userOne, userTwo))
	}
	h.SendTo(userID, "conversationsList", payloads)
	return nil
}

// handleSendFriendRequest creates a PENDING request, or completes the
// friendship immediately when a reciprocal pending request exists. Only
// the state change itself can fail the operation; everything after it is
// best-effort fan-out.
func (c *Client) handleSendFriendRequest(data json.RawMessage) {
	var in sendFriendRequestIn
	if !decode(c, data, &in) {
		return
	}

	recipient, err := c.hub.services.Users.FindByEmail(in.RecipientEmail)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "User not found"))
		return
	}

	req, err := c.hub.services.Friends.SendRequest(c.userID, recipient.ID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to send friend request"))
		return
	}

	if req.Status == models.FriendRequestAccepted {
		// Mutual-request auto-accept: both sides learn they are friends now.
		c.fanOutFriendshipEstablished(req, c.userID, recipient.ID)
		return
	}

	c.Send("friendRequestSent", toFriendRequestPayload(req))
	payload := toFriendRequestPayload(req)
	if c.hub.SendTo(recipient.ID, "newFriendRequest", payload) {
		runEffects(effect{"pendingCount", func() error { return c.hub.sendPendingCount(recipient.ID) }})
	} else {
		c.hub.notifier.NotifyFriendRequest(recipient.ID, senderName(req.Sender))
	}
}

// handleAcceptFriendRequest resolves a pending request addressed to the
// caller and fans the new friendship out to both sides.
func (c *Client) handleAcceptFriendRequest(data json.RawMessage) {
	var in acceptFriendRequestIn
	if !decode(c, data, &in) {
		return
	}

	req, err := c.hub.services.Friends.Accept(in.RequestID, c.userID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to accept friend request"))
		return
	}

	c.fanOutFriendshipEstablished(req, c.userID, req.SenderID)
}

// fanOutFriendshipEstablished runs the shared post-friendship effects for
// both sides: acceptance notice, refreshed friends and conversations
// lists, the shared conversation opened on both ends, and updated pending
// counts.
func (c *Client) fanOutFriendshipEstablished(req *chat.Request, actorID, otherID int) {
	payload := toFriendRequestPayload(req)
	c.Send("friendRequestAccepted", payload)
	c.hub.SendTo(otherID, "friendRequestAccepted", payload)

	runEffects(
		effect{"conversation", func() error {
			conv, err := c.hub.services.Conversations.FindOrCreate(actorID, otherID)
			if err != nil {
				return err
			}
			open := openConversationPayload{ConversationID: conv.ID}
			c.hub.SendTo(actorID, "openConversation", open)
			c.hub.SendTo(otherID, "openConversation", open)
			return nil
		}},
		effect{"friendsListActor", func() error { return c.hub.sendFriendsList(actorID) }},
		effect{"friendsListOther", func() error { return c.hub.sendFriendsList(otherID) }},
		effect{"conversationsListActor", func() error { return c.hub.sendConversationsList(actorID) }},
		effect{"conversationsListOther", func() error { return c.hub.sendConversationsList(otherID) }},
		effect{"requestsListActor", func() error { return c.hub.sendFriendRequestsList(actorID) }},
		effect{"pendingCountActor", func() error { return c.hub.sendPendingCount(actorID) }},
		effect{"pendingCountOther", func() error { return c.hub.sendPendingCount(otherID) }},
	)
}

func (c *Client) handleRejectFriendRequest(data json.RawMessage) {
	var in rejectFriendRequestIn
	if !decode(c, data, &in) {
		return
	}

	req, err := c.hub.services.Friends.Reject(in.RequestID, c.userID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to reject friend request"))
		return
	}

	c.Send("friendRequestRejected", toFriendRequestPayload(req))
	runEffects(
		effect{"requestsList", func() error { return c.hub.sendFriendRequestsList(c.userID) }},
		effect{"pendingCount", func() error { return c.hub.sendPendingCount(c.userID) }},
	)
}

func (c *Client) handleGetFriendRequests() {
	requests, err := c.hub.services.Friends.PendingRequests(c.userID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to load friend requests"))
		return
	}
	c.Send("friendRequestsList", toFriendRequestPayloads(requests))
}

func (c *Client) handleGetFriends() {
	friends, err := c.hub.services.Friends.Friends(c.userID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to load friends"))
		return
	}
	c.Send("friendsList", toUserPayloads(friends))
}

// handleUnfriend dissolves the friendship and its conversation. Removing
// the friendship rows is the critical step; deleting the conversation and
// notifying the other side are best-effort.
func (c *Client) handleUnfriend(data json.RawMessage) {
	var in unfriendIn
	if !decode(c, data, &in) {
		return
	}

	if err := c.hub.services.Friends.Unfriend(c.userID, in.UserID); err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to unfriend"))
		return
	}

	runEffects(
		effect{"deleteConversation", func() error {
			conv, err := c.hub.services.Conversations.FindBetween(c.userID, in.UserID)
			if err != nil {
				return err
			}
			if conv == nil {
				return nil
			}
			return c.hub.services.Conversations.Delete(conv.ID)
		}},
		effect{"notifySelf", func() error {
			c.Send("unfriended", unfriendedPayload{UserID: in.UserID})
			return nil
		}},
		effect{"notifyOther", func() error {
			c.hub.SendTo(in.UserID, "unfriended", unfriendedPayload{UserID: c.userID})
			return nil
		}},
		effect{"conversationsListSelf", func() error { return c.hub.sendConversationsList(c.userID) }},
		effect{"conversationsListOther", func() error { return c.hub.sendConversationsList(in.UserID) }},
		effect{"friendsListSelf", func() error { return c.hub.sendFriendsList(c.userID) }},
		effect{"friendsListOther", func() error { return c.hub.sendFriendsList(in.UserID) }},
	)
}

// handleUpdateActiveStatus flips the caller's visibility flag and tells
// their online friends.
func (c *Client) handleUpdateActiveStatus(data json.RawMessage) {
	var in updateActiveStatusIn
	if !decode(c, data, &in) {
		return
	}

	active := *in.ActiveStatus
	if err := c.hub.services.Users.UpdateActiveStatus(c.userID, active); err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to update active status"))
		return
	}

	c.Send("activeStatusUpdated", activeStatusUpdatedPayload{ActiveStatus: active})
	runEffects(effect{"notifyFriends", func() error {
		friends, err := c.hub.services.Friends.Friends(c.userID)
		if err != nil {
			return err
		}
		payload := userStatusChangedPayload{UserID: c.userID, ActiveStatus: active}
		for _, friend := range friends {
			c.hub.SendTo(friend.ID, "userStatusChanged", payload)
		}
		return nil
	}})
}
