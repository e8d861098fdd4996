package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"echochat/internal/chat"
	"echochat/internal/presence"
	"echochat/internal/push"
)

// Services bundles the domain services the event handlers orchestrate.
type Services struct {
	Users         *chat.Users
	Friends       *chat.Friends
	Conversations *chat.Conversations
	Messages      *chat.Messages
	Keys          *chat.Keys
}

// Hub owns the presence directory and the connection lifecycle. One
// goroutine per connection reads events; handlers for a single connection
// run in arrival order, with no ordering across connections.
type Hub struct {
	directory  *presence.Directory
	services   *Services
	notifier   *push.Notifier
	register   chan *Client
	unregister chan *Client
}

type Client struct {
	userID int
	email  string
	conn   *websocket.Conn
	hub    *Hub
	send   chan Envelope

	// mu guards closed. Send runs on other connections' read goroutines
	// concurrently with the hub closing this client; without the guard a
	// fan-out racing a disconnect would send on a closed channel.
	mu     sync.Mutex
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin
		return true
	},
}

func NewHub(directory *presence.Directory, services *Services, notifier *push.Notifier) *Hub {
	return &Hub{
		directory:  directory,
		services:   services,
		notifier:   notifier,
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Directory exposes the presence directory to HTTP handlers that need
// online checks.
func (h *Hub) Directory() *presence.Directory {
	return h.directory
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			// Last connection wins; the superseded connection is closed
			// and its later disconnect will not evict this one.
			if replaced := h.directory.Register(client.userID, client); replaced != nil {
				replaced.(*Client).closeSend()
			}
			log.Printf("ws: user %d connected (online: %d)", client.userID, h.directory.Len())

		case client := <-h.unregister:
			if h.directory.Unregister(client.userID, client) {
				client.closeSend()
			}
			log.Printf("ws: user %d disconnected (online: %d)", client.userID, h.directory.Len())
		}
	}
}

// SendTo delivers an event to the user's connection if they are online.
// Returns false when the user is offline or their send buffer is full.
func (h *Hub) SendTo(userID int, event string, data any) bool {
	conn, ok := h.directory.Lookup(userID)
	if !ok {
		return false
	}
	return conn.Send(event, data)
}

// BroadcastImageMessage fans out an IMAGE message persisted by the upload
// handler: confirmation to the sender, newMessage to the recipient when
// online, push notification otherwise.
func (h *Hub) BroadcastImageMessage(senderID, recipientID, messageID int) {
	sender, err := h.services.Users.FindByID(senderID)
	if err != nil {
		log.Printf("ws: image fanout: failed to load sender %d: %v", senderID, err)
		return
	}
	msg, err := h.services.Messages.FindByID(messageID)
	if err != nil {
		log.Printf("ws: image fanout: failed to load message %d: %v", messageID, err)
		return
	}

	payload := toMessagePayload(msg, sender, "")
	h.SendTo(senderID, "messageSent", payload)
	if !h.SendTo(recipientID, "newMessage", payload) {
		h.notifier.NotifyNewMessage(recipientID, senderName(sender))
	}
}

func (h *Hub) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	email, _ := c.Get("email")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	client := &Client{
		userID: userID.(int),
		email:  email.(string),
		conn:   conn,
		hub:    h,
		send:   make(chan Envelope, 256),
	}

	h.register <- client

	go client.readPump()
	go client.writePump()
}

// Send implements presence.Conn. Non-blocking: a full buffer drops the
// event rather than stalling the hub. Sending to a closed client reports
// false, same as a full buffer.
func (c *Client) Send(event string, data any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- Envelope{Event: event, Data: data}:
		return true
	default:
		log.Printf("ws: send buffer full for user %d, dropping %s", c.userID, event)
		return false
	}
}

// closeSend shuts the client's outbound channel. Idempotent, and takes the
// same lock as Send so no in-flight fan-out can hit the closed channel.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) sendError(message string) {
	c.Send("error", errorPayload{Message: message})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error for user %d: %v", c.userID, err)
			}
			break
		}

		var envelope struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.sendError("Invalid event payload")
			continue
		}

		c.dispatch(envelope.Event, envelope.Data)
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	switch event {
	case "sendMessage":
		c.handleSendMessage(data)
	case "getMessages":
		c.handleGetMessages(data)
	case "sendPing":
		c.handleSendPing(data)
	case "messageDelivered":
		c.handleMessageDelivered(data)
	case "markConversationRead":
		c.handleMarkConversationRead(data)
	case "setDisappearingTimer":
		c.handleSetDisappearingTimer(data)
	case "sendFriendRequest":
		c.handleSendFriendRequest(data)
	case "acceptFriendRequest":
		c.handleAcceptFriendRequest(data)
	case "rejectFriendRequest":
		c.handleRejectFriendRequest(data)
	case "getFriendRequests":
		c.handleGetFriendRequests()
	case "getFriends":
		c.handleGetFriends()
	case "unfriend":
		c.handleUnfriend(data)
	case "updateActiveStatus":
		c.handleUpdateActiveStatus(data)
	case "uploadKeyBundle":
		c.handleUploadKeyBundle(data)
	case "uploadOneTimePreKeys":
		c.handleUploadOneTimePreKeys(data)
	case "fetchPreKeyBundle":
		c.handleFetchPreKeyBundle(data)
	default:
		c.sendError("Unknown event: " + event)
	}
}

// decode unmarshals and validates an inbound payload. Returns false after
// emitting an error event; the handler must bail out with no side effects.
func decode[T any](c *Client, data json.RawMessage, dst *T) bool {
	if len(data) == 0 {
		c.sendError("Missing event data")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.sendError("Invalid event payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		c.sendError("Validation failed: " + err.Error())
		return false
	}
	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(envelope)
			if err != nil {
				log.Printf("ws: marshal error for user %d: %v", c.userID, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
