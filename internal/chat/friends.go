package chat

import (
	"database/sql"
	"fmt"

	"echochat/internal/models"
	"echochat/pkg/apperr"
)

// Friends implements the friend-request state machine and the friendship
// gate every message/ping exchange is authorized against.
type Friends struct {
	db    *sql.DB
	users *Users
}

func NewFriends(db *sql.DB, users *Users) *Friends {
	return &Friends{db: db, users: users}
}

// Request pairs a friend request with its hydrated participants for
// client-facing payloads.
type Request struct {
	models.FriendRequest
	Sender   *models.User
	Receiver *models.User
}

const friendRequestColumns = "id, sender_id, receiver_id, status, created_at, responded_at"

func scanFriendRequest(row interface{ Scan(...any) error }) (*models.FriendRequest, error) {
	fr := &models.FriendRequest{}
	var status string
	var respondedAt sql.NullTime
	if err := row.Scan(&fr.ID, &fr.SenderID, &fr.ReceiverID, &status, &fr.CreatedAt, &respondedAt); err != nil {
		return nil, err
	}
	fr.Status = models.FriendRequestStatus(status)
	if respondedAt.Valid {
		fr.RespondedAt = &respondedAt.Time
	}
	return fr, nil
}

func (f *Friends) hydrate(fr *models.FriendRequest) (*Request, error) {
	sender, err := f.users.FindByID(fr.SenderID)
	if err != nil {
		return nil, err
	}
	receiver, err := f.users.FindByID(fr.ReceiverID)
	if err != nil {
		return nil, err
	}
	return &Request{FriendRequest: *fr, Sender: sender, Receiver: receiver}, nil
}

// SendRequest creates a PENDING request from sender to receiver. If the
// receiver already has a PENDING request towards the sender, both requests
// resolve to ACCEPTED in one transaction and the returned request carries
// status ACCEPTED (the caller emits "accepted" instead of "sent").
func (f *Friends) SendRequest(senderID, receiverID int) (*Request, error) {
	if senderID == receiverID {
		return nil, apperr.InvalidArg("You cannot send a friend request to yourself")
	}

	friends, err := f.AreFriends(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, apperr.AlreadyExists("You are already friends")
	}

	var existingID int
	err = f.db.QueryRow(
		"SELECT id FROM friend_requests WHERE sender_id = ? AND receiver_id = ? AND status = 'PENDING'",
		senderID, receiverID,
	).Scan(&existingID)
	if err == nil {
		return nil, apperr.AlreadyExists("Friend request already sent")
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query friend request: %w", err)
	}

	// Mutual-request auto-accept: a pending request in the opposite
	// direction means both sides want the friendship.
	var reciprocalID int
	err = f.db.QueryRow(
		"SELECT id FROM friend_requests WHERE sender_id = ? AND receiver_id = ? AND status = 'PENDING'",
		receiverID, senderID,
	).Scan(&reciprocalID)
	switch {
	case err == nil:
		return f.autoAccept(senderID, receiverID, reciprocalID)
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("failed to query reciprocal request: %w", err)
	}

	result, err := f.db.Exec(
		"INSERT INTO friend_requests (sender_id, receiver_id, status) VALUES (?, ?, 'PENDING')",
		senderID, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}
	id, _ := result.LastInsertId()
	return f.findRequest(int(id))
}

func (f *Friends) autoAccept(senderID, receiverID, reciprocalID int) (*Request, error) {
	tx, err := f.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE friend_requests SET status = 'ACCEPTED', responded_at = CURRENT_TIMESTAMP WHERE id = ?",
		reciprocalID,
	); err != nil {
		return nil, fmt.Errorf("failed to accept reciprocal request: %w", err)
	}

	result, err := tx.Exec(
		"INSERT INTO friend_requests (sender_id, receiver_id, status, responded_at) VALUES (?, ?, 'ACCEPTED', CURRENT_TIMESTAMP)",
		senderID, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create accepted request: %w", err)
	}
	id, _ := result.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit auto-accept: %w", err)
	}
	return f.findRequest(int(id))
}

func (f *Friends) findRequest(id int) (*Request, error) {
	row := f.db.QueryRow("SELECT "+friendRequestColumns+" FROM friend_requests WHERE id = ?", id)
	fr, err := scanFriendRequest(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("Friend request not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query friend request: %w", err)
	}
	return f.hydrate(fr)
}

// Accept transitions a PENDING request to ACCEPTED. Only the receiver may
// accept, and a request is resolved exactly once.
func (f *Friends) Accept(requestID, userID int) (*Request, error) {
	return f.respond(requestID, userID, models.FriendRequestAccepted)
}

// Reject transitions a PENDING request to REJECTED. Only the receiver may
// reject.
func (f *Friends) Reject(requestID, userID int) (*Request, error) {
	return f.respond(requestID, userID, models.FriendRequestRejected)
}

func (f *Friends) respond(requestID, userID int, status models.FriendRequestStatus) (*Request, error) {
	req, err := f.findRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != userID {
		return nil, apperr.Forbidden("You can only respond to your own friend requests")
	}
	if req.Status != models.FriendRequestPending {
		return nil, apperr.InvalidArg("Friend request already responded to")
	}

	if _, err := f.db.Exec(
		"UPDATE friend_requests SET status = ?, responded_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), requestID,
	); err != nil {
		return nil, fmt.Errorf("failed to update friend request: %w", err)
	}
	return f.findRequest(requestID)
}

// AreFriends reports whether an ACCEPTED request exists between the two
// users in either direction.
func (f *Friends) AreFriends(userAID, userBID int) (bool, error) {
	var exists bool
	err := f.db.QueryRow(
		`SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'ACCEPTED'
			  AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		)`,
		userAID, userBID, userBID, userAID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query friendship: %w", err)
	}
	return exists, nil
}

// Unfriend removes every ACCEPTED request between the pair. Reports
// NotFound when the users were not friends.
func (f *Friends) Unfriend(userAID, userBID int) error {
	result, err := f.db.Exec(
		`DELETE FROM friend_requests
		 WHERE status = 'ACCEPTED'
		   AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))`,
		userAID, userBID, userBID, userAID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("You are not friends with this user")
	}
	return nil
}

// Friends returns the users the given user has an ACCEPTED request with.
func (f *Friends) Friends(userID int) ([]*models.User, error) {
	// DISTINCT: mutual auto-accept leaves an ACCEPTED row in each direction.
	rows, err := f.db.Query(
		`SELECT DISTINCT `+prefixedUserColumns("u")+`
		 FROM users u
		 JOIN friend_requests fr
		   ON (fr.sender_id = ? AND fr.receiver_id = u.id)
		   OR (fr.receiver_id = ? AND fr.sender_id = u.id)
		 WHERE fr.status = 'ACCEPTED'
		 ORDER BY u.id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends: %w", err)
	}
	defer rows.Close()

	var friends []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, user)
	}
	return friends, rows.Err()
}

// PendingRequests returns the PENDING requests addressed to the user,
// oldest first, with participants hydrated.
func (f *Friends) PendingRequests(userID int) ([]*Request, error) {
	rows, err := f.db.Query(
		"SELECT "+friendRequestColumns+" FROM friend_requests WHERE receiver_id = ? AND status = 'PENDING' ORDER BY created_at",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var raw []*models.FriendRequest
	for rows.Next() {
		fr, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		raw = append(raw, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	requests := make([]*Request, 0, len(raw))
	for _, fr := range raw {
		req, err := f.hydrate(fr)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func (f *Friends) PendingCount(userID int) (int, error) {
	var count int
	err := f.db.QueryRow(
		"SELECT COUNT(*) FROM friend_requests WHERE receiver_id = ? AND status = 'PENDING'",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}

func prefixedUserColumns(alias string) string {
	return alias + ".id, " + alias + ".email, " + alias + ".username, " + alias + ".password_hash, " + alias + ".profile_picture_url, " + alias + ".active_status, " + alias + ".created_at"
}
