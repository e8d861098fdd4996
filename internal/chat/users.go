package chat

import (
	"database/sql"
	"fmt"

	"echochat/internal/models"
	"echochat/pkg/apperr"
)

// Users is the read/update side of the user store the orchestrators need.
// Registration and credential checks live in the auth service.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

const userColumns = "id, email, username, password_hash, profile_picture_url, active_status, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var username, pictureURL sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &username, &user.PasswordHash, &pictureURL, &user.ActiveStatus, &user.CreatedAt); err != nil {
		return nil, err
	}
	if username.Valid {
		user.Username = &username.String
	}
	if pictureURL.Valid {
		user.ProfilePictureURL = &pictureURL.String
	}
	return user, nil
}

func (u *Users) FindByID(id int) (*models.User, error) {
	row := u.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// FindByEmail matches case-insensitively (email column collates NOCASE).
func (u *Users) FindByEmail(email string) (*models.User, error) {
	row := u.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (u *Users) UpdateActiveStatus(id int, active bool) error {
	result, err := u.db.Exec(
		"UPDATE users SET active_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update active status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (u *Users) UpdateProfilePicture(id int, url string) error {
	result, err := u.db.Exec(
		"UPDATE users SET profile_picture_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		url, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile picture: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

// Delete removes the user row; owned rows (conversations, messages, friend
// requests, key material, subscriptions) go with it via foreign-key
// cascades.
func (u *Users) Delete(id int) error {
	result, err := u.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}
