package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const RoleUser = "user"

// User is the credential and profile record. SentRequests and
// ReceivedRequests mirror the pending connection requests and are only
// written by the connections repository.
type User struct {
	ID               string    `json:"id"`
	FirebaseUID      *string   `json:"firebaseUid,omitempty"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     *string   `json:"-"`
	Role             string    `json:"role"`
	Bio              string    `json:"bio"`
	Location         string    `json:"location"`
	Phone            string    `json:"phone"`
	PhotoURL         string    `json:"photoUrl"`
	Interests        []string  `json:"interests"`
	SentRequests     []string  `json:"sentRequests"`
	ReceivedRequests []string  `json:"receivedRequests"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password.
// Federated-only accounts have no hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// RegisterRequest is the input for password registration.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileRequest carries a partial profile update; nil fields are left alone.
type UpdateProfileRequest struct {
	Name      *string
	Bio       *string
	Location  *string
	Phone     *string
	PhotoURL  *string
	Interests []string
}

// Identity is what the external identity provider vouches for.
type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

// AuthResult is returned by every login flow.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
