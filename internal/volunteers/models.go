package volunteers

import "time"

// Volunteer is an operator account. PasswordHash is a bcrypt hash and is
// never serialized.
type Volunteer struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	DisplayName  string     `json:"display_name" db:"display_name"`
	PasswordHash string     `json:"-" db:"password_hash"`
	IsOnline     bool       `json:"is_online" db:"is_online"`
	LastSeen     *time.Time `json:"last_seen" db:"last_seen"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Presence is a volunteer as shown to other volunteers.
type Presence struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Online      bool       `json:"online"`
	LastSeen    *time.Time `json:"last_seen"`
}
