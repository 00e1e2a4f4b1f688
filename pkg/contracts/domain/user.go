package domain

import "time"

// AdminUser is a dashboard account. Only admin accounts may call the
// lifecycle endpoints; the first account ever registered is promoted to
// admin, all later registrations are regular users.
type AdminUser struct {
	Username     string    `json:"username" validate:"required,min=5"`
	PasswordHash string    `json:"password_hash"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}
