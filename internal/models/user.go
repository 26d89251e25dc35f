package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User captures application-facing fields for a registered identity.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           string    `json:"role"`
	ProfilePicture *string   `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}
