package domain

import "time"

// Role values carried on the access token. This is a coarse flag, not a
// permission system.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2id PHC string
	Role         string
	CreatedAt    time.Time
}
