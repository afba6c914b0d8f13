package models

import "time"

// User is an API account allowed to sync. The password is stored as an
// argon2id hash next to its random salt.
type User struct {
	ID           string    `db:"id"`
	UserName     string    `db:"username"`
	Salt         []byte    `db:"salt"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
