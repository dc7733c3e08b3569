// Package models holds the data types shared by the auth layer.
package models

import "time"

// Identity is the sanitized, credential-free view of an authenticated user.
// It is the only user shape that may enter a session, a token or a GraphQL
// execution context.
type Identity struct {
	ID    string `json:"id" bson:"id"`
	Email string `json:"email" bson:"email"`
}

// StoredUser is a users row. PasswordHash and Active are owned by the
// persistence layer; the auth layer reads them and never writes them back.
type StoredUser struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Identity strips everything but id and email.
func (u *StoredUser) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}
