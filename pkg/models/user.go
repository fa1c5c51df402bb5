package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an optional account an analysis can be attributed to. Deleting a
// user clears the reference on their analyses; the records themselves survive.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Username  string    `db:"username"   json:"username"`
	Email     *string   `db:"email"      json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
