package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthToken: единственный bearer-токен аккаунта, без срока действия.
type AuthToken struct {
	Key       string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
