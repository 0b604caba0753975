package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Account is a row in the cloud account database. Password accounts carry a
// bcrypt hash; federated accounts carry the upstream provider name instead.
type Account struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Email         string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash  string    `json:"-"`
	DisplayName   string    `json:"display_name"`
	PhotoURL      string    `json:"photo_url"`
	EmailVerified bool      `json:"email_verified" gorm:"not null;default:false"`
	VerifyToken   string    `json:"-"`
	Provider      string    `json:"provider" gorm:"not null;default:'password'"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a *Account) Identity() *Identity {
	return &Identity{
		ID:            a.ID.String(),
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		DisplayName:   a.DisplayName,
		PhotoURL:      a.PhotoURL,
	}
}
