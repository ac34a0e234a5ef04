package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User owns transactions and lots. EncryptionSalt is the hex-encoded salt the
// client used when deriving the payload-encryption key; the server never
// stores the passphrase itself outside the session.
type User struct {
	UserID           uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname         string         `gorm:"column:fullname;not null" json:"fullname"`
	Email            string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash     string         `gorm:"column:password_hash;not null" json:"-"`
	EncryptionSalt   string         `gorm:"column:encryption_salt;not null" json:"-"`
	AccountingMethod *string        `gorm:"column:accounting_method;type:varchar(10)" json:"accounting_method"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
