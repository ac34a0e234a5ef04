package auth

import (
	"stacktax-backend/internal/domain"
	"stacktax-backend/internal/encryption"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginInput for login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionUserShape is the object stored in session and returned by /me.
type SessionUserShape struct {
	UserID           string `json:"user_id"`
	Fullname         string `json:"fullname"`
	Email            string `json:"email"`
	AccountingMethod string `json:"accounting_method"`
}

// UserFinder abstracts user lookup by email+password (for production GORM or test doubles).
type UserFinder interface {
	FindByEmailAndPassword(email, password string) (*domain.User, error)
}

// GormUserFinder implements UserFinder using GORM and bcrypt.
type GormUserFinder struct{ DB *gorm.DB }

func (g *GormUserFinder) FindByEmailAndPassword(email, password string) (*domain.User, error) {
	return LoginUser(g.DB, LoginInput{Email: email, Password: password})
}

// LoginUser finds user by email and verifies password. Returns user for session or error.
func LoginUser(db *gorm.DB, input LoginInput) (*domain.User, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var u domain.User
	if err := db.Where("email = ?", input.Email).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &u, nil
}

// VerifyUser validates session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return &SessionUserShape{
		UserID:           userID,
		Fullname:         str(m["fullname"]),
		Email:            str(m["email"]),
		AccountingMethod: str(m["accounting_method"]),
	}, nil
}

// VerifyPassphrase checks the passphrase against the user's most recent
// encrypted transaction. A user with no transactions has nothing to check
// against, so any non-empty passphrase is accepted.
func VerifyPassphrase(db *gorm.DB, userID, saltHex, passphrase string) error {
	if passphrase == "" {
		return ErrPassphraseRequired
	}
	var tx domain.BitcoinTransaction
	err := db.Where("user_id = ?", userID).Order("created_at DESC").First(&tx).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	key := encryption.DeriveKey(passphrase, encryption.DecodeSaltHex(saltHex))
	if _, err := encryption.DecryptString(tx.EncryptedData, key); err != nil {
		return ErrWrongPassphrase
	}
	return nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
