package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")
	ErrPassphraseRequired    = errors.New("Passphrase is required")
	ErrWrongPassphrase       = errors.New("Passphrase does not match encrypted data")
)
