package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed login, whichever part was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// PasswordCost is the bcrypt cost used by HashPassword.
const PasswordCost = 12

// HashPassword returns the bcrypt hash stored in auth.admin_password_hash.
func HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticator checks login attempts against the configured admin account.
type Authenticator struct {
	email string
	hash  []byte
}

// NewAuthenticator validates the configured hash and returns an Authenticator.
func NewAuthenticator(email, passwordHash string) (*Authenticator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("admin email is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &Authenticator{email: email, hash: []byte(passwordHash)}, nil
}

// Email returns the admin address.
func (a *Authenticator) Email() string {
	return a.email
}

// Check verifies email and password. The bcrypt comparison always runs.
func (a *Authenticator) Check(email, password string) error {
	pwErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(email))), []byte(a.email)) == 1
	if pwErr != nil || !emailOK {
		return ErrInvalidCredentials
	}
	return nil
}
