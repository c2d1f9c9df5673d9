package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials holds the single configured admin account.
type Credentials struct {
	username     []byte
	passwordHash []byte
}

// NewCredentials accepts either a bcrypt hash or a plain password; the hash wins when both are set.
func NewCredentials(username, password, passwordHash string) (*Credentials, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	c := &Credentials{username: []byte(username)}
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		c.passwordHash = []byte(passwordHash)
	case password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		c.passwordHash = hash
	default:
		return nil, errors.New("admin password is required")
	}
	return c, nil
}

// Check reports whether username and password match. Both comparisons always run
// so a wrong username and a wrong password are indistinguishable by timing.
func (c *Credentials) Check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), c.username) == 1
	passOK := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

// Username returns the configured admin username.
func (c *Credentials) Username() string {
	return string(c.username)
}
