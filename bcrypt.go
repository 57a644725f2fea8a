package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string, cost ...int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	c := passwordHashCost()
	if len(cost) > 0 && cost[0] > 0 {
		c = cost[0]
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), c)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

type bcryptAuthenticator struct {
	cost int
}

// NewPasswordAuthenticator returns a bcrypt backed PasswordAuthenticator.
func NewPasswordAuthenticator(cost int) PasswordAuthenticator {
	return bcryptAuthenticator{cost: cost}
}

func (b bcryptAuthenticator) HashPassword(password string) (string, error) {
	return HashPassword(password, b.cost)
}

func (b bcryptAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
