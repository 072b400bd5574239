package tours

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return hashPasswordWithCost(password, passwordHashCost())
}

func hashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// BcryptHasher implements PasswordHasher with a fixed cost
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher uses the build's default cost
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: passwordHashCost()}
}

func (b BcryptHasher) HashPassword(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}
	return hashPasswordWithCost(password, cost)
}

func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
