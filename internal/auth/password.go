package auth

import (
	"github.com/adityaraj-09/faff-assign/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

func HashPassword(plain string) (string, error) {
	if len(plain) < MinPasswordLength {
		return "", apperr.Validation("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
