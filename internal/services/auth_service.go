package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner issues a signed session token for an authenticated admin.
type TokenSigner func(admin bool, ttl time.Duration) (string, error)

// AuthService gates the admin surface behind a single configured password.
// There is no user database; the shared password hash comes from config.
type AuthService struct {
	passHash  []byte
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token string `json:"token"`
	Admin bool   `json:"admin"`
}

func NewAuthService(passHash []byte, signer TokenSigner) *AuthService {
	return &AuthService{
		passHash:  passHash,
		signToken: signer,
		tokenTTL:  24 * time.Hour,
	}
}

// Login verifies the admin password and issues a bearer token.
func (s *AuthService) Login(password string) (*AuthResult, error) {
	if strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("password required")
	}
	if len(s.passHash) == 0 {
		return nil, NewUnauthorizedError("admin login disabled")
	}
	if err := bcrypt.CompareHashAndPassword(s.passHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	token, err := s.signToken(true, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Admin: true}, nil
}
