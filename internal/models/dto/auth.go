package dto

import (
	"net/mail"
	"strings"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims surrounding whitespace from identity fields. The password
// is kept byte for byte.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

func (r RegisterRequest) Validate() error {
	if err := requireText("username", r.Username); err != nil {
		return err
	}
	if err := requireText("email", r.Email); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return invalid("email", "value is not a valid email address")
	}
	if r.Password == "" {
		return invalid("password", "field required")
	}
	return nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
