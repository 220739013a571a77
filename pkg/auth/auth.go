// Package auth provides the demo credential check behind the login endpoint.
//
// It is a placeholder: there are no sessions or tokens and the accepted
// credentials come from configuration.
package auth

import (
	"context"
	"net/http"
)

const (
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Error is a coded login failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Status maps the error code to an HTTP status.
func (e *Error) Status() int {
	if e.Code == CodeMissingCredentials {
		return http.StatusBadRequest
	}
	return http.StatusUnauthorized
}

// Verifier checks a login attempt.
type Verifier interface {
	Verify(ctx context.Context, login, password string) (*User, error)
}

// StaticVerifier accepts a single fixed login.
type StaticVerifier struct {
	Username string
	Password string
	User     User
}

// NewStaticVerifier returns a verifier for username/password. Empty values
// fall back to the demo login admin/123.
func NewStaticVerifier(username, password, email, name string) *StaticVerifier {
	if username == "" && password == "" {
		username, password = "admin", "123"
	}
	if email == "" {
		email = "admin@example.com"
	}
	if name == "" {
		name = "Admin User"
	}
	return &StaticVerifier{
		Username: username,
		Password: password,
		User:     User{ID: "1", Email: email, Name: name},
	}
}

func (v *StaticVerifier) Verify(ctx context.Context, login, password string) (*User, error) {
	if login == v.Username && password == v.Password {
		u := v.User
		return &u, nil
	}

	switch {
	case login == "" || password == "":
		return nil, &Error{Code: CodeMissingCredentials, Message: "Email and password are required"}
	case login != v.Username:
		return nil, &Error{Code: CodeInvalidEmail, Message: "Email not found"}
	case password != v.Password:
		return nil, &Error{Code: CodeInvalidPassword, Message: "Incorrect password"}
	}
	return nil, &Error{Code: CodeInvalidCredentials, Message: "Invalid email or password"}
}
