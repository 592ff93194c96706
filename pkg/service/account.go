package service

import (
	"context"
	"time"
)

type AccountAPI interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Signup(ctx context.Context, creds Credentials) (*SignupResult, error)
	Logout(ctx context.Context, accessToken string) error
}

type AccountService interface {
	// Login authenticates against the remote service and opens a local
	// session for the user.
	Login(ctx context.Context, creds Credentials) (*Session, error)
	Signup(ctx context.Context, creds Credentials) (*SignupResult, error)
	// Logout always removes the local session, even if the remote call
	// fails.
	Logout(ctx context.Context, sessionToken string) error
	CurrentUser(ctx context.Context) (*User, error)
	SessionFromToken(ctx context.Context, sessionToken string) (*Session, error)
}

type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	UserID      string `json:"id"`
	AccessToken string `json:"-"`
}

type SignupResult struct {
	UserID string `json:"id"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a browser session of the portal. AccessToken is the remote
// service credential forwarded on every outbound call.
type Session struct {
	Token       string    `json:"-"`
	UserID      string    `json:"userID"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	Created     time.Time `json:"created"`
	Expires     time.Time `json:"expires"`
}

func (s *Session) User() *User {
	return &User{
		ID:    s.UserID,
		Email: s.Email,
	}
}
