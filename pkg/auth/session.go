package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

type CookieSettings struct {
	Name     string
	MaxAge   int
	Path     string
	Domain   string
	SameSite http.SameSite
	Secure   bool
	HttpOnly bool
}

func (c CookieSettings) Cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   c.MaxAge,
		Expires:  expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
}

// Expired returns a cookie that makes the browser drop the session.
func (c CookieSettings) Expired() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
}

func GenerateSecureToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return ""
	}

	return hex.EncodeToString(b)
}
