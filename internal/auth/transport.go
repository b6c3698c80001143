package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// TransportMode selects how a freshly issued token reaches the client.
type TransportMode string

const (
	TransportBearer TransportMode = "bearer"
	TransportCookie TransportMode = "cookie"
)

// TokenSource records where the middleware found the token.
type TokenSource string

const (
	SourceNone   TokenSource = "none"
	SourceHeader TokenSource = "header"
	SourceCookie TokenSource = "cookie"
)

// CookieConfig holds the attributes of the token cookie.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite string
}

// Transport delivers tokens in exactly one mode and extracts them from requests.
type Transport struct {
	mode   TransportMode
	cookie CookieConfig
}

// Delivery is what the login response carries. Token is empty in cookie mode.
type Delivery struct {
	Token     string
	ExpiresAt time.Time
}

// NewTransport builds a transport. Unknown modes fall back to bearer.
func NewTransport(mode TransportMode, cookie CookieConfig) *Transport {
	if mode != TransportCookie {
		mode = TransportBearer
	}
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	cookie.SameSite = normalizeSameSite(cookie.SameSite)
	return &Transport{mode: mode, cookie: cookie}
}

// Mode returns the delivery mode.
func (t *Transport) Mode() TransportMode {
	return t.mode
}

// AllowCredentials reports whether CORS must allow credentials for this mode.
func (t *Transport) AllowCredentials() bool {
	return t.mode == TransportCookie
}

// Deliver attaches the token to the response according to the mode.
func (t *Transport) Deliver(c *fiber.Ctx, token string, expiresAt time.Time) Delivery {
	if t.mode == TransportBearer {
		return Delivery{Token: token, ExpiresAt: expiresAt}
	}
	c.Cookie(&fiber.Cookie{
		Name:     t.cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   t.cookie.Domain,
		Expires:  expiresAt,
		Secure:   t.cookie.Secure,
		HTTPOnly: true,
		SameSite: t.cookie.SameSite,
	})
	return Delivery{ExpiresAt: expiresAt}
}

// Clear expires the token cookie. It is a no-op in bearer mode.
func (t *Transport) Clear(c *fiber.Ctx) {
	if t.mode != TransportCookie {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     t.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   t.cookie.Domain,
		Expires:  time.Unix(0, 0),
		Secure:   t.cookie.Secure,
		HTTPOnly: true,
		SameSite: t.cookie.SameSite,
	})
}

// Extract finds the request token: a Bearer Authorization header wins, the cookie is consulted
// only when the header is absent or carries another scheme.
func (t *Transport) Extract(c *fiber.Ctx) (string, TokenSource) {
	if token := bearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
		return token, SourceHeader
	}
	if token := strings.TrimSpace(c.Cookies(t.cookie.Name)); token != "" {
		return token, SourceCookie
	}
	return "", SourceNone
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func normalizeSameSite(value string) string {
	switch strings.ToLower(value) {
	case "lax":
		return fiber.CookieSameSiteLaxMode
	case "none":
		return fiber.CookieSameSiteNoneMode
	default:
		return fiber.CookieSameSiteStrictMode
	}
}
