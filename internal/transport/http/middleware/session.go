package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/msu-life/auth-service/internal/domain"
	"github.com/msu-life/auth-service/internal/repository"
	"github.com/msu-life/auth-service/internal/session"
)

const (
	currentUserKey = "currentUser"

	errNotAuthenticated   = "Not authenticated"
	errAccountUnavailable = "Account unavailable"
	errForbidden          = "Forbidden"
	errInternalServer     = "Internal server error"
)

// Sessions builds the auth-context middleware: it verifies the session
// cookie, loads the user behind it and gates routes on account state.
type Sessions struct {
	codec  *session.Codec
	users  repository.UserRepository
	admins map[string]bool
	secure bool
	logger *slog.Logger
}

func NewSessions(codec *session.Codec, users repository.UserRepository, adminEmails map[string]bool, secureCookies bool, logger *slog.Logger) *Sessions {
	return &Sessions{
		codec:  codec,
		users:  users,
		admins: adminEmails,
		secure: secureCookies,
		logger: logger.With("component", "session_middleware"),
	}
}

// RequireAuth rejects requests without a valid session. A cryptographically
// valid session over an inactive or banned account gets 403 and the cookie
// cleared, so the client stops replaying it.
func (s *Sessions) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := s.load(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthenticated})
			return
		}
		if !user.Available() {
			ClearSessionCookie(c, s.secure)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errAccountUnavailable})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid session is present and
// stays silent otherwise. Unavailable accounts count as guests.
func (s *Sessions) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := s.load(c); ok && user.Available() {
			c.Set(currentUserKey, user)
		}
		c.Next()
	}
}

// RequireAdmin runs after RequireAuth. Admission is the is_admin flag or
// membership in the configured admin email allow-list.
func (s *Sessions) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthenticated})
			return
		}
		if !user.IsAdmin && !s.admins[user.Email] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
			return
		}
		c.Next()
	}
}

// load verifies the cookie and fetches the user it names. Returns false
// for missing cookie, bad signature, expiry and unknown user alike.
func (s *Sessions) load(c *gin.Context) (*domain.User, bool) {
	value, err := c.Cookie(session.CookieName)
	if err != nil || value == "" {
		return nil, false
	}

	payload, ok := s.codec.Verify(value)
	if !ok {
		return nil, false
	}

	user, err := s.users.FindByID(c.Request.Context(), payload.UID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.ErrorContext(c.Request.Context(), "load session user", "error", err)
		}
		return nil, false
	}
	return user, true
}

// CurrentUser returns the authenticated user set by the middleware.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}

// SetSessionCookie writes the signed token with the attributes the app
// relies on: HttpOnly, SameSite=Lax, Path=/, Max-Age = session TTL,
// Secure only in production.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie expires the cookie client-side. The token itself
// stays cryptographically valid until exp; logout is stateless.
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, "", -1, "/", "", secure, true)
}
