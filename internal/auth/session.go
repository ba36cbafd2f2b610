package auth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/microblog/internal/models"
)

const (
	// CookieName holds the session token for browser clients.
	CookieName = "session"

	currentUserKey = "current_user"
)

// Sessions stores session tokens in cookies.
type Sessions struct {
	tokens      *TokenManager
	sessionTTL  time.Duration
	rememberTTL time.Duration
	secure      bool
}

func NewSessions(tokens *TokenManager, sessionTTL, rememberTTL time.Duration, secure bool) *Sessions {
	return &Sessions{tokens: tokens, sessionTTL: sessionTTL, rememberTTL: rememberTTL, secure: secure}
}

// Login writes a session cookie for user. A remembered session survives
// browser restarts until rememberTTL; otherwise the cookie lives for the
// browser session and the token for sessionTTL.
func (s *Sessions) Login(c *gin.Context, user *models.User, remember bool) error {
	ttl, maxAge := s.sessionTTL, 0
	if remember {
		ttl = s.rememberTTL
		maxAge = int(ttl.Seconds())
	}
	token, err := s.tokens.Issue(user.ID, ttl)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", s.secure, true)
	return nil
}

func (s *Sessions) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", s.secure, true)
}

// Token issues a bearer token for API clients.
func (s *Sessions) Token(user *models.User) (string, time.Duration, error) {
	token, err := s.tokens.Issue(user.ID, s.sessionTTL)
	return token, s.sessionTTL, err
}

// UserID returns the user id carried by the request's bearer token or
// session cookie.
func (s *Sessions) UserID(c *gin.Context) (uint, bool) {
	raw := bearerToken(c.GetHeader("Authorization"))
	if raw == "" {
		cookie, err := c.Cookie(CookieName)
		if err != nil || cookie == "" {
			return 0, false
		}
		raw = cookie
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return 0, false
	}
	return claims.UserID, true
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SetCurrentUser records the authenticated user on the request.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(currentUserKey, user)
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SafeNext returns next when it is a path on this site and "/" otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
