package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/microblog/internal/auth"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/repository"
)

// LoadUser resolves the session token into the current user. Tokens for
// users that no longer exist are treated as anonymous.
func LoadUser(sessions *auth.Sessions, users repository.UserRepository, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessions.UserID(c)
		if !ok {
			c.Next()
			return
		}
		user, err := users.GetByID(c.Request.Context(), id)
		switch {
		case err == nil:
			auth.SetCurrentUser(c, user)
		case errors.Is(err, repository.ErrNotFound):
		default:
			log.WithError(err).WithField("request_id", GetRequestID(c)).Error("load session user")
		}
		c.Next()
	}
}

// RequireLogin stops anonymous requests. Browsers are sent to the login
// page with a next parameter; API clients get 401.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.CurrentUser(c); ok {
			c.Next()
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		flash.Add(c, "Please log in to access this page.")
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// TouchLastSeen records activity for the current user.
func TouchLastSeen(users repository.UserRepository, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := auth.CurrentUser(c); ok {
			now := time.Now().UTC()
			if err := users.TouchLastSeen(c.Request.Context(), user.ID, now); err != nil {
				log.WithError(err).WithField("request_id", GetRequestID(c)).Warn("update last seen")
			} else {
				user.LastSeen = now
			}
		}
		c.Next()
	}
}
