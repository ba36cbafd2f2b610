// Package flash carries one-shot messages across a redirect in a cookie.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	cookieName = "flash"
	pendingKey = "flash_pending"
	secureKey  = "flash_secure"
)

// Secure marks the flash cookie Secure for every request it runs on. It
// should follow the session cookie's setting.
func Secure(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(secureKey, secure)
		c.Next()
	}
}

// Add queues message for the next page the client renders.
func Add(c *gin.Context, message string) {
	pending := append(pendingMessages(c), message)
	c.Set(pendingKey, pending)

	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	setCookie(c, base64.RawURLEncoding.EncodeToString(raw), 0)
}

// Pop returns the messages delivered with the request, plus any queued
// during it, and clears the cookie.
func Pop(c *gin.Context) []string {
	var messages []string
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(cookie); err == nil {
			_ = json.Unmarshal(raw, &messages)
		}
		setCookie(c, "", -1)
	}
	if pending := pendingMessages(c); len(pending) > 0 {
		messages = append(messages, pending...)
		setCookie(c, "", -1)
		c.Set(pendingKey, []string(nil))
	}
	return messages
}

// Discard forgets the messages queued during this request. The cookie
// header itself is left to the caller.
func Discard(c *gin.Context) {
	c.Set(pendingKey, []string(nil))
}

func setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, value, maxAge, "/", "", c.GetBool(secureKey), true)
}

func pendingMessages(c *gin.Context) []string {
	return c.GetStringSlice(pendingKey)
}
