package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/microblog/internal/auth"
)

// SameOrigin rejects cookie-authenticated mutations that do not prove they
// come from this site. The proof is an Origin header, or failing that a
// Referer, naming the request's own scheme, host and port.
func SameOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mutating(c.Request.Method) || !hasSessionCookie(c) {
			c.Next()
			return
		}
		if !hasSameOriginProof(c.Request) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func hasSessionCookie(c *gin.Context) bool {
	v, err := c.Cookie(auth.CookieName)
	return err == nil && v != ""
}

func hasSameOriginProof(r *http.Request) bool {
	scheme := requestScheme(r)
	host, port := splitHostPort(r.Host, scheme)
	if host == "" {
		return false
	}
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
		return sameOrigin(origin, scheme, host, port)
	}
	if referer := strings.TrimSpace(r.Header.Get("Referer")); referer != "" {
		return sameOrigin(referer, scheme, host, port)
	}
	return false
}

func sameOrigin(raw, scheme, host, port string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	originScheme := strings.ToLower(u.Scheme)
	if originScheme != scheme {
		return false
	}
	originHost, originPort := splitHostPort(u.Host, originScheme)
	return originHost != "" && originHost == host && originPort == port
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto == "https" || proto == "http" {
		return proto
	}
	return "http"
}

func splitHostPort(hostport, scheme string) (string, string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, ""
	}
	if port == "" {
		port = defaultPort(scheme)
	}
	return strings.ToLower(strings.Trim(host, "[]")), port
}

func defaultPort(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
