package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/microblog/internal/middleware"
)

type ErrorHandler struct {
	*Deps
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// NotFound answers unknown routes.
func (h *ErrorHandler) NotFound(c *gin.Context) {
	h.notFound(c)
}

// Recover is the gin recovery handler. A 500 status also makes the
// transaction middleware roll back.
func (h *ErrorHandler) Recover(c *gin.Context, recovered any) {
	h.internalError(c, fmt.Errorf("panic: %v", recovered))
}

// Internal answers with the 500 page, or the JSON error under /api.
func (h *ErrorHandler) Internal(c *gin.Context, err error) {
	h.internalError(c, err)
}

func (d *Deps) notFound(c *gin.Context) {
	if isAPI(c) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	d.html(c, http.StatusNotFound, "404.html", gin.H{"title": "Not Found"})
	c.Abort()
}

func (d *Deps) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	d.Log.WithError(err).
		WithField("request_id", middleware.GetRequestID(c)).
		WithField("path", c.Request.URL.Path).
		Error("internal error")

	if isAPI(c) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	d.html(c, http.StatusInternalServerError, "500.html", gin.H{"title": "Error"})
	c.Abort()
}
