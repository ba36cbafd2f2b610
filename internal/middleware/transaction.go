package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emilythestrangee/microblog/internal/database"
	"github.com/emilythestrangee/microblog/internal/flash"
)

// FailureFunc answers a request whose work could not be committed.
type FailureFunc func(c *gin.Context, err error)

// Transaction runs each mutating request inside one database transaction.
// The transaction commits when the handler finishes below status 500 and
// rolls back on a 5xx status or a panic; the panic is re-raised for the
// recovery handler.
//
// A failed commit replaces the handler's response through onFailure as long
// as nothing has been written yet. With a nil onFailure the client gets a
// bare 500.
func Transaction(db *gorm.DB, log *logrus.Logger, onFailure FailureFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mutating(c.Request.Method) {
			c.Next()
			return
		}

		tx := db.WithContext(c.Request.Context()).Begin()
		if tx.Error != nil {
			log.WithError(tx.Error).Error("begin transaction")
			_ = c.Error(tx.Error)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Request = c.Request.WithContext(database.WithTx(c.Request.Context(), tx))

		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := tx.Rollback().Error; err != nil {
				log.WithError(err).WithField("request_id", GetRequestID(c)).Error("rollback transaction")
			}
			return
		}
		if err := tx.Commit().Error; err != nil {
			log.WithError(err).WithField("request_id", GetRequestID(c)).Error("commit transaction")
			_ = c.Error(err)
			if c.Writer.Written() {
				return
			}
			discardResponse(c)
			if onFailure == nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			onFailure(c, err)
		}
	}
}

// discardResponse drops the redirect, cookies and flashes the handler
// prepared for a request whose changes were not saved.
func discardResponse(c *gin.Context) {
	h := c.Writer.Header()
	h.Del("Location")
	h.Del("Set-Cookie")
	flash.Discard(c)
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
