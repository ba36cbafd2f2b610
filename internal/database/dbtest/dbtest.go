// Package dbtest opens throwaway databases for tests.
package dbtest

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"

	"github.com/emilythestrangee/microblog/internal/database"
)

// New opens a migrated in-memory sqlite database private to t.
func New(t testing.TB) database.Service {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)

	svc, err := database.Open(sqlite.Open(dsn), log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}
