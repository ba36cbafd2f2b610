package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/microblog/internal/database/dbtest"
	"github.com/emilythestrangee/microblog/internal/models"
	"github.com/emilythestrangee/microblog/internal/repository"
)

type fixture struct {
	db      *gorm.DB
	users   *repository.GormUserRepository
	posts   *repository.GormPostRepository
	follows *repository.GormFollowRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t).GetDB()
	return &fixture{
		db:      db,
		users:   repository.NewUserRepository(db),
		posts:   repository.NewPostRepository(db),
		follows: repository.NewFollowRepository(db),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) post(t *testing.T, author *models.User, body string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{Body: body, UserID: author.ID, Timestamp: at}
	require.NoError(t, f.posts.Create(context.Background(), p))
	return p
}

func bodies(page repository.PostPage) []string {
	out := make([]string, 0, len(page.Posts))
	for _, p := range page.Posts {
		out = append(out, p.Body)
	}
	return out
}

func names(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(offset int) time.Time {
	return base.Add(time.Duration(offset) * time.Second)
}

func seq(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}
