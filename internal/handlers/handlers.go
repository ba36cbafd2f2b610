package handlers

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/microblog/internal/auth"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/forms"
	"github.com/emilythestrangee/microblog/internal/models"
	"github.com/emilythestrangee/microblog/internal/repository"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Users    repository.UserRepository
	Follows  repository.FollowRepository
	Posts    repository.PostRepository
	Sessions *auth.Sessions
	PerPage  int
	Log      *logrus.Logger
}

// Handler combines all handler types
type Handler struct {
	Auth   *AuthHandler
	Post   *PostHandler
	User   *UserHandler
	Errors *ErrorHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(deps Deps) *Handler {
	d := &deps
	return &Handler{
		Auth:   &AuthHandler{d},
		Post:   &PostHandler{d},
		User:   &UserHandler{d},
		Errors: &ErrorHandler{d},
	}
}

// html renders page inside the site layout with the current user and any
// pending flash messages.
func (d *Deps) html(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	user, _ := auth.CurrentUser(c)
	data["current_user"] = user
	data["flashes"] = flash.Pop(c)
	if _, ok := data["errors"]; !ok {
		data["errors"] = forms.FieldErrors{}
	}
	c.HTML(status, page, data)
}

func (d *Deps) page(c *gin.Context) repository.Page {
	n, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	return repository.NewPage(n, d.PerPage)
}

// pageData adds the posts and pager links of p to data.
func pageData(data gin.H, base string, p repository.PostPage) gin.H {
	data["posts"] = p.Posts
	data["next_url"] = ""
	data["prev_url"] = ""
	if p.HasNext {
		data["next_url"] = fmt.Sprintf("%s?page=%d", base, p.NextNum())
	}
	if p.HasPrev() {
		data["prev_url"] = fmt.Sprintf("%s?page=%d", base, p.PrevNum())
	}
	return data
}

func userURL(username string) string {
	return "/user/" + url.PathEscape(username)
}

func postJSON(p models.Post) gin.H {
	return gin.H{
		"id":        p.ID,
		"body":      p.Body,
		"timestamp": p.Timestamp,
		"author":    p.Author.Summary(),
	}
}

func pageJSON(p repository.PostPage) gin.H {
	items := make([]gin.H, 0, len(p.Posts))
	for _, post := range p.Posts {
		items = append(items, postJSON(post))
	}
	return gin.H{
		"items":    items,
		"page":     p.Number,
		"has_next": p.HasNext,
		"has_prev": p.HasPrev(),
	}
}
