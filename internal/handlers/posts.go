package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/microblog/internal/auth"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/forms"
	"github.com/emilythestrangee/microblog/internal/models"
	"github.com/emilythestrangee/microblog/internal/monitoring"
)

type PostHandler struct {
	*Deps
}

// Index shows the post form above the current user's feed.
func (h *PostHandler) Index(c *gin.Context) {
	h.index(c, forms.PostForm{}, nil)
}

func (h *PostHandler) index(c *gin.Context, form forms.PostForm, errs forms.FieldErrors) {
	user, _ := auth.CurrentUser(c)
	feed, err := h.Posts.Feed(c.Request.Context(), user.ID, h.page(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	data := gin.H{"title": "Home", "form": form}
	if errs != nil {
		data["errors"] = errs
	}
	h.html(c, http.StatusOK, "index.html", pageData(data, "/index", feed))
}

// CreatePost publishes the submitted post and redirects back to the feed so
// a browser refresh does not resubmit it.
func (h *PostHandler) CreatePost(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var form forms.PostForm
	if errs := forms.Bind(c, &form); !errs.Empty() {
		h.index(c, form, errs)
		return
	}

	post := &models.Post{Body: form.Post, UserID: user.ID}
	if err := h.Posts.Create(c.Request.Context(), post); err != nil {
		h.internalError(c, err)
		return
	}
	monitoring.PostsCreated.Inc()
	flash.Add(c, "Your post is now live!")
	c.Redirect(http.StatusFound, "/")
}

// Explore lists every post, newest first.
func (h *PostHandler) Explore(c *gin.Context) {
	posts, err := h.Posts.ListAll(c.Request.Context(), h.page(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.html(c, http.StatusOK, "explore.html", pageData(gin.H{"title": "Explore"}, "/explore", posts))
}

// Feed returns the current user's feed as JSON.
func (h *PostHandler) Feed(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	feed, err := h.Posts.Feed(c.Request.Context(), user.ID, h.page(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageJSON(feed))
}
