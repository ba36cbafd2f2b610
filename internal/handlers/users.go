package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/microblog/internal/auth"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/forms"
	"github.com/emilythestrangee/microblog/internal/models"
	"github.com/emilythestrangee/microblog/internal/monitoring"
	"github.com/emilythestrangee/microblog/internal/repository"
)

type UserHandler struct {
	*Deps
}

// lookup loads the user named in the route. It answers 404 itself and
// returns nil when there is nothing more to do.
func (h *UserHandler) lookup(c *gin.Context) *models.User {
	user, err := h.Users.GetByUsername(c.Request.Context(), c.Param("username"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.notFound(c)
		return nil
	case err != nil:
		h.internalError(c, err)
		return nil
	}
	return user
}

func (h *UserHandler) counts(c *gin.Context, userID uint) (followers, following int64, err error) {
	ctx := c.Request.Context()
	if followers, err = h.Follows.FollowersCount(ctx, userID); err != nil {
		return 0, 0, err
	}
	if following, err = h.Follows.FollowingCount(ctx, userID); err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

// Profile shows a user's posts and follow state.
func (h *UserHandler) Profile(c *gin.Context) {
	user := h.lookup(c)
	if user == nil {
		return
	}
	current, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	posts, err := h.Posts.ListByAuthor(ctx, user.ID, h.page(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	followers, following, err := h.counts(c, user.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	isFollowing, err := h.Follows.IsFollowing(ctx, current.ID, user.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.html(c, http.StatusOK, "user.html", pageData(gin.H{
		"title":           user.Username,
		"user":            user,
		"is_self":         user.ID == current.ID,
		"is_following":    isFollowing,
		"followers_count": followers,
		"following_count": following,
	}, userURL(user.Username), posts))
}

func (h *UserHandler) EditProfilePage(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	form := forms.EditProfileForm{Username: user.Username, AboutMe: user.AboutMe}
	h.html(c, http.StatusOK, "edit_profile.html", gin.H{"title": "Edit Profile", "form": form})
}

// EditProfile saves a new username and about-me text.
func (h *UserHandler) EditProfile(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	var form forms.EditProfileForm
	errs := forms.Bind(c, &form)
	form.Normalize()
	if err := form.ValidateUnique(ctx, h.Users, user.Username, errs); err != nil {
		h.internalError(c, err)
		return
	}

	if errs.Empty() {
		updated := *user
		updated.Username = form.Username
		updated.AboutMe = form.AboutMe
		err := h.Users.Update(ctx, &updated)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			errs.Add("username", "Please use a different username.")
		case err != nil:
			h.internalError(c, err)
			return
		default:
			*user = updated
			flash.Add(c, "Your changes have been saved.")
			c.Redirect(http.StatusFound, "/edit_profile")
			return
		}
	}

	h.html(c, http.StatusOK, "edit_profile.html", gin.H{"title": "Edit Profile", "form": form, "errors": errs})
}

// Follow adds an edge from the current user to the named user.
func (h *UserHandler) Follow(c *gin.Context) {
	h.changeFollow(c, "follow")
}

// Unfollow removes the edge from the current user to the named user.
func (h *UserHandler) Unfollow(c *gin.Context) {
	h.changeFollow(c, "unfollow")
}

func (h *UserHandler) changeFollow(c *gin.Context, action string) {
	current, _ := auth.CurrentUser(c)
	username := c.Param("username")
	ctx := c.Request.Context()

	target, err := h.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		flash.Add(c, fmt.Sprintf("User %s not found.", username))
		c.Redirect(http.StatusFound, "/")
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	var message string
	if action == "follow" {
		err = h.Follows.Follow(ctx, current.ID, target.ID)
		message = fmt.Sprintf("You are following %s!", username)
	} else {
		err = h.Follows.Unfollow(ctx, current.ID, target.ID)
		message = fmt.Sprintf("You are not following %s.", username)
	}
	switch {
	case errors.Is(err, repository.ErrSelfFollow):
		flash.Add(c, fmt.Sprintf("You cannot %s yourself!", action))
	case err != nil:
		h.internalError(c, err)
		return
	default:
		monitoring.FollowChanges.WithLabelValues(action).Inc()
		flash.Add(c, message)
	}
	c.Redirect(http.StatusFound, userURL(username))
}

func userJSON(user *models.User, followers, following int64) gin.H {
	return gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"about_me":        user.AboutMe,
		"last_seen":       user.LastSeen,
		"avatar":          user.Avatar(128),
		"follower_count":  followers,
		"following_count": following,
	}
}

// GetUser returns a user's public profile.
func (h *UserHandler) GetUser(c *gin.Context) {
	user := h.lookup(c)
	if user == nil {
		return
	}
	followers, following, err := h.counts(c, user.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, userJSON(user, followers, following))
}

// GetUserPosts returns one page of a user's posts.
func (h *UserHandler) GetUserPosts(c *gin.Context) {
	user := h.lookup(c)
	if user == nil {
		return
	}
	posts, err := h.Posts.ListByAuthor(c.Request.Context(), user.ID, h.page(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageJSON(posts))
}

// GetFollowers lists the users following the named user.
func (h *UserHandler) GetFollowers(c *gin.Context) {
	h.listUsers(c, h.Follows.Followers)
}

// GetFollowing lists the users the named user follows.
func (h *UserHandler) GetFollowing(c *gin.Context) {
	h.listUsers(c, h.Follows.Following)
}

func (h *UserHandler) listUsers(c *gin.Context, list func(context.Context, uint) ([]models.User, error)) {
	user := h.lookup(c)
	if user == nil {
		return
	}
	users, err := list(c.Request.Context(), user.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	items := make([]models.UserSummary, 0, len(users))
	for i := range users {
		items = append(items, users[i].Summary())
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
