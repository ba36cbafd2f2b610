// Package forms binds and validates the user-facing forms. Static rules are
// struct tags checked by the validator; rules that need the database are
// methods taking a UserLookup.
package forms

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserLookup answers the uniqueness questions the forms ask.
type UserLookup interface {
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

const (
	usernameTakenMsg = "Please use a different username."
	emailTakenMsg    = "Please use a different email address."
)

// Bind decodes the request into form (form-encoded or JSON) and runs the
// tag validators. The returned FieldErrors is empty when the form is valid.
func Bind(c *gin.Context, form any) FieldErrors {
	if err := c.ShouldBind(form); err != nil {
		return fromBindError(err)
	}
	return FieldErrors{}
}

type LoginForm struct {
	Username   string `form:"username" json:"username" binding:"notblank"`
	Password   string `form:"password" json:"password" binding:"notblank"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

type RegistrationForm struct {
	Username  string `form:"username" json:"username" binding:"notblank,max=64"`
	Email     string `form:"email" json:"email" binding:"notblank,email,max=120"`
	Password  string `form:"password" json:"password" binding:"notblank"`
	Password2 string `form:"password2" json:"password2" binding:"notblank,eqfield=Password"`
}

// Normalize trims surrounding whitespace from the identity fields.
func (f *RegistrationForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

// ValidateUnique adds an error for a username or email that is already
// registered. Fields that already failed validation are not checked.
func (f *RegistrationForm) ValidateUnique(ctx context.Context, users UserLookup, errs FieldErrors) error {
	if !errs.Has("username") {
		taken, err := users.UsernameTaken(ctx, f.Username)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("username", usernameTakenMsg)
		}
	}
	if !errs.Has("email") {
		taken, err := users.EmailTaken(ctx, f.Email)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("email", emailTakenMsg)
		}
	}
	return nil
}

type EditProfileForm struct {
	Username string `form:"username" json:"username" binding:"notblank,max=64"`
	AboutMe  string `form:"about_me" json:"about_me" binding:"max=140"`
}

func (f *EditProfileForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.AboutMe = strings.TrimSpace(f.AboutMe)
}

// ValidateUnique rejects a new username that belongs to someone else.
// Keeping the original username is always allowed.
func (f *EditProfileForm) ValidateUnique(ctx context.Context, users UserLookup, original string, errs FieldErrors) error {
	if errs.Has("username") || f.Username == original {
		return nil
	}
	taken, err := users.UsernameTaken(ctx, f.Username)
	if err != nil {
		return err
	}
	if taken {
		errs.Add("username", usernameTakenMsg)
	}
	return nil
}

type PostForm struct {
	Post string `form:"post" json:"post" binding:"notblank,min=1,max=140"`
}
