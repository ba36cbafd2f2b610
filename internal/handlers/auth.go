package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/microblog/internal/auth"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/forms"
	"github.com/emilythestrangee/microblog/internal/models"
	"github.com/emilythestrangee/microblog/internal/monitoring"
	"github.com/emilythestrangee/microblog/internal/repository"
)

const invalidLoginMsg = "Invalid username or password"

type AuthHandler struct {
	*Deps
}

func loggedIn(c *gin.Context) bool {
	_, ok := auth.CurrentUser(c)
	return ok
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	if loggedIn(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.html(c, http.StatusOK, "login.html", gin.H{"title": "Sign In", "form": forms.LoginForm{}})
}

// Login checks the submitted credentials and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	if loggedIn(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var form forms.LoginForm
	if errs := forms.Bind(c, &form); !errs.Empty() {
		monitoring.LoginFailure.WithLabelValues("invalid_form").Inc()
		h.html(c, http.StatusOK, "login.html", gin.H{"title": "Sign In", "form": form, "errors": errs})
		return
	}

	user, reason, err := h.authenticate(c, form.Username, form.Password)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if user == nil {
		monitoring.LoginFailure.WithLabelValues(reason).Inc()
		flash.Add(c, invalidLoginMsg)
		c.Redirect(http.StatusFound, c.Request.URL.RequestURI())
		return
	}

	if err := h.Sessions.Login(c, user, form.RememberMe); err != nil {
		h.internalError(c, err)
		return
	}
	monitoring.LoginSuccess.Inc()
	c.Redirect(http.StatusFound, auth.SafeNext(c.Query("next")))
}

// authenticate returns the user owning username and password. A nil user
// with a nil error is a failed attempt, described by reason.
func (h *AuthHandler) authenticate(c *gin.Context, username, password string) (*models.User, string, error) {
	user, err := h.Users.GetByUsername(c.Request.Context(), username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "unknown_user", nil
	}
	if err != nil {
		return nil, "", err
	}
	if !user.CheckPassword(password) {
		return nil, "bad_password", nil
	}
	return user, "", nil
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.Sessions.Logout(c)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) RegisterPage(c *gin.Context) {
	if loggedIn(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.html(c, http.StatusOK, "register.html", gin.H{"title": "Register", "form": forms.RegistrationForm{}})
}

// Register creates an account from the registration form.
func (h *AuthHandler) Register(c *gin.Context) {
	if loggedIn(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var form forms.RegistrationForm
	user, errs, err := h.register(c, &form)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if !errs.Empty() {
		form.Password, form.Password2 = "", ""
		h.html(c, http.StatusOK, "register.html", gin.H{"title": "Register", "form": form, "errors": errs})
		return
	}

	h.Log.WithField("user_id", user.ID).Info("user registered")
	flash.Add(c, "Congratulations, you are now a registered user!")
	c.Redirect(http.StatusFound, "/login")
}

// register binds and validates form and stores the new user. Validation
// failures come back as FieldErrors; err is reserved for storage faults.
func (h *AuthHandler) register(c *gin.Context, form *forms.RegistrationForm) (*models.User, forms.FieldErrors, error) {
	ctx := c.Request.Context()

	errs := forms.Bind(c, form)
	form.Normalize()
	if err := form.ValidateUnique(ctx, h.Users, errs); err != nil {
		return nil, nil, err
	}
	if !errs.Empty() {
		return nil, errs, nil
	}

	user := &models.User{Username: form.Username, Email: form.Email}
	if err := user.SetPassword(form.Password); err != nil {
		return nil, nil, err
	}
	if err := h.Users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, repository.ErrDuplicate) {
			errs.Add(forms.FormField, "Please use a different username or email address.")
			return nil, errs, nil
		}
		return nil, nil, err
	}
	monitoring.RegisterSuccess.Inc()
	return user, errs, nil
}

// CreateToken exchanges credentials for a bearer token.
func (h *AuthHandler) CreateToken(c *gin.Context) {
	var form forms.LoginForm
	if errs := forms.Bind(c, &form); !errs.Empty() {
		monitoring.LoginFailure.WithLabelValues("invalid_form").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	user, reason, err := h.authenticate(c, form.Username, form.Password)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if user == nil {
		monitoring.LoginFailure.WithLabelValues(reason).Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": invalidLoginMsg})
		return
	}

	token, ttl, err := h.Sessions.Token(user)
	if err != nil {
		h.internalError(c, err)
		return
	}
	monitoring.LoginSuccess.Inc()
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
	})
}

// CreateUser registers an account through the API.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var form forms.RegistrationForm
	user, errs, err := h.register(c, &form)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if !errs.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}
	c.Header("Location", "/api/users/"+user.Username)
	c.JSON(http.StatusCreated, userJSON(user, 0, 0))
}
