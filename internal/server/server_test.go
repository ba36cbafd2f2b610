package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/microblog/internal/config"
	"github.com/emilythestrangee/microblog/internal/database"
	"github.com/emilythestrangee/microblog/internal/database/dbtest"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, database.Service) {
	t.Helper()
	db := dbtest.New(t)
	cfg := &config.Config{
		GinMode:      gin.TestMode,
		SecretKey:    "test-secret",
		SessionTTL:   time.Hour,
		RememberTTL:  24 * time.Hour,
		PostsPerPage: 3,
		CORSOrigins:  []string{"*"},
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := New(cfg, db, log)
	require.NoError(t, err)
	return s.RegisterRoutes(), db
}

// client keeps cookies between requests like a browser would.
type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
	origin  string
}

func newClient(t *testing.T, h http.Handler) *client {
	return &client{t: t, h: h, cookies: map[string]*http.Cookie{}, origin: "http://example.com"}
}

func (c *client) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method != http.MethodGet && c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil)
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return c.do(http.MethodPost, target, form)
}

func (c *client) register(username string) {
	c.t.Helper()
	w := c.post("/register", url.Values{
		"username":  {username},
		"email":     {username + "@example.com"},
		"password":  {"secret-" + username},
		"password2": {"secret-" + username},
	})
	require.Equal(c.t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(c.t, "/login", w.Header().Get("Location"))
}

func (c *client) login(username string) {
	c.t.Helper()
	w := c.post("/login", url.Values{"username": {username}, "password": {"secret-" + username}})
	require.Equal(c.t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(c.t, "/", w.Header().Get("Location"))
}

func signedIn(t *testing.T, h http.Handler, username string) *client {
	c := newClient(t, h)
	c.register(username)
	c.login(username)
	return c
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	w := newClient(t, r).get("/health")

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "up", body["status"])
}

func TestMetrics(t *testing.T) {
	r, _ := newTestServer(t)
	c := newClient(t, r)
	c.get("/login")

	w := c.get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	r, _ := newTestServer(t)
	c := newClient(t, r)

	for _, path := range []string{"/", "/index", "/explore", "/user/susan", "/edit_profile"} {
		w := c.get(path)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login?next="+url.QueryEscape(path), w.Header().Get("Location"), path)
	}

	w := c.get("/login")
	assert.Contains(t, w.Body.String(), "Please log in to access this page.")
}

func TestRegisterAndLogin(t *testing.T) {
	r, _ := newTestServer(t)
	c := newClient(t, r)

	c.register("susan")
	w := c.get("/login")
	assert.Contains(t, w.Body.String(), "Congratulations, you are now a registered user!")

	c.login("susan")
	w = c.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi, susan!")

	t.Run("logged in users skip the auth pages", func(t *testing.T) {
		for _, path := range []string{"/login", "/register"} {
			w := c.get(path)
			assert.Equal(t, http.StatusFound, w.Code, path)
			assert.Equal(t, "/", w.Header().Get("Location"), path)
		}
	})

	t.Run("logout clears the session", func(t *testing.T) {
		w := c.get("/logout")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, http.StatusFound, c.get("/index").Code)
	})
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r, db := newTestServer(t)
	newClient(t, r).register("susan")

	tests := []struct {
		name     string
		username string
		email    string
		want     string
	}{
		{name: "username", username: "susan", email: "other@example.com", want: "Please use a different username."},
		{name: "email", username: "other", email: "susan@example.com", want: "Please use a different email address."},
		{name: "bad email", username: "other", email: "not-an-email", want: "Invalid email address."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newClient(t, r).post("/register", url.Values{
				"username":  {tt.username},
				"email":     {tt.email},
				"password":  {"pw"},
				"password2": {"pw"},
			})
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	var n int64
	require.NoError(t, db.GetDB().Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRegisterPasswordsMustMatch(t *testing.T) {
	r, _ := newTestServer(t)
	w := newClient(t, r).post("/register", url.Values{
		"username":  {"susan"},
		"email":     {"susan@example.com"},
		"password":  {"one"},
		"password2": {"two"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Field must be equal to password.")
}

func TestLogin(t *testing.T) {
	r, _ := newTestServer(t)
	newClient(t, r).register("susan")

	t.Run("wrong password", func(t *testing.T) {
		c := newClient(t, r)
		w := c.post("/login", url.Values{"username": {"susan"}, "password": {"nope"}})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assert.Contains(t, c.get("/login").Body.String(), "Invalid username or password")
	})

	t.Run("unknown user", func(t *testing.T) {
		w := newClient(t, r).post("/login", url.Values{"username": {"ghost"}, "password": {"nope"}})
		assert.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := newClient(t, r).post("/login", url.Values{})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "This field is required.")
	})

	t.Run("follows a local next", func(t *testing.T) {
		w := newClient(t, r).post("/login?next=%2Fexplore", url.Values{"username": {"susan"}, "password": {"secret-susan"}})
		assert.Equal(t, "/explore", w.Header().Get("Location"))
	})

	t.Run("ignores an absolute next", func(t *testing.T) {
		w := newClient(t, r).post("/login?next=http%3A%2F%2Fevil.example%2F", url.Values{"username": {"susan"}, "password": {"secret-susan"}})
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("remember me sets a persistent cookie", func(t *testing.T) {
		c := newClient(t, r)
		c.post("/login", url.Values{"username": {"susan"}, "password": {"secret-susan"}, "remember_me": {"true"}})
		require.Contains(t, c.cookies, "session")
		assert.Equal(t, int((24 * time.Hour).Seconds()), c.cookies["session"].MaxAge)
	})
}

func TestCreatePost(t *testing.T) {
	r, _ := newTestServer(t)
	c := signedIn(t, r, "susan")

	w := c.post("/index", url.Values{"post": {"my first post"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	body := c.get("/").Body.String()
	assert.Contains(t, body, "Your post is now live!")
	assert.Contains(t, body, "my first post")

	t.Run("blank post is rejected", func(t *testing.T) {
		w := c.post("/", url.Values{"post": {"   "}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "This field is required.")
	})

	t.Run("long post is rejected", func(t *testing.T) {
		w := c.post("/", url.Values{"post": {strings.Repeat("x", models.MaxPostLength+1)}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Field cannot be longer than 140 characters.")
	})
}

func TestFollowFlow(t *testing.T) {
	r, db := newTestServer(t)
	john := signedIn(t, r, "john")
	john.post("/index", url.Values{"post": {"post from john"}})
	susan := signedIn(t, r, "susan")

	assert.NotContains(t, susan.get("/").Body.String(), "post from john")

	w := susan.post("/follow/john", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/user/john", w.Header().Get("Location"))

	profile := susan.get("/user/john").Body.String()
	assert.Contains(t, profile, "You are following john!")
	assert.Contains(t, profile, "1 followers, 0 following.")
	assert.Contains(t, profile, `action="/unfollow/john"`)
	assert.Contains(t, susan.get("/").Body.String(), "post from john")

	susan.post("/follow/john", nil)
	var edges int64
	require.NoError(t, db.GetDB().Model(&models.Follow{}).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	susan.post("/unfollow/john", nil)
	assert.Contains(t, susan.get("/user/john").Body.String(), "You are not following john.")
	assert.NotContains(t, susan.get("/").Body.String(), "post from john")

	susan.post("/unfollow/john", nil)
	require.NoError(t, db.GetDB().Model(&models.Follow{}).Count(&edges).Error)
	assert.Equal(t, int64(0), edges)

	t.Run("unknown user", func(t *testing.T) {
		w := susan.post("/follow/nobody", nil)
		assert.Equal(t, "/", w.Header().Get("Location"))
		assert.Contains(t, susan.get("/").Body.String(), "User nobody not found.")
	})

	t.Run("self", func(t *testing.T) {
		susan.post("/follow/susan", nil)
		assert.Contains(t, susan.get("/user/susan").Body.String(), "You cannot follow yourself!")
		susan.post("/unfollow/susan", nil)
		assert.Contains(t, susan.get("/user/susan").Body.String(), "You cannot unfollow yourself!")
	})

	t.Run("follow only accepts POST", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, susan.get("/follow/john").Code)
	})
}

func TestEditProfile(t *testing.T) {
	r, _ := newTestServer(t)
	newClient(t, r).register("john")
	c := signedIn(t, r, "susan")

	w := c.get("/edit_profile")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="susan"`)

	t.Run("keeping the username is allowed", func(t *testing.T) {
		w := c.post("/edit_profile", url.Values{"username": {"susan"}, "about_me": {"hello there"}})
		assert.Equal(t, http.StatusFound, w.Code)
		body := c.get("/edit_profile").Body.String()
		assert.Contains(t, body, "Your changes have been saved.")
		assert.Contains(t, body, "hello there")
	})

	t.Run("taken username", func(t *testing.T) {
		w := c.post("/edit_profile", url.Values{"username": {"john"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Please use a different username.")
	})

	t.Run("rename", func(t *testing.T) {
		c.post("/edit_profile", url.Values{"username": {"susan2"}})
		assert.Equal(t, http.StatusOK, c.get("/user/susan2").Code)
		assert.Equal(t, http.StatusNotFound, c.get("/user/susan").Code)
	})
}

func TestPagination(t *testing.T) {
	r, _ := newTestServer(t)
	c := signedIn(t, r, "susan")
	for _, body := range []string{"one", "two", "three", "four"} {
		c.post("/", url.Values{"post": {body}})
	}

	first := c.get("/explore").Body.String()
	assert.Contains(t, first, `href="/explore?page=2"`)
	assert.NotContains(t, first, "Newer posts")

	second := c.get("/explore?page=2").Body.String()
	assert.Contains(t, second, `href="/explore?page=1"`)
	assert.NotContains(t, second, "Older posts")
}

func TestNotFound(t *testing.T) {
	r, _ := newTestServer(t)
	c := signedIn(t, r, "susan")

	w := c.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "File Not Found")

	w = c.get("/user/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "File Not Found")

	w = c.get("/api/users/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestPanicRollsBackAndRendersErrorPage(t *testing.T) {
	r, db := newTestServer(t)
	r.POST("/boom", func(c *gin.Context) {
		user := &models.User{Username: "ghost", Email: "ghost@example.com"}
		require.NoError(t, database.Conn(c.Request.Context(), db.GetDB()).Create(user).Error)
		panic("boom")
	})

	w := newClient(t, r).post("/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "An unexpected error has occurred")

	var n int64
	require.NoError(t, db.GetDB().Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)

	metrics := newClient(t, r).get("/metrics").Body.String()
	assert.Contains(t, metrics, `method="POST",route="/boom",status="500"`)
}

func TestFailedCommitRendersErrorPage(t *testing.T) {
	r, db := newTestServer(t)
	r.POST("/lost", func(c *gin.Context) {
		tx, ok := database.TxFromContext(c.Request.Context())
		require.True(t, ok)
		require.NoError(t, tx.Create(&models.User{Username: "ghost", Email: "ghost@example.com"}).Error)
		require.NoError(t, tx.Rollback().Error)
		flash.Add(c, "Congratulations, you are now a registered user!")
		c.Redirect(http.StatusFound, "/login")
	})

	w := newClient(t, r).post("/lost", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	body := w.Body.String()
	assert.Contains(t, body, "An unexpected error has occurred")
	assert.NotContains(t, body, "Congratulations")

	var n int64
	require.NoError(t, db.GetDB().Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCrossSitePostsRejected(t *testing.T) {
	r, db := newTestServer(t)
	newClient(t, r).register("john")
	c := signedIn(t, r, "susan")

	c.origin = "http://evil.example"
	assert.Equal(t, http.StatusForbidden, c.post("/follow/john", nil).Code)

	c.origin = ""
	assert.Equal(t, http.StatusForbidden, c.post("/follow/john", nil).Code)

	var edges int64
	require.NoError(t, db.GetDB().Model(&models.Follow{}).Count(&edges).Error)
	assert.Zero(t, edges)

	c.origin = "http://example.com"
	assert.Equal(t, http.StatusFound, c.post("/follow/john", nil).Code)
}

func postJSON(h http.Handler, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, h http.Handler, target, token string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestAPI(t *testing.T) {
	r, _ := newTestServer(t)

	w := postJSON(r, "/api/users", `{"username":"susan","email":"susan@example.com","password":"pw","password2":"pw"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/users/susan", w.Header().Get("Location"))

	w = postJSON(r, "/api/users", `{"username":"susan","email":"x@example.com","password":"pw","password2":"pw"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please use a different username.")

	postJSON(r, "/api/users", `{"username":"john","email":"john@example.com","password":"pw","password2":"pw"}`, "")

	w = postJSON(r, "/api/tokens", `{"username":"susan","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/api/tokens", `{"username":"susan","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var tok struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)
	assert.Equal(t, 3600, tok.ExpiresIn)

	t.Run("feed requires a token", func(t *testing.T) {
		var body map[string]string
		assert.Equal(t, http.StatusUnauthorized, getJSON(t, r, "/api/feed", "", &body))
		assert.Equal(t, "Authentication required", body["error"])
	})

	t.Run("feed", func(t *testing.T) {
		c := signedIn(t, r, "mary")
		c.post("/", url.Values{"post": {"mary was here"}})
		c.post("/follow/susan", nil)

		var feed struct {
			Items []struct {
				Body   string `json:"body"`
				Author struct {
					Username string `json:"username"`
				} `json:"author"`
			} `json:"items"`
			HasNext bool `json:"has_next"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, r, "/api/feed", tok.Token, &feed))
		assert.Empty(t, feed.Items)

		w := postJSON(r, "/api/tokens", `{"username":"mary","password":"secret-mary"}`, "")
		require.Equal(t, http.StatusOK, w.Code)
		var maryTok struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &maryTok))
		require.Equal(t, http.StatusOK, getJSON(t, r, "/api/feed", maryTok.Token, &feed))
		require.Len(t, feed.Items, 1)
		assert.Equal(t, "mary was here", feed.Items[0].Body)
		assert.Equal(t, "mary", feed.Items[0].Author.Username)
		assert.False(t, feed.HasNext)

		var profile map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, r, "/api/users/susan", "", &profile))
		assert.Equal(t, "susan", profile["username"])
		assert.EqualValues(t, 1, profile["follower_count"])
		assert.NotContains(t, profile, "email")

		var followers struct {
			Items []models.UserSummary `json:"items"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, r, "/api/users/susan/followers", "", &followers))
		require.Len(t, followers.Items, 1)
		assert.Equal(t, "mary", followers.Items[0].Username)

		var posts struct {
			Items []struct {
				Body string `json:"body"`
			} `json:"items"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, r, "/api/users/mary/posts", "", &posts))
		require.Len(t, posts.Items, 1)
		assert.Equal(t, "mary was here", posts.Items[0].Body)
	})
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/feed", nil)
	req.Header.Set("Origin", "https://client.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHugePageNumber(t *testing.T) {
	r, _ := newTestServer(t)
	c := signedIn(t, r, "susan")
	c.post("/", url.Values{"post": {"only post"}})

	w := c.get("/explore?page=9223372036854775807")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "only post")
}
