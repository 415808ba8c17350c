package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/storage"
	"github.com/erazemk/najdeno/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database := db.NewTestDB(t)
	local, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	router, err := NewRouter(database, testJWTSecret, posting.New(database, local), Options{Uploads: local.Handler()})
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	_, err = store.CreateUser(context.Background(), database, "admin@example.com", "Admin", string(hash), model.RoleAdmin)
	require.NoError(t, err)

	return server
}

// newClient returns a client with its own cookie jar that does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func post(t *testing.T, c *http.Client, url string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(url, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func signupClient(t *testing.T, server *httptest.Server, email string) *http.Client {
	t.Helper()
	c := newClient(t)
	resp, _ := post(t, c, server.URL+"/signup", url.Values{
		"email":            {email},
		"full_name":        {"Test User"},
		"password":         {"password123"},
		"password_confirm": {"password123"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
	return c
}

func itemForm(title, itemType string) url.Values {
	return url.Values{
		"title":       {title},
		"description": {"Description of " + title},
		"location":    {"Downtown Seattle"},
		"date":        {"2024-05-01"},
		"category_id": {"3"},
		"type":        {itemType},
	}
}

// postItem submits the post form and returns the new item's page path.
func postItem(t *testing.T, c *http.Client, server *httptest.Server, form url.Values) string {
	t.Helper()
	resp, body := post(t, c, server.URL+"/post", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, body)
	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/items/"), loc)
	return strings.TrimSuffix(loc, "?done=posted")
}

func TestLoadTemplates(t *testing.T) {
	_, err := LoadTemplates()
	require.NoError(t, err)
}

func TestPublicPages(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t)

	for _, path := range []string{"/", "/lost", "/found", "/login", "/signup", "/static/style.css"} {
		resp, _ := get(t, c, server.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, _ := get(t, c, server.URL+"/items/999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRequiredRedirects(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t)

	resp, _ := get(t, c, server.URL+"/post")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fpost", resp.Header.Get("Location"))

	resp, _ = get(t, c, server.URL+"/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = post(t, c, server.URL+"/post", itemForm("Blue Wallet", model.ItemTypeLost))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLogin(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t)

	resp, body := post(t, c, server.URL+"/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid email or password.")

	resp, _ = post(t, c, server.URL+"/login", url.Values{
		"email":    {"admin@example.com"},
		"password": {"password"},
		"next":     {"/post"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/post", resp.Header.Get("Location"))

	resp, _ = get(t, c, server.URL+"/post")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, c, server.URL+"/users")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignupValidation(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t)

	resp, body := post(t, c, server.URL+"/signup", url.Values{
		"email":            {"ana@example.com"},
		"password":         {"password123"},
		"password_confirm": {"password124"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Passwords do not match.")

	signupClient(t, server, "ana@example.com")

	resp, _ = post(t, c, server.URL+"/signup", url.Values{
		"email":            {"ana@example.com"},
		"password":         {"password123"},
		"password_confirm": {"password123"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPostAndBrowse(t *testing.T) {
	server := setupTestServer(t)
	c := signupClient(t, server, "ana@example.com")

	itemPath := postItem(t, c, server, itemForm("Blue Wallet", model.ItemTypeLost))

	keys := itemForm("Car Keys", model.ItemTypeLost)
	keys.Set("category_id", "4")
	keys.Set("location", "University Campus")
	postItem(t, c, server, keys)

	postItem(t, c, server, itemForm("Black Umbrella", model.ItemTypeFound))

	anon := newClient(t)

	_, body := get(t, anon, server.URL+"/lost")
	assert.Contains(t, body, "Blue Wallet")
	assert.Contains(t, body, "Car Keys")
	assert.NotContains(t, body, "Black Umbrella")

	_, body = get(t, anon, server.URL+"/lost?q=WALLET")
	assert.Contains(t, body, "Blue Wallet")
	assert.NotContains(t, body, "Car Keys")

	_, body = get(t, anon, server.URL+"/lost?category=Keys")
	assert.NotContains(t, body, "Blue Wallet")
	assert.Contains(t, body, "Car Keys")

	_, body = get(t, anon, server.URL+"/lost?category=All+Categories&location=campus")
	assert.NotContains(t, body, "Blue Wallet")
	assert.Contains(t, body, "Car Keys")

	_, body = get(t, anon, server.URL+"/?q=umbrella")
	assert.Contains(t, body, "Black Umbrella")
	assert.NotContains(t, body, "Blue Wallet")

	resp, body := get(t, anon, server.URL+itemPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "ana@example.com")
	assert.Contains(t, body, "Personal Items")
	assert.NotContains(t, body, "/delete")

	_, body = get(t, c, server.URL+itemPath)
	assert.Contains(t, body, "/delete")

	_, body = get(t, c, server.URL+"/dashboard?tab=lost")
	assert.Contains(t, body, "Lost Items (2)")
	assert.Contains(t, body, "Car Keys")
}

func TestPostValidation(t *testing.T) {
	server := setupTestServer(t)
	c := signupClient(t, server, "ana@example.com")

	form := itemForm("Blue Wallet", model.ItemTypeLost)
	form.Set("location", "  ")
	resp, body := post(t, c, server.URL+"/post", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please fill in all required fields")
	// The form keeps what was entered.
	assert.Contains(t, body, `value="Blue Wallet"`)

	_, body = get(t, c, server.URL+"/dashboard")
	assert.Contains(t, body, "You have no active listings.")
}

func TestStatusAndDelete(t *testing.T) {
	server := setupTestServer(t)
	owner := signupClient(t, server, "ana@example.com")
	other := signupClient(t, server, "bob@example.com")

	itemPath := postItem(t, owner, server, itemForm("Blue Wallet", model.ItemTypeLost))

	resp, _ := post(t, other, server.URL+itemPath+"/status", url.Values{"status": {model.ItemStatusResolved}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = post(t, other, server.URL+itemPath+"/delete", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = post(t, owner, server.URL+itemPath+"/status", url.Values{
		"status": {model.ItemStatusResolved},
		"return": {"/dashboard?tab=resolved"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard?done=status&tab=resolved", resp.Header.Get("Location"))

	// Resolved items leave the public listing.
	_, body := get(t, newClient(t), server.URL+"/lost")
	assert.NotContains(t, body, "Blue Wallet")

	resp, _ = post(t, owner, server.URL+itemPath+"/status", url.Values{"status": {model.ItemStatusActive}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = post(t, owner, server.URL+itemPath+"/delete", url.Values{"return": {"https://evil.example.com/"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?done=deleted", resp.Header.Get("Location"))

	resp, _ = get(t, owner, server.URL+itemPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfilePhoneBecomesContactInfo(t *testing.T) {
	server := setupTestServer(t)
	c := signupClient(t, server, "ana@example.com")

	resp, _ := post(t, c, server.URL+"/settings/profile", url.Values{"full_name": {"Ana Novak"}, "phone": {"041 123 456"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := get(t, c, server.URL+"/settings")
	assert.Contains(t, body, `value="041 123 456"`)

	itemPath := postItem(t, c, server, itemForm("Blue Wallet", model.ItemTypeLost))
	_, body = get(t, newClient(t), server.URL+itemPath)
	assert.Contains(t, body, "041 123 456")
	assert.Contains(t, body, "Ana Novak")
}

func TestLogoutRevokesSession(t *testing.T) {
	server := setupTestServer(t)
	c := signupClient(t, server, "ana@example.com")

	u, _ := url.Parse(server.URL)
	cookies := c.Jar.Cookies(u)
	require.NotEmpty(t, cookies)
	stolen := cookies[0]

	resp, _ := post(t, c, server.URL+"/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// Replaying the old token no longer works.
	req, _ := http.NewRequest("GET", server.URL+"/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: stolen.Name, Value: stolen.Value})
	resp, err := newClient(t).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestDeletedUserSessionRejected(t *testing.T) {
	server := setupTestServer(t)
	spammer := signupClient(t, server, "spam@example.com")
	itemPath := postItem(t, spammer, server, itemForm("Spam Wallet", model.ItemTypeLost))

	admin := newClient(t)
	resp, _ := post(t, admin, server.URL+"/login", url.Values{"email": {"admin@example.com"}, "password": {"password"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = post(t, admin, server.URL+"/users/2/delete", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := get(t, newClient(t), server.URL+"/lost")
	require.NotContains(t, body, "Spam Wallet")

	// The deleted user's cookie no longer opens a session.
	resp, _ = post(t, spammer, server.URL+itemPath+"/status", url.Values{"status": {model.ItemStatusActive}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = get(t, spammer, server.URL+"/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = get(t, newClient(t), server.URL+"/lost")
	assert.NotContains(t, body, "Spam Wallet")
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/post", safeRedirect("/post"))
	assert.Equal(t, "/", safeRedirect(""))
	assert.Equal(t, "/", safeRedirect("//evil.example.com"))
	assert.Equal(t, "/", safeRedirect("https://evil.example.com"))
	assert.Equal(t, "/", safeRedirect("/\\evil.example.com"))
}

func TestFormatDay(t *testing.T) {
	assert.Equal(t, "May 1, 2024", formatDay("2024-05-01"))
	assert.Equal(t, "yesterday", formatDay("yesterday"))
}
