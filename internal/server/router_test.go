package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/arimendelow/spoonjoy/backend/internal/account"
	"github.com/arimendelow/spoonjoy/backend/internal/auth"
	"github.com/arimendelow/spoonjoy/backend/internal/oauth"
	"github.com/arimendelow/spoonjoy/backend/internal/recipes"
	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

type stubPhotoStore struct {
	url   string
	err   error
	calls int
}

func (s *stubPhotoStore) Store(context.Context, string, string, io.Reader) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

type stubOAuthFlow struct {
	providers   map[string]bool
	identity    oauth.Identity
	exchangeErr error
	lastCode    string
}

func (s *stubOAuthFlow) Enabled(provider string) bool {
	return s.providers[provider]
}

func (s *stubOAuthFlow) AuthCodeURL(provider string, state string) (string, error) {
	if !s.providers[provider] {
		return "", errors.New("provider not configured")
	}
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state), nil
}

func (s *stubOAuthFlow) Exchange(_ context.Context, provider string, code string) (oauth.Identity, error) {
	s.lastCode = code
	if s.exchangeErr != nil {
		return oauth.Identity{}, s.exchangeErr
	}
	return s.identity, nil
}

type testEnv struct {
	handler http.Handler
	repo    users.Repository
	photos  *stubPhotoStore
	flow    *stubOAuthFlow
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&users.User{},
		&users.OAuthAccount{},
		&recipes.Recipe{},
		&recipes.Cookbook{},
		&recipes.CookbookRecipe{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	repo, err := users.NewGormRepository(db)
	if err != nil {
		t.Fatalf("failed to construct repository: %v", err)
	}

	photos := &stubPhotoStore{url: "https://cdn.example.com/avatars/test.png"}
	accounts, err := account.NewService(account.ServiceConfig{
		Users:        repo,
		Photos:       photos,
		IDProvider:   account.NewUUIDProvider(),
		AutoRegister: true,
	})
	if err != nil {
		t.Fatalf("failed to construct account service: %v", err)
	}

	catalog, err := recipes.NewService(recipes.ServiceConfig{
		Database:   db,
		IDProvider: recipes.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct recipes service: %v", err)
	}

	sessionManager, err := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "spoonjoy-test",
		CookieName:    "spoonjoy_session",
	})
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}

	flow := &stubOAuthFlow{
		providers: map[string]bool{users.ProviderGoogle: true, users.ProviderGitHub: true},
		identity: oauth.Identity{
			Provider:       users.ProviderGitHub,
			ProviderUserID: "gh-1",
			Email:          "octo@example.com",
			Label:          "octocook",
		},
	}

	handler, err := NewHTTPHandler(Dependencies{
		Accounts:   accounts,
		Recipes:    catalog,
		Sessions:   sessionManager,
		OAuth:      flow,
		FlowSecret: []byte("flow-test-secret"),
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return &testEnv{handler: handler, repo: repo, photos: photos, flow: flow}
}

func (env *testEnv) do(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func jsonRequest(t *testing.T, method string, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	request := httptest.NewRequest(method, target, bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	return request
}

// registerAndSignIn registers a user through the HTTP surface and returns the
// session cookie.
func (env *testEnv) registerAndSignIn(t *testing.T, email string, username string) *http.Cookie {
	t.Helper()
	recorder := env.do(t, jsonRequest(t, http.MethodPost, "/auth/register", registerPayload{
		Email:    email,
		Username: username,
		Password: "longpassword",
	}))
	if recorder.Code != http.StatusOK {
		t.Fatalf("register failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var result account.Result
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected registration to succeed, got %+v", result)
	}
	cookie := sessionCookie(recorder)
	if cookie == nil {
		t.Fatalf("expected a session cookie")
	}
	return cookie
}

func sessionCookie(recorder *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == "spoonjoy_session" && cookie.Value != "" {
			return cookie
		}
	}
	return nil
}

func decodeResult(t *testing.T, recorder *httptest.ResponseRecorder) account.Result {
	t.Helper()
	var result account.Result
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v (%s)", err, recorder.Body.String())
	}
	return result
}

type photoPart struct {
	filename    string
	contentType string
	content     []byte
}

func multipartSubmission(t *testing.T, fields map[string]string, photo *photoPart) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	if photo != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, photo.filename))
		header.Set("Content-Type", photo.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create photo part: %v", err)
		}
		if _, err := part.Write(photo.content); err != nil {
			t.Fatalf("failed to write photo content: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func (env *testEnv) submitAccountForm(t *testing.T, cookie *http.Cookie, fields map[string]string, photo *photoPart) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartSubmission(t, fields, photo)
	request := httptest.NewRequest(http.MethodPost, "/account", body)
	request.Header.Set("Content-Type", contentType)
	if cookie != nil {
		request.AddCookie(cookie)
	}
	return env.do(t, request)
}

func redirectLocation(t *testing.T, recorder *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	location := recorder.Header().Get("Location")
	if location == "" {
		t.Fatalf("expected a redirect location, body: %s", recorder.Body.String())
	}
	parsed, err := url.Parse(location)
	if err != nil {
		t.Fatalf("failed to parse location %q: %v", location, err)
	}
	return parsed
}

func flowCookies(recorder *httptest.ResponseRecorder) []*http.Cookie {
	var cookies []*http.Cookie
	for _, cookie := range recorder.Result().Cookies() {
		if strings.HasPrefix(cookie.Name, "spoonjoy_oauth_flow") {
			cookies = append(cookies, cookie)
		}
	}
	return cookies
}
