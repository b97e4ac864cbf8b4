package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/account"
	"github.com/arimendelow/spoonjoy/backend/internal/auth"
	"github.com/arimendelow/spoonjoy/backend/internal/oauth"
	"github.com/arimendelow/spoonjoy/backend/internal/recipes"
)

const (
	userIDContextKey = "spoonjoy_user_id"

	flowStateKey    = "oauth_state"
	flowProviderKey = "oauth_provider"
	flowLinkUserKey = "oauth_link_user"
	flowRedirectKey = "oauth_redirect"
)

var (
	errMissingAccountService = errors.New("account service dependency required")
	errMissingRecipesService = errors.New("recipes service dependency required")
	errMissingSessionManager = errors.New("session manager dependency required")
	errMissingOAuthManager   = errors.New("oauth manager dependency required")
	errMissingFlowSecret     = errors.New("flow secret required")
)

// SessionManager issues and validates the signed session cookie.
type SessionManager interface {
	IssueSession(ctx context.Context, userID string, userEmail string, username string) (string, int64, error)
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// OAuthFlow drives the provider authorization-code dance.
type OAuthFlow interface {
	Enabled(provider string) bool
	AuthCodeURL(provider string, state string) (string, error)
	Exchange(ctx context.Context, provider string, code string) (oauth.Identity, error)
}

type Dependencies struct {
	Accounts *account.Service
	Recipes  *recipes.Service
	Sessions SessionManager
	OAuth    OAuthFlow

	// FlowSecret signs the short-lived cookie holding OAuth flow state.
	FlowSecret []byte
	// AllowedOrigins enables credentialed CORS for the listed origins. Empty
	// means same-origin deployment and no CORS layer.
	AllowedOrigins []string
	// LoginURL is where unauthenticated browsers are sent. Defaults to /login.
	LoginURL string
	// AppURL is the post-sign-in landing target. Defaults to /.
	AppURL string
	// SecureCookies marks all cookies Secure. Enable behind TLS.
	SecureCookies bool
	Logger        *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Recipes == nil {
		return nil, errMissingRecipesService
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.OAuth == nil {
		return nil, errMissingOAuthManager
	}
	if len(deps.FlowSecret) == 0 {
		return nil, errMissingFlowSecret
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loginURL := deps.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}
	appURL := deps.AppURL
	if appURL == "" {
		appURL = "/"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	handler := &httpHandler{
		accounts:      deps.Accounts,
		recipes:       deps.Recipes,
		sessions:      deps.Sessions,
		oauth:         deps.OAuth,
		loginURL:      loginURL,
		appURL:        appURL,
		secureCookies: deps.SecureCookies,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)

	flowStore := cookie.NewStore(deps.FlowSecret)
	flowStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	oauthRoutes := router.Group("/oauth")
	oauthRoutes.Use(sessions.Sessions("spoonjoy_oauth_flow", flowStore))
	oauthRoutes.GET("/:provider/start", handler.handleOAuthStart)
	oauthRoutes.GET("/:provider/callback", handler.handleOAuthCallback)

	protected := router.Group("/")
	protected.Use(handler.requireSession)
	protected.GET("/account", handler.handleAccountProfile)
	protected.POST("/account", handler.handleAccountSubmission)
	protected.GET("/recipes", handler.handleListRecipes)
	protected.POST("/recipes", handler.handleCreateRecipe)
	protected.GET("/recipes/:id", handler.handleGetRecipe)
	protected.PUT("/recipes/:id", handler.handleUpdateRecipe)
	protected.DELETE("/recipes/:id", handler.handleDeleteRecipe)
	protected.GET("/cookbooks", handler.handleListCookbooks)
	protected.POST("/cookbooks", handler.handleCreateCookbook)
	protected.DELETE("/cookbooks/:id", handler.handleDeleteCookbook)
	protected.GET("/cookbooks/:id/recipes", handler.handleListCookbookRecipes)
	protected.POST("/cookbooks/:id/recipes/:recipeID", handler.handleAddToCookbook)
	protected.DELETE("/cookbooks/:id/recipes/:recipeID", handler.handleRemoveFromCookbook)

	return router, nil
}

type httpHandler struct {
	accounts      *account.Service
	recipes       *recipes.Service
	sessions      SessionManager
	oauth         OAuthFlow
	loginURL      string
	appURL        string
	secureCookies bool
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireSession resolves the principal from the session cookie. Browsers
// without a valid session are sent to the login surface with the original
// path preserved.
func (h *httpHandler) requireSession(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		target := h.loginURL + "?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusFound, target)
		c.Abort()
		return
	}
	c.Set(userIDContextKey, claims.UserID)
	c.Next()
}

func (h *httpHandler) setSessionCookie(c *gin.Context, token string, expiresIn int64) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, int(expiresIn), "/", "", h.secureCookies, true)
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", h.secureCookies, true)
}
