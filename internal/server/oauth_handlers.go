package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/account"
)

// handleOAuthStart begins the authorization-code dance. With link=1 the flow
// attaches the provider to the signed-in user instead of signing in.
func (h *httpHandler) handleOAuthStart(c *gin.Context) {
	provider := c.Param("provider")
	if !h.oauth.Enabled(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_provider"})
		return
	}

	state, err := generateFlowState(32)
	if err != nil {
		h.logger.Error("failed to generate oauth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "flow_state_failed"})
		return
	}

	session := sessions.Default(c)
	session.Set(flowStateKey, state)
	session.Set(flowProviderKey, provider)

	if c.Query("link") == "1" {
		claims, err := h.sessions.ValidateRequest(c.Request)
		if err != nil {
			target := h.loginURL + "?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			return
		}
		session.Set(flowLinkUserKey, claims.UserID)
	}
	if redirect := c.Query("redirect"); redirect != "" {
		session.Set(flowRedirectKey, redirect)
	}
	if err := session.Save(); err != nil {
		h.logger.Error("failed to save oauth flow state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "flow_state_failed"})
		return
	}

	authURL, err := h.oauth.AuthCodeURL(provider, state)
	if err != nil {
		h.logger.Error("failed to build authorization url", zap.Error(err), zap.String("provider", provider))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "flow_start_failed"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// handleOAuthCallback finishes the dance: verify state, exchange the code,
// then either link the provider to the signed-in user or sign the identity in.
func (h *httpHandler) handleOAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	if !h.oauth.Enabled(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_provider"})
		return
	}

	session := sessions.Default(c)
	savedState, _ := session.Get(flowStateKey).(string)
	savedProvider, _ := session.Get(flowProviderKey).(string)
	linkUserID, _ := session.Get(flowLinkUserKey).(string)
	storedRedirect, _ := session.Get(flowRedirectKey).(string)

	session.Delete(flowStateKey)
	session.Delete(flowProviderKey)
	session.Delete(flowLinkUserKey)
	session.Delete(flowRedirectKey)
	if err := session.Save(); err != nil {
		h.logger.Warn("failed to clear oauth flow state", zap.Error(err))
	}

	if savedState == "" || savedProvider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_flow"})
		return
	}
	if c.Query("state") != savedState || provider != savedProvider {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}

	if providerError := c.Query("error"); providerError != "" {
		h.logger.Warn("provider reported oauth error",
			zap.String("provider", provider),
			zap.String("error", providerError),
		)
		c.Redirect(http.StatusFound, h.loginURL+"?error=oauth_failed")
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	identity, err := h.oauth.Exchange(c.Request.Context(), provider, code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", zap.Error(err), zap.String("provider", provider))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "oauth_exchange_failed"})
		return
	}

	target := safeRedirectTarget(storedRedirect, h.appURL)

	if linkUserID != "" {
		result, err := h.accounts.LinkProvider(c.Request.Context(), linkUserID, identity)
		if err != nil {
			h.logger.Error("failed to link provider", zap.Error(err), zap.String("provider", provider))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "link_failed"})
			return
		}
		if !result.Success {
			c.Redirect(http.StatusFound, appendQuery(target, "linkError", string(result.Error)))
			return
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	user, err := h.accounts.SignInWithOAuth(c.Request.Context(), identity)
	if errors.Is(err, account.ErrUnknownIdentity) {
		c.Redirect(http.StatusFound, h.loginURL+"?error=registration_disabled")
		return
	}
	if err != nil {
		h.logger.Error("oauth sign-in failed", zap.Error(err), zap.String("provider", provider))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "oauth_sign_in_failed"})
		return
	}

	if err := h.startSession(c, user); err != nil {
		return
	}
	c.Redirect(http.StatusFound, target)
}

// generateFlowState produces a random state value for CSRF protection.
func generateFlowState(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// safeRedirectTarget only honors relative in-app targets.
func safeRedirectTarget(raw string, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return fallback
	}
	return raw
}

func appendQuery(target string, key string, value string) string {
	separator := "?"
	if strings.Contains(target, "?") {
		separator = "&"
	}
	return target + separator + key + "=" + url.QueryEscape(value)
}
