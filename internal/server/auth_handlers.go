package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/account"
	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

type registerPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, result, err := h.accounts.Register(c.Request.Context(), request.Email, request.Username, request.Password)
	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}
	if !result.Success {
		c.JSON(http.StatusOK, result)
		return
	}

	if err := h.startSession(c, user); err != nil {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, result, err := h.accounts.Login(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.logger.Error("failed to log in user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}
	if !result.Success {
		c.JSON(http.StatusOK, result)
		return
	}

	if err := h.startSession(c, user); err != nil {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, account.Result{Success: true})
}

// startSession mints the signed session cookie for the user. On failure it
// writes the 500 itself and reports it to the caller.
func (h *httpHandler) startSession(c *gin.Context, user *users.User) error {
	token, expiresIn, err := h.sessions.IssueSession(c.Request.Context(), user.ID, user.Email, user.Username)
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed"})
		return err
	}
	h.setSessionCookie(c, token, expiresIn)
	return nil
}
