package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/account"
)

// maxSubmissionBytes caps the settings submission body. It sits well above
// MaxPhotoBytes so an oversized image still reaches the size check and
// surfaces as file_too_large instead of a transport failure.
const maxSubmissionBytes = 20 << 20

func (h *httpHandler) handleAccountProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	profile, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load account profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_load_failed"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handleAccountSubmission accepts one multipart settings form and dispatches
// it by intent. Every recoverable outcome is a 200 with a result envelope;
// only collaborator failures become a 500.
func (h *httpHandler) handleAccountSubmission(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmissionBytes)

	submission := account.Submission{
		Intent:   c.PostForm("intent"),
		Email:    c.PostForm("email"),
		Username: c.PostForm("username"),
		Provider: c.PostForm("provider"),
	}

	fileHeader, err := c.FormFile("photo")
	if err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			h.logger.Error("failed to open uploaded photo", zap.Error(openErr))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_read_failed"})
			return
		}
		defer file.Close()
		submission.Photo = &account.PhotoUpload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Content:     file,
		}
	}

	result, err := h.accounts.HandleSubmission(c.Request.Context(), userID, submission)
	if err != nil {
		h.logger.Error("failed to process account submission", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account_update_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
