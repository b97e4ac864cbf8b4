// Package account implements the identity and credential mutation core:
// profile field updates, photo upload and removal, and federated link
// management, all funneled through a single intent dispatcher.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

var (
	errMissingRepository = errors.New("users repository is required")
	errMissingPhotoStore = errors.New("photo store is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingPrincipal  = errors.New("principal identifier is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "account.service.new"
	opSubmission     = "account.submission"
	opUpdateUserInfo = "account.update_user_info"
	opUploadPhoto    = "account.upload_photo"
	opRemovePhoto    = "account.remove_photo"
	opUnlinkOAuth    = "account.unlink_oauth"
	opProfile        = "account.profile"
	opRegister       = "account.register"
	opLogin          = "account.login"
	opOAuthSignIn    = "account.oauth_sign_in"
	opLinkOAuth      = "account.link_oauth"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for newly registered users.
type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Users        users.Repository
	Photos       PhotoStore
	IDProvider   IDProvider
	Clock        func() time.Time
	Logger       *zap.Logger
	AutoRegister bool
}

// Service owns every account mutation. All recoverable failures come back as
// Result values; a non-nil error always means the store or a collaborator
// misbehaved.
type Service struct {
	users        users.Repository
	photos       PhotoStore
	idProvider   IDProvider
	clock        func() time.Time
	logger       *zap.Logger
	autoRegister bool
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, newServiceError(opServiceNew, "missing_repository", errMissingRepository)
	}
	if cfg.Photos == nil {
		return nil, newServiceError(opServiceNew, "missing_photo_store", errMissingPhotoStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		users:        cfg.Users,
		photos:       cfg.Photos,
		idProvider:   cfg.IDProvider,
		clock:        clock,
		logger:       logger,
		autoRegister: cfg.AutoRegister,
	}, nil
}

// HandleSubmission routes one settings submission to exactly one intent
// handler. The principal has already been resolved by the session guard; an
// unrecognized intent is a soft failure, not an error.
func (s *Service) HandleSubmission(ctx context.Context, principalID string, submission Submission) (Result, error) {
	if strings.TrimSpace(principalID) == "" {
		s.logError(opSubmission, "missing_principal", errMissingPrincipal)
		return Result{}, newServiceError(opSubmission, "missing_principal", errMissingPrincipal)
	}

	switch Intent(submission.Intent) {
	case IntentUpdateUserInfo:
		return s.UpdateUserInfo(ctx, principalID, submission.Email, submission.Username)
	case IntentUploadPhoto:
		return s.UploadPhoto(ctx, principalID, submission.Photo)
	case IntentRemovePhoto:
		return s.RemovePhoto(ctx, principalID)
	case IntentUnlinkOAuth:
		return s.UnlinkProvider(ctx, principalID, submission.Provider)
	default:
		s.logger.Debug("unrecognized settings intent",
			zap.String("intent", submission.Intent),
			zap.String("user_id", principalID),
		)
		return Result{Success: false}, nil
	}
}

// UpdateUserInfo validates and persists a new email/username pair. The
// uniqueness pre-checks run email first, then username; the store's unique
// indexes remain the authority of last resort.
func (s *Service) UpdateUserInfo(ctx context.Context, principalID string, email string, username string) (Result, error) {
	normalizedEmail, trimmedUsername, fieldErrors := validateUserInfo(email, username)
	if len(fieldErrors) > 0 {
		return validationResult(fieldErrors), nil
	}

	emailOwner, err := s.users.FindByEmail(ctx, normalizedEmail)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		s.logError(opUpdateUserInfo, "email_lookup_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opUpdateUserInfo, "email_lookup_failed", err)
	}
	if emailOwner != nil && emailOwner.ID != principalID {
		return failureResult(ErrorEmailTaken, "This email is already taken"), nil
	}

	usernameOwner, err := s.users.FindByUsername(ctx, trimmedUsername)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		s.logError(opUpdateUserInfo, "username_lookup_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opUpdateUserInfo, "username_lookup_failed", err)
	}
	if usernameOwner != nil && usernameOwner.ID != principalID {
		return failureResult(ErrorUsernameTaken, "This username is already taken"), nil
	}

	err = s.users.UpdateProfile(ctx, principalID, normalizedEmail, trimmedUsername)
	if errors.Is(err, users.ErrDuplicate) {
		// Lost the race between pre-check and write; the unique index spoke.
		return failureResult(ErrorConflict, "Those details were just claimed by another account"), nil
	}
	if err != nil {
		s.logError(opUpdateUserInfo, "profile_update_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opUpdateUserInfo, "profile_update_failed", err)
	}

	return successResult(), nil
}

// UploadPhoto validates presence, then content type, then size, in that
// order, before delegating to the photo store.
func (s *Service) UploadPhoto(ctx context.Context, principalID string, photo *PhotoUpload) (Result, error) {
	if photo == nil || photo.Size == 0 {
		return failureResult(ErrorNoFile, "No file uploaded"), nil
	}

	contentType := strings.ToLower(strings.TrimSpace(photo.ContentType))
	if _, allowed := allowedPhotoTypes[contentType]; !allowed {
		return failureResult(ErrorInvalidFileType, "File must be an image"), nil
	}

	if photo.Size > MaxPhotoBytes {
		return failureResult(ErrorFileTooLarge, "Image must be smaller than 5MB"), nil
	}

	photoURL, err := s.photos.Store(ctx, principalID, contentType, photo.Content)
	if err != nil {
		s.logError(opUploadPhoto, "storage_failed", err, zap.String("user_id", principalID))
		return failureResult(ErrorStorageFailed, "Could not store the uploaded image"), nil
	}

	if err := s.users.UpdatePhotoURL(ctx, principalID, &photoURL); err != nil {
		s.logError(opUploadPhoto, "photo_update_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opUploadPhoto, "photo_update_failed", err)
	}

	result := successResult()
	result.PhotoURL = photoURL
	return result, nil
}

// RemovePhoto unconditionally clears the stored photo reference. Removing an
// absent photo is a success.
func (s *Service) RemovePhoto(ctx context.Context, principalID string) (Result, error) {
	if err := s.users.UpdatePhotoURL(ctx, principalID, nil); err != nil {
		s.logError(opRemovePhoto, "photo_clear_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opRemovePhoto, "photo_clear_failed", err)
	}
	return successResult(), nil
}

// UnlinkProvider removes one federated link, refusing when it is the
// principal's only way of signing in. Unlinking a provider that is not
// linked succeeds idempotently.
func (s *Service) UnlinkProvider(ctx context.Context, principalID string, provider string) (Result, error) {
	if !users.KnownProvider(provider) {
		return validationResult(map[string]string{"provider": "Unknown provider"}), nil
	}

	user, err := s.users.FindByID(ctx, principalID)
	if err != nil {
		s.logError(opUnlinkOAuth, "principal_lookup_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opUnlinkOAuth, "principal_lookup_failed", err)
	}

	links, err := s.users.FindOAuthAccounts(ctx, principalID)
	if err != nil {
		s.logError(opUnlinkOAuth, "links_lookup_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opUnlinkOAuth, "links_lookup_failed", err)
	}

	linked := false
	for _, link := range links {
		if link.Provider == provider {
			linked = true
			break
		}
	}
	if !linked {
		return successResult(), nil
	}

	if !user.HasPassword() && len(links) == 1 {
		return failureResult(ErrorLastAuthMethod, "You cannot remove your only way of signing in"), nil
	}

	if _, err := s.users.DeleteOAuthAccount(ctx, principalID, provider); err != nil {
		s.logError(opUnlinkOAuth, "unlink_failed", err,
			zap.String("user_id", principalID),
			zap.String("provider", provider),
		)
		return Result{}, newServiceError(opUnlinkOAuth, "unlink_failed", err)
	}

	return successResult(), nil
}

// ProviderLink reports one provider's linked state for the settings surface.
type ProviderLink struct {
	Provider string `json:"provider"`
	Linked   bool   `json:"linked"`
	Label    string `json:"label,omitempty"`
}

// Profile is the read-path view of the principal's account.
type Profile struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Username    string         `json:"username"`
	PhotoURL    string         `json:"photoUrl"`
	HasPassword bool           `json:"hasPassword"`
	Providers   []ProviderLink `json:"providers"`
}

// Profile assembles the account view: user fields, the resolved avatar URL,
// and per-provider linked state for the fixed provider set.
func (s *Service) Profile(ctx context.Context, principalID string) (Profile, error) {
	user, err := s.users.FindByID(ctx, principalID)
	if err != nil {
		s.logError(opProfile, "principal_lookup_failed", err, zap.String("user_id", principalID))
		return Profile{}, newServiceError(opProfile, "principal_lookup_failed", err)
	}

	links, err := s.users.FindOAuthAccounts(ctx, principalID)
	if err != nil {
		s.logError(opProfile, "links_lookup_failed", err, zap.String("user_id", principalID))
		return Profile{}, newServiceError(opProfile, "links_lookup_failed", err)
	}

	labels := make(map[string]string, len(links))
	for _, link := range links {
		labels[link.Provider] = link.ProviderLabel
	}

	providers := make([]ProviderLink, 0, 2)
	for _, provider := range []string{users.ProviderGoogle, users.ProviderGitHub} {
		label, linked := labels[provider]
		providers = append(providers, ProviderLink{
			Provider: provider,
			Linked:   linked,
			Label:    label,
		})
	}

	return Profile{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		PhotoURL:    ResolvePhotoURL(user.PhotoURL),
		HasPassword: user.HasPassword(),
		Providers:   providers,
	}, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("account service error", attrs...)
}
