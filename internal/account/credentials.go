package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/auth"
	"github.com/arimendelow/spoonjoy/backend/internal/oauth"
	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

// ErrUnknownIdentity reports an OAuth sign-in for an identity with no local
// user while auto-registration is disabled.
var ErrUnknownIdentity = errors.New("account: no user for identity")

// Register creates a password-credentialed user. Registration enforces the
// same field validation and uniqueness taxonomy as UpdateUserInfo, plus a
// password policy.
func (s *Service) Register(ctx context.Context, email string, username string, password string) (*users.User, Result, error) {
	normalizedEmail, trimmedUsername, fieldErrors := validateUserInfo(email, username)
	validatePassword(password, fieldErrors)
	if len(fieldErrors) > 0 {
		return nil, validationResult(fieldErrors), nil
	}

	emailOwner, err := s.users.FindByEmail(ctx, normalizedEmail)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		s.logError(opRegister, "email_lookup_failed", err)
		return nil, Result{}, newServiceError(opRegister, "email_lookup_failed", err)
	}
	if emailOwner != nil {
		return nil, failureResult(ErrorEmailTaken, "This email is already taken"), nil
	}

	usernameOwner, err := s.users.FindByUsername(ctx, trimmedUsername)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		s.logError(opRegister, "username_lookup_failed", err)
		return nil, Result{}, newServiceError(opRegister, "username_lookup_failed", err)
	}
	if usernameOwner != nil {
		return nil, failureResult(ErrorUsernameTaken, "This username is already taken"), nil
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		s.logError(opRegister, "password_hash_failed", err)
		return nil, Result{}, newServiceError(opRegister, "password_hash_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return nil, Result{}, newServiceError(opRegister, "id_generation_failed", err)
	}

	user := &users.User{
		ID:           id,
		Email:        normalizedEmail,
		Username:     trimmedUsername,
		PasswordHash: &passwordHash,
	}
	err = s.users.Create(ctx, user)
	if errors.Is(err, users.ErrDuplicate) {
		return nil, failureResult(ErrorConflict, "Those details were just claimed by another account"), nil
	}
	if err != nil {
		s.logError(opRegister, "create_failed", err)
		return nil, Result{}, newServiceError(opRegister, "create_failed", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, successResult(), nil
}

// Login checks an email/password pair. Lookup failure, a missing password
// credential, and a mismatch all surface the same way so the response does
// not reveal which account exists.
func (s *Service) Login(ctx context.Context, email string, password string) (*users.User, Result, error) {
	invalid := failureResult(ErrorValidation, "Invalid email or password")

	normalizedEmail := normalizeEmail(email)
	if normalizedEmail == "" || password == "" {
		return nil, invalid, nil
	}

	user, err := s.users.FindByEmail(ctx, normalizedEmail)
	if errors.Is(err, users.ErrNotFound) {
		return nil, invalid, nil
	}
	if err != nil {
		s.logError(opLogin, "email_lookup_failed", err)
		return nil, Result{}, newServiceError(opLogin, "email_lookup_failed", err)
	}

	if !user.HasPassword() {
		return nil, invalid, nil
	}
	if err := auth.VerifyPassword(*user.PasswordHash, password); err != nil {
		return nil, invalid, nil
	}

	return user, successResult(), nil
}

// SignInWithOAuth resolves a provider-verified identity to a local user:
// an existing link wins, then an email match gains the link, then
// auto-registration creates the user when enabled.
func (s *Service) SignInWithOAuth(ctx context.Context, identity oauth.Identity) (*users.User, error) {
	link, err := s.users.FindOAuthAccountByIdentity(ctx, identity.Provider, identity.ProviderUserID)
	if err == nil {
		user, err := s.users.FindByID(ctx, link.UserID)
		if err != nil {
			s.logError(opOAuthSignIn, "linked_user_lookup_failed", err, zap.String("provider", identity.Provider))
			return nil, newServiceError(opOAuthSignIn, "linked_user_lookup_failed", err)
		}
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		s.logError(opOAuthSignIn, "link_lookup_failed", err, zap.String("provider", identity.Provider))
		return nil, newServiceError(opOAuthSignIn, "link_lookup_failed", err)
	}

	normalizedEmail := normalizeEmail(identity.Email)
	user, err := s.users.FindByEmail(ctx, normalizedEmail)
	if err == nil {
		if err := s.createLink(ctx, user.ID, identity); err != nil {
			return nil, newServiceError(opOAuthSignIn, "link_create_failed", err)
		}
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		s.logError(opOAuthSignIn, "email_lookup_failed", err, zap.String("provider", identity.Provider))
		return nil, newServiceError(opOAuthSignIn, "email_lookup_failed", err)
	}

	if !s.autoRegister {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownIdentity, identity.Provider, identity.ProviderUserID)
	}

	user, err = s.registerFromIdentity(ctx, normalizedEmail, identity)
	if err != nil {
		return nil, err
	}
	if err := s.createLink(ctx, user.ID, identity); err != nil {
		return nil, newServiceError(opOAuthSignIn, "link_create_failed", err)
	}

	s.logger.Info("user auto-registered from oauth",
		zap.String("user_id", user.ID),
		zap.String("provider", identity.Provider),
	)
	return user, nil
}

// LinkProvider attaches a provider identity to the authenticated principal.
// Relinking the same identity is idempotent; an identity claimed by another
// user is refused without mutating either account.
func (s *Service) LinkProvider(ctx context.Context, principalID string, identity oauth.Identity) (Result, error) {
	existing, err := s.users.FindOAuthAccountByIdentity(ctx, identity.Provider, identity.ProviderUserID)
	if err == nil {
		if existing.UserID == principalID {
			return successResult(), nil
		}
		return failureResult(ErrorConflict,
			fmt.Sprintf("This %s account is already linked to another user", identity.Provider)), nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		s.logError(opLinkOAuth, "link_lookup_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opLinkOAuth, "link_lookup_failed", err)
	}

	err = s.createLink(ctx, principalID, identity)
	if errors.Is(err, users.ErrDuplicate) {
		return failureResult(ErrorConflict,
			fmt.Sprintf("Your account is already linked to a different %s account", identity.Provider)), nil
	}
	if err != nil {
		s.logError(opLinkOAuth, "link_create_failed", err, zap.String("user_id", principalID))
		return Result{}, newServiceError(opLinkOAuth, "link_create_failed", err)
	}

	return successResult(), nil
}

func (s *Service) createLink(ctx context.Context, userID string, identity oauth.Identity) error {
	return s.users.CreateOAuthAccount(ctx, &users.OAuthAccount{
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		ProviderLabel:  identity.Label,
		UserID:         userID,
	})
}

func (s *Service) registerFromIdentity(ctx context.Context, normalizedEmail string, identity oauth.Identity) (*users.User, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opOAuthSignIn, "id_generation_failed", err)
		return nil, newServiceError(opOAuthSignIn, "id_generation_failed", err)
	}

	username, err := s.availableUsername(ctx, usernameFromIdentity(identity))
	if err != nil {
		return nil, err
	}

	user := &users.User{
		ID:       id,
		Email:    normalizedEmail,
		Username: username,
	}
	if identity.AvatarURL != "" {
		avatarURL := identity.AvatarURL
		user.PhotoURL = &avatarURL
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, users.ErrDuplicate) {
		// Raced with another sign-in for the same email; pick up that user.
		existing, findErr := s.users.FindByEmail(ctx, normalizedEmail)
		if findErr != nil {
			s.logError(opOAuthSignIn, "create_raced_lookup_failed", findErr)
			return nil, newServiceError(opOAuthSignIn, "create_raced_lookup_failed", findErr)
		}
		return existing, nil
	}
	if err != nil {
		s.logError(opOAuthSignIn, "create_failed", err)
		return nil, newServiceError(opOAuthSignIn, "create_failed", err)
	}
	return user, nil
}

// availableUsername returns the base name, or the base plus a short random
// suffix when the base is taken.
func (s *Service) availableUsername(ctx context.Context, base string) (string, error) {
	_, err := s.users.FindByUsername(ctx, base)
	if errors.Is(err, users.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		s.logError(opOAuthSignIn, "username_lookup_failed", err)
		return "", newServiceError(opOAuthSignIn, "username_lookup_failed", err)
	}

	suffix, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opOAuthSignIn, "id_generation_failed", err)
		return "", newServiceError(opOAuthSignIn, "id_generation_failed", err)
	}
	suffix = strings.ReplaceAll(suffix, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s", base, suffix), nil
}

// usernameFromIdentity derives a starting username from the provider login
// or the email local part.
func usernameFromIdentity(identity oauth.Identity) string {
	candidate := strings.TrimSpace(identity.Label)
	if candidate == "" || strings.Contains(candidate, "@") {
		candidate = identity.Email
		if at := strings.Index(candidate, "@"); at > 0 {
			candidate = candidate[:at]
		}
	}

	var builder strings.Builder
	for _, r := range strings.ToLower(candidate) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		}
	}
	cleaned := builder.String()
	if cleaned == "" {
		cleaned = "cook"
	}
	return cleaned
}
