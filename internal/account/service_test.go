package account

import (
	"context"
	"testing"

	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

func TestUpdateUserInfoPersistsNormalizedValues(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "old@example.com", Username: "old"})

	result, err := service.UpdateUserInfo(context.Background(), "user-1", "  New@Example.COM ", " newname ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	stored, err := repo.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Email != "new@example.com" {
		t.Fatalf("expected lowercased email, got %q", stored.Email)
	}
	if stored.Username != "newname" {
		t.Fatalf("expected trimmed username, got %q", stored.Username)
	}
}

func TestUpdateUserInfoIdempotentResubmission(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "keep@example.com", Username: "keeper"})

	result, err := service.UpdateUserInfo(context.Background(), "user-1", "keep@example.com", "keeper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected idempotent resubmission to succeed, got %+v", result)
	}
}

func TestUpdateUserInfoEmailConflictIsCaseInsensitive(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-a", Email: "a@x.com", Username: "alice"})
	seedUser(t, repo, users.User{ID: "user-b", Email: "b@x.com", Username: "bob"})

	result, err := service.UpdateUserInfo(context.Background(), "user-a", "B@X.COM", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected conflict, got success")
	}
	if result.Error != ErrorEmailTaken {
		t.Fatalf("expected email_taken, got %q", result.Error)
	}

	stored, err := repo.FindByID(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Email != "a@x.com" {
		t.Fatalf("expected stored email unchanged, got %q", stored.Email)
	}
}

func TestUpdateUserInfoReportsBothEmptyFields(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	result, err := service.UpdateUserInfo(context.Background(), "user-1", "   ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorValidation {
		t.Fatalf("expected validation_error, got %q", result.Error)
	}
	if _, ok := result.FieldErrors["email"]; !ok {
		t.Fatalf("expected email field error, got %+v", result.FieldErrors)
	}
	if _, ok := result.FieldErrors["username"]; !ok {
		t.Fatalf("expected username field error, got %+v", result.FieldErrors)
	}
}

func TestUpdateUserInfoMalformedEmail(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	result, err := service.UpdateUserInfo(context.Background(), "user-1", "not-a-valid-email", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorValidation {
		t.Fatalf("expected validation_error, got %q", result.Error)
	}
	if result.FieldErrors["email"] == "" {
		t.Fatalf("expected email field error, got %+v", result.FieldErrors)
	}
	if _, ok := result.FieldErrors["username"]; ok {
		t.Fatalf("did not expect username field error, got %+v", result.FieldErrors)
	}
}

func TestUpdateUserInfoMalformedEmailAndEmptyUsernameReportedTogether(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	result, err := service.UpdateUserInfo(context.Background(), "user-1", "broken@", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FieldErrors["email"] == "" || result.FieldErrors["username"] == "" {
		t.Fatalf("expected both field errors, got %+v", result.FieldErrors)
	}
}

func TestUpdateUserInfoUsernameConflictIsExactMatch(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-a", Email: "a@x.com", Username: "alice"})
	seedUser(t, repo, users.User{ID: "user-b", Email: "b@x.com", Username: "bob"})

	result, err := service.UpdateUserInfo(context.Background(), "user-a", "a@x.com", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorUsernameTaken {
		t.Fatalf("expected username_taken, got %q", result.Error)
	}

	result, err = service.UpdateUserInfo(context.Background(), "user-a", "a@x.com", "Bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected different-case username to be free, got %+v", result)
	}
}

func TestUpdateUserInfoReportsEmailConflictBeforeUsername(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-a", Email: "a@x.com", Username: "alice"})
	seedUser(t, repo, users.User{ID: "user-b", Email: "b@x.com", Username: "bob"})
	seedUser(t, repo, users.User{ID: "user-c", Email: "c@x.com", Username: "carol"})

	result, err := service.UpdateUserInfo(context.Background(), "user-a", "b@x.com", "carol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorEmailTaken {
		t.Fatalf("expected email conflict to win, got %q", result.Error)
	}
}

type racingRepository struct {
	users.Repository
}

func (r *racingRepository) UpdateProfile(context.Context, string, string, string) error {
	return users.ErrDuplicate
}

func TestUpdateUserInfoSurfacesConflictWhenUniqueIndexFires(t *testing.T) {
	repo := openTestRepository(t)
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})
	service := newTestService(t, &racingRepository{Repository: repo}, &fakePhotoStore{})

	result, err := service.UpdateUserInfo(context.Background(), "user-1", "fresh@x.com", "fresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorConflict {
		t.Fatalf("expected conflict, got %q", result.Error)
	}
}

func TestHandleSubmissionUnknownIntentIsSoftFailure(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	result, err := service.HandleSubmission(context.Background(), "user-1", Submission{Intent: "explodePlease"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected soft failure")
	}
	if result.Error != "" {
		t.Fatalf("expected no error kind, got %q", result.Error)
	}
	if result.Message != "" || len(result.FieldErrors) != 0 {
		t.Fatalf("expected bare failure, got %+v", result)
	}
}

func TestHandleSubmissionRoutesByIntent(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{url: "https://cdn.example.com/p.png"})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	result, err := service.HandleSubmission(context.Background(), "user-1", Submission{
		Intent:   string(IntentUpdateUserInfo),
		Email:    "",
		Username: "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorValidation {
		t.Fatalf("expected updateUserInfo routing, got %+v", result)
	}

	result, err = service.HandleSubmission(context.Background(), "user-1", Submission{Intent: string(IntentUploadPhoto)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorNoFile {
		t.Fatalf("expected uploadPhoto routing, got %+v", result)
	}

	result, err = service.HandleSubmission(context.Background(), "user-1", Submission{Intent: string(IntentRemovePhoto)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected removePhoto routing, got %+v", result)
	}

	result, err = service.HandleSubmission(context.Background(), "user-1", Submission{
		Intent:   string(IntentUnlinkOAuth),
		Provider: users.ProviderGoogle,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected unlink routing to report idempotent success, got %+v", result)
	}
}

func TestUnlinkProviderRefusedForLastAuthMethod(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})
	seedLink(t, repo, users.OAuthAccount{Provider: users.ProviderGoogle, ProviderUserID: "g-1", UserID: "user-1"})

	result, err := service.UnlinkProvider(context.Background(), "user-1", users.ProviderGoogle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorLastAuthMethod {
		t.Fatalf("expected last_auth_method, got %+v", result)
	}

	links, err := repo.FindOAuthAccounts(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected link to remain, got %d", len(links))
	}
}

func TestUnlinkProviderWithPasswordSucceeds(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice", PasswordHash: hashedPassword(t, "longpassword")})
	seedLink(t, repo, users.OAuthAccount{Provider: users.ProviderGoogle, ProviderUserID: "g-1", UserID: "user-1"})

	result, err := service.UnlinkProvider(context.Background(), "user-1", users.ProviderGoogle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	links, err := repo.FindOAuthAccounts(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("expected no links, got %d", len(links))
	}
}

func TestUnlinkProviderOneOfTwoSucceeds(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})
	seedLink(t, repo, users.OAuthAccount{Provider: users.ProviderGoogle, ProviderUserID: "g-1", UserID: "user-1"})
	seedLink(t, repo, users.OAuthAccount{Provider: users.ProviderGitHub, ProviderUserID: "gh-1", UserID: "user-1"})

	result, err := service.UnlinkProvider(context.Background(), "user-1", users.ProviderGoogle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	links, err := repo.FindOAuthAccounts(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(links) != 1 || links[0].Provider != users.ProviderGitHub {
		t.Fatalf("expected only the github link to remain, got %+v", links)
	}
}

func TestUnlinkProviderNotLinkedIsIdempotentSuccess(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	for call := 0; call < 2; call++ {
		result, err := service.UnlinkProvider(context.Background(), "user-1", users.ProviderGitHub)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", call, err)
		}
		if !result.Success {
			t.Fatalf("call %d: expected idempotent success, got %+v", call, result)
		}
	}
}

func TestUnlinkProviderRejectsUnknownProvider(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	result, err := service.UnlinkProvider(context.Background(), "user-1", "myspace")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != ErrorValidation {
		t.Fatalf("expected validation_error, got %+v", result)
	}
}

func TestProfileResolvesDefaultAvatar(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{ID: "user-1", Email: "a@x.com", Username: "alice"})

	profile, err := service.Profile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.PhotoURL != DefaultAvatarURL {
		t.Fatalf("expected default avatar, got %q", profile.PhotoURL)
	}
	if profile.HasPassword {
		t.Fatalf("expected no password credential")
	}
	if len(profile.Providers) != 2 {
		t.Fatalf("expected the fixed provider set, got %+v", profile.Providers)
	}
	for _, provider := range profile.Providers {
		if provider.Linked {
			t.Fatalf("expected no linked providers, got %+v", provider)
		}
	}
}

func TestProfileReportsLinkedProviders(t *testing.T) {
	repo := openTestRepository(t)
	service := newTestService(t, repo, &fakePhotoStore{})
	seedUser(t, repo, users.User{
		ID:       "user-1",
		Email:    "a@x.com",
		Username: "alice",
		PhotoURL: stringPtr("https://cdn.example.com/me.jpg"),
	})
	seedLink(t, repo, users.OAuthAccount{
		Provider:       users.ProviderGoogle,
		ProviderUserID: "g-1",
		ProviderLabel:  "alice@gmail.com",
		UserID:         "user-1",
	})

	profile, err := service.Profile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.PhotoURL != "https://cdn.example.com/me.jpg" {
		t.Fatalf("expected stored photo verbatim, got %q", profile.PhotoURL)
	}

	var google, github ProviderLink
	for _, provider := range profile.Providers {
		switch provider.Provider {
		case users.ProviderGoogle:
			google = provider
		case users.ProviderGitHub:
			github = provider
		}
	}
	if !google.Linked || google.Label != "alice@gmail.com" {
		t.Fatalf("expected linked google with label, got %+v", google)
	}
	if github.Linked {
		t.Fatalf("expected github unlinked, got %+v", github)
	}
}
