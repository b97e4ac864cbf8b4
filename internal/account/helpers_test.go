package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/arimendelow/spoonjoy/backend/internal/auth"
	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type fakePhotoStore struct {
	url       string
	err       error
	calls     int
	lastOwner string
	lastType  string
	lastBody  string
}

func (f *fakePhotoStore) Store(_ context.Context, ownerID string, contentType string, content io.Reader) (string, error) {
	f.calls++
	f.lastOwner = ownerID
	f.lastType = contentType
	if content != nil {
		body, _ := io.ReadAll(content)
		f.lastBody = string(body)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func openTestRepository(t *testing.T) *users.GormRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:account_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &users.OAuthAccount{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	repo, err := users.NewGormRepository(db)
	if err != nil {
		t.Fatalf("failed to construct repository: %v", err)
	}
	return repo
}

func newTestService(t *testing.T, repo users.Repository, photos PhotoStore, ids ...string) *Service {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"generated-1", "generated-2", "generated-3"}
	}
	service, err := NewService(ServiceConfig{
		Users:        repo,
		Photos:       photos,
		IDProvider:   &staticIDGenerator{ids: ids},
		AutoRegister: true,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func seedUser(t *testing.T, repo users.Repository, user users.User) {
	t.Helper()
	if err := repo.Create(context.Background(), &user); err != nil {
		t.Fatalf("failed to seed user %s: %v", user.ID, err)
	}
}

func seedLink(t *testing.T, repo users.Repository, link users.OAuthAccount) {
	t.Helper()
	if err := repo.CreateOAuthAccount(context.Background(), &link); err != nil {
		t.Fatalf("failed to seed link %s/%s: %v", link.UserID, link.Provider, err)
	}
}

func hashedPassword(t *testing.T, plaintext string) *string {
	t.Helper()
	hash, err := auth.HashPassword(plaintext)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &hash
}

func stringPtr(value string) *string {
	return &value
}

func pngUpload(size int64) *PhotoUpload {
	return &PhotoUpload{
		Filename:    "photo.png",
		ContentType: "image/png",
		Size:        size,
		Content:     strings.NewReader("png-bytes"),
	}
}
