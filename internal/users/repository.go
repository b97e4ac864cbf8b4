package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates that no record matched the lookup.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicate indicates that a unique index rejected the write.
	ErrDuplicate = errors.New("users: duplicate value")
	// ErrUnknownProvider indicates a provider id outside the fixed set.
	ErrUnknownProvider = errors.New("users: unknown provider")
)

// Repository is the store collaborator consumed by the account core. The
// dispatcher never reaches the database directly; an in-memory sqlite handle
// substitutes in tests.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	UpdateProfile(ctx context.Context, id, email, username string) error
	UpdatePhotoURL(ctx context.Context, id string, photoURL *string) error
	FindOAuthAccounts(ctx context.Context, userID string) ([]OAuthAccount, error)
	FindOAuthAccountByIdentity(ctx context.Context, provider, providerUserID string) (*OAuthAccount, error)
	CreateOAuthAccount(ctx context.Context, account *OAuthAccount) error
	DeleteOAuthAccount(ctx context.Context, userID, provider string) (bool, error)
}

// GormRepository persists users and their federated links through gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps the provided database handle.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("users: database handle required")
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Create(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// FindByEmail matches case-insensitively. Stored emails are lowercased, but
// rows written before normalization existed may not be.
func (r *GormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("lower(email) = lower(?)", email).Take(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// FindByUsername matches the username exactly as submitted.
func (r *GormRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// UpdateProfile persists email and username as a single statement so a failure
// leaves neither field changed.
func (r *GormRepository) UpdateProfile(ctx context.Context, id, email, username string) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email":    email,
			"username": username,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) UpdatePhotoURL(ctx context.Context, id string, photoURL *string) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("photo_url", photoURL)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) FindOAuthAccounts(ctx context.Context, userID string) ([]OAuthAccount, error) {
	var accounts []OAuthAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("provider ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, translateError(err)
	}
	return accounts, nil
}

func (r *GormRepository) FindOAuthAccountByIdentity(ctx context.Context, provider, providerUserID string) (*OAuthAccount, error) {
	var account OAuthAccount
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		Take(&account).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &account, nil
}

func (r *GormRepository) CreateOAuthAccount(ctx context.Context, account *OAuthAccount) error {
	if account == nil || !KnownProvider(account.Provider) {
		return ErrUnknownProvider
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// DeleteOAuthAccount removes the (user, provider) link and reports whether a
// row existed, so callers can distinguish the idempotent repeat case.
func (r *GormRepository) DeleteOAuthAccount(ctx context.Context, userID, provider string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&OAuthAccount{})
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
