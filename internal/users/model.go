package users

import (
	"strings"
	"time"
)

// Provider identifiers for federated sign-in. The set is closed: rows carrying
// any other value are rejected before they reach the store.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// KnownProvider reports whether the supplied provider id belongs to the fixed set.
func KnownProvider(provider string) bool {
	switch provider {
	case ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// User is the account record. Email is stored lowercased; the unique index on
// it is the case-insensitive uniqueness authority of last resort. Username is
// compared as submitted. A nil PasswordHash means the account authenticates
// through linked providers only, and a nil PhotoURL means the default avatar.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Username     string    `gorm:"column:username;size:190;not null;uniqueIndex"`
	PasswordHash *string   `gorm:"column:password_hash;size:100"`
	PhotoURL     *string   `gorm:"column:photo_url;size:512"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account carries a usable password credential.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && strings.TrimSpace(*u.PasswordHash) != ""
}

// OAuthAccount links a local user to a federated identity. At most one row per
// (provider, user) pair; a federated identity belongs to at most one user.
type OAuthAccount struct {
	Provider       string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_oauth_user_provider,priority:2;uniqueIndex:idx_oauth_identity,priority:1"`
	ProviderUserID string    `gorm:"column:provider_user_id;size:190;not null;uniqueIndex:idx_oauth_identity,priority:2"`
	ProviderLabel  string    `gorm:"column:provider_label;size:320"`
	UserID         string    `gorm:"column:user_id;size:190;not null;index;uniqueIndex:idx_oauth_user_provider,priority:1"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing federated identity links.
func (OAuthAccount) TableName() string {
	return "oauth_accounts"
}
