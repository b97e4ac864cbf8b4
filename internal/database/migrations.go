package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

const migrationBackfillUsernames = "2025-11-12_backfill_usernames"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillUsernames, apply: backfillUsernames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillUsernames gives every pre-username account a username derived from
// its email local part, suffixing on collision. Installs that predate the
// username column get the column added here without the unique index; rows
// must already be unique by the time AutoMigrate creates it.
func backfillUsernames(db *gorm.DB) error {
	migrator := db.Migrator()
	if !migrator.HasTable(&users.User{}) {
		return nil
	}
	if !migrator.HasColumn(&users.User{}, "username") {
		if err := db.Exec("ALTER TABLE users ADD COLUMN username varchar(190) NOT NULL DEFAULT ''").Error; err != nil {
			return err
		}
	}

	taken := map[string]bool{}
	var existing []string
	if err := db.Model(&users.User{}).
		Where("username IS NOT NULL AND username <> ''").
		Pluck("username", &existing).Error; err != nil {
		return err
	}
	for _, name := range existing {
		taken[name] = true
	}

	var missing []users.User
	if err := db.Where("username IS NULL OR username = ''").Find(&missing).Error; err != nil {
		return err
	}
	for _, user := range missing {
		base := usernameFromEmail(user.Email)
		candidate := base
		for suffix := 2; taken[candidate]; suffix++ {
			candidate = fmt.Sprintf("%s%d", base, suffix)
		}
		taken[candidate] = true
		if err := db.Model(&users.User{}).
			Where("id = ?", user.ID).
			Update("username", candidate).Error; err != nil {
			return err
		}
	}
	return nil
}

func usernameFromEmail(email string) string {
	local := email
	if at := strings.Index(local, "@"); at > 0 {
		local = local[:at]
	}
	var builder strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		}
	}
	if builder.Len() == 0 {
		return "cook"
	}
	return builder.String()
}
