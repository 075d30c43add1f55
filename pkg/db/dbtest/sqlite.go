// Package dbtest opens throwaway sqlite databases carrying the real schema.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/migrate"
)

// OpenSQLite returns an isolated in-memory database with migrations applied.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: db.RegisterSQLiteGeoDriver(),
		DSN:        dsn,
	}), db.GormConfig(nil, 0))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.UpEmbedded(context.Background(), sqlDB, "sqlite"); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// OpenClient wraps OpenSQLite in a db.Client.
func OpenClient(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(OpenSQLite(t))
}

func MustCreateUser(t testing.TB, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	user := models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "not-a-real-hash",
		DisplayName:  "Test User",
		Role:         role,
		IsActive:     true,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func MustCreateCategory(t testing.TB, conn *gorm.DB, name, markerIcon string, parentID *uuid.UUID) models.Category {
	t.Helper()
	category := models.Category{
		Name:           name,
		Slug:           name + "-" + uuid.NewString()[:8],
		ParentID:       parentID,
		MarkerIconSlug: markerIcon,
	}
	if err := conn.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

func MustCreateListingType(t testing.TB, conn *gorm.DB, slug string) models.ListingType {
	t.Helper()
	lt := models.ListingType{Name: slug, Slug: slug}
	if err := conn.Create(&lt).Error; err != nil {
		t.Fatalf("create listing type: %v", err)
	}
	return lt
}
