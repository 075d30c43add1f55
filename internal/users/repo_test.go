package users_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/internal/users"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/dbtest"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
)

func TestFindByEmailIgnoresCase(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	seeded := dbtest.MustCreateUser(t, conn, enums.UserRoleUser)
	repo := users.NewRepository(conn)

	got, err := repo.FindByEmail(context.Background(), "  "+strings.ToUpper(seeded.Email)+" ")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
}

func TestRecordLogin(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	seeded := dbtest.MustCreateUser(t, conn, enums.UserRoleUser)
	repo := users.NewRepository(conn)
	ctx := context.Background()
	at := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, repo.RecordLogin(ctx, seeded.ID, at, ""))
	var stored models.User
	require.NoError(t, conn.First(&stored, "id = ?", seeded.ID).Error)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, at.Equal(*stored.LastLoginAt))
	assert.Equal(t, seeded.PasswordHash, stored.PasswordHash)

	require.NoError(t, repo.RecordLogin(ctx, seeded.ID, at.Add(time.Hour), "$argon2id$new"))
	require.NoError(t, conn.First(&stored, "id = ?", seeded.ID).Error)
	assert.Equal(t, "$argon2id$new", stored.PasswordHash)
}

func TestListPagesNewestFirst(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	repo := users.NewRepository(conn)
	ctx := context.Background()
	seeded := map[string]bool{}
	for range 3 {
		seeded[dbtest.MustCreateUser(t, conn, enums.UserRoleUser).ID.String()] = true
	}

	first, err := repo.List(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.False(t, first.Items[0].CreatedAt.Before(first.Items[1].CreatedAt))

	second, err := repo.List(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[string]bool{}
	for _, item := range append(first.Items, second.Items...) {
		seen[item.ID.String()] = true
	}
	assert.Equal(t, seeded, seen)

	_, err = repo.List(ctx, pagination.Params{Cursor: "%%%"})
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
}

func TestDeleteReportsRemoval(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	seeded := dbtest.MustCreateUser(t, conn, enums.UserRoleUser)
	repo := users.NewRepository(conn)
	ctx := context.Background()

	removed, err := repo.Delete(ctx, seeded.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, seeded.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.FindByID(ctx, seeded.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
