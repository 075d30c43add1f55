package listings_test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/internal/assets"
	"github.com/angelmondragon/geodirectory-backend/internal/assets/assettest"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/internal/moderation"
	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/dbtest"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage/local"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

type harness struct {
	conn     *gorm.DB
	repo     *listings.Repository
	store    *assets.Store
	backend  *local.Store
	cache    *fakeViewportCache
	svc      listings.Service
	owner    models.User
	category models.Category
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	store, backend := assettest.NewLocalStore(t)
	h := &harness{
		conn:     conn,
		repo:     listings.NewRepository(conn),
		store:    store,
		backend:  backend,
		cache:    newFakeViewportCache(),
		owner:    dbtest.MustCreateUser(t, conn, enums.UserRoleUser),
		category: dbtest.MustCreateCategory(t, conn, "cafes", "cup", nil),
	}
	h.svc = h.newService(t, store)
	return h
}

func (h *harness) newService(t *testing.T, store listings.AssetStore) listings.Service {
	t.Helper()
	logg := testLogger()
	svc, err := listings.NewService(
		h.repo,
		db.Wrap(h.conn),
		store,
		outbox.NewService(outbox.NewRepository(h.conn), logg),
		h.cache,
		listings.Config{MaxGalleryFiles: 3, ViewportTTL: time.Minute},
		logg,
	)
	require.NoError(t, err)
	return svc
}

// moderator builds the admin moderation service over the harness database
// and cache.
func (h *harness) moderator(t *testing.T) (moderation.Service, listings.Actor) {
	t.Helper()
	logg := testLogger()
	svc, err := moderation.NewService(h.repo, db.Wrap(h.conn), outbox.NewService(outbox.NewRepository(h.conn), logg), h.cache, logg)
	require.NoError(t, err)
	admin := dbtest.MustCreateUser(t, h.conn, enums.UserRoleAdmin)
	return svc, listings.Actor{UserID: admin.ID, Role: admin.Role}
}

func (h *harness) actor() listings.Actor {
	return listings.Actor{UserID: h.owner.ID, Role: h.owner.Role}
}

func (h *harness) validInput() listings.CreateInput {
	return listings.CreateInput{
		Title:        "Corner Cafe",
		CategoryID:   h.category.ID.String(),
		Latitude:     float64Ptr(-40.8135),
		Longitude:    float64Ptr(-62.9967),
		Address:      "Av. San Martin 100",
		ProvinceID:   "62",
		LocalityID:   "62042",
		ProvinceName: "Rio Negro",
		CityName:     "Viedma",
		Details:      types.Details{"phone": "555-0100"},
	}
}

// seedListing inserts a row directly, bypassing the service.
func (h *harness) seedListing(t *testing.T, title string, lat, lng float64, status enums.ListingStatus, createdAt time.Time) models.Listing {
	t.Helper()
	listing := models.Listing{
		UserID:     h.owner.ID,
		Title:      title,
		CategoryID: h.category.ID,
		Location:   types.GeographyPoint{Lat: lat, Lng: lng},
		Address:    "somewhere",
		Status:     status,
		CreatedAt:  createdAt,
	}
	require.NoError(t, h.conn.Create(&listing).Error)
	return listing
}

func (h *harness) outboxTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "listings-test", Output: io.Discard})
}

func float64Ptr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

type fakeViewportCache struct {
	mu          sync.Mutex
	entries     map[string]string
	generation  int64
	gets        int
	invalidated int
	failReads   bool
	// beforeSet runs ahead of each write, standing in for a concurrent
	// request that lands between the row read and the cache write.
	beforeSet func()
}

func newFakeViewportCache() *fakeViewportCache {
	return &fakeViewportCache{entries: map[string]string{}}
}

func viewportKey(generation int64, fingerprint string) string {
	return strconv.FormatInt(generation, 10) + ":" + fingerprint
}

func (f *fakeViewportCache) GetViewport(_ context.Context, fingerprint string) (string, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failReads {
		return "", 0, false, errors.New("redis down")
	}
	payload, ok := f.entries[viewportKey(f.generation, fingerprint)]
	return payload, f.generation, ok, nil
}

func (f *fakeViewportCache) SetViewport(_ context.Context, generation int64, fingerprint, payload string, _ time.Duration) error {
	if hook := f.beforeSet; hook != nil {
		f.beforeSet = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[viewportKey(generation, fingerprint)] = payload
	return nil
}

func (f *fakeViewportCache) InvalidateViewports(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.generation++
	return nil
}

// failingCommitStore behaves like the real store except that staged files
// can never be promoted.
type failingCommitStore struct {
	*assets.Store
}

func (failingCommitStore) CommitStaging(context.Context, string, uuid.UUID) error {
	return errors.New("bucket unavailable")
}
