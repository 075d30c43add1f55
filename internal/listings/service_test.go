package listings_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/geodirectory-backend/internal/assets/assettest"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/dbtest"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

func TestCreateWithoutFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{})
	require.NoError(t, err)

	got, err := h.repo.FindForEdit(ctx, result.ListingID, h.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusPending, got.Status)
	assert.Nil(t, got.CoverImage)
	assert.InDelta(t, -40.8135, got.Location.Lat, 1e-6)
	assert.InDelta(t, -62.9967, got.Location.Lng, 1e-6)
	require.NotNil(t, got.City)
	assert.Equal(t, "Viedma", *got.City)
	assert.Equal(t, "62", got.Details["provincia_id"])
	assert.Equal(t, "62042", got.Details["localidad_id"])
	assert.Equal(t, "Rio Negro", got.Details["province_name"])
	assert.Equal(t, "555-0100", got.Details["phone"])

	assert.Equal(t, []enums.OutboxEventType{enums.EventListingCreated}, h.outboxTypes(t))
	assert.NoDirExists(t, filepath.Join(h.backend.Root(), "staging"))
}

func TestCreateWithFilesCommitsStaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover:   &listings.Upload{Name: "front.png", Data: assettest.PNG()},
		Gallery: []listings.Upload{{Name: "a.jpg", Data: assettest.JPEG()}, {Name: "b.webp", Data: assettest.WebP()}},
	})
	require.NoError(t, err)

	dto, err := h.svc.ForEdit(ctx, h.actor(), result.ListingID)
	require.NoError(t, err)
	require.NotNil(t, dto.CoverImage)
	assert.FileExists(t, filepath.Join(h.backend.Root(), "listings", result.ListingID.String(), "coverImage", *dto.CoverImage))
	assert.Len(t, dto.GalleryImages, 2)

	entries, err := os.ReadDir(filepath.Join(h.backend.Root(), "staging"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*listings.CreateInput)
		field  string
	}{
		{"missing title", func(in *listings.CreateInput) { in.Title = "  " }, "title"},
		{"missing category", func(in *listings.CreateInput) { in.CategoryID = "" }, "category_id"},
		{"bad category", func(in *listings.CreateInput) { in.CategoryID = "cafes" }, "category_id"},
		{"missing lat", func(in *listings.CreateInput) { in.Latitude = nil }, "lat"},
		{"missing lng", func(in *listings.CreateInput) { in.Longitude = nil }, "lng"},
		{"latitude out of range", func(in *listings.CreateInput) { in.Latitude = float64Ptr(91) }, "location"},
		{"missing address", func(in *listings.CreateInput) { in.Address = "" }, "address"},
		{"missing province", func(in *listings.CreateInput) { in.ProvinceID = "" }, "province_id"},
		{"missing locality", func(in *listings.CreateInput) { in.LocalityID = "" }, "locality_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := h.validInput()
			tc.mutate(&input)
			_, err := h.svc.Create(ctx, h.actor(), input, listings.FileChanges{
				Cover: &listings.Upload{Name: "front.png", Data: assettest.PNG()},
			})
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			details, ok := typed.Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}

	var count int64
	require.NoError(t, h.conn.Model(&models.Listing{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.NoDirExists(t, filepath.Join(h.backend.Root(), "listings"))
}

func TestCreateRejectsBadFilesBeforeInsert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	uploads := map[string]listings.FileChanges{
		"oversized":  {Cover: &listings.Upload{Name: "huge.png", Data: assettest.Oversized(assettest.DefaultMaxBytes)}},
		"wrong type": {Gallery: []listings.Upload{{Name: "notes.txt", Data: []byte("plain text")}}},
		"disguised":  {Gallery: []listings.Upload{{Name: "photo.jpg", Data: assettest.PNG()}}},
	}
	for name, files := range uploads {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Create(ctx, h.actor(), h.validInput(), files)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeInvalidAsset, pkgerrors.CodeOf(err))
		})
	}

	var count int64
	require.NoError(t, h.conn.Model(&models.Listing{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.NoDirExists(t, filepath.Join(h.backend.Root(), "listings"))
	entries, err := os.ReadDir(filepath.Join(h.backend.Root(), "staging"))
	if err == nil {
		assert.Empty(t, entries, "staging areas must be discarded")
	}
}

func TestCreateGalleryCap(t *testing.T) {
	h := newHarness(t)
	gallery := make([]listings.Upload, 4)
	for i := range gallery {
		gallery[i] = listings.Upload{Name: "g.png", Data: assettest.PNG()}
	}

	_, err := h.svc.Create(context.Background(), h.actor(), h.validInput(), listings.FileChanges{Gallery: gallery})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateReportsPartialSuccessWhenCommitFails(t *testing.T) {
	h := newHarness(t)
	svc := h.newService(t, failingCommitStore{Store: h.store})
	ctx := context.Background()

	result, err := svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover: &listings.Upload{Name: "front.png", Data: assettest.PNG()},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePartialSuccess, typed.Code())
	assert.Equal(t, map[string]any{"listing_id": result.ListingID.String()}, typed.Details())

	got, err := h.repo.FindForEdit(ctx, result.ListingID, h.owner.ID)
	require.NoError(t, err, "the row must survive a failed commit")
	assert.Equal(t, enums.ListingStatusPending, got.Status)
}

func TestUpdateReplacesCoverAfterRowWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover:   &listings.Upload{Name: "old.png", Data: assettest.PNG()},
		Gallery: []listings.Upload{{Name: "keep.png", Data: assettest.PNG()}, {Name: "drop.png", Data: assettest.PNG()}},
	})
	require.NoError(t, err)
	before, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)
	require.Len(t, before.GalleryImages, 2)
	oldCover := *before.CoverImage
	dropped := before.GalleryImages[0]
	kept := before.GalleryImages[1]

	err = h.svc.Update(ctx, h.actor(), created.ListingID, listings.UpdateInput{
		Title:     stringPtr("Corner Cafe & Bar"),
		Latitude:  float64Ptr(-41),
		Longitude: float64Ptr(-63),
		Details:   types.Details{"phone": "555-0199"},
	}, listings.FileChanges{
		Cover:         &listings.Upload{Name: "new.jpg", Data: assettest.JPEG()},
		DeleteGallery: []string{dropped, "never-existed.png"},
	})
	require.NoError(t, err)

	after, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)
	assert.Equal(t, "Corner Cafe & Bar", after.Title)
	assert.InDelta(t, -41, after.Latitude, 1e-9)
	assert.InDelta(t, -63, after.Longitude, 1e-9)
	assert.Equal(t, "555-0199", after.Details["phone"])
	assert.Equal(t, "62", after.Details["provincia_id"], "region extras are kept when details are replaced")
	assert.Equal(t, enums.ListingStatusPending, after.Status)
	require.NotNil(t, after.CoverImage)
	assert.NotEqual(t, oldCover, *after.CoverImage)
	assert.Equal(t, []string{kept}, after.GalleryImages)

	root := filepath.Join(h.backend.Root(), "listings", created.ListingID.String())
	assert.NoFileExists(t, filepath.Join(root, "coverImage", oldCover))
	assert.FileExists(t, filepath.Join(root, "coverImage", *after.CoverImage))

	assert.Equal(t, []enums.OutboxEventType{enums.EventListingCreated, enums.EventListingUpdated}, h.outboxTypes(t))
}

func TestUpdateDeleteCoverFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover: &listings.Upload{Name: "old.png", Data: assettest.PNG()},
	})
	require.NoError(t, err)
	before, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)

	require.NoError(t, h.svc.Update(ctx, h.actor(), created.ListingID, listings.UpdateInput{}, listings.FileChanges{DeleteCover: true}))

	after, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)
	assert.Nil(t, after.CoverImage)
	assert.NoFileExists(t, filepath.Join(h.backend.Root(), "listings", created.ListingID.String(), "coverImage", *before.CoverImage))
}

func TestUpdateByStrangerTouchesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover:   &listings.Upload{Name: "old.png", Data: assettest.PNG()},
		Gallery: []listings.Upload{{Name: "g.png", Data: assettest.PNG()}},
	})
	require.NoError(t, err)
	before, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)

	stranger := dbtest.MustCreateUser(t, h.conn, enums.UserRoleUser)
	err = h.svc.Update(ctx, listings.Actor{UserID: stranger.ID, Role: stranger.Role}, created.ListingID,
		listings.UpdateInput{Title: stringPtr("mine now")},
		listings.FileChanges{
			Cover:         &listings.Upload{Name: "evil.png", Data: assettest.PNG()},
			DeleteCover:   true,
			DeleteGallery: before.GalleryImages,
		})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	after, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)
	assert.Equal(t, before.Title, after.Title)
	assert.Equal(t, before.CoverImage, after.CoverImage)
	assert.Equal(t, before.GalleryImages, after.GalleryImages)

	covers, err := os.ReadDir(filepath.Join(h.backend.Root(), "listings", created.ListingID.String(), "coverImage"))
	require.NoError(t, err)
	assert.Len(t, covers, 1, "no new cover may be written")
}

func TestUpdateRemovesNewFilesWhenRowWriteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover: &listings.Upload{Name: "old.png", Data: assettest.PNG()},
	})
	require.NoError(t, err)
	before, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)

	err = h.svc.Update(ctx, h.actor(), created.ListingID,
		listings.UpdateInput{CategoryID: stringPtr(uuid.NewString())},
		listings.FileChanges{
			Cover:   &listings.Upload{Name: "new.png", Data: assettest.PNG()},
			Gallery: []listings.Upload{{Name: "g.png", Data: assettest.PNG()}},
		})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	root := filepath.Join(h.backend.Root(), "listings", created.ListingID.String())
	covers, err := os.ReadDir(filepath.Join(root, "coverImage"))
	require.NoError(t, err)
	require.Len(t, covers, 1)
	assert.Equal(t, *before.CoverImage, covers[0].Name(), "old cover is kept and the new one removed")

	gallery, err := h.store.ListGalleryFiles(ctx, created.ListingID)
	require.NoError(t, err)
	assert.Empty(t, gallery)
}

func TestUpdateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{})
	require.NoError(t, err)

	err = h.svc.Update(ctx, h.actor(), created.ListingID, listings.UpdateInput{Latitude: float64Ptr(1)}, listings.FileChanges{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	err = h.svc.Update(ctx, h.actor(), created.ListingID, listings.UpdateInput{Title: stringPtr(" ")}, listings.FileChanges{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDeleteRemovesRowAndAssets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.actor(), h.validInput(), listings.FileChanges{
		Cover: &listings.Upload{Name: "c.png", Data: assettest.PNG()},
	})
	require.NoError(t, err)

	stranger := dbtest.MustCreateUser(t, h.conn, enums.UserRoleUser)
	err = h.svc.Delete(ctx, listings.Actor{UserID: stranger.ID, Role: stranger.Role}, created.ListingID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.DirExists(t, filepath.Join(h.backend.Root(), "listings", created.ListingID.String()))

	require.NoError(t, h.svc.Delete(ctx, h.actor(), created.ListingID))
	assert.NoDirExists(t, filepath.Join(h.backend.Root(), "listings", created.ListingID.String()))

	err = h.svc.Delete(ctx, h.actor(), created.ListingID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, []enums.OutboxEventType{enums.EventListingCreated, enums.EventListingDeleted}, h.outboxTypes(t))
}

func TestSummariesReadThroughCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	published := h.seedListing(t, "Museum", 10, 10, enums.ListingStatusPublished, time.Now().UTC())
	query := listings.NewViewportQuery(listings.ParseBBoxCSV("0,0,20,20"), "")

	first, err := h.svc.Summaries(ctx, query)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Len(t, h.cache.entries, 1)

	// A row inserted behind the cache is not visible until invalidation.
	h.seedListing(t, "Zoo", 11, 11, enums.ListingStatusPublished, time.Now().UTC())
	cached, err := h.svc.Summaries(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	require.NoError(t, h.svc.Update(ctx, h.actor(), published.ID, listings.UpdateInput{Title: stringPtr("Museum of Art")}, listings.FileChanges{}))
	assert.Equal(t, 1, h.cache.invalidated)

	fresh, err := h.svc.Summaries(ctx, query)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestSummariesBypassCacheFailures(t *testing.T) {
	h := newHarness(t)
	h.cache.failReads = true
	h.seedListing(t, "Museum", 10, 10, enums.ListingStatusPublished, time.Now().UTC())

	got, err := h.svc.Summaries(context.Background(), listings.NewViewportQuery(nil, ""))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSummariesDropRowsReadBeforeInvalidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.seedListing(t, "Museum", 10, 10, enums.ListingStatusPublished, time.Now().UTC())
	query := listings.NewViewportQuery(listings.ParseBBoxCSV("0,0,20,20"), "")
	mod, admin := h.moderator(t)

	h.cache.beforeSet = func() {
		_, err := mod.Unpublish(ctx, admin, listing.ID)
		require.NoError(t, err)
	}
	inflight, err := h.svc.Summaries(ctx, query)
	require.NoError(t, err)
	assert.Len(t, inflight, 1)

	after, err := h.svc.Summaries(ctx, query)
	require.NoError(t, err)
	assert.Empty(t, after, "a listing moved back to pending must leave the map")
}

func TestOwnerLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lt := dbtest.MustCreateListingType(t, h.conn, "place")

	input := h.validInput()
	input.ListingType = lt.ID.String()
	input.Latitude = float64Ptr(-40.0)
	input.Longitude = float64Ptr(-63.0)
	created, err := h.svc.Create(ctx, h.actor(), input, listings.FileChanges{})
	require.NoError(t, err)

	dto, err := h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusPending, dto.Status)
	require.NotNil(t, dto.ListingTypeID)
	assert.Equal(t, lt.ID, *dto.ListingTypeID)

	viewport := listings.NewViewportQuery(listings.ParseBBoxCSV("-64,-41,-62,-39"), "")
	visible, err := h.svc.Summaries(ctx, viewport)
	require.NoError(t, err)
	assert.Empty(t, visible, "pending listings stay off the map")

	stranger := dbtest.MustCreateUser(t, h.conn, enums.UserRoleUser)
	strangerActor := listings.Actor{UserID: stranger.ID, Role: stranger.Role}
	err = h.svc.Update(ctx, strangerActor, created.ListingID, listings.UpdateInput{Title: stringPtr("Hijacked")}, listings.FileChanges{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	mod, admin := h.moderator(t)
	_, err = mod.Publish(ctx, strangerActor, created.ListingID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	_, err = mod.Publish(ctx, admin, created.ListingID)
	require.NoError(t, err)

	visible, err = h.svc.Summaries(ctx, viewport)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, created.ListingID, visible[0].ID)
	assert.InDelta(t, -40.0, visible[0].Latitude, 1e-9)
	assert.InDelta(t, -63.0, visible[0].Longitude, 1e-9)

	owned, err := h.svc.Owned(ctx, h.actor())
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, enums.ListingStatusPublished, owned[0].Status)
	assert.Equal(t, "Corner Cafe", owned[0].Title)

	require.NoError(t, h.svc.Delete(ctx, h.actor(), created.ListingID))
	_, err = h.svc.ForEdit(ctx, h.actor(), created.ListingID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	visible, err = h.svc.Summaries(ctx, viewport)
	require.NoError(t, err)
	assert.Empty(t, visible)
}
