package listings_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/dbtest"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

func TestInsertForcesPendingAndRoundTripsLocation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	listing := &models.Listing{
		UserID:     h.owner.ID,
		Title:      "Lighthouse",
		CategoryID: h.category.ID,
		Location:   types.GeographyPoint{Lat: -40.8135, Lng: -62.9967},
		Address:    "Costanera",
		Status:     enums.ListingStatusPublished,
	}
	id, err := h.repo.Insert(ctx, listing)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	got, err := h.repo.FindForEdit(ctx, id, h.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusPending, got.Status)
	assert.Nil(t, got.CoverImage)
	assert.InDelta(t, -40.8135, got.Location.Lat, 1e-6)
	assert.InDelta(t, -62.9967, got.Location.Lng, 1e-6)
}

func TestInsertUnknownCategoryIsValidationError(t *testing.T) {
	h := newHarness(t)

	_, err := h.repo.Insert(context.Background(), &models.Listing{
		UserID:     h.owner.ID,
		Title:      "Orphan",
		CategoryID: uuid.New(),
		Location:   types.GeographyPoint{Lat: 1, Lng: 1},
		Address:    "nowhere",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestFindPublishedInBounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now().UTC()

	near := h.seedListing(t, "Near Bakery", 10, 10, enums.ListingStatusPublished, now)
	far := h.seedListing(t, "Far Bakery", 50, 50, enums.ListingStatusPublished, now)
	h.seedListing(t, "Pending Bakery", 10, 10, enums.ListingStatusPending, now)
	h.seedListing(t, "Rejected Bakery", 10, 10, enums.ListingStatusRejected, now)

	cases := []struct {
		name  string
		query listings.ViewportQuery
		want  []uuid.UUID
	}{
		{
			name:  "no filters returns every published listing",
			query: listings.NewViewportQuery(nil, ""),
			want:  []uuid.UUID{near.ID, far.ID},
		},
		{
			name:  "bbox keeps contained points",
			query: listings.NewViewportQuery(listings.ParseBBoxCSV("0,0,20,20"), ""),
			want:  []uuid.UUID{near.ID},
		},
		{
			name:  "bbox covering both",
			query: listings.NewViewportQuery(listings.ParseBBoxCSV("0,0,60,60"), ""),
			want:  []uuid.UUID{near.ID, far.ID},
		},
		{
			name:  "three bounds are ignored",
			query: listings.NewViewportQuery(listings.ParseBBoxBounds("0", "0", "20", ""), ""),
			want:  []uuid.UUID{near.ID, far.ID},
		},
		{
			name:  "swapped latitudes are normalized",
			query: listings.NewViewportQuery(listings.ParseBBoxCSV("0,20,20,0"), ""),
			want:  []uuid.UUID{near.ID},
		},
		{
			name:  "two character search is ignored",
			query: listings.NewViewportQuery(nil, "ne"),
			want:  []uuid.UUID{near.ID, far.ID},
		},
		{
			name:  "three character search filters case-insensitively anywhere",
			query: listings.NewViewportQuery(nil, "EAR"),
			want:  []uuid.UUID{near.ID},
		},
		{
			name:  "search and bbox combine",
			query: listings.NewViewportQuery(listings.ParseBBoxCSV("40,40,60,60"), "bakery"),
			want:  []uuid.UUID{far.ID},
		},
		{
			name:  "like metacharacters are literal",
			query: listings.NewViewportQuery(nil, "%%%"),
			want:  []uuid.UUID{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.repo.FindPublishedInBounds(ctx, tc.query)
			require.NoError(t, err)
			ids := make([]uuid.UUID, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
				assert.Equal(t, "cup", s.MarkerIconSlug)
			}
			assert.ElementsMatch(t, tc.want, ids)
		})
	}
}

func TestFindPublishedInBoundsAcrossAntimeridian(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UTC()
	east := h.seedListing(t, "Fiji", -17, 178, enums.ListingStatusPublished, now)
	west := h.seedListing(t, "Samoa", -13, -172, enums.ListingStatusPublished, now)
	h.seedListing(t, "Greenwich", 51, 0, enums.ListingStatusPublished, now)

	got, err := h.repo.FindPublishedInBounds(context.Background(),
		listings.NewViewportQuery(&db.BBox{West: 170, South: -30, East: -160, North: 0}, ""))
	require.NoError(t, err)

	ids := []uuid.UUID{}
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{east.ID, west.ID}, ids)
}

func TestFindPublishedInBoundsCapsResults(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UTC()
	for i := 0; i < listings.MapResultLimit+5; i++ {
		h.seedListing(t, fmt.Sprintf("Kiosk %d", i), 1, 1, enums.ListingStatusPublished, now)
	}

	got, err := h.repo.FindPublishedInBounds(context.Background(), listings.NewViewportQuery(nil, ""))
	require.NoError(t, err)
	assert.Len(t, got, listings.MapResultLimit)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID.String(), got[i].ID.String(), "results are ordered by id")
	}
}

func TestUpdateIsOwnerScopedAndLeavesStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.seedListing(t, "Old Title", 1, 1, enums.ListingStatusPublished, time.Now().UTC())

	stranger := dbtest.MustCreateUser(t, h.conn, enums.UserRoleUser)
	hijack := listing
	hijack.UserID = stranger.ID
	hijack.Title = "Hijacked"
	err := h.repo.Update(ctx, &hijack)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	edit := listing
	edit.Title = "New Title"
	edit.Status = enums.ListingStatusRejected
	edit.Location = types.GeographyPoint{Lat: 2, Lng: 3}
	require.NoError(t, h.repo.Update(ctx, &edit))

	got, err := h.repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, enums.ListingStatusPublished, got.Status)
	assert.InDelta(t, 2, got.Location.Lat, 1e-9)
	assert.InDelta(t, 3, got.Location.Lng, 1e-9)
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.seedListing(t, "Gallery", 1, 1, enums.ListingStatusPending, time.Now().UTC())

	require.NoError(t, h.repo.SetStatus(ctx, listing.ID, enums.ListingStatusPublished))
	got, err := h.repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusPublished, got.Status)

	err = h.repo.SetStatus(ctx, listing.ID, enums.ListingStatusDraft)
	assert.Equal(t, pkgerrors.CodeInvalidStatus, pkgerrors.CodeOf(err))

	err = h.repo.SetStatus(ctx, uuid.New(), enums.ListingStatusRejected)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestFindOwnedNewestFirst(t *testing.T) {
	h := newHarness(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := h.seedListing(t, "First", 1, 1, enums.ListingStatusPending, base)
	second := h.seedListing(t, "Second", 1, 1, enums.ListingStatusPublished, base.Add(time.Hour))

	other := dbtest.MustCreateUser(t, h.conn, enums.UserRoleUser)
	require.NoError(t, h.conn.Create(&models.Listing{
		UserID:     other.ID,
		Title:      "Not mine",
		CategoryID: h.category.ID,
		Location:   types.GeographyPoint{Lat: 1, Lng: 1},
		Address:    "x",
	}).Error)

	owned, err := h.repo.FindOwned(context.Background(), h.owner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, second.ID, owned[0].ID)
	assert.Equal(t, first.ID, owned[1].ID)
	assert.Equal(t, "cafes", owned[0].CategoryName)
	assert.Equal(t, enums.ListingStatusPublished, owned[0].Status)
}

func TestDeleteReportsRemoval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.seedListing(t, "Doomed", 1, 1, enums.ListingStatusPending, time.Now().UTC())

	removed, err := h.repo.Delete(ctx, listing.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = h.repo.Delete(ctx, listing.ID, h.owner.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = h.repo.FindForEdit(ctx, listing.ID, h.owner.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestListByStatusPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var want []uuid.UUID
	for i := 0; i < 5; i++ {
		l := h.seedListing(t, fmt.Sprintf("Pending %d", i), 1, 1, enums.ListingStatusPending, base.Add(time.Duration(i)*time.Minute))
		want = append(want, l.ID)
	}
	h.seedListing(t, "Live", 1, 1, enums.ListingStatusPublished, base)

	var got []uuid.UUID
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := h.repo.ListByStatus(ctx, enums.ListingStatusPending, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, item := range page.Items {
			got = append(got, item.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, want, got)

	_, err := h.repo.ListByStatus(ctx, enums.ListingStatusPending, pagination.Params{Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestResolveListingType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lt := dbtest.MustCreateListingType(t, h.conn, "event")

	id, err := h.repo.ResolveListingType(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = h.repo.ResolveListingType(ctx, "event")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, lt.ID, *id)

	id, err = h.repo.ResolveListingType(ctx, lt.ID.String())
	require.NoError(t, err)
	assert.Equal(t, lt.ID, *id)

	_, err = h.repo.ResolveListingType(ctx, "spaceship")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
