package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/api/middleware"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (listings.Actor, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return listings.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return listings.Actor{UserID: id.UserID, Role: id.Role}, nil
}

// listingIDParam reads the {listingId} route parameter. Malformed ids are
// reported as not found so they look like any other missing listing.
func listingIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "listingId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return id, nil
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "userId")))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return id, nil
}
