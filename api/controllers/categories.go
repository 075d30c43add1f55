package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/geodirectory-backend/api/responses"
	"github.com/angelmondragon/geodirectory-backend/internal/categories"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
)

// CategoryReader is the read side of the category lookup tables.
type CategoryReader interface {
	ListCategories(ctx context.Context) ([]categories.CategoryDTO, error)
	ListListingTypes(ctx context.Context) ([]categories.ListingTypeDTO, error)
}

func ListCategories(repo CategoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category repository unavailable"))
			return
		}
		items, err := repo.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories"))
			return
		}
		if items == nil {
			items = []categories.CategoryDTO{}
		}
		responses.WriteSuccess(w, items)
	}
}

func ListListingTypes(repo CategoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category repository unavailable"))
			return
		}
		items, err := repo.ListListingTypes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list listing types"))
			return
		}
		if items == nil {
			items = []categories.ListingTypeDTO{}
		}
		responses.WriteSuccess(w, items)
	}
}
