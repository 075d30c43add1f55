package controllers

import (
	"net/http"

	"github.com/angelmondragon/geodirectory-backend/api/responses"
	"github.com/angelmondragon/geodirectory-backend/api/validators"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
)

const maxSearchLength = 100

// ListingsMap serves the public map viewport. The box is read from
// bbox=west,south,east,north or from the four separate bound parameters.
func ListingsMap(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		params := r.URL.Query()
		box := listings.ParseBBoxCSV(params.Get("bbox"))
		if box == nil {
			box = listings.ParseBBoxBounds(params.Get("west"), params.Get("south"), params.Get("east"), params.Get("north"))
		}
		query := listings.NewViewportQuery(box, validators.QueryString(r, "q", maxSearchLength))

		summaries, err := svc.Summaries(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if summaries == nil {
			summaries = []listings.Summary{}
		}
		responses.WriteSuccess(w, summaries)
	}
}

// ListingsMine lists every listing owned by the caller regardless of status.
func ListingsMine(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owned, err := svc.Owned(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if owned == nil {
			owned = []listings.OwnedSummary{}
		}
		responses.WriteSuccess(w, owned)
	}
}

func ListingForEdit(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.ForEdit(r.Context(), actor, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListingCreate accepts the multipart listing form. A listing whose row was
// saved but whose images were not is answered with 207 and a warning.
func ListingCreate(svc listings.Service, limits ListingFormLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		form, err := validators.ParseMultipartForm(w, r, limits.MaxBodyBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.RemoveAll()

		input, err := parseCreateForm(form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		files, err := parseFileChanges(form, limits.MaxGalleryFiles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), actor, input, files)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodePartialSuccess) {
				responses.WriteWarning(r.Context(), logg, w, result, err)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ListingUpdate(svc listings.Service, limits ListingFormLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		form, err := validators.ParseMultipartForm(w, r, limits.MaxBodyBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.RemoveAll()

		input, err := parseUpdateForm(form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		files, err := parseFileChanges(form, limits.MaxGalleryFiles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Update(r.Context(), actor, listingID, input, files); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listings.CreateResult{ListingID: listingID})
	}
}

func ListingDelete(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, listingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
