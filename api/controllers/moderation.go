package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/api/responses"
	"github.com/angelmondragon/geodirectory-backend/api/validators"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/internal/moderation"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
)

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ModerationChangeStatus applies the status named in the request body.
func ModerationChangeStatus(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
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

		var body changeStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		change, err := svc.ChangeStatus(r.Context(), actor, listingID, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

// ModerationTransitionFunc is one of the fixed transitions of the service,
// e.g. moderation.Service.Publish.
type ModerationTransitionFunc func(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*moderation.StatusChange, error)

// ModerationTransition exposes a fixed transition as a bodyless endpoint.
func ModerationTransition(transition ModerationTransitionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if transition == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
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

		change, err := transition(r.Context(), actor, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

// ModerationQueue pages through listings waiting for review.
func ModerationQueue(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.Queue(r.Context(), actor, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if page.Items == nil {
			page.Items = []listings.QueueItem{}
		}
		responses.WriteSuccess(w, page)
	}
}
