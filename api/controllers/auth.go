package controllers

import (
	"net/http"

	"github.com/angelmondragon/geodirectory-backend/api/responses"
	"github.com/angelmondragon/geodirectory-backend/api/validators"
	"github.com/angelmondragon/geodirectory-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
)

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// AuthLogin exchanges credentials for an access token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, errAuthUnavailable)
			return
		}
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AuthRegister opens an account and signs the new user in. When only the
// sign in fails the account is still reported with a warning.
func AuthRegister(reg auth.RegisterService, svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, errAuthUnavailable)
			return
		}
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := reg.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Login(r.Context(), auth.LoginRequest{Email: body.Email, Password: body.Password})
		if err != nil {
			warning := pkgerrors.Wrap(pkgerrors.CodePartialSuccess, err, "account created; sign in to continue")
			responses.WriteWarning(r.Context(), logg, w, auth.LoginResponse{User: user}, warning)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
