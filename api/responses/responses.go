package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// Codes whose message was written for the caller and can be shown as is.
var publicMessageCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:     true,
	pkgerrors.CodeInvalidAsset:   true,
	pkgerrors.CodeInvalidStatus:  true,
	pkgerrors.CodeUnauthorized:   true,
	pkgerrors.CodeForbidden:      true,
	pkgerrors.CodeNotFound:       true,
	pkgerrors.CodeConflict:       true,
	pkgerrors.CodePartialSuccess: true,
	pkgerrors.CodeRateLimit:      true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.Envelope{Data: data})
}

// WriteError maps err onto its HTTP status and public problem. Errors
// without a code are reported as internal.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	if logg != nil {
		logg.Error(logg.WithFields(ctx, pkgerrors.LogFields(err)), "request.error", err)
	}
	status, problem := problemFor(typed)
	writeJSON(w, status, types.Envelope{Error: problem})
}

// WriteWarning reports an operation that committed its primary write but
// failed a follow-up step. The data is still returned next to the warning.
func WriteWarning(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, data any, err error) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePartialSuccess {
		WriteError(ctx, logg, w, err)
		return
	}

	if logg != nil {
		ctx = logg.WithField(logg.WithFields(ctx, pkgerrors.LogFields(err)), "error", err.Error())
		logg.Warn(ctx, "request.partial_success")
	}
	status, problem := problemFor(typed)
	writeJSON(w, status, types.Envelope{Data: data, Warning: problem})
}

func problemFor(typed *pkgerrors.Error) (int, *types.Problem) {
	meta := pkgerrors.MetadataFor(typed.Code())
	problem := &types.Problem{
		Code:    string(typed.Code()),
		Message: meta.PublicMessage,
	}
	if publicMessageCodes[typed.Code()] && typed.Message() != "" {
		problem.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		problem.Details = typed.Details()
	}
	return meta.HTTPStatus, problem
}

func writeJSON(w http.ResponseWriter, status int, payload types.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; nothing useful can be sent on failure.
	_ = json.NewEncoder(w).Encode(payload)
}
