package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/api/middleware"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/internal/moderation"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

// withActor seeds the context the Auth middleware would have produced.
func withActor(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: userID, Role: role}))
}

func withListingID(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("listingId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files map[string][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, names := range files {
		for _, name := range names {
			part, err := writer.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create part: %v", err)
			}
			if _, err := part.Write([]byte("png-bytes")); err != nil {
				t.Fatalf("write part: %v", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Warning *types.Problem `json:"warning"`
	Error   *types.Problem `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

type stubListingService struct {
	summaries []listings.Summary
	owned     []listings.OwnedSummary
	dto       *listings.ListingDTO
	result    listings.CreateResult
	err       error

	lastQuery  listings.ViewportQuery
	lastActor  listings.Actor
	lastID     uuid.UUID
	lastCreate listings.CreateInput
	lastUpdate listings.UpdateInput
	lastFiles  listings.FileChanges
}

func (s *stubListingService) Create(_ context.Context, actor listings.Actor, input listings.CreateInput, files listings.FileChanges) (listings.CreateResult, error) {
	s.lastActor, s.lastCreate, s.lastFiles = actor, input, files
	return s.result, s.err
}

func (s *stubListingService) Update(_ context.Context, actor listings.Actor, id uuid.UUID, input listings.UpdateInput, files listings.FileChanges) error {
	s.lastActor, s.lastID, s.lastUpdate, s.lastFiles = actor, id, input, files
	return s.err
}

func (s *stubListingService) Delete(_ context.Context, actor listings.Actor, id uuid.UUID) error {
	s.lastActor, s.lastID = actor, id
	return s.err
}

func (s *stubListingService) Summaries(_ context.Context, query listings.ViewportQuery) ([]listings.Summary, error) {
	s.lastQuery = query
	return s.summaries, s.err
}

func (s *stubListingService) Owned(_ context.Context, actor listings.Actor) ([]listings.OwnedSummary, error) {
	s.lastActor = actor
	return s.owned, s.err
}

func (s *stubListingService) ForEdit(_ context.Context, actor listings.Actor, id uuid.UUID) (*listings.ListingDTO, error) {
	s.lastActor, s.lastID = actor, id
	return s.dto, s.err
}

type stubModerationService struct {
	change *moderation.StatusChange
	page   listings.QueuePage
	err    error

	lastStatus string
	lastParams pagination.Params
	calls      []string
}

func (s *stubModerationService) ChangeStatus(_ context.Context, _ listings.Actor, id uuid.UUID, status string) (*moderation.StatusChange, error) {
	s.lastStatus = status
	s.calls = append(s.calls, "change:"+status)
	if s.err != nil {
		return nil, s.err
	}
	if s.change != nil {
		return s.change, nil
	}
	return &moderation.StatusChange{ListingID: id, Status: enums.ListingStatus(status)}, nil
}

func (s *stubModerationService) Publish(ctx context.Context, actor listings.Actor, id uuid.UUID) (*moderation.StatusChange, error) {
	return s.ChangeStatus(ctx, actor, id, string(enums.ListingStatusPublished))
}

func (s *stubModerationService) Reject(ctx context.Context, actor listings.Actor, id uuid.UUID) (*moderation.StatusChange, error) {
	return s.ChangeStatus(ctx, actor, id, string(enums.ListingStatusRejected))
}

func (s *stubModerationService) Unpublish(ctx context.Context, actor listings.Actor, id uuid.UUID) (*moderation.StatusChange, error) {
	return s.ChangeStatus(ctx, actor, id, string(enums.ListingStatusPending))
}

func (s *stubModerationService) Queue(_ context.Context, _ listings.Actor, params pagination.Params) (listings.QueuePage, error) {
	s.lastParams = params
	return s.page, s.err
}
