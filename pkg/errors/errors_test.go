package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeInvalidAsset, status: http.StatusBadRequest, publicMsg: "asset rejected", detailsOK: true},
		{code: CodeInvalidStatus, status: http.StatusBadRequest, publicMsg: "invalid status", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodePartialSuccess, status: http.StatusMultiStatus, publicMsg: "saved with warnings", detailsOK: true},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "storage failure", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeStorage, cause, "write asset")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeStorage {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "STORAGE_ERROR: write asset: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if !Is(err, CodeForbidden) || Is(err, CodeNotFound) {
		t.Fatalf("Is returned unexpected result")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should map to internal")
	}
}

func TestLogFieldsExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_listings_category", TableName: "listings", Message: "violates foreign key"}
	err := Wrap(CodeConflict, pgErr, "insert listing").WithDetails(map[string]any{"step": "insert_listing"})

	fields := LogFields(err)
	if fields["pg_code"] != "23503" || fields["pg_constraint"] != "fk_listings_category" || fields["pg_table"] != "listings" {
		t.Fatalf("unexpected pg fields %+v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty driver fields should be omitted")
	}
	if fields["step"] != "insert_listing" {
		t.Fatalf("expected step from details, got %v", fields["step"])
	}
	if chain, _ := fields["error_chain"].([]string); len(chain) != 2 {
		t.Fatalf("expected two links in chain, got %v", fields["error_chain"])
	}
}

func TestLogFieldsForPlainError(t *testing.T) {
	fields := LogFields(stdErrors.New("boom"))
	if len(fields) != 1 {
		t.Fatalf("plain errors should only report their chain, got %v", fields)
	}
	if _, ok := fields["step"]; ok {
		t.Fatalf("untyped errors carry no step")
	}
	if len(LogFields(nil)) != 0 {
		t.Fatalf("nil error should produce no fields")
	}
}
