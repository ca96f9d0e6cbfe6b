package json

import (
	gojson "encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
)

func TestWriteClassifiedErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.NewValidationError("name is required"), http.StatusBadRequest, domain.KindValidation},
		{&domain.UnknownOperationError{Operation: "launch_rocket"}, http.StatusNotFound, domain.KindUnknownOperation},
		{&domain.ReferenceNotFoundError{Kind: "user", ID: "u-1"}, http.StatusUnprocessableEntity, domain.KindReferenceNotFound},
		{&domain.GatewayTimeoutError{Operation: "get_user", Timeout: time.Second}, http.StatusGatewayTimeout, domain.KindGatewayTimeout},
		{&domain.TransientStoreError{Op: "insert", Err: errors.New("down")}, http.StatusServiceUnavailable, domain.KindTransientStore},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteClassifiedError(rec, tc.err)

		if rec.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.kind, tc.status, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: unexpected content type %q", tc.kind, ct)
		}

		var body ErrorResponse
		if err := gojson.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode body: %v", tc.kind, err)
		}
		if body.Error != tc.kind {
			t.Fatalf("expected kind %s in body, got %s", tc.kind, body.Error)
		}
		if body.Message == "" {
			t.Fatalf("%s: message missing", tc.kind)
		}
	}
}

func TestWriteClassifiedErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteClassifiedError(rec, errors.New("pod ip leaked in here"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := gojson.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message == "pod ip leaked in here" {
		t.Fatal("internal error detail must not reach the client")
	}
}
