package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/odyssey-erp/runway/internal/shared"
)

func TestRespondErrorMapsLedgerErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.NotFound("company", "x"), http.StatusNotFound},
		{fmt.Errorf("tx: %w", shared.ErrAlreadyPosted), http.StatusConflict},
		{&shared.DuplicateAccountCodeError{Code: "1000"}, http.StatusConflict},
		{shared.Validation("as_of", "bad date"), http.StatusBadRequest},
		{&shared.UnbalancedPostingError{Debit: 1, Credit: 2}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		var problem ProblemDetail
		if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
			t.Fatalf("decode problem: %v", err)
		}
		if problem.Status != tc.status {
			t.Fatalf("problem status %d != %d", problem.Status, tc.status)
		}
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.1:5432: refused"))
	var problem ProblemDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Detail != "" {
		t.Fatalf("internal detail leaked: %q", problem.Detail)
	}
}
