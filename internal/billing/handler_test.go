package billing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghostauditor/backend/internal/ledger"
	"github.com/ghostauditor/backend/internal/pricing"
)

// TestServiceErrorMapping pins the sentinel-to-status contract clients
// depend on, in particular 402 for insufficient funds and 409 for expired
// quotes.
func TestServiceErrorMapping(t *testing.T) {
	h := NewHandler(nil, nil)

	cases := []struct {
		err  error
		want int
	}{
		{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{pricing.ErrContentNotFound, http.StatusNotFound},
		{ErrGroupNotAllowed, http.StatusForbidden},
		{ErrQuoteNotFound, http.StatusNotFound},
		{ErrQuoteExpired, http.StatusConflict},
		{ledger.ErrAccountNotFound, http.StatusNotFound},
		{errors.New("database exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeServiceError(rec, "test", tc.err)
		if rec.Code != tc.want {
			t.Errorf("%v: got %d, want %d", tc.err, rec.Code, tc.want)
		}
	}

	// Wrapped sentinels map the same way.
	rec := httptest.NewRecorder()
	h.writeServiceError(rec, "test", errors.Join(errors.New("context"), ErrQuoteExpired))
	if rec.Code != http.StatusConflict {
		t.Errorf("wrapped sentinel: got %d, want 409", rec.Code)
	}
}
