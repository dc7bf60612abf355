package router

import (
	"net/http"

	"github.com/ghostauditor/backend/internal/auth"
	"github.com/ghostauditor/backend/internal/billing"
	"github.com/ghostauditor/backend/internal/catalog"
	"github.com/ghostauditor/backend/internal/devices"
	"github.com/ghostauditor/backend/internal/ledger"
	"github.com/ghostauditor/backend/internal/middleware"
)

// Handlers collects the per-slice handlers the router wires up.
type Handlers struct {
	Auth    *auth.Handler
	Ledger  *ledger.Handler
	Catalog *catalog.Handler
	Billing *billing.Handler
	Devices *devices.Handler
}

// New returns an http.Handler serving the API under /api/v1. Everything
// except register and login sits behind bearer auth; admin routes
// additionally require the admin role.
func New(h Handlers, tokens middleware.TokenValidator, accounts middleware.AccountLookup) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", h.Auth.Login)

	authed := middleware.BearerAuth(tokens, accounts)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(fn))
	}
	admin := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(middleware.RequireAdmin(fn)))
	}

	handle("GET "+base+"/balance", h.Ledger.GetBalance)
	handle("GET "+base+"/credit-ledger", h.Ledger.ListEntries)
	handle("GET "+base+"/menu", h.Catalog.Menu)

	handle("POST "+base+"/quotes", h.Billing.CreateQuote)
	handle("GET "+base+"/quotes/{id}/content", h.Billing.DeliverContent)
	handle("POST "+base+"/quotes/{id}/confirm", h.Billing.ConfirmQuote)

	admin("POST "+base+"/admin/accounts/{id}/credits", h.Ledger.GrantCredits)
	admin("GET "+base+"/admin/accounts/{id}/devices", h.Devices.ListDevices)
	admin("DELETE "+base+"/admin/accounts/{id}/devices", h.Devices.ResetDevices)
	admin("GET "+base+"/admin/groups", h.Catalog.ListGroups)
	admin("PUT "+base+"/admin/groups/{name}/price", h.Catalog.SetGroupPrice)
	admin("POST "+base+"/admin/scenarios", h.Catalog.CreateScenario)
	admin("PATCH "+base+"/admin/scenarios/{id}/active", h.Catalog.SetScenarioActive)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}
