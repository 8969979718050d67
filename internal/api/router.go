package api

import (
	"database/sql"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/store"
)

// Options configures the API router.
type Options struct {
	Issuer *auth.Issuer
	// Images processes item photos; nil uses the default limits.
	Images *imaging.Processor
	// AllowInactiveTransfer lets inactive items be moved.
	AllowInactiveTransfer bool
	Reports               store.ReportOptions
	LoginRate             rate.Limit
	LoginBurst            int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	if opts.Images == nil {
		opts.Images = imaging.NewProcessor()
	}

	authHandler := &AuthHandler{DB: db, Issuer: opts.Issuer}
	usersHandler := &UsersHandler{DB: db}
	itemTypesHandler := &ItemTypesHandler{DB: db}
	locationsHandler := &LocationsHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Images: opts.Images, AllowInactive: opts.AllowInactiveTransfer}
	reportsHandler := &ReportsHandler{DB: db, Options: opts.Reports}
	tabularHandler := &TabularHandler{DB: db, AllowInactive: opts.AllowInactiveTransfer}

	authMW := AuthMiddleware(opts.Issuer)
	loginLimiter := NewRateLimiter(opts.LoginRate, opts.LoginBurst)

	// Public: login.
	mux.Handle("POST /api/auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))

	// Everything else requires a valid token.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	mux.Handle("GET /api/users", authMW(http.HandlerFunc(usersHandler.List)))
	mux.Handle("POST /api/users", authMW(http.HandlerFunc(usersHandler.Create)))

	mux.Handle("GET /api/item-types", authMW(http.HandlerFunc(itemTypesHandler.List)))
	mux.Handle("POST /api/item-types", authMW(http.HandlerFunc(itemTypesHandler.Create)))
	mux.Handle("GET /api/item-types/{id}", authMW(http.HandlerFunc(itemTypesHandler.Get)))

	mux.Handle("GET /api/locations", authMW(http.HandlerFunc(locationsHandler.List)))
	mux.Handle("POST /api/locations", authMW(http.HandlerFunc(locationsHandler.Create)))
	mux.Handle("GET /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Get)))
	mux.Handle("PUT /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Update)))

	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("POST /api/items/bulk-transfer", authMW(http.HandlerFunc(itemsHandler.BulkTransfer)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PATCH /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("POST /api/items/{id}/transfer", authMW(http.HandlerFunc(itemsHandler.Transfer)))
	mux.Handle("GET /api/items/{id}/history", authMW(http.HandlerFunc(itemsHandler.History)))

	mux.Handle("GET /api/reports/stats", authMW(http.HandlerFunc(reportsHandler.Stats)))
	mux.Handle("GET /api/reports/types", authMW(http.HandlerFunc(reportsHandler.ByType)))
	mux.Handle("GET /api/reports/locations", authMW(http.HandlerFunc(reportsHandler.ByLocation)))
	mux.Handle("GET /api/reports/locations/full", authMW(http.HandlerFunc(reportsHandler.LocationsFull)))

	mux.Handle("POST /api/import/items", authMW(http.HandlerFunc(tabularHandler.Import)))
	mux.Handle("GET /api/export/items", authMW(http.HandlerFunc(tabularHandler.Export)))

	return mux
}
