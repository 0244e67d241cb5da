// Package gateway implements the public HTTP surface: paginated catalog
// listings, enriched reservation listings, and the create/return reservation
// workflows that tie the catalog, rating, and rental services together.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/dskow/library-gateway/internal/circuitbreaker"
	"github.com/dskow/library-gateway/internal/clients"
	"github.com/dskow/library-gateway/internal/retryqueue"
)

var codec = jsoniter.ConfigFastest

// identityHeader carries the trusted caller identity on every
// authenticated route.
const identityHeader = "X-User-Name"

// CatalogAPI is the slice of the catalog service the gateway consumes.
// Implemented by *clients.CatalogClient.
type CatalogAPI interface {
	Libraries(ctx context.Context, city string, page, size int) (clients.LibraryPage, error)
	Library(ctx context.Context, libraryUID string) (clients.Library, error)
	Books(ctx context.Context, libraryUID string, showAll bool, page, size int) (clients.BookPage, error)
	Book(ctx context.Context, libraryUID, bookUID string) (clients.Book, error)
	DecrementAvailable(ctx context.Context, libraryUID, bookUID string) error
}

// RatingAPI is the slice of the rating service the gateway consumes.
// Implemented by *clients.RatingClient.
type RatingAPI interface {
	Stars(ctx context.Context, username string) (int, error)
	SetStars(ctx context.Context, username string, stars int) error
}

// RentalAPI is the slice of the rental service the gateway consumes.
// Implemented by *clients.RentalClient.
type RentalAPI interface {
	Reservations(ctx context.Context, username string) ([]clients.Reservation, error)
	RentedCount(ctx context.Context, username string) (int, error)
	Create(ctx context.Context, username, bookUID, libraryUID, tillDate string) (clients.Reservation, error)
	ByUID(ctx context.Context, reservationUID, username string) (clients.Reservation, error)
	CompleteReturn(ctx context.Context, reservationUID, username, condition, date, status string) error
}

// Breakers holds one independent circuit breaker per dependency.
type Breakers struct {
	Catalog *circuitbreaker.ConsecutiveBreaker
	Rating  *circuitbreaker.ConsecutiveBreaker
	Rental  *circuitbreaker.ConsecutiveBreaker
}

// Server handles the public API. Breakers and the retry queue are injected,
// constructed once at process start; the server owns no global state.
type Server struct {
	catalog  CatalogAPI
	rating   RatingAPI
	rental   RentalAPI
	breakers Breakers
	queue    *retryqueue.Queue
	logger   *slog.Logger
}

// New creates a gateway server.
func New(catalog CatalogAPI, rating RatingAPI, rental RentalAPI, breakers Breakers, queue *retryqueue.Queue, logger *slog.Logger) *Server {
	return &Server{
		catalog:  catalog,
		rating:   rating,
		rental:   rental,
		breakers: breakers,
		queue:    queue,
		logger:   logger,
	}
}

// Register adds the public API routes to the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/libraries", s.listLibraries)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}/books", s.listBooks)
	mux.HandleFunc("GET /api/v1/rating", s.getRating)
	mux.HandleFunc("GET /api/v1/reservations", s.listReservations)
	mux.HandleFunc("POST /api/v1/reservations", s.createReservation)
	mux.HandleFunc("POST /api/v1/reservations/{reservationUid}/return", s.returnBook)
}

// RouteLabel collapses path parameters into a low-cardinality route label
// for metrics.
func RouteLabel(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	// Expected shapes: api/v1/<resource>[/<uid>[/<sub>]]
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return path
	}
	switch parts[2] {
	case "libraries":
		if len(parts) >= 4 {
			return "/api/v1/libraries/{libraryUid}/books"
		}
		return "/api/v1/libraries"
	case "reservations":
		if len(parts) >= 4 {
			return "/api/v1/reservations/{reservationUid}/return"
		}
		return "/api/v1/reservations"
	case "rating":
		return "/api/v1/rating"
	}
	return path
}

// identity returns the caller identity header, or "" when missing.
func identity(r *http.Request) string {
	return r.Header.Get(identityHeader)
}

// pageParams parses page/size query parameters with the catalog's defaults.
func pageParams(r *http.Request) (page, size int) {
	page, size = 1, 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 {
		size = v
	}
	return page, size
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := codec.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}
