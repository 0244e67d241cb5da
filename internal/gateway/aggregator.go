package gateway

import (
	"errors"
	"net/http"

	"github.com/dskow/library-gateway/internal/apierror"
	"github.com/dskow/library-gateway/internal/circuitbreaker"
	"github.com/dskow/library-gateway/internal/clients"
	"github.com/dskow/library-gateway/internal/metrics"
)

// listLibraries is a paginated pass-through to the catalog. No business rule
// is validated here; breaker fallback or any catalog failure yields 503.
func (s *Server) listLibraries(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.MalformedPayload, "city parameter is required")
		return
	}
	page, size := pageParams(r)

	result, err := circuitbreaker.Protect(s.breakers.Catalog, clients.LibraryPage{}, func() (clients.LibraryPage, error) {
		return s.catalog.Libraries(r.Context(), city, page, size)
	})
	if err != nil {
		s.dependencyUnavailable(w, r, "catalog", err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// listBooks lists one library's catalog, paginated.
func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	libraryUID := r.PathValue("libraryUid")
	showAll := r.URL.Query().Get("showAll") == "true"
	page, size := pageParams(r)

	result, err := circuitbreaker.Protect(s.breakers.Catalog, clients.BookPage{}, func() (clients.BookPage, error) {
		return s.catalog.Books(r.Context(), libraryUID, showAll, page, size)
	})
	if err != nil {
		if clients.IsNotFound(err) {
			apierror.WriteJSON(w, r, http.StatusNotFound, apierror.RouteNotFound, "library not found")
			return
		}
		s.dependencyUnavailable(w, r, "catalog", err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// getRating returns the caller's current stars. The rating read is
// load-bearing here, so breaker fallback becomes a 503.
func (s *Server) getRating(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	if user == "" {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.IdentityMissing, "X-User-Name header is required")
		return
	}

	stars, err := circuitbreaker.Protect(s.breakers.Rating, 0, func() (int, error) {
		return s.rating.Stars(r.Context(), user)
	})
	if err != nil {
		s.dependencyUnavailable(w, r, "rating", err)
		return
	}

	s.writeJSON(w, http.StatusOK, RatingSummary{Stars: stars})
}

// listReservations returns the caller's reservations, each enriched with
// best-effort book and library snapshots. The rental record is authoritative
// and always included; failed enrichment degrades to empty-string fields.
func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	if user == "" {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.IdentityMissing, "X-User-Name header is required")
		return
	}

	records, err := circuitbreaker.Protect(s.breakers.Rental, nil, func() ([]clients.Reservation, error) {
		return s.rental.Reservations(r.Context(), user)
	})
	if err != nil {
		s.dependencyUnavailable(w, r, "rental", err)
		return
	}

	views := make([]ReservationView, 0, len(records))
	for _, rec := range records {
		views = append(views, s.enrich(r, rec))
	}

	s.writeJSON(w, http.StatusOK, views)
}

// enrich merges one rental record with catalog snapshots.
func (s *Server) enrich(r *http.Request, rec clients.Reservation) ReservationView {
	view := ReservationView{
		ReservationUID: rec.ReservationUID,
		Status:         rec.Status,
		StartDate:      rec.StartDate,
		TillDate:       rec.TillDate,
		Book:           BookSummary{BookUID: rec.BookUID},
		Library:        LibrarySummary{LibraryUID: rec.LibraryUID},
	}
	if view.Status == "" {
		view.Status = clients.StatusRented
	}

	if rec.BookUID != "" && rec.LibraryUID != "" {
		book, err := circuitbreaker.Protect(s.breakers.Catalog, clients.Book{}, func() (clients.Book, error) {
			return s.catalog.Book(r.Context(), rec.LibraryUID, rec.BookUID)
		})
		if err != nil {
			s.logger.Debug("book enrichment degraded", "book", rec.BookUID, "error", err)
		} else {
			view.Book.Name = book.Name
			view.Book.Author = book.Author
			view.Book.Genre = book.Genre
		}
	}

	if rec.LibraryUID != "" {
		lib, err := circuitbreaker.Protect(s.breakers.Catalog, clients.Library{}, func() (clients.Library, error) {
			return s.catalog.Library(r.Context(), rec.LibraryUID)
		})
		if err != nil {
			s.logger.Debug("library enrichment degraded", "library", rec.LibraryUID, "error", err)
		} else {
			view.Library.Name = lib.Name
			view.Library.Address = lib.Address
			view.Library.City = lib.City
		}
	}

	return view
}

// dependencyUnavailable writes the fixed unavailable-service payload.
func (s *Server) dependencyUnavailable(w http.ResponseWriter, r *http.Request, dependency string, err error) {
	reason := "error"
	if errors.Is(err, circuitbreaker.ErrOpen) {
		reason = "circuit_open"
	}
	metrics.DependencyErrors.WithLabelValues(dependency, reason).Inc()

	s.logger.Warn("dependency unavailable",
		"dependency", dependency,
		"path", r.URL.Path,
		"error", err,
	)
	apierror.WriteJSON(w, r, http.StatusServiceUnavailable, apierror.ServiceUnavailable, "service unavailable")
}
