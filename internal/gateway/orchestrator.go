package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dskow/library-gateway/internal/apierror"
	"github.com/dskow/library-gateway/internal/circuitbreaker"
	"github.com/dskow/library-gateway/internal/clients"
	"github.com/dskow/library-gateway/internal/retryqueue"
)

// dateLayout is the calendar-date granularity all reservation dates use.
// No timezone normalization happens beyond this.
const dateLayout = "2006-01-02"

// Reputation deltas. Creating a reservation never touches the score: stars
// only move on return, so a user with N stars holds at most N concurrent
// rentals. A return earns +1; a late return additionally applies the expiry
// penalty. The policy intent behind rewarding late returns with a larger
// positive delta is inherited as-is.
const (
	returnReward  = 1
	expiryPenalty = 10
)

var (
	errQuotaExceeded     = errors.New("maximum number of rented books reached")
	errRatingUnavailable = errors.New("rating service unavailable")
	errRentalFailed      = errors.New("rental service unavailable")
	errNotFound          = errors.New("reservation not found")
)

// createReservation implements POST /api/v1/reservations.
func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	if user == "" {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.IdentityMissing, "X-User-Name header is required")
		return
	}

	var req CreateReservationRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.MalformedPayload, "invalid JSON body")
		return
	}
	if req.BookUID == "" || req.LibraryUID == "" || req.TillDate == "" {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.MalformedPayload, "bookUid, libraryUid and tillDate are required")
		return
	}
	if _, err := time.Parse(dateLayout, req.TillDate); err != nil {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.MalformedPayload, "tillDate must be formatted as YYYY-MM-DD")
		return
	}

	result, err := s.reserve(r.Context(), user, req)
	switch {
	case errors.Is(err, errQuotaExceeded):
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.QuotaExceeded, "maximum number of rented books reached")
		return
	case errors.Is(err, errRatingUnavailable):
		s.dependencyUnavailable(w, r, "rating", err)
		return
	case err != nil:
		s.dependencyUnavailable(w, r, "rental", err)
		return
	}

	if !result.InventoryDecremented {
		s.logger.Warn("reservation created degraded",
			"user", user,
			"reservation", result.Response.ReservationUID,
			"inventory_decremented", result.InventoryDecremented,
		)
	}

	s.writeJSON(w, http.StatusOK, result.Response)
}

// reserve runs the create-reservation workflow. The steps are not atomic
// across dependencies: the rental record creation is the only load-bearing
// mutation, and every later step is safely skippable on failure.
func (s *Server) reserve(ctx context.Context, user string, req CreateReservationRequest) (CreateResult, error) {
	// Step 1: current rented count. A failed read degrades to 0 — a
	// permissive default, not a hard failure.
	count, err := circuitbreaker.Protect(s.breakers.Rental, 0, func() (int, error) {
		return s.rental.RentedCount(ctx, user)
	})
	if err != nil {
		s.logger.Warn("rented count unavailable, assuming 0", "user", user, "error", err)
		count = 0
	}

	// Step 2: the rating is the authorizing input and has no safe default.
	stars, err := circuitbreaker.Protect(s.breakers.Rating, 0, func() (int, error) {
		return s.rating.Stars(ctx, user)
	})
	if err != nil {
		return CreateResult{}, errRatingUnavailable
	}

	// Step 3: quota. Nothing has mutated yet, so this is a pure validation
	// failure.
	if count >= stars {
		return CreateResult{}, errQuotaExceeded
	}

	// Step 4: best-effort snapshots for response enrichment.
	book, bookErr := circuitbreaker.Protect(s.breakers.Catalog, clients.Book{}, func() (clients.Book, error) {
		return s.catalog.Book(ctx, req.LibraryUID, req.BookUID)
	})
	if bookErr != nil {
		s.logger.Debug("book snapshot degraded", "book", req.BookUID, "error", bookErr)
	}
	library, libErr := circuitbreaker.Protect(s.breakers.Catalog, clients.Library{}, func() (clients.Library, error) {
		return s.catalog.Library(ctx, req.LibraryUID)
	})
	if libErr != nil {
		s.logger.Debug("library snapshot degraded", "library", req.LibraryUID, "error", libErr)
	}

	// Step 5: the one mutation that defines whether the reservation exists.
	record, err := circuitbreaker.Protect(s.breakers.Rental, clients.Reservation{}, func() (clients.Reservation, error) {
		return s.rental.Create(ctx, user, req.BookUID, req.LibraryUID, req.TillDate)
	})
	if err != nil {
		return CreateResult{}, errRentalFailed
	}

	var result CreateResult

	// Step 6: inventory decrement, fire-and-forget. The reservation already
	// exists; inventory drift is tolerable and eventually correctable.
	// The score itself is untouched: granting the rental reward here would
	// raise the quota ahead of the first return.
	decErr := circuitbreaker.Do(s.breakers.Catalog, func() error {
		return s.catalog.DecrementAvailable(ctx, req.LibraryUID, req.BookUID)
	})
	result.InventoryDecremented = decErr == nil
	if decErr != nil {
		s.logger.Warn("inventory decrement failed",
			"book", req.BookUID,
			"library", req.LibraryUID,
			"error", decErr,
		)
	}

	status := record.Status
	if status == "" {
		status = clients.StatusRented
	}
	result.Response = ReservationCreatedView{
		ReservationView: ReservationView{
			ReservationUID: record.ReservationUID,
			Status:         status,
			StartDate:      record.StartDate,
			TillDate:       req.TillDate,
			Book: BookSummary{
				BookUID: req.BookUID,
				Name:    book.Name,
				Author:  book.Author,
				Genre:   book.Genre,
			},
			Library: LibrarySummary{
				LibraryUID: req.LibraryUID,
				Name:       library.Name,
				Address:    library.Address,
				City:       library.City,
			},
		},
		Rating: RatingSummary{Stars: stars},
	}
	return result, nil
}

// returnBook implements POST /api/v1/reservations/{reservationUid}/return.
func (s *Server) returnBook(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	if user == "" {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.IdentityMissing, "X-User-Name header is required")
		return
	}
	reservationUID := r.PathValue("reservationUid")

	var req ReturnRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.MalformedPayload, "invalid JSON body")
		return
	}
	returnedDate, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		apierror.WriteJSON(w, r, http.StatusBadRequest, apierror.MalformedPayload, "date must be formatted as YYYY-MM-DD")
		return
	}

	result, err := s.completeReturn(r.Context(), user, reservationUID, req.Condition, req.Date, returnedDate)
	switch {
	case errors.Is(err, errNotFound):
		apierror.WriteJSON(w, r, http.StatusNotFound, apierror.ReservationNotFound, "reservation not found")
		return
	case err != nil:
		s.dependencyUnavailable(w, r, "rental", err)
		return
	}

	if !result.StatusPersisted || result.Rating == RatingQueued {
		s.logger.Warn("return completed degraded",
			"user", user,
			"reservation", reservationUID,
			"status_persisted", result.StatusPersisted,
			"rating_outcome", string(result.Rating),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// completeReturn runs the return-book workflow. The customer-visible return
// is complete once the record is fetched and the status computed; persisting
// the transition and the reputation bookkeeping are best-effort.
func (s *Server) completeReturn(ctx context.Context, user, reservationUID, condition, dateStr string, returnedDate time.Time) (ReturnResult, error) {
	record, err := circuitbreaker.Protect(s.breakers.Rental, clients.Reservation{}, func() (clients.Reservation, error) {
		return s.rental.ByUID(ctx, reservationUID, user)
	})
	if err != nil {
		if clients.IsNotFound(err) {
			return ReturnResult{}, errNotFound
		}
		return ReturnResult{}, errRentalFailed
	}

	// Strictly later than the due date means expired; same-day is on time.
	status := clients.StatusReturned
	if till, parseErr := time.Parse(dateLayout, record.TillDate); parseErr == nil {
		if returnedDate.After(till) {
			status = clients.StatusExpired
		}
	} else {
		s.logger.Warn("unparseable due date on record, treating return as on time",
			"reservation", reservationUID,
			"till_date", record.TillDate,
		)
	}

	result := ReturnResult{Status: status, Rating: RatingApplied}

	persistErr := circuitbreaker.Do(s.breakers.Rental, func() error {
		return s.rental.CompleteReturn(ctx, reservationUID, user, condition, dateStr, status)
	})
	result.StatusPersisted = persistErr == nil
	if persistErr != nil {
		s.logger.Warn("return status persist failed",
			"reservation", reservationUID,
			"status", status,
			"error", persistErr,
		)
	}

	delta := returnReward
	if status == clients.StatusExpired {
		delta += expiryPenalty
	}

	// Read-modify-write against the current score; deferred to the queue
	// when the rating service is unreachable.
	applyErr := circuitbreaker.Do(s.breakers.Rating, func() error {
		stars, readErr := s.rating.Stars(ctx, user)
		if readErr != nil {
			return readErr
		}
		return s.rating.SetStars(ctx, user, stars+delta)
	})
	if applyErr != nil {
		s.queue.Enqueue(retryqueue.Task{UserName: user, Delta: delta})
		result.Rating = RatingQueued
	}

	return result, nil
}
