package gateway

// Response shapes for the public API. These are composed fresh per request
// from dependency reads; the gateway holds no authoritative copy of any of
// these fields.

// BookSummary is the catalog snapshot attached to a reservation.
type BookSummary struct {
	BookUID string `json:"bookUid"`
	Name    string `json:"name"`
	Author  string `json:"author"`
	Genre   string `json:"genre"`
}

// LibrarySummary is the library snapshot attached to a reservation.
type LibrarySummary struct {
	LibraryUID string `json:"libraryUid"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
}

// RatingSummary reports a user's stars.
type RatingSummary struct {
	Stars int `json:"stars"`
}

// ReservationView is one enriched reservation: the rental record merged with
// best-effort catalog snapshots. The rental record fields are authoritative;
// snapshot fields degrade to empty strings when enrichment fails.
type ReservationView struct {
	ReservationUID string         `json:"reservationUid"`
	Status         string         `json:"status"`
	StartDate      string         `json:"startDate"`
	TillDate       string         `json:"tillDate"`
	Book           BookSummary    `json:"book"`
	Library        LibrarySummary `json:"library"`
}

// ReservationCreatedView is the create-reservation response: the enriched
// reservation plus the rating used to authorize it.
type ReservationCreatedView struct {
	ReservationView
	Rating RatingSummary `json:"rating"`
}

// CreateReservationRequest is the POST /api/v1/reservations body.
type CreateReservationRequest struct {
	BookUID    string `json:"bookUid"`
	LibraryUID string `json:"libraryUid"`
	TillDate   string `json:"tillDate"`
}

// ReturnRequest is the POST /api/v1/reservations/{uid}/return body.
type ReturnRequest struct {
	Condition string `json:"condition"`
	Date      string `json:"date"`
}

// RatingOutcome records how the return workflow's reputation side-effect
// completed. Creation never writes the score, so only ReturnResult carries
// one.
type RatingOutcome string

const (
	// RatingApplied means the delta was written synchronously.
	RatingApplied RatingOutcome = "applied"
	// RatingQueued means the rating service was unreachable and the delta
	// was deferred to the retry queue.
	RatingQueued RatingOutcome = "queued"
)

// CreateResult is the full outcome of the create-reservation workflow,
// including the degraded branches that are not surfaced to the caller.
type CreateResult struct {
	Response             ReservationCreatedView
	InventoryDecremented bool
}

// ReturnResult is the full outcome of the return-book workflow.
type ReturnResult struct {
	Status          string
	StatusPersisted bool
	Rating          RatingOutcome
}
