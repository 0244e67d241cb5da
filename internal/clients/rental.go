package clients

import (
	"context"
	"net/http"
	"time"
)

// Reservation statuses as the rental service records them.
const (
	StatusRented   = "RENTED"
	StatusReturned = "RETURNED"
	StatusExpired  = "EXPIRED"
)

// Reservation is the authoritative state of one rental record.
// Dates are calendar dates in "2006-01-02" form.
type Reservation struct {
	ReservationUID string `json:"reservationUid"`
	Username       string `json:"username"`
	BookUID        string `json:"bookUid"`
	LibraryUID     string `json:"libraryUid"`
	Status         string `json:"status"`
	StartDate      string `json:"startDate"`
	TillDate       string `json:"tillDate"`
}

// RentalClient talks to the reservation (rental bookkeeping) service.
type RentalClient struct {
	caller
}

// NewRental creates a rental client for the given base URL.
func NewRental(baseURL string, timeout time.Duration) *RentalClient {
	return &RentalClient{caller: newCaller("rental", baseURL, timeout)}
}

// Reservations lists all of a user's reservation records.
func (c *RentalClient) Reservations(ctx context.Context, username string) ([]Reservation, error) {
	var out []Reservation
	err := c.do(ctx, http.MethodGet, "/reservations/"+username, nil, nil, nil, &out)
	return out, err
}

type rentedCountBody struct {
	RentedCount int `json:"rentedCount"`
}

// RentedCount returns how many reservations the user currently holds in
// RENTED status.
func (c *RentalClient) RentedCount(ctx context.Context, username string) (int, error) {
	var out rentedCountBody
	err := c.do(ctx, http.MethodGet, "/reservations/"+username+"/count", nil, nil, nil, &out)
	if err != nil {
		return 0, err
	}
	return out.RentedCount, nil
}

type createReservationBody struct {
	BookUID    string `json:"bookUid"`
	LibraryUID string `json:"libraryUid"`
	TillDate   string `json:"tillDate"`
}

// Create records a new RENTED reservation and returns the stored record.
func (c *RentalClient) Create(ctx context.Context, username, bookUID, libraryUID, tillDate string) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, http.MethodPost, "/reservations", nil,
		map[string]string{"X-User-Name": username},
		createReservationBody{BookUID: bookUID, LibraryUID: libraryUID, TillDate: tillDate},
		&out)
	return out, err
}

// ByUID fetches one reservation record by its UID.
func (c *RentalClient) ByUID(ctx context.Context, reservationUID, username string) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, http.MethodGet, "/reservations/"+reservationUID+"/return", nil,
		map[string]string{"X-User-Name": username}, nil, &out)
	return out, err
}

type completeReturnBody struct {
	Condition string `json:"condition"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

// CompleteReturn persists the return status transition (RETURNED or EXPIRED)
// for a reservation.
func (c *RentalClient) CompleteReturn(ctx context.Context, reservationUID, username, condition, date, status string) error {
	return c.do(ctx, http.MethodPost, "/reservations/"+reservationUID+"/return", nil,
		map[string]string{"X-User-Name": username},
		completeReturnBody{Condition: condition, Date: date, Status: status},
		nil)
}
