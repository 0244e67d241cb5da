package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dskow/library-gateway/internal/circuitbreaker"
	"github.com/dskow/library-gateway/internal/clients"
	"github.com/dskow/library-gateway/internal/retryqueue"
)

var errDown = errors.New("dependency down")

// fakeCatalog implements CatalogAPI with overridable behavior per method.
// The zero value returns empty results and no errors.
type fakeCatalog struct {
	mu         sync.Mutex
	libraries  clients.LibraryPage
	books      clients.BookPage
	book       clients.Book
	library    clients.Library
	err        error
	bookErr    error
	decErr     error
	decrements int
	calls      int
}

func (f *fakeCatalog) Libraries(ctx context.Context, city string, page, size int) (clients.LibraryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.libraries, f.err
}

func (f *fakeCatalog) Library(ctx context.Context, libraryUID string) (clients.Library, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return clients.Library{}, f.err
	}
	return f.library, nil
}

func (f *fakeCatalog) Books(ctx context.Context, libraryUID string, showAll bool, page, size int) (clients.BookPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return clients.BookPage{}, f.err
	}
	return f.books, f.bookErr
}

func (f *fakeCatalog) Book(ctx context.Context, libraryUID, bookUID string) (clients.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return clients.Book{}, f.err
	}
	return f.book, nil
}

func (f *fakeCatalog) DecrementAvailable(ctx context.Context, libraryUID, bookUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.decErr != nil {
		return f.decErr
	}
	f.decrements++
	return nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRating implements RatingAPI.
type fakeRating struct {
	mu       sync.Mutex
	stars    map[string]int
	readErr  error
	writeErr error
	writes   int
}

func newFakeRating() *fakeRating {
	return &fakeRating{stars: make(map[string]int)}
}

func (f *fakeRating) Stars(ctx context.Context, username string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.stars[username], nil
}

func (f *fakeRating) SetStars(ctx context.Context, username string, stars int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.stars[username] = stars
	f.writes++
	return nil
}

func (f *fakeRating) get(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stars[username]
}

func (f *fakeRating) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// fakeRental implements RentalAPI.
type fakeRental struct {
	mu           sync.Mutex
	reservations []clients.Reservation
	rentedCount  int
	record       clients.Reservation
	err          error
	countErr     error
	byUIDErr     error
	creates      int
	returns      []string // persisted statuses, in order
}

func (f *fakeRental) Reservations(ctx context.Context, username string) ([]clients.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.reservations, nil
}

func (f *fakeRental) RentedCount(ctx context.Context, username string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.rentedCount, nil
}

func (f *fakeRental) Create(ctx context.Context, username, bookUID, libraryUID, tillDate string) (clients.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return clients.Reservation{}, f.err
	}
	f.creates++
	f.rentedCount++
	return clients.Reservation{
		ReservationUID: "res-new",
		Username:       username,
		BookUID:        bookUID,
		LibraryUID:     libraryUID,
		Status:         clients.StatusRented,
		StartDate:      "2026-08-30",
		TillDate:       tillDate,
	}, nil
}

func (f *fakeRental) ByUID(ctx context.Context, reservationUID, username string) (clients.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUIDErr != nil {
		return clients.Reservation{}, f.byUIDErr
	}
	if f.err != nil {
		return clients.Reservation{}, f.err
	}
	return f.record, nil
}

func (f *fakeRental) CompleteReturn(ctx context.Context, reservationUID, username, condition, date, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.returns = append(f.returns, status)
	return nil
}

func (f *fakeRental) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *fakeRental) persistedStatuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.returns...)
}

// testEnv bundles a Server wired to fakes with fresh breakers and queue.
type testEnv struct {
	catalog *fakeCatalog
	rating  *fakeRating
	rental  *fakeRental
	queue   *retryqueue.Queue
	mux     *http.ServeMux
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		catalog: &fakeCatalog{},
		rating:  newFakeRating(),
		rental:  &fakeRental{},
		queue:   retryqueue.NewQueue(),
	}
	breakers := Breakers{
		Catalog: circuitbreaker.New("catalog", 3, time.Minute, logger),
		Rating:  circuitbreaker.New("rating", 3, time.Minute, logger),
		Rental:  circuitbreaker.New("rental", 3, time.Minute, logger),
	}
	srv := New(env.catalog, env.rating, env.rental, breakers, env.queue, logger)
	env.mux = http.NewServeMux()
	srv.Register(env.mux)
	return env
}
