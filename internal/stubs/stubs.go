// Package stubs provides in-memory implementations of the three backend
// services the gateway fronts. They speak the same wire protocol as the real
// services and are used for local development and integration tests.
package stubs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/dskow/library-gateway/internal/clients"
)

var codec = jsoniter.ConfigFastest

type book struct {
	clients.Book
	Available int
}

type library struct {
	clients.Library
	books map[string]*book
}

// Backends holds the shared in-memory state behind all three stub services.
// A single Backends may serve catalog, rating and rental handlers at once.
type Backends struct {
	mu           sync.Mutex
	libraries    map[string]*library
	libraryOrder []string
	stars        map[string]int
	reservations map[string]*clients.Reservation
	userOrder    map[string][]string // username -> reservation uids, insertion order
}

// Seed identifiers for the default dataset.
const (
	SeedLibraryUID = "83575e12-7ce0-48ee-9931-51919ff3c9ee"
	SeedBookUID    = "f7cdc58f-2caf-4b15-9727-f89dcc629b27"
	SeedCity       = "Москва"
)

// New creates stub backends seeded with one library holding one book.
func New() *Backends {
	b := &Backends{
		libraries:    make(map[string]*library),
		stars:        make(map[string]int),
		reservations: make(map[string]*clients.Reservation),
		userOrder:    make(map[string][]string),
	}
	b.AddLibrary(clients.Library{
		LibraryUID: SeedLibraryUID,
		Name:       "Библиотека имени 7 Непьющих",
		Address:    "2-я Бауманская ул., д.5, стр.1",
		City:       SeedCity,
	})
	b.AddBook(SeedLibraryUID, clients.Book{
		BookUID:   SeedBookUID,
		Name:      "Краткий курс C++ в 7 томах",
		Author:    "Бьерн Страуструп",
		Genre:     "Научная фантастика",
		Condition: "EXCELLENT",
	}, 1)
	return b
}

// AddLibrary registers a library.
func (b *Backends) AddLibrary(lib clients.Library) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.libraries[lib.LibraryUID] = &library{Library: lib, books: make(map[string]*book)}
	b.libraryOrder = append(b.libraryOrder, lib.LibraryUID)
}

// AddBook registers a book at a library with the given available copy count.
func (b *Backends) AddBook(libraryUID string, bk clients.Book, available int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lib, ok := b.libraries[libraryUID]; ok {
		lib.books[bk.BookUID] = &book{Book: bk, Available: available}
	}
}

// SetStars sets a user's score directly, bypassing the wire protocol.
func (b *Backends) SetStars(username string, stars int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stars[username] = stars
}

// Available reports the available copy count for a book, for assertions.
func (b *Backends) Available(libraryUID, bookUID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lib, ok := b.libraries[libraryUID]; ok {
		if bk, ok := lib.books[bookUID]; ok {
			return bk.Available
		}
	}
	return 0
}

// CatalogHandler returns the catalog (library) service stub.
func (b *Backends) CatalogHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/libraries", b.listLibraries)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}", b.getLibrary)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}/books", b.listBooks)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}/{bookUid}", b.getBook)
	mux.HandleFunc("PATCH /api/v1/libraries/{libraryUid}/books/{bookUid}/decrement", b.decrementBook)
	return mux
}

// RatingHandler returns the rating service stub.
func (b *Backends) RatingHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/rating", b.getRating)
	mux.HandleFunc("POST /api/v1/rating", b.postRating)
	return mux
}

// RentalHandler returns the reservation service stub.
func (b *Backends) RentalHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/reservations/{username}", b.listReservations)
	mux.HandleFunc("GET /api/v1/reservations/{username}/count", b.countReservations)
	mux.HandleFunc("POST /api/v1/reservations", b.createReservation)
	mux.HandleFunc("GET /api/v1/reservations/{reservationUid}/return", b.getReservation)
	mux.HandleFunc("POST /api/v1/reservations/{reservationUid}/return", b.returnReservation)
	return mux
}

// Handler returns all three services merged onto one mux, for tests that
// point every dependency at the same server.
func (b *Backends) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/libraries", b.listLibraries)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}", b.getLibrary)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}/books", b.listBooks)
	mux.HandleFunc("GET /api/v1/libraries/{libraryUid}/{bookUid}", b.getBook)
	mux.HandleFunc("PATCH /api/v1/libraries/{libraryUid}/books/{bookUid}/decrement", b.decrementBook)
	mux.HandleFunc("GET /api/v1/rating", b.getRating)
	mux.HandleFunc("POST /api/v1/rating", b.postRating)
	mux.HandleFunc("GET /api/v1/reservations/{username}", b.listReservations)
	mux.HandleFunc("GET /api/v1/reservations/{username}/count", b.countReservations)
	mux.HandleFunc("POST /api/v1/reservations", b.createReservation)
	mux.HandleFunc("GET /api/v1/reservations/{reservationUid}/return", b.getReservation)
	mux.HandleFunc("POST /api/v1/reservations/{reservationUid}/return", b.returnReservation)
	return mux
}

func (b *Backends) listLibraries(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	page, size := pageParams(r)

	b.mu.Lock()
	var matched []clients.Library
	for _, uid := range b.libraryOrder {
		lib := b.libraries[uid]
		if lib.City == city {
			matched = append(matched, lib.Library)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, clients.LibraryPage{
		Page:          page,
		PageSize:      size,
		TotalElements: len(matched),
		Items:         paginate(matched, page, size),
	})
}

func (b *Backends) getLibrary(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	lib, ok := b.libraries[r.PathValue("libraryUid")]
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lib.Library)
}

func (b *Backends) listBooks(w http.ResponseWriter, r *http.Request) {
	showAll := r.URL.Query().Get("showAll") == "true"
	page, size := pageParams(r)

	b.mu.Lock()
	lib, ok := b.libraries[r.PathValue("libraryUid")]
	if !ok {
		b.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var items []clients.Book
	for _, bk := range lib.books {
		if bk.Available <= 0 && !showAll {
			continue
		}
		item := bk.Book
		item.AvailableCount = bk.Available
		items = append(items, item)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, clients.BookPage{
		Page:          page,
		PageSize:      size,
		TotalElements: len(items),
		Items:         paginate(items, page, size),
	})
}

func (b *Backends) getBook(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lib, ok := b.libraries[r.PathValue("libraryUid")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	bk, ok := lib.books[r.PathValue("bookUid")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bk.Book)
}

func (b *Backends) decrementBook(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lib, ok := b.libraries[r.PathValue("libraryUid")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	bk, ok := lib.books[r.PathValue("bookUid")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if bk.Available > 0 {
		bk.Available--
	}
	w.WriteHeader(http.StatusOK)
}

func (b *Backends) getRating(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get("X-User-Name")
	if username == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	stars, ok := b.stars[username]
	if !ok {
		// First-time users start with a score of 1.
		stars = 1
		b.stars[username] = stars
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{"stars": stars})
}

func (b *Backends) postRating(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Stars    int    `json:"stars"`
	}
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.stars[req.Username] = clients.ClampStars(req.Stars)
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (b *Backends) listReservations(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	b.mu.Lock()
	records := make([]clients.Reservation, 0, len(b.userOrder[username]))
	for _, uid := range b.userOrder[username] {
		records = append(records, *b.reservations[uid])
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, records)
}

func (b *Backends) countReservations(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	b.mu.Lock()
	count := 0
	for _, uid := range b.userOrder[username] {
		if b.reservations[uid].Status == clients.StatusRented {
			count++
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{"rentedCount": count})
}

func (b *Backends) createReservation(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get("X-User-Name")
	if username == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		BookUID    string `json:"bookUid"`
		LibraryUID string `json:"libraryUid"`
		TillDate   string `json:"tillDate"`
	}
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rec := &clients.Reservation{
		ReservationUID: uuid.NewString(),
		Username:       username,
		BookUID:        req.BookUID,
		LibraryUID:     req.LibraryUID,
		Status:         clients.StatusRented,
		StartDate:      time.Now().Format("2006-01-02"),
		TillDate:       req.TillDate,
	}

	b.mu.Lock()
	b.reservations[rec.ReservationUID] = rec
	b.userOrder[username] = append(b.userOrder[username], rec.ReservationUID)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (b *Backends) getReservation(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get("X-User-Name")

	b.mu.Lock()
	rec, ok := b.reservations[r.PathValue("reservationUid")]
	if ok && username != "" && rec.Username != username {
		ok = false
	}
	var out clients.Reservation
	if ok {
		out = *rec
	}
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backends) returnReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Condition string `json:"condition"`
		Date      string `json:"date"`
		Status    string `json:"status"`
	}
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	rec, ok := b.reservations[r.PathValue("reservationUid")]
	if ok {
		rec.Status = req.Status
		if rec.Status == "" {
			rec.Status = clients.StatusReturned
		}
	}
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	return page, size
}

func paginate[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	codec.NewEncoder(w).Encode(v) //nolint:errcheck
}
