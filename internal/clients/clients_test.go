package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogClient_Libraries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/libraries", r.URL.Path)
		assert.Equal(t, "Москва", r.URL.Query().Get("city"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		json.NewEncoder(w).Encode(LibraryPage{
			Page: 2, PageSize: 10, TotalElements: 11,
			Items: []Library{{LibraryUID: "lib-1", Name: "Центральная", City: "Москва"}},
		})
	}))
	defer srv.Close()

	c := NewCatalog(srv.URL+"/api/v1", time.Second)
	page, err := c.Libraries(context.Background(), "Москва", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, page.TotalElements)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "lib-1", page.Items[0].LibraryUID)
}

func TestCatalogClient_BooksShowAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/libraries/lib-1/books", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("showAll"))
		json.NewEncoder(w).Encode(BookPage{Page: 1, PageSize: 1, TotalElements: 1,
			Items: []Book{{BookUID: "book-1", Name: "Книга", AvailableCount: 0}}})
	}))
	defer srv.Close()

	c := NewCatalog(srv.URL+"/api/v1", time.Second)
	page, err := c.Books(context.Background(), "lib-1", true, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 0, page.Items[0].AvailableCount)
}

func TestCatalogClient_BookFillsUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/libraries/lib-1/book-1", r.URL.Path)
		// Single-book lookups omit the uid from the body.
		json.NewEncoder(w).Encode(Book{Name: "Книга", Author: "Автор", Genre: "Роман"})
	}))
	defer srv.Close()

	c := NewCatalog(srv.URL+"/api/v1", time.Second)
	book, err := c.Book(context.Background(), "lib-1", "book-1")
	require.NoError(t, err)
	assert.Equal(t, "book-1", book.BookUID)
	assert.Equal(t, "Книга", book.Name)
}

func TestCatalogClient_DecrementAvailable(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCatalog(srv.URL+"/api/v1", time.Second)
	require.NoError(t, c.DecrementAvailable(context.Background(), "lib-1", "book-1"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/v1/libraries/lib-1/books/book-1/decrement", gotPath)
}

func TestRatingClient_StarsSendsIdentityHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rating", r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get("X-User-Name"))
		json.NewEncoder(w).Encode(map[string]int{"stars": 42})
	}))
	defer srv.Close()

	c := NewRating(srv.URL+"/api/v1", time.Second)
	stars, err := c.Stars(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 42, stars)
}

func TestRatingClient_SetStarsClamps(t *testing.T) {
	var got setRatingBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRating(srv.URL+"/api/v1", time.Second)
	require.NoError(t, c.SetStars(context.Background(), "alice", 150))
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, MaxStars, got.Stars)
}

func TestRentalClient_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reservations", r.URL.Path)
		assert.Equal(t, "bob", r.Header.Get("X-User-Name"))

		var body createReservationBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "book-1", body.BookUID)
		assert.Equal(t, "2026-09-30", body.TillDate)

		json.NewEncoder(w).Encode(Reservation{
			ReservationUID: "res-1",
			Username:       "bob",
			BookUID:        body.BookUID,
			LibraryUID:     body.LibraryUID,
			Status:         StatusRented,
			StartDate:      "2026-08-30",
			TillDate:       body.TillDate,
		})
	}))
	defer srv.Close()

	c := NewRental(srv.URL+"/api/v1", time.Second)
	rec, err := c.Create(context.Background(), "bob", "book-1", "lib-1", "2026-09-30")
	require.NoError(t, err)
	assert.Equal(t, "res-1", rec.ReservationUID)
	assert.Equal(t, StatusRented, rec.Status)
}

func TestRentalClient_RentedCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reservations/bob/count", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"rentedCount": 3})
	}))
	defer srv.Close()

	c := NewRental(srv.URL+"/api/v1", time.Second)
	count, err := c.RentedCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRentalClient_CompleteReturn(t *testing.T) {
	var got completeReturnBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reservations/res-1/return", r.URL.Path)
		assert.Equal(t, "bob", r.Header.Get("X-User-Name"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRental(srv.URL+"/api/v1", time.Second)
	err := c.CompleteReturn(context.Background(), "res-1", "bob", "EXCELLENT", "2026-10-05", StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Equal(t, "2026-10-05", got.Date)
}

func TestStatusError_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewRental(srv.URL+"/api/v1", time.Second)
	_, err := c.ByUID(context.Background(), "missing", "bob")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "rental", se.Dependency)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestStatusError_ServerErrorIsNotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRating(srv.URL+"/api/v1", time.Second)
	_, err := c.Stars(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestClampStars(t *testing.T) {
	assert.Equal(t, MinStars, ClampStars(-5))
	assert.Equal(t, 50, ClampStars(50))
	assert.Equal(t, MaxStars, ClampStars(101))
}

func TestCaller_TimeoutSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewRating(srv.URL+"/api/v1", 10*time.Millisecond)
	_, err := c.Stars(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}
