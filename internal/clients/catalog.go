package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Library is one library row as the catalog service reports it.
type Library struct {
	LibraryUID string `json:"libraryUid"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
}

// Book is one book row. AvailableCount is only populated on listing
// responses; single-book lookups return the descriptive fields only.
type Book struct {
	BookUID        string `json:"bookUid,omitempty"`
	Name           string `json:"name"`
	Author         string `json:"author"`
	Genre          string `json:"genre"`
	Condition      string `json:"condition,omitempty"`
	AvailableCount int    `json:"availableCount,omitempty"`
}

// LibraryPage is the catalog's paginated library listing.
type LibraryPage struct {
	Page          int       `json:"page"`
	PageSize      int       `json:"pageSize"`
	TotalElements int       `json:"totalElements"`
	Items         []Library `json:"items"`
}

// BookPage is the catalog's paginated per-library book listing.
type BookPage struct {
	Page          int    `json:"page"`
	PageSize      int    `json:"pageSize"`
	TotalElements int    `json:"totalElements"`
	Items         []Book `json:"items"`
}

// CatalogClient talks to the catalog (library) service.
type CatalogClient struct {
	caller
}

// NewCatalog creates a catalog client for the given base URL.
func NewCatalog(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{caller: newCaller("catalog", baseURL, timeout)}
}

// Libraries lists libraries in a city, paginated.
func (c *CatalogClient) Libraries(ctx context.Context, city string, page, size int) (LibraryPage, error) {
	q := url.Values{}
	q.Set("city", city)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var out LibraryPage
	err := c.do(ctx, http.MethodGet, "/libraries", q, nil, nil, &out)
	return out, err
}

// Library fetches one library by UID.
func (c *CatalogClient) Library(ctx context.Context, libraryUID string) (Library, error) {
	var out Library
	err := c.do(ctx, http.MethodGet, "/libraries/"+libraryUID, nil, nil, nil, &out)
	if err != nil {
		return out, err
	}
	out.LibraryUID = libraryUID
	return out, nil
}

// Books lists a library's books, paginated. showAll includes books with no
// available copies.
func (c *CatalogClient) Books(ctx context.Context, libraryUID string, showAll bool, page, size int) (BookPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if showAll {
		q.Set("showAll", "true")
	}

	var out BookPage
	err := c.do(ctx, http.MethodGet, "/libraries/"+libraryUID+"/books", q, nil, nil, &out)
	return out, err
}

// Book fetches one book's descriptive snapshot.
func (c *CatalogClient) Book(ctx context.Context, libraryUID, bookUID string) (Book, error) {
	var out Book
	err := c.do(ctx, http.MethodGet, "/libraries/"+libraryUID+"/"+bookUID, nil, nil, nil, &out)
	if err != nil {
		return out, err
	}
	out.BookUID = bookUID
	return out, nil
}

// DecrementAvailable decrements the available copy count for a book at a
// library. The catalog clamps the count at zero.
func (c *CatalogClient) DecrementAvailable(ctx context.Context, libraryUID, bookUID string) error {
	return c.do(ctx, http.MethodPatch, "/libraries/"+libraryUID+"/books/"+bookUID+"/decrement", nil, nil, nil, nil)
}
