package clients

import (
	"context"
	"net/http"
	"time"
)

// Stars bounds; the rating service rejects writes outside this range.
const (
	MinStars = 0
	MaxStars = 100
)

// ClampStars limits n to the valid stars range.
func ClampStars(n int) int {
	if n < MinStars {
		return MinStars
	}
	if n > MaxStars {
		return MaxStars
	}
	return n
}

// RatingClient talks to the rating (reputation) service.
type RatingClient struct {
	caller
}

// NewRating creates a rating client for the given base URL.
func NewRating(baseURL string, timeout time.Duration) *RatingClient {
	return &RatingClient{caller: newCaller("rating", baseURL, timeout)}
}

type ratingBody struct {
	Stars int `json:"stars"`
}

type setRatingBody struct {
	Username string `json:"username"`
	Stars    int    `json:"stars"`
}

// Stars returns the user's current score. The rating service creates
// first-time users with a default score of 1.
func (c *RatingClient) Stars(ctx context.Context, username string) (int, error) {
	var out ratingBody
	err := c.do(ctx, http.MethodGet, "/rating", nil, map[string]string{"X-User-Name": username}, nil, &out)
	if err != nil {
		return 0, err
	}
	return out.Stars, nil
}

// SetStars writes an absolute score for the user. The value is clamped to
// the valid range before sending.
func (c *RatingClient) SetStars(ctx context.Context, username string, stars int) error {
	return c.do(ctx, http.MethodPost, "/rating", nil, nil, setRatingBody{
		Username: username,
		Stars:    ClampStars(stars),
	}, nil)
}
