// Package clients provides typed HTTP clients for the three backend services
// the gateway fronts: the catalog (libraries/books), the rating service
// (per-user stars), and the rental service (reservation records).
//
// Every call carries the request context plus a short per-dependency timeout
// so a stalled backend cannot pin a request goroutine. Responses outside the
// 2xx range are returned as *StatusError so callers can distinguish a 404
// from an unreachable service.
package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigFastest

// StatusError reports a non-2xx response from a dependency.
type StatusError struct {
	Dependency string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Dependency, e.StatusCode)
}

// IsNotFound reports whether err is a dependency 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// caller is the shared request plumbing for all three clients.
type caller struct {
	name    string
	baseURL string
	hc      *http.Client
}

func newCaller(name, baseURL string, timeout time.Duration) caller {
	return caller{
		name:    name,
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// do issues one request against the dependency. in (if non-nil) is encoded as
// the JSON body; out (if non-nil) receives the decoded 2xx response body.
func (c *caller) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := codec.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", c.name, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", c.name, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return &StatusError{Dependency: c.name, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := codec.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", c.name, err)
		}
	}
	return nil
}
