// Package fetch performs the HTTP downloads behind the cache and the
// repodata loader. One Client per process keeps one connection pool.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Client wraps an http.Client, adding streaming and byte-range downloads.
// The zero value is not usable; construct with NewClient.
type Client struct {
	http *http.Client
	docs *expirable.LRU[string, []byte]
}

// NewClient builds a Client around its own http.Client. Pass the result to
// every component that downloads, instead of sharing hidden globals.
func NewClient() *Client {
	return &Client{
		http: &http.Client{},
		docs: expirable.NewLRU[string, []byte](64, nil, time.Hour),
	}
}

// Fetch streams the body of url to dst. The body is never buffered whole in
// memory. Any transport failure or error status aborts the copy; the caller
// owns cleanup of dst.
func (c *Client) Fetch(ctx context.Context, url string, dst io.Writer) error {
	resp, err := c.get(ctx, url, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("downloading %s: %w", path.Base(url), err)
	}
	return nil
}

// FetchPrefix streams the first limit bytes of url to dst, using an HTTP
// range request. Servers that ignore Range and answer 200 are tolerated:
// the copy is truncated at limit so they cost one short transfer, not the
// whole file.
func (c *Client) FetchPrefix(ctx context.Context, url string, dst io.Writer, limit int64) error {
	resp, err := c.get(ctx, url, limit)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := resp.Body
	if resp.StatusCode == http.StatusOK {
		reader = io.NopCloser(io.LimitReader(resp.Body, limit))
	}
	if _, err := io.Copy(dst, reader); err != nil {
		return fmt.Errorf("downloading %s: %w", path.Base(url), err)
	}
	return nil
}

// Document fetches a small metadata document (a metalink or mirrorlist),
// memoized per process so repeated sessions against one repository do not
// re-fetch it.
func (c *Client) Document(ctx context.Context, url string) ([]byte, error) {
	if b, ok := c.docs.Get(url); ok {
		return b, nil
	}

	resp, err := c.get(ctx, url, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", path.Base(url), err)
	}
	c.docs.Add(url, b)
	return b, nil
}

func (c *Client) get(ctx context.Context, url string, rangeEnd int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if rangeEnd > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", rangeEnd-1))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", path.Base(url), err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("downloading %s: %w", path.Base(url), &StatusError{Status: resp.Status, Code: resp.StatusCode})
	}
	return resp, nil
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// IsStatus reports whether err carries an HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
