// Package archive is an HTTP client for the document archive that draft
// documents are fetched from and committed back to. Documents are addressed
// by id and version.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skosovsky/draftset"
)

// ErrNotFound is returned by Fetch when the archive has no document for the
// given id and version.
var ErrNotFound = errors.New("document not found")

const defaultTimeout = 30 * time.Second

// Client talks to a document archive over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, e.g. to set a custom transport
// or timeout.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// NewClient creates an archive client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves a document by id and version. The result preserves the
// archive's field order.
func (c *Client) Fetch(ctx context.Context, id, version string) (draftset.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(id, version), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s@%s: %w", id, version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch document %s@%s: %w", id, version, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch document %s@%s: unexpected status %d", id, version, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}

	doc, err := draftset.UnmarshalValue(body)
	if err != nil {
		return nil, fmt.Errorf("decode document %s@%s: %w", id, version, err)
	}
	return doc, nil
}

// Commit writes a document to the archive under the given id and version.
// Any non-2xx response is an error.
func (c *Client) Commit(ctx context.Context, id, version string, doc draftset.Value) error {
	payload, err := draftset.MarshalValue(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.documentURL(id, version), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build commit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("commit document %s@%s: %w", id, version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("commit document %s@%s: unexpected status %d", id, version, resp.StatusCode)
	}
	return nil
}

func (c *Client) documentURL(id, version string) string {
	return fmt.Sprintf("%s/documents/%s/versions/%s", c.baseURL, url.PathEscape(id), url.PathEscape(version))
}
