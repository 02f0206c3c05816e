// Package backend provides a client for the hosted backend-as-a-service that
// stores penne's relations: a PostgREST-style REST API, stored-procedure RPCs
// and an object storage bucket for avatars.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/penne-app/penne/internal/errors"
	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/remote"
)

// AvatarBucket is the storage bucket holding profile pictures
const AvatarBucket = "avatars"

// APIError is the error body returned by the REST API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned status %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Client defines the interface for backend operations
type Client interface {
	remote.Store
	// Download fetches an object from a storage bucket
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	// BaseURL returns the configured backend base URL
	BaseURL() string
}

// HTTPClient is a real HTTP client for the backend
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new backend HTTP client
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewHTTPClientWithHTTPClient(baseURL, apiKey, &http.Client{Timeout: timeout}, log)
}

// NewHTTPClientWithHTTPClient creates a new backend client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL, apiKey string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured backend base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// doRequest executes a request against the backend and handles common error
// checking. The caller's access token, when present on ctx, authorizes the
// request so row-level policies apply to that user; otherwise the API key is
// used. A nil response discards the body.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, prefer string, response interface{}) error {
	apiURL := c.baseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.InvalidInputf("failed to encode request: %v", err)
		}
		payload = b
		reader = bytes.NewReader(b)
	}

	c.log.Debug("Backend request", "method", method, "url", apiURL, "body", string(payload))

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return errors.Internal(fmt.Errorf("failed to create request: %w", err))
	}
	c.authorize(ctx, req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Remote(method+" "+path, fmt.Errorf("failed to connect to backend: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Remote(method+" "+path, fmt.Errorf("failed to read response: %w", err))
	}

	c.log.Debug("Backend response", "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(method+" "+path, resp.StatusCode, respBody)
	}

	if response == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(response); err != nil {
		return errors.Remote(method+" "+path, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c *HTTPClient) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := remote.AccessToken(ctx)
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// classify turns a failed response into an application error
func classify(op string, status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	switch {
	case status == http.StatusConflict || apiErr.Code == "23505":
		return errors.Wrap(apiErr, errors.ErrConflict, op+": duplicate")
	case status == http.StatusNotFound || apiErr.Code == "23503":
		return errors.Wrap(apiErr, errors.ErrNotFound, op+": not found")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(apiErr, errors.ErrUnauthenticated, op+": not authorized")
	case apiErr.Code == "23514":
		return errors.Wrap(apiErr, errors.ErrValidation, op+": constraint violated")
	}
	return errors.Remote(op, apiErr)
}

// Select runs a filtered, ordered read
func (c *HTTPClient) Select(ctx context.Context, q remote.Query) ([]remote.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	params := filterParams(q)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var rows []remote.Record
	if err := c.doRequest(ctx, http.MethodGet, "/rest/v1/"+q.Relation, params, nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert inserts row or merges it into the row colliding on conflict
func (c *HTTPClient) Upsert(ctx context.Context, relation string, row remote.Record, conflict []string) error {
	if relation == "" || len(conflict) == 0 {
		return errors.Validation("upsert needs a relation and conflict columns")
	}
	params := url.Values{}
	params.Set("on_conflict", strings.Join(conflict, ","))
	return c.doRequest(ctx, http.MethodPost, "/rest/v1/"+relation, params, []remote.Record{row},
		"resolution=merge-duplicates,return=minimal", nil)
}

// Insert adds a row and returns it as stored
func (c *HTTPClient) Insert(ctx context.Context, relation string, row remote.Record) (remote.Record, error) {
	if relation == "" {
		return nil, errors.Validation("insert needs a relation")
	}
	var rows []remote.Record
	if err := c.doRequest(ctx, http.MethodPost, "/rest/v1/"+relation, nil, []remote.Record{row}, "return=representation", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Remote("insert "+relation, fmt.Errorf("no row returned"))
	}
	return rows[0], nil
}

// Delete removes the rows matched by the query's filters
func (c *HTTPClient) Delete(ctx context.Context, q remote.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	if len(q.Filters) == 0 {
		return 0, errors.Validationf("delete from %s needs a filter", q.Relation)
	}
	var rows []remote.Record
	if err := c.doRequest(ctx, http.MethodDelete, "/rest/v1/"+q.Relation, filterParams(q), nil, "return=representation", &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Call invokes a stored procedure
func (c *HTTPClient) Call(ctx context.Context, fn string, args remote.Record) error {
	if fn == "" {
		return errors.Validation("rpc needs a function name")
	}
	if args == nil {
		args = remote.Record{}
	}
	return c.doRequest(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, nil, args, "", nil)
}

// Download fetches an object from a storage bucket
func (c *HTTPClient) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	path = strings.TrimLeft(path, "/")
	if bucket == "" || path == "" {
		return nil, errors.Validation("download needs a bucket and a path")
	}
	apiURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, url.PathEscape(bucket), escapePath(path))

	c.log.Debug("Backend request", "method", "GET", "url", apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to create request: %w", err))
	}
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Remote("download "+bucket, fmt.Errorf("failed to connect to backend: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Remote("download "+bucket, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		// storage reports a missing object as 400 with an error body
		if resp.StatusCode == http.StatusBadRequest && bytes.Contains(data, []byte("not_found")) {
			return nil, errors.Wrap(&APIError{Status: resp.StatusCode, Message: string(data)}, errors.ErrNotFound, "download: not found")
		}
		return nil, classify("download "+bucket, resp.StatusCode, data)
	}
	return data, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// filterParams encodes filters the PostgREST way: column=op.value
func filterParams(q remote.Query) url.Values {
	params := url.Values{}
	for _, f := range q.Filters {
		params.Add(f.Column, filterValue(f))
	}
	return params
}

func filterValue(f remote.Filter) string {
	if f.Value == nil {
		switch f.Op {
		case remote.OpEq:
			return "is.null"
		case remote.OpNeq:
			return "not.is.null"
		}
	}
	if f.Op == remote.OpIn {
		values, _ := f.Value.([]any)
		parts := make([]string, len(values))
		for i, v := range values {
			if s, ok := v.(string); ok {
				parts[i] = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
			} else {
				parts[i] = formatValue(v)
			}
		}
		return "in.(" + strings.Join(parts, ",") + ")"
	}
	return string(f.Op) + "." + formatValue(f.Value)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
