package cli

import (
	"bufio"
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

	"github.com/getmockd/mimic/pkg/admin"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/portability"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/simulate"
)

// AdminClient provides methods for communicating with the mimic admin API.
type AdminClient interface {
	// ListMocks returns all definitions in creation order.
	ListMocks() ([]*mock.Definition, error)
	// GetMock returns a specific definition by ID.
	GetMock(id string) (*mock.Definition, error)
	// DeleteMock deletes a definition by ID.
	DeleteMock(id string) error
	// TestMock dry-runs a definition without sending real traffic.
	TestMock(id string) (*simulate.Result, error)
	// Export returns every definition encoded in format.
	Export(format portability.Format) ([]byte, error)
	// Import replaces all definitions with the encoded document.
	Import(data []byte, format portability.Format) (int, error)
	// GetLogs returns traffic log entries, newest first.
	GetLogs(filter *LogFilter) (*admin.LogListResponse, error)
	// GetLog returns a single traffic log entry.
	GetLog(id string) (*requestlog.Entry, error)
	// StreamLogs calls fn for each new log entry until ctx is done or the
	// server closes the stream.
	StreamLogs(ctx context.Context, filter *LogFilter, fn func(requestlog.Entry) error) error
	// Health checks if the server is running.
	Health() (*admin.HealthResponse, error)
}

// LogFilter specifies filtering criteria for the traffic log.
type LogFilter struct {
	Outcome string
	MockID  string
	Origin  string
	Method  string
	Limit   int
}

func (f *LogFilter) query() string {
	if f == nil {
		return ""
	}
	q := url.Values{}
	if f.Outcome != "" {
		q.Set("outcome", f.Outcome)
	}
	if f.MockID != "" {
		q.Set("mockId", f.MockID)
	}
	if f.Origin != "" {
		q.Set("origin", f.Origin)
	}
	if f.Method != "" {
		q.Set("method", f.Method)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// adminClient implements AdminClient using HTTP.
type adminClient struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout; streams are bounded by their context.
	streamClient *http.Client
}

// ClientOption configures an admin client.
type ClientOption func(*adminClient)

// WithTimeout sets the HTTP timeout for the client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *adminClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *adminClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewAdminClient creates a new admin API client.
// The baseURL is the server's base URL (e.g., "http://localhost:8080");
// the /_admin prefix is added by the client.
func NewAdminClient(baseURL string, opts ...ClientOption) AdminClient {
	c := &adminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMocks returns all definitions.
func (c *adminClient) ListMocks() ([]*mock.Definition, error) {
	var defs []*mock.Definition
	if err := c.getJSON("/mocks", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// GetMock returns a specific definition by ID.
func (c *adminClient) GetMock(id string) (*mock.Definition, error) {
	var def mock.Definition
	if err := c.getJSON("/mocks/"+url.PathEscape(id), &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// DeleteMock deletes a definition by ID.
func (c *adminClient) DeleteMock(id string) error {
	resp, err := c.doRequest(http.MethodDelete, "/mocks/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// TestMock dry-runs a definition.
func (c *adminClient) TestMock(id string) (*simulate.Result, error) {
	resp, err := c.doRequest(http.MethodPost, "/mocks/"+url.PathEscape(id)+"/test", nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}
	var res simulate.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &res, nil
}

// Export returns the encoded definitions.
func (c *adminClient) Export(format portability.Format) ([]byte, error) {
	resp, err := c.doRequest(http.MethodGet, "/export?format="+format.String(), nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// Import replaces all definitions.
func (c *adminClient) Import(data []byte, format portability.Format) (int, error) {
	resp, err := c.doRequest(http.MethodPost, "/import", data, format.ContentType())
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, c.parseError(resp)
	}
	var result admin.ImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Imported, nil
}

// GetLogs returns traffic log entries.
func (c *adminClient) GetLogs(filter *LogFilter) (*admin.LogListResponse, error) {
	var result admin.LogListResponse
	if err := c.getJSON("/logs"+filter.query(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLog returns a single traffic log entry.
func (c *adminClient) GetLog(id string) (*requestlog.Entry, error) {
	var entry requestlog.Entry
	if err := c.getJSON("/logs/"+url.PathEscape(id), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// StreamLogs reads the server-sent event stream of new log entries.
func (c *adminClient) StreamLogs(ctx context.Context, filter *LogFilter, fn func(requestlog.Entry) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminURL("/logs/stream"+filter.query()), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return c.connectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "request":
			var entry requestlog.Entry
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &entry); err != nil {
				continue // Skip invalid entries
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream: %w", err)
	}
	return nil
}

// Health checks if the server is running.
func (c *adminClient) Health() (*admin.HealthResponse, error) {
	var health admin.HealthResponse
	if err := c.getJSON("/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// getJSON performs a GET and decodes a 200 response into v.
func (c *adminClient) getJSON(path string, v any) error {
	resp, err := c.doRequest(http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *adminClient) adminURL(path string) string {
	return c.baseURL + admin.Prefix + path
}

// doRequest performs an HTTP request against the admin API.
func (c *adminClient) doRequest(method, path string, body []byte, contentType string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.adminURL(path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.connectionError(err)
	}
	return resp, nil
}

func (c *adminClient) connectionError(err error) error {
	return &APIError{
		ErrorCode: codeConnection,
		Message:   fmt.Sprintf("cannot connect to mimic at %s: %v", c.baseURL, err),
	}
}

// parseError parses an error response from the API.
func (c *adminClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorCode:  errResp.Error,
			Message:    errResp.Message,
			Field:      errResp.Field,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		ErrorCode:  "unknown_error",
		Message:    fmt.Sprintf("server returned status %d: %s", resp.StatusCode, string(body)),
	}
}
