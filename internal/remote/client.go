package remote

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

	"babylog/internal/babylog"
	"babylog/internal/model"
)

const (
	// DefaultAPIURL is the root of the tabular record API.
	DefaultAPIURL = "https://api.airtable.com/v0"

	// DefaultRetryDelay is the fixed wait after a rate-limited response.
	DefaultRetryDelay = 30 * time.Second

	// DefaultMaxRetries is how many times a rate-limited call is repeated.
	DefaultMaxRetries = 2

	defaultTimeout = 30 * time.Second
)

// Config holds configuration for creating a Client.
type Config struct {
	// APIURL defaults to DefaultAPIURL.
	APIURL string

	BaseID string
	Table  string
	Token  string

	// HTTPClient defaults to a client with Timeout, or 30 seconds when unset.
	HTTPClient *http.Client
	Timeout    time.Duration

	// RetryDelay defaults to DefaultRetryDelay; MaxRetries to DefaultMaxRetries.
	RetryDelay time.Duration
	MaxRetries int

	// Sleep waits between rate-limited attempts. Tests inject a no-op.
	Sleep func(ctx context.Context, d time.Duration) error

	Notifier babylog.Notifier
	Logger   babylog.Logger
}

// Client talks to the remote table over HTTP. Every failed call is reported
// to the user through the Notifier exactly once; callers only see the error.
type Client struct {
	apiURL     string
	baseID     string
	table      string
	token      string
	httpClient *http.Client
	retryDelay time.Duration
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	notifier   babylog.Notifier
	logger     babylog.Logger
}

var _ babylog.RecordStore = (*Client)(nil)

// NewClient creates a Client. An unconfigured Client is valid; its calls fail
// with ErrNotConfigured.
func NewClient(cfg Config) *Client {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	var notifier babylog.Notifier = babylog.NopNotifier{}
	if cfg.Notifier != nil {
		notifier = cfg.Notifier
	}
	var logger babylog.Logger = babylog.NewNopLogger()
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	return &Client{
		apiURL:     apiURL,
		baseID:     strings.TrimSpace(cfg.BaseID),
		table:      strings.TrimSpace(cfg.Table),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
		sleep:      sleep,
		notifier:   notifier,
		logger:     logger,
	}
}

// Configured reports whether token, base and table are all set.
func (c *Client) Configured() bool {
	return c.token != "" && c.baseID != "" && c.table != ""
}

// Create stores a new record.
func (c *Client) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, c.tableURL(), createRequest{Fields: toFields(record), Typecast: true})
	if err != nil {
		return nil, c.fail("create", err)
	}

	var created apiRecord
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, c.fail("create", fmt.Errorf("decoding created record: %w", err))
	}
	return fromAPI(created), nil
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.checkConfigured(); err != nil {
		return err
	}

	if _, err := c.do(ctx, http.MethodDelete, c.tableURL()+"/"+url.PathEscape(id), nil); err != nil {
		return c.fail("delete", err)
	}
	return nil
}

// List fetches one page of records.
func (c *Client) List(ctx context.Context, query babylog.ListQuery) (*babylog.Page, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if formula := filterFormula(query); formula != "" {
		params.Set("filterByFormula", formula)
	}
	if query.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(query.PageSize))
	}
	if query.PageToken != "" {
		params.Set("offset", query.PageToken)
	}
	direction := "asc"
	if query.Descending {
		direction = "desc"
	}
	params.Set("sort[0][field]", fieldTimestamp)
	params.Set("sort[0][direction]", direction)

	body, err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+params.Encode(), nil)
	if err != nil {
		return nil, c.fail("list", err)
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.fail("list", fmt.Errorf("decoding record list: %w", err))
	}

	page := &babylog.Page{
		Records:       make([]*model.Record, 0, len(resp.Records)),
		NextPageToken: resp.Offset,
	}
	for _, r := range resp.Records {
		page.Records = append(page.Records, fromAPI(r))
	}
	return page, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) checkConfigured() error {
	if c.Configured() {
		return nil
	}
	c.notifier.RequestCredentials()
	return ErrNotConfigured
}

// fail reports err to the user and returns it.
func (c *Client) fail(operation string, err error) error {
	c.logger.Warn("remote call failed", "operation", operation, "error", err)
	c.notifier.Notify(userMessage(err))
	return err
}

func (c *Client) tableURL() string {
	return c.apiURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(c.table)
}

// do sends the request, repeating it after a fixed delay while the API
// answers 429, up to maxRetries times. The returned body belongs to a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, requestBody any) ([]byte, error) {
	var payload []byte
	if requestBody != nil {
		data, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		payload = data
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.logger.Debug("remote request", "method", method, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &ConnectionError{Err: err}
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &ConnectionError{Err: fmt.Errorf("reading response body: %w", err)}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &UnauthorizedError{Message: errorMessage(body)}
		case resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries:
			c.logger.Info("rate limited, waiting", "delay", c.retryDelay.String(), "attempt", attempt+1)
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
		default:
			message := errorMessage(body)
			if message == "" {
				message = fmt.Sprintf("Error %d", resp.StatusCode)
			}
			return nil, &RemoteError{StatusCode: resp.StatusCode, Message: message}
		}
	}
}

// errorMessage extracts the message from an error body. The API sends either
// {"error": {"message": "..."}} or {"error": "CODE"}.
func errorMessage(body []byte) string {
	var structured struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && structured.Error.Message != "" {
		return structured.Error.Message
	}

	var plain struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &plain); err == nil {
		return plain.Error
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
