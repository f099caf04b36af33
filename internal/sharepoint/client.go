// Package sharepoint fetches payment request records from a SharePoint list
// through Microsoft Graph.
package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/theirongolddev/bdash/internal/config"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultPageSize = 999
	defaultTimeout  = 30 * time.Second
	maxBodySize     = 16 << 20 // 16 MB
	maxErrorBody    = 2048
	graphScope      = "https://graph.microsoft.com/.default"
)

var (
	// ErrAuth indicates a token could not be acquired or was refused.
	ErrAuth = errors.New("sharepoint: authentication failed")
	// ErrRemoteUnavailable indicates the list could not be read.
	ErrRemoteUnavailable = errors.New("sharepoint: remote unavailable")
)

// RemoteError is a non-2xx response from Graph.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sharepoint: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Is matches ErrRemoteUnavailable for every status, and ErrAuth for 401/403.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteUnavailable:
		return true
	case ErrAuth:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	SiteID   string
	ListID   string
	PageSize int
	Timeout  time.Duration
	// RequestsPerSecond paces calls to Graph; zero means 2/s.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client reads list items from Graph.
type Client struct {
	tokens  oauth2.TokenSource
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient creates a client using ts for bearer tokens.
func NewClient(ts oauth2.TokenSource, opts Options) (*Client, error) {
	if ts == nil || opts.SiteID == "" || opts.ListID == "" {
		return nil, fmt.Errorf("sharepoint: site, list and credentials required: %w", config.ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		tokens:  ts,
		opts:    opts,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:     opts.Logger.With("component", "sharepoint"),
	}, nil
}

// NewTokenSource returns an app-only token source for the Graph API using
// the OAuth2 client credentials flow.
func NewTokenSource(ctx context.Context, tenantID, clientID, clientSecret string) oauth2.TokenSource {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://login.microsoftonline.com/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token",
		Scopes:       []string{graphScope},
	}
	return cc.TokenSource(ctx)
}

// FromConfig builds a client from cfg. It fails with config.ErrNotConfigured
// when any Graph setting is missing.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Client, error) {
	if !cfg.Capabilities().HasRemoteSync {
		return nil, fmt.Errorf("sharepoint: graph settings incomplete: %w", config.ErrNotConfigured)
	}
	g := cfg.Graph
	// The token endpoint uses this client, so token requests share the timeout.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.GraphTimeout()})
	return NewClient(NewTokenSource(ctx, g.TenantID, g.ClientID, g.ClientSecret), Options{
		BaseURL:  g.BaseURL,
		SiteID:   g.SiteID,
		ListID:   g.ListID,
		PageSize: g.PageSize,
		Timeout:  cfg.GraphTimeout(),
		Logger:   logger,
	})
}

// AcquireToken fetches a bearer token. Failures match ErrAuth.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}
	return tok.AccessToken, nil
}

// itemsURL builds the list items URL with the field projection.
func (c *Client) itemsURL() string {
	q := "expand=fields(select=" + strings.Join(selectFields, ",") + ")&$top=" + strconv.Itoa(c.opts.PageSize)
	return fmt.Sprintf("%s/sites/%s/lists/%s/items?%s",
		c.opts.BaseURL, url.PathEscape(c.opts.SiteID), url.PathEscape(c.opts.ListID), q)
}

// Fetch reads one page of list items. A failure at any step fails the whole
// fetch; no partial results are returned. When more pages exist the result
// is marked Truncated.
func (c *Client) Fetch(ctx context.Context) (*Result, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.itemsURL(), token)
	if err != nil {
		return nil, err
	}

	var resp listItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing list items: %w", ErrRemoteUnavailable, err)
	}

	res := &Result{
		Records:   make([]RawRecord, 0, len(resp.Value)),
		FetchedAt: time.Now(),
		Truncated: resp.NextLink != "",
	}
	for _, it := range resp.Value {
		res.Records = append(res.Records, newRawRecord(it))
	}
	if res.Truncated {
		c.log.Warn("list has more items than one page; remaining items not fetched",
			"page_size", c.opts.PageSize, "fetched", len(res.Records))
	}
	c.log.Debug("fetched list items", "count", len(res.Records))
	return res, nil
}

// get performs an authenticated GET request and returns the response body.
func (c *Client) get(ctx context.Context, rawURL, token string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "github.com/theirongolddev/bdash/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRemoteUnavailable, err)
	}
	return body, nil
}
