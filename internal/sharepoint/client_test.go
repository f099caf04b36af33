package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), Options{
		BaseURL:           srv.URL,
		SiteID:            "site-1",
		ListID:            "list-1",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
	})
	require.NoError(t, err)
	return c
}

func TestFetchRequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/site-1/lists/list-1/items", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "999", r.URL.Query().Get("$top"))
		assert.Equal(t,
			"fields(select=id,Title,BudgetCode,BudgetLineID,Year,Amount,RequestedBy,ApprovalStatus)",
			r.URL.Query().Get("expand"))
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	res, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.False(t, res.Truncated)
}

func TestFetchDecodesLeniently(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value":[
			{"id":"7","createdDateTime":"2024-03-05T14:22:00Z","fields":{
				"id":"7","Title":"Fuel","BudgetCode":"GF-01","BudgetLineID":"L1",
				"Year":2024,"Amount":1250.5,"RequestedBy":"Mwila","ApprovalStatus":"approved"}},
			{"id":"8","fields":{
				"Title":"Printing","Year":"2023","Amount":"1,000.25","ApprovalStatus":"Declined"}},
			{"id":"9","fields":{"Title":"Odd","ApprovalStatus":"escalated"}}
		]}`))
	})

	res, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	first := res.Records[0].ToPaymentRequest(now)
	assert.Equal(t, "PR-7", first.ID)
	require.NotNil(t, first.SharePointID)
	assert.Equal(t, int64(7), *first.SharePointID)
	assert.Equal(t, "Fuel", first.Name)
	assert.Equal(t, "GF-01", first.BudgetCode)
	assert.Equal(t, "L1", first.BudgetLineID)
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, "1250.5", first.Amount.String())
	assert.Equal(t, "Mwila", first.RequestedBy)
	assert.Equal(t, model.StatusApproved, first.Status)
	assert.Equal(t, "2024-03-05", first.RequestDate.Format("2006-01-02"))
	require.NotNil(t, first.SyncedAt)
	assert.True(t, now.Equal(*first.SyncedAt))

	second := res.Records[1].ToPaymentRequest(now)
	assert.Equal(t, "PR-8", second.ID)
	assert.Equal(t, 2023, second.Year)
	assert.Equal(t, "1000.25", second.Amount.String())
	assert.Equal(t, model.StatusRejected, second.Status)
	assert.Empty(t, second.BudgetLineID)
	assert.Equal(t, "2025-06-01", second.RequestDate.Format("2006-01-02"))

	third := res.Records[2].ToPaymentRequest(now)
	assert.Equal(t, model.StatusPending, third.Status)
	assert.Equal(t, 2025, third.Year)
	assert.True(t, third.Amount.IsZero())
}

func TestFetchTruncatedOnNextLink(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value":           []any{map[string]any{"id": "1", "fields": map[string]any{"Amount": 5}}},
			"@odata.nextLink": "https://graph.example/next",
		})
	})

	res, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Records, 1)
}

func TestFetchUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	})

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestFetchServerErrorCarriesStatusAndBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service busy", http.StatusServiceUnavailable)
	})

	_, err := c.Fetch(context.Background())
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
	assert.Equal(t, "service busy", re.Body)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.False(t, errors.Is(err, ErrAuth))
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), Options{
		BaseURL: srv.URL, SiteID: "s", ListID: "l", Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestFetchMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value": [`))
	})

	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) {
	return nil, errors.New("invalid_client")
}

func TestTokenFailureIsAuthError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c, err := NewClient(failingTokens{}, Options{BaseURL: srv.URL, SiteID: "s", ListID: "l"})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
	assert.True(t, strings.Contains(err.Error(), "invalid_client"))
	assert.False(t, called)
}

func TestNewClientRequiresSiteAndList(t *testing.T) {
	_, err := NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}), Options{SiteID: "s"})
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}

func TestFromConfigNotConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Graph.TenantID = "tenant"
	_, err := FromConfig(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}
