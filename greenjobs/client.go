package greenjobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/mokwathedeveloper/fetchkit"
)

// Client is a typed API client for the green jobs platform. List and detail
// reads are cached and deduplicated; writes invalidate the affected caches.
// It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	log     fetchkit.Logger
	cache   *fetchkit.MemoryCache
	dedup   *fetchkit.Deduplicator
	metrics *fetchkit.Collector
	prefs   *fetchkit.FileStore

	products         *fetchkit.Fetcher[[]Product]
	collectionPoints *fetchkit.Fetcher[[]CollectionPoint]
	wallet           *fetchkit.Fetcher[Wallet]
	transactions     *fetchkit.Fetcher[[]Transaction]
	reports          *fetchkit.Fetcher[[]WasteReport]

	mu             sync.Mutex
	productDetails map[string]*fetchkit.Fetcher[Product]
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger enables debug logging through the given logger.
func WithLogger(log fetchkit.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithCollector enables Prometheus metrics for all fetchers.
func WithCollector(collector *fetchkit.Collector) ClientOption {
	return func(c *Client) { c.metrics = collector }
}

// NewClient builds a client from cfg. The preference store is opened lazily
// on first use so a missing cache directory never blocks construction.
func NewClient(cfg Config, options ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000/api/v1"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	c := &Client{
		cfg:            cfg,
		http:           &http.Client{Timeout: cfg.RequestTimeout},
		cache:          fetchkit.NewMemoryCache(256),
		dedup:          fetchkit.NewDeduplicator(),
		productDetails: make(map[string]*fetchkit.Fetcher[Product]),
	}
	for _, option := range options {
		option(c)
	}

	c.products = fetchkit.NewFetcher(
		request[[]Product](c, http.MethodGet, "/products/", nil),
		c.readOptions("products", fetchkit.WithStaleWhileRevalidate())...,
	)
	c.collectionPoints = fetchkit.NewFetcher(
		request[[]CollectionPoint](c, http.MethodGet, "/waste/collection-points/", nil),
		c.readOptions("collection-points")...,
	)
	c.wallet = fetchkit.NewFetcher(
		request[Wallet](c, http.MethodGet, "/wallet/", nil),
		c.readOptions("wallet")...,
	)
	c.transactions = fetchkit.NewFetcher(
		request[[]Transaction](c, http.MethodGet, "/wallet/transactions/", nil),
		c.readOptions("transactions")...,
	)
	c.reports = fetchkit.NewFetcher(
		request[[]WasteReport](c, http.MethodGet, "/waste/reports/", nil),
		c.readOptions("waste-reports")...,
	)

	return c
}

// readOptions is the shared option set for cached list/detail reads.
func (c *Client) readOptions(key string, extra ...fetchkit.Option) []fetchkit.Option {
	options := []fetchkit.Option{
		fetchkit.WithKey(key),
		fetchkit.WithCache(c.cache, c.cfg.CacheTTL),
		fetchkit.WithDeduplicator(c.dedup),
		fetchkit.WithRetryAttempts(c.cfg.RetryAttempts),
		fetchkit.WithRetryDelay(c.cfg.RetryDelay),
	}
	if c.metrics != nil {
		options = append(options, fetchkit.WithMetrics(c.metrics))
	}
	if c.log != nil {
		options = append(options, fetchkit.WithLogger(c.log), fetchkit.WithDebug())
	}
	return append(options, extra...)
}

// writeOptions is the option set for mutations: no cache, no dedup, and no
// retries unless the caller opts in, so a write is never replayed blindly.
func (c *Client) writeOptions(key string, extra ...fetchkit.Option) []fetchkit.Option {
	options := []fetchkit.Option{
		fetchkit.WithKey(key),
		fetchkit.WithRetryAttempts(0),
	}
	if c.metrics != nil {
		options = append(options, fetchkit.WithMetrics(c.metrics))
	}
	if c.log != nil {
		options = append(options, fetchkit.WithLogger(c.log), fetchkit.WithDebug())
	}
	return append(options, extra...)
}

// request builds a RequestFunc performing one JSON round trip against path.
// Functions rather than methods because methods cannot be generic.
func request[T any](c *Client, method, path string, body any) fetchkit.RequestFunc[T] {
	return func(ctx context.Context) (T, error) {
		var zero T

		var payload io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return zero, &fetchkit.FetchError{
					Type:    fetchkit.ErrorTypeClient,
					Message: "encoding request body failed",
					Cause:   err,
				}
			}
			payload = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, payload)
		if err != nil {
			return zero, &fetchkit.FetchError{
				Type:    fetchkit.ErrorTypeClient,
				Message: "building request failed",
				Cause:   err,
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return zero, &fetchkit.FetchError{
				Type:    fetchkit.ErrorTypeNetwork,
				Message: "request failed",
				Cause:   err,
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			errType := fetchkit.ErrorTypeClient
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				errType = fetchkit.ErrorTypeServer
			}
			return zero, &fetchkit.FetchError{
				Type:    errType,
				Message: fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode),
			}
		}

		var out T
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return zero, &fetchkit.FetchError{
				Type:    fetchkit.ErrorTypeDecode,
				Message: "decoding response failed",
				Cause:   err,
			}
		}
		return out, nil
	}
}

// Products returns the marketplace listings. Stale data may be served while
// a background refresh runs.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	return c.products.Execute(ctx)
}

// Product returns one marketplace listing by id.
func (c *Client) Product(ctx context.Context, id string) (Product, error) {
	return c.productFetcher(id).Execute(ctx)
}

// productFetcher returns the long-lived fetcher for a product detail, so
// repeated views of the same product share its cache entry and state.
func (c *Client) productFetcher(id string) *fetchkit.Fetcher[Product] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.productDetails[id]; ok {
		return f
	}
	f := fetchkit.NewFetcher(
		request[Product](c, http.MethodGet, "/products/"+id+"/", nil),
		c.readOptions("products:"+id)...,
	)
	c.productDetails[id] = f
	return f
}

// CollectionPoints returns the waste drop-off sites.
func (c *Client) CollectionPoints(ctx context.Context) ([]CollectionPoint, error) {
	return c.collectionPoints.Execute(ctx)
}

// WasteReports returns the user's submitted reports.
func (c *Client) WasteReports(ctx context.Context) ([]WasteReport, error) {
	return c.reports.Execute(ctx)
}

// SubmitWasteReport creates a waste report and invalidates the report list
// cache so the next read sees it.
func (c *Client) SubmitWasteReport(ctx context.Context, report WasteReport) (WasteReport, error) {
	submit := fetchkit.NewFetcher(
		request[WasteReport](c, http.MethodPost, "/waste/reports/", report),
		c.writeOptions("waste-reports:submit")...,
	)
	created, err := submit.Execute(ctx)
	if err != nil {
		return WasteReport{}, err
	}
	c.reports.Invalidate()
	return created, nil
}

// Wallet returns the user's eco-point balance.
func (c *Client) Wallet(ctx context.Context) (Wallet, error) {
	return c.wallet.Execute(ctx)
}

// Transactions returns the wallet ledger.
func (c *Client) Transactions(ctx context.Context) ([]Transaction, error) {
	return c.transactions.Execute(ctx)
}

// Dashboard fans out to the wallet, transaction and report endpoints
// concurrently. One endpoint's failure does not abort the others; partial
// failures are reported alongside whatever data loaded.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, map[string]error) {
	result := fetchkit.Batch(ctx, []fetchkit.BatchRequest{
		{Key: "wallet", Fn: request[json.RawMessage](c, http.MethodGet, "/wallet/", nil)},
		{Key: "transactions", Fn: request[json.RawMessage](c, http.MethodGet, "/wallet/transactions/", nil)},
		{Key: "reports", Fn: request[json.RawMessage](c, http.MethodGet, "/waste/reports/", nil)},
	}, 3)

	var dashboard Dashboard
	failures := make(map[string]error)
	if err := result.Decode("wallet", &dashboard.Wallet); err != nil {
		failures["wallet"] = err
	}
	if err := result.Decode("transactions", &dashboard.Transactions); err != nil {
		failures["transactions"] = err
	}
	if err := result.Decode("reports", &dashboard.Reports); err != nil {
		failures["reports"] = err
	}
	return dashboard, failures
}

// FavoriteProduct marks a product as favorite optimistically: the detail
// state flips immediately and reverts if the server rejects the change.
func (c *Client) FavoriteProduct(ctx context.Context, id string) (Product, error) {
	detail := c.productFetcher(id)

	current := detail.Snapshot().Data
	optimistic := current
	optimistic.ID = id
	optimistic.Favorite = true

	favorite := fetchkit.NewFetcher(
		request[Product](c, http.MethodPost, "/products/"+id+"/favorite/", nil),
		c.writeOptions("products:"+id+":favorite", fetchkit.WithTracker(detail.Tracker()))...,
	)
	updated, err := favorite.ExecuteOptimistic(ctx, optimistic)
	if err != nil {
		return Product{}, err
	}
	detail.Invalidate()
	c.products.Invalidate()
	return updated, nil
}

// RedeemPoints spends n eco-points optimistically: the wallet balance drops
// immediately and is restored if the redemption fails.
func (c *Client) RedeemPoints(ctx context.Context, n int) (Wallet, error) {
	current := c.wallet.Snapshot().Data
	optimistic := current
	optimistic.Points = current.Points - n
	optimistic.TotalSpent = current.TotalSpent + n

	redeem := fetchkit.NewFetcher(
		request[Wallet](c, http.MethodPost, "/wallet/redeem/", map[string]int{"points": n}),
		c.writeOptions("wallet:redeem", fetchkit.WithTracker(c.wallet.Tracker()))...,
	)
	updated, err := redeem.ExecuteOptimistic(ctx, optimistic)
	if err != nil {
		return Wallet{}, err
	}
	c.wallet.Invalidate()
	c.transactions.Invalidate()
	return updated, nil
}

// preferenceTTL keeps preference entries effectively permanent.
const preferenceTTL = 10 * 365 * 24 * time.Hour

// Preference reads a persisted user preference.
func (c *Client) Preference(key string) (string, bool) {
	store, err := c.preferenceStore()
	if err != nil {
		return "", false
	}
	entry, found := store.Get("pref:" + key)
	if !found {
		return "", false
	}
	var value string
	if err := json.Unmarshal(entry.Data, &value); err != nil {
		return "", false
	}
	return value, true
}

// SetPreference persists a user preference to disk.
func (c *Client) SetPreference(key, value string) error {
	store, err := c.preferenceStore()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	store.Set("pref:"+key, &fetchkit.Entry{Data: raw}, preferenceTTL)
	return nil
}

func (c *Client) preferenceStore() (*fetchkit.FileStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prefs != nil {
		return c.prefs, nil
	}
	store, err := fetchkit.NewFileStore(filepath.Join(c.cfg.CacheDir, "preferences.json"))
	if err != nil {
		return nil, err
	}
	c.prefs = store
	return store, nil
}
