package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"StockPulse/internal/domain/models"
	drepo "StockPulse/internal/domain/repository"
	"StockPulse/pkg/cache"
	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	keyList   = "provider:stocks"
	keyDetail = "provider:stock"
	keyChart  = "provider:chart"
)

// Config holds the upstream client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Attempts  int
	RateLimit float64 // requests per second, 0 disables pacing
	Burst     int
	ListTTL   time.Duration
	DetailTTL time.Duration
	ChartTTL  time.Duration
}

// UpstreamError describes a failed provider call. errors.Is(err, ErrUpstream)
// holds for every UpstreamError.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == drepo.ErrUpstream }

// Client implements repository.StockProvider over the provider's REST API.
type Client struct {
	http     *xhttp.Client
	limiter  *rate.Limiter
	cache    cache.Service
	cfg      Config
	backoff  time.Duration
	log      *logger.Logger
	observer func(op string, d time.Duration, err error)
}

// Option tweaks a Client.
type Option func(*Client)

// WithHTTPOptions forwards options to the underlying pkg/http client.
func WithHTTPOptions(opts ...xhttp.ClientOption) Option {
	return func(c *Client) {
		base := []xhttp.ClientOption{xhttp.WithBaseURL(c.cfg.BaseURL), xhttp.WithTimeout(c.cfg.Timeout)}
		c.http = xhttp.NewClient(append(base, opts...)...)
	}
}

// WithBackoff sets the base delay between retries; attempt i waits i*d.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithObserver is called after every upstream round trip.
func WithObserver(fn func(op string, d time.Duration, err error)) Option {
	return func(c *Client) { c.observer = fn }
}

// New builds a Client. c may be nil to disable response caching.
func New(cfg Config, c cache.Service, l *logger.Logger, opts ...Option) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if l == nil {
		l = logger.Nop()
	}
	cl := &Client{
		http:    xhttp.NewClient(xhttp.WithBaseURL(cfg.BaseURL), xhttp.WithTimeout(cfg.Timeout)),
		cache:   c,
		cfg:     cfg,
		backoff: 200 * time.Millisecond,
		log:     l.With(logger.String("component", "provider")),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// ListStocks returns every stock summary.
func (c *Client) ListStocks(ctx context.Context) ([]models.StockSummary, error) {
	return cache.Remember(ctx, c.cache, keyList, c.cfg.ListTTL, func(ctx context.Context) ([]models.StockSummary, error) {
		var out []models.StockSummary
		if err := c.get(ctx, "list_stocks", "/stocks", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// GetStock returns the full detail for id. An empty object from the
// provider is reported as ErrStockNotFound.
func (c *Client) GetStock(ctx context.Context, id string) (*models.StockDetail, error) {
	if id == "" {
		return nil, drepo.ErrStockNotFound
	}
	d, err := cache.Remember(ctx, c.cache, cache.GenerateKey(keyDetail, id), c.cfg.DetailTTL, func(ctx context.Context) (*models.StockDetail, error) {
		var out models.StockDetail
		if err := c.get(ctx, "get_stock", "/stock/"+url.PathEscape(id), nil, &out); err != nil {
			return nil, err
		}
		if out.IsEmpty() {
			return nil, drepo.ErrStockNotFound
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetPriceChart returns chart points for id over r. An invalid range falls
// back to the default.
func (c *Client) GetPriceChart(ctx context.Context, id string, r models.TimeRange) (*models.PriceChart, error) {
	if id == "" {
		return nil, drepo.ErrStockNotFound
	}
	r = models.NormalizeTimeRange(string(r))
	return cache.Remember(ctx, c.cache, cache.GenerateKey(keyChart, id, r), c.cfg.ChartTTL, func(ctx context.Context) (*models.PriceChart, error) {
		var out models.PriceChart
		q := map[string][]string{"time_range": {string(r)}}
		if err := c.get(ctx, "price_chart", "/stock/"+url.PathEscape(id)+"/price-chart", q, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// InvalidateList drops the cached stock list so the next ListStocks call
// goes upstream.
func (c *Client) InvalidateList(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, keyList)
}

// InvalidateStock drops cached detail and charts for id.
func (c *Client) InvalidateStock(ctx context.Context, id string) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Delete(ctx, cache.GenerateKey(keyDetail, id)); err != nil {
		return err
	}
	return c.cache.DeleteByPattern(ctx, cache.BuildPattern(cache.GenerateKey(keyChart, id)+":"))
}

// get performs a GET with pacing and linear-backoff retries. 4xx answers
// are not retried; 404 maps to ErrStockNotFound.
func (c *Client) get(ctx context.Context, op, path string, query map[string][]string, dest interface{}) error {
	var err error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return werr
			}
		}

		start := time.Now()
		err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         path,
			QueryParams: query,
		}, dest)
		if c.observer != nil {
			c.observer(op, time.Since(start), err)
		}
		if err == nil {
			return nil
		}

		var se *xhttp.StatusError
		if errors.As(err, &se) {
			if se.Code == http.StatusNotFound {
				return drepo.ErrStockNotFound
			}
			if se.Code < 500 && se.Code != http.StatusTooManyRequests {
				return &UpstreamError{Op: op, Status: se.Code, Body: se.Body, Err: err}
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.cfg.Attempts {
			break
		}

		c.log.Warn("upstream call failed, retrying",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		select {
		case <-time.After(time.Duration(attempt) * c.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ue := &UpstreamError{Op: op, Err: err}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		ue.Status, ue.Body = se.Code, se.Body
	}
	return ue
}
