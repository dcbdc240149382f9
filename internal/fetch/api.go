package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/doge-tracker/internal/resilience"
)

// APIOptions configures the direct-HTTP fetcher.
type APIOptions struct {
	BaseURL    string
	UserAgent  string
	PerPage    int
	Timeout    time.Duration
	MaxRetries int
	Retry      resilience.RetryConfig
	Limiter    *rate.Limiter
}

// APIFetcher implements Fetcher against the DOGE contracts API with
// per-call timeouts, rate limiting, and retry with exponential backoff.
type APIFetcher struct {
	client  *http.Client
	opts    APIOptions
	limiter *rate.Limiter
}

// NewAPIFetcher creates an APIFetcher with the given options.
func NewAPIFetcher(opts APIOptions) *APIFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.doge.gov/savings/contracts"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "doge-tracker/1.0"
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries > 0 {
		opts.Retry.MaxAttempts = opts.MaxRetries
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(2, 2)
	}
	return &APIFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: limiter,
	}
}

// Fetch retrieves one page. Transient failures are retried up to the
// configured ceiling; after that the error is an ExhaustedError carrying
// the attempts actually made, or a RateLimitedError when the last failure
// was a 429 so the driver can apply its longer cooldown.
func (f *APIFetcher) Fetch(ctx context.Context, cursor int) (*Page, int, error) {
	if cursor <= 0 {
		cursor = 1
	}

	body, attempts, err := f.get(ctx, cursor, f.opts.PerPage)
	if err != nil {
		if resilience.IsRateLimited(err) {
			return nil, cursor, err
		}
		return nil, cursor, &ExhaustedError{Cursor: cursor, Attempts: attempts, Err: err}
	}

	page, next, err := decodePage(body, cursor)
	if err != nil {
		return nil, cursor, err
	}

	zap.L().Debug("fetched page",
		zap.Int("cursor", cursor),
		zap.Int("entries", len(page.Entries)),
		zap.Int("total_pages", page.TotalPages),
	)
	return page, next, nil
}

// TotalResults sends the pilot request (one record on page one) and reads
// the total count from the response metadata.
func (f *APIFetcher) TotalResults(ctx context.Context) (int, error) {
	body, _, err := f.get(ctx, 1, 1)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: pilot request")
	}
	page, _, err := decodePage(body, 1)
	if err != nil {
		return 0, err
	}
	return page.TotalResults, nil
}

// get runs the request under the retry policy and reports how many
// attempts were made; a permanent failure stops at one.
func (f *APIFetcher) get(ctx context.Context, page, perPage int) ([]byte, int, error) {
	retry := f.opts.Retry
	logRetry := retry.OnRetry
	if logRetry == nil {
		logRetry = resilience.RetryLogger("doge-api", "fetch page")
	}
	attempts := 1
	retry.OnRetry = func(attempt int, err error) {
		attempts = attempt + 1
		logRetry(attempt, err)
	}

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}
		return f.doRequest(ctx, page, perPage)
	})
	return body, attempts, err
}

func (f *APIFetcher) doRequest(ctx context.Context, page, perPage int) ([]byte, error) {
	u, err := url.Parse(f.opts.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: parse base url")
	}
	q := u.Query()
	q.Set("sort_by", "savings")
	q.Set("sort_order", "desc")
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &resilience.RateLimitedError{
			Err: fmt.Errorf("http 429 from %s", u.Host),
		}
	case resp.StatusCode >= 500:
		return nil, resilience.NewTransientError(
			fmt.Errorf("http %d from %s", resp.StatusCode, u.Host), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, u.Host)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: read body"), 0)
	}
	return body, nil
}
