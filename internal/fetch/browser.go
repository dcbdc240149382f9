package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/resilience"
)

// BrowserOptions configures the headless-Chrome fetcher.
type BrowserOptions struct {
	SiteURL string // savings page to load before issuing API calls
	BaseURL string // API endpoint, called from page context
	PerPage int
	Timeout time.Duration
	Retry   resilience.RetryConfig
}

// BrowserFetcher implements Fetcher by driving headless Chrome to the DOGE
// savings page and issuing the API request from page context, which rides
// on the page's session when direct HTTP calls are blocked. It decodes the
// same payload as APIFetcher.
type BrowserFetcher struct {
	opts     BrowserOptions
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserFetcher starts a Chrome allocator. Close must be called when
// done with the fetcher.
func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.SiteURL == "" {
		opts.SiteURL = "https://doge.gov/savings"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.doge.gov/savings/contracts"
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &BrowserFetcher{opts: opts, allocCtx: allocCtx, cancel: cancel}
}

// Close releases the Chrome allocator.
func (f *BrowserFetcher) Close() {
	f.cancel()
}

// Fetch retrieves one page through the browser, with the same retry and
// error semantics as the HTTP backend.
func (f *BrowserFetcher) Fetch(ctx context.Context, cursor int) (*Page, int, error) {
	if cursor <= 0 {
		cursor = 1
	}

	body, attempts, err := f.call(ctx, cursor, f.opts.PerPage)
	if err != nil {
		if resilience.IsRateLimited(err) {
			return nil, cursor, err
		}
		return nil, cursor, &ExhaustedError{Cursor: cursor, Attempts: attempts, Err: err}
	}

	page, next, err := decodePage([]byte(body), cursor)
	if err != nil {
		return nil, cursor, err
	}

	zap.L().Debug("fetched page via browser",
		zap.Int("cursor", cursor),
		zap.Int("entries", len(page.Entries)),
	)
	return page, next, nil
}

// TotalResults issues the pilot request from page context.
func (f *BrowserFetcher) TotalResults(ctx context.Context) (int, error) {
	body, _, err := f.call(ctx, 1, 1)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: browser pilot request")
	}
	page, _, err := decodePage([]byte(body), 1)
	if err != nil {
		return 0, err
	}
	return page.TotalResults, nil
}

// call runs the page-context fetch under the retry policy and reports how
// many attempts were made.
func (f *BrowserFetcher) call(ctx context.Context, page, perPage int) (string, int, error) {
	retry := f.opts.Retry
	logRetry := retry.OnRetry
	if logRetry == nil {
		logRetry = resilience.RetryLogger("doge-browser", "fetch page")
	}
	attempts := 1
	retry.OnRetry = func(attempt int, err error) {
		attempts = attempt + 1
		logRetry(attempt, err)
	}

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		return f.evalFetch(ctx, page, perPage)
	})
	return body, attempts, err
}

// evalFetch navigates to the savings site and evaluates a fetch() of the
// API from page context, returning the raw response body.
func (f *BrowserFetcher) evalFetch(ctx context.Context, page, perPage int) (string, error) {
	taskCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, f.opts.Timeout)
	defer cancel()

	// Propagate caller cancellation into the browser task.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	apiURL := fmt.Sprintf("%s?sort_by=savings&sort_order=desc&page=%d&per_page=%d",
		f.opts.BaseURL, page, perPage)
	script := fmt.Sprintf(
		`fetch(%q).then(r => r.status === 429 ? Promise.reject(new Error("rate limited (429)")) : r.text())`,
		apiURL)

	var body string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(f.opts.SiteURL),
		chromedp.Evaluate(script, &body, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		if strings.Contains(err.Error(), "rate limited (429)") {
			return "", &resilience.RateLimitedError{Err: err}
		}
		return "", resilience.NewTransientError(eris.Wrap(err, "fetch: browser evaluate"), 0)
	}
	return body, nil
}
