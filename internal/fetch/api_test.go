package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/doge-tracker/internal/resilience"
)

func pageBody(piids []string, total, pages int) string {
	contracts := ""
	for i, p := range piids {
		if i > 0 {
			contracts += ","
		}
		contracts += fmt.Sprintf(`{"piid":%q,"agency":"GSA"}`, p)
	}
	return fmt.Sprintf(`{"success":true,"result":{"contracts":[%s]},"meta":{"total_results":%d,"pages":%d}}`,
		contracts, total, pages)
}

func testFetcher(baseURL string, maxAttempts int) *APIFetcher {
	return NewAPIFetcher(APIOptions{
		BaseURL: baseURL,
		PerPage: 2,
		Retry: resilience.RetryConfig{
			MaxAttempts:    maxAttempts,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
}

func TestAPIFetcherPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "savings", q.Get("sort_by"))
		assert.Equal(t, "desc", q.Get("sort_order"))
		assert.Equal(t, "2", q.Get("per_page"))

		switch q.Get("page") {
		case "1":
			fmt.Fprint(w, pageBody([]string{"A1", "B2"}, 3, 2))
		case "2":
			fmt.Fprint(w, pageBody([]string{"C3"}, 3, 2))
		default:
			t.Errorf("unexpected page %q", q.Get("page"))
		}
	}))
	defer srv.Close()

	f := testFetcher(srv.URL, 1)
	ctx := context.Background()

	page, next, err := f.Fetch(ctx, NoCursor)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 2)
	assert.Equal(t, 3, page.TotalResults)
	require.Equal(t, 2, next)

	page, next, err = f.Fetch(ctx, next)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)
	assert.Equal(t, NoCursor, next, "last page ends pagination")
}

func TestAPIFetcherEmptyPageEndsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageBody(nil, 0, 0))
	}))
	defer srv.Close()

	page, next, err := testFetcher(srv.URL, 1).Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, NoCursor, next)
}

func TestAPIFetcherRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, pageBody([]string{"A1"}, 1, 1))
	}))
	defer srv.Close()

	page, _, err := testFetcher(srv.URL, 3).Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, page.Entries, 1)
}

func TestAPIFetcherExhaustion(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, cursor, err := testFetcher(srv.URL, 2).Fetch(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 4, cursor)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Cursor)
	assert.Equal(t, 2, exhausted.Attempts)
}

func TestAPIFetcherSurfacesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, cursor, err := testFetcher(srv.URL, 2).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, cursor)
	assert.True(t, resilience.IsRateLimited(err), "429 must surface as rate limited, not exhausted")

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestAPIFetcherBadStatusNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := testFetcher(srv.URL, 3).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a 404 is permanent and must not be retried")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts, "attempt count reflects the single try, not the retry ceiling")
}

func TestAPIFetcherTotalResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"), "pilot request asks for one record")
		fmt.Fprint(w, pageBody([]string{"A1"}, 11000, 110))
	}))
	defer srv.Close()

	total, err := testFetcher(srv.URL, 1).TotalResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11000, total)
}
