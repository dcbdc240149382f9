// Package enrich pulls contracting-office and classification fields from
// FPDS detail pages linked by contract records.
package enrich

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/sells-group/doge-tracker/internal/model"
	"github.com/sells-group/doge-tracker/internal/resilience"
)

// Enrichment holds the fields scraped from one FPDS detail page.
type Enrichment struct {
	PIID              string
	ContractingAgency string // Contracting Office Agency Name
	ContractingOffice string // Contracting Office Name
	NAICS             string
	PSC               string
}

// Header returns the extra columns appended to the enriched CSV.
func Header() []string {
	return []string{"Buying Org 2", "Buying Org 3", "NAICS", "PSC"}
}

// CSVRow serializes the enrichment in Header order.
func (e Enrichment) CSVRow() []string {
	return []string{e.ContractingAgency, e.ContractingOffice, e.NAICS, e.PSC}
}

// Options configures the FPDS scraper.
type Options struct {
	MaxWorkers int
	Timeout    time.Duration
	Retry      resilience.RetryConfig
	Limiter    *rate.Limiter
	UserAgent  string
}

// FPDS fetches FPDS detail pages with bounded concurrency and extracts
// fields from them.
type FPDS struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// New creates an FPDS scraper.
func New(opts Options) *FPDS {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "doge-tracker/1.0"
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 5)
	}
	return &FPDS{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: limiter,
	}
}

// EnrichAll scrapes every record that carries an FPDS link. Failures on
// individual pages are logged and leave that record's fields empty; they
// never fail the whole pass.
func (f *FPDS) EnrichAll(ctx context.Context, records []model.ContractRecord) (map[string]Enrichment, error) {
	out := make(map[string]Enrichment, len(records))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.MaxWorkers)

	linked := 0
	for _, rec := range records {
		if rec.FPDSLink == "" {
			continue
		}
		rec := rec
		linked++
		g.Go(func() error {
			e, err := f.enrichOne(ctx, rec)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Warn("fpds enrichment failed",
					zap.String("piid", rec.PIID),
					zap.String("link", rec.FPDSLink),
					zap.Error(err),
				)
				e = Enrichment{PIID: rec.PIID}
			}
			mu.Lock()
			out[rec.PIID] = e
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("fpds enrichment pass complete",
		zap.Int("linked", linked),
		zap.Int("enriched", len(out)),
	)
	return out, nil
}

func (f *FPDS) enrichOne(ctx context.Context, rec model.ContractRecord) (Enrichment, error) {
	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("fpds", "fetch detail page")
	}

	doc, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*goquery.Document, error) {
		return f.fetchPage(ctx, rec.FPDSLink)
	})
	if err != nil {
		return Enrichment{}, err
	}

	return Enrichment{
		PIID:              rec.PIID,
		ContractingAgency: inputValue(doc, "Contracting Office Agency Name"),
		ContractingOffice: inputValue(doc, "Contracting Office Name"),
		NAICS:             inputValue(doc, "Principal North American Industry Classification System Code"),
		PSC:               inputValue(doc, "Product Or Service Code"),
	}, nil
}

func (f *FPDS) fetchPage(ctx context.Context, link string) (*goquery.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			fmt.Errorf("http %d from fpds", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("enrich: unexpected status %d for %s", resp.StatusCode, link)
	}

	body, err := decodeCharset(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: parse html")
	}
	return doc, nil
}

// decodeCharset converts legacy encodings declared in Content-Type to
// UTF-8; FPDS still serves some pages as ISO-8859-1.
func decodeCharset(r io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset, ok := params["charset"]
	if !ok || charset == "" || charset == "utf-8" || charset == "UTF-8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: unknown charset %s", charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func inputValue(doc *goquery.Document, title string) string {
	return doc.Find(fmt.Sprintf("input[title=%q]", title)).AttrOr("value", "")
}
