// Package resolver turns a sight page URL into the poiId the comment API
// requires. The numeric segment in the URL is only a page id; the real
// identifier is embedded in the page HTML.
package resolver

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	poiIDPattern  = regexp.MustCompile(`"poiId"\s*:\s*(\d+)`)
	pageIDPattern = regexp.MustCompile(`/(\d+)\.html`)
)

// ErrResolution indicates the poiId could not be extracted from a sight
// page. Resolution is single-shot: a failure here is terminal for the run.
type ErrResolution struct {
	URL string
	Err error
}

func (e ErrResolution) Error() string {
	return fmt.Sprintf("resolve poiId from %s: %v", e.URL, e.Err)
}

func (e ErrResolution) Unwrap() error {
	return e.Err
}

// Resolver fetches sight pages and extracts poi identifiers. Results are
// cached so repeated lookups of the same page cost one request total.
type Resolver struct {
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	cache     *lru.Cache[string, string]
}

// New builds a resolver. cacheSize bounds the URL -> poiId cache.
func New(userAgent string, timeout time.Duration, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolution cache: %w", err)
	}
	return &Resolver{
		userAgent: userAgent,
		timeout:   timeout,
		cache:     cache,
	}, nil
}

// WithTransport injects a custom HTTP transport (used by tests).
func (r *Resolver) WithTransport(rt http.RoundTripper) {
	r.transport = rt
}

// ExtractPageID pulls the trailing numeric segment from a sight URL. This
// is the page id, not the poiId; it is useful only for diagnostics.
func ExtractPageID(url string) (string, bool) {
	match := pageIDPattern.FindStringSubmatch(url)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Resolve performs one GET of pageURL and extracts the poiId embedded in
// its HTML body. No retry or backoff: failures propagate to the caller.
func (r *Resolver) Resolve(pageURL string) (string, error) {
	if poiID, ok := r.cache.Get(pageURL); ok {
		return poiID, nil
	}

	// A fresh collector per lookup avoids visited-URL state between calls.
	c := colly.NewCollector(colly.UserAgent(r.userAgent))
	if r.timeout > 0 {
		c.SetRequestTimeout(r.timeout)
	}
	if r.transport != nil {
		c.WithTransport(r.transport)
	}

	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	})

	var poiID string
	var fetchErr error
	c.OnResponse(func(resp *colly.Response) {
		if match := poiIDPattern.FindSubmatch(resp.Body); match != nil {
			poiID = string(match[1])
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return "", ErrResolution{URL: pageURL, Err: fetchErr}
	}
	if poiID == "" {
		return "", ErrResolution{URL: pageURL, Err: fmt.Errorf("poiId not found in page body")}
	}

	r.cache.Add(pageURL, poiID)
	return poiID, nil
}
