package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"studycards-backend/internal/apperr"
)

var httpTransport = &http.Transport{
	DisableCompression: false,
}

// FetchResult is a single fetched page, decoded to UTF-8 HTML.
type FetchResult struct {
	URL   string
	Title string
	HTML  []byte
}

// Fetcher retrieves a single web page for ingestion.
type Fetcher interface {
	Fetch(rawURL string) (*FetchResult, error)
}

// PageFetcher fetches one page with browser-like headers. It never follows
// links; URL sources are one document each.
type PageFetcher struct {
	Timeout time.Duration
}

func NewPageFetcher(timeout time.Duration) *PageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PageFetcher{Timeout: timeout}
}

func (f *PageFetcher) Fetch(rawURL string) (*FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", apperr.ErrValidation, err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		rawURL = parsed.String()
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", apperr.ErrValidation, parsed.Scheme)
	}

	// Fresh collector per fetch, no link following.
	c := colly.NewCollector(colly.MaxDepth(1))
	c.WithTransport(httpTransport)
	c.SetRequestTimeout(f.Timeout)
	c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		r.Headers.Set("Sec-Fetch-Dest", "document")
		r.Headers.Set("Sec-Fetch-Mode", "navigate")
		r.Headers.Set("Referer", fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host))
	})

	result := &FetchResult{URL: rawURL}
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			fetchErr = fmt.Errorf("%w: url returned %s, expected html", apperr.ErrValidation, contentType)
			return
		}

		body := r.Body
		// Go's transport decompresses gzip transparently; brotli it does not.
		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body))); err == nil {
				body = decompressed
			}
		}

		// Decode whatever charset the server used to UTF-8.
		if len(body) > 0 {
			if utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType); err == nil {
				if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
					body = decoded
				}
			}
		}
		result.HTML = body

		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			result.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("%w: fetch %s: %v", apperr.ErrProvider, rawURL, err)
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", apperr.ErrProvider, rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if len(result.HTML) == 0 {
		return nil, fmt.Errorf("%w: fetch %s: empty response", apperr.ErrProvider, rawURL)
	}
	if result.Title == "" {
		result.Title = parsed.Host + parsed.Path
	}
	return result, nil
}
