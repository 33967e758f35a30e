// Package edgar queries the SEC EDGAR full-text search index for Form D filings.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"formdwatch/internal/config"
	"formdwatch/internal/logger"
	"formdwatch/internal/metrics"
	"formdwatch/internal/models"
	"formdwatch/internal/normalizer"
	"formdwatch/pkg/utils"
)

const (
	dateRangeMode  = "custom"
	errorBodyLimit = 200
)

// Client issues one search request per fetch. It holds no per-request state
// and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	processor  *normalizer.Processor
	headers    *utils.HTTPHelper
	strings    *utils.StringHelper
	logger     *logger.Logger
	now        func() time.Time
	cfg        config.EdgarConfig
}

// NewClient creates a client with its own http.Client bounded by cfg's timeout.
func NewClient(cfg config.EdgarConfig, log *logger.Logger) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.GetTimeout()}, log)
}

// NewClientWithHTTP creates a client with an injected http.Client.
func NewClientWithHTTP(cfg config.EdgarConfig, httpClient *http.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		httpClient: httpClient,
		processor:  normalizer.NewProcessorWithTransformer(normalizer.NewTransformerWithBrowseURL(cfg.BrowseURL)),
		headers: utils.NewHTTPHelper(map[string]string{
			"User-Agent": cfg.UserAgent,
			"Accept":     cfg.Accept,
			"Origin":     cfg.Origin,
			"Referer":    cfg.Referer,
		}),
		strings: utils.NewStringHelper(),
		logger:  log.With("component", "edgar"),
		now:     time.Now,
		cfg:     cfg,
	}
}

// QueryParams returns the exact query parameter set sent upstream.
func QueryParams(r models.DateRange, forms string) url.Values {
	return url.Values{
		"dateRange": {dateRangeMode},
		"startdt":   {r.StartParam()},
		"enddt":     {r.EndParam()},
		"forms":     {forms},
	}
}

// BuildRequest creates the search request for r without sending it.
func (c *Client) BuildRequest(ctx context.Context, r models.DateRange) (*http.Request, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", c.cfg.Endpoint, err)
	}

	u.RawQuery = QueryParams(r, c.cfg.Forms).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = c.headers.BuildHeaders(nil)

	return req, nil
}

// Search sends one request for r and returns the decoded response. It never
// retries and never returns a partial result.
func (c *Client) Search(ctx context.Context, r models.DateRange) (*models.SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetTimeout())
	defer cancel()

	req, err := c.BuildRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("edgar search request", "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err, Timeout: isTimeout(err)}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Best effort: the body only decorates the error.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*errorBodyLimit))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: c.strings.Snippet(raw, errorBodyLimit)}
	}

	limit := c.cfg.GetMaxBodyBytes()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response body: %w", err), Timeout: isTimeout(err)}
	}

	if int64(len(body)) > limit {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("body exceeds %d bytes", limit)}
	}

	return DecodeSearchResponse(body)
}

// DecodeSearchResponse parses a search body and checks that hits.hits exists.
func DecodeSearchResponse(body []byte) (*models.SearchResponse, error) {
	var sr models.SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid JSON", Err: err}
	}

	if sr.Hits == nil {
		return nil, &MalformedResponseError{Reason: "missing hits object"}
	}

	if sr.Hits.Hits == nil {
		return nil, &MalformedResponseError{Reason: "missing hits.hits array"}
	}

	return &sr, nil
}

// FetchFilings runs Search and normalizes the hits.
func (c *Client) FetchFilings(ctx context.Context, r models.DateRange) (*models.FilingResult, error) {
	start := c.now()

	result, err := c.fetch(ctx, r)

	duration := c.now().Sub(start)
	kind := ErrorKind(err)

	if err != nil {
		metrics.ObserveFetch(kind, duration, 0)
		c.logger.Warn("edgar fetch failed", "range", r.String(), "kind", kind, "duration", duration, "error", err)

		return nil, err
	}

	metrics.ObserveFetch(kind, duration, len(result.Filings))
	c.logger.Info("edgar fetch complete",
		"range", r.String(),
		"filings", len(result.Filings),
		"total", result.Total,
		"duration", duration,
	)

	return result, nil
}

func (c *Client) fetch(ctx context.Context, r models.DateRange) (*models.FilingResult, error) {
	sr, err := c.Search(ctx, r)
	if err != nil {
		return nil, err
	}

	return c.Normalize(r, sr)
}

// Normalize converts an already decoded response into a FilingResult.
func (c *Client) Normalize(r models.DateRange, sr *models.SearchResponse) (*models.FilingResult, error) {
	filings, err := c.processor.Process(sr.Hits.Hits)
	if err != nil {
		return nil, err
	}

	total := sr.Hits.Total.Value
	if total < len(filings) {
		total = len(filings)
	}

	return &models.FilingResult{
		Range:         r,
		Filings:       filings,
		Total:         total,
		TotalRelation: sr.Hits.Total.Relation,
		FetchedAt:     c.now(),
	}, nil
}

// LoadFromFile normalizes a search response saved to disk.
func (c *Client) LoadFromFile(filePath string, r models.DateRange) (*models.FilingResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file %s: %w", filePath, err)
	}

	sr, err := DecodeSearchResponse(content)
	if err != nil {
		return nil, err
	}

	return c.Normalize(r, sr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
