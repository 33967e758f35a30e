package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formdwatch/internal/chat"
	"formdwatch/internal/config"
	"formdwatch/internal/edgar"
	"formdwatch/internal/models"
	"formdwatch/internal/session"
)

type fakeFetcher struct {
	results []*models.FilingResult
	errs    []error
	ranges  []models.DateRange
	mu      sync.Mutex
}

func (f *fakeFetcher) FetchFilings(_ context.Context, r models.DateRange) (*models.FilingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.ranges)
	f.ranges = append(f.ranges, r)

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}

	if i < len(f.results) {
		return f.results[i], nil
	}

	return &models.FilingResult{Range: r, Filings: []models.Filing{}}, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.ranges)
}

type fakeCompleter struct {
	err   error
	reply string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ []session.Message) (string, error) {
	return f.reply, f.err
}

func acmeResult() *models.FilingResult {
	return &models.FilingResult{
		Filings: []models.Filing{{
			CompanyName:       "Acme LLC",
			FileDate:          "2024-05-01",
			BusinessLocations: "Austin, TX",
			Edgar: []models.EdgarLink{
				{CIK: "0001", URL: "https://www.sec.gov/edgar/browse/?CIK=0001"},
				{CIK: "0002", URL: "https://www.sec.gov/edgar/browse/?CIK=0002"},
			},
		}},
		Total: 1,
	}
}

type testEnv struct {
	fetcher *fakeFetcher
	server  *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T, fetcher *fakeFetcher, completer chat.Completer, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := *config.Default()
	for _, opt := range opts {
		opt(&cfg)
	}

	var assistant *chat.Assistant
	if completer != nil {
		assistant = chat.NewAssistant(completer, cfg.Chat.MaxHistory, nil)
	} else {
		cfg.Chat.Enabled = false
	}

	srv, err := NewServer(cfg, fetcher, session.NewStore(time.Hour), assistant, nil)
	require.NoError(t, err)

	srv.today = func() models.DateRange {
		d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		return models.DateRange{Start: d, End: d}
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{fetcher: fetcher, server: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) page(t *testing.T) *goquery.Document {
	t.Helper()

	resp, err := e.client.Get(e.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	return doc
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) *goquery.Document {
	t.Helper()

	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "redirect should land on the page")

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	return doc
}

func dates(start, end string) url.Values {
	return url.Values{"start": {start}, "end": {end}}
}

func TestIndex_InitialPage(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)
	doc := env.page(t)

	assert.Equal(t, "Daily Form D Filings", doc.Find("title").Text())
	assert.Equal(t, "2024-05-01", doc.Find(`input[name="start"]`).AttrOr("value", ""))
	assert.Equal(t, "2024-05-01", doc.Find(`input[name="end"]`).AttrOr("value", ""))
	assert.Equal(t, "Check for Filings", strings.TrimSpace(doc.Find(`form.range button`).Text()))
	assert.Equal(t, MsgIdle, strings.TrimSpace(doc.Find("#status").Text()))
	assert.Zero(t, doc.Find("table.filings").Length())
	assert.Zero(t, doc.Find("section.chat").Length())
	assert.Contains(t, doc.Find("style").Text(), "text-align: center")
	assert.Zero(t, env.fetcher.calls())
}

func TestIndex_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)
	env.page(t)

	u, _ := url.Parse(env.server.URL)
	cookies := env.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "formd_sid", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestIndex_RefreshesSessionCookie(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)
	env.page(t)

	u, _ := url.Parse(env.server.URL)
	sid := env.client.Jar.Cookies(u)[0].Value

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/", http.NoBody)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "formd_sid", Value: sid})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sid, cookies[0].Value, "an existing session keeps its id")
	assert.Positive(t, cookies[0].MaxAge)
}

func TestFetch_RendersTable(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{results: []*models.FilingResult{acmeResult()}}, nil)
	doc := env.post(t, "/filings", dates("2024-05-01", "2024-05-02"))

	headers := doc.Find("table.filings th").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	assert.Equal(t, []string{"Company Name", "File Date", "Business Location(s)", "Edgar"}, headers)

	cells := doc.Find("table.filings tbody tr").First().Find("td")
	assert.Equal(t, "Acme LLC", cells.Eq(0).Text())
	assert.Equal(t, "2024-05-01", cells.Eq(1).Text())
	assert.Equal(t, "Austin, TX", cells.Eq(2).Text())

	links := cells.Eq(3).Find("a")
	require.Equal(t, 2, links.Length())
	assert.Equal(t, "https://www.sec.gov/edgar/browse/?CIK=0001", links.Eq(0).AttrOr("href", ""))
	assert.Equal(t, "https://www.sec.gov/edgar/browse/?CIK=0002", links.Eq(1).AttrOr("href", ""))
	links.Each(func(_ int, a *goquery.Selection) {
		assert.Equal(t, "Link", a.Text())
		assert.Equal(t, "_blank", a.AttrOr("target", ""))
	})

	assert.Equal(t, "2024-05-02", doc.Find(`input[name="end"]`).AttrOr("value", ""))
	require.Len(t, env.fetcher.ranges, 1)
	assert.Equal(t, "2024-05-01/2024-05-02", env.fetcher.ranges[0].String())
}

func TestFetch_EmptyResult(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)
	doc := env.post(t, "/filings", dates("2024-05-04", "2024-05-04"))

	assert.Equal(t, MsgNoFilings, strings.TrimSpace(doc.Find("#status").Text()))
	assert.Zero(t, doc.Find("table.filings").Length())
}

func TestFetch_TruncationNotice(t *testing.T) {
	res := acmeResult()
	res.Total = 250

	env := newTestEnv(t, &fakeFetcher{results: []*models.FilingResult{res}}, nil)
	doc := env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))

	assert.Contains(t, doc.Find("#status").Text(), "Showing 1 of 250 filings")
}

func TestFetch_FailureKeepsPreviousResult(t *testing.T) {
	first := acmeResult()

	var err error
	first.Range, err = models.ParseDateRange("2024-05-01", "2024-05-01")
	require.NoError(t, err)

	fetcher := &fakeFetcher{
		results: []*models.FilingResult{first},
		errs:    []error{nil, &edgar.HTTPStatusError{StatusCode: http.StatusInternalServerError}},
	}
	env := newTestEnv(t, fetcher, nil)

	env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))
	doc := env.post(t, "/filings", dates("2024-05-02", "2024-05-02"))

	status := doc.Find("#status")
	assert.True(t, status.HasClass("error"))
	assert.Equal(t, "The SEC search service returned an error. Please try again later.", strings.TrimSpace(status.Text()))
	assert.Equal(t, "Acme LLC", doc.Find("table.filings tbody td").First().Text())
	assert.Contains(t, doc.Find("#shown-range").Text(), "2024-05-01/2024-05-01")

	assert.Equal(t, "2024-05-02", doc.Find(`input[name="start"]`).AttrOr("value", ""))

	// A later success drops the caption.
	fetcher.mu.Lock()
	fetcher.errs = nil
	fetcher.mu.Unlock()

	doc = env.post(t, "/filings", dates("2024-05-02", "2024-05-02"))
	assert.Zero(t, doc.Find("#shown-range").Length())
}

func TestFetch_InvalidInputMakesNoRequest(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "start after end", form: dates("2024-05-03", "2024-05-01"), want: "The start date must be on or before the end date."},
		{name: "missing end", form: url.Values{"start": {"2024-05-01"}}, want: "Choose both a start and an end date."},
		{name: "bad format", form: dates("05/01/2024", "2024-05-01"), want: "Enter dates as YYYY-MM-DD."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeFetcher{}, nil)
			doc := env.post(t, "/filings", tt.form)

			assert.Equal(t, tt.want, strings.TrimSpace(doc.Find("#status").Text()))
			assert.Zero(t, env.fetcher.calls())
		})
	}
}

func TestFetch_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{results: []*models.FilingResult{acmeResult()}}, nil)
	env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	other := &testEnv{server: env.server, client: &http.Client{Jar: jar}}
	doc := other.page(t)

	assert.Zero(t, doc.Find("table.filings").Length())
	assert.Equal(t, MsgIdle, strings.TrimSpace(doc.Find("#status").Text()))
}

func getJSON(t *testing.T, env *testEnv, query string, v any) int {
	t.Helper()

	resp, err := env.client.Get(env.server.URL + "/api/filings?" + query)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))

	return resp.StatusCode
}

func TestAPIFilings_OK(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{results: []*models.FilingResult{acmeResult()}}, nil)

	var body struct {
		Start   string           `json:"start"`
		End     string           `json:"end"`
		Filings []map[string]any `json:"filings"`
		Total   int              `json:"total"`
	}

	status := getJSON(t, env, "start=2024-05-01&end=2024-05-02", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2024-05-01", body.Start)
	assert.Equal(t, "2024-05-02", body.End)
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Filings, 1)
	assert.Equal(t, "Acme LLC", body.Filings[0]["Company Name"])
	assert.Len(t, body.Filings[0]["Edgar"], 2)
}

func TestAPIFilings_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "bad range", query: "start=2024-05-03&end=2024-05-01", wantStatus: http.StatusBadRequest, wantKind: edgar.KindInvalidRange},
		{name: "missing dates", query: "", wantStatus: http.StatusBadRequest, wantKind: edgar.KindInvalidRange},
		{
			name: "timeout", query: "start=2024-05-01&end=2024-05-01",
			err:        &edgar.TransportError{Err: context.DeadlineExceeded, Timeout: true},
			wantStatus: http.StatusGatewayTimeout, wantKind: edgar.KindTimeout,
		},
		{
			name: "upstream status", query: "start=2024-05-01&end=2024-05-01",
			err:        &edgar.HTTPStatusError{StatusCode: http.StatusServiceUnavailable},
			wantStatus: http.StatusBadGateway, wantKind: edgar.KindHTTPStatus,
		},
		{
			name: "malformed", query: "start=2024-05-01&end=2024-05-01",
			err:        &edgar.MalformedResponseError{Reason: "missing hits.hits array"},
			wantStatus: http.StatusBadGateway, wantKind: edgar.KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeFetcher{errs: []error{tt.err}}, nil)

			var body apiError

			status := getJSON(t, env, tt.query, &body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.NotEmpty(t, body.Error)
			assert.NotContains(t, body.Error, "hits.hits")
		})
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)

	resp, err := env.client.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGzipResponses(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestChat_DisabledHidesRoutes(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil)

	resp, err := env.client.PostForm(env.server.URL+"/chat", url.Values{"prompt": {"hi"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChat_Conversation(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeCompleter{reply: "Form D is an exempt offering notice."})

	doc := env.page(t)
	require.Equal(t, 1, doc.Find("section.chat").Length())
	assert.Equal(t, 1, doc.Find(`input[name="api_key"]`).Length())

	doc = env.post(t, "/chat", url.Values{"api_key": {"sk-secret"}, "prompt": {"What is Form D?"}})

	messages := doc.Find(".transcript .message")
	require.Equal(t, 2, messages.Length())
	assert.True(t, messages.Eq(0).HasClass("user"))
	assert.Equal(t, "What is Form D?", messages.Eq(0).Text())
	assert.True(t, messages.Eq(1).HasClass("assistant"))

	assert.Zero(t, doc.Find(`input[name="api_key"]`).Length())
	assert.NotContains(t, doc.Text(), "sk-secret")

	doc = env.post(t, "/chat/reset", url.Values{})
	assert.Zero(t, doc.Find(".transcript .message").Length())
	assert.Contains(t, doc.Find(".key").Text(), "API key saved")

	doc = env.post(t, "/chat/reset", url.Values{"forget_key": {"true"}})
	assert.Equal(t, 1, doc.Find(`input[name="api_key"]`).Length())
}

func TestChat_MissingKey(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeCompleter{reply: "x"})

	doc := env.post(t, "/chat", url.Values{"prompt": {"hi"}})
	assert.Equal(t, "Enter an API key to use the assistant.", doc.Find(".chat .error").Text())
	assert.Zero(t, doc.Find(".transcript .message").Length())
}

func TestChat_FailureDoesNotTouchFilings(t *testing.T) {
	env := newTestEnv(t,
		&fakeFetcher{results: []*models.FilingResult{acmeResult()}},
		&fakeCompleter{err: errors.New("upstream down")},
	)

	env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))
	doc := env.post(t, "/chat", url.Values{"api_key": {"sk"}, "prompt": {"hi"}})

	assert.Equal(t, "The assistant is unavailable right now. Please try again.", doc.Find(".chat .error").Text())
	assert.Zero(t, doc.Find(".transcript .message").Length())
	assert.Equal(t, "Acme LLC", doc.Find("table.filings tbody td").First().Text())
	assert.False(t, doc.Find("#status").HasClass("error"))
}

func TestFetch_RateLimited(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil, func(c *config.Config) { c.Server.FetchRateLimit = "2-M" })

	env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))
	env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))
	doc := env.post(t, "/filings", dates("2024-05-01", "2024-05-01"))

	assert.Equal(t, MsgRateLimited, strings.TrimSpace(doc.Find("#status").Text()))
	assert.Equal(t, 2, env.fetcher.calls())

	var body apiError

	status := getJSON(t, env, "start=2024-05-01&end=2024-05-01", &body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, KindRateLimited, body.Kind)
	assert.Equal(t, 2, env.fetcher.calls())
}

func TestAPIFilings_CORS(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, nil, func(c *config.Config) {
		c.Server.CORSOrigins = []string{"https://research.example"}
	})

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/filings?start=2024-05-01&end=2024-05-01", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://research.example")

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://research.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://other.example")

	resp, err = env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
