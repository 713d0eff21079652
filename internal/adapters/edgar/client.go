package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"advisor/internal/adapters/config"
	"advisor/internal/adapters/ratelimit"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Company is one entry of the SEC ticker index.
type Company struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Filing identifies one submitted document.
type Filing struct {
	CIK             int
	Form            string
	AccessionNumber string
	FilingDate      string
	PrimaryDocument string
}

// Client reads the EDGAR ticker index, submissions API and archives.
type Client struct {
	userAgent string
	baseURL   string
	dataURL   string
	http      *http.Client
	limiter   *ratelimit.Limiter
	log       *logger.Logger

	mu      sync.Mutex
	tickers map[string]Company
}

// NewClient creates an EDGAR client. SEC requires a descriptive User-Agent.
func NewClient(cfg config.FilingsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		userAgent: cfg.UserAgent,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:   strings.TrimRight(cfg.DataURL, "/"),
		http:      httpClient,
		limiter:   ratelimit.NewPerSecond("sec_edgar", cfg.RateLimitRPS, cfg.RateLimitRPS),
		log:       logger.Get().With("component", "edgar"),
	}
}

// indexTicker maps a market ticker onto the form used by the SEC index (BRK.B -> BRK-B).
func indexTicker(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(ticker)), ".", "-")
}

// LookupCompany resolves a ticker to its CIK. The index is fetched once per client.
func (c *Client) LookupCompany(ctx context.Context, ticker string) (Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tickers == nil {
		var raw map[string]Company
		if err := c.getJSON(ctx, c.baseURL+"/files/company_tickers.json", &raw); err != nil {
			return Company{}, errors.Wrap(err, "load SEC ticker index")
		}
		index := make(map[string]Company, len(raw))
		for _, co := range raw {
			index[strings.ToUpper(co.Ticker)] = co
		}
		c.tickers = index
	}

	co, ok := c.tickers[indexTicker(ticker)]
	if !ok {
		return Company{}, errors.Wrapf(errors.ErrNotFound, "ticker %s is not in the SEC index", ticker)
	}
	return co, nil
}

type submissions struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// LatestFilings returns the most recent filing of each requested form, in
// the order the forms were given. Forms without a filing are skipped.
func (c *Client) LatestFilings(ctx context.Context, ticker string, forms ...string) ([]Filing, error) {
	co, err := c.LookupCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var sub submissions
	if err := c.getJSON(ctx, fmt.Sprintf("%s/submissions/CIK%010d.json", c.dataURL, co.CIK), &sub); err != nil {
		return nil, errors.Wrapf(err, "load submissions for %s", ticker)
	}

	recent := sub.Filings.Recent
	n := minLen(len(recent.AccessionNumber), len(recent.Form), len(recent.PrimaryDocument), len(recent.FilingDate))

	var out []Filing
	for _, form := range forms {
		// Recent filings are listed newest first.
		for i := 0; i < n; i++ {
			if !strings.EqualFold(recent.Form[i], form) {
				continue
			}
			out = append(out, Filing{
				CIK:             co.CIK,
				Form:            recent.Form[i],
				AccessionNumber: recent.AccessionNumber[i],
				FilingDate:      recent.FilingDate[i],
				PrimaryDocument: recent.PrimaryDocument[i],
			})
			break
		}
	}
	return out, nil
}

// DocumentURL is the archive location of the filing's primary document.
func (c *Client) DocumentURL(f Filing) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s",
		c.baseURL, f.CIK, strings.ReplaceAll(f.AccessionNumber, "-", ""), f.PrimaryDocument)
}

// Download writes the plain text of the filing's primary document to w.
func (c *Client) Download(ctx context.Context, f Filing, w io.Writer) error {
	resp, err := c.get(ctx, c.DocumentURL(f))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if isHTML(f.PrimaryDocument, resp.Header.Get("Content-Type")) {
		return HTMLToText(resp.Body, w)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "read filing %s: %v", f.AccessionNumber, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(errors.ErrExternal, "decode %s: %v", url, err)
	}
	return nil
}

// get performs a rate limited GET and returns the response on HTTP 200.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "build request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "GET %s: %v", url, err)
	}
	c.log.Debugw("EDGAR request", "url", url, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.Wrapf(errors.ErrNotFound, "GET %s: HTTP 404", url)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
			// SEC answers throttled clients with 403.
			return nil, errors.Wrapf(errors.ErrRateLimitExceeded, "GET %s: HTTP %d", url, resp.StatusCode)
		case resp.StatusCode >= 500:
			return nil, errors.Wrapf(errors.ErrUnavailable, "GET %s: HTTP %d", url, resp.StatusCode)
		default:
			return nil, errors.Wrapf(errors.ErrExternal, "GET %s: HTTP %d", url, resp.StatusCode)
		}
	}
	return resp, nil
}

func isHTML(name, contentType string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".htm") || strings.HasSuffix(name, ".html") || strings.Contains(contentType, "html")
}

func minLen(ls ...int) int {
	m := ls[0]
	for _, l := range ls[1:] {
		if l < m {
			m = l
		}
	}
	return m
}
