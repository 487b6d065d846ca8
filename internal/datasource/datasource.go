// Package datasource implements the External Data Loader (spec §4.D):
// fetching the Business JSON source and the Spreadsheet CSV source,
// enforcing their mutual exclusivity, and wrapping the CSV fetch in a
// circuit breaker the same shape the teacher wraps its upstream API
// clients in (internal/sync/circuit_breaker.go).
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gocarina/gocsv"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tourscope/internal/engineerr"
	"github.com/tomtom215/tourscope/internal/logging"
	"github.com/tomtom215/tourscope/internal/metrics"
	"github.com/tomtom215/tourscope/internal/reconcile"
)

// Config mirrors the Configuration Core's businessData/googleSheets
// sections (spec §6).
type Config struct {
	UseBusinessData  bool
	BusinessDataURL  string // local path or http(s) URL
	UseGoogleSheets  bool
	SheetsSource     string // Google Sheets share URL, CSV export URL, or local path
	APIKeyParam      string // query param name for API-key auth, if any
	APIKey           string
	CacheTTL         time.Duration
}

// businessJSON is the wire shape of the Business JSON source (spec §6).
type businessJSON struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	MatchTags   []string       `json:"matchTags"`
	ElementType string         `json:"elementType"`
	Description string         `json:"description"`
	ImageURL    string         `json:"imageUrl"`
	LocalImage  string         `json:"localImage"`
	Extra       map[string]any `json:"-"`
}

// sheetsRow is the CSV column shape gocsv maps the spreadsheet into
// (spec §6: Google Sheets / local CSV source).
type sheetsRow struct {
	ID          string `csv:"id"`
	Tag         string `csv:"tag"`
	Name        string `csv:"name"`
	Description string `csv:"description"`
	ImageURL    string `csv:"imageUrl"`
	ElementType string `csv:"elementType"`
	ParentID    string `csv:"parentId"`
}

// Fetcher retrieves raw bytes from a URL or local path; Loader uses it
// for both sources so tests can substitute an in-memory fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// HTTPFetcher fetches http(s) URLs and reads local files for anything
// else, rate-limited to avoid hammering a spreadsheet host on rapid
// config updates.
type HTTPFetcher struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPFetcher returns a Fetcher with a 30s timeout (matching the
// teacher's PlexClient) and a conservative 1-request-per-second cap.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.ReadFile(location)
	}
	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datasource: unexpected status %d fetching %s", resp.StatusCode, location)
	}
	return io.ReadAll(resp.Body)
}

// ProgressiveRowThreshold is the sheets row count above which spec
// §4.D's progressive loading kicks in: a lightweight id/tag/name
// projection is made available immediately, and the full record set
// replaces it after ProgressiveDelay.
const ProgressiveRowThreshold = 20

// ProgressiveDelay is how long after the lightweight projection the
// full sheets record set replaces it (spec §4.D: "a short delay";
// §7's fixed-timer table pins progressive-loading background to 2s).
const ProgressiveDelay = 2 * time.Second

// Lightweight strips every sheets record down to the id/tag/name
// projection spec §4.D's progressive loading serves first, for
// datasets too large to reconcile and render all at once.
func Lightweight(records []reconcile.SheetsRecord) []reconcile.SheetsRecord {
	out := make([]reconcile.SheetsRecord, len(records))
	for i, r := range records {
		out[i] = reconcile.SheetsRecord{ID: r.ID, Tag: r.Tag, Name: r.Name}
	}
	return out
}

// Loader fetches and parses the External Data Loader's two sources.
type Loader struct {
	cfg     Config
	fetcher Fetcher
	breaker *gobreaker.CircuitBreaker[[]byte]

	cache       []reconcile.SheetsRecord
	cacheExpiry time.Time
}

// New constructs a Loader, resolving the business/sheets mutual
// exclusivity up front: if both are enabled, business wins and sheets
// is disabled with a warning (spec §4.D).
func New(cfg Config, fetcher Fetcher) *Loader {
	if cfg.UseBusinessData && cfg.UseGoogleSheets {
		logging.Warn().Msg("datasource: business data and google sheets both enabled; disabling sheets")
		cfg.UseGoogleSheets = false
	}

	name := "external-data-fetch"
	settings := gobreaker.Settings[[]byte]{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 4 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			logging.Info().Str("name", cbName).Str("from", from.String()).Str("to", to.String()).
				Msg("datasource: circuit breaker state transition")
		},
	}

	return &Loader{
		cfg:     cfg,
		fetcher: fetcher,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// LoadBusiness fetches and decodes the Business JSON source. Per
// spec §7, a failure yields an empty slice and a KindDataSourceLoadFailure
// error rather than aborting the whole build.
func (l *Loader) LoadBusiness(ctx context.Context) ([]reconcile.BusinessRecord, error) {
	if !l.cfg.UseBusinessData || l.cfg.BusinessDataURL == "" {
		return nil, nil
	}

	raw, err := l.fetchWithBreaker(ctx, l.cfg.BusinessDataURL)
	if err != nil {
		metrics.DataSourceLoadErrors.WithLabelValues("business").Inc()
		return nil, engineerr.Wrap(engineerr.KindDataSourceLoadFailure, "business data fetch failed", err).
			WithContext("url", l.cfg.BusinessDataURL)
	}

	var entries []businessJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		metrics.DataSourceLoadErrors.WithLabelValues("business").Inc()
		return nil, engineerr.Wrap(engineerr.KindDataSourceLoadFailure, "business data decode failed", err)
	}

	out := make([]reconcile.BusinessRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, reconcile.BusinessRecord{
			ID: e.ID, Name: e.Name, MatchTags: e.MatchTags, ElementType: e.ElementType,
			Description: e.Description, ImageURL: e.ImageURL, LocalImage: e.LocalImage,
		})
	}
	return out, nil
}

// LoadSheets fetches and parses the spreadsheet CSV source, applying
// the online-Google-Sheets cache with TTL expiry (spec §4.D: "cached
// between builds with an expiry, since remote sheets are slow and
// rate-limited"). Local file sources bypass the cache entirely.
func (l *Loader) LoadSheets(ctx context.Context) ([]reconcile.SheetsRecord, error) {
	if !l.cfg.UseGoogleSheets || l.cfg.SheetsSource == "" {
		return nil, nil
	}

	online := isHTTPLocation(l.cfg.SheetsSource)
	if online && l.cache != nil && time.Now().Before(l.cacheExpiry) {
		return l.cache, nil
	}

	location := resolveSheetsURL(l.cfg.SheetsSource, l.cfg.APIKeyParam, l.cfg.APIKey)

	raw, err := l.fetchWithBreaker(ctx, location)
	if err != nil {
		metrics.DataSourceLoadErrors.WithLabelValues("sheets").Inc()
		return nil, engineerr.Wrap(engineerr.KindDataSourceLoadFailure, "sheets fetch failed", err).
			WithContext("url", location)
	}

	var rows []sheetsRow
	if err := gocsv.UnmarshalBytes(raw, &rows); err != nil {
		metrics.DataSourceLoadErrors.WithLabelValues("sheets").Inc()
		return nil, engineerr.Wrap(engineerr.KindDataSourceLoadFailure, "sheets CSV decode failed", err)
	}

	out := make([]reconcile.SheetsRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, reconcile.SheetsRecord{
			ID: r.ID, Tag: r.Tag, Name: r.Name, Description: r.Description,
			ImageURL: r.ImageURL, ElementType: r.ElementType, ParentID: r.ParentID,
		})
	}

	if online {
		ttl := l.cfg.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		l.cache = out
		l.cacheExpiry = time.Now().Add(ttl)
	}
	return out, nil
}

func (l *Loader) fetchWithBreaker(ctx context.Context, location string) ([]byte, error) {
	raw, err := l.breaker.Execute(func() ([]byte, error) {
		return l.fetcher.Fetch(ctx, location)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Str("location", location).Msg("datasource: request rejected by circuit breaker")
		}
		return nil, err
	}
	return raw, nil
}

func isHTTPLocation(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolveSheetsURL converts a Google Sheets share link into its CSV
// export form and appends the API key query param, when configured
// (spec §6: "a share URL is accepted and converted automatically").
func resolveSheetsURL(source, apiKeyParam, apiKey string) string {
	location := source
	if strings.Contains(location, "docs.google.com/spreadsheets") && !strings.Contains(location, "export") {
		if u, err := url.Parse(location); err == nil {
			parts := strings.Split(u.Path, "/")
			var id string
			for i, p := range parts {
				if p == "d" && i+1 < len(parts) {
					id = parts[i+1]
					break
				}
			}
			if id != "" {
				location = fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", id)
			}
		}
	}
	if apiKeyParam != "" && apiKey != "" {
		sep := "?"
		if strings.Contains(location, "?") {
			sep = "&"
		}
		location += sep + url.QueryEscape(apiKeyParam) + "=" + url.QueryEscape(apiKey)
	}
	return location
}
