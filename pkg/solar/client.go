package solar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikechalmers/bespokely-solar/pkg/common"
	"github.com/mikechalmers/bespokely-solar/pkg/log"
	"github.com/mikechalmers/bespokely-solar/pkg/types"
)

const (
	timeUnitQuarterHour = "QUARTER_OF_AN_HOUR"
	timeUnitDay         = "DAY"
)

// APIError is a failed upstream request: a transport error, a non-2xx status
// or a response body that explicitly carried an error field.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error (%d) at %s: %s (caused by: %v)", e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err came from the caller's cancellation signal
// or a per-request timeout rather than a genuine upstream failure. Callers
// use it to stay silent about superseded polls.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Client fetches telemetry from the upstream monitoring API and reduces it to
// the canonical dashboard model.
type Client struct {
	client *http.Client
	cfg    Config
	now    func() time.Time
}

// NewClient returns a client for the given resolved configuration. The
// per-request timeout comes from the config; the shared http client is left
// unbounded so the context owns cancellation.
func NewClient(cfg Config) *Client {
	return &Client{
		client: common.HTTPClient(0),
		cfg:    cfg,
		now:    time.Now,
	}
}

func (c *Client) buildURL(path string, params url.Values) (string, error) {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", base+path, err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

func energyParams(startDate, endDate, timeUnit string) url.Values {
	params := url.Values{}
	params.Set("startDate", startDate)
	params.Set("endDate", endDate)
	params.Set("timeUnit", timeUnit)
	return params
}

// fetchJSON issues one GET bound to both the caller's context and the
// configured per-request timeout, decodes the body into dest and surfaces
// non-2xx statuses and explicit body error fields as APIErrors. dest must
// expose the body error field via errorField.
func (c *Client) fetchJSON(ctx context.Context, rawURL string, dest interface {
	errorField() string
}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// the transport wraps context errors, so IsCanceled still sees them
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   req.URL.Path,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode upstream response",
			slog.Any("error", err), slog.String("endpoint", req.URL.Path))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   req.URL.Path,
			Message:    "undecodable response body",
			Err:        err,
		}
	}
	if msg := dest.errorField(); msg != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   req.URL.Path,
			Message:    msg,
		}
	}
	return nil
}

// Dashboard runs one full pipeline invocation: the overview snapshot, the
// intraday quarter-hour series and the trailing daily history are fetched
// concurrently with fail-fast join semantics, normalized and reduced to a
// fresh DashboardModel. Any request failure abandons the whole invocation;
// cancellation (external or timeout) is distinguishable via IsCanceled.
func (c *Client) Dashboard(ctx context.Context) (types.DashboardModel, error) {
	today := c.now()
	endDate := today.Format("2006-01-02")
	startDate := today.AddDate(0, 0, -(c.cfg.HistoryDays - 1)).Format("2006-01-02")

	overviewURL, err := c.buildURL(c.cfg.Endpoints.Overview, nil)
	if err != nil {
		return types.DashboardModel{}, err
	}
	intradayURL, err := c.buildURL(c.cfg.Endpoints.Energy, energyParams(endDate, endDate, timeUnitQuarterHour))
	if err != nil {
		return types.DashboardModel{}, err
	}
	dailyURL, err := c.buildURL(c.cfg.Endpoints.Energy, energyParams(startDate, endDate, timeUnitDay))
	if err != nil {
		return types.DashboardModel{}, err
	}

	log.Ctx(ctx).DebugContext(ctx, "fetching dashboard data",
		slog.String("startDate", startDate),
		slog.String("endDate", endDate),
	)

	var (
		overviewResp overviewEnvelope
		intradayResp energyEnvelope
		dailyResp    energyEnvelope
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.fetchJSON(gctx, overviewURL, &overviewResp)
	})
	g.Go(func() error {
		return c.fetchJSON(gctx, intradayURL, &intradayResp)
	})
	g.Go(func() error {
		return c.fetchJSON(gctx, dailyURL, &dailyResp)
	})
	if err := g.Wait(); err != nil {
		return types.DashboardModel{}, err
	}

	overview := normalizeOverview(overviewResp.resolve())
	intraday := normalizeSeries(intradayResp.resolve())
	daily := normalizeSeries(dailyResp.resolve())

	return buildModel(c.cfg, overview, intraday, daily), nil
}

// apiError is embedded in response envelopes so a decoded body that carries
// an explicit error field fails the request like a transport error would.
type apiError struct {
	ErrorMessage string `json:"error"`
}

func (e apiError) errorField() string {
	return e.ErrorMessage
}
