package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/pkg/configuration"
	"github.com/iota-uz/roster-sync/pkg/httpapi"
)

// Client implements roster.Store over the store's JSON API.
type Client struct {
	baseURL         *url.URL
	authorization   string
	pageSize        int
	httpClient      *http.Client
	requestIDHeader string
	limiter         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker
	log             *logrus.Entry
}

var _ roster.Store = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestIDHeader sets the header carrying a fresh request id on every call.
func WithRequestIDHeader(header string) Option {
	return func(c *Client) { c.requestIDHeader = header }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

func New(opts configuration.StoreOptions, options ...Option) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store url: %q", opts.BaseURL)
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:         u,
		authorization:   bearer(opts.Token),
		pageSize:        opts.PageSize,
		httpClient:      &http.Client{Timeout: opts.Timeout},
		requestIDHeader: "X-Request-ID",
		limiter:         rate.NewLimiter(limit, burst),
		log:             logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range options {
		o(c)
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "roster-store",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.Set(float64(to))
			c.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("store circuit breaker state changed")
		},
	})
	return c, nil
}

func bearer(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func (c *Client) FetchAllOrgs(ctx context.Context) ([]roster.OrgRecord, error) {
	items, err := fetchAll[OrgDTO](ctx, c, orgsPath)
	if err != nil {
		return nil, classify("fetch orgs", err)
	}
	out := make([]roster.OrgRecord, 0, len(items))
	for _, it := range items {
		out = append(out, it.Record())
	}
	return out, nil
}

func (c *Client) FetchAllCourses(ctx context.Context) ([]roster.CourseRecord, error) {
	items, err := fetchAll[CourseDTO](ctx, c, coursesPath)
	if err != nil {
		return nil, classify("fetch courses", err)
	}
	out := make([]roster.CourseRecord, 0, len(items))
	for _, it := range items {
		out = append(out, it.Record())
	}
	return out, nil
}

func (c *Client) FindOrgByCode(ctx context.Context, code int) (roster.OrgRecord, error) {
	q := url.Values{}
	q.Set("code", strconv.Itoa(code))
	q.Set("limit", "1")

	var page Page[OrgDTO]
	if _, err := c.do(ctx, http.MethodGet, orgsPath, q, nil, &page); err != nil {
		return roster.OrgRecord{}, classify("find org", err)
	}
	if len(page.Items) == 0 {
		return roster.OrgRecord{}, fmt.Errorf("%w: organization code %d", roster.ErrNotFound, code)
	}
	return page.Items[0].Record(), nil
}

func (c *Client) CreateOrg(ctx context.Context, name string, code int) (roster.OrgRecord, error) {
	var out OrgDTO
	_, err := c.do(ctx, http.MethodPost, orgsPath, nil, CreateOrgRequest{Name: name, Code: code}, &out)
	if err != nil {
		var re *responseError
		if errors.As(err, &re) && (re.status == http.StatusConflict || re.code() == CodeOrgConflict) {
			return roster.OrgRecord{}, &roster.ConflictError{Code: code}
		}
		return roster.OrgRecord{}, classify("create org", err)
	}
	if out.ID == "" {
		return roster.OrgRecord{}, fmt.Errorf("%w: create org: response has no id", roster.ErrRemote)
	}
	return out.Record(), nil
}

func (c *Client) UpdateCourseHeadcount(ctx context.Context, courseID string, headcount int) error {
	path := coursesPath + "/" + url.PathEscape(courseID)
	if _, err := c.do(ctx, http.MethodPatch, path, nil, UpdateCourseRequest{Headcount: headcount}, nil); err != nil {
		return classify("update course", err)
	}
	return nil
}

func fetchAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page Page[T]
		if _, err := c.do(ctx, http.MethodGet, path, q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.NextCursor == nil || strings.TrimSpace(*page.NextCursor) == "" {
			return all, nil
		}
		if *page.NextCursor == cursor {
			return nil, errors.Errorf("%s: cursor %q did not advance", path, cursor)
		}
		cursor = *page.NextCursor
	}
}

// do throttles the call and runs it through the circuit breaker.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doJSON(ctx, method, path, query, reqBody, out)
	})
	status, _ := res.(int)
	recordRequest(method, status, err, time.Since(start))
	return status, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody, out any) (int, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return 0, errors.Wrap(err, "json marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, errors.Wrap(err, "http request")
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.requestIDHeader != "" {
		req.Header.Set(c.requestIDHeader, uuid.NewString())
	}
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &transportError{err: errors.Wrap(err, "http read")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &responseError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
		if env, ok := httpapi.DecodeError(respBody); ok {
			re.envelope = env
		}
		return resp.StatusCode, re
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, errors.Wrap(err, "json unmarshal response")
	}
	return resp.StatusCode, nil
}
