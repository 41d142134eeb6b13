package usms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	loginPath   = "api/login"
	accountPath = "api/account"

	defaultRefreshInterval = time.Hour
)

// Client talks to a USMS bridge over JSON and implements Account.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	username        string
	password        string
	refreshInterval time.Duration
	now             func() time.Time

	mu          sync.Mutex
	token       string
	meters      []*clientMeter
	lastRefresh time.Time
	nextRefresh time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRefreshInterval sets how long account data is considered fresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.refreshInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New returns a client that has not contacted USMS yet. It logs in on its
// first request and is due for an update right away.
func New(baseURL, username, password string, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: time.Minute},
		baseURL:         baseURL,
		username:        username,
		password:        password,
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient logs into USMS and loads the account's meters.
// A rejected login returns an error wrapping ErrLogin, which makes this
// usable as a credential check.
func NewClient(ctx context.Context, baseURL, username, password string, opts ...Option) (*Client, error) {
	c := New(baseURL, username, password, opts...)
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	if _, err := c.RefreshData(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Username() string {
	return c.username
}

// IsUpdateDue reports whether the next refresh time has passed. A tenth of
// the interval is allowed as slack so a poller ticking at the same interval
// is not pushed back by the time the previous refresh took.
func (c *Client) IsUpdateDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Add(c.refreshInterval / 10).Before(c.nextRefresh)
}

func (c *Client) RefreshData(ctx context.Context) (bool, error) {
	var res accountResponse
	if err := c.get(ctx, accountPath, nil, &res); err != nil {
		return false, fmt.Errorf("failed to refresh account %s: %w", c.username, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := make(map[string]time.Time, len(c.meters))
	for _, m := range c.meters {
		previous[m.info.No] = m.info.LastUpdate
	}

	hasUpdates := false
	meters := make([]*clientMeter, 0, len(res.Meters))
	for _, info := range res.Meters {
		last, known := previous[info.No]
		if !known || info.LastUpdate.After(last) {
			hasUpdates = true
		}
		meters = append(meters, &clientMeter{client: c, info: info})
	}

	c.meters = meters
	c.lastRefresh = c.now()
	c.nextRefresh = c.lastRefresh.Add(c.refreshInterval)
	return hasUpdates, nil
}

func (c *Client) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

func (c *Client) NextRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextRefresh
}

func (c *Client) Meters() []Meter {
	c.mu.Lock()
	defer c.mu.Unlock()
	meters := make([]Meter, 0, len(c.meters))
	for _, m := range c.meters {
		meters = append(meters, m)
	}
	return meters
}

// Login starts a new USMS session.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return fmt.Errorf("missing username or password: %w", ErrLogin)
	}

	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, loginPath, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var res loginResponse
	if err := c.doRequest(req, &res); err != nil {
		return fmt.Errorf("login failed for %s: %w", c.username, err)
	}
	if res.Token == "" {
		return fmt.Errorf("login returned no session for %s: %w", c.username, ErrLogin)
	}

	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	log.Debugf("Logged into USMS account %s", c.username)
	return nil
}

// get performs an authenticated GET. An expired session is renewed once.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	c.mu.Lock()
	loggedIn := c.token != ""
	c.mu.Unlock()
	if !loggedIn {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	err := c.getOnce(ctx, endpoint, params, out)
	if !errors.Is(err, ErrLogin) {
		return err
	}

	log.Debugf("USMS session for %s expired, logging in again", c.username)
	if err := c.Login(ctx); err != nil {
		return err
	}
	return c.getOnce(ctx, endpoint, params, out)
}

func (c *Client) getOnce(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.mu.Unlock()
	return c.doRequest(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values, body *bytes.Reader) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	if body == nil {
		return http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

func (c *Client) doRequest(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrLogin
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", req.URL.Path, err)
	}
	return nil
}

type clientMeter struct {
	client *Client
	info   meterResponse
}

func (m *clientMeter) Type() string             { return m.info.Type }
func (m *clientMeter) No() string               { return m.info.No }
func (m *clientMeter) Unit() string             { return m.info.Unit }
func (m *clientMeter) RemainingUnit() float64   { return m.info.RemainingUnit }
func (m *clientMeter) RemainingCredit() float64 { return m.info.RemainingCredit }
func (m *clientMeter) LastUpdate() time.Time    { return m.info.LastUpdate }

func (m *clientMeter) HourlyConsumptions(ctx context.Context, day time.Time) ([]HourlyConsumption, error) {
	params := url.Values{}
	params.Set("date", day.Format(time.DateOnly))
	return m.hourly(ctx, params)
}

func (m *clientMeter) LastNDaysHourlyConsumptions(ctx context.Context, n int) ([]HourlyConsumption, error) {
	params := url.Values{}
	params.Set("last_days", strconv.Itoa(n))
	return m.hourly(ctx, params)
}

func (m *clientMeter) AllHourlyConsumptions(ctx context.Context) ([]HourlyConsumption, error) {
	params := url.Values{}
	params.Set("all", "1")
	return m.hourly(ctx, params)
}

func (m *clientMeter) PreviousNMonthConsumptions(ctx context.Context, n int) ([]DailyConsumption, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(n))

	var res []DailyConsumption
	if err := m.client.get(ctx, m.path("monthly"), params, &res); err != nil {
		return nil, fmt.Errorf("failed to get monthly consumptions for meter %s: %w", m.info.No, err)
	}
	return res, nil
}

func (m *clientMeter) hourly(ctx context.Context, params url.Values) ([]HourlyConsumption, error) {
	var res []HourlyConsumption
	if err := m.client.get(ctx, m.path("hourly"), params, &res); err != nil {
		return nil, fmt.Errorf("failed to get hourly consumptions for meter %s: %w", m.info.No, err)
	}
	return res, nil
}

func (m *clientMeter) path(kind string) string {
	return "api/meters/" + m.info.No + "/" + kind
}
