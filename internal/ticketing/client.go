// Package ticketing talks to the external ticketing service: it builds ticket
// payloads and submits or queries them with the shared service token.
package ticketing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/maintenance-ticketing/internal/credentials"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

const maxResponseBytes = 1 << 20

// ticketIDFields are checked in order, first at the top level and then under "data".
var ticketIDFields = []string{"ticketNumber", "ticketNo", "ticket_number", "ticketId", "id"}

// Endpoints lists the ticketing API paths relative to BaseURL.
type Endpoints struct {
	BaseURL       string
	Create        string
	List          string
	KPI           string
	StatusOptions string
}

// ListFilter selects tickets on the list endpoint.
type ListFilter struct {
	Families    []domain.TicketFamily
	Statuses    []string
	DueFrom     string
	DueTo       string
	CreatedFrom string
	CreatedTo   string
	Page        int
	PageSize    int
}

// KPIFilter selects the ticket population for KPI counts.
type KPIFilter struct {
	Families []domain.TicketFamily
	From     string
	To       string
}

// Client submits and queries tickets. Every call makes exactly one HTTP attempt.
type Client struct {
	endpoints   Endpoints
	http        *http.Client
	tokens      credentials.Provider
	maxAttempts int
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
	now         func() time.Time
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout bounds each HTTP call.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithRateLimit caps outbound requests per second; zero disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTokenAttempts sets maxAttempts for token acquisition.
func WithTokenAttempts(n int) ClientOption {
	return func(cl *Client) {
		cl.maxAttempts = n
	}
}

// WithLogger injects a zap logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient builds a ticketing client backed by the given token provider.
func NewClient(endpoints Endpoints, tokens credentials.Provider, opts ...ClientOption) *Client {
	endpoints.BaseURL = strings.TrimRight(endpoints.BaseURL, "/")
	c := &Client{
		endpoints:   endpoints,
		http:        &http.Client{},
		tokens:      tokens,
		maxAttempts: credentials.DefaultMaxAttempts,
		timeout:     30 * time.Second,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateTicket submits one ticket. Submission problems are reported in the result;
// the returned error is non-nil only when no service token could be obtained.
func (c *Client) CreateTicket(ctx context.Context, payload TicketPayload, family domain.TicketFamily, sourceID string, trigger domain.TriggerSource) (CreateResult, error) {
	start := c.now()
	log := c.logger.With(
		zap.String("family", string(family)),
		zap.String("source_id", sourceID),
		zap.String("trigger", string(trigger)),
	)

	token, err := c.tokens.GetWithRetry(ctx, c.maxAttempts)
	if err != nil {
		return CreateResult{Success: false, Error: err.Error(), ExecutionTime: c.elapsed(start)}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("encode payload: %v", err), ExecutionTime: c.elapsed(start)}, nil
	}

	status, raw, err := c.send(ctx, http.MethodPost, c.endpoints.Create, nil, body, token)
	if err != nil {
		log.Warn("ticket creation failed", zap.Error(err))
		return CreateResult{Success: false, Error: err.Error(), StatusCode: status, RawResponse: raw, ExecutionTime: c.elapsed(start)}, nil
	}

	number, err := extractTicketNumber([]byte(raw))
	if err != nil {
		log.Warn("ticket creation response undecodable", zap.Error(err))
		return CreateResult{Success: false, Error: err.Error(), StatusCode: status, RawResponse: raw, ExecutionTime: c.elapsed(start)}, nil
	}
	if number == "" {
		log.Warn("ticket created without identifier in response")
	}
	log.Info("ticket created", zap.String("ticket_number", number))
	return CreateResult{Success: true, TicketNumber: number, StatusCode: status, ExecutionTime: c.elapsed(start)}, nil
}

// FetchTickets queries one page of existing tickets.
func (c *Client) FetchTickets(ctx context.Context, filter ListFilter) (*TicketPage, error) {
	types := make([]string, 0, len(filter.Families))
	for _, family := range filter.Families {
		t, err := ExternalType(family)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	reqBody := map[string]any{"type": types}
	if len(filter.Statuses) > 0 {
		reqBody["status"] = filter.Statuses
	}
	setIf(reqBody, "dueDateFrom", filter.DueFrom)
	setIf(reqBody, "dueDateTo", filter.DueTo)
	setIf(reqBody, "createdFrom", filter.CreatedFrom)
	setIf(reqBody, "createdTo", filter.CreatedTo)

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))

	var out TicketPage
	if err := c.doJSON(ctx, http.MethodPost, c.endpoints.List, query, reqBody, &out); err != nil {
		return nil, fmt.Errorf("fetch tickets: %w", err)
	}
	return &out, nil
}

// FetchKPIs returns ticket counters for the given families.
func (c *Client) FetchKPIs(ctx context.Context, filter KPIFilter) (map[string]any, error) {
	types := make([]string, 0, len(filter.Families))
	for _, family := range filter.Families {
		t, err := ExternalType(family)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	reqBody := map[string]any{"type": types}
	setIf(reqBody, "from", filter.From)
	setIf(reqBody, "to", filter.To)

	var out struct {
		Data map[string]any `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoints.KPI, nil, reqBody, &out); err != nil {
		return nil, fmt.Errorf("fetch kpis: %w", err)
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out.Data, nil
}

// FetchStatusOptions lists the ticket statuses known to the ticketing service.
func (c *Client) FetchStatusOptions(ctx context.Context) ([]StatusOption, error) {
	var out struct {
		Data []StatusOption `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.endpoints.StatusOptions, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch status options: %w", err)
	}
	return out.Data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	token, err := c.tokens.GetWithRetry(ctx, c.maxAttempts)
	if err != nil {
		return err
	}
	var body []byte
	if in != nil {
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	_, raw, err := c.send(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, token string) (int, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.endpoints.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, "", fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, string(raw), &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp.StatusCode, string(raw), nil
}

func (c *Client) elapsed(start time.Time) int64 {
	return c.now().Sub(start).Milliseconds()
}

func extractTicketNumber(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return "", fmt.Errorf("decode creation response: %w", err)
	}
	if id := firstIdentifier(body); id != "" {
		return id, nil
	}
	if nested, ok := body["data"].(map[string]any); ok {
		return firstIdentifier(nested), nil
	}
	return "", nil
}

func firstIdentifier(m map[string]any) string {
	for _, key := range ticketIDFields {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
