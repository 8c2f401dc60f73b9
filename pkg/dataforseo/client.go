// Package dataforseo wraps the task-based SERP API used for local rank
// sampling: a query is submitted, processed out-of-band by the provider, and
// fetched later by task id.
package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.dataforseo.com"

// Sentinel states of an in-flight task, returned by FetchResult.
var (
	// ErrNotReady means the provider has not finished computing the result.
	// Not an error condition: retry the poll loop.
	ErrNotReady = errors.New("dataforseo: task not ready")
	// ErrNotFound means the provider does not know the task id. Providers
	// auto-expire tasks, so this is expected after long delays.
	ErrNotFound = errors.New("dataforseo: task not found")
)

// Client defines the three protocol operations of the ranking provider.
type Client interface {
	// SubmitTask posts a rank query and returns the provider task id.
	SubmitTask(ctx context.Context, req TaskRequest) (string, error)

	// IsReady reports whether a task's result is available. The signal is a
	// hint, not authoritative: a false answer may still fetch successfully.
	IsReady(ctx context.Context, taskID string) (bool, error)

	// FetchResult retrieves the result list for a task. Returns ErrNotReady
	// or ErrNotFound for in-flight and expired tasks respectively.
	FetchResult(ctx context.Context, taskID string) (*TaskResult, error)
}

// TaskRequest holds one rank query: what to search and where.
type TaskRequest struct {
	Keyword string
	Lat     float64
	Lng     float64
	Device  string // "desktop" or "mobile"
	Depth   int    // number of results to retrieve
}

// ResultItem is one entry of a provider result list.
type ResultItem struct {
	Position int    `json:"rank_absolute"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// TaskResult is the completed result set for one task. An empty Items slice
// is a legitimate answer, not an error.
type TaskResult struct {
	Items        []ResultItem
	SearchVolume int
}

// APIError is returned when the provider responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dataforseo: HTTP %d: %s", e.StatusCode, e.Body)
}

// MalformedError is returned when a response decodes but lacks the expected
// shape. The raw payload is preserved for diagnosis.
type MalformedError struct {
	Reason string
	Raw    []byte
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("dataforseo: malformed response: %s", e.Reason)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit applied to all calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// httpClient implements Client against the DataForSEO v3 API using basic auth.
type httpClient struct {
	login    string
	password string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a provider client with the given credentials.
func NewClient(login, password string, opts ...Option) Client {
	c := &httpClient{
		login:    login,
		password: password,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(10, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Provider task status codes. 20000 is success; the 4060x range means the
// task is still being processed; 40401 means the id is unknown or expired.
const (
	statusOK         = 20000
	statusCreated    = 20100
	statusHanded     = 40601
	statusInQueue    = 40602
	statusNotFound   = 40401
	statusTaskFailed = 40501
)

type taskEnvelope struct {
	StatusCode int           `json:"status_code"`
	Tasks      []taskPayload `json:"tasks"`
}

type taskPayload struct {
	ID            string       `json:"id"`
	StatusCode    int          `json:"status_code"`
	StatusMessage string       `json:"status_message"`
	Result        []taskResult `json:"result"`
}

type taskResult struct {
	Keyword string       `json:"keyword"`
	Items   []ResultItem `json:"items"`
}

type submitTask struct {
	Keyword            string `json:"keyword"`
	LocationCoordinate string `json:"location_coordinate"`
	LanguageCode       string `json:"language_code"`
	Device             string `json:"device,omitempty"`
	Depth              int    `json:"depth,omitempty"`
}

func (c *httpClient) SubmitTask(ctx context.Context, req TaskRequest) (string, error) {
	device := req.Device
	if device == "" {
		device = "desktop"
	}
	depth := req.Depth
	if depth <= 0 {
		depth = 20
	}

	body := []submitTask{{
		Keyword:            req.Keyword,
		LocationCoordinate: fmt.Sprintf("%.7f,%.7f", req.Lat, req.Lng),
		LanguageCode:       "en",
		Device:             device,
		Depth:              depth,
	}}

	env, raw, err := c.do(ctx, http.MethodPost, "/v3/serp/google/maps/task_post", body)
	if err != nil {
		return "", err
	}

	if len(env.Tasks) == 0 || env.Tasks[0].ID == "" {
		return "", &MalformedError{Reason: "task_post response missing task id", Raw: raw}
	}
	return env.Tasks[0].ID, nil
}

func (c *httpClient) IsReady(ctx context.Context, taskID string) (bool, error) {
	_, raw, err := c.do(ctx, http.MethodGet, "/v3/serp/google/maps/tasks_ready", nil)
	if err != nil {
		return false, err
	}

	// tasks_ready nests completed task ids inside result entries.
	var env struct {
		Tasks []struct {
			Result []struct {
				ID string `json:"id"`
			} `json:"result"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, &MalformedError{Reason: "undecodable tasks_ready body: " + err.Error(), Raw: raw}
	}
	for _, t := range env.Tasks {
		for _, r := range t.Result {
			if r.ID == taskID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *httpClient) FetchResult(ctx context.Context, taskID string) (*TaskResult, error) {
	env, raw, err := c.do(ctx, http.MethodGet, "/v3/serp/google/maps/task_get/advanced/"+taskID, nil)
	if err != nil {
		return nil, err
	}

	if len(env.Tasks) == 0 {
		return nil, &MalformedError{Reason: "task_get response missing tasks", Raw: raw}
	}

	t := env.Tasks[0]
	switch t.StatusCode {
	case statusOK:
		// Absent or empty result sets are a legitimate empty answer.
		var items []ResultItem
		for _, r := range t.Result {
			items = append(items, r.Items...)
		}
		return &TaskResult{Items: items}, nil
	case statusHanded, statusInQueue, statusCreated:
		return nil, ErrNotReady
	case statusNotFound:
		return nil, ErrNotFound
	default:
		return nil, eris.Errorf("dataforseo: task %s failed: %d %s", taskID, t.StatusCode, t.StatusMessage)
	}
}

// do performs one API round trip, decoding the standard response envelope.
func (c *httpClient) do(ctx context.Context, method, path string, payload any) (*taskEnvelope, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, eris.Wrap(err, "dataforseo: rate limiter")
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, eris.Wrap(err, "dataforseo: marshal request")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, eris.Wrap(err, "dataforseo: create request")
	}
	req.SetBasicAuth(c.login, c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, eris.Wrap(err, "dataforseo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, eris.Wrap(err, "dataforseo: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, raw, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, raw, &MalformedError{Reason: "undecodable body: " + err.Error(), Raw: raw}
	}

	return &env, raw, nil
}
