package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "stepsync/pkg/logx"
)

const (
	DefaultURL     = "https://ydapi.datu520.com/"
	DefaultTimeout = 30 * time.Second

	// MaxStep is the largest value the remote endpoint accepts.
	MaxStep = 98800

	maxBodyBytes = 1 << 20
)

var ErrStepOutOfRange = errors.New("step out of range")

// Credentials identify the account whose counter is updated.
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) IsZero() bool { return c.User == "" && c.Password == "" }

// TransportError describes a failed push: either the request never completed
// (Status 0, Code -1) or the endpoint answered with a non-2xx status.
type TransportError struct {
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return "push failed: " + e.Message
	}
	if e.Message == "" {
		return fmt.Sprintf("push failed: http %d", e.Status)
	}
	return fmt.Sprintf("push failed: http %d: %s", e.Status, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Response is the structured outcome of a push. Body holds the decoded JSON
// object; when the endpoint answered with something else it holds a
// synthesized {"status", "body"} pair, and on transport failure
// {"code": -1, "message"}.
type Response struct {
	OK      bool
	Status  int
	Code    int
	Message string
	Body    map[string]any

	err error
}

// Err returns nil for a successful push and a *TransportError otherwise.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return &TransportError{Status: r.Status, Code: r.Code, Message: r.Message, Err: r.err}
}

func (r Response) String() string {
	b, err := json.Marshal(r.Body)
	if err != nil {
		return fmt.Sprintf("status=%d code=%d message=%q", r.Status, r.Code, r.Message)
	}
	return string(b)
}

// Client pushes step values to the remote endpoint with an HTTP form POST.
type Client struct {
	url string
	hc  *http.Client
	log logx.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout bounds every push. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

func WithLogger(l logx.Logger) Option { return func(c *Client) { c.log = l } }

func New(endpoint string, opts ...Option) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultURL
	}
	c := &Client{
		url: endpoint,
		hc:  &http.Client{Timeout: DefaultTimeout},
		log: logx.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) URL() string { return c.url }

// ValidateStep reports whether step is within [0, MaxStep].
func ValidateStep(step int) error {
	if step < 0 || step > MaxStep {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrStepOutOfRange, step, MaxStep)
	}
	return nil
}

// Push sends step for creds. It never returns an error value: failures are
// reported through ok=false and the Response payload.
func (c *Client) Push(ctx context.Context, creds Credentials, step int) (bool, Response) {
	if err := ValidateStep(step); err != nil {
		return false, failure(err)
	}

	form := url.Values{}
	form.Set("user", creds.User)
	form.Set("password", creds.Password)
	form.Set("step", strconv.Itoa(step))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return false, failure(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("push transport error", logx.Int("step", step), logx.Err(err))
		return false, failure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, failure(fmt.Errorf("read response: %w", err))
	}

	out := decode(resp.StatusCode, raw)
	out.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !out.OK && out.Message == "" {
		out.Message = strings.TrimSpace(truncate(string(raw), 512))
	}
	return out.OK, out
}

func failure(err error) Response {
	return Response{
		Code:    -1,
		Message: err.Error(),
		Body:    map[string]any{"code": -1, "message": err.Error()},
		err:     err,
	}
}

func decode(status int, raw []byte) Response {
	out := Response{Status: status}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		out.Body = map[string]any{"status": status, "body": string(raw)}
		return out
	}
	out.Body = body

	switch v := body["code"].(type) {
	case float64:
		out.Code = int(v)
	case string:
		out.Code, _ = strconv.Atoi(v)
	}
	for _, k := range []string{"message", "msg"} {
		if s, ok := body[k].(string); ok && s != "" {
			out.Message = s
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
