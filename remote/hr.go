package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
)

// maxErrorBody caps how much of a failed response is kept as the error.
const maxErrorBody = 1 << 10

// Compile-time interface check.
var _ action.Executor = (*HRClient)(nil)

// HRClient submits timesheet actions to the HR provider.
type HRClient struct {
	base string
	cfg  config
}

// NewHRClient returns a client posting to baseURL.
func NewHRClient(baseURL string, opts ...Option) (*HRClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid HR base URL %q", baseURL)
	}
	return &HRClient{
		base: strings.TrimRight(baseURL, "/"),
		cfg:  newConfig(opts),
	}, nil
}

// Register binds the client to every action kind in reg.
func (c *HRClient) Register(reg *action.Registry) error {
	for _, k := range action.Kinds() {
		if err := reg.Register(k, c); err != nil {
			return err
		}
	}
	return nil
}

type hrRequest struct {
	EmployeeID string            `json:"employeeId"`
	Action     string            `json:"action"`
	Timestamp  time.Time         `json:"timestamp"`
	Context    map[string]string `json:"context,omitempty"`
	Attempt    int               `json:"attempt"`
}

type hrResponse struct {
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Execute posts req to {base}/actions/{kind}.
func (c *HRClient) Execute(ctx context.Context, req action.Request) (action.Result, error) {
	body, err := json.Marshal(hrRequest{
		EmployeeID: req.EmployeeID,
		Action:     string(req.Kind),
		Timestamp:  req.Timestamp.UTC(),
		Context:    req.Context,
		Attempt:    req.Attempt,
	})
	if err != nil {
		return action.Result{}, fmt.Errorf("remote: marshal HR request: %w", err)
	}

	endpoint := c.base + "/actions/" + url.PathEscape(string(req.Kind))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return action.Result{}, fmt.Errorf("remote: build HR request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.cfg.authorize(httpReq)

	resp, err := c.cfg.httpClient.Do(httpReq)
	if err != nil {
		return action.Result{}, fmt.Errorf("remote: HR request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // a short body still carries the status
	var decoded hrResponse
	_ = json.Unmarshal(raw, &decoded) //nolint:errcheck // non-JSON bodies are reported verbatim below

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return action.Result{
			Success:    true,
			StatusCode: resp.StatusCode,
			Data:       decoded.Data,
		}, nil
	}

	msg := decoded.Error
	if msg == "" {
		msg = decoded.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(truncate(raw, maxErrorBody)))
	}
	c.cfg.logger.Debug("HR provider rejected action",
		slog.String("employee_id", req.EmployeeID),
		slog.String("action", string(req.Kind)),
		slog.Int("status", resp.StatusCode),
	)
	return action.Result{
		StatusCode: resp.StatusCode,
		Error:      msg,
	}, nil
}

func (c config) authorize(r *http.Request) {
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
