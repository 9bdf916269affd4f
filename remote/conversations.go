package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
)

// Compile-time interface check.
var _ deletion.Executor = (*ConversationClient)(nil)

// ConversationClient erases an employee's conversations from the chat
// history service.
type ConversationClient struct {
	base string
	cfg  config
}

// NewConversationClient returns a client for the service at baseURL.
func NewConversationClient(baseURL string, opts ...Option) (*ConversationClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid conversation store URL %q", baseURL)
	}
	return &ConversationClient{
		base: strings.TrimRight(baseURL, "/"),
		cfg:  newConfig(opts),
	}, nil
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// DeleteAllData sends DELETE {base}/employees/{id}/conversations. A 404
// means nothing is left to erase and counts as zero deleted.
func (c *ConversationClient) DeleteAllData(ctx context.Context, employeeID string) (int, error) {
	endpoint := c.base + "/employees/" + url.PathEscape(employeeID) + "/conversations"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("remote: build delete request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.cfg.authorize(req)

	resp, err := c.cfg.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote: delete conversations: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, nil
	case resp.StatusCode == http.StatusNoContent:
		return 0, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort error detail
		return 0, fmt.Errorf("remote: delete conversations for %s: status %d: %s",
			employeeID, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("remote: decode delete response: %w", err)
	}
	c.cfg.logger.Info("conversations deleted",
		slog.String("employee_id", employeeID),
		slog.Int("count", out.Deleted),
	)
	return out.Deleted, nil
}
