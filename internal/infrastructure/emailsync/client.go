package emailsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/infrastructure/resilience"
	"github.com/vkarasev/stackwise/internal/observability/metrics"
)

const serviceName = "api"

const (
	// DefaultAuthWait bounds the side-channel connection wait; a silent
	// provider resolves to timed_out, never an error.
	DefaultAuthWait     = 10 * time.Minute
	DefaultPollInterval = 2 * time.Second
)

// Client wraps the email provider boundary. The invoice fetch is idempotent,
// so it runs under the resilience executor; the auth wait and link creation
// do not.
type Client struct {
	baseURL      string
	apiKey       string
	authWait     time.Duration
	pollInterval time.Duration

	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	metrics    *metrics.PipelineMetrics
}

type Options struct {
	AuthWait     time.Duration
	PollInterval time.Duration
	Executor     *resilience.Executor
	Metrics      *metrics.PipelineMetrics
}

func New(baseURL, apiKey string, logger *slog.Logger, options Options) *Client {
	if options.AuthWait <= 0 {
		options.AuthWait = DefaultAuthWait
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		authWait:     options.AuthWait,
		pollInterval: options.PollInterval,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		executor:     options.Executor,
		logger:       logger,
		metrics:      options.Metrics,
	}
}

type authLinkRequest struct {
	SuccessURL string `json:"successUrl,omitempty"`
	FailureURL string `json:"failureUrl,omitempty"`
}

func (c *Client) CreateAuthLink(ctx context.Context, successURL, failureURL string) (domain.AuthLink, error) {
	var link domain.AuthLink
	err := c.postJSON(ctx, "/v1/auth/links", authLinkRequest{SuccessURL: successURL, FailureURL: failureURL}, &link, "create auth link")
	if err != nil {
		return domain.AuthLink{}, err
	}
	if link.LinkID == "" || link.URL == "" {
		return domain.AuthLink{}, domain.WrapError(domain.ErrAPI, "create auth link", fmt.Errorf("incomplete link response"))
	}
	return link, nil
}

type linkStatusResponse struct {
	Status    string `json:"status"`
	AccountID string `json:"accountId"`
}

// WaitForConnection polls the link status until the provider reports a
// terminal state or the wait budget runs out. The result is always definite:
// connected, cancelled, or timed_out.
func (c *Client) WaitForConnection(ctx context.Context, linkID string) (domain.AuthWaitResult, error) {
	if linkID == "" {
		return domain.AuthWaitResult{}, domain.WrapError(domain.ErrInvalidInput, "wait for connection", fmt.Errorf("empty link id"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.authWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var status linkStatusResponse
		err := c.getJSON(ctx, "/v1/auth/links/"+linkID, &status, "poll auth link")
		switch {
		case err == nil:
			switch status.Status {
			case "connected":
				return domain.AuthWaitResult{Outcome: domain.AuthConnected, AccountID: status.AccountID}, nil
			case "cancelled":
				return domain.AuthWaitResult{Outcome: domain.AuthCancelled}, nil
			}
		case errors.Is(err, context.DeadlineExceeded):
			return domain.AuthWaitResult{Outcome: domain.AuthTimedOut}, nil
		case errors.Is(err, context.Canceled):
			return domain.AuthWaitResult{Outcome: domain.AuthCancelled}, nil
		default:
			// Transient poll failures keep the wait alive; the deadline is
			// the only hard stop.
			c.logger.Warn("emailsync.poll_failed", "link", linkID, "error", err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return domain.AuthWaitResult{Outcome: domain.AuthCancelled}, nil
			}
			return domain.AuthWaitResult{Outcome: domain.AuthTimedOut}, nil
		case <-ticker.C:
		}
	}
}

type syncRequest struct {
	AccountID    string `json:"accountId"`
	LookbackDays int    `json:"lookbackDays"`
}

func (c *Client) FetchInvoices(ctx context.Context, accountID string, lookbackDays int) (*domain.EmailSyncOutcome, error) {
	if accountID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch invoices", fmt.Errorf("empty account id"))
	}

	var outcome domain.EmailSyncOutcome
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/invoices/sync", syncRequest{AccountID: accountID, LookbackDays: lookbackDays}, &outcome, "fetch invoices")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "emailsync.fetch", call, classifySyncError)
	} else {
		err = call(ctx)
	}
	c.metrics.RecordEmailSync(serviceName, err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("emailsync.fetch_succeeded",
		"account", accountID,
		"emails_scanned", outcome.EmailsScanned,
		"invoices_found", outcome.InvoiceEmailsFound,
		"services", len(outcome.Services),
	)
	return &outcome, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.ErrParse, "marshal "+operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.WrapError(domain.ErrAPI, "create "+operation+" request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, operation)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.WrapError(domain.ErrAPI, "create "+operation+" request", err)
	}
	return c.do(req, out, operation)
}

func (c *Client) do(req *http.Request, out any, operation string) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return domain.WrapError(domain.ErrNetwork, operation, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.WrapError(domain.ErrAuth, operation, httpError(operation, resp))
	case resp.StatusCode >= 300:
		return domain.WrapError(domain.ErrAPI, operation, httpError(operation, resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrParse, "decode "+operation+" response", err)
	}
	return nil
}

func httpError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("emailsync %s status: %s", operation, resp.Status)
	}
	return fmt.Errorf("emailsync %s status: %s: %s", operation, resp.Status, msg)
}
