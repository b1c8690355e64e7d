package extraction

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
	"github.com/vkarasev/stackwise/internal/observability/metrics"
)

const serviceName = "api"

// DefaultTimeout bounds one extraction call end to end. The call is terminal:
// it either succeeds, fails with a classified error, or is cut off here.
const DefaultTimeout = 120 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration

	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.PipelineMetrics
}

func New(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, pipelineMetrics *metrics.PipelineMetrics) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		// The context deadline is the budget; the transport timeout is a
		// slightly wider backstop.
		httpClient: &http.Client{Timeout: timeout + 5*time.Second},
		logger:     logger,
		metrics:    pipelineMetrics,
	}
}

type extractRequest struct {
	Documents   []domain.NormalizedInput `json:"documents"`
	WorkspaceID string                   `json:"workspaceId,omitempty"`
}

type wireBilling struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Frequency string  `json:"frequency"`
}

type wireServiceRow struct {
	RegistryID   string      `json:"registryId"`
	DetectedName string      `json:"detectedName"`
	Confidence   float64     `json:"confidence"`
	Billing      wireBilling `json:"billing"`
	RenewalDate  string      `json:"renewalDate"`
	PlanName     string      `json:"planName"`
}

type wireData struct {
	SuggestedProjectName string           `json:"suggestedProjectName"`
	SuggestedProjectType string           `json:"suggestedProjectType"`
	Services             []wireServiceRow `json:"services"`
	UnmatchedItems       []string         `json:"unmatchedItems"`
}

type extractResponse struct {
	Success         bool                   `json:"success"`
	Data            *wireData              `json:"data"`
	ServiceRegistry []domain.RegistryEntry `json:"serviceRegistry"`
	Error           string                 `json:"error"`
	Details         string                 `json:"details"`
}

// ExtractFromDocuments invokes the extraction service once, within the time
// budget. No retry happens here or anywhere below: a long document batch
// makes a duplicate call more expensive than a user-driven re-run.
func (c *Client) ExtractFromDocuments(ctx context.Context, inputs []domain.NormalizedInput, workspaceID string) (*domain.ExtractionOutcome, error) {
	if len(inputs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("no inputs"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer c.metrics.ExtractionStarted(serviceName)()

	start := time.Now()
	outcome, err := c.extract(ctx, inputs, workspaceID)
	rows := 0
	if outcome != nil {
		rows = len(outcome.Services)
	}
	c.metrics.RecordExtraction(serviceName, rows, time.Since(start), err)

	if err != nil {
		c.logger.Warn("extraction.call_failed",
			"documents", len(inputs),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		return nil, err
	}

	c.logger.Info("extraction.call_succeeded",
		"documents", len(inputs),
		"services", rows,
		"unmatched", len(outcome.UnmatchedItems),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return outcome, nil
}

func (c *Client) extract(ctx context.Context, inputs []domain.NormalizedInput, workspaceID string) (*domain.ExtractionOutcome, error) {
	body, err := json.Marshal(extractRequest{Documents: inputs, WorkspaceID: workspaceID})
	if err != nil {
		return nil, domain.WrapError(domain.ErrParse, "marshal extract request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrAPI, "create extract request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.WrapError(domain.ErrAuth, "extract", httpError(resp))
	case resp.StatusCode >= 300:
		return nil, domain.WrapError(domain.ErrAPI, "extract", httpError(resp))
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// The budget can expire mid-body, after headers already arrived.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrTimeout, "extract", err)
		}
		return nil, domain.WrapError(domain.ErrParse, "decode extract response", err)
	}

	// success=false or absent data is an API failure regardless of status.
	if !decoded.Success || decoded.Data == nil {
		msg := strings.TrimSpace(decoded.Error)
		if msg == "" {
			msg = "extraction service reported failure"
		}
		if details := strings.TrimSpace(decoded.Details); details != "" {
			msg = msg + ": " + details
		}
		return nil, domain.WrapError(domain.ErrAPI, "extract", errors.New(msg))
	}

	return mapOutcome(decoded), nil
}

func mapOutcome(decoded extractResponse) *domain.ExtractionOutcome {
	registry := domain.RegistrySnapshot{}
	for _, entry := range decoded.ServiceRegistry {
		if entry.ID == "" {
			continue
		}
		registry[entry.ID] = entry
	}

	services := make([]domain.ServiceRow, 0, len(decoded.Data.Services))
	for _, row := range decoded.Data.Services {
		services = append(services, domain.ServiceRow{
			RegistryID:   row.RegistryID,
			DetectedName: row.DetectedName,
			Confidence:   row.Confidence,
			Amount:       row.Billing.Amount,
			Currency:     row.Billing.Currency,
			Frequency:    row.Billing.Frequency,
			RenewalDate:  row.RenewalDate,
			PlanName:     row.PlanName,
		})
	}

	return &domain.ExtractionOutcome{
		SuggestedProjectName: decoded.Data.SuggestedProjectName,
		SuggestedProjectType: decoded.Data.SuggestedProjectType,
		Services:             services,
		UnmatchedItems:       decoded.Data.UnmatchedItems,
		Registry:             registry,
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, "extract", err)
	}
	if errors.Is(err, context.Canceled) {
		// User-driven cancellation is not a service failure.
		return err
	}
	return domain.WrapError(domain.ErrNetwork, "extract", err)
}

func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("extraction status: %s", resp.Status)
	}
	return fmt.Errorf("extraction status: %s: %s", resp.Status, msg)
}
