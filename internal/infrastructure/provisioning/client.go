package provisioning

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

	"golang.org/x/time/rate"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/core/ports"
)

// Client drives the persistence boundary over HTTP. A shared rate limiter
// keeps concurrent commit chains from flooding the API during a bulk commit.
type Client struct {
	baseURL string
	apiKey  string

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(baseURL, apiKey string, requestsPerSecond float64, logger *slog.Logger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)),
		logger:     logger,
	}
}

func (c *Client) CreateProject(ctx context.Context, req ports.ProjectCreateRequest) (*ports.CreatedProject, error) {
	var created ports.CreatedProject
	if err := c.postJSON(ctx, "/v1/projects", req, &created, "create project"); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, domain.WrapError(domain.ErrAPI, "create project", fmt.Errorf("response missing project id"))
	}
	return &created, nil
}

func (c *Client) CreateServices(ctx context.Context, projectID string, reqs []ports.ServiceCreateRequest) ([]ports.CreatedService, error) {
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create services", fmt.Errorf("empty project id"))
	}
	payload := struct {
		Services []ports.ServiceCreateRequest `json:"services"`
	}{Services: reqs}

	var response struct {
		Services []ports.CreatedService `json:"services"`
	}
	if err := c.postJSON(ctx, "/v1/projects/"+projectID+"/services/bulk", payload, &response, "create services"); err != nil {
		return nil, err
	}
	return response.Services, nil
}

func (c *Client) CreateService(ctx context.Context, projectID string, req ports.ServiceCreateRequest) (*ports.CreatedService, error) {
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create service", fmt.Errorf("empty project id"))
	}
	var created ports.CreatedService
	if err := c.postJSON(ctx, "/v1/projects/"+projectID+"/services", req, &created, "create service"); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, domain.WrapError(domain.ErrAPI, "create service", fmt.Errorf("response missing service id"))
	}
	return &created, nil
}

func (c *Client) CreateCredential(ctx context.Context, serviceID string, req ports.CredentialCreateRequest) error {
	if serviceID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create credential", fmt.Errorf("empty service id"))
	}
	return c.postJSON(ctx, "/v1/services/"+serviceID+"/credentials", req, nil, "create credential")
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.ErrParse, "marshal "+operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.WrapError(domain.ErrAPI, "create "+operation+" request", err)
	}
	req.Header.Set("Content-Type", "application/json")
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

	if out == nil {
		return nil
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
		return fmt.Errorf("provisioning %s status: %s", operation, resp.Status)
	}
	return fmt.Errorf("provisioning %s status: %s: %s", operation, resp.Status, msg)
}
