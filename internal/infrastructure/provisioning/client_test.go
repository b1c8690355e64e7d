package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/core/ports"
)

func TestCreateProjectReturnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects" {
			http.NotFound(w, r)
			return
		}
		var req ports.ProjectCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Name != "acme" || req.WorkspaceID != "ws-1" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"id": "proj-77"}`))
	}))
	defer server.Close()

	client := New(server.URL, "", 100, nil)
	created, err := client.CreateProject(context.Background(), ports.ProjectCreateRequest{Name: "acme", Type: "web", WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if created.ID != "proj-77" {
		t.Fatalf("unexpected id %q", created.ID)
	}
}

func TestCreateProjectMissingIDIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, "", 100, nil)
	_, err := client.CreateProject(context.Background(), ports.ProjectCreateRequest{Name: "acme"})
	if !domain.IsKind(err, domain.ErrAPI) {
		t.Fatalf("expected api error kind, got %v", err)
	}
}

func TestCreateServicesBulkPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/proj-1/services/bulk" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Services []ports.ServiceCreateRequest `json:"services"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(payload.Services) != 2 {
			t.Errorf("expected 2 services, got %d", len(payload.Services))
		}
		_, _ = w.Write([]byte(`{"services": [{"id": "s-1"}, {"id": "s-2"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "", 100, nil)
	created, err := client.CreateServices(context.Background(), "proj-1", []ports.ServiceCreateRequest{
		{Name: "Vercel", CategoryID: "infrastructure", Amount: 20, Currency: "USD", Frequency: "monthly"},
		{Name: "Namecheap", CategoryID: "domains", Amount: 14, Currency: "USD", Frequency: "yearly"},
	})
	if err != nil {
		t.Fatalf("CreateServices() error = %v", err)
	}
	if len(created) != 2 || created[1].ID != "s-2" {
		t.Fatalf("unexpected created services: %+v", created)
	}
}

func TestCreateCredentialScopedToService(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(server.URL, "", 100, nil)
	err := client.CreateCredential(context.Background(), "s-9", ports.CredentialCreateRequest{
		Environment: "production",
		Type:        "api_key",
		Fields:      map[string]string{"key": "v"},
	})
	if err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}
	if capturedPath != "/v1/services/s-9/credentials" {
		t.Fatalf("unexpected path %q", capturedPath)
	}
}

func TestServerErrorSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusConflict)
	}))
	defer server.Close()

	client := New(server.URL, "", 100, nil)
	_, err := client.CreateProject(context.Background(), ports.ProjectCreateRequest{Name: "acme"})
	if !domain.IsKind(err, domain.ErrAPI) {
		t.Fatalf("expected api error kind, got %v", err)
	}
}
