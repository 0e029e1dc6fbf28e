package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientProjectLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "missing bearer token"})
			return
		}
		switch r.Method {
		case http.MethodPost:
			var req struct {
				BrandName string          `json:"brandName"`
				Inputs    json.RawMessage `json:"inputs"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode create request: %v", err)
			}
			if req.BrandName != "Acme" {
				t.Fatalf("brand name = %q", req.BrandName)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(ProjectResponse{Project: Project{ID: "p-1", BrandName: req.BrandName, Status: "draft"}})
		case http.MethodGet:
			json.NewEncoder(w).Encode(ProjectListResponse{Projects: []Project{{ID: "p-1", BrandName: "Acme"}}})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/projects/p-1/capsule", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(ArtifactResponse{Artifact: Artifact{Payload: json.RawMessage(`{"essence":"bold"}`), Model: "gemini-test"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, WithToken("token-1"))
	ctx := context.Background()

	project, err := client.CreateProject(ctx, "Acme", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if project.ID != "p-1" || project.Status != "draft" {
		t.Fatalf("unexpected project: %+v", project)
	}

	projects, err := client.Projects(ctx)
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "p-1" {
		t.Fatalf("unexpected list: %+v", projects)
	}

	artifact, err := client.GenerateCapsule(ctx, "p-1")
	if err != nil {
		t.Fatalf("GenerateCapsule: %v", err)
	}
	if artifact.Model != "gemini-test" {
		t.Fatalf("artifact model = %q", artifact.Model)
	}
}

func TestClientSurfacesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "generate the identity capsule first"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GenerateDashboard(context.Background(), "p-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusConflict {
		t.Fatalf("code = %d", statusErr.Code)
	}
	if statusErr.Message != "generate the identity capsule first" {
		t.Fatalf("message = %q", statusErr.Message)
	}
}

func TestClientNormalizesBareAddress(t *testing.T) {
	client := NewClient("127.0.0.1:8725/")
	if client.baseURL != "http://127.0.0.1:8725" {
		t.Fatalf("baseURL = %q", client.baseURL)
	}
}

func TestClientEmbedParsesHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("license") != `{"licensor":"Acme"}` {
			t.Fatalf("license field = %q", r.FormValue("license"))
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Disposition", `attachment; filename="photo.jpg"`)
		w.Header().Set("X-License-Id", "lic-1")
		w.Header().Set("X-License-Digest", "abc123")
		w.Header().Set("X-License-Sidecar", "false")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	result, err := client.Embed(context.Background(), "photo.jpg", []byte{0xFF, 0xD8, 0xFF, 0xD9}, `{"licensor":"Acme"}`)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if result.LicenseID != "lic-1" || result.Digest != "abc123" || result.Sidecar {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.FileName != "photo.jpg" || result.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected metadata: %+v", result)
	}
	if len(result.Data) != 4 {
		t.Fatalf("data length = %d", len(result.Data))
	}
}

func TestClientHealthDecodesUnhealthyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{Healthy: false, Services: map[string]string{"gemini": "dial tcp: refused"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	report, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.Healthy {
		t.Fatal("expected unhealthy report")
	}
	if report.Services["gemini"] == "" {
		t.Fatal("expected service detail")
	}
}
