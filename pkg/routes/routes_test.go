package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/ledger/pkg/openapi"
	"github.com/JaimeStill/ledger/pkg/routes"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: ok},
			{Method: "GET", Pattern: "/{id}", Handler: ok},
		},
	})

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"collection", "GET", "/workflows", http.StatusOK},
		{"item", "GET", "/workflows/doc-1", http.StatusOK},
		{"wrong method", "POST", "/workflows/doc-1", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/v1",
				Routes: []routes.Route{{Method: "GET", Pattern: "/items", Handler: ok}},
			},
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/items", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("nested route: got %d, want 200", rec.Code)
	}
}

func TestDescribe(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")

	routes.Describe(spec, "/api", routes.Group{
		Prefix: "/workflows",
		Tags:   []string{"Workflows"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: ok, OpenAPI: &openapi.Operation{Summary: "start"}},
			{Method: "GET", Pattern: "/{id}", Handler: ok, OpenAPI: &openapi.Operation{Summary: "status", Tags: []string{"Status"}}},
			{Method: "GET", Pattern: "/{id}/hidden", Handler: ok},
		},
		Children: []routes.Group{
			{
				Prefix: "/admin",
				Routes: []routes.Route{{Method: "POST", Pattern: "/recover", Handler: ok, OpenAPI: &openapi.Operation{Summary: "recover"}}},
			},
		},
	})

	start := spec.Paths["/api/workflows"]
	if start == nil || start.Post == nil || start.Post.Tags[0] != "Workflows" {
		t.Fatalf("start operation: got %+v", start)
	}

	status := spec.Paths["/api/workflows/{id}"]
	if status == nil || status.Get == nil || status.Get.Tags[0] != "Status" {
		t.Fatalf("status operation: got %+v", status)
	}

	if start.Post.OperationID != "post_api_workflows" {
		t.Errorf("start operation id: got %s", start.Post.OperationID)
	}
	if status.Get.OperationID != "get_api_workflows_id" {
		t.Errorf("status operation id: got %s", status.Get.OperationID)
	}

	if _, ok := spec.Paths["/api/workflows/{id}/hidden"]; ok {
		t.Error("undocumented route added to spec")
	}

	nested := spec.Paths["/api/workflows/admin/recover"]
	if nested == nil || nested.Post == nil || nested.Post.Tags[0] != "Workflows" {
		t.Errorf("nested operation should inherit tags: got %+v", nested)
	}
}
