package routes

import (
	"net/http"
	"strings"

	"github.com/JaimeStill/ledger/pkg/openapi"
)

// Group organizes routes under a common prefix with shared tags.
type Group struct {
	Prefix   string
	Tags     []string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		pattern := route.Method + " " + fullPrefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, child)
	}
}

// Describe adds the documented routes of groups to spec, rooted at basePath.
// Operations without tags inherit the tags of their group.
func Describe(spec *openapi.Spec, basePath string, groups ...Group) {
	for _, group := range groups {
		describeGroup(spec, basePath, nil, group)
	}
}

func describeGroup(spec *openapi.Spec, parentPrefix string, parentTags []string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	tags := group.Tags
	if len(tags) == 0 {
		tags = parentTags
	}

	for _, route := range group.Routes {
		if route.OpenAPI == nil {
			continue
		}
		path := fullPrefix + route.Pattern
		op := *route.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = tags
		}
		if op.OperationID == "" {
			op.OperationID = operationID(route.Method, path)
		}
		spec.AddOperation(path, route.Method, &op)
	}
	for _, child := range group.Children {
		describeGroup(spec, fullPrefix, tags, child)
	}
}

// operationID turns "GET /workflows/{id}/history" into "get_workflows_id_history".
func operationID(method, path string) string {
	parts := []string{strings.ToLower(method)}
	for seg := range strings.SplitSeq(path, "/") {
		seg = strings.Trim(seg, "{}.")
		if seg != "" {
			parts = append(parts, strings.ReplaceAll(seg, "-", "_"))
		}
	}
	return strings.Join(parts, "_")
}
