package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/ledger/internal/config"
	"github.com/JaimeStill/ledger/pkg/openapi"
	"github.com/JaimeStill/ledger/pkg/routes"
)

func str(desc string) *openapi.Schema {
	return &openapi.Schema{Type: "string", Description: desc}
}

func enum(values ...string) *openapi.Schema {
	s := &openapi.Schema{Type: "string"}
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

var riskLevel = enum("low", "medium", "high", "critical")

var schemas = map[string]*openapi.Schema{
	"StartCommand": {
		Type:     "object",
		Required: []string{"owner_id", "raw_text"},
		Properties: map[string]*openapi.Schema{
			"document_id":   str("Caller-assigned id; generated when empty"),
			"owner_id":      str("Tenant that owns the document"),
			"document_type": enum("invoice", "contract", "budget"),
			"raw_text":      str("Unstructured document text"),
		},
	},
	"BatchRequest": {
		Type:     "object",
		Required: []string{"documents"},
		Properties: map[string]*openapi.Schema{
			"documents": {Type: "array", Items: openapi.SchemaRef("StartCommand")},
		},
	},
	"BatchResult": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"document_id": str(""),
			"state":       openapi.SchemaRef("WorkflowState"),
			"error":       str("Set when the document could not be started"),
		},
	},
	"Accepted": {
		Type:       "object",
		Properties: map[string]*openapi.Schema{"document_id": str("")},
	},
	"CancelRequest": {
		Type:       "object",
		Properties: map[string]*openapi.Schema{"reason": str("Recorded in the error history")},
	},
	"ResumeCommand": {
		Type:     "object",
		Required: []string{"action"},
		Properties: map[string]*openapi.Schema{
			"action":      enum("approve", "reject", "correct"),
			"corrections": openapi.MapOf("Field path to value, e.g. line_items.0.unit_price", &openapi.Schema{}),
			"notes":       str("Reviewer notes"),
		},
	},
	"WorkflowState": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"document_id":           str(""),
			"owner_id":              str(""),
			"document_type":         str(""),
			"status":                enum("processing", "completed", "quarantined", "failed"),
			"current_stage":         str("Stage the next run executes"),
			"paused":                {Type: "boolean"},
			"pause_reason":          str(""),
			"risk_level":            riskLevel,
			"retry_count":           {Type: "integer"},
			"max_retries":           {Type: "integer"},
			"structured_data":       {Type: "object"},
			"extraction_confidence": {Type: "number"},
			"validation_anomalies":  {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"compliance_anomalies":  {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"graph_id":              {Type: "string", Description: "Graph entity id once stored", ReadOnly: true},
			"error_history":         {Type: "array", Items: &openapi.Schema{Type: "object"}},
		},
	},
	"Checkpoint": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"document_id":     str(""),
			"sequence_number": {Type: "integer"},
			"status":          str(""),
			"current_stage":   str(""),
			"paused":          {Type: "boolean"},
			"state":           openapi.SchemaRef("WorkflowState"),
			"created_at":      {Type: "string", Format: "date-time"},
			"updated_at":      {Type: "string", Format: "date-time"},
		},
	},
	"QuarantineEntry": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"document_id":      str(""),
			"owner_id":         str(""),
			"document_type":    str(""),
			"pause_reason":     str(""),
			"risk_level":       riskLevel,
			"quarantined_from": str("Stage that paused the document"),
			"retry_count":      {Type: "integer"},
			"quarantined_at":   {Type: "string", Format: "date-time"},
		},
	},
	"QuarantinePage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("QuarantineEntry")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
			"has_more":    {Type: "boolean"},
		},
	},
}

// specHandler serializes the API description once and serves it.
func specHandler(cfg *config.Config, groups []routes.Group) (http.HandlerFunc, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.OpenAPI.Server(cfg.API.BasePath))
	spec.Components.AddSchemas(schemas)

	routes.Describe(spec, "", groups...)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi: %w", err)
	}
	return openapi.ServeSpec(data), nil
}
