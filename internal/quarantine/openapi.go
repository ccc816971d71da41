package quarantine

import "github.com/JaimeStill/ledger/pkg/openapi"

var listOp = &openapi.Operation{
	Summary:     "List quarantined documents",
	Description: "Without a database the listing is served from workflow state and owner_id is required.",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("sort", "string", "Sort fields, prefix - for descending", false),
		openapi.QueryParam("owner_id", "string", "Owner filter", false),
		openapi.QueryParam("risk_level", "string", "Risk level filter", false),
		openapi.QueryParam("pause_reason", "string", "Pause reason filter", false),
		openapi.QueryParam("document_type", "string", "Document type filter", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Page of entries", "QuarantinePage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var forOwnerOp = &openapi.Operation{
	Summary:    "Review queue of one owner",
	Parameters: []*openapi.Parameter{openapi.PathParam("owner", "Owner ID")},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Entries, oldest first",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("QuarantineEntry")}},
			},
		},
	},
}

var resolveOp = &openapi.Operation{
	Summary:     "Resolve a quarantined document",
	Description: "approve continues after the quarantined stage, reject fails the document, and correct applies field overrides and re-validates.",
	Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
	RequestBody: openapi.RequestBodyJSON("ResumeCommand", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Workflow state after the resumed run", "WorkflowState"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		409: openapi.ResponseRef("Conflict"),
		413: openapi.ResponseRef("TooLarge"),
	},
}
