package ingestion

import "github.com/JaimeStill/ledger/pkg/openapi"

var idParam = openapi.PathParam("id", "Document ID")

var startOp = &openapi.Operation{
	Summary:     "Process a document",
	Description: "Runs the workflow to a terminal or paused state. With async=true the run continues in the background and 202 carries the document id.",
	Parameters:  []*openapi.Parameter{openapi.QueryParam("async", "boolean", "Return before the workflow finishes", false)},
	RequestBody: openapi.RequestBodyJSON("StartCommand", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Workflow state", "WorkflowState"),
		202: openapi.ResponseJSON("Workflow accepted", "Accepted"),
		400: openapi.ResponseRef("BadRequest"),
		409: openapi.ResponseRef("Conflict"),
		413: openapi.ResponseRef("TooLarge"),
		503: openapi.ResponseRef("Unavailable"),
	},
}

var batchOp = &openapi.Operation{
	Summary:     "Process a batch of documents",
	RequestBody: openapi.RequestBodyJSON("BatchRequest", true),
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Per-document outcomes in request order",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("BatchResult")}},
			},
		},
		400: openapi.ResponseRef("BadRequest"),
		413: openapi.ResponseRef("TooLarge"),
	},
}

var statusOp = &openapi.Operation{
	Summary:    "Latest workflow state",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Workflow state", "WorkflowState"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var historyOp = &openapi.Operation{
	Summary:    "Checkpoint history",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Checkpoints in sequence order",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Checkpoint")}},
			},
		},
		404: openapi.ResponseRef("NotFound"),
	},
}

var cancelOp = &openapi.Operation{
	Summary:     "Cancel a processing document",
	Parameters:  []*openapi.Parameter{idParam},
	RequestBody: openapi.RequestBodyJSON("CancelRequest", false),
	Responses: map[int]*openapi.Response{
		204: {Description: "Cancelled"},
		404: openapi.ResponseRef("NotFound"),
		409: openapi.ResponseRef("Conflict"),
	},
}
