package openapi

import "maps"

// RequestIDHeader is the response header carrying the request correlation id.
const RequestIDHeader = "X-Request-ID"

var requestID = &Header{
	Description: "Correlation id, echoed from the request or generated",
	Schema:      &Schema{Type: "string"},
}

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Headers:     map[string]*Header{RequestIDHeader: requestID},
		Content: map[string]*MediaType{
			"application/json": {
				Schema: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"error": {Type: "string", Description: "Error message"},
					},
				},
			},
		},
	}
}

// NewComponents creates Components with shared schemas, error responses and
// the request id header.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: -quarantined_at"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":  errorResponse("Invalid request"),
			"NotFound":    errorResponse("Resource not found"),
			"Conflict":    errorResponse("Request conflicts with the current workflow state"),
			"TooLarge":    errorResponse("Request body exceeds the configured limit"),
			"Unavailable": errorResponse("A durable store is unavailable"),
		},
		Headers: map[string]*Header{
			"RequestID": requestID,
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
