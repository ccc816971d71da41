package archive

import "github.com/JaimeStill/ledger/pkg/openapi"

var downloadOp = &openapi.Operation{
	Summary: "Download an archived artifact",
	Parameters: []*openapi.Parameter{
		openapi.PathParam("id", "Document ID"),
		{
			Name:     "artifact",
			In:       "path",
			Required: true,
			Schema:   &openapi.Schema{Type: "string", Enum: []any{string(ArtifactRaw), string(ArtifactStructured)}},
		},
	},
	Responses: map[int]*openapi.Response{
		200: {Description: "Artifact content"},
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}
