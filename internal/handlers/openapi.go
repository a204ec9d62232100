package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/pavelpascari/statusapi/internal/models"
	"github.com/pavelpascari/statusapi/pkg/openapi"
	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// OpenAPI document media types.
const (
	OpenAPIJSONContentType = "application/json; charset=utf-8"
	OpenAPIYAMLContentType = "application/yaml"
)

type openAPIDocuments struct {
	json []byte
	yaml []byte
}

// OpenAPIHandler implements the TypedHTTP Handler interface for
// GET /openapi.json
type OpenAPIHandler struct {
	documents func() (openAPIDocuments, error)
}

// NewOpenAPIHandler creates a handler serving the document generated from
// router. Generation happens on the first request, after every route has
// been registered, and the result is reused afterwards.
func NewOpenAPIHandler(generator *openapi.Generator, router *typedhttp.TypedRouter) *OpenAPIHandler {
	return &OpenAPIHandler{
		documents: sync.OnceValues(func() (openAPIDocuments, error) {
			spec, err := generator.Generate(router)
			if err != nil {
				return openAPIDocuments{}, fmt.Errorf("generating OpenAPI document: %w", err)
			}
			jsonDoc, err := generator.GenerateJSON(spec)
			if err != nil {
				return openAPIDocuments{}, err
			}
			yamlDoc, err := generator.GenerateYAML(spec)
			if err != nil {
				return openAPIDocuments{}, err
			}
			return openAPIDocuments{json: jsonDoc, yaml: yamlDoc}, nil
		}),
	}
}

// Handle implements the TypedHTTP Handler interface
func (h *OpenAPIHandler) Handle(_ context.Context, req models.OpenAPIRequest) (typedhttp.RawResponse, error) {
	docs, err := h.documents()
	if err != nil {
		return typedhttp.RawResponse{}, err
	}

	if req.Format == "yaml" {
		return typedhttp.RawResponse{ContentType: OpenAPIYAMLContentType, Body: docs.yaml}, nil
	}
	return typedhttp.RawResponse{ContentType: OpenAPIJSONContentType, Body: docs.json}, nil
}
