package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// Config holds OpenAPI generation configuration.
type Config struct {
	Info     Info                      `json:"info"`
	Servers  []Server                  `json:"servers,omitempty"`
	Security map[string]SecurityScheme `json:"security,omitempty"`
}

// Info represents OpenAPI info object.
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Server represents OpenAPI server object.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// SecurityScheme represents OpenAPI security scheme.
type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearer_format,omitempty"`
	In           string `json:"in,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Generator generates OpenAPI specifications from TypedHTTP routers.
type Generator struct {
	config Config
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(config *Config) *Generator {
	return &Generator{
		config: *config,
	}
}

var (
	rawResponseType   = reflect.TypeOf(typedhttp.RawResponse{})
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// Generate creates an OpenAPI specification from a TypedHTTP router.
func (g *Generator) Generate(router *typedhttp.TypedRouter) (*openapi3.T, error) {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.config.Info.Title,
			Version:     g.config.Info.Version,
			Description: g.config.Info.Description,
		},
		Paths: &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(map[string]*openapi3.SchemaRef),
		},
	}

	// Add servers if configured
	if len(g.config.Servers) > 0 {
		spec.Servers = make([]*openapi3.Server, len(g.config.Servers))
		for i, server := range g.config.Servers {
			spec.Servers[i] = &openapi3.Server{
				URL:         server.URL,
				Description: server.Description,
			}
		}
	}

	if len(g.config.Security) > 0 {
		spec.Components.SecuritySchemes = make(openapi3.SecuritySchemes, len(g.config.Security))
		for name, scheme := range g.config.Security {
			spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
				Value: &openapi3.SecurityScheme{
					Type:         scheme.Type,
					Scheme:       scheme.Scheme,
					BearerFormat: scheme.BearerFormat,
					In:           scheme.In,
					Name:         scheme.Name,
				},
			}
		}
	}

	errorSchema, err := g.createSchemaFromType(reflect.TypeOf(typedhttp.ErrorResponse{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create error schema: %w", err)
	}
	spec.Components.Schemas["ErrorResponse"] = errorSchema

	// Process each registered handler
	handlers := router.GetHandlers()
	for i := range handlers {
		err := g.processHandler(spec, &handlers[i])
		if err != nil {
			return nil, fmt.Errorf("failed to process handler %s %s: %w",
				handlers[i].Method, handlers[i].Path, err)
		}
	}

	return spec, nil
}

// processHandler processes a single handler registration.
func (g *Generator) processHandler(spec *openapi3.T, reg *typedhttp.HandlerRegistration) error {
	pathItem := spec.Paths.Find(reg.Path)
	if pathItem == nil {
		pathItem = &openapi3.PathItem{}
		spec.Paths.Set(reg.Path, pathItem)
	}

	operation := &openapi3.Operation{
		Summary:     reg.Metadata.Summary,
		Description: reg.Metadata.Description,
		Tags:        reg.Metadata.Tags,
		OperationID: operationID(reg.Method, reg.Path),
		Responses:   &openapi3.Responses{},
	}

	parameters, err := g.extractParameters(reg.RequestType)
	if err != nil {
		return fmt.Errorf("failed to extract parameters: %w", err)
	}
	operation.Parameters = parameters

	if g.needsRequestBody(reg.RequestType) {
		requestBody, err := g.createRequestBody(reg.RequestType)
		if err != nil {
			return fmt.Errorf("failed to create request body: %w", err)
		}
		operation.RequestBody = requestBody
	}

	responseSchema, err := g.createSchemaFromType(reg.ResponseType)
	if err != nil {
		return fmt.Errorf("failed to create response schema: %w", err)
	}

	contentType := reg.Metadata.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	statusCode := reg.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	description := http.StatusText(statusCode)

	operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &description,
			Content: map[string]*openapi3.MediaType{
				contentType: {
					Schema: responseSchema,
				},
			},
		},
	})

	errorDescription := "Error"
	operation.Responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errorDescription,
			Content: map[string]*openapi3.MediaType{
				"application/json": {
					Schema: openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil),
				},
			},
		},
	})

	if len(reg.Metadata.Security) > 0 {
		requirement := openapi3.SecurityRequirement{}
		for _, name := range reg.Metadata.Security {
			requirement[name] = []string{}
		}
		operation.Security = &openapi3.SecurityRequirements{requirement}
	}

	switch reg.Method {
	case http.MethodGet:
		pathItem.Get = operation
	case http.MethodPost:
		pathItem.Post = operation
	case http.MethodPut:
		pathItem.Put = operation
	case http.MethodPatch:
		pathItem.Patch = operation
	case http.MethodDelete:
		pathItem.Delete = operation
	case http.MethodHead:
		pathItem.Head = operation
	case http.MethodOptions:
		pathItem.Options = operation
	}

	return nil
}

// operationID derives a stable identifier such as getHealth or postLoadTest.
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	upper := true
	for _, r := range path {
		switch {
		case r == '/' || r == '-' || r == '_' || r == '.' || r == '{' || r == '}':
			upper = true
		case upper:
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractParameters extracts OpenAPI parameters from request type.
func (g *Generator) extractParameters(requestType reflect.Type) (openapi3.Parameters, error) {
	var parameters openapi3.Parameters
	if requestType.Kind() != reflect.Struct {
		return parameters, nil
	}

	for i := 0; i < requestType.NumField(); i++ {
		field := requestType.Field(i)

		if !field.IsExported() {
			continue
		}

		if pathName := field.Tag.Get("path"); pathName != "" {
			param, err := g.createParameter(&field, "path", pathName, true)
			if err != nil {
				return nil, err
			}
			parameters = append(parameters, param)
		}

		if queryName := field.Tag.Get("query"); queryName != "" {
			param, err := g.createQueryParameter(&field, queryName)
			if err != nil {
				return nil, err
			}
			parameters = append(parameters, param)
		}
	}

	return parameters, nil
}

// createQueryParameter creates a query parameter with default value handling.
func (g *Generator) createQueryParameter(field *reflect.StructField, queryName string) (*openapi3.ParameterRef, error) {
	defaultValue := field.Tag.Get("default")
	required := defaultValue == "" && strings.Contains(field.Tag.Get("validate"), "required")

	param, err := g.createParameter(field, "query", queryName, required)
	if err != nil {
		return nil, err
	}

	if defaultValue != "" {
		param.Value.Schema.Value.Default = g.parseDefaultValue(defaultValue, field.Type)
	}

	return param, nil
}

// createParameter creates an OpenAPI parameter from a struct field.
func (g *Generator) createParameter(
	field *reflect.StructField, in, name string, required bool,
) (*openapi3.ParameterRef, error) {
	schema, err := g.createSchemaFromType(field.Type)
	if err != nil {
		return nil, err
	}

	g.applyValidationToSchema(schema, field.Tag.Get("validate"))

	param := &openapi3.Parameter{
		Name:     name,
		In:       in,
		Required: required,
		Schema:   schema,
	}

	return &openapi3.ParameterRef{Value: param}, nil
}

// needsRequestBody reports whether the request type carries a JSON body.
func (g *Generator) needsRequestBody(requestType reflect.Type) bool {
	if requestType.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < requestType.NumField(); i++ {
		if requestType.Field(i).Tag.Get("json") != "" {
			return true
		}
	}

	return false
}

// createRequestBody creates an optional JSON request body. Bodies are never
// required because the decoder accepts an empty body as the zero value.
func (g *Generator) createRequestBody(requestType reflect.Type) (*openapi3.RequestBodyRef, error) {
	schema, err := g.createSchemaFromType(requestType)
	if err != nil {
		return nil, err
	}

	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Content: map[string]*openapi3.MediaType{
				"application/json": {Schema: schema},
			},
		},
	}, nil
}

// createSchemaFromType creates OpenAPI schema from Go type.
func (g *Generator) createSchemaFromType(t reflect.Type) (*openapi3.SchemaRef, error) {
	if t == rawResponseType {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}, nil
	}

	schema := &openapi3.Schema{}

	// Custom JSON encodings cannot be described by reflection.
	if t.Kind() == reflect.Struct && t.Implements(jsonMarshalerType) {
		schema.Type = &openapi3.Types{"object"}
		return &openapi3.SchemaRef{Value: schema}, nil
	}

	switch t.Kind() {
	case reflect.String:
		schema.Type = &openapi3.Types{"string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		schema.Type = &openapi3.Types{"integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema.Type = &openapi3.Types{"integer"}
		zero := 0.0
		schema.Min = &zero
	case reflect.Float32, reflect.Float64:
		schema.Type = &openapi3.Types{"number"}
	case reflect.Bool:
		schema.Type = &openapi3.Types{"boolean"}
	case reflect.Struct:
		schema.Type = &openapi3.Types{"object"}
		schema.Properties = make(map[string]*openapi3.SchemaRef)
		if err := g.addStructProperties(schema, t); err != nil {
			return nil, err
		}
	case reflect.Slice:
		schema.Type = &openapi3.Types{"array"}
		itemSchema, err := g.createSchemaFromType(t.Elem())
		if err != nil {
			return nil, err
		}
		schema.Items = itemSchema
	case reflect.Array:
		schema.Type = &openapi3.Types{"array"}
		itemSchema, err := g.createSchemaFromType(t.Elem())
		if err != nil {
			return nil, err
		}
		schema.Items = itemSchema
		n := uint64(t.Len())
		schema.MinItems = n
		schema.MaxItems = &n
	case reflect.Map:
		schema.Type = &openapi3.Types{"object"}
		trueVal := true
		schema.AdditionalProperties = openapi3.AdditionalProperties{Has: &trueVal}
	case reflect.Ptr:
		return g.createSchemaFromType(t.Elem())
	case reflect.Interface:
		schema.Type = &openapi3.Types{"object"}
	default:
		schema.Type = &openapi3.Types{"string"}
	}

	return &openapi3.SchemaRef{Value: schema}, nil
}

// addStructProperties adds the JSON fields of t to schema. Untagged embedded
// structs are flattened the way encoding/json flattens them.
func (g *Generator) addStructProperties(schema *openapi3.Schema, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonName := field.Tag.Get("json")
		if field.Anonymous && jsonName == "" {
			embedded := field.Type
			if embedded.Kind() == reflect.Ptr {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				if err := g.addStructProperties(schema, embedded); err != nil {
					return err
				}
				continue
			}
		}

		if !field.IsExported() || jsonName == "" || jsonName == "-" {
			continue
		}

		parts := strings.Split(jsonName, ",")
		fieldName := parts[0]
		omitempty := len(parts) > 1 && parts[1] == "omitempty"

		fieldSchema, err := g.createSchemaFromType(field.Type)
		if err != nil {
			return err
		}
		g.applyValidationToSchema(fieldSchema, field.Tag.Get("validate"))

		schema.Properties[fieldName] = fieldSchema

		if !omitempty {
			schema.Required = append(schema.Required, fieldName)
		}
	}

	return nil
}

// applyValidationToSchema applies validation constraints to schema.
func (g *Generator) applyValidationToSchema(schemaRef *openapi3.SchemaRef, validate string) {
	if validate == "" || schemaRef.Value == nil {
		return
	}

	for _, rule := range strings.Split(validate, ",") {
		g.applyValidationRule(schemaRef.Value, strings.TrimSpace(rule))
	}
}

// applyValidationRule applies a single validation rule to the schema.
func (g *Generator) applyValidationRule(schema *openapi3.Schema, rule string) {
	switch {
	case strings.HasPrefix(rule, "min="):
		g.applyMinValidation(schema, rule)
	case strings.HasPrefix(rule, "max="):
		g.applyMaxValidation(schema, rule)
	case strings.HasPrefix(rule, "oneof="):
		for _, v := range strings.Fields(strings.TrimPrefix(rule, "oneof=")) {
			schema.Enum = append(schema.Enum, v)
		}
	}
}

// applyMinValidation applies minimum value validation.
func (g *Generator) applyMinValidation(schema *openapi3.Schema, rule string) {
	minVal, err := strconv.Atoi(rule[4:])
	if err != nil || schema.Type == nil || len(*schema.Type) == 0 {
		return
	}

	switch (*schema.Type)[0] {
	case "string":
		if minVal >= 0 {
			schema.MinLength = uint64(minVal)
		}
	case "integer", "number":
		minFloat := float64(minVal)
		schema.Min = &minFloat
	}
}

// applyMaxValidation applies maximum value validation.
func (g *Generator) applyMaxValidation(schema *openapi3.Schema, rule string) {
	maxVal, err := strconv.Atoi(rule[4:])
	if err != nil || schema.Type == nil || len(*schema.Type) == 0 {
		return
	}

	switch (*schema.Type)[0] {
	case "string":
		if maxVal >= 0 {
			maxPtr := uint64(maxVal)
			schema.MaxLength = &maxPtr
		}
	case "integer", "number":
		maxFloat := float64(maxVal)
		schema.Max = &maxFloat
	}
}

// parseDefaultValue parses default value based on type.
func (g *Generator) parseDefaultValue(defaultValue string, t reflect.Type) interface{} {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
			return val
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if val, err := strconv.ParseUint(defaultValue, 10, 64); err == nil {
			return val
		}
	case reflect.Float32, reflect.Float64:
		if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
			return val
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(defaultValue); err == nil {
			return val
		}
	case reflect.Ptr:
		return g.parseDefaultValue(defaultValue, t.Elem())
	}

	return defaultValue
}

// GenerateJSON generates JSON representation of OpenAPI spec.
func (g *Generator) GenerateJSON(spec *openapi3.T) ([]byte, error) {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec to JSON: %w", err)
	}

	return data, nil
}

// GenerateYAML generates YAML representation of OpenAPI spec.
func (g *Generator) GenerateYAML(spec *openapi3.T) ([]byte, error) {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec to YAML: %w", err)
	}

	return data, nil
}
