package openapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

type pingRequest struct{}

type pingResponse struct {
	Status string     `json:"status"`
	Count  uint64     `json:"count"`
	Load   [3]float64 `json:"load"`
	Note   string     `json:"note,omitempty"`
}

type burnRequest struct {
	Iterations *int `json:"iterations,omitempty" validate:"omitempty,min=0,max=1000"`
}

type burnResponse struct {
	Message string `json:"message"`
}

type docRequest struct {
	Format string `query:"format" default:"json" validate:"oneof=json yaml"`
}

type base struct {
	Host string `json:"host"`
}

type custom struct{}

func (custom) MarshalJSON() ([]byte, error) { return []byte(`{}`), nil }

type composite struct {
	base
	Extra  custom   `json:"extra"`
	Labels []string `json:"labels"`
}

func newTestRouter() *typedhttp.TypedRouter {
	router := typedhttp.NewRouter()

	typedhttp.GET(router, "/ping", typedhttp.HandlerFunc[pingRequest, pingResponse](
		func(context.Context, pingRequest) (pingResponse, error) { return pingResponse{}, nil }),
		typedhttp.WithSummary("Ping"),
		typedhttp.WithTags("status"),
	)
	typedhttp.POST(router, "/load-test", typedhttp.HandlerFunc[burnRequest, burnResponse](
		func(context.Context, burnRequest) (burnResponse, error) { return burnResponse{}, nil }),
		typedhttp.WithSecurity("bearerAuth"),
	)
	typedhttp.GET(router, "/metrics", typedhttp.HandlerFunc[pingRequest, typedhttp.RawResponse](
		func(context.Context, pingRequest) (typedhttp.RawResponse, error) { return typedhttp.RawResponse{}, nil }),
		typedhttp.WithContentType("text/plain"),
	)
	typedhttp.GET(router, "/doc", typedhttp.HandlerFunc[docRequest, composite](
		func(context.Context, docRequest) (composite, error) { return composite{}, nil }),
	)

	return router
}

func newTestGenerator() *Generator {
	return NewGenerator(&Config{
		Info:    Info{Title: "Status API", Version: "1.0.0", Description: "test"},
		Servers: []Server{{URL: "http://localhost:3000", Description: "Local"}},
		Security: map[string]SecurityScheme{
			"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		},
	})
}

func TestGenerator_Generate(t *testing.T) {
	spec, err := newTestGenerator().Generate(newTestRouter())
	require.NoError(t, err)

	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Equal(t, "Status API", spec.Info.Title)
	assert.Equal(t, "1.0.0", spec.Info.Version)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "http://localhost:3000", spec.Servers[0].URL)
	assert.Contains(t, spec.Components.SecuritySchemes, "bearerAuth")
	assert.Contains(t, spec.Components.Schemas, "ErrorResponse")

	require.NoError(t, spec.Validate(context.Background()))
}

func TestGenerator_Operations(t *testing.T) {
	spec, err := newTestGenerator().Generate(newTestRouter())
	require.NoError(t, err)

	t.Run("get_with_metadata", func(t *testing.T) {
		op := spec.Paths.Find("/ping").Get
		require.NotNil(t, op)
		assert.Equal(t, "Ping", op.Summary)
		assert.Equal(t, []string{"status"}, op.Tags)
		assert.Equal(t, "getPing", op.OperationID)
		assert.Nil(t, op.RequestBody)

		ok := op.Responses.Value("200")
		require.NotNil(t, ok)
		schema := ok.Value.Content["application/json"].Schema.Value
		assert.True(t, schema.Type.Is("object"))
		assert.ElementsMatch(t, []string{"status", "count", "load"}, schema.Required)
		assert.True(t, schema.Properties["count"].Value.Type.Is("integer"))
		load := schema.Properties["load"].Value
		assert.True(t, load.Type.Is("array"))
		assert.EqualValues(t, 3, load.MinItems)

		assert.NotNil(t, op.Responses.Value("default"))
	})

	t.Run("post_with_optional_body_and_security", func(t *testing.T) {
		op := spec.Paths.Find("/load-test").Post
		require.NotNil(t, op)
		assert.Equal(t, "postLoadTest", op.OperationID)
		require.NotNil(t, op.Responses.Value("200"))

		require.NotNil(t, op.RequestBody)
		assert.False(t, op.RequestBody.Value.Required)
		body := op.RequestBody.Value.Content["application/json"].Schema.Value
		iterations := body.Properties["iterations"].Value
		assert.True(t, iterations.Type.Is("integer"))
		require.NotNil(t, iterations.Max)
		assert.Equal(t, 1000.0, *iterations.Max)
		assert.Empty(t, body.Required)

		require.NotNil(t, op.Security)
		assert.Contains(t, (*op.Security)[0], "bearerAuth")
	})

	t.Run("raw_text_response", func(t *testing.T) {
		op := spec.Paths.Find("/metrics").Get
		require.NotNil(t, op)
		media := op.Responses.Value("200").Value.Content["text/plain"]
		require.NotNil(t, media)
		assert.True(t, media.Schema.Value.Type.Is("string"))
	})

	t.Run("query_enum_and_embedded_fields", func(t *testing.T) {
		op := spec.Paths.Find("/doc").Get
		require.NotNil(t, op)
		require.Len(t, op.Parameters, 1)
		param := op.Parameters[0].Value
		assert.Equal(t, "format", param.Name)
		assert.Equal(t, "query", param.In)
		assert.False(t, param.Required)
		assert.Equal(t, "json", param.Schema.Value.Default)
		assert.Equal(t, []interface{}{"json", "yaml"}, param.Schema.Value.Enum)

		schema := op.Responses.Value("200").Value.Content["application/json"].Schema.Value
		assert.Contains(t, schema.Properties, "host")
		assert.Contains(t, schema.Properties, "extra")
		assert.True(t, schema.Properties["extra"].Value.Type.Is("object"))
		assert.True(t, schema.Properties["labels"].Value.Type.Is("array"))
	})
}

func TestGenerator_Encodings(t *testing.T) {
	gen := newTestGenerator()
	spec, err := gen.Generate(newTestRouter())
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		data, err := gen.GenerateJSON(spec)
		require.NoError(t, err)

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
		assert.Contains(t, doc["paths"], "/ping")
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := gen.GenerateYAML(spec)
		require.NoError(t, err)

		var doc map[string]interface{}
		require.NoError(t, yaml.Unmarshal(data, &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
		assert.Contains(t, doc["paths"], "/metrics")
	})
}

func TestOperationID(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/health", "getHealth"},
		{"POST", "/load-test", "postLoadTest"},
		{"GET", "/openapi.json", "getOpenapiJson"},
		{"GET", "/users/{id}", "getUsersId"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, operationID(tt.method, tt.path))
		})
	}
}
