package typedhttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type burnRequest struct {
	Iterations *int `json:"iterations,omitempty" validate:"omitempty,min=0"`
}

type listRequest struct {
	Format  string  `query:"format" default:"json" validate:"oneof=json yaml"`
	Limit   int     `query:"limit"`
	Ratio   float64 `query:"ratio"`
	Verbose bool    `query:"verbose"`
	ignored string  `query:"ignored"`
}

func newBodyRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/load-test", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestJSONDecoder(t *testing.T) {
	decoder := NewJSONDecoder[burnRequest](validator.New())

	t.Run("decodes_body", func(t *testing.T) {
		req, err := decoder.Decode(newBodyRequest(`{"iterations":7}`, "application/json"))
		require.NoError(t, err)
		require.NotNil(t, req.Iterations)
		assert.Equal(t, 7, *req.Iterations)
	})

	t.Run("suffix_json_media_type", func(t *testing.T) {
		req, err := decoder.Decode(newBodyRequest(`{"iterations":3}`, "application/vnd.api+json; charset=utf-8"))
		require.NoError(t, err)
		require.NotNil(t, req.Iterations)
		assert.Equal(t, 3, *req.Iterations)
	})

	t.Run("empty_body_is_zero_value", func(t *testing.T) {
		req, err := decoder.Decode(newBodyRequest("", "application/json"))
		require.NoError(t, err)
		assert.Nil(t, req.Iterations)
	})

	t.Run("non_json_content_type_is_ignored", func(t *testing.T) {
		req, err := decoder.Decode(newBodyRequest(`iterations=7`, "application/x-www-form-urlencoded"))
		require.NoError(t, err)
		assert.Nil(t, req.Iterations)
	})

	t.Run("missing_content_type_is_ignored", func(t *testing.T) {
		req, err := decoder.Decode(newBodyRequest(`{"iterations":7}`, ""))
		require.NoError(t, err)
		assert.Nil(t, req.Iterations)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, err := decoder.Decode(newBodyRequest(`{"iterations":`, "application/json"))
		var badErr *BadRequestError
		require.ErrorAs(t, err, &badErr)
	})

	t.Run("wrong_field_type", func(t *testing.T) {
		_, err := decoder.Decode(newBodyRequest(`{"iterations":"many"}`, "application/json"))
		var badErr *BadRequestError
		require.ErrorAs(t, err, &badErr)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := decoder.Decode(newBodyRequest(`{"iterations":-1}`, "application/json"))
		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, map[string]string{"iterations": "min"}, valErr.Fields)
	})

	assert.Equal(t, []string{"application/json"}, decoder.ContentTypes())
}

func TestQueryDecoder(t *testing.T) {
	decoder := NewQueryDecoder[listRequest](validator.New())

	decode := func(target string) (listRequest, error) {
		return decoder.Decode(httptest.NewRequest(http.MethodGet, target, nil))
	}

	t.Run("defaults", func(t *testing.T) {
		req, err := decode("/openapi.json")
		require.NoError(t, err)
		assert.Equal(t, listRequest{Format: "json"}, req)
	})

	t.Run("all_kinds", func(t *testing.T) {
		req, err := decode("/openapi.json?format=yaml&limit=5&ratio=0.5&verbose=true&ignored=x")
		require.NoError(t, err)
		assert.Equal(t, "yaml", req.Format)
		assert.Equal(t, 5, req.Limit)
		assert.InDelta(t, 0.5, req.Ratio, 1e-9)
		assert.True(t, req.Verbose)
		assert.Empty(t, req.ignored)
	})

	t.Run("enum_violation", func(t *testing.T) {
		_, err := decode("/openapi.json?format=xml")
		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, map[string]string{"format": "oneof"}, valErr.Fields)
	})

	t.Run("conversion_errors", func(t *testing.T) {
		for _, query := range []string{"limit=ten", "ratio=half", "verbose=maybe"} {
			_, err := decode("/openapi.json?" + query)
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr, query)
			assert.Len(t, valErr.Fields, 1, query)
		}
	})
}

func TestEmptyDecoder(t *testing.T) {
	req, err := EmptyDecoder[struct{}]{}.Decode(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, struct{}{}, req)
	assert.Nil(t, EmptyDecoder[struct{}]{}.ContentTypes())
}

func TestJSONEncoder(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewJSONEncoder[map[string]string]().Encode(rec, map[string]string{"status": "healthy"}, http.StatusCreated)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestJSONEncoder_Unencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewJSONEncoder[func()]().Encode(rec, func() {}, http.StatusOK)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON response")
}

func TestRawEncoder(t *testing.T) {
	t.Run("own_content_type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := (&RawEncoder{}).Encode(rec, RawResponse{ContentType: "application/yaml", Body: []byte("openapi: 3.0.3\n")}, http.StatusOK)
		require.NoError(t, err)
		assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
		assert.Equal(t, "openapi: 3.0.3\n", rec.Body.String())
	})

	t.Run("default_content_type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, (&RawEncoder{}).Encode(rec, RawResponse{Body: []byte("up 1")}, http.StatusOK))
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	})

	t.Run("configured_default", func(t *testing.T) {
		encoder := &RawEncoder{DefaultContentType: "text/csv"}
		rec := httptest.NewRecorder()
		require.NoError(t, encoder.Encode(rec, RawResponse{Body: []byte("a,b")}, http.StatusOK))
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	})
}
