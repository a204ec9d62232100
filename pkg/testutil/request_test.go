package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestBuilders(t *testing.T) {
	assert.Equal(t, Request{Method: http.MethodGet, Path: "/health"}, GET("/health"))
	assert.Equal(t, Request{Method: http.MethodOptions, Path: "/info"}, OPTIONS("/info"))
	assert.Equal(t, Request{Method: http.MethodDelete, Path: "/x"}, Method(http.MethodDelete, "/x"))

	post := POST("/load-test", map[string]int{"iterations": 1})
	assert.Equal(t, http.MethodPost, post.Method)
	assert.Equal(t, map[string]int{"iterations": 1}, post.Body)
}

func TestModifiersDoNotShareMaps(t *testing.T) {
	base := WithHeader(GET("/"), "X-A", "1")
	derived := WithAuth(base, "token")

	assert.Equal(t, map[string]string{"X-A": "1"}, base.Headers)
	assert.Equal(t, "Bearer token", derived.Headers["Authorization"])
	assert.Equal(t, "1", derived.Headers["X-A"])

	q := WithQueryParam(WithQueryParam(GET("/"), "a", "1"), "b", "2")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, q.QueryParams)
}

func TestWithRawBody(t *testing.T) {
	req := WithRawBody(POST("/", map[string]int{"x": 1}), "application/json", []byte("{"))

	assert.Nil(t, req.Body)
	assert.Equal(t, []byte("{"), req.RawBody)
	assert.Equal(t, "application/json", req.Headers["Content-Type"])
}
