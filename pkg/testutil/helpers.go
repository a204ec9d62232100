package testutil

import (
	"context"
	"testing"
)

// MustExecute executes a request and fails the test on error.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func MustExecute(t *testing.T, client HTTPClient, req Request) *Response {
	t.Helper()
	resp, err := client.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", req.Method, req.Path, err)
	}

	return resp
}

// MustExecuteN executes req n times, failing the test on the first error.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func MustExecuteN(t *testing.T, client HTTPClient, req Request, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		MustExecute(t, client, req)
	}
}
