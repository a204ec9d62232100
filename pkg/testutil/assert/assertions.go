// Package assert provides HTTP response assertions with detailed failure
// reports.
package assert

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/pavelpascari/statusapi/pkg/testutil"
)

const truncateLength = 300

var (
	errFieldNotFound = errors.New("field not found")
	errInvalidAccess = errors.New("cannot access field on non-object type")
)

// Status verifies the HTTP status code with detailed error reporting.
func Status(t *testing.T, resp *testutil.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Status code mismatch:\n  Expected: %d (%s)\n  Actual:   %d (%s)\n  Response: %s",
			expected, http.StatusText(expected),
			resp.StatusCode, http.StatusText(resp.StatusCode),
			truncateResponse(resp.Raw))
	}
}

// StatusOK verifies the response has 200 OK status.
func StatusOK(t *testing.T, resp *testutil.Response) {
	t.Helper()
	Status(t, resp, http.StatusOK)
}

// Header verifies a response header value.
func Header(t *testing.T, resp *testutil.Response, key, expected string) {
	t.Helper()
	if actual := resp.Headers.Get(key); actual != expected {
		t.Errorf("Header %q mismatch:\n  Expected: %q\n  Actual:   %q", key, expected, actual)
	}
}

// JSONContentType verifies the response declares a JSON body.
func JSONContentType(t *testing.T, resp *testutil.Response) {
	t.Helper()
	if ct := resp.Headers.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

// BodyMatches verifies the body matches a multi-line regular expression.
func BodyMatches(t *testing.T, resp *testutil.Response, pattern string) {
	t.Helper()
	re := regexp.MustCompile("(?m)" + pattern)
	if !re.Match(resp.Raw) {
		t.Errorf("Body does not match %q:\n%s", pattern, truncateResponse(resp.Raw))
	}
}

// JSONField verifies a specific field in JSON response using dot notation.
// Numbers decode as float64.
func JSONField(t *testing.T, resp *testutil.Response, fieldPath string, expected interface{}) {
	t.Helper()

	actual, err := Field(resp, fieldPath)
	if err != nil {
		t.Fatalf("Failed to get field %q: %v\nResponse: %s", fieldPath, err, truncateResponse(resp.Raw))
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("JSON field %q mismatch:\n  Expected: %v (%T)\n  Actual:   %v (%T)",
			fieldPath, expected, expected, actual, actual)
	}
}

// JSONFieldExists verifies a specific field exists in JSON response.
func JSONFieldExists(t *testing.T, resp *testutil.Response, fieldPath string) {
	t.Helper()

	if _, err := Field(resp, fieldPath); err != nil {
		t.Errorf("Expected JSON field %q to exist: %v", fieldPath, err)
	}
}

// ErrorBody verifies the status code and the error field of a JSON error
// response.
func ErrorBody(t *testing.T, resp *testutil.Response, status int, errorText string) {
	t.Helper()

	Status(t, resp, status)
	JSONContentType(t, resp)
	JSONField(t, resp, "error", errorText)
}

// Field extracts a field from a JSON response body using dot notation
// (e.g., "stats.requestCount").
func Field(resp *testutil.Response, path string) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(resp.Raw, &data); err != nil {
		return nil, fmt.Errorf("parsing response as JSON: %w", err)
	}

	return getJSONField(data, path)
}

func getJSONField(data interface{}, path string) (interface{}, error) {
	current := data

	for _, part := range strings.Split(path, ".") {
		switch value := current.(type) {
		case map[string]interface{}:
			val, ok := value[part]
			if !ok {
				return nil, fmt.Errorf("field %q: %w", part, errFieldNotFound)
			}
			current = val
		default:
			return nil, fmt.Errorf("field %q on type %T: %w", part, value, errInvalidAccess)
		}
	}

	return current, nil
}

func truncateResponse(body []byte) string {
	if len(body) <= truncateLength {
		return string(body)
	}

	return string(body[:truncateLength]) + "... (truncated)"
}
