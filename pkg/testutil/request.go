package testutil

import "net/http"

// GET creates a GET request with the specified path.
func GET(path string) Request {
	return Request{Method: http.MethodGet, Path: path}
}

// POST creates a POST request with the specified path and JSON body. A nil
// body sends no body at all.
func POST(path string, body interface{}) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// OPTIONS creates an OPTIONS request with the specified path.
func OPTIONS(path string) Request {
	return Request{Method: http.MethodOptions, Path: path}
}

// Method creates a request with an arbitrary method.
func Method(method, path string) Request {
	return Request{Method: method, Path: path}
}

// WithAuth adds Bearer token authentication to the request.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func WithAuth(req Request, token string) Request {
	return WithHeader(req, "Authorization", "Bearer "+token)
}

// WithHeader adds a single header to the request.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func WithHeader(req Request, key, value string) Request {
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	headers[key] = value
	req.Headers = headers

	return req
}

// WithQueryParam sets a single query parameter.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func WithQueryParam(req Request, key, value string) Request {
	params := make(map[string]string, len(req.QueryParams)+1)
	for k, v := range req.QueryParams {
		params[k] = v
	}
	params[key] = value
	req.QueryParams = params

	return req
}

// WithRawBody sends body verbatim with the given content type.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func WithRawBody(req Request, contentType string, body []byte) Request {
	req.RawBody = body
	req.Body = nil

	return WithHeader(req, "Content-Type", contentType)
}
