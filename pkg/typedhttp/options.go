package typedhttp

// WithDecoder sets a custom request decoder for the handler.
func WithDecoder[T any](decoder RequestDecoder[T]) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Decoder = decoder
	}
}

// WithEncoder sets a custom response encoder for the handler.
func WithEncoder[T any](encoder ResponseEncoder[T]) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Encoder = encoder
	}
}

// WithErrorMapper sets a custom error mapper for the handler.
func WithErrorMapper(mapper ErrorMapper) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.ErrorMapper = mapper
	}
}

// WithMiddleware adds middleware to the handler chain.
func WithMiddleware(middleware ...Middleware) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Middleware = append(cfg.Middleware, middleware...)
	}
}

// WithStatusCode sets the success status code (200 by default).
func WithStatusCode(statusCode int) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.StatusCode = statusCode
	}
}

// WithTags sets OpenAPI tags for the handler.
func WithTags(tags ...string) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Metadata.Tags = tags
	}
}

// WithSummary sets the OpenAPI summary for the handler.
func WithSummary(summary string) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Metadata.Summary = summary
	}
}

// WithDescription sets the OpenAPI description for the handler.
func WithDescription(description string) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Metadata.Description = description
	}
}

// WithContentType documents a non-JSON success media type.
func WithContentType(contentType string) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Metadata.ContentType = contentType
	}
}

// WithSecurity documents the security schemes guarding the handler.
func WithSecurity(schemes ...string) HandlerOption {
	return func(cfg *HandlerConfig) {
		cfg.Metadata.Security = schemes
	}
}
