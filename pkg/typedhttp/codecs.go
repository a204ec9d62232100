package typedhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error variables for static error handling.
var (
	ErrInvalidIntegerValue  = errors.New("invalid integer value")
	ErrInvalidFloatValue    = errors.New("invalid float value")
	ErrInvalidBooleanValue  = errors.New("invalid boolean value")
	ErrUnsupportedFieldType = errors.New("unsupported field type")
)

// JSONDecoder implements RequestDecoder for JSON content.
//
// A request without a body, or whose Content-Type is not JSON, decodes to the
// zero value of T so that handlers can apply their own defaults.
type JSONDecoder[T any] struct {
	validator *validator.Validate
}

// NewJSONDecoder creates a new JSON decoder with optional validation.
func NewJSONDecoder[T any](validator *validator.Validate) *JSONDecoder[T] {
	return &JSONDecoder[T]{
		validator: validator,
	}
}

// Decode decodes a JSON request body into the target type.
func (d *JSONDecoder[T]) Decode(r *http.Request) (T, error) {
	var result T

	if r.Body != nil && r.Body != http.NoBody && isJSONContentType(r.Header.Get("Content-Type")) {
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
			return result, &BadRequestError{Err: err}
		}
	}

	if err := validateStruct(d.validator, result); err != nil {
		return result, err
	}

	return result, nil
}

// ContentTypes returns the supported content types for JSON decoding.
func (d *JSONDecoder[T]) ContentTypes() []string {
	return []string{"application/json"}
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// QueryDecoder implements RequestDecoder for URL query parameters.
type QueryDecoder[T any] struct {
	validator *validator.Validate
}

// NewQueryDecoder creates a new query parameter decoder.
func NewQueryDecoder[T any](validator *validator.Validate) *QueryDecoder[T] {
	return &QueryDecoder[T]{
		validator: validator,
	}
}

// Decode decodes query parameters into the target type using reflection.
func (d *QueryDecoder[T]) Decode(r *http.Request) (T, error) {
	var result T

	resultValue := reflect.ValueOf(&result).Elem()
	if resultValue.Kind() != reflect.Struct {
		return result, nil
	}
	resultType := resultValue.Type()
	query := r.URL.Query()

	for i := 0; i < resultType.NumField(); i++ {
		field := resultType.Field(i)
		fieldValue := resultValue.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		queryName := field.Tag.Get("query")
		if queryName == "" {
			continue
		}

		queryValue := query.Get(queryName)
		if queryValue == "" {
			queryValue = field.Tag.Get("default")
			if queryValue == "" {
				continue
			}
		}

		if err := setFieldValue(fieldValue, queryValue); err != nil {
			return result, NewValidationError("Validation failed", map[string]string{
				queryName: err.Error(),
			})
		}
	}

	if err := validateStruct(d.validator, result); err != nil {
		return result, err
	}

	return result, nil
}

// ContentTypes returns the supported content types for query decoding.
func (d *QueryDecoder[T]) ContentTypes() []string {
	return []string{"application/x-www-form-urlencoded"}
}

// EmptyDecoder is used for requests that carry no input at all.
type EmptyDecoder[T any] struct{}

// Decode returns the zero value of T.
func (EmptyDecoder[T]) Decode(*http.Request) (T, error) {
	var result T
	return result, nil
}

// ContentTypes returns no content types.
func (EmptyDecoder[T]) ContentTypes() []string {
	return nil
}

// setFieldValue sets a reflect.Value based on a string value.
func setFieldValue(fieldValue reflect.Value, value string) error {
	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidIntegerValue, value)
		}
		fieldValue.SetInt(intValue)
	case reflect.Float32, reflect.Float64:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidFloatValue, value)
		}
		fieldValue.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidBooleanValue, value)
		}
		fieldValue.SetBool(boolValue)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFieldType, fieldValue.Kind())
	}

	return nil
}

// validateStruct runs struct validation and converts validator errors into a
// ValidationError keyed by lower-cased field name.
func validateStruct(v *validator.Validate, obj interface{}) error {
	if v == nil || reflect.Indirect(reflect.ValueOf(obj)).Kind() != reflect.Struct {
		return nil
	}

	err := v.Struct(obj)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, validatorErr := range validatorErrs {
			fields[strings.ToLower(validatorErr.Field())] = validatorErr.Tag()
		}
	}

	return NewValidationError("Validation failed", fields)
}

// JSONEncoder implements ResponseEncoder for JSON content.
type JSONEncoder[T any] struct{}

// NewJSONEncoder creates a new JSON encoder.
func NewJSONEncoder[T any]() *JSONEncoder[T] {
	return &JSONEncoder[T]{}
}

// Encode encodes the response data as JSON and writes it to the response writer.
func (e *JSONEncoder[T]) Encode(w http.ResponseWriter, data T, statusCode int) error {
	w.Header().Set("Content-Type", e.ContentType())
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	return nil
}

// ContentType returns the content type for JSON encoding.
func (e *JSONEncoder[T]) ContentType() string {
	return "application/json; charset=utf-8"
}

// RawEncoder writes a RawResponse verbatim.
type RawEncoder struct {
	// DefaultContentType is used when the response does not name one.
	DefaultContentType string
}

// Encode writes the body of resp with its content type.
func (e *RawEncoder) Encode(w http.ResponseWriter, resp RawResponse, statusCode int) error {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = e.ContentType()
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)

	if _, err := w.Write(resp.Body); err != nil {
		return fmt.Errorf("failed to write response body: %w", err)
	}

	return nil
}

// ContentType returns the default content type of the encoder.
func (e *RawEncoder) ContentType() string {
	if e.DefaultContentType != "" {
		return e.DefaultContentType
	}
	return "text/plain; charset=utf-8"
}
