// Package errors provides classified errors for the flattening pipeline.
//
// Failures are contained at the document level: the walker logs a classified
// error and moves on. Categories exist so callers can tell an unreadable file
// from a malformed document without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies an error by its origin.
type Category string

const (
	CategoryFileSystem    Category = "filesystem"
	CategoryValidation    Category = "validation"
	CategoryConfiguration Category = "configuration"
	CategoryInternal      Category = "internal"
)

// Context carries structured key-value detail attached to an error.
type Context map[string]any

// ClassifiedError is an error with a category and structured context.
type ClassifiedError struct {
	category Category
	message  string
	cause    error
	context  Context
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.category, e.message)
	for k, v := range e.context {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *ClassifiedError) Unwrap() error { return e.cause }

// Category returns the error's category.
func (e *ClassifiedError) Category() Category { return e.category }

// Context returns the structured context attached to the error.
func (e *ClassifiedError) Context() Context { return e.context }

// Builder assembles a ClassifiedError fluently.
type Builder struct {
	err ClassifiedError
}

// New starts a builder for a fresh classified error.
func New(category Category, message string) *Builder {
	return &Builder{err: ClassifiedError{category: category, message: message, context: Context{}}}
}

// Wrap starts a builder that wraps an existing error.
func Wrap(cause error, category Category, message string) *Builder {
	b := New(category, message)
	b.err.cause = cause
	return b
}

// WithContext attaches a key-value pair to the error being built.
func (b *Builder) WithContext(key string, value any) *Builder {
	b.err.context[key] = value
	return b
}

// Build finalizes the error.
func (b *Builder) Build() *ClassifiedError {
	return &b.err
}

// AsClassified extracts a ClassifiedError from err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CategoryOf returns the category of err, or CategoryInternal when err carries none.
func CategoryOf(err error) Category {
	if ce, ok := AsClassified(err); ok {
		return ce.Category()
	}
	return CategoryInternal
}
