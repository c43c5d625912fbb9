// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package validation wraps go-playground/validator v10 behind a singleton,
// translating tag failures into the API's VALIDATION_ERROR shape with
// messages a client author can act on.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/replaysrv/replay/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the shared validator. validator caches struct metadata,
// so one instance serves the whole process.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError is one field's validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StructError collects every failed field of one request.
type StructError struct {
	Fields []FieldError
}

// Error implements error.
func (e *StructError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// ToAPIError converts the failure set into the response envelope's error.
func (e *StructError) ToAPIError() *models.APIError {
	return &models.APIError{
		Code:    "VALIDATION_ERROR",
		Message: e.Error(),
		Details: e.Fields,
	}
}

// ValidateStruct validates v against its `validate` tags. Returns nil on
// success, a *StructError listing every failed field otherwise.
func ValidateStruct(v interface{}) *StructError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: the caller passed a non-struct.
		return &StructError{Fields: []FieldError{{
			Field:   "",
			Message: err.Error(),
		}}}
	}

	out := &StructError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fieldName(fe),
			Message: describe(fe),
		})
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	// Drop the struct name prefix from the namespace: clients know fields,
	// not Go types.
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	name := fieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
