// Package apperror defines the error taxonomy shared by the pipelines and HTTP handlers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for logging and status mapping.
type Kind string

const (
	KindAcquisition  Kind = "acquisition"
	KindCrop         Kind = "crop"
	KindRecognition  Kind = "recognition"
	KindParse        Kind = "parse"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is a classified error with the message shown to API callers.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the wrapped error text, or "" when there is none.
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}

// Acquisition reports an image that could not be loaded from the request.
func Acquisition(message string, cause error) *Error {
	return newError(KindAcquisition, http.StatusBadRequest, message, cause)
}

// Crop reports that no MRZ region was found.
func Crop(message string, cause error) *Error {
	return newError(KindCrop, http.StatusBadRequest, message, cause)
}

// Recognition reports an OCR failure or an empty OCR result.
func Recognition(message string, cause error) *Error {
	return newError(KindRecognition, http.StatusBadRequest, message, cause)
}

// Parse reports MRZ text that does not follow any known layout.
func Parse(message string, cause error) *Error {
	return newError(KindParse, http.StatusBadRequest, message, cause)
}

func Validation(message string) *Error {
	return newError(KindValidation, http.StatusBadRequest, message, nil)
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, http.StatusForbidden, message, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, http.StatusNotFound, message, nil)
}

func Conflict(message string) *Error {
	return newError(KindConflict, http.StatusConflict, message, nil)
}

func Internal(message string, cause error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, message, cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err, 500 for unclassified errors.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
