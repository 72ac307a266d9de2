package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeBotError    = "BOT_ERROR"
	CodeAPIError    = "API_ERROR"
	CodeValidation  = "VALIDATION_ERROR"
	CodeCache       = "CACHE_ERROR"
	CodeFetch       = "FETCH_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"
	CodeDelivery    = "DELIVERY_ERROR"
)

type BotError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BotError) Unwrap() error {
	return e.Cause
}

func NewBotError(message, code string, statusCode int, context map[string]any) *BotError {
	return &BotError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *BotError) WithCause(cause error) *BotError {
	e.Cause = cause
	return e
}

type APIError struct {
	*BotError
}

func NewAPIError(message string, statusCode int, context map[string]any) *APIError {
	return &APIError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeAPIError,
			StatusCode: statusCode,
			Context:    context,
		},
	}
}

// WithCause keeps the *APIError type so callers can still match it with errors.As.
func (e *APIError) WithCause(cause error) *APIError {
	e.Cause = cause
	return e
}

type ValidationError struct {
	*BotError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*BotError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// FetchError means the roster could not be obtained. The cycle is aborted
// before any store is touched.
type FetchError struct {
	*BotError
	OrganizationID string
	Source         string
}

func NewFetchError(message, organizationID, source string, cause error) *FetchError {
	return &FetchError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeFetch,
			StatusCode: 502,
			Context: map[string]any{
				"organization_id": organizationID,
				"source":          source,
			},
			Cause: cause,
		},
		OrganizationID: organizationID,
		Source:         source,
	}
}

// PersistenceError means a store read or write failed. Nothing is notified
// for a cycle that ends with this error.
type PersistenceError struct {
	*BotError
	Operation string
}

func NewPersistenceError(message, operation string, cause error) *PersistenceError {
	return &PersistenceError{
		BotError: &BotError{
			Message:    message,
			Code:       CodePersistence,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
			},
			Cause: cause,
		},
		Operation: operation,
	}
}

// DeliveryError is local to a single delivery target.
type DeliveryError struct {
	*BotError
	TargetKind string
	TargetID   string
}

func NewDeliveryError(message, targetKind, targetID string, cause error) *DeliveryError {
	return &DeliveryError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeDelivery,
			StatusCode: 502,
			Context: map[string]any{
				"target_kind": targetKind,
				"target_id":   targetID,
			},
			Cause: cause,
		},
		TargetKind: targetKind,
		TargetID:   targetID,
	}
}

func IsCacheError(err error) bool {
	var target *CacheError
	return stderrors.As(err, &target)
}

func IsFetchError(err error) bool {
	var target *FetchError
	return stderrors.As(err, &target)
}

func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return stderrors.As(err, &target)
}

func IsDeliveryError(err error) bool {
	var target *DeliveryError
	return stderrors.As(err, &target)
}

// StatusCodeOf returns the HTTP status carried by an APIError in err's chain, or 0.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
