// Package keelerrors provides sentinel and custom error types for the application.
package keelerrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrProviderUnavailable is returned when a backend has no credential configured
// or does not support the requested capability.
var ErrProviderUnavailable = &ProviderUnavailableError{}

// ProviderUnavailableError reports a provider that cannot serve the call at all.
type ProviderUnavailableError struct {
	Provider   string
	Capability string
}

// NewProviderUnavailableError creates a ProviderUnavailableError.
func NewProviderUnavailableError(provider, capability string) *ProviderUnavailableError {
	return &ProviderUnavailableError{Provider: provider, Capability: capability}
}

// Error implements the error interface.
func (e *ProviderUnavailableError) Error() string {
	switch {
	case e.Provider != "" && e.Capability != "":
		return e.Provider + ": " + e.Capability + " unavailable"
	case e.Provider != "":
		return e.Provider + ": provider unavailable"
	default:
		return "provider unavailable"
	}
}

// Is implements the error interface for error comparison.
func (e *ProviderUnavailableError) Is(target error) bool {
	_, ok := target.(*ProviderUnavailableError)

	return ok
}

// ErrRateLimited is the sentinel for a provider whose point budget is exhausted.
var ErrRateLimited = &RateLimitedError{}

// RateLimitedError is returned by the rate limiter when the window budget is spent.
type RateLimitedError struct {
	Key string
}

// NewRateLimitedError creates a RateLimitedError for the given limiter key.
func NewRateLimitedError(key string) *RateLimitedError {
	return &RateLimitedError{Key: key}
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.Key != "" {
		return e.Key + ": rate limited"
	}

	return "rate limited"
}

// Is implements the error interface for error comparison.
func (e *RateLimitedError) Is(target error) bool {
	_, ok := target.(*RateLimitedError)

	return ok
}

// ErrCircuitOpen is the sentinel for calls short-circuited by an open breaker.
var ErrCircuitOpen = &CircuitOpenError{}

// CircuitOpenError is returned without any network attempt while a breaker is open.
type CircuitOpenError struct {
	Name string
}

// NewCircuitOpenError creates a CircuitOpenError for the named breaker.
func NewCircuitOpenError(name string) *CircuitOpenError {
	return &CircuitOpenError{Name: name}
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	if e.Name != "" {
		return e.Name + ": circuit open"
	}

	return "circuit open"
}

// Is implements the error interface for error comparison.
func (e *CircuitOpenError) Is(target error) bool {
	_, ok := target.(*CircuitOpenError)

	return ok
}

// ErrTimeout is the sentinel for calls that exceeded the breaker's hard deadline.
var ErrTimeout = &TimeoutError{}

// TimeoutError reports a protected call that did not finish in time.
type TimeoutError struct {
	Name string
}

// NewTimeoutError creates a TimeoutError for the named breaker.
func NewTimeoutError(name string) *TimeoutError {
	return &TimeoutError{Name: name}
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Name != "" {
		return e.Name + ": call timed out"
	}

	return "call timed out"
}

// Is implements the error interface for error comparison.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)

	return ok
}

// ErrNoProviders is returned when no provider is configured and rule-based fallback is disabled.
// It is the only analysis error allowed to reach callers.
var ErrNoProviders = &NoProvidersError{}

// NoProvidersError reports that nothing could serve an analysis request.
type NoProvidersError struct {
	Message string
}

// NewNoProvidersError creates a NoProvidersError with a custom message.
func NewNoProvidersError(message string) *NoProvidersError {
	return &NoProvidersError{Message: message}
}

// Error implements the error interface.
func (e *NoProvidersError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "no providers configured and fallback disabled"
}

// Is implements the error interface for error comparison.
func (e *NoProvidersError) Is(target error) bool {
	_, ok := target.(*NoProvidersError)

	return ok
}
