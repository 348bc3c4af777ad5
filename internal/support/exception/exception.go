// Package exception provides the custom error type used across the fitledger
// pipeline. It standardizes errors from the secret store, the token endpoint,
// the wearable API and object storage so callers can classify them by module
// and retryability.
package exception

import (
	"errors"
	"fmt"
)

// Module tags identifying where a PipelineError originated. These correspond
// to the pipeline's error taxonomy: secret access, token refresh, API
// request, storage read and storage write failures.
const (
	ModuleSecrets      = "secrets"
	ModuleToken        = "token"
	ModuleAPI          = "api"
	ModuleStorageRead  = "storage-read"
	ModuleStorageWrite = "storage-write"
	ModuleConfig       = "config"
	ModuleDataset      = "dataset"
	ModuleQuery        = "query"
)

// PipelineError is a custom error type for failures during an ingestion run.
// It holds the module where the error occurred, a message, the wrapped
// original error and whether the failure is considered transient.
type PipelineError struct {
	// Module indicates the component where the error occurred.
	Module string
	// Message is a concise description of the error.
	Message string
	// Err is the wrapped original error.
	Err error

	retryable bool
}

// New creates a new PipelineError.
func New(module, message string, err error, retryable bool) *PipelineError {
	return &PipelineError{
		Module:    module,
		Message:   message,
		Err:       err,
		retryable: retryable,
	}
}

// Newf creates a new non-retryable PipelineError with a formatted message.
func Newf(module, format string, a ...interface{}) *PipelineError {
	return &PipelineError{
		Module:  module,
		Message: fmt.Sprintf(format, a...),
	}
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error is considered transient and worth
// retrying with backoff.
func (e *PipelineError) IsRetryable() bool {
	return e.retryable
}

// IsRetryable reports whether err or any error in its chain is a retryable
// PipelineError.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}

// FromModule reports whether err or any error in its chain is a
// PipelineError originating from the given module.
func FromModule(err error, module string) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Module == module
	}
	return false
}
