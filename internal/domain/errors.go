package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch core.
var (
	ErrUnsupportedProvider = fmt.Errorf("unsupported provider type")
	ErrAdapterNotFound     = fmt.Errorf("adapter not found")
	ErrNoAdapters          = fmt.Errorf("no adapters registered")
	ErrAllAdaptersBusy     = fmt.Errorf("all adapters are rate limited")
	ErrProviderError       = fmt.Errorf("provider error")

	// Errors surfaced by the provider HTTP layer.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")

	// History store errors.
	ErrHistoryStore = fmt.Errorf("conversation history store failed")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Dispatcher.Send")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	CodeAdapterNotFound     ErrorCode = "ADAPTER_NOT_FOUND"
	CodeNoAdapters          ErrorCode = "NO_ADAPTERS_REGISTERED"
	CodeAllAdaptersBusy     ErrorCode = "ALL_ADAPTERS_BUSY"
	CodeProviderError       ErrorCode = "PROVIDER_ERROR"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeContextOverflow     ErrorCode = "CONTEXT_OVERFLOW"
	CodeHistoryStore        ErrorCode = "HISTORY_STORE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrUnsupportedProvider: CodeUnsupportedProvider,
	ErrAdapterNotFound:     CodeAdapterNotFound,
	ErrNoAdapters:          CodeNoAdapters,
	ErrAllAdaptersBusy:     CodeAllAdaptersBusy,
	ErrProviderError:       CodeProviderError,
	ErrRateLimit:           CodeRateLimit,
	ErrAuthInvalid:         CodeAuthInvalid,
	ErrContextOverflow:     CodeContextOverflow,
	ErrHistoryStore:        CodeHistoryStore,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// IsRetryableError reports whether err is a transient error that may succeed
// on a later attempt. The core never retries; this is advice for callers.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrAllAdaptersBusy)
}
