package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error returned by the orchestration layer
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindNotFound
	KindPermission
	KindHTTPStatus
	KindAlreadyRunning
	KindOperationFailed
	KindEmptyDataset
	KindSerialization
	KindInvalidConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient transport error"
	case KindNotFound:
		return "not found"
	case KindPermission:
		return "permission denied"
	case KindHTTPStatus:
		return "http status error"
	case KindAlreadyRunning:
		return "operation already running"
	case KindOperationFailed:
		return "operation failed"
	case KindEmptyDataset:
		return "empty dataset"
	case KindSerialization:
		return "serialization error"
	case KindInvalidConfig:
		return "invalid configuration"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrTransient       = &Error{Kind: KindTransient}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrPermission      = &Error{Kind: KindPermission}
	ErrHTTPStatus      = &Error{Kind: KindHTTPStatus}
	ErrAlreadyRunning  = &Error{Kind: KindAlreadyRunning}
	ErrOperationFailed = &Error{Kind: KindOperationFailed}
	ErrEmptyDataset    = &Error{Kind: KindEmptyDataset}
	ErrSerialization   = &Error{Kind: KindSerialization}
	ErrInvalidConfig   = &Error{Kind: KindInvalidConfig}
)

// Error is a classified error carrying the remote identifiers it relates to
type Error struct {
	Kind       Kind
	Operation  string // e.g. "pipeline execution", "GET /integration/api/..."
	PoolID     string
	JobID      string
	Status     string // remote status name, if any
	StatusCode int    // HTTP status code, if any
	Message    string // raw or aggregated remote message
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Operation != "" {
		sb.WriteString(e.Operation)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())

	var ids []string
	if e.PoolID != "" {
		ids = append(ids, "pool="+e.PoolID)
	}
	if e.JobID != "" {
		ids = append(ids, "job="+e.JobID)
	}
	if e.StatusCode != 0 {
		ids = append(ids, fmt.Sprintf("code=%d", e.StatusCode))
	}
	if e.Status != "" {
		ids = append(ids, "status="+e.Status)
	}
	if len(ids) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(ids, ", "))
		sb.WriteString(")")
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// InvalidConfig returns a KindInvalidConfig error with a formatted message
func InvalidConfig(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidConfig, Message: fmt.Sprintf(format, args...)}
}
