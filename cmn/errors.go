package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error taxonomy every core package (taxonomy,
// thinkerbell, tls) raises through, following spec.md §7.
type Kind string

const (
	KindTypeError         Kind = "TypeError"
	KindInvalidValue      Kind = "InvalidValue"
	KindNoSuchAdapter     Kind = "NoSuchAdapter"
	KindNoSuchService     Kind = "NoSuchService"
	KindNoSuchFeature     Kind = "NoSuchFeature"
	KindDuplicateAdapter  Kind = "DuplicateAdapter"
	KindDuplicateService  Kind = "DuplicateService"
	KindDuplicateFeature  Kind = "DuplicateFeature"
	KindConflictingAdapter Kind = "ConflictingAdapter"
	KindInvalidInitial    Kind = "InvalidInitialService"
	KindNoSuchMethod      Kind = "NoSuchMethod"
	KindParseError        Kind = "ParseError"
	KindSerializeError    Kind = "SerializeError"
	KindGeneric           Kind = "GenericError"
	KindInternal          Kind = "InternalError"
	KindAllocationLength  Kind = "AllocationLengthError"
	KindPermission        Kind = "PermissionDenied"
)

// Error is a typed, recoverable error value. Small constructor functions
// below build these the way the teacher's cmn.NewNotFoundError does,
// rather than ad hoc fmt.Errorf chains scattered through call sites.
type Error struct {
	Kind  Kind
	ID    string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.ID, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

func newErr(kind Kind, id, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, ID: id, Msg: fmt.Sprintf(format, a...)}
}

func NewNoSuchAdapterError(id string) *Error {
	return newErr(KindNoSuchAdapter, id, "no such adapter %q", id)
}

func NewNoSuchServiceError(id string) *Error {
	return newErr(KindNoSuchService, id, "no such service %q", id)
}

func NewNoSuchFeatureError(id string) *Error {
	return newErr(KindNoSuchFeature, id, "no such feature %q", id)
}

func NewDuplicateAdapterError(id string) *Error {
	return newErr(KindDuplicateAdapter, id, "adapter %q already registered", id)
}

func NewDuplicateServiceError(id string) *Error {
	return newErr(KindDuplicateService, id, "service %q already registered", id)
}

func NewDuplicateFeatureError(id string) *Error {
	return newErr(KindDuplicateFeature, id, "feature %q already registered", id)
}

func NewConflictingAdapterError(featureID, wantAdapter, gotAdapter string) *Error {
	return newErr(KindConflictingAdapter, featureID,
		"feature %q adapter %q does not match parent service adapter %q", featureID, gotAdapter, wantAdapter)
}

func NewInvalidInitialServiceError(id string) *Error {
	return newErr(KindInvalidInitial, id, "service %q was created with a non-empty feature map", id)
}

func NewNoSuchMethodError(featureID, method string) *Error {
	return newErr(KindNoSuchMethod, featureID, "feature %q does not support %s", featureID, method)
}

func NewTypeError(format string, a ...interface{}) *Error {
	return newErr(KindTypeError, "", format, a...)
}

func NewInvalidValueError(format string, a ...interface{}) *Error {
	return newErr(KindInvalidValue, "", format, a...)
}

func NewParseError(format string, a ...interface{}) *Error {
	return newErr(KindParseError, "", format, a...)
}

func NewSerializeError(format string, a ...interface{}) *Error {
	return newErr(KindSerializeError, "", format, a...)
}

func NewAllocationLengthError(format string, a ...interface{}) *Error {
	return newErr(KindAllocationLength, "", format, a...)
}

// NewGenericError builds an adapter/DB-boundary failure, wrapping cause
// with github.com/pkg/errors so a stack trace travels with it the way the
// teacher's own error-wrapping call sites expect (cause may be nil for a
// failure with no underlying error, e.g. "script already running").
func NewGenericError(msg string, cause error) *Error {
	if cause != nil {
		cause = errors.Wrap(cause, msg)
	}
	return &Error{Kind: KindGeneric, Msg: msg, Cause: cause}
}

func NewInternalError(format string, a ...interface{}) *Error {
	return newErr(KindInternal, "", format, a...)
}

func NewPermissionError(format string, a ...interface{}) *Error {
	return newErr(KindPermission, "", format, a...)
}
