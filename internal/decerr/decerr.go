// Package decerr defines the typed error taxonomy shared by every decapod
// control-plane component. Every kind carries the stable marker string that
// is printed on stderr and recorded as a broker failure's status_reason.
package decerr

import "fmt"

// Kind is a stable, user-visible error marker.
type Kind string

const (
	// Storage
	KindDatabaseBusy           Kind = "DatabaseBusy"
	KindStoragePreflightFailed Kind = "StoragePreflightFailed"
	KindRusqliteError          Kind = "RusqliteError"
	KindLogAppendFailed        Kind = "LogAppendFailed"

	// Protocol
	KindOpNotAllowed         Kind = "OP_NOT_ALLOWED"
	KindBrokerRouteRequired  Kind = "BROKER_ROUTE_REQUIRED"
	KindSchemaVersionMismatch Kind = "SCHEMA_VERSION_MISMATCH"

	// Policy
	KindCapsuleScopeDenied           Kind = "CAPSULE_SCOPE_DENIED"
	KindNeedsHumanInput              Kind = "NEEDS_HUMAN_INPUT"
	KindWorkspaceInterlockDirtyProtected Kind = "WORKSPACE_INTERLOCK_DIRTY_PROTECTED"
	KindRiskUnapproved               Kind = "RISK_UNAPPROVED"

	// Session
	KindSessionInvalid Kind = "SESSION_INVALID"

	// Validation
	KindValidateTimeoutOrLock Kind = "VALIDATE_TIMEOUT_OR_LOCK"
	KindCommitOftenViolation  Kind = "Commit-often mandate violation"
	KindWorkunitNotVerified   Kind = "WorkunitNotVerified"
	KindWorkunitManifestMissing Kind = "WorkunitManifestMissing"

	// Input
	KindInvalidArgument Kind = "InvalidArgument"
	KindNotFound        Kind = "NotFound"
)

// Error is the concrete typed error carried across the kernel. It always
// prints as "<Kind>: <Message>" so CLI stderr output matches spec.md §7's
// "typed marker, then one-line human explanation" contract.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, otherwise returns ok=false.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if asError(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// asError is a tiny errors.As shim kept local to avoid importing "errors"
// just for this one call site in a leaf package.
func asError(err error, target **Error) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
