package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jobhub/backend/internal/database"
)

var (
	ErrInvalidTransition = errors.New("invalid time entry transition")
	ErrNothingToBill     = errors.New("no approved hours awaiting billing")
	ErrNothingToApprove  = errors.New("no logged additional hours to approve")
	ErrForbidden         = errors.New("actor is not allowed to perform this action")
	ErrInvalidDecision   = errors.New("invalid approval decision")
	ErrAlreadyResolved   = errors.New("approval request already resolved")
)

// ErrStoreUnavailable is re-exported so handlers only depend on services.
var ErrStoreUnavailable = database.ErrStoreUnavailable

// VerificationError marks an event whose authenticity could not be established.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "webhook verification failed: " + e.Reason
}

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// MetadataIncompleteError lists the metadata keys a variant needs but did not get.
type MetadataIncompleteError struct {
	Variant VariantTag
	Missing []string
}

func (e *MetadataIncompleteError) Error() string {
	return fmt.Sprintf("metadata for %s is missing: %s", e.Variant, strings.Join(e.Missing, ", "))
}

// ExternalCallError wraps a failed call to the payment gateway.
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }
