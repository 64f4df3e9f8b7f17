package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
)

// FailureKind classifies why a prediction attempt failed. The kind decides
// whether placeholder fallback applies and what the API reports.
type FailureKind string

const (
	// FailureValidation: the request or input spec was rejected before any
	// engine work started. Never eligible for fallback.
	FailureValidation FailureKind = "validation"
	// FailureTimeout: the engine run exceeded its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureProcess: the local engine process exited non-zero or crashed.
	FailureProcess FailureKind = "process"
	// FailureCommunication: a transport-level error talking to the remote
	// execution service.
	FailureCommunication FailureKind = "communication"
	// FailureRemoteJob: the remote service accepted the job but reported a
	// terminal failure state for it.
	FailureRemoteJob FailureKind = "remote_job"
	// FailureStorage: persisting job state or artifacts failed.
	FailureStorage FailureKind = "storage"
	// FailureUnknown: anything not classified above.
	FailureUnknown FailureKind = "unknown"
)

// Failure is a classified prediction error. Classification happens at the
// boundary where the error is raised, not by inspecting message text later.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a Failure of the given kind wrapping err (err may be nil).
func NewFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from err, or FailureUnknown if err carries
// no classification.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// Classify wraps an arbitrary error from an execution backend into a Failure,
// inferring the kind from well-known error types when the backend did not
// classify it itself.
func Classify(err error, message string) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFailure(FailureTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewFailure(FailureTimeout, message, err)
		}
		return NewFailure(FailureCommunication, message, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewFailure(FailureProcess, message, err)
	}
	return NewFailure(FailureUnknown, message, err)
}

// FallbackEligible reports whether a failure kind may be downgraded to a
// placeholder result. Only local-path timeouts and process failures
// qualify; everything else must surface as an error.
func FallbackEligible(kind FailureKind) bool {
	return kind == FailureTimeout || kind == FailureProcess
}
