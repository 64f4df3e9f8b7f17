package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("exit status 2")
	f := NewFailure(FailureProcess, "boltz run failed", inner)

	assert.Contains(t, f.Error(), "process")
	assert.Contains(t, f.Error(), "boltz run failed")
	assert.ErrorIs(t, f, inner)
}

func TestKindOf(t *testing.T) {
	f := NewFailure(FailureTimeout, "deadline hit", nil)
	wrapped := fmt.Errorf("executing job: %w", f)

	assert.Equal(t, FailureTimeout, KindOf(wrapped))
	assert.Equal(t, FailureUnknown, KindOf(errors.New("plain")))
}

func TestClassify_PassesThroughFailure(t *testing.T) {
	orig := NewFailure(FailureRemoteJob, "remote reported FAILED", nil)
	got := Classify(fmt.Errorf("wrap: %w", orig), "ignored")
	assert.Equal(t, FailureRemoteJob, got.Kind)
	assert.Equal(t, "remote reported FAILED", got.Message)
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	got := Classify(context.DeadlineExceeded, "engine run")
	assert.Equal(t, FailureTimeout, got.Kind)
}

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "net down" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestClassify_NetErrors(t *testing.T) {
	got := Classify(&fakeNetError{timeout: true}, "dial")
	assert.Equal(t, FailureTimeout, got.Kind)

	got = Classify(&fakeNetError{timeout: false}, "dial")
	assert.Equal(t, FailureCommunication, got.Kind)
}

func TestClassify_Unknown(t *testing.T) {
	got := Classify(errors.New("mystery"), "somewhere")
	assert.Equal(t, FailureUnknown, got.Kind)
}

func TestFallbackEligible(t *testing.T) {
	eligible := []FailureKind{FailureTimeout, FailureProcess}
	for _, k := range eligible {
		assert.True(t, FallbackEligible(k), "kind %s", k)
	}
	ineligible := []FailureKind{FailureValidation, FailureStorage, FailureUnknown, FailureCommunication, FailureRemoteJob}
	for _, k := range ineligible {
		assert.False(t, FallbackEligible(k), "kind %s", k)
	}
}
