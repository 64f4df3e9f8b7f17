package mock

import (
	"context"

	"github.com/tris077/Atomera/pkg/models"
)

// MockBackend satisfies models.ExecutionBackend for testing.
type MockBackend struct {
	Name_       string
	ExecuteFunc func(ctx context.Context, in models.ExecutionInput, report models.ProgressFunc) (*models.RawResult, error)
}

func (m *MockBackend) Name() string {
	if m.Name_ == "" {
		return "mock"
	}
	return m.Name_
}

func (m *MockBackend) Execute(ctx context.Context, in models.ExecutionInput, report models.ProgressFunc) (*models.RawResult, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, in, report)
	}
	return &models.RawResult{}, nil
}

// NewMockBackend returns a MockBackend producing a plausible full result.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Name_: "mock",
		ExecuteFunc: func(_ context.Context, in models.ExecutionInput, report models.ProgressFunc) (*models.RawResult, error) {
			if report != nil {
				report(50)
				report(100)
			}
			affinity := -8.4
			probability := 0.91
			confidence := 0.87
			ptm := 0.82
			iptm := 0.79
			return &models.RawResult{
				AffinityPredValue:         &affinity,
				AffinityProbabilityBinary: &probability,
				ConfidenceScore:           &confidence,
				PTM:                       &ptm,
				IPTM:                      &iptm,
				PoseFiles:                 []string{"pose_model_0.cif"},
			}, nil
		},
	}
}

// NewFailingBackend returns a MockBackend that always returns the given error.
func NewFailingBackend(err error) *MockBackend {
	return &MockBackend{
		Name_: "mock-failing",
		ExecuteFunc: func(_ context.Context, _ models.ExecutionInput, _ models.ProgressFunc) (*models.RawResult, error) {
			return nil, err
		},
	}
}

// NewBlockingBackend returns a MockBackend that blocks until its context is
// cancelled.
func NewBlockingBackend() *MockBackend {
	return &MockBackend{
		Name_: "mock-blocking",
		ExecuteFunc: func(ctx context.Context, _ models.ExecutionInput, _ models.ProgressFunc) (*models.RawResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}
