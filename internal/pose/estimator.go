package pose

import (
	"context"
	"errors"
	"fmt"
)

// Estimator turns a camera frame into the landmarks of the detected person.
// A nil result with a nil error means no person was found in the frame.
type Estimator interface {
	Estimate(ctx context.Context, frame Frame) (*Landmarks, error)
}

var ErrWorkerNotRunning = errors.New("pose worker not running")

// EstimatorError wraps failures talking to an external estimator.
type EstimatorError struct {
	Op  string // "start", "send", "receive", "decode"
	Err error
}

func (e *EstimatorError) Error() string {
	return fmt.Sprintf("pose estimator %s: %v", e.Op, e.Err)
}

func (e *EstimatorError) Unwrap() error {
	return e.Err
}

// Static always returns the same landmarks. A nil Landmarks simulates an
// empty scene.
type Static struct {
	Landmarks *Landmarks
	Err       error
}

func (s *Static) Estimate(ctx context.Context, frame Frame) (*Landmarks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Landmarks == nil {
		return nil, nil
	}
	lm := make(Landmarks, len(*s.Landmarks))
	copy(lm, *s.Landmarks)
	return &lm, nil
}
