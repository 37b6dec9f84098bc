// Package pipeline runs one frame through pose estimation, rep counting and
// annotation.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/kdimtricp/repcoach/internal/annotate"
	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/pose"
)

var (
	ErrNoEstimator  = errors.New("no pose estimator configured")
	ErrInvalidFrame = errors.New("invalid frame")
)

// Output is what a processed frame produces besides the new state.
type Output struct {
	exercise.Result
	// JPEG holds the frame to send back. It is the input unchanged when
	// Annotated is false.
	JPEG      []byte
	Annotated bool
	Landmarks *pose.Landmarks
}

type Processor struct {
	Estimator   pose.Estimator
	Annotator   *annotate.Annotator
	Profiles    exercise.Profiles
	JPEGQuality int
}

func New(estimator pose.Estimator, annotator *annotate.Annotator, profiles exercise.Profiles) *Processor {
	if profiles == nil {
		profiles = exercise.DefaultProfiles()
	}
	return &Processor{
		Estimator:   estimator,
		Annotator:   annotator,
		Profiles:    profiles,
		JPEGQuality: 85,
	}
}

// Process handles one camera frame. Paused sessions and frames without a
// detected person are passed through unchanged. On error the caller keeps
// its previous state.
func (p *Processor) Process(ctx context.Context, s exercise.State, frame pose.Frame) (exercise.State, Output, error) {
	if !s.Running {
		return s, Output{Result: exercise.Result{Skipped: true}, JPEG: frame.Data}, nil
	}
	if p.Estimator == nil {
		return s, Output{}, ErrNoEstimator
	}

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return s, Output{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if frame.Width == 0 || frame.Height == 0 {
		frame.Width, frame.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	lm, err := p.Estimator.Estimate(ctx, frame)
	if err != nil {
		return s, Output{}, fmt.Errorf("failed to estimate pose: %w", err)
	}
	if lm == nil {
		return s, Output{Result: exercise.Result{Skipped: true}, JPEG: frame.Data}, nil
	}

	next, res := exercise.ProcessFrame(s, lm, p.Profiles)
	if res.Skipped {
		return s, Output{Result: res, JPEG: frame.Data}, nil
	}

	out := Output{Result: res, Landmarks: lm, JPEG: frame.Data}
	if p.Annotator != nil {
		annotated := p.Annotator.Annotate(img, annotate.Overlay{
			Count:     next.Count,
			Feedback:  res.Feedback,
			Landmarks: lm,
		})

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: p.JPEGQuality}); err != nil {
			return s, Output{}, fmt.Errorf("failed to encode frame: %w", err)
		}
		out.JPEG = buf.Bytes()
		out.Annotated = true
	}

	return next, out, nil
}

// ProcessLandmarks handles a frame whose pose was estimated by the client.
func (p *Processor) ProcessLandmarks(s exercise.State, lm *pose.Landmarks) (exercise.State, Output) {
	next, res := exercise.ProcessFrame(s, lm, p.Profiles)
	out := Output{Result: res}
	if !res.Skipped {
		out.Landmarks = lm
	}
	return next, out
}
