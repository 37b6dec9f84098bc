package exercise

import (
	"github.com/kdimtricp/repcoach/internal/geometry"
	"github.com/kdimtricp/repcoach/internal/pose"
)

// Result describes what happened on one frame.
type Result struct {
	Angle      float64 `json:"angle"`
	Sag        float64 `json:"sag"`
	Feedback   string  `json:"feedback"`
	RepCounted bool    `json:"rep_counted"`
	// Skipped is set when the frame carried no usable pose or the session
	// was paused; the state is then returned untouched.
	Skipped bool `json:"skipped"`
}

// Step applies the two-state hysteresis rule for one angle sample. A rep is
// counted only on the UP->DOWN edge; going back UP requires the angle to
// clear UpAngle.
func Step(stage Stage, count int, angle float64, p Profile) (Stage, int) {
	if angle > p.UpAngle {
		stage = Up
	}
	if angle < p.DownAngle && stage == Up {
		stage = Down
		count++
	}
	return stage, count
}

// SelectFeedback picks the cue for a frame. Posture problems win over depth
// cues, and depth cues are only given while DOWN.
func SelectFeedback(stage Stage, angle, sag float64, p Profile) string {
	switch {
	case p.ChecksPosture() && sag > p.SagThreshold:
		return p.Messages.Posture
	case stage == Down && angle > p.ShallowAngle:
		return p.Messages.Shallow
	case stage == Down:
		return p.Messages.Good
	default:
		return ""
	}
}

// ProcessFrame advances state by one frame of landmarks. Paused sessions and
// frames without a usable pose leave the state as it was.
func ProcessFrame(s State, lm *pose.Landmarks, profiles Profiles) (State, Result) {
	if !s.Running || lm == nil || !lm.Valid() {
		return s, Result{Skipped: true}
	}

	p := profiles.Get(s.Mode)

	angle := geometry.Angle(
		lm.Point(p.Joints.First),
		lm.Point(p.Joints.Vertex),
		lm.Point(p.Joints.Last),
	)

	var sag float64
	if p.ChecksPosture() {
		sag = geometry.SagDistance(
			lm.Point(p.Posture.Start),
			lm.Point(p.Posture.Reference),
			lm.Point(p.Posture.End),
		)
	}

	prev := s.Count
	s.Stage, s.Count = Step(s.Stage, s.Count, angle, p)

	return s, Result{
		Angle:      angle,
		Sag:        sag,
		Feedback:   SelectFeedback(s.Stage, angle, sag, p),
		RepCounted: s.Count > prev,
	}
}

// CountAngles runs a synthetic angle sequence through the counter and
// returns the stage after each sample along with the final count.
func CountAngles(mode Mode, angles []float64, profiles Profiles) ([]Stage, int) {
	p := profiles.Get(mode)

	stages := make([]Stage, 0, len(angles))
	stage, count := Up, 0
	for _, a := range angles {
		stage, count = Step(stage, count, a, p)
		stages = append(stages, stage)
	}
	return stages, count
}
